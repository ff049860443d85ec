package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/services"
	"github.com/akagifreeez/seed-restock-bot/pkg/ratelimit"
)

// botAPI is the subset of *tgbotapi.BotAPI used by this package
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Notifier delivers rendered messages to Telegram chats
type Notifier struct {
	api     botAPI
	limiter ratelimit.Limiter
}

func NewNotifier(api botAPI, limiter ratelimit.Limiter) *Notifier {
	return &Notifier{api: api, limiter: limiter}
}

// Send delivers a Markdown message. Errors caused by a recipient that can never be
// reached again wrap services.ErrRecipientUnreachable.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	err := n.send(ctx, msg)

	if err != nil && isMarkupError(err) {
		// Free-form text may not be valid Markdown, retry as plain text
		log.Debug().Int64("chat_id", chatID).Msg("Markdown rejected, resending as plain text")
		msg.ParseMode = ""
		err = n.send(ctx, msg)
	}
	return classify(err)
}

// send bounds one Bot API call by ctx. The library call takes no context, so a
// stalled request is abandoned and left to the HTTP client timeout.
func (n *Notifier) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

// classify maps Telegram API errors onto the delivery error taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	desc := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == 403,
		strings.Contains(desc, "chat not found"),
		strings.Contains(desc, "user is deactivated"),
		strings.Contains(desc, "bot was blocked"),
		strings.Contains(desc, "bot was kicked"):
		return fmt.Errorf("%w: %s", services.ErrRecipientUnreachable, apiErr.Message)
	case apiErr.Code == 429:
		return fmt.Errorf("telegram rate limit, retry after %ds: %w", apiErr.RetryAfter, err)
	default:
		return fmt.Errorf("telegram: %w", err)
	}
}

func isMarkupError(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(strings.ToLower(apiErr.Message), "can't parse entities")
}
