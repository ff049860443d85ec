package tgbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/services"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

// Config holds the Telegram bot settings
type Config struct {
	// ChannelID is the channel users must join, "@username" or a numeric id.
	// Empty disables the subscription check.
	ChannelID  string
	ChannelURL string
	AdminIDs   []int64
}

// Announcer sends an unfiltered message to every subscriber
type Announcer interface {
	Announce(ctx context.Context, text string) models.DispatchReport
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot serves the interactive Telegram commands
type Bot struct {
	api       botAPI
	updates   updateSource
	cfg       Config
	admins    map[int64]bool
	registry  *services.Registry
	sessions  *services.SessionStore
	stock     *services.StockService
	store     storage.Store
	announcer Announcer
	wg        sync.WaitGroup
}

// NewAPI connects to the Bot API for receiving updates and answering commands.
// Long polling holds a request open for up to 60s on top of requestTimeout.
func NewAPI(token string, requestTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	return newAPI(token, tgbotapi.APIEndpoint, &http.Client{Timeout: requestTimeout + 60*time.Second})
}

// NewSendAPI connects to the Bot API for notification delivery. Every request is
// bounded by sendTimeout.
func NewSendAPI(token string, sendTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	return newAPI(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
}

func newAPI(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Dur("timeout", client.Timeout).Msg("Telegram bot authorized")
	return api, nil
}

func New(api *tgbotapi.BotAPI, cfg Config, registry *services.Registry, sessions *services.SessionStore,
	stock *services.StockService, store storage.Store, announcer Announcer) *Bot {
	b := newBot(api, cfg, registry, sessions, stock, store, announcer)
	b.updates = api
	return b
}

func newBot(api botAPI, cfg Config, registry *services.Registry, sessions *services.SessionStore,
	stock *services.StockService, store storage.Store, announcer Announcer) *Bot {
	if cfg.ChannelURL == "" && strings.HasPrefix(cfg.ChannelID, "@") {
		cfg.ChannelURL = "https://t.me/" + strings.TrimPrefix(cfg.ChannelID, "@")
	}
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Bot{
		api:       api,
		cfg:       cfg,
		admins:    admins,
		registry:  registry,
		sessions:  sessions,
		stock:     stock,
		store:     store,
		announcer: announcer,
	}
}

// Run receives updates until ctx is done and waits for in-flight handlers
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)

	log.Info().Msg("Telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			b.wg.Wait()
			log.Info().Msg("Telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	// Subscribers, preferences and sessions are all keyed by the sender
	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	if msg.IsCommand() {
		switch strings.ToLower(msg.Command()) {
		case "start":
			b.handleStart(ctx, chatID, userID)
		case "all":
			b.handleAnnounce(ctx, chatID, userID, msg.CommandArguments())
		default:
			b.reply(chatID, navigationText, mainKeyboard(), false)
		}
		return
	}

	if !b.isSubscribed(userID) {
		b.reply(chatID, subscriptionText, subscriptionKeyboard(b.cfg.ChannelURL), false)
		return
	}
	if err := b.registry.Add(ctx, userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to register user")
		b.reply(chatID, storageFailText, nil, false)
		return
	}

	switch msg.Text {
	case ButtonStock:
		b.handleStock(ctx, chatID, userID)
	case ButtonSettings:
		b.showSettings(ctx, chatID, userID, 0)
	default:
		b.reply(chatID, navigationText, mainKeyboard(), false)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64) {
	if !b.isSubscribed(userID) {
		b.reply(chatID, greetingPrefix+subscriptionText, subscriptionKeyboard(b.cfg.ChannelURL), false)
		return
	}
	if err := b.registry.Add(ctx, userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to register user")
		b.reply(chatID, storageFailText, nil, false)
		return
	}
	b.reply(chatID, welcomeText, mainKeyboard(), false)
}

func (b *Bot) handleAnnounce(ctx context.Context, chatID, userID int64, args string) {
	if !b.admins[userID] {
		log.Warn().Int64("user_id", userID).Msg("Broadcast attempt by non-admin")
		b.reply(chatID, navigationText, mainKeyboard(), false)
		return
	}
	text := strings.TrimSpace(args)
	if text == "" {
		b.reply(chatID, broadcastUsage, nil, false)
		return
	}

	report := b.announcer.Announce(ctx, text)
	b.reply(chatID, broadcastResultText(report), nil, false)
}

// handleStock shows the latest stock filtered by the user's confirmed preference
func (b *Bot) handleStock(ctx context.Context, chatID, userID int64) {
	pending, err := b.api.Send(tgbotapi.NewMessage(chatID, fetchingText))
	if err == nil {
		defer b.deleteMessage(chatID, pending.MessageID)
	}

	pref, err := b.store.GetPreference(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to load preference")
		b.reply(chatID, storageFailText, mainKeyboard(), false)
		return
	}

	snap, err := b.stock.Latest(ctx)
	if err != nil {
		if !errors.Is(err, services.ErrNoStock) {
			log.Error().Err(err).Msg("Failed to get latest stock")
		}
		b.reply(chatID, services.StockUnavailableText, mainKeyboard(), false)
		return
	}

	text := services.RenderFor(snap, pref.Ignored, false, services.FilteredEmptyText)
	b.reply(chatID, text, mainKeyboard(), true)
}

// showSettings sends the settings menu, or redraws it in place when messageID is set
func (b *Bot) showSettings(ctx context.Context, chatID, userID int64, messageID int) {
	ignored, err := b.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to open settings")
		b.reply(chatID, storageFailText, nil, false)
		return
	}

	if messageID == 0 {
		b.reply(chatID, settingsText(ignored), settingsKeyboard(ignored), true)
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, settingsText(ignored), settingsKeyboard(ignored))
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to redraw settings menu")
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		b.answer(q.ID, "", false)
		return
	}
	userID := q.From.ID
	chatID := q.Message.Chat.ID
	data := q.Data

	switch {
	case strings.HasPrefix(data, callbackTogglePrefix):
		b.answer(q.ID, "", false)
		tier, err := catalog.ParseTier(strings.TrimPrefix(data, callbackTogglePrefix))
		if err != nil {
			log.Warn().Err(err).Str("data", data).Msg("Invalid toggle callback")
			return
		}
		if _, err := b.sessions.Toggle(ctx, userID, tier); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to toggle tier")
			b.reply(chatID, storageFailText, nil, false)
			return
		}
		b.showSettings(ctx, chatID, userID, q.Message.MessageID)

	case data == callbackPreview:
		b.answer(q.ID, "", false)
		b.previewFilter(ctx, chatID, userID)

	case data == callbackConfirm:
		b.confirmSettings(ctx, q, chatID, userID)

	case data == callbackCheckSubscription:
		b.answer(q.ID, "", false)
		b.recheckSubscription(ctx, chatID, userID, q.Message.MessageID)

	default:
		b.answer(q.ID, "", false)
	}
}

// previewFilter shows the latest stock through the pending, uncommitted filter
func (b *Bot) previewFilter(ctx context.Context, chatID, userID int64) {
	ignored, err := b.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		b.reply(chatID, storageFailText, nil, false)
		return
	}
	snap, err := b.stock.Latest(ctx)
	if err != nil {
		b.reply(chatID, services.StockUnavailableText, nil, false)
		return
	}
	b.reply(chatID, services.RenderFor(snap, ignored, false, services.PreviewEmptyText), nil, true)
}

func (b *Bot) confirmSettings(ctx context.Context, q *tgbotapi.CallbackQuery, chatID, userID int64) {
	ok, err := b.sessions.Commit(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to save preference")
	}
	if err != nil || !ok {
		b.answer(q.ID, saveFailAlert, true)
		return
	}
	b.answer(q.ID, "", false)

	pref, err := b.store.GetPreference(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to reload preference")
		pref = &models.UserPreference{UserID: userID}
	}

	b.deleteMessage(chatID, q.Message.MessageID)
	b.reply(chatID, savedText(pref.Ignored), mainKeyboard(), true)
}

func (b *Bot) recheckSubscription(ctx context.Context, chatID, userID int64, messageID int) {
	if !b.isSubscribed(userID) {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			subscriptionMissingPrefix+subscriptionText, subscriptionKeyboard(b.cfg.ChannelURL))
		if _, err := b.api.Send(edit); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to update subscription prompt")
		}
		return
	}

	b.deleteMessage(chatID, messageID)
	if err := b.registry.Add(ctx, userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to register user")
		b.reply(chatID, storageFailText, nil, false)
		return
	}
	b.handleStock(ctx, chatID, userID)
}

// isSubscribed checks channel membership. Lookup failures let the user through.
func (b *Bot) isSubscribed(userID int64) bool {
	if b.cfg.ChannelID == "" {
		return true
	}

	cfg := tgbotapi.GetChatMemberConfig{ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID}}
	if id, err := strconv.ParseInt(b.cfg.ChannelID, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = b.cfg.ChannelID
	}

	member, err := b.api.GetChatMember(cfg)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Subscription check failed")
		return true
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true
	default:
		return false
	}
}

func (b *Bot) reply(chatID int64, text string, markup interface{}, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) answer(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := b.api.Request(cb); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to delete message")
	}
}
