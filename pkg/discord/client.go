package discord

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// maxMessagesPerRequest is the Discord API limit for a single history request
const maxMessagesPerRequest = 100

// Client reads the announcement channel through the Discord REST API
type Client struct {
	session   *discordgo.Session
	channelID string
	limiter   *rate.Limiter
}

// Config holds the Discord client settings
type Config struct {
	// Token is sent as-is in the Authorization header; bot tokens need the "Bot " prefix
	Token     string
	ChannelID string
	Timeout   time.Duration
	// MinInterval spaces out consecutive requests, zero disables pacing
	MinInterval time.Duration
}

// NewClient creates a REST-only Discord session. No gateway connection is opened.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord token and channel id are required")
	}

	s, err := discordgo.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s.Client = &http.Client{Timeout: timeout}
	s.MaxRestRetries = 1

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &Client{
		session:   s,
		channelID: cfg.ChannelID,
		limiter:   limiter,
	}, nil
}

// FetchLatest returns the newest message of the channel, nil if the channel is empty
func (c *Client) FetchLatest(ctx context.Context) (*models.Message, error) {
	msgs, err := c.FetchRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// FetchRecent returns up to limit messages, newest first
func (c *Client) FetchRecent(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > maxMessagesPerRequest {
		limit = maxMessagesPerRequest
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := c.session.ChannelMessages(c.channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord channel messages: %w", err)
	}

	msgs := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		msgs = append(msgs, toMessage(m))
	}
	return msgs, nil
}

// toMessage converts a Discord message into the transport-neutral model
func toMessage(m *discordgo.Message) models.Message {
	msg := models.Message{
		ID:     m.ID,
		Embeds: make([]models.Embed, 0, len(m.Embeds)),
	}
	if !m.Timestamp.IsZero() {
		msg.Timestamp = m.Timestamp.Format(time.RFC3339)
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		embed := models.Embed{Title: e.Title}
		if e.Author != nil {
			embed.AuthorName = e.Author.Name
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			embed.Fields = append(embed.Fields, models.EmbedField{Name: f.Name, Value: f.Value})
		}
		msg.Embeds = append(msg.Embeds, embed)
	}
	return msg
}
