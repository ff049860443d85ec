package services

import (
	"context"
	"errors"
	"sync"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

var errFetch = errors.New("discord unavailable")

type fakeReader struct {
	mu      sync.Mutex
	latest  *models.Message
	recent  []models.Message
	err     error
	fetches int
}

func (f *fakeReader) FetchLatest(ctx context.Context) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.latest, nil
}

func (f *fakeReader) FetchRecent(ctx context.Context, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	errs map[int64]error
}

func (f *fakeNotifier) Send(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeNotifier) recipients() map[int64]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]string, len(f.sent))
	for _, m := range f.sent {
		out[m.chatID] = m.text
	}
	return out
}

func restockMessage(id string, fields ...models.EmbedField) models.Message {
	return models.Message{
		ID: id,
		Embeds: []models.Embed{{
			Title:      RestockTitle,
			AuthorName: "⏳01/09/2025 @ 12:30 GMT",
			Fields:     fields,
		}},
	}
}
