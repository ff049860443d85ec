package tgbot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akagifreeez/seed-restock-bot/internal/services"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unreachable bool
	}{
		{"blocked", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, true},
		{"chat not found", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, true},
		{"deactivated", &tgbotapi.Error{Code: 403, Message: "Forbidden: user is deactivated"}, true},
		{"flood", &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5",
			ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5}}, false},
		{"server", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, services.ErrRecipientUnreachable); got != tt.unreachable {
				t.Errorf("unreachable = %v, want %v (%v)", got, tt.unreachable, err)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestNotifier_RetriesPlainTextOnMarkupError(t *testing.T) {
	api := &fakeAPI{sendErrs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}}}
	n := NewNotifier(api, nil)

	if err := n.Send(context.Background(), 9, "*broken"); err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one delivered message, got %d", len(api.sent))
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	if msg.ParseMode != "" || msg.ChatID != 9 {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestNotifier_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Send(ctx, 1, "hi"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Error("nothing should be sent after cancellation")
	}
}

// stallingBotServer answers getMe and holds every sendMessage until the test ends
func stallingBotServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"test_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			select {
			case <-release:
			case <-r.Context().Done():
			}
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":9,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestNotifier_SendBoundedByContext(t *testing.T) {
	srv := stallingBotServer(t)
	// The HTTP client alone would wait far longer than the send deadline
	api, err := newAPI("123:abc", srv.URL+"/bot%s/%s", &http.Client{Timeout: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	n := NewNotifier(api, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = n.Send(ctx, 9, "restock")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, services.ErrRecipientUnreachable) {
		t.Error("a timeout must not evict the subscriber")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("send returned after %v", elapsed)
	}
}

func TestNotifier_SendClientTimeout(t *testing.T) {
	srv := stallingBotServer(t)
	api, err := newAPI("123:abc", srv.URL+"/bot%s/%s", &http.Client{Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	n := NewNotifier(api, nil)

	start := time.Now()
	if err := n.Send(context.Background(), 9, "restock"); err == nil {
		t.Fatal("expected the stalled request to fail")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("send returned after %v", elapsed)
	}
}
