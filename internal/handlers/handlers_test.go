package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/services"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

const testSecret = "test-secret"

type staticStock struct {
	snap *models.Snapshot
}

func (s staticStock) Latest(ctx context.Context) (*models.Snapshot, error) {
	if s.snap == nil {
		return nil, services.ErrNoStock
	}
	return s.snap, nil
}

type recordingAnnouncer struct {
	texts []string
}

func (a *recordingAnnouncer) Announce(ctx context.Context, text string) models.DispatchReport {
	a.texts = append(a.texts, text)
	return models.DispatchReport{BatchID: "b1", Total: 1, Notified: 1}
}

func newTestServer(t *testing.T, snap *models.Snapshot) (*httptest.Server, *recordingAnnouncer, *StreamHub) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.AddOrTouch(context.Background(), 1)

	announcer := &recordingAnnouncer{}
	hub := NewStreamHub()
	router := NewRouter(RouterConfig{
		Stock:     NewStockHandler(staticStock{snap: snap}),
		Admin:     NewAdminHandler(store, announcer, func() int { return 1 }),
		Stream:    hub,
		JWTSecret: testSecret,
		AdminIDs:  []int64{42},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, announcer, hub
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{MessageID: "9", ObservedAt: "01/09/2025 15:30", Items: []models.StockItem{
		{Name: "Cactus", Tier: catalog.TierRare, Quantity: 5},
		{Name: "Tomatrio", Tier: catalog.TierSecret, Quantity: 1},
	}}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestGetLatestStock(t *testing.T) {
	srv, _, _ := newTestServer(t, sampleSnapshot())

	resp, err := http.Get(srv.URL + "/api/v1/stock?ignore=secret")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body struct {
		MessageID string             `json:"message_id"`
		Items     []models.StockItem `json:"items"`
		Ignored   []string           `json:"ignored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.MessageID != "9" || len(body.Items) != 1 || body.Items[0].Name != "Cactus" {
		t.Errorf("unexpected body %+v", body)
	}
	if len(body.Ignored) != 1 || body.Ignored[0] != "SECRET" {
		t.Errorf("unexpected ignored %v", body.Ignored)
	}
}

func TestGetLatestStock_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, _ := http.Get(srv.URL + "/api/v1/stock")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/v1/stock?ignore=COMMON")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func adminRequest(t *testing.T, method, url, body, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestAdminAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	url := srv.URL + "/api/v1/admin/stats"

	resp := adminRequest(t, http.MethodGet, url, "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", resp.StatusCode)
	}

	other, _ := NewAdminToken(testSecret, 7, "someone", time.Hour)
	resp = adminRequest(t, http.MethodGet, url, "", other)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin: expected 403, got %d", resp.StatusCode)
	}

	expired, _ := NewAdminToken(testSecret, 42, "admin", -time.Minute)
	resp = adminRequest(t, http.MethodGet, url, "", expired)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expired: expected 401, got %d", resp.StatusCode)
	}

	forged, _ := NewAdminToken("other-secret", 42, "admin", time.Hour)
	resp = adminRequest(t, http.MethodGet, url, "", forged)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", resp.StatusCode)
	}

	valid, _ := NewAdminToken(testSecret, 42, "admin", time.Hour)
	resp = adminRequest(t, http.MethodGet, url, "", valid)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid: expected 200, got %d", resp.StatusCode)
	}

	var stats struct {
		TotalUsers int `json:"total_users"`
		Registered int `json:"registered"`
	}
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats.TotalUsers != 1 || stats.Registered != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAdminBroadcast(t *testing.T) {
	srv, announcer, _ := newTestServer(t, nil)
	token, _ := NewAdminToken(testSecret, 42, "admin", time.Hour)
	url := srv.URL + "/api/v1/admin/broadcast"

	resp := adminRequest(t, http.MethodPost, url, `{"text": "  "}`, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank text: expected 400, got %d", resp.StatusCode)
	}

	resp = adminRequest(t, http.MethodPost, url, `{"text": "new season"}`, token)
	defer resp.Body.Close()
	var report models.DispatchReport
	json.NewDecoder(resp.Body).Decode(&report)
	if report.BatchID != "b1" || len(announcer.texts) != 1 || announcer.texts[0] != "new season" {
		t.Errorf("unexpected result %+v, %v", report, announcer.texts)
	}
}

func TestStockStream(t *testing.T) {
	srv, _, hub := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stock/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected one client, got %d", hub.Len())
	}

	hub.Dispatch(sampleSnapshot())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.MessageID != "9" || len(got.Items) != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
}
