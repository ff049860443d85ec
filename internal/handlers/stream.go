package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 4
)

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// StreamHub pushes every new restock to connected WebSocket clients.
// It is registered with the poller as a dispatcher.
type StreamHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*streamClient
}

func NewStreamHub() *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*streamClient),
	}
}

// Dispatch queues snap for every client. Clients that cannot keep up are dropped.
func (h *StreamHub) Dispatch(snap *models.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode snapshot for stream")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("client_id", id).Msg("Stream client too slow, disconnecting")
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// Len returns the number of connected clients
func (h *StreamHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// ServeWS upgrades the request and streams snapshots until the client disconnects
// GET /api/v1/stock/stream
func (h *StreamHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Info().Str("client_id", c.id).Msg("Stream client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump only handles control frames and detects disconnects
func (h *StreamHub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		log.Info().Str("client_id", c.id).Msg("Stream client disconnected")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client_id", c.id).Msg("Stream read error")
			}
			return
		}
	}
}

func (h *StreamHub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
