// Package api — WebSocket hub for real-time market-rate broadcasting.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldsouk/bullion-engine/internal/metrics"
	"github.com/goldsouk/bullion-engine/internal/model"
	"github.com/goldsouk/bullion-engine/internal/quote"
)

// RateMessage is a JSON message sent to WebSocket clients on every
// accepted quote tick. Prices travel as strings to preserve exact
// decimal values.
type RateMessage struct {
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
	Bid        string `json:"bid"`
	Ask        string `json:"ask"`
	Low        string `json:"low,omitempty"`
	High       string `json:"high,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Hub manages WebSocket connections and broadcasts rate updates to all
// connected clients when a new market quote is accepted.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
					metrics.WebSocketClients.Dec()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a quote tick to all connected clients.
func (h *Hub) Broadcast(q model.Quote) {
	msg := RateMessage{
		Type:       "rate_update",
		Instrument: q.Instrument,
		Bid:        q.Bid.String(),
		Ask:        q.Ask.String(),
		Timestamp:  q.Timestamp.Format(time.RFC3339Nano),
	}
	if !q.Low.IsZero() {
		msg.Low = q.Low.String()
	}
	if !q.High.IsZero() {
		msg.High = q.High.String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the quote feed.
	}
}

// Relay forwards accepted quote ticks from the tracker to the hub until
// ctx is cancelled.
func (h *Hub) Relay(ctx context.Context, tracker *quote.Tracker) {
	ticks := tracker.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-ticks:
			metrics.QuoteTicks.Inc()
			h.Broadcast(q)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
