// Package events broadcasts live call activity to dashboard observers
// over WebSocket. Delivery is best-effort; a slow observer is dropped
// rather than allowed to stall call handling.
package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second

	// sendBuffer bounds the per-observer queue; overflow disconnects.
	sendBuffer = 64
)

// Event is the wire envelope for one broadcast message.
type Event struct {
	Event string    `json:"event"`
	Data  any       `json:"data"`
	Time  time.Time `json:"time"`
}

type observer struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

// Hub fans events out to connected observers.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	observers map[*observer]struct{}
	closed    bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Auth and CORS policy are enforced by the surrounding
			// middleware; the upgrade itself accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		observers: make(map[*observer]struct{}),
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().Warn("websocket upgrade failed", "error", err)
		return
	}

	obs := &observer{ws: ws, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.observers[obs] = struct{}{}
	n := len(h.observers)
	h.mu.Unlock()
	h.log().Info("observer connected", "observers", n)

	go h.writeLoop(obs)
	h.readLoop(obs)
}

// Publish broadcasts one event to every observer. Never blocks on a slow
// observer.
func (h *Hub) Publish(event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data, Time: time.Now()})
	if err != nil {
		h.log().Error("event marshal failed", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for obs := range h.observers {
		select {
		case obs.send <- payload:
		default:
			// Queue full; the observer is too slow to keep.
			delete(h.observers, obs)
			obs.close()
		}
	}
}

// Observers returns the number of connected observers.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close disconnects all observers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for obs := range h.observers {
		delete(h.observers, obs)
		obs.close()
	}
	h.mu.Unlock()
}

func (h *Hub) drop(obs *observer) {
	h.mu.Lock()
	delete(h.observers, obs)
	h.mu.Unlock()
	obs.close()
}

func (h *Hub) writeLoop(obs *observer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-obs.send:
			if !ok {
				return
			}
			_ = obs.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := obs.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.drop(obs)
				return
			}
		case <-ticker.C:
			_ = obs.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := obs.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(obs)
				return
			}
		}
	}
}

// readLoop consumes inbound frames so control messages are processed;
// observers are read-only and any payload is discarded.
func (h *Hub) readLoop(obs *observer) {
	obs.ws.SetReadLimit(4096)
	for {
		if _, _, err := obs.ws.ReadMessage(); err != nil {
			h.drop(obs)
			return
		}
	}
}

func (obs *observer) close() {
	obs.once.Do(func() {
		close(obs.send)
		_ = obs.ws.Close()
	})
}

func (h *Hub) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
