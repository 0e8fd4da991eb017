package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"botscan/internal"
	"botscan/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	clientBuffer = 64
	pingInterval = 30 * time.Second
)

// SSEHub fans session events out to connected Server-Sent Events clients.
// It implements session.Publisher; Publish never blocks, so a slow client
// loses events rather than stalling the orchestrator.
type SSEHub struct {
	clientsMu sync.RWMutex
	clients   map[string]map[chan session.Event]bool
	closed    bool

	pingInterval time.Duration
	logger       *internal.Logger
}

// NewSSEHub creates an empty hub
func NewSSEHub(logger *internal.Logger) *SSEHub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SSEHub{
		clients:      make(map[string]map[chan session.Event]bool),
		pingInterval: pingInterval,
		logger:       logger.Named("SSE"),
	}
}

// Subscribe registers a client for sessionID. The returned cancel func
// unregisters it and closes the channel.
func (h *SSEHub) Subscribe(sessionID string) (<-chan session.Event, func()) {
	ch := make(chan session.Event, clientBuffer)

	h.clientsMu.Lock()
	if h.closed {
		h.clientsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[chan session.Event]bool)
	}
	h.clients[sessionID][ch] = true
	total := len(h.clients[sessionID])
	h.clientsMu.Unlock()
	h.logger.Debug("client registered for session %s (total clients: %d)", sessionID, total)

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(sessionID, ch) })
	}
}

func (h *SSEHub) unsubscribe(sessionID string, ch chan session.Event) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	clients, exists := h.clients[sessionID]
	if !exists || !clients[ch] {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(h.clients, sessionID)
	}
}

// Publish implements session.Publisher
func (h *SSEHub) Publish(event session.Event) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for ch := range h.clients[event.SessionID] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("client channel full for session %s, dropping %s event", event.SessionID, event.Type)
		}
	}
}

// Disconnect closes every client of sessionID
func (h *SSEHub) Disconnect(sessionID string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for ch := range h.clients[sessionID] {
		close(ch)
	}
	delete(h.clients, sessionID)
}

// Close disconnects everyone and refuses new subscribers
func (h *SSEHub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.closed = true
	for id, clients := range h.clients {
		for ch := range clients {
			close(ch)
		}
		delete(h.clients, id)
	}
}

// GetClientCount returns the number of active clients for a session
func (h *SSEHub) GetClientCount(sessionID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[sessionID])
}

// HandleSSE streams a session to the client. The first event is a snapshot
// of the current view so a late subscriber can render without replaying.
func (h *SSEHub) HandleSSE(o *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := h.Subscribe(o.ID())
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		if snapshot, err := json.Marshal(o.Snapshot()); err == nil {
			c.SSEvent("snapshot", string(snapshot))
			c.Writer.Flush()
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case event, ok := <-events:
				if !ok {
					return false
				}
				eventJSON, err := json.Marshal(event)
				if err != nil {
					h.logger.Error("failed to marshal event: %v", err)
					return true
				}
				c.SSEvent("session", string(eventJSON))
				return true

			case <-ticker.C:
				c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
				return true

			case <-ctx.Done():
				return false
			}
		})
	}
}
