// Package events broadcasts JSON events to WebSocket clients.
//
// A Hub holds the process-wide set of connected clients. Other packages
// depend only on the Publisher interface.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/logging"
)

// Event types.
const (
	TypeSpecCreated        = "spec.created"
	TypeSpecUpdated        = "spec.updated"
	TypeSpecDeleted        = "spec.deleted"
	TypeEnvironmentCreated = "environment.created"
	TypeEnvironmentUpdated = "environment.updated"
	TypeEnvironmentDeleted = "environment.deleted"
	TypeEnvironmentStatus  = "environment.status"
	TypeCallRecorded       = "call.recorded"
	TypeAnalyticsCleared   = "analytics.cleared"
	TypeSettingsUpdated    = "settings.updated"
	TypeConnected          = "connected"
)

// Event is one message sent to clients.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events to whoever is listening.
type Publisher interface {
	Publish(eventType string, data any)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) {}

const (
	defaultWriteTimeout = 5 * time.Second
	defaultBufferSize   = 64
	readLimit           = 4096
)

type client struct {
	id   string
	conn *websocket.Conn
	addr string
	send chan []byte

	// done is closed when the hub detaches the client; status and reason
	// are set before that and tell the writer how to close.
	done   chan struct{}
	status websocket.StatusCode
	reason string
}

// Hub is the set of connected WebSocket clients. Every client has its own
// send queue drained by its connection goroutine, so Publish never waits on
// the network.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*client
	closed       bool
	writeTimeout time.Duration
	bufferSize   int
	origins      []string
	onCount      func(int)
	log          *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithWriteTimeout bounds how long one client write may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

// WithBufferSize sets how many events may queue for one client before it is
// disconnected as too slow.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithOriginPatterns sets the origins allowed to connect. With no patterns
// only same-host requests are accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// WithClientCountHook is called with the client count after every change.
func WithClientCountHook(fn func(int)) Option {
	return func(h *Hub) { h.onCount = fn }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[string]*client),
		writeTimeout: defaultWriteTimeout,
		bufferSize:   defaultBufferSize,
		log:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and writes queued events to the client
// until it disconnects or is detached. The stream is one-way: a client that
// sends a data message is disconnected.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Debug("websocket accept failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(readLimit)
	ctx := conn.CloseRead(r.Context())

	c := &client{
		id:     id.Short(),
		conn:   conn,
		addr:   r.RemoteAddr,
		send:   make(chan []byte, h.bufferSize),
		done:   make(chan struct{}),
		status: websocket.StatusNormalClosure,
	}
	c.send <- mustMarshal(Event{
		Type:      TypeConnected,
		Data:      map[string]string{"clientId": c.id},
		Timestamp: time.Now().UTC(),
	})
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.detach(c, websocket.StatusNormalClosure, "")
			_ = conn.CloseNow()
			return
		case <-c.done:
			_ = conn.Close(c.status, c.reason)
			return
		case data := <-c.send:
			if !h.write(ctx, c, data) {
				h.detach(c, websocket.StatusNormalClosure, "")
				_ = conn.CloseNow()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("event client connected", "client", c.id, "remote", c.addr)
	h.countChanged(n)
	return true
}

// detach unregisters c and signals its connection goroutine to close with
// status. It never touches the network.
func (h *Hub) detach(c *client, status websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	if ok {
		c.status, c.reason = status, reason
		close(c.done)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.log.Debug("event client disconnected", "client", c.id, "reason", reason)
	h.countChanged(n)
}

func (h *Hub) countChanged(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Broadcast queues ev for every connected client and returns without
// waiting for delivery. A client whose queue is full is disconnected. A zero
// Timestamp is set to now.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow event client", "client", c.id, "remote", c.addr)
		h.detach(c, websocket.StatusPolicyViolation, "client too slow")
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(eventType string, data any) {
	h.Broadcast(Event{Type: eventType, Data: data})
}

func (h *Hub) write(ctx context.Context, c *client, data []byte) bool {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.log.Debug("event write failed", "client", c.id, "error", err)
		return false
	}
	return true
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones. Connections are
// closed by their own goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.detach(c, websocket.StatusGoingAway, "server shutting down")
	}
}

func mustMarshal(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	return data
}
