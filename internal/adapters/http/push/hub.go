// Package push streams view frames to renderer clients over WebSocket.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/speedglobe/pkg/logger"
	"github.com/okian/speedglobe/pkg/metrics"
)

const (
	defaultSendBuffer = 16
	writeWait         = 2 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxMessageBytes   = 4096
)

// Message types.
const (
	TypeWelcome = "welcome"
	TypeFrame   = "frame"
	TypeError   = "error"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("push hub closed")

// Message is the envelope of every pushed payload.
type Message struct {
	Type   string `json:"type"`
	Client string `json:"client,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Snapshot returns the payload sent to a client right after it connects.
type Snapshot func(ctx context.Context) (any, error)

// Receiver handles a text message sent by a client. A returned error is
// pushed back to that client only.
type Receiver func(ctx context.Context, clientID string, msg []byte) error

// Stats describes the connected clients.
type Stats struct {
	Clients    int    `json:"clients"`
	Broadcasts uint64 `json:"broadcasts"`
	Dropped    uint64 `json:"dropped"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithSnapshot sets the payload sent on connect.
func WithSnapshot(s Snapshot) Option { return func(h *Hub) { h.snapshot = s } }

// WithReceiver sets the handler for client messages.
func WithReceiver(r Receiver) Option { return func(h *Hub) { h.receiver = r } }

// WithSendBuffer sets how many frames may queue for a slow client before
// it is disconnected.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// Hub fans frames out to every connected client. Each client has its own
// writer goroutine so one slow renderer cannot stall a broadcast.
type Hub struct {
	upgrader   websocket.Upgrader
	snapshot   Snapshot
	receiver   Receiver
	sendBuffer int
	logger     logger.Logger

	mu         sync.RWMutex
	clients    map[string]*client
	closed     bool
	broadcasts uint64
	dropped    uint64
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The globe page may be served from another origin during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: defaultSendBuffer,
		logger:     logger.Get().Named("push"),
		clients:    make(map[string]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish broadcasts a frame. It satisfies the service's publisher.
func (h *Hub) Publish(ctx context.Context, frame any) error {
	return h.Broadcast(ctx, Message{Type: TypeFrame, Data: frame})
}

// Broadcast queues msg for every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) Broadcast(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.broadcasts++
	h.dropped += uint64(len(slow))
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn(ctx, "dropping slow renderer", logger.String("client", c.id))
		h.remove(c)
	}
	metrics.RecordWebSocketBroadcast()
	return nil
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	ctx := r.Context()
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, h.sendBuffer)}

	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Info(ctx, "renderer connected", logger.String("client", c.id))

	h.enqueue(c, Message{Type: TypeWelcome, Client: c.id})
	if h.snapshot != nil {
		if frame, err := h.snapshot(ctx); err != nil {
			h.enqueue(c, Message{Type: TypeError, Data: err.Error()})
		} else if frame != nil {
			h.enqueue(c, Message{Type: TypeFrame, Data: frame})
		}
	}

	go h.writeLoop(c)
	h.readLoop(ctx, c)

	h.remove(c)
	h.logger.Info(ctx, "renderer disconnected", logger.String("client", c.id))
}

// enqueue queues msg for c alone, dropping it when c's buffer is full.
func (h *Hub) enqueue(c *client, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage || h.receiver == nil {
			continue
		}
		if err := h.receiver(ctx, c.id, msg); err != nil {
			h.enqueue(c, Message{Type: TypeError, Data: err.Error()})
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.UpdateWebSocketClients(len(h.clients))
	return true
}

// remove unregisters c and closes its send channel, which ends its writer.
func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		metrics.UpdateWebSocketClients(len(h.clients))
		h.mu.Unlock()
		close(c.send)
	})
}

// Stats returns client and broadcast counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Clients: len(h.clients), Broadcasts: h.broadcasts, Dropped: h.dropped}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
