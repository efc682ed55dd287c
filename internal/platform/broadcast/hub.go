// Package broadcast pushes JSON state documents to WebSocket subscribers.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out every published document to all connected clients. Each
// document is a complete state, so a slow client loses the oldest queued
// ones and still ends on the latest.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub returns an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // operator front-ends are served from other origins
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish encodes v and queues it for every client. New clients receive the
// most recent document on connect.
func (h *Hub) Publish(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode broadcast", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.last = msg
	for c := range h.clients {
		enqueueLatest(c.send, msg)
	}
	h.mu.Unlock()
}

// enqueueLatest queues msg, discarding the oldest queued document when the
// buffer is full so the newest state always reaches the client. Callers hold
// the Hub lock, so no other sender races for the freed slot.
func enqueueLatest(send chan []byte, msg []byte) {
	select {
	case send <- msg:
		return
	default:
	}
	select {
	case <-send:
	default:
	}
	select {
	case send <- msg:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams documents until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("websocket client connected", slog.String("remote", r.RemoteAddr), slog.Int("clients", n))

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Drain reads so close frames and pings are handled.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	n = len(h.clients)
	h.mu.Unlock()
	close(done)
	conn.Close()
	h.log.Info("websocket client disconnected", slog.String("remote", r.RemoteAddr), slog.Int("clients", n))
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
