// Package realtime pushes notifications to connected websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ErrBufferFull is returned when a client is not draining its messages.
var ErrBufferFull = errors.New("realtime: client send buffer full")

// ErrClosed is returned when sending to a connection that has gone away.
var ErrClosed = errors.New("realtime: connection closed")

// Connection is one websocket client subscribed as a user.
type Connection struct {
	userID string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// UserID returns the subscribed user.
func (c *Connection) UserID() string {
	return c.userID
}

// SendMessage queues msg without blocking.
func (c *Connection) SendMessage(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

func (c *Connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Hub tracks live connections per user. It implements notify.Dispatcher.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	conns    map[string]map[*Connection]struct{}
	log      *logrus.Entry
}

// NewHub creates an empty Hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]map[*Connection]struct{}),
		log:   logger.WithField("component", "realtime"),
	}
}

// ServeHTTP upgrades the request and subscribes it as the user named by the
// "user" query parameter or the X-User-ID header.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}
	if userID == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &Connection{
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*Connection]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	h.log.WithField("user", c.userID).Debug("client connected")
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	if set, ok := h.conns[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
	h.log.WithField("user", c.userID).Debug("client disconnected")
}

// readPump drains client frames so control messages are processed; it
// returns when the client goes away.
func (h *Hub) readPump(c *Connection) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("user", c.userID).Debug("websocket read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ForEach calls fn for every live connection of userID. The first error
// stops iteration.
func (h *Hub) ForEach(userID string, fn func(c *Connection) error) error {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Connections returns the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Dispatch pushes n as JSON to each of the recipient's connections.
// Clients that fall behind miss the message.
func (h *Hub) Dispatch(_ context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	var dropped int
	_ = h.ForEach(n.RecipientID, func(c *Connection) error {
		if err := c.SendMessage(payload); err != nil {
			dropped++
		}
		return nil
	})
	if dropped > 0 {
		return errors.Wrapf(ErrBufferFull, "dropped notification %s for %d connection(s)", n.ID, dropped)
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Connection
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
