package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is the envelope pushed to connected clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventConnectionEstablished = "CONNECTION_ESTABLISHED"
	EventNewMessage            = "NEW_MESSAGE"
	EventNewNotification       = "NEW_NOTIFICATION"
	EventNotificationUpdated   = "NOTIFICATION_UPDATED"
	EventNotificationDeleted   = "NOTIFICATION_DELETED"
)

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type Client struct {
	UserID uint
	conn   Conn
	send   chan Event
	once   sync.Once
}

// Hub maps a user ID to its single live connection. At most one connection
// per user: registering a new one closes the previous (newest wins). Pushes
// are fire-and-forget. Process-local only; a multi-instance deployment
// needs an external pub/sub instead.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]*Client
}

func NewHub() *Hub {
	return &Hub{clients: map[uint]*Client{}}
}

// Register attaches conn as the live connection for userID, displacing any
// previous one, and pushes CONNECTION_ESTABLISHED.
func (h *Hub) Register(userID uint, conn Conn) *Client {
	c := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, 16),
	}

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = c
	h.mu.Unlock()

	if prev != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced by newer connection")
		_ = prev.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		prev.shutdown()
	}

	go c.writeLoop()
	c.enqueue(Event{Type: EventConnectionEstablished, Payload: map[string]uint{"userID": userID}})

	return c
}

// Unregister removes c if it is still the live connection for its user.
// A client displaced by a newer connection leaves the newer entry alone.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == c {
		delete(h.clients, c.UserID)
	}
	h.mu.Unlock()

	c.shutdown()
}

// Send pushes an event to the user's live connection, if any. Returns
// whether the event was handed to a connection; a missing or saturated
// client drops the event.
func (h *Hub) Send(userID uint, ev Event) bool {
	h.mu.RLock()
	c := h.clients[userID]
	h.mu.RUnlock()

	if c == nil {
		return false
	}
	return c.enqueue(ev)
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID] != nil
}

func (c *Client) enqueue(ev Event) bool {
	defer func() { recover() }() // send channel may be closed by shutdown

	select {
	case c.send <- ev:
		return true
	default:
		log.Printf("ws: dropping %s event for user %d (send buffer full)", ev.Type, c.UserID)
		return false
	}
}

func (c *Client) writeLoop() {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			log.Printf("ws: write to user %d failed: %v", c.UserID, err)
			c.shutdown()
			return
		}
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
