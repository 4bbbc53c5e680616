package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Message content tops out at 2000
	// characters, so this is generous.
	maxMessageSize = 16 * 1024

	sendBufferSize = 256
)

// Event is the wire envelope for both directions of the realtime
// channel.
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Client is one realtime chat session: a single authenticated websocket
// connection with its room membership and typing state. The user id is
// bound at upgrade time and never changes.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	// rooms is the session's own joined-room set, keyed by character id.
	rooms map[string]bool
	// typing is the last-known typing state per joined character room.
	typing map[string]bool

	sendMu sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		Hub:    hub,
		rooms:  make(map[string]bool),
		typing: make(map[string]bool),
	}
}

// ReadPump reads events off the socket and dispatches them one at a
// time. Events from a single connection are handled strictly in arrival
// order; a slow generation call delays only this session's next event.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", "conn_id", c.ID, "error", err.Error())
			}
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.Hub.log.Warn("malformed event", "conn_id", c.ID, "error", err.Error())
			continue
		}

		c.handleEvent(event)
	}
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// send marshals and queues an event for this connection. Events for a
// vanished connection are dropped, not retried.
func (c *Client) send(eventType string, content interface{}) {
	payload, err := json.Marshal(content)
	if err != nil {
		c.Hub.log.Error("marshal event content", "type", eventType, "error", err.Error())
		return
	}
	data, err := json.Marshal(Event{Type: eventType, Content: payload})
	if err != nil {
		c.Hub.log.Error("marshal event", "type", eventType, "error", err.Error())
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("send buffer full, dropping event", "conn_id", c.ID)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func marshalEvent(eventType string, content interface{}) []byte {
	payload, _ := json.Marshal(content)
	data, _ := json.Marshal(Event{Type: eventType, Content: payload})
	return data
}
