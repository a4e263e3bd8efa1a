package realtime

import (
	"encoding/json"
	"time"

	"ordertrack/internal/modules/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one socket connection. Its identity is fixed at handshake.
type Client struct {
	id       string
	userID   int64
	identity *auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	rooms    map[string]struct{} // guarded by Hub.mu
}

func newClient(conn *websocket.Conn, identity *auth.Identity) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   identity.UserID,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// push queues a frame for this connection only.
func (c *Client) push(event string, data any) bool {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) pushError(code, message string) {
	c.push(EventError, ErrorPayload{Code: code, Message: message})
}

// readPump decodes frames until the connection fails, handing each to handle.
func (c *Client) readPump(handle func(*Client, Frame)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Frame
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			c.pushError("INVALID_MESSAGE", "Failed to parse message")
			continue
		}
		handle(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
