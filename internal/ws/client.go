package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	readLimit    = 32 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one authenticated websocket connection.
type Client struct {
	ID     string
	UserID string
	Email  string

	conn *websocket.Conn
	send chan []byte
}

func NewClient(conn *websocket.Conn, userID, email string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Email:  email,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// Emit queues an outbound event. A connection that cannot drain its
// buffer loses the event rather than stalling every other sender.
func (c *Client) Emit(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	raw, err := json.Marshal(Envelope{Event: name, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// Outbound exposes the send queue; the gateway's write pump and tests
// consume it.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
