package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one realtime connection. AuthUserID is the user the connection
// was authenticated as at upgrade time, or 0 for an anonymous connection.
type Client struct {
	ID         string
	AuthUserID int64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// userID is the announced identity. Owned by the hub goroutine.
	userID      int64
	announcedAt uint64
}

func NewClient(hub *Hub, conn *websocket.Conn, authUserID int64) *Client {
	return &Client{
		ID:         uuid.NewString(),
		AuthUserID: authUserID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
	}
}

// ReadPump forwards decoded frames to the hub until the connection fails,
// then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("realtime connection closed unexpectedly", "connection_id", c.ID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			env = Envelope{}
		}
		if !c.hub.dispatch(inbound{client: c, envelope: env}) {
			return
		}
	}
}

// WritePump drains the send buffer to the connection and keeps it alive
// with pings. It exits when the hub closes the buffer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
