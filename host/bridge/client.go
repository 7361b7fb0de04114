package bridge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Command lines are short; sequences stay well under this
	maxMessageSize = 64 * 1024
)

// client is one browser connection
type client struct {
	id     string
	bridge *Bridge
	conn   *websocket.Conn
	send   chan Message

	// replies to this client's own commands; never closed
	replies chan Message
}

// run pumps both directions and returns when the connection closes
func (c *client) run() {
	go c.writePump()
	c.readPump()
}

// readPump forwards browser messages to the hub as command lines
func (c *client) readPump() {
	defer func() {
		select {
		case c.bridge.unregister <- c:
		case <-c.bridge.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		reply := Message{Kind: KindAck, At: time.Now().UnixMilli()}
		if err := c.bridge.forward(line); err != nil {
			c.bridge.logger.Warn("rejected browser command", "client", c.id, "error", err)
			reply.Kind = KindError
			reply.Text = err.Error()
		}
		select {
		case c.replies <- reply:
		default:
		}
	}
}

// writePump is the only writer on the connection
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case msg := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, _ := json.Marshal(msg)
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
