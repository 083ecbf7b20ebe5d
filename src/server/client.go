package server

import (
	"encoding/json"
	"sync"
	"time"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultSendBuffer = 256

	rejectInboundMessage = "You can't send messages to this server"
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is the websocket Sink. Frames are queued on send and written by
// writePump, the only goroutine that writes to conn.
type Client struct {
	hub    *Hub
	handle string
	conn   *websocket.Conn
	logger *logger.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, sendBuffer int, log *logger.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		logger: log,
		send:   make(chan []byte, sendBuffer),
	}
}

// -----------------------------------------------------------------------------

// Send queues payload without blocking
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return helpers.ErrSinkClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return helpers.ErrSinkBackpressure
	}
}

// Close stops the write pump once the queued frames are flushed
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// -----------------------------------------------------------------------------
// readPump - watches the connection; the stream is push-only
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer c.hub.Unregister(c.handle)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	_, _, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.Info("WebSocket error: %v", err)
		}
		return
	}

	reply, _ := json.Marshal(models.MInfoMessage{Type: models.MessageTypeInfo, Value: rejectInboundMessage})
	if err := c.Send(reply); err != nil {
		c.logger.Debug("Could not queue reject reply for %s: %v", c.handle, err)
	}
	c.logger.Info("Client %s sent a message, closing connection", c.handle)
}

// -----------------------------------------------------------------------------
// writePump - sends queued frames to the client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Info("Write error: %v", err)
				c.hub.Unregister(c.handle)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c.handle)
				return
			}
		}
	}
}
