package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"chat-sync-service/internal/observability"
)

const sendQueueSize = 64

// Client adapts a gorilla websocket connection into a registry endpoint.
// Writes go through a buffered queue drained by a dedicated goroutine, so
// a slow or dead peer never blocks the caller; overflow drops the payload.
type Client struct {
	id     string
	userID int
	conn   *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(userID int, conn *websocket.Conn) *Client {
	return &Client{
		id:     newConnID(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() int {
	return c.userID
}

// Send enqueues a payload without blocking. Payloads to a closed or
// saturated client are dropped; delivery-status self-corrects over the
// fetch path.
func (c *Client) Send(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- payload:
	default:
		observability.IncWSDroppedPayload()
	}
}

// WriteLoop drains the send queue onto the wire. It exits on the first
// write error or when the client is closed.
func (c *Client) WriteLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error: %v", err)
				c.Close()
				return
			}
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
