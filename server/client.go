package server

import (
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/utsavbalhara/promptdj/messages"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// client is one connected frontend. Outbound messages flow through a
// buffered channel so broadcasts from the control loop never block.
type client struct {
	id        string
	conn      *websocket.Conn
	writeChan chan *messages.ServerMessage
	closeChan chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:        uuid.New().String(),
		conn:      conn,
		writeChan: make(chan *messages.ServerMessage, writeBufferSize),
		closeChan: make(chan struct{}),
	}
}

func (c *client) queueMessage(msg *messages.ServerMessage) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}
	select {
	case c.writeChan <- msg:
	default:
		// Queue full, drop message (shouldn't happen with proper sizing)
	}
}

func (c *client) writePump() {
	defer func() {
		// Send close message before exiting
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-c.closeChan:
			return
		case msg, ok := <-c.writeChan:
			if !ok {
				return
			}
			if err := c.writeMessage(msg); err != nil {
				return
			}

			// Drain whatever queued up while we were writing.
			n := len(c.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-c.writeChan:
					if !ok {
						return
					}
					if err := c.writeMessage(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

func (c *client) writeMessage(msg *messages.ServerMessage) error {
	raw, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("⚠️ Failed to encode message for client %s: %v", c.id, err)
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// close tears the connection down. Safe to call more than once.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeChan)
	c.conn.Close()
}
