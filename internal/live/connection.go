package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps one client websocket, serializing writes through a
// buffered channel the way the teacher's ws.Connection does.
type Connection struct {
	username string
	conn     *websocket.Conn
	hub      *Hub
	sendCh   chan []byte
	once     sync.Once
	done     chan struct{}
}

// NewConnection wraps conn for username and registers it with hub.
func NewConnection(hub *Hub, conn *websocket.Conn, username string) *Connection {
	c := &Connection{
		username: username,
		conn:     conn,
		hub:      hub,
		sendCh:   make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	hub.Register(username, c)
	return c
}

// Send queues a frame for delivery. A full queue drops the frame rather than
// block the hub — a slow reader should not stall pushes to everyone else.
func (c *Connection) Send(frame []byte) {
	select {
	case c.sendCh <- frame:
	default:
		c.hub.log.Warn("live: dropping frame, send queue full", slog.String("user", c.username))
	}
}

// Serve runs the read and write pumps until the connection closes. It blocks
// the caller; run it in its own goroutine per accepted websocket.
func (c *Connection) Serve() {
	hello, _ := json.Marshal(Envelope{Op: OpHello})
	c.Send(hello)

	go c.writePump()
	c.readPump()
}

func (c *Connection) readPump() {
	defer c.close()
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Inbound frames are heartbeats only; content is ignored.
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (c *Connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.Unregister(c.username, c)
	})
}
