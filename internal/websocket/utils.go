package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// minIdle keeps short practice exams from dropping sockets between pings.
	minIdle = time.Minute
	// maxMessageSize comfortably fits an autosave request.
	maxMessageSize = 512
)

// Conn is an exam socket. Reads are capped at maxMessageSize and may idle for
// at most the exam length.
type Conn struct {
	*websocket.Conn
	idle time.Duration
}

// NewConn wraps an upgraded connection for an exam of the given length.
func NewConn(conn *websocket.Conn, examDuration time.Duration) *Conn {
	conn.SetReadLimit(maxMessageSize)
	return &Conn{Conn: conn, idle: idleFor(examDuration)}
}

func idleFor(examDuration time.Duration) time.Duration {
	if examDuration < minIdle {
		return minIdle
	}
	return examDuration
}

// IdleTimeout is the longest gap allowed between client messages.
func (c *Conn) IdleTimeout() time.Duration {
	return c.idle
}

// WriteTyped sends a typed event payload.
func (c *Conn) WriteTyped(v interface{}) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.WriteJSON(v)
}

// WriteError sends an error event.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadRequest waits for the next client action.
func (c *Conn) ReadRequest() (Request, error) {
	var req Request
	if err := c.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
		return req, err
	}
	err := c.ReadJSON(&req)
	return req, err
}
