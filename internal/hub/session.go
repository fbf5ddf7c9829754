package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	roleMonitor = "monitor"
	roleUser    = "user"

	sendBufferSize = 64
)

// Session is one subscriber connection with a buffered outbound queue.
// The websocket write pump drains the queue; tests read it directly.
type Session struct {
	ID     string
	UserID string

	role string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewSession wraps a websocket connection. conn may be nil in tests.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// enqueue queues a payload without blocking; false means the buffer is
// full and the session should be dropped.
func (s *Session) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.send)
	})
}
