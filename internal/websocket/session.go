package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"mediahub-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

// Conn is the part of a WebSocket connection the manager drives. The fiber
// websocket connection satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one authenticated socket. Writes go through a single writer
// goroutine fed by a bounded queue.
type Session struct {
	user string
	conn Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	alive    atomic.Bool
	lastPong atomic.Int64

	limiter   *rate.Limiter
	writeWait time.Duration
	logger    logger.ILogger
}

func newSession(user string, conn Conn, opts Options, log logger.ILogger) *Session {
	limit := opts.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	s := &Session{
		user:      user,
		conn:      conn,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(limit, opts.RateBurst),
		writeWait: opts.WriteWait,
		logger:    log,
	}
	s.alive.Store(true)
	return s
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastPong returns when the peer last answered a ping, zero if never.
func (s *Session) LastPong() time.Time {
	ms := s.lastPong.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Session) markAlive() {
	s.alive.Store(true)
	s.lastPong.Store(time.Now().UnixMilli())
}

// Send queues f for the writer. It never blocks; false means the frame was dropped.
func (s *Session) Send(f Frame) bool {
	data, err := f.encode()
	if err != nil {
		s.logger.Error("Session", "Failed to encode frame", map[string]interface{}{"user": s.user, "type": f.Type, "error": err.Error()})
		return false
	}
	return s.enqueue(data)
}

func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		s.logger.Warn("Session", "Send buffer full, dropping frame", map[string]interface{}{"user": s.user})
		return false
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Session", "Write failed, closing session", map[string]interface{}{"user": s.user, "error": err.Error()})
				s.Close()
				return
			}
		}
	}
}

func (s *Session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait))
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
