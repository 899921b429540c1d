package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
)

var (
	errSessionClosed = errors.New("session closed")
	errSlowConsumer  = errors.New("session send buffer full")
)

// wsSession is the core.Conn of one websocket. Send only queues the frame;
// a dedicated writer goroutine performs the actual socket writes.
type wsSession struct {
	conn         *websocket.Conn
	out          chan []byte
	writeTimeout time.Duration
	cancel       context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newWSSession(conn *websocket.Conn, buffer int, writeTimeout time.Duration, cancel context.CancelFunc) *wsSession {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsSession{
		conn:         conn,
		out:          make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		cancel:       cancel,
	}
}

// Send queues payload. It fails immediately when the session is closed or
// the client is not keeping up.
func (s *wsSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.out <- payload:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close stops the session. The socket itself is closed by the handler once
// its loops return.
func (s *wsSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}

func (s *wsSession) writeLoop(ctx context.Context) error {
	for {
		select {
		case payload := <-s.out:
			if err := s.write(ctx, payload); err != nil {
				_ = s.Close()
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *wsSession) write(ctx context.Context, payload []byte) error {
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	return s.conn.Write(ctx, websocket.MessageText, payload)
}
