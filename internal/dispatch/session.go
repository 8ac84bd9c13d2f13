package dispatch

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is one live delivery channel. The websocket adapter in the API
// layer implements it; tests substitute in-memory fakes.
type Conn interface {
	Send(v any) error
	Close() error
}

const sessionBuffer = 32

// Session pairs a recipient with an open channel. Outbound frames go
// through a buffered queue drained by a dedicated writer goroutine, so a
// slow or stalled client can never block Emit's durable write path.
type Session struct {
	router    *Router
	recipient uuid.UUID
	conn      Conn

	out       chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(r *Router, recipient uuid.UUID, conn Conn) *Session {
	return &Session{
		router:    r,
		recipient: recipient,
		conn:      conn,
		out:       make(chan any, sessionBuffer),
		done:      make(chan struct{}),
	}
}

// Recipient returns the identity this session delivers to.
func (s *Session) Recipient() uuid.UUID {
	return s.recipient
}

// Enqueue hands a frame to the writer goroutine. It never blocks; a
// full queue or a closed session reports false.
func (s *Session) Enqueue(v any) bool {
	return s.enqueue(v)
}

func (s *Session) enqueue(v any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- v:
		return true
	default:
		return false
	}
}

// writeLoop pushes queued frames to the underlying channel. A failed
// write drops the session; the durable store keeps the notifications
// discoverable on reconnect, so there is no retry.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			if err := s.conn.Send(frame); err != nil {
				s.router.log.Debug("live push failed, dropping session",
					zap.String("recipient", s.recipient.String()),
					zap.Error(err))
				s.router.met.PushFailed()
				s.router.Unregister(s)
				return
			}
		}
	}
}

// close tears the session down once, reporting whether this call did it.
func (s *Session) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		closed = true
	})
	return closed
}
