// Package dispatch decouples "a notification exists" (durable, written
// first, always) from "a notification was pushed live" (best-effort,
// never blocking the durable path).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/metrics"
	"github.com/alturos-health/scheduling/internal/notification"
)

var ErrRouterClosed = errors.New("dispatch router is closed")

// Frames of the live delivery protocol.

type UnreadCountFrame struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type NotificationFrame struct {
	Type         string                     `json:"type"`
	Notification *notification.Notification `json:"notification"`
}

type NotificationListFrame struct {
	Type          string                      `json:"type"`
	Notifications []notification.Notification `json:"notifications"`
}

// Router owns the in-memory registry of live sessions and the single
// emit path every event source goes through. It is created at process
// start and drained at shutdown via Close.
type Router struct {
	store notification.Store
	log   *zap.Logger
	met   *metrics.Metrics

	mu       sync.Mutex
	sessions map[uuid.UUID][]*Session
	closed   bool
}

func NewRouter(store notification.Store, log *zap.Logger, met *metrics.Metrics) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		store:    store,
		log:      log,
		met:      met,
		sessions: make(map[uuid.UUID][]*Session),
	}
}

// Emit durably stores the notification first, then attempts live
// delivery to every open session for the recipient. Live push failure
// never rolls back or duplicates the durable write; with no open
// session the record simply waits to be fetched.
func (r *Router) Emit(ctx context.Context, recipient uuid.UUID, typ notification.Type, title, body string, channel notification.Channel) (*notification.Notification, error) {
	n := &notification.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Type:        typ,
		Title:       title,
		Body:        body,
		Channel:     channel,
	}

	if err := r.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	r.met.ObserveNotification(string(typ))

	frame := NotificationFrame{Type: "new_notification", Notification: n}

	// Enqueue under the registry lock so each session observes
	// notifications in emission order.
	r.mu.Lock()
	var stale []*Session
	delivered := false
	for _, sess := range r.sessions[recipient] {
		if sess.enqueue(frame) {
			delivered = true
		} else {
			stale = append(stale, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range stale {
		r.Unregister(sess)
	}

	if delivered {
		// Best effort: the durable record is the source of truth either way.
		if err := r.store.MarkSent(ctx, n.ID); err != nil {
			r.log.Warn("mark notification sent", zap.String("id", n.ID.String()), zap.Error(err))
		}
	}

	return n, nil
}

// Register adds a live channel for the recipient and synchronously
// reports the current unread count to that channel alone.
func (r *Router) Register(ctx context.Context, recipient uuid.UUID, conn Conn) (*Session, error) {
	count, err := r.store.UnreadCount(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("unread count on register: %w", err)
	}

	sess := newSession(r, recipient, conn)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sess.close()
		return nil, ErrRouterClosed
	}
	r.sessions[recipient] = append(r.sessions[recipient], sess)
	sess.enqueue(UnreadCountFrame{Type: "unread_count", Count: count})
	r.mu.Unlock()

	go sess.writeLoop()
	r.met.SessionOpened()
	return sess, nil
}

// Unregister removes the session from the registry and closes it. Safe
// to call more than once.
func (r *Router) Unregister(sess *Session) {
	if sess == nil {
		return
	}

	r.mu.Lock()
	list := r.sessions[sess.recipient]
	for i, s := range list {
		if s == sess {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.sessions, sess.recipient)
	} else {
		r.sessions[sess.recipient] = list
	}
	r.mu.Unlock()

	if sess.close() {
		r.met.SessionClosed()
	}
}

// MarkRead flips is_read on a notification owned by the recipient.
// Already-read notifications are a no-op success.
func (r *Router) MarkRead(ctx context.Context, recipient, id uuid.UUID) error {
	return r.store.MarkRead(ctx, recipient, id)
}

// UnreadCount reports the recipient's current unread total.
func (r *Router) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	return r.store.UnreadCount(ctx, recipient)
}

// Recent returns the recipient's latest notifications for the live
// protocol's get_notifications request.
func (r *Router) Recent(ctx context.Context, recipient uuid.UUID, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.store.ListForRecipient(ctx, recipient, limit, 0)
}

// Close drains the registry, closing every live session. Further
// registrations fail with ErrRouterClosed.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var all []*Session
	for _, list := range r.sessions {
		all = append(all, list...)
	}
	r.sessions = make(map[uuid.UUID][]*Session)
	r.mu.Unlock()

	for _, sess := range all {
		if sess.close() {
			r.met.SessionClosed()
		}
	}
}

// sessionCount reports how many live sessions are registered.
func (r *Router) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.sessions {
		n += len(list)
	}
	return n
}
