package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alturos-health/scheduling/internal/notification"
)

// memoryStore is an in-memory notification.Store for router tests.
type memoryStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*notification.Notification
	order     []uuid.UUID
	prefs     map[uuid.UUID]*notification.Preferences
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:  make(map[uuid.UUID]*notification.Notification),
		prefs: make(map[uuid.UUID]*notification.Preferences),
	}
}

func (s *memoryStore) Create(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	n.CreatedAt = time.Now()
	cp := *n
	s.rows[n.ID] = &cp
	s.order = append(s.order, n.ID)
	return nil
}

func (s *memoryStore) ListForRecipient(_ context.Context, recipient uuid.UUID, limit, offset int) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.rows[s.order[i]]
		if n.RecipientID != recipient {
			continue
		}
		out = append(out, *n)
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) MarkRead(_ context.Context, recipient, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.RecipientID != recipient {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *memoryStore) MarkAllRead(_ context.Context, recipient uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.rows {
		if n.RecipientID == recipient && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *memoryStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return notification.ErrNotFound
	}
	if !n.IsSent {
		n.IsSent = true
		now := time.Now()
		n.SentAt = &now
	}
	return nil
}

func (s *memoryStore) UnreadCount(_ context.Context, recipient uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.rows {
		if n.RecipientID == recipient && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) Delete(_ context.Context, recipient, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.RecipientID != recipient {
		return notification.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memoryStore) GetPreferences(_ context.Context, userID uuid.UUID) (*notification.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		cp := *p
		return &cp, nil
	}
	p := notification.DefaultPreferences(userID)
	return &p, nil
}

func (s *memoryStore) UpsertPreferences(_ context.Context, p *notification.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.prefs[p.UserID] = &cp
	return nil
}

func (s *memoryStore) get(id uuid.UUID) *notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.rows[id]; ok {
		cp := *n
		return &cp
	}
	return nil
}
