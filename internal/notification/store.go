package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("notification not found")
)

// Store is the durable notification surface. Rows are append-mostly:
// only is_read and is_sent/sent_at ever change after creation.
type Store interface {
	Create(ctx context.Context, n *Notification) error

	// ListForRecipient returns the recipient's notifications,
	// most recent first.
	ListForRecipient(ctx context.Context, recipient uuid.UUID, limit, offset int) ([]Notification, error)

	// MarkRead flips is_read for a notification owned by recipient.
	// Marking an already-read notification is a no-op success; a
	// notification belonging to someone else is ErrNotFound.
	MarkRead(ctx context.Context, recipient, id uuid.UUID) error

	// MarkAllRead flips is_read on every unread notification for the
	// recipient and reports how many changed.
	MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error)

	// MarkSent records a successful live delivery.
	MarkSent(ctx context.Context, id uuid.UUID) error

	UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error)

	Delete(ctx context.Context, recipient, id uuid.UUID) error

	// GetPreferences returns the user's saved preferences, or defaults
	// when none were ever saved.
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)

	UpsertPreferences(ctx context.Context, p *Preferences) error
}
