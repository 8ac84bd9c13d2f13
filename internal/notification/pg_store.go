package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	pool querier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func newPgStoreWithQuerier(q querier) *PgStore {
	return &PgStore{pool: q}
}

const notifColumns = `id, recipient_id, type, title, body, channel,
		       is_read, is_sent, scheduled_for, sent_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification

	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Type,
		&n.Title,
		&n.Body,
		&n.Channel,
		&n.IsRead,
		&n.IsSent,
		&n.ScheduledFor,
		&n.SentAt,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &n, nil
}

func (s *PgStore) Create(ctx context.Context, n *Notification) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications
			(id, recipient_id, type, title, body, channel, is_read, is_sent, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, $7, now())
		RETURNING `+notifColumns+`
	`, n.ID, n.RecipientID, n.Type, n.Title, n.Body, n.Channel, n.ScheduledFor)

	created, err := scanNotification(row)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	*n = *created
	return nil
}

func (s *PgStore) ListForRecipient(ctx context.Context, recipient uuid.UUID, limit, offset int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notifColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, recipient, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}

	return result, rows.Err()
}

func (s *PgStore) MarkRead(ctx context.Context, recipient, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`, id, recipient)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE recipient_id = $1 AND NOT is_read
	`, recipient)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PgStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_sent = TRUE,
		    sent_at = now()
		WHERE id = $1 AND NOT is_sent
	`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

func (s *PgStore) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE recipient_id = $1 AND NOT is_read
	`, recipient).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PgStore) Delete(ctx context.Context, recipient, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE id = $1 AND recipient_id = $2
	`, id, recipient)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, reminders_email, reminders_sms, reminders_push,
		       results_email, results_sms, results_push, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`, userID)

	var p Preferences
	err := row.Scan(
		&p.UserID,
		&p.RemindersEmail,
		&p.RemindersSMS,
		&p.RemindersPush,
		&p.ResultsEmail,
		&p.ResultsSMS,
		&p.ResultsPush,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			def := DefaultPreferences(userID)
			return &def, nil
		}
		return nil, fmt.Errorf("load notification preferences: %w", err)
	}
	return &p, nil
}

func (s *PgStore) UpsertPreferences(ctx context.Context, p *Preferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_preferences
			(user_id, reminders_email, reminders_sms, reminders_push,
			 results_email, results_sms, results_push, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			reminders_email = EXCLUDED.reminders_email,
			reminders_sms   = EXCLUDED.reminders_sms,
			reminders_push  = EXCLUDED.reminders_push,
			results_email   = EXCLUDED.results_email,
			results_sms     = EXCLUDED.results_sms,
			results_push    = EXCLUDED.results_push,
			updated_at      = now()
	`, p.UserID, p.RemindersEmail, p.RemindersSMS, p.RemindersPush,
		p.ResultsEmail, p.ResultsSMS, p.ResultsPush)
	if err != nil {
		return fmt.Errorf("upsert notification preferences: %w", err)
	}
	return nil
}
