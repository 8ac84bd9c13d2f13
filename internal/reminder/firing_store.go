package reminder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FiringStore records which (appointment, threshold) pairs already got
// their reminder, atomically enough to tolerate overlapping ticks.
type FiringStore interface {
	// TryRecord marks the pair as fired and reports whether this call
	// was the one that did it. Exactly one concurrent caller sees true.
	TryRecord(ctx context.Context, appointmentID uuid.UUID, threshold string) (bool, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgFiringStore implements FiringStore on a conditional insert: the
// primary key on (appointment_id, threshold) makes the check-and-record
// step a single atomic statement.
type PgFiringStore struct {
	pool rowQuerier
}

func NewPgFiringStore(pool *pgxpool.Pool) *PgFiringStore {
	return &PgFiringStore{pool: pool}
}

func newPgFiringStoreWithQuerier(q rowQuerier) *PgFiringStore {
	return &PgFiringStore{pool: q}
}

func (s *PgFiringStore) TryRecord(ctx context.Context, appointmentID uuid.UUID, threshold string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO reminder_firings (appointment_id, threshold, fired_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING
	`, appointmentID, threshold)
	if err != nil {
		return false, fmt.Errorf("record reminder firing: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
