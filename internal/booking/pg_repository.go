package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository needs, so tests
// can substitute pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithQuerier(q querier) *PgRepository {
	return &PgRepository{pool: q}
}

const apptColumns = `id, code, patient_id, provider_id, appointment_type,
		       scheduled_date + scheduled_time AS scheduled_at,
		       duration_minutes, status, reason, notes, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.Code,
		&a.PatientID,
		&a.ProviderID,
		&a.Type,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.StartsAt,
		&s.EndsAt,
		&s.IsAvailable,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func dateArg(t time.Time) string { return t.Format("2006-01-02") }
func timeArg(t time.Time) string { return t.Format("15:04:05") }

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// CreateAppointment runs the conflict check and the insert as a single
// statement, so there is no read-then-write window, and binds the matching
// slot inside the same transaction. The overlap predicate compares full
// scheduled_date + scheduled_time timestamps against duration_minutes, so
// intervals that cross midnight conflict correctly. Under READ COMMITTED
// two concurrent inserts for overlapping windows can still both pass the
// NOT EXISTS check; the appointments_provider_no_overlap exclusion
// constraint is the authoritative backstop and its 23P01 violation maps
// to ErrSlotConflict like any other lost race.
func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create appointment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, code, patient_id, provider_id, appointment_type,
			 scheduled_date, scheduled_time, duration_minutes, status, reason, notes,
			 created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6::date, $7::time, $8, 'scheduled', $9, $10, now(), now()
		WHERE NOT EXISTS (
			SELECT 1
			FROM appointments a
			WHERE a.provider_id = $4
			  AND a.scheduled_date BETWEEN $6::date - 1 AND $6::date + 1
			  AND a.status NOT IN ('cancelled', 'no_show')
			  AND a.scheduled_date + a.scheduled_time < $6::date + $7::time + make_interval(mins => $8)
			  AND a.scheduled_date + a.scheduled_time + make_interval(mins => a.duration_minutes) > $6::date + $7::time
		)
		RETURNING `+apptColumns+`
	`, appt.ID, appt.Code, appt.PatientID, appt.ProviderID, appt.Type,
		dateArg(appt.ScheduledAt), timeArg(appt.ScheduledAt), appt.DurationMinutes,
		appt.Reason, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrSlotConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, ErrCodeCollision
			case "23P01":
				return nil, ErrSlotConflict
			}
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointment_slots
		SET is_available = FALSE
		WHERE provider_id = $1
		  AND slot_date = $2::date
		  AND start_time = $3::time
	`, appt.ProviderID, dateArg(appt.ScheduledAt), timeArg(appt.ScheduledAt))
	if err != nil {
		return nil, fmt.Errorf("bind slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE patient_id = $1 OR provider_id = $1
		ORDER BY scheduled_date DESC, scheduled_time DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND scheduled_date + scheduled_time >= $1
		  AND scheduled_date + scheduled_time < $2
		ORDER BY scheduled_date, scheduled_time, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id,
		       slot_date + start_time AS starts_at,
		       slot_date + end_time AS ends_at,
		       is_available, created_at
		FROM appointment_slots
		WHERE provider_id = $1
		  AND slot_date = $2::date
		  AND is_available
		ORDER BY start_time
	`, providerID, dateArg(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, providerID uuid.UUID, startsAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointment_slots
		SET is_available = TRUE
		WHERE provider_id = $1
		  AND slot_date = $2::date
		  AND start_time = $3::time
	`, providerID, dateArg(startsAt), timeArg(startsAt))
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}
