package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotConflict        = errors.New("provider time window already booked")
	ErrCodeCollision       = errors.New("confirmation code collision")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	// CreateAppointment inserts appt only if no active appointment for the
	// same provider overlaps its interval, and marks a matching slot
	// unavailable in the same atomic unit. Returns ErrSlotConflict when the
	// window is taken.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set on the status column:
	// the row is updated only when its current status equals from.
	// ErrAppointmentNotFound means either the row is gone or a concurrent
	// transition already moved it.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// ListAppointmentsForUser returns appointments where the user is the
	// patient or the provider, newest schedule first, deterministically
	// ordered for pagination.
	ListAppointmentsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error)

	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// ListConfirmedBetween returns confirmed appointments whose scheduled
	// moment falls in [from, to). Used by the reminder scheduler.
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	ListAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Slot, error)

	// ReleaseSlot re-opens the slot bound to a (provider, start) window,
	// if one exists. Used when cancellation frees the slot.
	ReleaseSlot(ctx context.Context, providerID uuid.UUID, startsAt time.Time) error
}
