package booking

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// legalTransitions is the full lifecycle graph. completed, cancelled and
// no_show are terminal; cancellation and no-show are reachable from every
// non-terminal state.
var legalTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func IsTerminal(s Status) bool {
	return len(legalTransitions[s]) == 0
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type AppointmentType string

const (
	TypeConsultation       AppointmentType = "consultation"
	TypeFollowUp           AppointmentType = "follow_up"
	TypeEmergency          AppointmentType = "emergency"
	TypeRoutineCheckup     AppointmentType = "routine_checkup"
	TypeSpecialistReferral AppointmentType = "specialist_referral"
)

func ValidAppointmentType(t AppointmentType) bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeRoutineCheckup, TypeSpecialistReferral:
		return true
	}
	return false
}

const DefaultDurationMinutes = 30

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a bookable (provider, date, time window) unit. Uniqueness on
// (provider, date, start) is enforced by the store.
type Slot struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	StartsAt    time.Time
	EndsAt      time.Time
	IsAvailable bool
	CreatedAt   time.Time
}

type Appointment struct {
	ID              uuid.UUID
	Code            string // human-facing confirmation code, immutable
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	Type            AppointmentType
	ScheduledAt     time.Time // local date + time of the slot
	DurationMinutes int
	Status          Status
	Reason          string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt is the exclusive end of the appointment interval.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports true interval overlap against another appointment on
// the same provider calendar.
func (a *Appointment) Overlaps(other *Appointment) bool {
	return a.ScheduledAt.Before(other.EndsAt()) && other.ScheduledAt.Before(a.EndsAt())
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewConfirmationCode generates the 8-character code attached to every
// appointment at creation. It is display-only, not a security token.
func NewConfirmationCode() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// rand.Read does not fail on supported platforms; fall back anyway
		return uuid.NewString()[:8]
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
