package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/events"
	"github.com/alturos-health/scheduling/internal/identity"
	"github.com/alturos-health/scheduling/internal/metrics"
	"github.com/alturos-health/scheduling/internal/notification"
	redisclient "github.com/alturos-health/scheduling/internal/redis"
)

var (
	ErrNotAParty         = errors.New("caller is not a party to this appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBookingContended  = errors.New("time window is currently being booked, please retry")
	ErrInvalidInput      = errors.New("invalid booking input")

	// ErrTransitionContended means every CAS attempt lost to a concurrent
	// writer while the requested edge stayed legal. Retryable.
	ErrTransitionContended = errors.New("appointment is being updated concurrently, please retry")
)

// Notifier is the slice of the dispatch router the booking service needs.
type Notifier interface {
	Emit(ctx context.Context, recipient uuid.UUID, typ notification.Type, title, body string, channel notification.Channel) (*notification.Notification, error)
}

// Policy holds booking behavior toggles.
type Policy struct {
	// ReleaseSlotOnCancel frees the bound slot when an appointment is
	// cancelled, so the window becomes bookable again.
	ReleaseSlotOnCancel bool
}

// Service is the only writer of appointment and slot state. Every
// successful mutation durably produces a notification before returning
// and publishes an audit event.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	pub      events.Publisher
	policy   Policy
	log      *zap.Logger
	met      *metrics.Metrics
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, pub events.Publisher, policy Policy, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		pub:      pub,
		policy:   policy,
		log:      log,
	}
}

// WithMetrics attaches the process metrics. Nil metrics stay safe, so
// workers and tests skip this.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.met = m
	return s
}

type CreateParams struct {
	PatientID       uuid.UUID // defaults to the caller for patient callers
	ProviderID      uuid.UUID
	Type            AppointmentType
	ScheduledAt     time.Time
	DurationMinutes int // defaults to 30
	Reason          string
	Notes           string
}

// Create reserves a provider time window for a patient. The conflict
// check and the insert run inside a per-window distributed lock plus a
// conditional insert, so concurrent requests for the same window resolve
// to exactly one winner; the losers see ErrSlotConflict without having
// mutated anything. Past times are accepted: walk-in and backfill
// recording are legitimate.
func (s *Service) Create(ctx context.Context, actor identity.Identity, p CreateParams) (*Appointment, error) {
	switch actor.Role {
	case identity.RolePatient:
		p.PatientID = actor.UserID
	case identity.RoleProvider:
		if actor.UserID != p.ProviderID {
			return nil, ErrNotAParty
		}
		if p.PatientID == uuid.Nil {
			return nil, fmt.Errorf("%w: patient_id required for provider bookings", ErrInvalidInput)
		}
	default:
		return nil, ErrNotAParty
	}

	if !ValidAppointmentType(p.Type) {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrInvalidInput, p.Type)
	}
	if p.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if p.DurationMinutes <= 0 {
		p.DurationMinutes = DefaultDurationMinutes
	}

	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	provider, err := s.repo.GetProviderByID(ctx, p.ProviderID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, p.ProviderID, p.ScheduledAt, func(lockCtx context.Context) error {
		// The confirmation code is computed before the insert so the row
		// is complete and immutable from the moment it exists.
		for attempt := 0; attempt < 3; attempt++ {
			appt := &Appointment{
				ID:              uuid.New(),
				Code:            NewConfirmationCode(),
				PatientID:       p.PatientID,
				ProviderID:      p.ProviderID,
				Type:            p.Type,
				ScheduledAt:     p.ScheduledAt,
				DurationMinutes: p.DurationMinutes,
				Status:          StatusScheduled,
				Reason:          p.Reason,
				Notes:           p.Notes,
			}

			created, err = s.repo.CreateAppointment(lockCtx, appt)
			if errors.Is(err, ErrCodeCollision) {
				continue
			}
			return err
		}
		return ErrCodeCollision
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.met.ObserveBooking("contended")
			return nil, ErrBookingContended
		}
		if errors.Is(err, ErrSlotConflict) {
			s.met.ObserveBooking("conflict")
			return nil, ErrSlotConflict
		}
		s.met.ObserveBooking("error")
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	s.met.ObserveBooking("ok")

	s.notifyCounterparty(ctx, actor, created, notification.TypeCreated,
		"New Appointment",
		fmt.Sprintf("Appointment %s booked with %s for %s",
			created.Code, provider.Name, created.ScheduledAt.Format("2006-01-02 15:04")))

	s.publish(ctx, events.Event{
		Type:          events.AppointmentCreated,
		AppointmentID: created.ID,
		NewStatus:     string(created.Status),
		ActorID:       actor.UserID,
		OccurredAt:    time.Now().UTC(),
	})

	return created, nil
}

// Transition moves an appointment along the lifecycle graph on behalf of
// one of its parties. The persisted update is a compare-and-set against
// the status the caller was evaluated on, so a concurrent transition that
// commits first forces re-evaluation against the new state.
func (s *Service) Transition(ctx context.Context, actor identity.Identity, apptID uuid.UUID, to Status) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	for attempt := 0; attempt < 3; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, apptID)
		if err != nil {
			return nil, err
		}

		if actor.UserID != appt.PatientID && actor.UserID != appt.ProviderID {
			return nil, ErrNotAParty
		}
		if !CanTransition(appt.Status, to) {
			return nil, ErrInvalidTransition
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, apptID, appt.Status, to)
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with a concurrent transition; re-evaluate.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transition appointment: %w", err)
		}

		s.met.ObserveTransition(string(to))
		s.afterTransition(ctx, actor, appt.Status, updated)
		return updated, nil
	}

	// Every attempt found a legal edge yet lost the CAS. The transition
	// was never illegal, just contended.
	return nil, ErrTransitionContended
}

func (s *Service) afterTransition(ctx context.Context, actor identity.Identity, previous Status, appt *Appointment) {
	if appt.Status == StatusCancelled && s.policy.ReleaseSlotOnCancel {
		if err := s.repo.ReleaseSlot(ctx, appt.ProviderID, appt.ScheduledAt); err != nil {
			s.log.Error("release slot after cancellation",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
		}
	}

	s.notifyCounterparty(ctx, actor, appt, notification.TypeStatusChanged,
		"Appointment Status Update",
		fmt.Sprintf("Appointment %s status has been updated to %s", appt.Code, appt.Status))

	s.publish(ctx, events.Event{
		Type:           events.AppointmentStatusChanged,
		AppointmentID:  appt.ID,
		PreviousStatus: string(previous),
		NewStatus:      string(appt.Status),
		ActorID:        actor.UserID,
		OccurredAt:     time.Now().UTC(),
	})
}

// notifyCounterparty durably stores a notification for the party that did
// not perform the action. A failed write is logged, never propagated: the
// committed state change stands.
func (s *Service) notifyCounterparty(ctx context.Context, actor identity.Identity, appt *Appointment, typ notification.Type, title, body string) {
	if s.notifier == nil {
		return
	}
	recipient := appt.PatientID
	if actor.UserID == appt.PatientID {
		recipient = appt.ProviderID
	}
	if _, err := s.notifier.Emit(ctx, recipient, typ, title, body, notification.ChannelInApp); err != nil {
		s.log.Error("emit notification",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("publish audit event",
			zap.String("event_type", string(ev.Type)),
			zap.String("appointment_id", ev.AppointmentID.String()),
			zap.Error(err))
	}
}

// ListFor returns the appointments the caller is a party to, newest
// schedule first.
func (s *Service) ListFor(ctx context.Context, actor identity.Identity, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsForUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Get returns one appointment, visible only to its parties.
func (s *Service) Get(ctx context.Context, actor identity.Identity, apptID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != appt.PatientID && actor.UserID != appt.ProviderID {
		return nil, ErrNotAParty
	}
	return appt, nil
}

// Delete removes the caller's own appointment record. This is a
// data-management operation, not a lifecycle transition.
func (s *Service) Delete(ctx context.Context, actor identity.Identity, apptID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return err
	}
	if actor.UserID != appt.PatientID && actor.UserID != appt.ProviderID {
		return ErrNotAParty
	}
	return s.repo.DeleteAppointment(ctx, apptID)
}

// AvailableSlots returns a provider's open windows on a date.
func (s *Service) AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListAvailableSlots(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}
