// Package reminder scans confirmed appointments on a fixed interval and
// fires reminder notifications at fixed lead times, exactly once per
// (appointment, threshold).
package reminder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/booking"
	"github.com/alturos-health/scheduling/internal/events"
	"github.com/alturos-health/scheduling/internal/metrics"
	"github.com/alturos-health/scheduling/internal/notification"
)

// Threshold is a fixed lead time before a confirmed appointment.
type Threshold struct {
	Label string
	Lead  time.Duration
}

// DefaultThresholds match the product contract: a day-before reminder
// and a last-call reminder.
var DefaultThresholds = []Threshold{
	{Label: "24h", Lead: 24 * time.Hour},
	{Label: "1h", Lead: time.Hour},
}

// AppointmentSource is the slice of the booking repository the
// scheduler reads. Eligibility is recomputed from current status every
// tick, so cancelled appointments simply drop out of the selection set.
type AppointmentSource interface {
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]booking.Appointment, error)
}

// Emitter is the dispatch router's emit surface.
type Emitter interface {
	Emit(ctx context.Context, recipient uuid.UUID, typ notification.Type, title, body string, channel notification.Channel) (*notification.Notification, error)
}

type Scheduler struct {
	appts      AppointmentSource
	firings    FiringStore
	emitter    Emitter
	pub        events.Publisher
	log        *zap.Logger
	met        *metrics.Metrics
	tick       time.Duration
	thresholds []Threshold
	now        func() time.Time

	running atomic.Bool
}

type Option func(*Scheduler)

// WithClock substitutes the tick clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithThresholds overrides the default lead times.
func WithThresholds(ts []Threshold) Option {
	return func(s *Scheduler) { s.thresholds = ts }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.met = m }
}

func NewScheduler(appts AppointmentSource, firings FiringStore, emitter Emitter, pub events.Publisher, tick time.Duration, log *zap.Logger, opts ...Option) *Scheduler {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		appts:      appts,
		firings:    firings,
		emitter:    emitter,
		pub:        pub,
		log:        log,
		tick:       tick,
		thresholds: DefaultThresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is done. The first scan happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.tick)
	defer cancel()

	start := time.Now()
	fired, err := s.RunTick(runCtx)
	if err != nil {
		s.log.Error("reminder tick failed", zap.Error(err))
		return
	}
	s.log.Info("reminder tick complete",
		zap.Int("fired", fired),
		zap.Duration("took", time.Since(start)))
}

// RunTick performs one scan. A tick that overlaps a still-running one is
// skipped outright; the firing store additionally makes overlapping
// processes safe. Returns how many reminders were fired.
func (s *Scheduler) RunTick(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("reminder tick still running, skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	now := s.now()
	total := 0

	for _, th := range s.thresholds {
		from := now.Add(th.Lead)
		to := from.Add(s.tick)

		appts, err := s.appts.ListConfirmedBetween(ctx, from, to)
		if err != nil {
			return total, fmt.Errorf("select confirmed appointments for %s window: %w", th.Label, err)
		}

		for i := range appts {
			fired, err := s.fire(ctx, &appts[i], th)
			if err != nil {
				s.log.Error("fire reminder",
					zap.String("appointment_id", appts[i].ID.String()),
					zap.String("threshold", th.Label),
					zap.Error(err))
				continue
			}
			if fired {
				total++
			}
		}
	}

	return total, nil
}

// fire claims the (appointment, threshold) pair and emits the reminder.
// Claiming first keeps overlapping runs at most-once; a push failure
// after the durable write is the dispatch layer's concern, never ours.
func (s *Scheduler) fire(ctx context.Context, appt *booking.Appointment, th Threshold) (bool, error) {
	claimed, err := s.firings.TryRecord(ctx, appt.ID, th.Label)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	title, body := reminderMessage(appt, th)
	if _, err := s.emitter.Emit(ctx, appt.PatientID, notification.TypeReminder, title, body, notification.ChannelPush); err != nil {
		return false, err
	}
	s.met.ObserveReminder(th.Label)

	if err := s.pub.Publish(ctx, events.Event{
		Type:          events.ReminderFired,
		AppointmentID: appt.ID,
		Threshold:     th.Label,
		OccurredAt:    time.Now().UTC(),
	}); err != nil {
		s.log.Warn("publish reminder event",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err))
	}

	return true, nil
}

func reminderMessage(appt *booking.Appointment, th Threshold) (title, body string) {
	switch th.Label {
	case "1h":
		return "Appointment Starting Soon",
			fmt.Sprintf("Your appointment %s starts in 1 hour at %s",
				appt.Code, appt.ScheduledAt.Format("15:04"))
	default:
		return "Appointment Reminder",
			fmt.Sprintf("You have an appointment tomorrow at %s (confirmation %s)",
				appt.ScheduledAt.Format("15:04"), appt.Code)
	}
}
