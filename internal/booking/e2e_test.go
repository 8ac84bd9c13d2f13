package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alturos-health/scheduling/internal/booking"
	"github.com/alturos-health/scheduling/internal/dispatch"
	"github.com/alturos-health/scheduling/internal/identity"
	"github.com/alturos-health/scheduling/internal/notification"
	"github.com/alturos-health/scheduling/internal/reminder"
)

// The fakes below wire the booking service, dispatch router and reminder
// scheduler together the way the two processes do in production, with
// memory standing in for Postgres and Redis.

type ledger struct {
	mu        sync.Mutex
	patients  map[uuid.UUID]*booking.Patient
	providers map[uuid.UUID]*booking.Provider
	appts     map[uuid.UUID]*booking.Appointment
}

func newLedger() *ledger {
	return &ledger{
		patients:  make(map[uuid.UUID]*booking.Patient),
		providers: make(map[uuid.UUID]*booking.Provider),
		appts:     make(map[uuid.UUID]*booking.Appointment),
	}
}

func (l *ledger) GetPatientByID(_ context.Context, id uuid.UUID) (*booking.Patient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.patients[id]; ok {
		return p, nil
	}
	return nil, booking.ErrPatientNotFound
}

func (l *ledger) GetProviderByID(_ context.Context, id uuid.UUID) (*booking.Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.providers[id]; ok {
		return p, nil
	}
	return nil, booking.ErrProviderNotFound
}

func (l *ledger) CreateAppointment(_ context.Context, appt *booking.Appointment) (*booking.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.appts {
		if existing.ProviderID == appt.ProviderID &&
			existing.Status != booking.StatusCancelled && existing.Status != booking.StatusNoShow &&
			existing.Overlaps(appt) {
			return nil, booking.ErrSlotConflict
		}
	}
	cp := *appt
	l.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (l *ledger) GetAppointmentByID(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.appts[id]; ok {
		out := *a
		return &out, nil
	}
	return nil, booking.ErrAppointmentNotFound
}

func (l *ledger) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to booking.Status) (*booking.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.appts[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	out := *a
	return &out, nil
}

func (l *ledger) ListAppointmentsForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]booking.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []booking.Appointment
	for _, a := range l.appts {
		if a.PatientID == userID || a.ProviderID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (l *ledger) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.appts, id)
	return nil
}

func (l *ledger) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]booking.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []booking.Appointment
	for _, a := range l.appts {
		if a.Status == booking.StatusConfirmed && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (l *ledger) ListAvailableSlots(context.Context, uuid.UUID, time.Time) ([]booking.Slot, error) {
	return nil, nil
}

func (l *ledger) ReleaseSlot(context.Context, uuid.UUID, time.Time) error { return nil }

type noopLocker struct{}

func (noopLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(context.Context) error) error {
	return fn(ctx)
}

type notifTable struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*notification.Notification
}

func newNotifTable() *notifTable {
	return &notifTable{rows: make(map[uuid.UUID]*notification.Notification)}
}

func (t *notifTable) Create(_ context.Context, n *notification.Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.CreatedAt = time.Now()
	cp := *n
	t.rows[n.ID] = &cp
	return nil
}

func (t *notifTable) ListForRecipient(_ context.Context, recipient uuid.UUID, limit, offset int) ([]notification.Notification, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []notification.Notification
	for _, n := range t.rows {
		if n.RecipientID == recipient {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (t *notifTable) MarkRead(_ context.Context, recipient, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.rows[id]
	if !ok || n.RecipientID != recipient {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (t *notifTable) MarkAllRead(_ context.Context, recipient uuid.UUID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed int64
	for _, n := range t.rows {
		if n.RecipientID == recipient && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (t *notifTable) MarkSent(_ context.Context, id uuid.UUID) error { return nil }

func (t *notifTable) UnreadCount(_ context.Context, recipient uuid.UUID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var count int64
	for _, n := range t.rows {
		if n.RecipientID == recipient && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (t *notifTable) Delete(_ context.Context, recipient, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
	return nil
}

func (t *notifTable) GetPreferences(_ context.Context, userID uuid.UUID) (*notification.Preferences, error) {
	def := notification.DefaultPreferences(userID)
	return &def, nil
}

func (t *notifTable) UpsertPreferences(context.Context, *notification.Preferences) error { return nil }

func (t *notifTable) byType(recipient uuid.UUID, typ notification.Type) []notification.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []notification.Notification
	for _, n := range t.rows {
		if n.RecipientID == recipient && n.Type == typ {
			out = append(out, *n)
		}
	}
	return out
}

type firingTable struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *firingTable) TryRecord(_ context.Context, id uuid.UUID, threshold string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := id.String() + "|" + threshold
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

// TestBookingLifecycleEndToEnd walks the whole flow: book, confirm,
// reject the competing booking, fire the day-before reminder exactly
// once.
func TestBookingLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()

	repo := newLedger()
	notifs := newNotifTable()
	router := dispatch.NewRouter(notifs, nil, nil)
	defer router.Close()

	svc := booking.NewService(repo, noopLocker{}, router, nil, booking.Policy{ReleaseSlotOnCancel: true}, nil)

	patientID, rivalID, providerID := uuid.New(), uuid.New(), uuid.New()
	repo.patients[patientID] = &booking.Patient{ID: patientID, Name: "first patient"}
	repo.patients[rivalID] = &booking.Patient{ID: rivalID, Name: "second patient"}
	repo.providers[providerID] = &booking.Provider{ID: providerID, Name: "Dr. P"}

	patient := identity.Identity{UserID: patientID, Role: identity.RolePatient}
	rival := identity.Identity{UserID: rivalID, Role: identity.RolePatient}
	provider := identity.Identity{UserID: providerID, Role: identity.RoleProvider}

	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	// Book.
	appt, err := svc.Create(ctx, patient, booking.CreateParams{
		ProviderID:  providerID,
		Type:        booking.TypeConsultation,
		ScheduledAt: at,
		Reason:      "annual checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusScheduled, appt.Status)

	// Provider confirms; the patient gets the status-changed record.
	confirmed, err := svc.Transition(ctx, provider, appt.ID, booking.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	require.Len(t, notifs.byType(patientID, notification.TypeStatusChanged), 1)

	// A second patient tries the same window.
	_, err = svc.Create(ctx, rival, booking.CreateParams{
		ProviderID:  providerID,
		Type:        booking.TypeConsultation,
		ScheduledAt: at,
		Reason:      "annual checkup",
	})
	assert.ErrorIs(t, err, booking.ErrSlotConflict)

	// Scheduler tick exactly 24h before fires one reminder to the patient.
	tickAt := at.Add(-24 * time.Hour)
	sched := reminder.NewScheduler(repo, &firingTable{seen: make(map[string]bool)}, router, nil,
		time.Hour, nil, reminder.WithClock(func() time.Time { return tickAt }))

	fired, err := sched.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Len(t, notifs.byType(patientID, notification.TypeReminder), 1)

	// Same simulated time, second tick: nothing new.
	fired, err = sched.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Len(t, notifs.byType(patientID, notification.TypeReminder), 1)

	// Everything above is durably queryable for the patient.
	count, err := router.UnreadCount(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
