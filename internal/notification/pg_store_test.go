package notification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notifCols = []string{
	"id", "recipient_id", "type", "title", "body", "channel",
	"is_read", "is_sent", "scheduled_for", "sent_at", "created_at",
}

func TestCreateReturnsStoredRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	n := &Notification{
		ID:          uuid.New(),
		RecipientID: uuid.New(),
		Type:        TypeCreated,
		Title:       "New Appointment",
		Body:        "details",
		Channel:     ChannelInApp,
	}
	createdAt := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(n.ID, n.RecipientID, n.Type, n.Title, n.Body, n.Channel, n.ScheduledFor).
		WillReturnRows(pgxmock.NewRows(notifCols).AddRow(
			n.ID, n.RecipientID, n.Type, n.Title, n.Body, n.Channel,
			false, false, (*time.Time)(nil), (*time.Time)(nil), createdAt,
		))

	require.NoError(t, store.Create(context.Background(), n))
	assert.False(t, n.IsRead)
	assert.False(t, n.IsSent)
	assert.Equal(t, createdAt, n.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadOwnership(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	recipient, id := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(id, recipient).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkRead(context.Background(), recipient, id))

	// Someone else's notification matches no row.
	stranger := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(id, stranger).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.MarkRead(context.Background(), stranger, id), ErrNotFound)
}

func TestMarkAllReadReportsChanged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	recipient := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(recipient).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	changed, err := store.MarkAllRead(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)
}

func TestUnreadCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	recipient := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*)")).
		WithArgs(recipient).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := store.UnreadCount(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.Delete(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPreferencesDefaultsWhenUnsaved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_preferences")).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	p, err := store.GetPreferences(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.True(t, p.RemindersPush)
	assert.False(t, p.ResultsSMS)
}

func TestUpsertPreferences(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPgStoreWithQuerier(mock)
	p := DefaultPreferences(uuid.New())
	p.RemindersSMS = false

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_preferences")).
		WithArgs(p.UserID, p.RemindersEmail, p.RemindersSMS, p.RemindersPush,
			p.ResultsEmail, p.ResultsSMS, p.ResultsPush).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertPreferences(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
