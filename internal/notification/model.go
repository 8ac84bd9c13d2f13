package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeReminder         Type = "reminder"
	TypeCreated          Type = "created"
	TypeStatusChanged    Type = "status_changed"
	TypeResultsAvailable Type = "results_available"
	TypeOther            Type = "other"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Notification is a durable record of an event directed at one recipient.
// Once created it is immutable except for is_read and is_sent/sent_at.
type Notification struct {
	ID           uuid.UUID  `json:"id"`
	RecipientID  uuid.UUID  `json:"recipient_id"`
	Type         Type       `json:"type"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Channel      Channel    `json:"channel"`
	IsRead       bool       `json:"is_read"`
	IsSent       bool       `json:"is_sent"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Preferences controls which delivery channels a user accepts per
// notification category.
type Preferences struct {
	UserID         uuid.UUID `json:"user_id"`
	RemindersEmail bool      `json:"reminders_email"`
	RemindersSMS   bool      `json:"reminders_sms"`
	RemindersPush  bool      `json:"reminders_push"`
	ResultsEmail   bool      `json:"results_email"`
	ResultsSMS     bool      `json:"results_sms"`
	ResultsPush    bool      `json:"results_push"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultPreferences mirrors the column defaults, used when a user has
// never saved preferences.
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:         userID,
		RemindersEmail: true,
		RemindersSMS:   true,
		RemindersPush:  true,
		ResultsEmail:   true,
		ResultsSMS:     false,
		ResultsPush:    true,
	}
}
