package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/alturos-health/scheduling/internal/booking"
)

type CreateAppointmentRequest struct {
	ProviderID      string `json:"provider_id" validate:"required,uuid4"`
	PatientID       string `json:"patient_id" validate:"omitempty,uuid4"`
	AppointmentType string `json:"appointment_type" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Reason          string `json:"reason" validate:"required,max=2000"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type PreferencesRequest struct {
	RemindersEmail bool `json:"reminders_email"`
	RemindersSMS   bool `json:"reminders_sms"`
	RemindersPush  bool `json:"reminders_push"`
	ResultsEmail   bool `json:"results_email"`
	ResultsSMS     bool `json:"results_sms"`
	ResultsPush    bool `json:"results_push"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	PatientID       uuid.UUID `json:"patient_id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	AppointmentType string    `json:"appointment_type"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		Code:            a.Code,
		PatientID:       a.PatientID,
		ProviderID:      a.ProviderID,
		AppointmentType: string(a.Type),
		Date:            a.ScheduledAt.Format("2006-01-02"),
		Time:            a.ScheduledAt.Format("15:04"),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Reason:          a.Reason,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type SlotResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		Date:       s.StartsAt.Format("2006-01-02"),
		StartTime:  s.StartsAt.Format("15:04"),
		EndTime:    s.EndsAt.Format("15:04"),
	}
}
