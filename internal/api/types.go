package api

import (
	"time"

	"github.com/AhmetDumanli/Dakik-new/internal/appointment"
	"github.com/AhmetDumanli/Dakik-new/internal/event"
)

type CreateEventRequest struct {
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Description string    `json:"description" validate:"max=500"`
	IsPublic    bool      `json:"is_public"`
}

type EventResponse struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Description  string    `json:"description"`
	Available    bool      `json:"available"`
	Locked       bool      `json:"locked"`
	IsPublic     bool      `json:"is_public"`
	Participants int       `json:"participants"`
	State        string    `json:"state"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newEventResponse(e *event.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		OwnerID:      e.OwnerID,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Description:  e.Description,
		Available:    e.Available,
		Locked:       e.Locked,
		IsPublic:     e.IsPublic,
		Participants: e.Participants,
		State:        string(e.State()),
		Version:      e.Version,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func newEventList(events []event.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, newEventResponse(&events[i]))
	}
	return out
}

type CreateAppointmentRequest struct {
	EventID int64 `json:"event_id" validate:"required,gt=0"`
}

type AppointmentResponse struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	BookedBy     int64     `json:"booked_by"`
	EventOwnerID int64     `json:"event_owner_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		EventID:      a.EventID,
		BookedBy:     a.BookedBy,
		EventOwnerID: a.EventOwnerID,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func newAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, newAppointmentResponse(&list[i]))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
