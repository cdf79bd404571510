package appointment

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
	StatusRejected  Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusBooked, StatusCancelled, StatusFailed, StatusRejected:
		return true
	}
	return false
}

type Appointment struct {
	ID      int64
	EventID int64
	// BookedBy is the requester, the only caller allowed to cancel.
	BookedBy int64
	// EventOwnerID is copied from the event when the appointment is created
	// and never refreshed. Approve and reject authorize against it.
	EventOwnerID int64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}
