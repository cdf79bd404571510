package event

import (
	"time"
)

// State is the derived booking state of an event. It is never stored; the
// available/locked flags are.
type State string

const (
	StateFree   State = "FREE"
	StateLocked State = "LOCKED"
	StateBooked State = "BOOKED"
)

type Event struct {
	ID           int64
	OwnerID      int64
	StartTime    time.Time
	EndTime      time.Time
	Description  string
	Available    bool
	Locked       bool
	IsPublic     bool
	Participants int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e *Event) State() State {
	switch {
	case !e.Available:
		return StateBooked
	case e.Locked:
		return StateLocked
	default:
		return StateFree
	}
}

// Open reports whether the event can be picked up by a new booking attempt.
func (e *Event) Open() bool {
	return e.IsPublic && e.State() == StateFree
}

// Overlaps reports whether the half-open windows [start, end) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
