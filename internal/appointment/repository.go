package appointment

import (
	"context"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)

	// UpdateStatus moves the appointment from one status to another. It
	// returns ErrStatusChanged when the row is no longer in status from.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*Appointment, error)

	ListByBooker(ctx context.Context, bookedBy int64) ([]Appointment, error)
	// An empty status lists every request of the owner.
	ListByOwner(ctx context.Context, ownerID int64, status Status) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
