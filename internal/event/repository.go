package event

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("event not found")
	ErrAlreadyLocked   = errors.New("event is already locked by another booking")
	ErrAlreadyBooked   = errors.New("event is already booked")
	ErrNotBooked       = errors.New("event is not booked")
	ErrVersionConflict = errors.New("event was modified concurrently")
	ErrOverlap         = errors.New("event time overlaps with another event")
	ErrInvalidWindow   = errors.New("end time must be after start time")
	ErrOwnerNotFound   = errors.New("owner not found")
	ErrForbidden       = errors.New("viewer is not allowed to see these events")
)

// Repository is the persistence boundary of the events table. Apply is the
// only way booking state changes: it runs one transition as an atomic
// check-and-set on a single row.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, e Event) (*Event, error)
	ListByOwner(ctx context.Context, ownerID int64, publicOnly bool) ([]Event, error)
	ListOpen(ctx context.Context, limit int) ([]Event, error)

	Apply(ctx context.Context, id int64, t Transition) (*Event, error)
}
