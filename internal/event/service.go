package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	redisclient "github.com/AhmetDumanli/Dakik-new/internal/redis"
)

const defaultOpenLimit = 100

// IdentityChecker is the part of the user service the event service needs.
type IdentityChecker interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CanView(ctx context.Context, ownerID, viewerID int64) (bool, error)
}

type Service struct {
	repo     Repository
	identity IdentityChecker
	locker   redisclient.Locker
	logger   logrus.FieldLogger
}

func NewService(repo Repository, identity IdentityChecker, locker redisclient.Locker, logger logrus.FieldLogger) *Service {
	if locker == nil {
		locker = redisclient.NopLocker{}
	}
	return &Service{
		repo:     repo,
		identity: identity,
		locker:   locker,
		logger:   logger,
	}
}

type CreateInput struct {
	OwnerID     int64
	StartTime   time.Time
	EndTime     time.Time
	Description string
	IsPublic    bool
}

// Create adds a new free event to the owner's calendar.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Event, error) {
	if !in.EndTime.After(in.StartTime) {
		return nil, ErrInvalidWindow
	}

	exists, err := s.identity.UserExists(ctx, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("check owner: %w", err)
	}
	if !exists {
		return nil, ErrOwnerNotFound
	}

	created, err := s.repo.Create(ctx, Event{
		OwnerID:     in.OwnerID,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Description: in.Description,
		IsPublic:    in.IsPublic,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event_id": created.ID,
		"owner_id": created.OwnerID,
	}).Info("event created")

	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOwner returns the owner's calendar as seen by viewerID. The owner sees
// everything, other viewers need permission and only see public events.
func (s *Service) ListByOwner(ctx context.Context, ownerID, viewerID int64) ([]Event, error) {
	if ownerID == viewerID {
		return s.repo.ListByOwner(ctx, ownerID, false)
	}

	ok, err := s.CanView(ctx, ownerID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	return s.repo.ListByOwner(ctx, ownerID, true)
}

func (s *Service) ListOpen(ctx context.Context) ([]Event, error) {
	return s.repo.ListOpen(ctx, defaultOpenLimit)
}

func (s *Service) CanView(ctx context.Context, ownerID, viewerID int64) (bool, error) {
	if ownerID == viewerID {
		return true, nil
	}
	ok, err := s.identity.CanView(ctx, ownerID, viewerID)
	if err != nil {
		return false, fmt.Errorf("check view permission: %w", err)
	}
	return ok, nil
}

// Lock reserves a free event. Requesters racing on the same event are turned
// away by the Redis guard before they reach the row lock; whoever loses either
// race gets ErrAlreadyLocked.
func (s *Service) Lock(ctx context.Context, id int64) (*Event, error) {
	var locked *Event

	err := s.locker.WithEventLock(ctx, id, func(lockCtx context.Context) error {
		e, err := s.repo.Apply(lockCtx, id, Lock)
		if err != nil {
			return err
		}
		locked = e
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAlreadyLocked
		}
		return nil, err
	}

	s.logTransition("lock", locked)
	return locked, nil
}

func (s *Service) Book(ctx context.Context, id int64) (*Event, error) {
	e, err := s.repo.Apply(ctx, id, Book)
	if err != nil {
		return nil, err
	}
	s.logTransition("book", e)
	return e, nil
}

func (s *Service) Unlock(ctx context.Context, id int64) error {
	e, err := s.repo.Apply(ctx, id, Unlock)
	if err != nil {
		return err
	}
	s.logTransition("unlock", e)
	return nil
}

func (s *Service) Unbook(ctx context.Context, id int64) (*Event, error) {
	e, err := s.repo.Apply(ctx, id, Unbook)
	if err != nil {
		return nil, err
	}
	s.logTransition("unbook", e)
	return e, nil
}

func (s *Service) logTransition(op string, e *Event) {
	s.logger.WithFields(logrus.Fields{
		"event_id": e.ID,
		"op":       op,
		"state":    e.State(),
		"version":  e.Version,
	}).Debug("event transition applied")
}
