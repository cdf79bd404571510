package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AhmetDumanli/Dakik-new/internal/event"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentFailed    = "APPOINTMENT_FAILED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventCompensationFailed   = "COMPENSATION_FAILED"
)

const (
	defaultRPCTimeout   = 3 * time.Second
	compensationTimeout = 10 * time.Second
)

var tracer = otel.Tracer("github.com/AhmetDumanli/Dakik-new/internal/appointment")

// EventService is the remote resource service. Errors are the event package
// sentinels (event.ErrNotFound, event.ErrAlreadyLocked, ...) when the remote
// side classified the failure.
type EventService interface {
	Get(ctx context.Context, id int64) (*event.Event, error)
	Lock(ctx context.Context, id int64) (*event.Event, error)
	Book(ctx context.Context, id int64) (*event.Event, error)
	Unlock(ctx context.Context, id int64) error
	Unbook(ctx context.Context, id int64) (*event.Event, error)
}

type IdentityService interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Notifier publishes lifecycle notifications. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Notification struct {
	AppointmentID int64     `json:"appointment_id"`
	EventID       int64     `json:"event_id"`
	BookedBy      int64     `json:"booked_by"`
	EventOwnerID  int64     `json:"event_owner_id"`
	Status        Status    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func RoutingKey(s Status) string {
	return "appointment." + strings.ToLower(string(s))
}

// Service drives the booking saga. It keeps no state between calls; the only
// serialization point is the event service's lock.
type Service struct {
	repo       Repository
	events     EventService
	identity   IdentityService
	notifier   Notifier
	logger     logrus.FieldLogger
	rpcTimeout time.Duration
}

func NewService(repo Repository, events EventService, identity IdentityService, notifier Notifier, logger logrus.FieldLogger, rpcTimeout time.Duration) *Service {
	if rpcTimeout <= 0 {
		rpcTimeout = defaultRPCTimeout
	}
	return &Service{
		repo:       repo,
		events:     events,
		identity:   identity,
		notifier:   notifier,
		logger:     logger,
		rpcTimeout: rpcTimeout,
	}
}

// Create books eventID for requesterID. Public events are confirmed right
// away, private ones stay PENDING with the event locked until the owner
// approves or rejects.
func (s *Service) Create(ctx context.Context, requesterID, eventID int64) (*Appointment, error) {
	log := s.logger.WithFields(logrus.Fields{
		"requester_id": requesterID,
		"event_id":     eventID,
	})

	var exists bool
	err := s.call(ctx, "saga.identity", eventID, func(ctx context.Context) error {
		var err error
		exists, err = s.identity.UserExists(ctx, requesterID)
		return err
	})
	if err != nil {
		return nil, internal(fmt.Errorf("resolve requester: %w", err))
	}
	if !exists {
		return nil, ErrRequesterNotFound
	}

	var ev *event.Event
	err = s.call(ctx, "saga.get_event", eventID, func(ctx context.Context) error {
		var err error
		ev, err = s.events.Get(ctx, eventID)
		return err
	})
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, internal(fmt.Errorf("get event: %w", err))
	}
	if ev.OwnerID == requesterID {
		return nil, ErrSelfBooking
	}

	err = s.call(ctx, "saga.lock", eventID, func(ctx context.Context) error {
		_, err := s.events.Lock(ctx, eventID)
		return err
	})
	if err != nil {
		log.WithError(err).Info("event lock refused")
		return nil, remoteError(err, ErrEventLockFailed)
	}

	appt, err := s.repo.Create(ctx, Appointment{
		EventID:      eventID,
		BookedBy:     requesterID,
		EventOwnerID: ev.OwnerID,
		Status:       StatusPending,
	})
	if err != nil {
		log.WithError(err).Error("persist pending appointment failed, releasing event")
		cctx, cancel := s.detach(ctx)
		defer cancel()
		_ = s.compensate(cctx, nil, eventID, releaseUnlock)
		return nil, internal(fmt.Errorf("create appointment: %w", err))
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"event_id":  eventID,
		"booked_by": requesterID,
		"public":    ev.IsPublic,
	})

	if !ev.IsPublic {
		s.notify(ctx, appt)
		log.WithField("appointment_id", appt.ID).Info("appointment awaiting owner approval")
		return appt, nil
	}

	return s.confirm(ctx, appt)
}

// Approve confirms a PENDING appointment on behalf of the event owner.
func (s *Service) Approve(ctx context.Context, appointmentID, ownerID int64) (*Appointment, error) {
	appt, err := s.loadPendingForOwner(ctx, appointmentID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, appt)
}

// Reject releases the event held by a PENDING appointment. When the release
// fails the appointment stays PENDING so the owner can retry.
func (s *Service) Reject(ctx context.Context, appointmentID, ownerID int64) (*Appointment, error) {
	appt, err := s.loadPendingForOwner(ctx, appointmentID, ownerID)
	if err != nil {
		return nil, err
	}

	return s.settle(ctx, appt, StatusRejected, releaseUnlock, EventAppointmentRejected, map[string]any{
		"owner_id": ownerID,
	})
}

// Cancel withdraws an appointment on behalf of its requester. A BOOKED
// appointment gives its seat back with unbook, a PENDING one releases the
// reservation with unlock.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID int64) (*Appointment, error) {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.BookedBy != requesterID {
		return nil, ErrForbidden
	}

	action, err := releaseFor(appt.Status)
	if err != nil {
		return nil, err
	}

	return s.settle(ctx, appt, StatusCancelled, action, EventAppointmentCancelled, map[string]any{
		"previous_status": appt.Status,
		"release":         action.String(),
	})
}

// Get returns an appointment to its requester or to the event owner.
func (s *Service) Get(ctx context.Context, appointmentID, callerID int64) (*Appointment, error) {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.BookedBy != callerID && appt.EventOwnerID != callerID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListMine returns the requester's appointments, newest first.
func (s *Service) ListMine(ctx context.Context, requesterID int64) ([]Appointment, error) {
	var exists bool
	err := s.call(ctx, "saga.identity", 0, func(ctx context.Context) error {
		var err error
		exists, err = s.identity.UserExists(ctx, requesterID)
		return err
	})
	if err != nil {
		return nil, internal(fmt.Errorf("resolve requester: %w", err))
	}
	if !exists {
		return nil, ErrRequesterNotFound
	}

	list, err := s.repo.ListByBooker(ctx, requesterID)
	if err != nil {
		return nil, internal(fmt.Errorf("list appointments by booker: %w", err))
	}
	return list, nil
}

// ListRequests returns the appointments made against the owner's events,
// optionally narrowed to one status.
func (s *Service) ListRequests(ctx context.Context, ownerID int64, status Status) ([]Appointment, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, internal(fmt.Errorf("list appointment requests: %w", err))
	}
	return list, nil
}

// confirm books the event of a PENDING appointment. Any failure after this
// point gives the event back with exactly one compensating release and ends
// the appointment FAILED.
func (s *Service) confirm(ctx context.Context, appt *Appointment) (*Appointment, error) {
	log := s.logger.WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"event_id":       appt.EventID,
	})

	err := s.call(ctx, "saga.book", appt.EventID, func(ctx context.Context) error {
		_, err := s.events.Book(ctx, appt.EventID)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("book failed, compensating")
		return nil, s.fail(ctx, appt, remoteError(err, ErrEventBookFailed), releaseUnlock)
	}

	booked, err := s.transition(ctx, appt, StatusBooked, EventAppointmentBooked, nil)
	if err != nil {
		// The event is booked but the appointment cannot say so; give the
		// seat back rather than leave it booked without an owner.
		log.WithError(err).Error("persist booked status failed, compensating")
		return nil, s.fail(ctx, appt, err, releaseUnbook)
	}

	log.Info("appointment booked")
	return booked, nil
}

// settle claims appt's next status, then releases its event. A concurrent
// approve of the same appointment loses its conditional write. A failed
// release puts the previous status back.
func (s *Service) settle(ctx context.Context, appt *Appointment, to Status, action releaseAction, eventType string, payload map[string]any) (*Appointment, error) {
	claimed, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrStatusChanged
		}
		return nil, internal(fmt.Errorf("update appointment %d to %s: %w", appt.ID, to, err))
	}

	log := s.logger.WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"event_id":       appt.EventID,
		"release":        action.String(),
	})

	if err := s.release(ctx, appt.EventID, action); err != nil {
		log.WithError(err).Warn("event release failed, restoring status")

		rctx, cancel := s.detach(ctx)
		defer cancel()
		if _, rerr := s.repo.UpdateStatus(rctx, appt.ID, to, appt.Status); rerr != nil {
			log.WithError(rerr).Error("restore appointment status")
		}
		return nil, remoteError(err, ErrInternal)
	}

	payload["from"] = appt.Status
	s.logEvent(ctx, claimed.ID, eventType, payload)
	s.notify(ctx, claimed)

	return claimed, nil
}

// fail compensates with action, marks the appointment FAILED and returns
// cause. A failed compensation is logged and audited only. Both steps run on
// a detached context so they complete after the caller has gone.
func (s *Service) fail(ctx context.Context, appt *Appointment, cause error, action releaseAction) error {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	_ = s.compensate(ctx, appt, appt.EventID, action)

	failed, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusFailed)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"appointment_id": appt.ID,
			"event_id":       appt.EventID,
		}).WithError(err).Error("mark appointment failed")
	} else {
		s.logEvent(ctx, failed.ID, EventAppointmentFailed, map[string]any{
			"reason": cause.Error(),
		})
		s.notify(ctx, failed)
	}

	return cause
}

// compensate runs a single release after a failed step. Its own failure is
// logged and audited; the event may stay LOCKED until an operator frees it.
func (s *Service) compensate(ctx context.Context, appt *Appointment, eventID int64, action releaseAction) error {
	err := s.call(ctx, "saga.compensate", eventID, func(ctx context.Context) error {
		return s.doRelease(ctx, eventID, action)
	})
	if err == nil {
		return nil
	}
	err = ErrCompensationFailed.Wrap(err)

	log := s.logger.WithFields(logrus.Fields{
		"event_id": eventID,
		"release":  action.String(),
	})
	if appt != nil {
		log = log.WithField("appointment_id", appt.ID)
		s.logEvent(ctx, appt.ID, EventCompensationFailed, map[string]any{
			"event_id": eventID,
			"release":  action.String(),
			"error":    err.Error(),
		})
	}
	log.WithError(err).Error("compensation failed, event left held")

	return err
}

// detach keeps ctx's values (trace, request id) without its cancellation and
// bounds the result by its own timeout.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

func (s *Service) release(ctx context.Context, eventID int64, action releaseAction) error {
	return s.call(ctx, "saga."+action.String(), eventID, func(ctx context.Context) error {
		return s.doRelease(ctx, eventID, action)
	})
}

func (s *Service) doRelease(ctx context.Context, eventID int64, action releaseAction) error {
	switch action {
	case releaseUnbook:
		_, err := s.events.Unbook(ctx, eventID)
		return err
	case releaseUnlock:
		return s.events.Unlock(ctx, eventID)
	default:
		return fmt.Errorf("unknown release action %d", action)
	}
}

// call runs one remote step inside its own span and timeout.
func (s *Service) call(ctx context.Context, step string, eventID int64, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, step)
	defer span.End()
	if eventID != 0 {
		span.SetAttributes(attribute.Int64("event.id", eventID))
	}

	ctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) load(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, internal(fmt.Errorf("load appointment: %w", err))
	}
	return appt, nil
}

func (s *Service) loadPendingForOwner(ctx context.Context, appointmentID, ownerID int64) (*Appointment, error) {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.EventOwnerID != ownerID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusPending {
		return nil, ErrNotPending
	}
	return appt, nil
}

func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, eventType string, payload map[string]any) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrStatusChanged
		}
		return nil, internal(fmt.Errorf("update appointment %d to %s: %w", appt.ID, to, err))
	}

	if payload == nil {
		payload = map[string]any{}
	}
	payload["from"] = appt.Status
	s.logEvent(ctx, updated.ID, eventType, payload)
	s.notify(ctx, updated)

	return updated, nil
}

func (s *Service) notify(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	n := Notification{
		AppointmentID: appt.ID,
		EventID:       appt.EventID,
		BookedBy:      appt.BookedBy,
		EventOwnerID:  appt.EventOwnerID,
		Status:        appt.Status,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, RoutingKey(appt.Status), n); err != nil {
		s.logger.WithFields(logrus.Fields{
			"appointment_id": appt.ID,
			"status":         appt.Status,
		}).WithError(err).Warn("publish appointment notification")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Warnf("failed to marshal event payload for %s", eventType)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.WithError(err).Warnf("failed to insert event log %s for appointment %d", eventType, appointmentID)
	}
}

// remoteError classifies a failure reported by the event service. Anything it
// did not classify becomes fallback.
func remoteError(err error, fallback *Error) error {
	switch {
	case errors.Is(err, event.ErrNotFound):
		return ErrEventNotFound.Wrap(err)
	case errors.Is(err, event.ErrAlreadyLocked),
		errors.Is(err, event.ErrAlreadyBooked),
		errors.Is(err, event.ErrVersionConflict):
		return ErrEventAlreadyBooked.Wrap(err)
	case errors.Is(err, event.ErrNotBooked):
		return ErrEventNotBooked.Wrap(err)
	default:
		return fallback.Wrap(err)
	}
}
