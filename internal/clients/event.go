package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AhmetDumanli/Dakik-new/internal/event"
)

// eventErrors rebuilds the event service's sentinel errors from the codes it
// puts on the wire.
var eventErrors = map[string]error{
	"event_not_found":        event.ErrNotFound,
	"event_already_locked":   event.ErrAlreadyLocked,
	"event_already_booked":   event.ErrAlreadyBooked,
	"event_not_booked":       event.ErrNotBooked,
	"event_version_conflict": event.ErrVersionConflict,
}

type eventDTO struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Description  string    `json:"description"`
	Available    bool      `json:"available"`
	Locked       bool      `json:"locked"`
	IsPublic     bool      `json:"is_public"`
	Participants int       `json:"participants"`
	Version      int64     `json:"version"`
}

func (d eventDTO) toEvent() *event.Event {
	return &event.Event{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		StartTime:    d.StartTime,
		EndTime:      d.EndTime,
		Description:  d.Description,
		Available:    d.Available,
		Locked:       d.Locked,
		IsPublic:     d.IsPublic,
		Participants: d.Participants,
		Version:      d.Version,
	}
}

// EventClient talks to the event service. Each call is bounded by timeout on
// top of whatever deadline ctx already carries.
type EventClient struct {
	c       *Client
	timeout time.Duration
}

func NewEventClient(c *Client, timeout time.Duration) *EventClient {
	return &EventClient{c: c, timeout: timeout}
}

func (ec *EventClient) Get(ctx context.Context, id int64) (*event.Event, error) {
	return ec.eventCall(ctx, http.MethodGet, eventPath(id, ""))
}

func (ec *EventClient) Lock(ctx context.Context, id int64) (*event.Event, error) {
	return ec.eventCall(ctx, http.MethodPut, eventPath(id, "lock"))
}

func (ec *EventClient) Book(ctx context.Context, id int64) (*event.Event, error) {
	return ec.eventCall(ctx, http.MethodPut, eventPath(id, "book"))
}

func (ec *EventClient) Unlock(ctx context.Context, id int64) error {
	ctx, cancel := ec.withTimeout(ctx)
	defer cancel()
	return mapEventError(ec.c.doJSON(ctx, http.MethodPut, eventPath(id, "unlock"), "", nil, nil))
}

func (ec *EventClient) Unbook(ctx context.Context, id int64) (*event.Event, error) {
	return ec.eventCall(ctx, http.MethodPut, eventPath(id, "unbook"))
}

func (ec *EventClient) Ping(ctx context.Context) error {
	ctx, cancel := ec.withTimeout(ctx)
	defer cancel()
	return ec.c.Ping(ctx)
}

func (ec *EventClient) eventCall(ctx context.Context, method, path string) (*event.Event, error) {
	ctx, cancel := ec.withTimeout(ctx)
	defer cancel()

	var dto eventDTO
	if err := ec.c.doJSON(ctx, method, path, "", nil, &dto); err != nil {
		return nil, mapEventError(err)
	}
	return dto.toEvent(), nil
}

func (ec *EventClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ec.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ec.timeout)
}

func eventPath(id int64, action string) string {
	p := "/events/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func mapEventError(err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	if sentinel, ok := eventErrors[se.Code]; ok {
		return fmt.Errorf("%w: %s", sentinel, se.Details)
	}
	if se.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", event.ErrNotFound, se.Error())
	}
	return err
}
