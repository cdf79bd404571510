package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AhmetDumanli/Dakik-new/internal/event"
)

type EventService interface {
	Create(ctx context.Context, in event.CreateInput) (*event.Event, error)
	Get(ctx context.Context, id int64) (*event.Event, error)
	ListByOwner(ctx context.Context, ownerID, viewerID int64) ([]event.Event, error)
	ListOpen(ctx context.Context) ([]event.Event, error)
	CanView(ctx context.Context, ownerID, viewerID int64) (bool, error)

	Lock(ctx context.Context, id int64) (*event.Event, error)
	Book(ctx context.Context, id int64) (*event.Event, error)
	Unlock(ctx context.Context, id int64) error
	Unbook(ctx context.Context, id int64) (*event.Event, error)
}

type EventHandler struct {
	svc    EventService
	logger logrus.FieldLogger
}

func NewEventHandler(svc EventService, logger logrus.FieldLogger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := GetCallerID(r.Context())

	var req CreateEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	e, err := h.svc.Create(r.Context(), event.CreateInput{
		OwnerID:     ownerID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newEventResponse(e))
}

func (h *EventHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListOpen(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(events))
}

func (h *EventHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "userId must be a positive integer")
		return
	}
	viewerID, _ := GetCallerID(r.Context())

	events, err := h.svc.ListByOwner(r.Context(), ownerID, viewerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(events))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_event_id", "id must be a positive integer")
		return
	}

	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(e))
}

func (h *EventHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Lock)
}

func (h *EventHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Book)
}

func (h *EventHandler) Unbook(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Unbook)
}

func (h *EventHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_event_id", "id must be a positive integer")
		return
	}

	if err := h.svc.Unlock(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) CanView(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := queryID(r, "ownerId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_owner_id", "ownerId must be a positive integer")
		return
	}
	viewerID, ok := queryID(r, "viewerId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_viewer_id", "viewerId must be a positive integer")
		return
	}

	allowed, err := h.svc.CanView(r.Context(), ownerID, viewerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allowed)
}

func (h *EventHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*event.Event, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_event_id", "id must be a positive integer")
		return
	}

	e, err := op(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(e))
}

func (h *EventHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		writeError(w, http.StatusNotFound, "event_not_found", err.Error())
	case errors.Is(err, event.ErrAlreadyLocked):
		writeError(w, http.StatusConflict, "event_already_locked", err.Error())
	case errors.Is(err, event.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "event_already_booked", err.Error())
	case errors.Is(err, event.ErrNotBooked):
		writeError(w, http.StatusConflict, "event_not_booked", err.Error())
	case errors.Is(err, event.ErrVersionConflict):
		writeError(w, http.StatusConflict, "event_version_conflict", err.Error())
	case errors.Is(err, event.ErrOverlap):
		writeError(w, http.StatusConflict, "event_overlap", err.Error())
	case errors.Is(err, event.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_time_window", err.Error())
	case errors.Is(err, event.ErrOwnerNotFound):
		writeError(w, http.StatusNotFound, "owner_not_found", err.Error())
	case errors.Is(err, event.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		h.logger.WithField("request_id", GetRequestID(r.Context())).WithError(err).Error("event request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
