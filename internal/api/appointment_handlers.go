package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AhmetDumanli/Dakik-new/internal/appointment"
)

type AppointmentService interface {
	Create(ctx context.Context, requesterID, eventID int64) (*appointment.Appointment, error)
	Get(ctx context.Context, appointmentID, callerID int64) (*appointment.Appointment, error)
	Approve(ctx context.Context, appointmentID, ownerID int64) (*appointment.Appointment, error)
	Reject(ctx context.Context, appointmentID, ownerID int64) (*appointment.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID int64) (*appointment.Appointment, error)
	ListMine(ctx context.Context, requesterID int64) ([]appointment.Appointment, error)
	ListRequests(ctx context.Context, ownerID int64, status appointment.Status) ([]appointment.Appointment, error)
}

type AppointmentHandler struct {
	svc    AppointmentService
	logger logrus.FieldLogger
}

func NewAppointmentHandler(svc AppointmentService, logger logrus.FieldLogger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetCallerID(r.Context())

	var req CreateAppointmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	appt, err := h.svc.Create(r.Context(), callerID, req.EventID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
}

func (h *AppointmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetCallerID(r.Context())

	list, err := h.svc.ListMine(r.Context(), callerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentList(list))
}

func (h *AppointmentHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetCallerID(r.Context())

	status := appointment.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of PENDING, BOOKED, CANCELLED, FAILED, REJECTED")
		return
	}

	list, err := h.svc.ListRequests(r.Context(), callerID, status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentList(list))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Get)
}

func (h *AppointmentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Approve)
}

func (h *AppointmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Reject)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Cancel)
}

// act runs an operation on the appointment named in the path on behalf of the
// caller.
func (h *AppointmentHandler) act(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, appointmentID, callerID int64) (*appointment.Appointment, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
		return
	}
	callerID, _ := GetCallerID(r.Context())

	appt, err := op(r.Context(), id, callerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
}

func (h *AppointmentHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch appointment.KindOf(err) {
	case appointment.KindNotFound:
		status = http.StatusNotFound
	case appointment.KindConflict:
		status = http.StatusConflict
	case appointment.KindForbidden, appointment.KindSelfBooking:
		status = http.StatusForbidden
	case appointment.KindInvalidState:
		status = http.StatusConflict
	case appointment.KindCompensationFailure:
		status = http.StatusBadGateway
	case appointment.KindInternal:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}

	entry := h.logger.WithFields(logrus.Fields{
		"request_id": GetRequestID(r.Context()),
		"code":       appointment.CodeOf(err),
	}).WithError(err)

	if status >= http.StatusInternalServerError {
		entry.Error("appointment request failed")
		if status == http.StatusInternalServerError {
			writeError(w, status, appointment.ErrInternal.Code, "unexpected error")
			return
		}
	}

	writeError(w, status, appointment.CodeOf(err), publicMessage(err))
}

// publicMessage is the classified message without any wrapped cause.
func publicMessage(err error) string {
	var e *appointment.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "unexpected error"
}
