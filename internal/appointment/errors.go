package appointment

import (
	"errors"
)

// Kind classifies every error the booking service returns. Handlers switch on
// it to pick a response, never on the concrete error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalidState
	KindSelfBooking
	KindCompensationFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindSelfBooking:
		return "self_booking"
	case KindCompensationFailure:
		return "compensation_failure"
	default:
		return "internal"
	}
}

// Error is a classified failure. Two errors are the same (for errors.Is) when
// their codes match, so the package sentinels below can be wrapped with a cause
// and still compare equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain. Anything
// unclassified is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine readable code of err, "internal_error" when err
// carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

var (
	ErrInternal = &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error"}

	ErrRequesterNotFound   = &Error{Kind: KindNotFound, Code: "requester_not_found", Message: "requester not found"}
	ErrEventNotFound       = &Error{Kind: KindNotFound, Code: "event_not_found", Message: "event not found"}
	ErrAppointmentNotFound = &Error{Kind: KindNotFound, Code: "appointment_not_found", Message: "appointment not found"}

	ErrEventAlreadyBooked = &Error{Kind: KindConflict, Code: "event_already_booked", Message: "event is already booked or being booked"}
	ErrEventLockFailed    = &Error{Kind: KindConflict, Code: "event_lock_failed", Message: "event lock failed"}
	ErrEventBookFailed    = &Error{Kind: KindInternal, Code: "event_booking_failed", Message: "event booking failed"}

	ErrForbidden   = &Error{Kind: KindForbidden, Code: "forbidden", Message: "not allowed to act on this appointment"}
	ErrSelfBooking = &Error{Kind: KindSelfBooking, Code: "self_booking", Message: "cannot book your own event"}

	ErrNotPending       = &Error{Kind: KindInvalidState, Code: "appointment_not_pending", Message: "appointment is not pending"}
	ErrAlreadyCancelled = &Error{Kind: KindInvalidState, Code: "appointment_already_cancelled", Message: "appointment already cancelled"}
	ErrNotCancellable   = &Error{Kind: KindInvalidState, Code: "appointment_not_cancellable", Message: "appointment can no longer be cancelled"}
	ErrStatusChanged    = &Error{Kind: KindInvalidState, Code: "appointment_status_changed", Message: "appointment status changed concurrently"}
	ErrEventNotBooked   = &Error{Kind: KindInvalidState, Code: "event_not_booked", Message: "event is not booked"}

	ErrCompensationFailed = &Error{Kind: KindCompensationFailure, Code: "compensation_failed", Message: "booking failed and the event could not be released"}
)

func internal(err error) error {
	return ErrInternal.Wrap(err)
}
