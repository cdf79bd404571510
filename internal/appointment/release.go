package appointment

// releaseAction is how an appointment gives its event back. The two are not
// interchangeable: unlock frees a reservation that was never confirmed, unbook
// frees a confirmed booking and its seat.
type releaseAction int

const (
	releaseUnlock releaseAction = iota + 1
	releaseUnbook
)

func (a releaseAction) String() string {
	switch a {
	case releaseUnlock:
		return "unlock"
	case releaseUnbook:
		return "unbook"
	default:
		return "unknown"
	}
}

// releaseFor picks the release a cancellation needs, keyed by the status the
// appointment is in when it is cancelled.
func releaseFor(status Status) (releaseAction, error) {
	switch status {
	case StatusBooked:
		return releaseUnbook, nil
	case StatusPending:
		return releaseUnlock, nil
	case StatusCancelled:
		return 0, ErrAlreadyCancelled
	case StatusFailed, StatusRejected:
		return 0, ErrNotCancellable
	default:
		return 0, ErrNotCancellable
	}
}
