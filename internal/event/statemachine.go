package event

// Transition mutates an event in memory. It either applies the whole change or
// returns an error and leaves the event untouched.
type Transition func(e *Event) error

// Lock moves FREE -> LOCKED. Locking an already locked event is a conflict,
// not a no-op: only one booking attempt may hold the event.
func Lock(e *Event) error {
	if !e.Available {
		return ErrAlreadyBooked
	}
	if e.Locked {
		return ErrAlreadyLocked
	}
	e.Locked = true
	return nil
}

// Book moves LOCKED or FREE -> BOOKED.
func Book(e *Event) error {
	if !e.Available {
		return ErrAlreadyBooked
	}
	e.Available = false
	e.Locked = false
	e.Participants++
	return nil
}

// Unlock moves any state back to FREE. It is the release for a reservation
// that never got confirmed, and the compensation after a failed Book.
func Unlock(e *Event) error {
	e.Available = true
	e.Locked = false
	return nil
}

// Unbook moves BOOKED -> FREE and gives back the occupied seat.
func Unbook(e *Event) error {
	if e.Available {
		return ErrNotBooked
	}
	e.Available = true
	e.Locked = false
	if e.Participants > 0 {
		e.Participants--
	}
	return nil
}
