package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/AhmetDumanli/Dakik-new/internal/event"
)

type fakeRepository struct {
	mu     sync.Mutex
	items  map[int64]*Appointment
	nextID int64
	logs   []EventLog

	createErr error
	// updateErr is returned by UpdateStatus when moving to failOn.
	failOn    Status
	updateErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{items: make(map[int64]*Appointment)}
}

func (r *fakeRepository) Create(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.items[a.ID] = &a
	cp := a
	return &cp, nil
}

func (r *fakeRepository) GetByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepository) UpdateStatus(ctx context.Context, id int64, from, to Status) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil && r.failOn == to {
		return nil, r.updateErr
	}
	a, ok := r.items[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepository) ListByBooker(_ context.Context, bookedBy int64) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for id := r.nextID; id > 0; id-- {
		if a, ok := r.items[id]; ok && a.BookedBy == bookedBy {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepository) ListByOwner(_ context.Context, ownerID int64, status Status) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for id := r.nextID; id > 0; id-- {
		a, ok := r.items[id]
		if !ok || a.EventOwnerID != ownerID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, ev)
	return nil
}

func (r *fakeRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *fakeRepository) logTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.EventType)
	}
	return out
}

// fakeEvents runs the real event transitions against in-memory rows. errs
// injects a failure per operation name before the transition runs; before
// runs once ahead of the named operation. A done context fails the call.
type fakeEvents struct {
	mu     sync.Mutex
	events map[int64]*event.Event
	calls  []string
	errs   map[string]error
	before map[string]func()

	// blockLock makes Lock wait for its context to expire.
	blockLock bool
}

func newFakeEvents(events ...event.Event) *fakeEvents {
	f := &fakeEvents{
		events: make(map[int64]*event.Event),
		errs:   make(map[string]error),
		before: make(map[string]func()),
	}
	for i := range events {
		e := events[i]
		f.events[e.ID] = &e
	}
	return f
}

func (f *fakeEvents) apply(ctx context.Context, op string, id int64, t event.Transition) (*event.Event, error) {
	f.mu.Lock()
	hook := f.before[op]
	delete(f.before, op)
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.errs[op]; err != nil {
		return nil, err
	}
	e, ok := f.events[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	next := *e
	if err := t(&next); err != nil {
		return nil, err
	}
	next.Version++
	*e = next
	cp := next
	return &cp, nil
}

func (f *fakeEvents) Get(ctx context.Context, id int64) (*event.Event, error) {
	return f.apply(ctx, "get", id, func(*event.Event) error { return nil })
}

func (f *fakeEvents) Lock(ctx context.Context, id int64) (*event.Event, error) {
	if f.blockLock {
		f.mu.Lock()
		f.calls = append(f.calls, "lock")
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.apply(ctx, "lock", id, event.Lock)
}

func (f *fakeEvents) Book(ctx context.Context, id int64) (*event.Event, error) {
	return f.apply(ctx, "book", id, event.Book)
}

func (f *fakeEvents) Unlock(ctx context.Context, id int64) error {
	_, err := f.apply(ctx, "unlock", id, event.Unlock)
	return err
}

func (f *fakeEvents) Unbook(ctx context.Context, id int64) (*event.Event, error) {
	return f.apply(ctx, "unbook", id, event.Unbook)
}

func (f *fakeEvents) state(id int64) event.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id].State()
}

func (f *fakeEvents) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "get" {
			out = append(out, c)
		}
	}
	return out
}

type fakeIdentity struct {
	mu    sync.Mutex
	users map[int64]bool
	err   error
	calls int
}

func (f *fakeIdentity) UserExists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.users[id], nil
}

type published struct {
	key     string
	payload Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (n *recordingNotifier) Publish(_ context.Context, key string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{key: key, payload: payload.(Notification)})
	return nil
}

func (n *recordingNotifier) keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, p := range n.sent {
		out = append(out, p.key)
	}
	return out
}

const (
	owner     int64 = 1
	requester int64 = 2
	stranger  int64 = 3

	publicEventID  int64 = 10
	privateEventID int64 = 20
)

type harness struct {
	svc      *Service
	repo     *fakeRepository
	events   *fakeEvents
	identity *fakeIdentity
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo: newFakeRepository(),
		events: newFakeEvents(
			event.Event{ID: publicEventID, OwnerID: owner, Available: true, IsPublic: true},
			event.Event{ID: privateEventID, OwnerID: owner, Available: true, IsPublic: false},
		),
		identity: &fakeIdentity{users: map[int64]bool{owner: true, requester: true, stranger: true}},
		notifier: &recordingNotifier{},
	}
	logger, _ := test.NewNullLogger()
	h.svc = NewService(h.repo, h.events, h.identity, h.notifier, logger, time.Second)
	return h
}
