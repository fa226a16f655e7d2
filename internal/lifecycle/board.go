package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

var ErrUnknownAppointment = errors.New("appointment not on board")

// Fetcher loads the appointment list a viewer is scoped to.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Appointment, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]model.Appointment, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]model.Appointment, error) { return f(ctx) }

// StatusSetter sends a status change to the backend.
type StatusSetter interface {
	SetStatus(ctx context.Context, id string, to model.Status) (*model.Appointment, error)
}

// Board is one viewer's local copy of its appointments. Status changes are
// pessimistic: the local record only changes after the server accepts.
//
// Fetches and mutations share one monotonic clock. A fetch result is
// dropped when a mutation committed, or a newer fetch was applied, after
// the fetch was issued.
type Board struct {
	mu           sync.Mutex
	items        []model.Appointment
	clock        uint64
	lastMutation uint64
	lastApplied  uint64
	log          *logging.Logger
}

func NewBoard(logger *logging.Logger) *Board {
	if logger == nil {
		logger = logging.Default()
	}
	return &Board{log: logger}
}

// Begin issues a fetch ticket.
func (b *Board) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock++
	return b.clock
}

// Apply installs a fetch result unless it is stale; it reports whether
// the list was replaced.
func (b *Board) Apply(ticket uint64, list []model.Appointment) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ticket < b.lastMutation || ticket < b.lastApplied {
		b.log.WithFields(logrus.Fields{"ticket": ticket, "last_mutation": b.lastMutation}).Debug("discarding stale fetch")
		return false
	}
	b.items = append(b.items[:0:0], list...)
	b.lastApplied = ticket
	return true
}

// Refresh fetches and applies in one step. The returned count is what the
// server reported, whether or not the result was applied.
func (b *Board) Refresh(ctx context.Context, f Fetcher) (int, error) {
	ticket := b.Begin()
	list, err := f.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	b.Apply(ticket, list)
	return len(list), nil
}

// SetStatus checks the transition locally, sends it, and updates the local
// record only on success.
func (b *Board) SetStatus(ctx context.Context, s StatusSetter, id string, to model.Status) error {
	cur, ok := b.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAppointment, id)
	}
	if err := CheckTransition(cur.Status, to); err != nil {
		return err
	}

	updated, err := s.SetStatus(ctx, id, to)
	if err != nil {
		b.log.WithFields(logrus.Fields{"appointment_id": id, "status": to, "error": err}).Error("status change failed")
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock++
	b.lastMutation = b.clock
	for i := range b.items {
		if b.items[i].ID != id {
			continue
		}
		if updated != nil && updated.ID == id {
			b.items[i] = *updated
		}
		b.items[i].Status = to
	}
	return nil
}

func (b *Board) Get(id string) (model.Appointment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.items {
		if a.ID == id {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// Snapshot returns a copy of the current list.
func (b *Board) Snapshot() []model.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Appointment(nil), b.items...)
}

func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Filter narrows a list the way the dashboards do: an optional status and
// a case-insensitive search over patient, service and doctor.
type Filter struct {
	Status model.Status
	Search string
}

func (f Filter) Apply(list []model.Appointment) []model.Appointment {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []model.Appointment
	for _, a := range list {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(a.PatientName), q) &&
			!strings.Contains(strings.ToLower(a.Service), q) &&
			!strings.Contains(strings.ToLower(a.Doctor), q) {
			continue
		}
		out = append(out, a)
	}
	return out
}
