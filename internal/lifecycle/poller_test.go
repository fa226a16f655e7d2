package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

type scriptedCounter struct {
	mu     sync.Mutex
	counts []int
	errs   map[int]error
	calls  int
}

func (s *scriptedCounter) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err := s.errs[i]; err != nil {
		return 0, err
	}
	if i >= len(s.counts) {
		return s.counts[len(s.counts)-1], nil
	}
	return s.counts[i], nil
}

type eventSink struct {
	mu     sync.Mutex
	events []CountIncreased
}

func (e *eventSink) add(ev CountIncreased) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventSink) all() []CountIncreased {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CountIncreased(nil), e.events...)
}

func TestCountWatcherSequence(t *testing.T) {
	var w CountWatcher
	var fired []CountIncreased
	for _, n := range []int{5, 5, 7, 6} {
		if ev, ok := w.Observe(n); ok {
			fired = append(fired, ev)
		}
	}
	require.Len(t, fired, 1)
	assert.Equal(t, 5, fired[0].Old)
	assert.Equal(t, 7, fired[0].New)
}

func TestCountWatcherMissesSameCountSwap(t *testing.T) {
	// Known limitation: one cancelled and one added between polls keeps the
	// count flat, so nothing fires.
	var w CountWatcher
	w.Observe(4)
	_, ok := w.Observe(4)
	assert.False(t, ok)
}

func TestCountWatcherFirstObservationPrimes(t *testing.T) {
	var w CountWatcher
	_, ok := w.Observe(12)
	assert.False(t, ok)
	w.Reset()
	_, ok = w.Observe(3)
	assert.False(t, ok)
}

func TestPollerNotifiesOncePerIncrease(t *testing.T) {
	src := &scriptedCounter{counts: []int{5, 5, 7, 6}}
	sink := &eventSink{}
	p := NewPoller(src, sink.add, PollerConfig{}, logging.Discard())

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Poll(context.Background()))
	}

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].Old)
	assert.Equal(t, 7, events[0].New)
	assert.False(t, events[0].At.IsZero())
}

func TestPollerFailureKeepsPreviousCount(t *testing.T) {
	src := &scriptedCounter{
		counts: []int{5, 0, 6},
		errs:   map[int]error{1: context.DeadlineExceeded},
	}
	sink := &eventSink{}
	p := NewPoller(src, sink.add, PollerConfig{}, logging.Discard())

	require.NoError(t, p.Poll(context.Background()))
	assert.True(t, errors.Is(p.Poll(context.Background()), context.DeadlineExceeded))
	require.NoError(t, p.Poll(context.Background()))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, CountIncreased{Old: 5, New: 6, At: events[0].At}, events[0])
}

func TestPollerAppliesTimeout(t *testing.T) {
	src := CounterFunc(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	p := NewPoller(src, nil, PollerConfig{Timeout: 20 * time.Millisecond}, logging.Discard())

	err := p.Poll(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollerStartStopRestart(t *testing.T) {
	src := &scriptedCounter{counts: []int{2, 2, 2}}
	p := NewPoller(src, nil, PollerConfig{Interval: time.Hour}, logging.Discard())

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerRunning)

	p.Stop()
	assert.False(t, p.Running())
	p.Stop()

	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 2, src.calls, "each Start does one synchronous mount fetch")
}

func TestPollerRestartReprimes(t *testing.T) {
	src := &scriptedCounter{counts: []int{1, 9}}
	sink := &eventSink{}
	p := NewPoller(src, sink.add, PollerConfig{Interval: time.Hour}, logging.Discard())

	require.NoError(t, p.Start(context.Background()))
	p.Stop()
	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	assert.Empty(t, sink.all(), "a remount records the count without notifying")
}

func TestBoardCounterKeepsBoardCurrent(t *testing.T) {
	b := NewBoard(logging.Discard())
	lists := [][]model.Appointment{
		{{ID: "a"}},
		{{ID: "a"}, {ID: "b"}},
	}
	i := 0
	fetch := FetcherFunc(func(ctx context.Context) ([]model.Appointment, error) {
		l := lists[i]
		i++
		return l, nil
	})
	sink := &eventSink{}
	p := NewPoller(BoardCounter(b, fetch), sink.add, PollerConfig{}, logging.Discard())

	require.NoError(t, p.Poll(context.Background()))
	require.NoError(t, p.Poll(context.Background()))

	assert.Equal(t, 2, b.Len())
	require.Len(t, sink.all(), 1)
}
