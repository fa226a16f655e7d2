package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"clinic-booking/pkg/logging"
)

const (
	DefaultPollInterval = time.Hour
	DefaultPollTimeout  = 30 * time.Second
)

var ErrPollerRunning = errors.New("poller already running")

// Counter reports how many appointments a viewer can currently see.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type CounterFunc func(ctx context.Context) (int, error)

func (f CounterFunc) Count(ctx context.Context) (int, error) { return f(ctx) }

// BoardCounter refreshes b from f on every count, so polling also keeps the
// board current.
func BoardCounter(b *Board, f Fetcher) Counter {
	return CounterFunc(func(ctx context.Context) (int, error) {
		return b.Refresh(ctx, f)
	})
}

// CountIncreased is emitted when a poll sees more appointments than the
// previous successful poll.
type CountIncreased struct {
	Old int
	New int
	At  time.Time
}

// CountWatcher is the change detector. It compares counts only, so an
// appointment cancelled and another added between two polls goes unseen.
type CountWatcher struct {
	prev   int
	primed bool
}

// Observe records n. The first observation only primes the watcher.
func (w *CountWatcher) Observe(n int) (CountIncreased, bool) {
	if !w.primed {
		w.primed = true
		w.prev = n
		return CountIncreased{}, false
	}
	old := w.prev
	w.prev = n
	if n > old {
		return CountIncreased{Old: old, New: n}, true
	}
	return CountIncreased{}, false
}

func (w *CountWatcher) Reset() {
	w.prev, w.primed = 0, false
}

type PollerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poller re-counts on a fixed schedule and tells a subscriber about
// increases. It can be stopped and started again; each Start behaves like
// a fresh mount and re-primes the count.
type Poller struct {
	src      Counter
	notify   func(CountIncreased)
	interval time.Duration
	timeout  time.Duration
	log      *logging.Logger
	now      func() time.Time

	mu     sync.Mutex
	sched  *cron.Cron
	cancel context.CancelFunc

	pollMu  sync.Mutex
	watcher CountWatcher
}

func NewPoller(src Counter, notify func(CountIncreased), cfg PollerConfig, logger *logging.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	if notify == nil {
		notify = func(CountIncreased) {}
	}
	return &Poller{
		src:      src,
		notify:   notify,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		log:      logger,
		now:      time.Now,
	}
}

// Poll runs one cycle. A failed count leaves the recorded count alone so
// the next tick compares against the last good value.
func (p *Poller) Poll(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	n, err := p.src.Count(ctx)
	if err != nil {
		p.log.WithError(err).Warn("poll failed, will retry on next tick")
		return err
	}
	if ev, ok := p.watcher.Observe(n); ok {
		ev.At = p.now()
		p.log.WithFields(logrus.Fields{"old": ev.Old, "new": ev.New}).Info("new appointment detected")
		p.notify(ev)
	}
	return nil
}

// Start performs the initial count synchronously and schedules the rest.
// An initial failure is logged and the schedule still starts.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		return ErrPollerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.pollMu.Lock()
	p.watcher.Reset()
	p.pollMu.Unlock()
	_ = p.Poll(runCtx)

	c := cron.New()
	c.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		_ = p.Poll(runCtx)
	}))
	c.Start()

	p.sched, p.cancel = c, cancel
	p.log.WithField("interval", p.interval.String()).Debug("poller started")
	return nil
}

// Stop cancels the schedule and waits for an in-flight poll to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	c, cancel := p.sched, p.cancel
	p.sched, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched != nil
}
