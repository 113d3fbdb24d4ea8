package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pushrelay/pushrelay/internal/logging"
	"github.com/pushrelay/pushrelay/internal/metrics"
	"github.com/pushrelay/pushrelay/internal/notify"
	"github.com/pushrelay/pushrelay/internal/source"
)

// State is the listener lifecycle phase.
type State int

const (
	StateUnauthorized State = iota
	StateAuthorized
	StateRunning
	StateRunningWithEvents
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateRunning:
		return "running"
	case StateRunningWithEvents:
		return "running_with_events"
	case StateStopped:
		return "stopped"
	default:
		return "unauthorized"
	}
}

// Callback receives each new notification that survived dedup and the
// empty-content check. It runs on the listener's goroutine; slow callbacks
// delay the next entry, not the next poll tick.
type Callback func(ctx context.Context, n notify.Notification)

// Options tunes the listening loop. Zero values fall back to defaults.
type Options struct {
	PollInterval  time.Duration
	SeenCapacity  int
	DispatchRate  float64 // callbacks per second, 0 disables limiting
	DispatchBurst int
}

// Listener drives one notification source: it polls the pending list on an
// interval, optionally consumes push events, and hands every notification it
// has not seen before to the callback exactly once.
type Listener struct {
	src      source.Source
	cb       Callback
	seen     *seenSet
	interval time.Duration
	limiter  *rate.Limiter

	mu          sync.Mutex
	state       State
	unsubscribe func()

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   func()

	Now func() time.Time // injectable clock for testing
}

// New creates a listener for the given source. The callback must be non-nil.
func New(src source.Source, cb Callback, opts Options) *Listener {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	var limiter *rate.Limiter
	if opts.DispatchRate > 0 {
		burst := opts.DispatchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.DispatchRate), burst)
	}
	return &Listener{
		src:      src,
		cb:       cb,
		seen:     newSeenSet(opts.SeenCapacity),
		interval: interval,
		limiter:  limiter,
		quit:     make(chan struct{}),
		Now:      time.Now,
	}
}

// State returns the current lifecycle phase.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// RequestAccess asks the source for permission to observe notifications.
// The listener only advances to authorized on an explicit allow; anything
// else leaves it unauthorized so Start will refuse to run.
func (l *Listener) RequestAccess(ctx context.Context) error {
	status, err := l.src.RequestAccess(ctx)
	if err != nil {
		return fmt.Errorf("requesting source access: %w", err)
	}
	if status != source.AccessAllowed {
		return fmt.Errorf("source access %s", status)
	}
	l.setState(StateAuthorized)
	logging.Get().Info().Msg("notification source access granted")
	return nil
}

// Start runs the listening loop until Stop is called or ctx is cancelled.
// It blocks, so callers run it on its own goroutine. A fault anywhere in
// the loop is caught and ends the loop cleanly instead of crashing the
// process.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateAuthorized {
		st := l.state
		l.mu.Unlock()
		return fmt.Errorf("cannot start listener in state %s", st)
	}
	l.state = StateRunning
	l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	l.ctx = runCtx
	l.cancel = cancel

	logging.Get().Info().Dur("interval", l.interval).Msg("starting notification listener")
	l.subscribeOnce()

	l.wg.Add(1)
	func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Get().Error().Interface("panic", r).Msg("listening loop fault, stopping")
			}
		}()
		l.run(runCtx)
	}()

	l.teardown()
	return nil
}

// subscribeOnce makes the single push-event subscription attempt. Failure is
// not fatal: the listener keeps polling without events.
func (l *Listener) subscribeOnce() {
	cancel, err := l.src.Subscribe(l.onEvent)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("push events unavailable, polling only")
		return
	}
	l.mu.Lock()
	l.unsubscribe = cancel
	l.state = StateRunningWithEvents
	l.mu.Unlock()
	logging.Get().Info().Msg("push events enabled")
}

func (l *Listener) run(ctx context.Context) {
	// Immediate first pass so pending notifications don't wait a full tick.
	l.pollOnce(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.pollOnce(ctx)
		case <-l.quit:
			logging.Get().Info().Msg("stopping listener")
			return
		case <-ctx.Done():
			logging.Get().Info().Msg("listener context cancelled")
			return
		}
	}
}

// pollOnce reads the source's pending list and processes every entry. A
// failed snapshot only skips this cycle; the next tick retries.
func (l *Listener) pollOnce(ctx context.Context) {
	raws, err := l.src.Snapshot(ctx)
	if err != nil {
		logging.Get().Debug().Err(err).Msg("snapshot failed, will retry next cycle")
		return
	}
	for _, r := range raws {
		l.process(ctx, r)
	}
	metrics.SetLastPoll(l.Now())
}

// onEvent handles one push event by looking the entry up and running it
// through the same claim path the poll cycle uses, so an id delivered both
// ways is still forwarded once.
func (l *Listener) onEvent(id string) {
	if id == "" {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		return
	}
	l.wg.Add(1)
	defer l.wg.Done()
	raw, ok, err := l.src.ByID(ctx, id)
	if err != nil {
		logging.Get().Debug().Err(err).Str("id", id).Msg("event lookup failed")
		return
	}
	if !ok {
		// Already gone from the pending list; the poll never saw it either.
		logging.Get().Debug().Str("id", id).Msg("event for unknown id")
		return
	}
	l.process(ctx, raw)
}

// process claims one raw entry and, when it is new, extracts and forwards
// it. A fault while handling one entry is caught here so the rest of the
// batch still goes through.
func (l *Listener) process(ctx context.Context, r source.Raw) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Get().Error().Interface("panic", rec).Str("id", r.ID).Msg("fault processing notification, skipped")
		}
	}()

	if r.ID == "" {
		metrics.IncExtractError()
		logging.Get().Debug().Msg("skipping notification without id")
		return
	}
	metrics.IncObserved()
	if !l.seen.claim(r.ID) {
		metrics.IncDuplicate()
		return
	}
	n, err := source.Extract(r)
	if err != nil {
		metrics.IncExtractError()
		logging.Get().Warn().Err(err).Str("id", r.ID).Msg("failed to extract notification, skipped")
		return
	}
	if !n.HasContent() {
		metrics.IncEmptyDropped()
		logging.Get().Debug().Str("id", r.ID).Str("app", n.AppName).Msg("dropping notification with no text")
		return
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}
	}
	l.cb(ctx, n)
}

func (l *Listener) teardown() {
	l.mu.Lock()
	unsub := l.unsubscribe
	l.unsubscribe = nil
	l.state = StateStopped
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if l.cancel != nil {
		l.cancel()
	}
}

// Stop signals the loop to exit and waits for in-flight work, up to the
// context deadline. Safe to call more than once.
func (l *Listener) Stop(ctx context.Context) {
	l.stopOnce.Do(func() { close(l.quit) })

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Get().Warn().Msg("shutdown timeout exceeded waiting for listener")
	}
}
