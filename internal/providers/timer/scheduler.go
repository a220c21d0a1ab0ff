package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
)

// ErrTimerScheduleInvalid is returned for unparseable or past schedule times
var ErrTimerScheduleInvalid = errors.New("invalid timer schedule")

// ID is a script-visible timer handle
type ID uint64

// Kind distinguishes timer flavors in logs and metrics
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindInterval Kind = "interval"
	KindSchedule Kind = "schedule"
)

type entry struct {
	id     ID
	kind   Kind
	fn     *lua.LFunction
	stop   chan struct{}
	queued atomic.Bool
}

// Scheduler owns the timers of one script state
type Scheduler struct {
	dispatcher providers.Dispatcher
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	now        func() time.Time

	mu     sync.Mutex
	timers map[ID]*entry
	nextID ID
	closed bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the clock used to validate schedule times
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler that routes firings through d
func New(d providers.Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher: d,
		logger:     zap.NewNop(),
		now:        time.Now,
		timers:     make(map[ID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout runs fn once after delay
func (s *Scheduler) Timeout(fn *lua.LFunction, delay time.Duration) (ID, error) {
	if delay < 0 {
		return 0, fmt.Errorf("negative timeout: %s", delay)
	}
	e, err := s.add(KindTimeout, fn)
	if err != nil {
		return 0, err
	}
	go once(weak.Make(s), e.id, e.stop, delay)
	return e.id, nil
}

// Interval runs fn every period until cancelled
func (s *Scheduler) Interval(fn *lua.LFunction, period time.Duration) (ID, error) {
	if period < time.Millisecond {
		return 0, fmt.Errorf("interval must be at least 1ms, got %s", period)
	}
	e, err := s.add(KindInterval, fn)
	if err != nil {
		return 0, err
	}
	go repeat(weak.Make(s), e.id, e.stop, period)
	return e.id, nil
}

// At runs fn once at the given instant, which must lie in the future
func (s *Scheduler) At(fn *lua.LFunction, at time.Time) (ID, error) {
	delay := at.Sub(s.now())
	if delay <= 0 {
		return 0, fmt.Errorf("%w: scheduled time is in the past", ErrTimerScheduleInvalid)
	}
	e, err := s.add(KindSchedule, fn)
	if err != nil {
		return 0, err
	}
	go once(weak.Make(s), e.id, e.stop, delay)
	return e.id, nil
}

// Schedule parses an ISO-8601 time and runs fn at it
func (s *Scheduler) Schedule(fn *lua.LFunction, iso string) (ID, error) {
	at, err := ParseTime(iso)
	if err != nil {
		return 0, err
	}
	return s.At(fn, at)
}

// Cancel removes a timer. It reports whether one was registered; after it
// returns the callback will not run again.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	e, ok := s.timers[id]
	if ok {
		delete(s.timers, id)
		close(e.stop)
	}
	s.mu.Unlock()

	if ok {
		s.metrics.TimerRemoved(1)
		s.logger.Debug("cancelled timer", zap.Uint64("timer", uint64(id)))
	}
	return ok
}

// Len returns the number of registered timers
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every timer. Further registrations fail.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	n := len(s.timers)
	for id, e := range s.timers {
		close(e.stop)
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.metrics.TimerRemoved(n)
}

func (s *Scheduler) add(kind Kind, fn *lua.LFunction) (*entry, error) {
	if fn == nil {
		return nil, fmt.Errorf("timer callback is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("timer scheduler closed")
	}

	s.nextID++
	e := &entry{
		id:   s.nextID,
		kind: kind,
		fn:   fn,
		stop: make(chan struct{}),
	}
	s.timers[e.id] = e
	s.metrics.TimerAdded()
	s.logger.Debug("created timer", zap.Uint64("timer", uint64(e.id)), zap.String("kind", string(kind)))
	return e, nil
}

// fire hands a due timer to the dispatcher. A false result ends the
// timer goroutine.
func (s *Scheduler) fire(id ID) bool {
	s.mu.Lock()
	e, ok := s.timers[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return false
	}
	// Skip a tick while the previous one is still waiting in the inbox
	if e.kind == KindInterval && !e.queued.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return true
	}
	stop := e.stop
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.dispatcher.Dispatch(ctx, s.task(id)); err != nil {
		e.queued.Store(false)
		s.logger.Debug("timer firing not delivered", zap.Uint64("timer", uint64(id)), zap.Error(err))
		return false
	}
	return true
}

func (s *Scheduler) task(id ID) providers.Task {
	return func(c providers.Caller) {
		s.mu.Lock()
		e, ok := s.timers[id]
		if ok && e.kind != KindInterval {
			delete(s.timers, id)
			close(e.stop)
		}
		s.mu.Unlock()

		if !ok {
			return
		}
		if e.kind == KindInterval {
			e.queued.Store(false)
		} else {
			s.metrics.TimerRemoved(1)
		}

		s.metrics.RecordTimerFired(string(e.kind))
		if err := c.CallFunction(e.fn); err != nil {
			s.logger.Warn("timer callback failed",
				zap.Uint64("timer", uint64(id)),
				zap.String("kind", string(e.kind)),
				zap.Error(err),
			)
		}
	}
}

func once(wp weak.Pointer[Scheduler], id ID, stop <-chan struct{}, delay time.Duration) {
	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-stop:
	case <-t.C:
		if s := wp.Value(); s != nil {
			s.fire(id)
		}
	}
}

func repeat(wp weak.Pointer[Scheduler], id ID, stop <-chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := wp.Value()
			if s == nil || !s.fire(id) {
				return
			}
		}
	}
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC 3339 timestamps and zone-less local times
func ParseTime(iso string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, iso); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, iso, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: failed to parse ISO 8601 time '%s'", ErrTimerScheduleInvalid, iso)
}
