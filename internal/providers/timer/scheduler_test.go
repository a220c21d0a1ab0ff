package timer

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
)

// loop runs tasks on a single goroutine the way a worker does
type loop struct {
	L     *lua.LState
	tasks chan providers.Task
	done  chan struct{}
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

func newLoop(t *testing.T) *loop {
	t.Helper()
	l := &loop{
		L:     lua.NewState(),
		tasks: make(chan providers.Task, 16),
		done:  make(chan struct{}),
	}
	t.Cleanup(func() {
		l.start()
		l.mu.Lock()
		l.closed = true
		close(l.tasks)
		l.mu.Unlock()
		<-l.done
		l.L.Close()
	})
	return l
}

func (l *loop) start() {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			for task := range l.tasks {
				task(l)
			}
		}()
	})
}

func (l *loop) Dispatch(ctx context.Context, task providers.Task) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return errors.New("loop closed")
	}
	select {
	case l.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *loop) CallFunction(fn *lua.LFunction, args ...lua.LValue) error {
	return l.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

func (l *loop) LState() *lua.LState { return l.L }

// run executes fn on the loop goroutine and waits for it
func (l *loop) run(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.Dispatch(context.Background(), func(providers.Caller) {
		fn()
		close(done)
	}))
	<-done
}

// counter returns a Lua callback bumping hits
func counter(t *testing.T, L *lua.LState, hits *atomic.Int64) *lua.LFunction {
	t.Helper()
	return L.NewFunction(func(*lua.LState) int {
		hits.Add(1)
		return 0
	})
}

func TestTimeoutFiresOnce(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	_, err := s.Timeout(counter(t, l.L, &hits), 10*time.Millisecond)
	require.NoError(t, err)
	l.start()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), hits.Load())
	assert.Zero(t, s.Len())
}

func TestTimeoutRejectsNegativeDelay(t *testing.T) {
	l := newLoop(t)
	s := New(l)
	_, err := s.Timeout(l.L.NewFunction(func(*lua.LState) int { return 0 }), -time.Millisecond)
	assert.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestCancelledTimersNeverFire(t *testing.T) {
	tests := []struct {
		name string
		add  func(s *Scheduler, fn *lua.LFunction) (ID, error)
	}{
		{"timeout", func(s *Scheduler, fn *lua.LFunction) (ID, error) {
			return s.Timeout(fn, 50*time.Millisecond)
		}},
		{"schedule", func(s *Scheduler, fn *lua.LFunction) (ID, error) {
			return s.At(fn, time.Now().Add(50*time.Millisecond))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLoop(t)
			var hits atomic.Int64
			s := New(l)
			id, err := tt.add(s, counter(t, l.L, &hits))
			require.NoError(t, err)
			l.start()

			var removed bool
			l.run(t, func() { removed = s.Cancel(id) })
			require.True(t, removed)
			assert.Zero(t, s.Len())

			time.Sleep(150 * time.Millisecond)
			assert.Zero(t, hits.Load())
		})
	}
}

// holdingDispatcher keeps every task instead of running it
type holdingDispatcher struct {
	mu    sync.Mutex
	tasks []providers.Task
}

func (d *holdingDispatcher) Dispatch(_ context.Context, task providers.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *holdingDispatcher) held() []providers.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]providers.Task(nil), d.tasks...)
}

// hitCaller counts the callbacks a task invokes
type hitCaller struct{ hits *atomic.Int64 }

func (c hitCaller) CallFunction(*lua.LFunction, ...lua.LValue) error {
	c.hits.Add(1)
	return nil
}

func (hitCaller) LState() *lua.LState { return nil }

func TestCancelDropsQueuedFiring(t *testing.T) {
	tests := []struct {
		name string
		add  func(s *Scheduler, fn *lua.LFunction) (ID, error)
	}{
		{"timeout", func(s *Scheduler, fn *lua.LFunction) (ID, error) {
			return s.Timeout(fn, time.Millisecond)
		}},
		{"interval", func(s *Scheduler, fn *lua.LFunction) (ID, error) {
			return s.Interval(fn, time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &holdingDispatcher{}
			L := lua.NewState()
			defer L.Close()
			s := New(d)
			id, err := tt.add(s, L.NewFunction(func(*lua.LState) int { return 0 }))
			require.NoError(t, err)

			require.Eventually(t, func() bool { return len(d.held()) > 0 }, time.Second, time.Millisecond)
			require.True(t, s.Cancel(id))

			var hits atomic.Int64
			for _, task := range d.held() {
				task(hitCaller{hits: &hits})
			}
			assert.Zero(t, hits.Load())
			assert.Zero(t, s.Len())
		})
	}
}

func TestIntervalStopsAfterCancel(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	id, err := s.Interval(counter(t, l.L, &hits), 2*time.Millisecond)
	require.NoError(t, err)
	l.start()

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, time.Second, 2*time.Millisecond)

	var removed bool
	l.run(t, func() { removed = s.Cancel(id) })
	require.True(t, removed)
	after := hits.Load()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, hits.Load())
	assert.False(t, s.Cancel(id))
}

func TestIntervalTicksCoalesce(t *testing.T) {
	l := newLoop(t)
	s := New(l)
	id, err := s.Interval(l.L.NewFunction(func(*lua.LState) int { return 0 }), time.Millisecond)
	require.NoError(t, err)

	// Nothing drains the loop yet, so at most one firing may be queued
	time.Sleep(40 * time.Millisecond)
	assert.Len(t, l.tasks, 1)
	assert.True(t, s.Cancel(id))
}

func TestScheduleValidation(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		iso  string
	}{
		{"past", "2020-01-01T00:00:00Z"},
		{"now", now.Format(time.RFC3339)},
		{"garbage", "invalid-time"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLoop(t)
			s := New(l, WithClock(func() time.Time { return now }))
			_, err := s.Schedule(l.L.NewFunction(func(*lua.LState) int { return 0 }), tt.iso)
			assert.ErrorIs(t, err, ErrTimerScheduleInvalid)
			assert.Zero(t, s.Len())
		})
	}
}

func TestScheduleFiresAtTime(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	at := time.Now().Add(20 * time.Millisecond)
	_, err := s.Schedule(counter(t, l.L, &hits), at.Format(time.RFC3339Nano))
	require.NoError(t, err)
	l.start()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, time.Now().Before(at))
}

func TestParseTimeForms(t *testing.T) {
	for _, iso := range []string{
		"2030-01-02T03:04:05Z",
		"2030-01-02T03:04:05+02:00",
		"2030-01-02T03:04:05.123Z",
		"2030-01-02T03:04:05",
		"2030-01-02 03:04:05",
	} {
		got, err := ParseTime(iso)
		require.NoError(t, err, iso)
		assert.Equal(t, 2030, got.Year(), iso)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	fn := counter(t, l.L, &hits)
	_, err := s.Interval(fn, time.Millisecond)
	require.NoError(t, err)
	_, err = s.Timeout(fn, 5*time.Millisecond)
	require.NoError(t, err)

	s.Close()
	l.start()
	assert.Zero(t, s.Len())

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, hits.Load())

	_, err = s.Timeout(fn, time.Millisecond)
	assert.Error(t, err)
}

func TestCallbackErrorsAreSwallowed(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	failing := l.L.NewFunction(func(L *lua.LState) int {
		hits.Add(1)
		L.RaiseError("boom")
		return 0
	})
	_, err := s.Interval(failing, 2*time.Millisecond)
	require.NoError(t, err)
	l.start()

	require.Eventually(t, func() bool { return hits.Load() >= 2 }, time.Second, 2*time.Millisecond)
	l.run(t, s.Close)
}

type countingDispatcher struct{ n atomic.Int64 }

func (d *countingDispatcher) Dispatch(_ context.Context, task providers.Task) error {
	d.n.Add(1)
	task(nopCaller{})
	return nil
}

type nopCaller struct{}

func (nopCaller) CallFunction(*lua.LFunction, ...lua.LValue) error { return nil }
func (nopCaller) LState() *lua.LState                              { return nil }

func TestDroppedSchedulerEndsIntervals(t *testing.T) {
	d := &countingDispatcher{}
	L := lua.NewState()
	defer L.Close()

	func() {
		s := New(d)
		_, err := s.Interval(L.NewFunction(func(*lua.LState) int { return 0 }), time.Millisecond)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return d.n.Load() > 0 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		runtime.GC()
		before := d.n.Load()
		time.Sleep(10 * time.Millisecond)
		return d.n.Load() == before
	}, 2*time.Second, time.Millisecond)
}

func TestLuaModule(t *testing.T) {
	l := newLoop(t)
	var hits atomic.Int64
	s := New(l)
	l.L.SetGlobal("hit", counter(t, l.L, &hits))
	l.L.PreloadModule(s.Name(), s.Loader)

	require.NoError(t, l.L.DoString(`
		local timer = require("timer")
		first = timer.timeout(function() hit() end, 5)
		second = timer.interval(function() hit() end, 1000)
		cancelled = timer.cancel(second)
		missing = timer.cancel(999)
	`))
	assert.Equal(t, lua.LNumber(1), l.L.GetGlobal("first"))
	assert.Equal(t, lua.LNumber(2), l.L.GetGlobal("second"))
	assert.Equal(t, lua.LTrue, l.L.GetGlobal("cancelled"))
	assert.Equal(t, lua.LFalse, l.L.GetGlobal("missing"))

	err := l.L.DoString(`require("timer").schedule(function() end, "2020-01-01T00:00:00Z")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduled time is in the past")

	err = l.L.DoString(`require("timer").interval(function() end, 0)`)
	require.Error(t, err)

	for _, code := range []string{
		`require("timer").timeout(function() end, 9.3e12)`,
		`require("timer").interval(function() end, 9.3e12)`,
	} {
		err = l.L.DoString(code)
		require.Error(t, err, code)
		assert.Contains(t, err.Error(), "too long", code)
	}

	l.start()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
}
