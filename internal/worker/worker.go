package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
	"github.com/GriffinCanCode/uniremote/backend/internal/sandbox"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/id"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

const (
	DefaultQueueSize        = 100
	DefaultSendAttempts     = 10
	DefaultRetryBackoff     = 10 * time.Millisecond
	DefaultSubscriberBuffer = 100
)

// Lifecycle event names delivered to the script's events table
const (
	EventCreate  = "create"
	EventDestroy = "destroy"
	EventFocus   = "focus"
	EventBlur    = "blur"
)

type kind uint8

const (
	kindRequest kind = iota
	kindEvent
	kindTask
)

type envelope struct {
	kind  kind
	req   types.CallActionRequest
	rid   id.RequestID
	event string
	task  providers.Task
	// done is closed once the envelope has been processed
	done chan struct{}
}

// Worker serializes every call into one remote's script
type Worker struct {
	remote   types.RemoteID
	state    *sandbox.State
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	attempts int
	backoff  time.Duration
	buffer   int

	inbox chan envelope
	quit  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
	closeMu   sync.RWMutex // held shared by senders, exclusively while closing the inbox
	closed    bool

	lifeMu sync.Mutex // orders subscriber count edges with their events
	count  atomic.Int64

	subsMu sync.RWMutex
	subs   map[id.SubscriptionID]*Subscription

	dropped atomic.Uint64
}

// Option configures a Worker
type Option func(*Worker)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithQueueSize sets the inbox capacity
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan envelope, n)
		}
	}
}

// WithRetry sets how often Send retries a full inbox and how long it
// waits between tries
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

// WithSubscriberBuffer sets the channel capacity of each subscription
func WithSubscriberBuffer(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.buffer = n
		}
	}
}

// New creates a worker for state and attaches itself as the state's
// dispatcher. The drain loop starts on first use.
func New(remote types.RemoteID, state *sandbox.State, opts ...Option) *Worker {
	w := &Worker{
		remote:   remote,
		state:    state,
		logger:   zap.NewNop(),
		attempts: DefaultSendAttempts,
		backoff:  DefaultRetryBackoff,
		buffer:   DefaultSubscriberBuffer,
		inbox:    make(chan envelope, DefaultQueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[id.SubscriptionID]*Subscription),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("remote", string(remote)))

	state.Attach(w)
	return w
}

func (w *Worker) Remote() types.RemoteID { return w.remote }

// Send queues an action request. A full inbox is retried with backoff
// before giving up with ErrQueueSaturated.
func (w *Worker) Send(ctx context.Context, req types.CallActionRequest) error {
	env := envelope{kind: kindRequest, req: req, rid: id.NewRequestID()}
	for attempt := 1; ; attempt++ {
		queued, err := w.tryEnqueue(env)
		if err != nil {
			return err
		}
		if queued {
			w.logger.Debug("action queued",
				zap.String("action", string(req.Action)),
				zap.Stringer("request_id", env.rid),
			)
			return nil
		}
		if attempt >= w.attempts {
			w.metrics.RecordQueueSaturated(string(w.remote))
			w.logger.Warn("dropping action, queue saturated", zap.String("action", string(req.Action)))
			return fmt.Errorf("%w: %s", ErrQueueSaturated, w.remote)
		}

		timer := time.NewTimer(w.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-w.quit:
			timer.Stop()
			return ErrWorkerClosed
		case <-timer.C:
		}
	}
}

// Dispatch queues a deferred task, waiting for room in the inbox. It
// implements providers.Dispatcher for timers and async callbacks.
func (w *Worker) Dispatch(ctx context.Context, task providers.Task) error {
	return w.enqueue(ctx, envelope{kind: kindTask, task: task})
}

// Publish delivers ev to every subscriber without blocking. Subscribers
// with a full buffer miss the event.
func (w *Worker) Publish(ev types.OutboundEvent) {
	w.subsMu.RLock()
	defer w.subsMu.RUnlock()

	for _, sub := range w.subs {
		if !sub.deliver(ev) {
			w.dropped.Add(1)
			w.metrics.RecordDroppedEvent(string(w.remote))
		}
	}
}

// Subscribe registers a receiver for outbound updates. The first
// subscriber triggers focus, which has run by the time Subscribe returns.
func (w *Worker) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := newSubscription(w, w.buffer)

	w.lifeMu.Lock()
	w.closeMu.RLock()
	closed := w.closed
	w.closeMu.RUnlock()
	if closed {
		w.lifeMu.Unlock()
		return nil, ErrWorkerClosed
	}

	w.subsMu.Lock()
	w.subs[sub.id] = sub
	w.subsMu.Unlock()

	var focused chan struct{}
	if w.count.Add(1) == 1 {
		focused = make(chan struct{})
		if err := w.enqueue(ctx, envelope{kind: kindEvent, event: EventFocus, done: focused}); err != nil {
			w.count.Add(-1)
			w.subsMu.Lock()
			delete(w.subs, sub.id)
			w.subsMu.Unlock()
			w.lifeMu.Unlock()
			sub.shut()
			return nil, err
		}
	}
	w.metrics.SetSubscribers(string(w.remote), w.count.Load())
	w.lifeMu.Unlock()

	if focused != nil {
		select {
		case <-focused:
		case <-w.done:
		case <-ctx.Done():
			sub.Close()
			return nil, ctx.Err()
		}
	}
	w.logger.Debug("subscribed", zap.String("subscription", sub.id.String()))
	return sub, nil
}

// unsubscribe removes sub and queues blur when it was the last one
func (w *Worker) unsubscribe(sub *Subscription) {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	w.subsMu.Lock()
	_, registered := w.subs[sub.id]
	delete(w.subs, sub.id)
	w.subsMu.Unlock()
	sub.shut()

	if !registered {
		return
	}
	n := w.count.Add(-1)
	w.metrics.SetSubscribers(string(w.remote), n)
	if n != 0 {
		return
	}
	err := w.enqueue(context.Background(), envelope{kind: kindEvent, event: EventBlur})
	if err != nil && !errors.Is(err, ErrWorkerClosed) {
		w.logger.Warn("failed to queue blur", zap.Error(err))
	}
}

// Close stops accepting work, lets the loop drain the inbox and run
// destroy, then waits for it or for ctx. On expiry the running script
// call is aborted. Close is idempotent.
func (w *Worker) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.quit)

		w.closeMu.Lock()
		w.closed = true
		// consume startOnce so nothing can start the loop from now on
		w.startOnce.Do(func() {})
		started := w.started.Load()
		close(w.inbox)
		w.closeMu.Unlock()

		if !started {
			w.state.Close()
			w.closeSubscriptions()
			close(w.done)
		}
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.state.Abort()
		return fmt.Errorf("close %s: %w", w.remote, ctx.Err())
	}
}

// Done is closed once the worker has fully stopped
func (w *Worker) Done() <-chan struct{} { return w.done }

// Stats is a snapshot for the admin server
type Stats struct {
	Remote      types.RemoteID `json:"remote"`
	Queued      int            `json:"queued"`
	Subscribers int64          `json:"subscribers"`
	Dropped     uint64         `json:"dropped"`
	Timers      int            `json:"timers"`
	Started     bool           `json:"started"`
	Closed      bool           `json:"closed"`
}

func (w *Worker) Stats() Stats {
	w.closeMu.RLock()
	closed := w.closed
	w.closeMu.RUnlock()

	return Stats{
		Remote:      w.remote,
		Queued:      len(w.inbox),
		Subscribers: w.count.Load(),
		Dropped:     w.dropped.Load(),
		Timers:      w.state.Timers(),
		Started:     w.started.Load(),
		Closed:      closed,
	}
}

// start launches the drain loop once. Callers hold closeMu shared.
func (w *Worker) start() {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.run()
	})
}

func (w *Worker) tryEnqueue(env envelope) (bool, error) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return false, ErrWorkerClosed
	}
	w.start()
	select {
	case w.inbox <- env:
		return true, nil
	default:
		return false, nil
	}
}

// enqueue waits for room in the inbox. It must not be called from the
// drain loop itself.
func (w *Worker) enqueue(ctx context.Context, env envelope) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return ErrWorkerClosed
	}
	w.start()
	select {
	case w.inbox <- env:
		return nil
	case <-w.quit:
		return ErrWorkerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	w.metrics.WorkerStarted()
	defer w.metrics.WorkerStopped()
	w.logger.Info("worker started")

	w.event(EventCreate)
	for env := range w.inbox {
		w.handle(env)
	}
	w.event(EventDestroy)

	w.state.Close()
	w.closeSubscriptions()
	w.logger.Info("worker stopped")
}

func (w *Worker) handle(env envelope) {
	if env.done != nil {
		defer close(env.done)
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("recovered from panic in worker", zap.Any("panic", r))
		}
	}()

	switch env.kind {
	case kindRequest:
		w.action(env.req, env.rid)
	case kindEvent:
		w.event(env.event)
	case kindTask:
		env.task(w.state)
	}
}

func (w *Worker) action(req types.CallActionRequest, rid id.RequestID) {
	timer := monitoring.NewTimer(w.metrics, string(w.remote))
	err := w.state.CallAction(req.Action, req.Args)
	if err == nil {
		timer.Stop("ok")
		return
	}

	status := "error"
	switch {
	case errors.Is(err, sandbox.ErrActionNotFound):
		status = "not_found"
	case sandbox.IsLimit(err):
		status = "limit"
	}
	elapsed := timer.Stop(status)
	w.logger.Error("action failed",
		zap.String("action", string(req.Action)),
		zap.Stringer("request_id", rid),
		zap.String("status", status),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
}

func (w *Worker) event(name string) {
	if err := w.state.TriggerEvent(name); err != nil {
		w.metrics.RecordEvent(string(w.remote), name, "error")
		w.logger.Warn("lifecycle event failed", zap.String("event", name), zap.Error(err))
		return
	}
	w.metrics.RecordEvent(string(w.remote), name, "ok")
}

func (w *Worker) closeSubscriptions() {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	w.subsMu.Lock()
	for _, sub := range w.subs {
		sub.shut()
	}
	clear(w.subs)
	w.subsMu.Unlock()

	w.count.Store(0)
	w.metrics.SetSubscribers(string(w.remote), 0)
}
