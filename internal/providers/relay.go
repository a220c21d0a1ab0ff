package providers

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Relay stands in for the worker while a state is still loading. Tasks
// dispatched before Attach are held and forwarded in order once a
// dispatcher is bound; updates published before Attach have nobody to
// reach and are dropped.
type Relay struct {
	logger *zap.Logger

	mu        sync.Mutex
	target    Dispatcher
	publisher Publisher
	pending   []Task
	ready     bool
}

// NewRelay creates an unattached relay
func NewRelay(logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{logger: logger}
}

// Attach binds the relay to d and flushes held tasks. When d also
// implements Publisher, updates are forwarded to it as well.
func (r *Relay) Attach(d Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target != nil {
		return
	}
	r.target = d
	if p, ok := d.(Publisher); ok {
		r.publisher = p
	}

	if len(r.pending) == 0 {
		r.ready = true
		return
	}
	// Flushing blocks on the worker inbox, so it must not hold the lock:
	// a task running on the worker may dispatch again.
	go r.flush(d)
}

func (r *Relay) flush(d Dispatcher) {
	for {
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		if len(batch) == 0 {
			r.ready = true
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		for _, task := range batch {
			if err := d.Dispatch(context.Background(), task); err != nil {
				r.logger.Debug("dropping held task", zap.Error(err))
			}
		}
	}
}

// Attached reports whether a dispatcher has been bound
func (r *Relay) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target != nil
}

// Pending returns the number of tasks still held
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Relay) Dispatch(ctx context.Context, task Task) error {
	r.mu.Lock()
	if !r.ready {
		r.pending = append(r.pending, task)
		r.mu.Unlock()
		return nil
	}
	target := r.target
	r.mu.Unlock()

	return target.Dispatch(ctx, task)
}

func (r *Relay) Publish(ev types.OutboundEvent) {
	r.mu.Lock()
	p := r.publisher
	r.mu.Unlock()

	if p == nil {
		r.logger.Debug("no subscribers attached, dropping update", zap.String("action", ev.Action))
		return
	}
	p.Publish(ev)
}
