package worker

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/id"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Subscription receives a worker's outbound updates. Closing the last
// subscription of a worker triggers blur.
type Subscription struct {
	id     id.SubscriptionID
	worker *Worker
	ch     chan types.OutboundEvent
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

func newSubscription(w *Worker, buffer int) *Subscription {
	return &Subscription{
		id:     id.NewSubscriptionID(),
		worker: w,
		ch:     make(chan types.OutboundEvent, buffer),
	}
}

func (s *Subscription) ID() id.SubscriptionID { return s.id }

// C exposes the update channel. It is closed with the subscription.
func (s *Subscription) C() <-chan types.OutboundEvent { return s.ch }

// Recv waits for the next update
func (s *Subscription) Recv(ctx context.Context) (types.OutboundEvent, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return types.OutboundEvent{}, ErrSubscriptionClosed
		}
		return ev, nil
	case <-ctx.Done():
		return types.OutboundEvent{}, ctx.Err()
	}
}

// Close detaches the subscription. It is idempotent and must not be
// called from the worker's own goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.worker.unsubscribe(s)
	})
}

// deliver reports false when the event could not be buffered
func (s *Subscription) deliver(ev types.OutboundEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
