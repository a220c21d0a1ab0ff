package worker

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Factory builds the worker of a remote on first use
type Factory func() (*Worker, error)

// Registry holds one worker per remote
type Registry struct {
	mu      sync.RWMutex
	workers map[types.RemoteID]*Worker
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		workers: make(map[types.RemoteID]*Worker),
		logger:  logger,
	}
}

// GetOrCreate returns the remote's worker, building it with factory if
// there is none yet. Concurrent callers get the same worker.
func (r *Registry) GetOrCreate(remote types.RemoteID, factory Factory) (*Worker, error) {
	r.mu.RLock()
	w, ok := r.workers[remote]
	r.mu.RUnlock()
	if ok {
		return w, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[remote]; ok {
		return w, nil
	}
	w, err := factory()
	if err != nil {
		return nil, err
	}
	r.workers[remote] = w
	r.logger.Debug("worker registered", zap.String("remote", string(remote)))
	return w, nil
}

// Get retrieves the worker of a remote
func (r *Registry) Get(remote types.RemoteID) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[remote]
	return w, ok
}

// IDs returns the registered remotes in sorted order
func (r *Registry) IDs() []types.RemoteID {
	r.mu.RLock()
	ids := make([]types.RemoteID, 0, len(r.workers))
	for remote := range r.workers {
		ids = append(ids, remote)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Stats returns a snapshot of every worker, sorted by remote
func (r *Registry) Stats() []Stats {
	ids := r.IDs()
	out := make([]Stats, 0, len(ids))
	for _, remote := range ids {
		if w, ok := r.Get(remote); ok {
			out = append(out, w.Stats())
		}
	}
	return out
}

// Remove unregisters a remote and closes its worker
func (r *Registry) Remove(ctx context.Context, remote types.RemoteID) error {
	r.mu.Lock()
	w, ok := r.workers[remote]
	delete(r.workers, remote)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return w.Close(ctx)
}

// CloseAll closes every worker in parallel and empties the registry
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	clear(r.workers)
	r.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Close(ctx); err != nil {
				r.logger.Warn("worker did not stop cleanly", zap.String("remote", string(w.Remote())), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return errors.Join(errs...)
}
