package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

func TestRegistryGetOrCreateOnce(t *testing.T) {
	r := NewRegistry(nil)
	var built atomic.Int32
	factory := func() (*Worker, error) {
		built.Add(1)
		s, _ := newState(t, `actions.noop = function() end`)
		return New("media/player", s), nil
	}

	var wg sync.WaitGroup
	workers := make([]*Worker, 32)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := r.GetOrCreate("media/player", factory)
			assert.NoError(t, err)
			workers[i] = w
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	for _, w := range workers {
		assert.Same(t, workers[0], w)
	}
	require.NoError(t, r.CloseAll(context.Background()))
}

func TestRegistryFactoryError(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("boom")

	_, err := r.GetOrCreate("broken", func() (*Worker, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := r.Get("broken")
	assert.False(t, ok)
	assert.Empty(t, r.IDs())
}

func TestRegistryListingAndClose(t *testing.T) {
	r := NewRegistry(nil)
	var created []*Worker
	for _, remote := range []types.RemoteID{"b/two", "a/one", "c/three"} {
		w, err := r.GetOrCreate(remote, func() (*Worker, error) {
			s, _ := newState(t, `actions.noop = function() end`)
			return New(remote, s), nil
		})
		require.NoError(t, err)
		created = append(created, w)
	}
	require.NoError(t, created[0].Send(context.Background(), types.CallActionRequest{Action: "noop"}))

	assert.Equal(t, []types.RemoteID{"a/one", "b/two", "c/three"}, r.IDs())

	stats := r.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, types.RemoteID("a/one"), stats[0].Remote)
	assert.True(t, stats[1].Started)

	require.NoError(t, r.Remove(context.Background(), "b/two"))
	require.NoError(t, r.Remove(context.Background(), "missing"))
	assert.Equal(t, []types.RemoteID{"a/one", "c/three"}, r.IDs())
	assert.True(t, created[0].Stats().Closed)

	require.NoError(t, r.CloseAll(context.Background()))
	assert.Empty(t, r.IDs())
	for _, w := range created {
		assert.True(t, w.Stats().Closed)
	}
}
