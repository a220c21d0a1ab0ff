package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// syncDispatcher runs tasks inline and records their order
type syncDispatcher struct {
	recorder
	mu  sync.Mutex
	ran []int
}

func (d *syncDispatcher) Dispatch(_ context.Context, task Task) error {
	task(nil)
	return nil
}

func (d *syncDispatcher) record(i int) Task {
	return func(Caller) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.ran = append(d.ran, i)
	}
}

func (d *syncDispatcher) Ran() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.ran...)
}

func TestRelayHoldsTasksUntilAttach(t *testing.T) {
	r := NewRelay(nil)
	d := &syncDispatcher{}

	for i := range 5 {
		require.NoError(t, r.Dispatch(context.Background(), d.record(i)))
	}
	assert.Equal(t, 5, r.Pending())
	assert.False(t, r.Attached())
	assert.Empty(t, d.Ran())

	r.Attach(d)
	assert.True(t, r.Attached())
	require.Eventually(t, func() bool { return len(d.Ran()) == 5 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, d.Ran())
	assert.Zero(t, r.Pending())

	// once flushed, tasks go straight through
	require.NoError(t, r.Dispatch(context.Background(), d.record(5)))
	require.Eventually(t, func() bool { return len(d.Ran()) == 6 }, time.Second, time.Millisecond)
	assert.Equal(t, 5, d.Ran()[5])
}

func TestRelayAttachWithoutPending(t *testing.T) {
	r := NewRelay(nil)
	d := &syncDispatcher{}
	r.Attach(d)

	require.NoError(t, r.Dispatch(context.Background(), d.record(1)))
	assert.Equal(t, []int{1}, d.Ran())
}

func TestRelayFirstAttachWins(t *testing.T) {
	r := NewRelay(nil)
	first, second := &syncDispatcher{}, &syncDispatcher{}
	r.Attach(first)
	r.Attach(second)

	require.NoError(t, r.Dispatch(context.Background(), first.record(1)))
	r.Publish(types.OutboundEvent{Action: "x"})
	assert.Len(t, first.Events(), 1)
	assert.Empty(t, second.Events())
}

func TestRelayPublish(t *testing.T) {
	r := NewRelay(nil)
	// nobody is listening yet
	r.Publish(types.OutboundEvent{Action: "early"})

	d := &syncDispatcher{}
	r.Attach(d)
	r.Publish(types.OutboundEvent{Action: "late", Args: map[string]any{"text": "hi"}})

	events := d.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].Action)
}

// plainDispatcher cannot receive updates
type plainDispatcher struct{}

func (plainDispatcher) Dispatch(context.Context, Task) error { return nil }

func TestRelayNonPublisherTarget(t *testing.T) {
	r := NewRelay(nil)
	r.Attach(plainDispatcher{})
	assert.NotPanics(t, func() { r.Publish(types.OutboundEvent{Action: "x"}) })
}

func TestInstallSharesTable(t *testing.T) {
	L := newLState(t, NewData())

	v := eval(t, L, `return require("data") == data and libs.data == data`)
	assert.Equal(t, lua.LTrue, v)
}
