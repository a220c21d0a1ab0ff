package providers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/input"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// mockBackend records every input effect
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) IsKey(key string) bool {
	return m.Called(key).Bool(0)
}

func (m *mockBackend) KeyPress(key string) error {
	return m.Called(key).Error(0)
}

func (m *mockBackend) KeyRelease(key string) error {
	return m.Called(key).Error(0)
}

func (m *mockBackend) TypeText(text string) error {
	return m.Called(text).Error(0)
}

func (m *mockBackend) MouseMoveTo(x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *mockBackend) MouseMoveBy(dx, dy int) error {
	return m.Called(dx, dy).Error(0)
}

func (m *mockBackend) MousePress(b input.Button) error {
	return m.Called(b).Error(0)
}

func (m *mockBackend) MouseRelease(b input.Button) error {
	return m.Called(b).Error(0)
}

func (m *mockBackend) MouseScroll(dx, dy int) error {
	return m.Called(dx, dy).Error(0)
}

func (m *mockBackend) MousePosition() (int, int, error) {
	args := m.Called()
	return args.Int(0), args.Int(1), args.Error(2)
}

// effects lists the recorded calls as "Method arg..." in call order,
// leaving out key lookups
func (m *mockBackend) effects() []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		if c.Method == "IsKey" {
			continue
		}
		s := c.Method
		for _, a := range c.Arguments {
			s += fmt.Sprintf(" %v", a)
		}
		out = append(out, s)
	}
	return out
}

// newMockBackend accepts every key except "bogus" and succeeds every effect
func newMockBackend() *mockBackend {
	m := new(mockBackend)
	m.On("IsKey", "bogus").Return(false).Maybe()
	m.On("IsKey", mock.Anything).Return(true).Maybe()
	for _, method := range []string{"KeyPress", "KeyRelease", "TypeText", "MousePress", "MouseRelease"} {
		m.On(method, mock.Anything).Return(nil).Maybe()
	}
	for _, method := range []string{"MouseMoveTo", "MouseMoveBy", "MouseScroll"} {
		m.On(method, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	return m
}

// recorder collects published updates
type recorder struct {
	mu     sync.Mutex
	events []types.OutboundEvent
}

func (r *recorder) Publish(ev types.OutboundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []types.OutboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.OutboundEvent(nil), r.events...)
}

func newHost(t *testing.T) *Host {
	t.Helper()
	return &Host{
		Remote:  "test",
		Root:    t.TempDir(),
		Scratch: t.TempDir(),
		Logger:  zap.NewNop(),
		Context: context.Background(),
		Input:   newMockBackend(),
	}
}

// newLState opens the base libraries and installs mods
func newLState(t *testing.T, mods ...Module) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	for _, m := range mods {
		Install(L, m)
	}
	return L
}

// eval runs a chunk that returns a single value
func eval(t *testing.T, L *lua.LState, code string) lua.LValue {
	t.Helper()
	require.NoError(t, L.DoString(code))
	v := L.Get(-1)
	L.Pop(1)
	return v
}
