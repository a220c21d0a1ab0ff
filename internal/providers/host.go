package providers

import (
	"context"
	"net/http"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/input"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Caller re-enters a script on the goroutine that owns it
type Caller interface {
	// CallFunction invokes fn under a fresh execution budget
	CallFunction(fn *lua.LFunction, args ...lua.LValue) error
	// LState exposes the interpreter for building callback arguments
	LState() *lua.LState
}

// Task is deferred work that must run on the owning worker goroutine
type Task func(c Caller)

// Dispatcher routes tasks onto the owning worker
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// Publisher fans outbound updates out to a remote's subscribers
type Publisher interface {
	Publish(ev types.OutboundEvent)
}

// Usage is a point-in-time sample of host resource usage
type Usage struct {
	CPULoad      float64 // percent, 0-100
	MemPhysUsed  uint64  // bytes
	MemPhysTotal uint64  // bytes
}

// UsageSampler reports host resource usage for ps.usage
type UsageSampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// HTTPRequest is a request issued by the http capability
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Mime    string
}

// HTTPResponse is the script-visible shape of a response
type HTTPResponse struct {
	Status  int
	Reason  string
	Mime    string
	Headers http.Header
	Body    string
}

// HTTPClient performs requests for the http capability
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// Host is everything a capability module may touch on behalf of one remote
type Host struct {
	Remote     types.RemoteID
	Root       string // remote directory
	File       string // script file, empty for script-less remotes
	Scratch    string // per-remote temp directory, the second fs root
	Input      input.Backend
	Publisher  Publisher
	Dispatcher Dispatcher
	Usage      UsageSampler
	HTTP       HTTPClient
	Logger     *zap.Logger

	// Context is cancelled when the owning state closes. Blocking host
	// calls made from scripts use it.
	Context context.Context

	// AllowProcess gates script.shell, os.open and os.start
	AllowProcess bool

	// HTTPTimeout bounds a single http capability request
	HTTPTimeout   time.Duration
	HTTPRetries   int
	HTTPRateLimit float64
}

// Ctx returns the host context, never nil
func (h *Host) Ctx() context.Context {
	if h.Context == nil {
		return context.Background()
	}
	return h.Context
}

// Log returns the remote-scoped logger, never nil
func (h *Host) Log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Module is a capability installable into a script state
type Module interface {
	// Name is the global and require() name
	Name() string
	// Loader builds the module table; used with PreloadModule
	Loader(L *lua.LState) int
}

// Install exposes m as a global, under libs and through require
func Install(L *lua.LState, m Module) *lua.LTable {
	L.PreloadModule(m.Name(), m.Loader)

	L.Push(L.NewFunction(m.Loader))
	L.Call(0, 1)
	mod := L.Get(-1).(*lua.LTable)
	L.Pop(1)

	L.SetGlobal(m.Name(), mod)

	libs, ok := L.GetGlobal("libs").(*lua.LTable)
	if !ok {
		libs = L.NewTable()
		L.SetGlobal("libs", libs)
	}
	libs.RawSetString(m.Name(), mod)

	// require() hands back the same table the globals point at
	if loaded, ok := L.GetField(L.Get(lua.RegistryIndex), "_LOADED").(*lua.LTable); ok {
		loaded.RawSetString(m.Name(), mod)
	}
	return mod
}
