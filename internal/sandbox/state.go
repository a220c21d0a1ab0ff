package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uniremote/backend/internal/input"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers/filesystem"
	httpcap "github.com/GriffinCanCode/uniremote/backend/internal/providers/http"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers/timer"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// State is one remote's interpreter together with its capabilities
type State struct {
	L       *lua.LState
	remote  types.RemoteID
	root    string
	file    string
	scratch string
	limits  types.Limits
	logger  *zap.Logger
	metrics *monitoring.Metrics

	budget  *budget
	relay   *providers.Relay
	timers  *timer.Scheduler
	include *paths.Sandbox
	host    providers.Host

	cancel       context.CancelFunc
	ownsScratch  bool
	closed       bool
	settingsMu   sync.RWMutex
	settingsCopy map[string]string
}

// Option configures a State
type Option func(*options)

type options struct {
	limits  types.Limits
	logger  *zap.Logger
	host    providers.Host
	remote  types.RemoteID
	metrics *monitoring.Metrics
	root    string
	scratch string
}

// WithLimits sets the per-call resource budget
func WithLimits(l types.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithLogger sets the logger; the remote field is added by the State
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHost supplies host services. Fields the State owns (remote, paths,
// context, dispatcher) are overwritten; nil services get defaults.
func WithHost(h providers.Host) Option {
	return func(o *options) { o.host = h }
}

func WithRemoteID(id types.RemoteID) Option {
	return func(o *options) { o.remote = id }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRoot sets the remote directory of a script-less State
func WithRoot(dir string) Option {
	return func(o *options) { o.root = dir }
}

// WithScratchDir overrides the per-remote scratch directory
func WithScratchDir(dir string) Option {
	return func(o *options) { o.scratch = dir }
}

// Empty creates a State without a script. Capabilities are installed so
// the host can still drive lifecycle events.
func Empty(opts ...Option) (*State, error) {
	o := buildOptions(opts)
	return build(o, "")
}

// New creates a State, installs its capabilities and runs the script's
// top-level code under the budget.
func New(scriptPath, remoteRoot string, opts ...Option) (*State, error) {
	o := buildOptions(opts)
	o.root = remoteRoot
	return build(o, scriptPath)
}

func buildOptions(opts []Option) options {
	o := options{
		limits: types.DefaultLimits(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func build(o options, script string) (*State, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &State{
		remote:       o.remote,
		file:         script,
		limits:       o.limits,
		logger:       o.logger.With(zap.String("remote", string(o.remote))),
		metrics:      o.metrics,
		cancel:       cancel,
		settingsCopy: make(map[string]string),
	}
	s.relay = providers.NewRelay(s.logger)

	if err := s.prepareDirs(o); err != nil {
		cancel()
		return nil, err
	}

	s.L = lua.NewState(interpreterOptions(o.limits))
	s.budget = newBudget(ctx, o.limits.MaxInstructions, o.limits.MemoryBytes())
	s.budget.measure = func(limit uint64) uint64 { return measureState(s.L, limit) }
	s.budget.reset()
	s.L.SetContext(s.budget)

	s.openLibs()
	for _, name := range []string{"settings", "events", "actions"} {
		s.L.SetGlobal(name, s.L.NewTable())
	}

	if err := s.installCapabilities(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	s.L.SetGlobal("include", s.L.NewFunction(s.luaInclude))

	if script != "" {
		if err := s.load(script); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// interpreterOptions derives registry and call stack sizes from the
// memory cap
func interpreterOptions(l types.Limits) lua.Options {
	opts := lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       lua.CallStackSize,
		RegistrySize:        lua.RegistrySize,
		IncludeGoStackTrace: false,
	}
	if mem := l.MemoryBytes(); mem > 0 {
		// A registry slot is an interface value; give the registry at
		// most a quarter of the cap.
		opts.RegistryMaxSize = int(min(max(mem/4/16, uint64(opts.RegistrySize)*2), 1<<24))
		opts.RegistryGrowStep = 32
		opts.CallStackSize = int(min(max(uint64(l.MemoryMB)*16, 200), 4096))
	}
	return opts
}

func (s *State) prepareDirs(o options) error {
	if o.root != "" {
		abs, err := filepath.Abs(o.root)
		if err != nil {
			return fmt.Errorf("resolve remote root: %w", err)
		}
		s.root = abs
	}

	switch {
	case o.scratch != "":
		s.scratch = o.scratch
	case s.remote != "":
		s.scratch = filepath.Join(os.TempDir(), "uniremote", scratchName(s.remote))
	default:
		dir, err := os.MkdirTemp("", "uniremote-*")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		s.scratch = dir
		s.ownsScratch = true
	}
	if err := os.MkdirAll(s.scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	if s.root != "" {
		sb, err := paths.New(s.root)
		if err != nil {
			return fmt.Errorf("remote root: %w", err)
		}
		s.include = sb
	}
	return nil
}

func scratchName(id types.RemoteID) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(string(id))
}

func (s *State) installCapabilities(ctx context.Context, o options) error {
	h := o.host
	h.Remote = s.remote
	h.Root = s.root
	h.File = s.file
	h.Scratch = s.scratch
	h.Context = ctx
	h.Logger = s.logger
	if h.Dispatcher != nil {
		s.relay.Attach(h.Dispatcher)
	}
	h.Dispatcher = s.relay
	if h.Publisher == nil {
		h.Publisher = s.relay
	}
	if h.Input == nil {
		h.Input = input.NewLogBackend(s.logger)
	}
	if h.Usage == nil {
		h.Usage = providers.NewSystemSampler()
	}
	if h.HTTP == nil {
		h.HTTP = client.New(client.Config{
			Name:      string(s.remote),
			Timeout:   h.HTTPTimeout,
			Retries:   h.HTTPRetries,
			RateLimit: h.HTTPRateLimit,
		})
	}
	s.host = h

	roots := []string{s.scratch}
	if s.root != "" {
		roots = append([]string{s.root}, roots...)
	}
	fsSandbox, err := paths.New(roots[0], roots[1:]...)
	if err != nil {
		return fmt.Errorf("fs sandbox: %w", err)
	}

	s.timers = timer.New(s.relay,
		timer.WithLogger(s.logger),
		timer.WithMetrics(s.metrics),
	)

	script := providers.NewScript(&s.host)
	for _, m := range []providers.Module{
		providers.NewKeyboard(&s.host),
		providers.NewMouse(&s.host),
		filesystem.New(&s.host, fsSandbox),
		httpcap.NewModule(&s.host),
		script,
		providers.NewPS(&s.host),
		s.timers,
		providers.NewServer(&s.host),
		providers.NewData(),
	} {
		providers.Install(s.L, m)
	}
	providers.InstallExtras(s.L, &s.host, script)
	return nil
}

func (s *State) load(script string) error {
	fn, err := s.L.LoadFile(script)
	if err != nil {
		return &ScriptError{Op: "load", Remote: s.remote, Message: err.Error()}
	}
	s.budget.reset()
	if _, err := s.call("load", fn, 0); err != nil {
		return err
	}
	return nil
}

// call invokes fn in protected mode and returns its first result. The
// caller resets the budget.
func (s *State) call(op string, fn *lua.LFunction, nret int, args ...lua.LValue) (lua.LValue, error) {
	top := s.L.GetTop()
	defer s.L.SetTop(top)
	defer s.budget.watch()()

	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		se := s.classify(op, err, s.budget.Tripped())
		if se.Limit != LimitNone {
			s.metrics.RecordLimitTrip(string(s.remote), string(se.Limit))
			s.logger.Warn("script aborted by resource limit",
				zap.String("op", op),
				zap.String("limit", string(se.Limit)),
			)
		}
		return lua.LNil, se
	}
	if nret == 0 {
		return lua.LNil, nil
	}
	return s.L.Get(top + 1), nil
}

// CallAction invokes actions[id] with args converted positionally,
// surrounded by the optional preaction and postaction hooks. postaction
// runs unconditionally; its error is joined to the action's.
func (s *State) CallAction(id types.ActionID, args []any) error {
	if s.closed {
		return ErrStateClosed
	}

	fn := s.lookup("actions", string(id))
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}

	largs := make([]lua.LValue, len(args))
	for i, arg := range args {
		largs[i] = providers.ToLua(s.L, arg)
	}
	hookArgs := append([]lua.LValue{lua.LString(id)}, largs...)

	s.budget.reset()
	var err error
	run := true
	if pre, ok := s.L.GetGlobal("preaction").(*lua.LFunction); ok {
		ret, preErr := s.call("preaction", pre, 1, hookArgs...)
		switch b, isBool := ret.(lua.LBool); {
		case preErr != nil:
			err, run = preErr, false
		case !isBool:
			err = &ScriptError{Op: "preaction", Remote: s.remote, Message: "preaction must return a boolean"}
			run = false
		default:
			run = bool(b)
		}
	}

	if run {
		_, err = s.call("action", fn, 0, largs...)
	}

	if post, ok := s.L.GetGlobal("postaction").(*lua.LFunction); ok {
		s.budget.reset()
		if _, postErr := s.call("postaction", post, 0, hookArgs...); postErr != nil {
			if err == nil {
				return postErr
			}
			return errors.Join(err, postErr)
		}
	}
	return err
}

// TriggerEvent calls events[name] if the script defines it
func (s *State) TriggerEvent(name string) error {
	if s.closed {
		return ErrStateClosed
	}
	fn := s.lookup("events", name)
	if fn == nil {
		return nil
	}
	s.budget.reset()
	_, err := s.call("event "+name, fn, 0)
	return err
}

// Detect runs events.detect. A missing function counts as detected; an
// error or a non-boolean result counts as not detected.
func (s *State) Detect() bool {
	if s.closed {
		return false
	}
	fn := s.lookup("events", "detect")
	if fn == nil {
		return true
	}
	s.budget.reset()
	ret, err := s.call("detect", fn, 1)
	if err != nil {
		s.logger.Warn("detect failed", zap.Error(err))
		return false
	}
	b, ok := ret.(lua.LBool)
	return ok && bool(b)
}

// SetSettings stores each pair into the script's settings table
func (s *State) SetSettings(settings map[string]string) {
	if s.closed {
		return
	}
	tbl, ok := s.L.GetGlobal("settings").(*lua.LTable)
	if !ok {
		tbl = s.L.NewTable()
		s.L.SetGlobal("settings", tbl)
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	for _, k := range providers.SortedKeys(settings) {
		tbl.RawSetString(k, lua.LString(settings[k]))
		s.settingsCopy[k] = settings[k]
	}
}

// Settings returns the settings applied by the host. It is safe to call
// from any goroutine.
func (s *State) Settings() map[string]string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	out := make(map[string]string, len(s.settingsCopy))
	for k, v := range s.settingsCopy {
		out[k] = v
	}
	return out
}

// CallFunction re-enters the script from a timer or async callback
func (s *State) CallFunction(fn *lua.LFunction, args ...lua.LValue) error {
	if s.closed {
		return ErrStateClosed
	}
	s.budget.reset()
	_, err := s.call("callback", fn, 0, args...)
	return err
}

// Include runs a file from the remote directory in the global scope
func (s *State) Include(path string) error {
	if s.closed {
		return ErrStateClosed
	}
	s.budget.reset()
	_, err := s.call("include", s.L.NewFunction(s.luaInclude), 0, lua.LString(path))
	return err
}

func (s *State) LState() *lua.LState { return s.L }

// Attach binds the dispatcher that routes deferred callbacks to the
// owning worker. Firings held during load are flushed to it.
func (s *State) Attach(d providers.Dispatcher) {
	s.relay.Attach(d)
}

// Abort cancels the state's context. A running call fails at its next
// budget check and later calls fail immediately. Safe from any goroutine.
func (s *State) Abort() {
	s.cancel()
}

// Close stops every timer and releases the interpreter. It is idempotent.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.timers != nil {
		s.timers.Close()
	}
	s.cancel()
	s.L.Close()
	if s.ownsScratch {
		if err := os.RemoveAll(s.scratch); err != nil {
			s.logger.Debug("failed to remove scratch dir", zap.Error(err))
		}
	}
	return nil
}

func (s *State) Closed() bool           { return s.closed }
func (s *State) Remote() types.RemoteID { return s.remote }
func (s *State) Root() string           { return s.root }
func (s *State) Scratch() string        { return s.scratch }
func (s *State) Limits() types.Limits   { return s.limits }

// Timers returns the number of registered script timers
func (s *State) Timers() int {
	if s.timers == nil {
		return 0
	}
	return s.timers.Len()
}

func (s *State) lookup(table, key string) *lua.LFunction {
	tbl, ok := s.L.GetGlobal(table).(*lua.LTable)
	if !ok {
		return nil
	}
	fn, _ := tbl.RawGetString(key).(*lua.LFunction)
	return fn
}
