package sandbox

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// allowedOS are the os functions scripts keep. getenv comes back with the
// extras, gated on process capabilities.
var allowedOS = []string{"time", "clock", "date", "difftime"}

// removedBase are base functions that reach the filesystem or the VM
var removedBase = []string{"dofile", "loadfile", "_printregs"}

// openLibs opens the subset of the standard library scripts may use.
// io, debug, channel and coroutine stay closed: coroutine threads derive
// their own context at creation and would outlive the per-call budget.
func (s *State) openLibs() {
	L := s.L
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	globals := L.G.Global
	for _, name := range removedBase {
		globals.RawSetString(name, lua.LNil)
	}
	globals.RawSetString("print", L.NewFunction(s.print))

	s.restrictPackage()
	s.restrictOS()
	s.guardAllocations()
}

func (s *State) restrictPackage() {
	L := s.L
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}
	pkg.RawSetString("path", lua.LString(""))
	pkg.RawSetString("cpath", lua.LString(""))
	pkg.RawSetString("loadlib", lua.LNil)

	// Keep only the preload searcher. package.loaders and the registry's
	// _LOADERS are the same table.
	if loaders, ok := pkg.RawGetString("loaders").(*lua.LTable); ok {
		for i := loaders.Len(); i > 1; i-- {
			loaders.RawSetInt(i, lua.LNil)
		}
	}
}

func (s *State) restrictOS() {
	L := s.L
	full, ok := L.GetGlobal("os").(*lua.LTable)
	if !ok {
		return
	}
	restricted := L.NewTable()
	for _, name := range allowedOS {
		restricted.RawSetString(name, full.RawGetString(name))
	}
	L.SetGlobal("os", restricted)
	if loaded, ok := L.GetField(L.Get(lua.RegistryIndex), "_LOADED").(*lua.LTable); ok {
		loaded.RawSetString("os", restricted)
	}
}

// print writes to the remote's log instead of stdout
func (s *State) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info("script output", zap.String("output", strings.Join(parts, "\t")))
	return 0
}
