package sandbox

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
)

// luaInclude implements include(path): the file must resolve, symlinks
// included, inside the remote directory
func (s *State) luaInclude(L *lua.LState) int {
	requested := L.CheckString(1)

	if s.include == nil {
		s.logger.Warn("include denied, remote has no directory", zap.String("path", requested))
		L.RaiseError("%s", paths.ErrSandboxViolation.Error())
		return 0
	}
	target, err := s.include.ResolveRelative(requested)
	if err != nil {
		s.logger.Warn("include denied", zap.String("path", requested))
		L.RaiseError("%s", paths.ErrSandboxViolation.Error())
		return 0
	}

	fn, err := L.LoadFile(target)
	if err != nil {
		L.RaiseError("include %s: %s", requested, err.Error())
		return 0
	}

	top := L.GetTop()
	L.Push(fn)
	L.Call(0, lua.MultRet)
	return L.GetTop() - top
}
