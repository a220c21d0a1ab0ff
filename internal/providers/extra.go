package providers

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
)

// InstallExtras adds math.round and the os helpers to the global tables
func InstallExtras(L *lua.LState, h *Host, script *Script) {
	if m, ok := L.GetGlobal("math").(*lua.LTable); ok {
		m.RawSetString("round", L.NewFunction(mathRound))
	}

	osTbl, ok := L.GetGlobal("os").(*lua.LTable)
	if !ok {
		return
	}
	if script != nil {
		osTbl.RawSetString("script", L.NewFunction(script.shell))
	}
	osTbl.RawSetString("open", L.NewFunction(func(L *lua.LState) int {
		target := L.CheckString(1)
		check(L, Open(h, target, stringArgs(L, 2)...))
		return 0
	}))
	osTbl.RawSetString("start", L.NewFunction(func(L *lua.LState) int {
		program := L.CheckString(1)
		check(L, Start(h, program, stringArgs(L, 2)...))
		return 0
	}))
	osTbl.RawSetString("getenv", L.NewFunction(func(L *lua.LState) int {
		L.Push(Getenv(h, L.CheckString(1)))
		return 1
	}))
	osTbl.RawSetString("throw", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s", L.CheckString(1))
		return 0
	}))
}

// mathRound rounds to the nearest integer, or to the nearest multiple of
// precision when one is given
func mathRound(L *lua.LState) int {
	n := float64(L.CheckNumber(1))
	prec := float64(L.OptNumber(2, 0))
	if prec != 0 {
		L.Push(lua.LNumber(math.Round(n/prec) * prec))
		return 1
	}
	L.Push(lua.LNumber(math.Round(n)))
	return 1
}

// Getenv reads the host environment. Without process capabilities the
// environment reads as empty.
func Getenv(h *Host, name string) lua.LValue {
	if !h.AllowProcess {
		return lua.LNil
	}
	if v, ok := os.LookupEnv(name); ok {
		return lua.LString(v)
	}
	return lua.LNil
}

// Open hands target to the desktop's default opener
func Open(h *Host, target string, args ...string) error {
	if !h.AllowProcess {
		return paths.ErrSandboxViolation
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", append([]string{target}, args...)...)
	case "windows":
		cmd = exec.Command("rundll32", append([]string{"url.dll,FileProtocolHandler", target}, args...)...)
	default:
		cmd = exec.Command("xdg-open", append([]string{target}, args...)...)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to execute open command: %w", err)
	}
	return nil
}

// Start launches program detached from the script
func Start(h *Host, program string, args ...string) error {
	if !h.AllowProcess {
		return paths.ErrSandboxViolation
	}
	if program == "" {
		return errors.New("program required")
	}
	cmd := exec.Command(program, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to execute start command: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			h.Log().Debug("started program exited", zap.String("program", program), zap.Error(err))
		}
	}()
	return nil
}

func stringArgs(L *lua.LState, from int) []string {
	top := L.GetTop()
	if top < from {
		return nil
	}
	out := make([]string, 0, top-from+1)
	for i := from; i <= top; i++ {
		out = append(out, L.ToStringMeta(L.Get(i)).String())
	}
	return out
}
