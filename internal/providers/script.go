package providers

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
)

const defaultShell = "/bin/sh"

// Script runs shell commands on behalf of a remote
type Script struct {
	host *Host
}

func NewScript(h *Host) *Script { return &Script{host: h} }

func (s *Script) Name() string { return "script" }

func (s *Script) Loader(L *lua.LState) int {
	shell := L.NewFunction(s.shell)
	mod := L.NewTable()
	mod.RawSetString("shell", shell)
	mod.RawSetString("default", shell)
	L.Push(mod)
	return 1
}

// ShellResult is the outcome of a shell invocation
type ShellResult struct {
	Stdout string
	Stderr string
	Code   int
}

// Run executes a single command through the shell, or several lines as
// a throwaway script
func (s *Script) Run(lines ...string) (*ShellResult, error) {
	if !s.host.AllowProcess {
		return nil, paths.ErrSandboxViolation
	}
	if len(lines) == 0 {
		return nil, errors.New("shell requires at least one argument")
	}

	var cmd *exec.Cmd
	if len(lines) == 1 {
		cmd = exec.CommandContext(s.host.Ctx(), defaultShell, "-c", lines[0])
	} else {
		path, err := writeTempScript(lines)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		cmd = exec.CommandContext(s.host.Ctx(), defaultShell, path)
	}
	if s.host.Root != "" {
		cmd.Dir = s.host.Root
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}

	res := &ShellResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Code:   cmd.ProcessState.ExitCode(),
	}
	s.host.Log().Debug("shell finished", zap.Int("lines", len(lines)), zap.Int("code", res.Code))
	return res, nil
}

func writeTempScript(lines []string) (string, error) {
	f, err := os.CreateTemp("", "uniremote-script-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp script: %w", err)
	}
	return path, nil
}

func (s *Script) shell(L *lua.LState) int {
	top := L.GetTop()
	lines := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		lines = append(lines, L.ToStringMeta(L.Get(i)).String())
	}

	res, err := s.Run(lines...)
	if err != nil {
		if errors.Is(err, paths.ErrSandboxViolation) {
			s.host.Log().Warn("shell denied, process capabilities disabled")
		}
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(res.Stdout))
	L.Push(lua.LString(res.Stderr))
	L.Push(lua.LNumber(res.Code))
	return 3
}
