package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
)

func (m *Module) exists(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	_, err := os.Stat(resolved)
	L.Push(lua.LBool(err == nil))
	return 1
}

func (m *Module) read(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	data, err := os.ReadFile(resolved)
	if err != nil {
		raise(L, "read file", L.CheckString(1), err)
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func (m *Module) readLines(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	data, err := os.ReadFile(resolved)
	if err != nil {
		raise(L, "read file", L.CheckString(1), err)
		return 0
	}
	return pushStrings(L, splitLines(string(data)))
}

func (m *Module) write(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	if err := os.WriteFile(resolved, []byte(L.CheckString(2)), 0o644); err != nil {
		raise(L, "write file", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) writeLines(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	content := strings.Join(lines(L, 2), "\n")
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		raise(L, "write lines to file", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) append(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	if err := appendFile(resolved, L.CheckString(2)); err != nil {
		raise(L, "append to file", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) appendLines(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	content := strings.Join(lines(L, 2), "\n") + "\n"
	if err := appendFile(resolved, content); err != nil {
		raise(L, "append lines to file", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) createFile(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	f, err := os.Create(resolved)
	if err != nil {
		raise(L, "create file", L.CheckString(1), err)
		return 0
	}
	f.Close()
	return 0
}

// delete removes a file, or a directory when it is empty or recursive is
// set. Sandbox roots themselves cannot be deleted.
func (m *Module) delete(L *lua.LState) int {
	requested := L.CheckString(1)
	resolved := m.resolveArg(L, 1)
	recursive := L.OptBool(2, false)

	if err := m.remove(resolved, recursive); err != nil {
		raise(L, "delete", requested, err)
	}
	return 0
}

func (m *Module) remove(resolved string, recursive bool) error {
	for _, root := range m.sandbox.Roots() {
		if resolved == root {
			return paths.ErrSandboxViolation
		}
	}

	info, err := os.Lstat(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("path does not exist")
	}
	if err != nil {
		return err
	}
	if info.IsDir() && recursive {
		return os.RemoveAll(resolved)
	}
	return os.Remove(resolved)
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	return strings.Split(content, "\n")
}
