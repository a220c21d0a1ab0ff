package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

func (m *Module) remoteFile(L *lua.LState) int {
	L.Push(lua.LString(m.host.File))
	return 1
}

func (m *Module) remoteDir(L *lua.LState) int {
	L.Push(lua.LString(m.host.Root))
	return 1
}

func (m *Module) workingDir(L *lua.LState) int {
	wd, err := os.Getwd()
	if err != nil {
		L.RaiseError("failed to get working directory: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(wd))
	return 1
}

func (m *Module) homeDir(L *lua.LState) int {
	home, err := os.UserHomeDir()
	if err != nil {
		L.RaiseError("failed to get home directory: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(home))
	return 1
}

// appDir is the remotes root, the parent of the remote directory
func (m *Module) appDir(L *lua.LState) int {
	if m.host.Root == "" {
		L.Push(lua.LString(m.host.Scratch))
		return 1
	}
	L.Push(lua.LString(filepath.Dir(m.host.Root)))
	return 1
}

func (m *Module) special(L *lua.LState) int {
	L.CheckString(1)
	L.RaiseError("special folders are not supported (Windows only)")
	return 0
}

// name is the file name without its extension
func (m *Module) name(L *lua.LState) int {
	base := filepath.Base(L.CheckString(1))
	if base == "." || base == string(filepath.Separator) {
		L.RaiseError("failed to get file name")
		return 0
	}
	L.Push(lua.LString(strings.TrimSuffix(base, filepath.Ext(base))))
	return 1
}

func (m *Module) fullName(L *lua.LState) int {
	p := L.CheckString(1)
	if p == "" || strings.HasSuffix(p, string(filepath.Separator)) {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(filepath.Base(p)))
	return 1
}

// extension is returned without the leading dot
func (m *Module) extension(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimPrefix(filepath.Ext(L.CheckString(1)), ".")))
	return 1
}

func (m *Module) parent(L *lua.LState) int {
	p := filepath.Clean(L.CheckString(1))
	dir := filepath.Dir(p)
	if dir == p {
		L.RaiseError("path has no parent")
		return 0
	}
	L.Push(lua.LString(dir))
	return 1
}

// expand substitutes environment variables and a leading tilde
func (m *Module) expand(L *lua.LState) int {
	p := os.ExpandEnv(L.CheckString(1))
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	L.Push(lua.LString(p))
	return 1
}

func (m *Module) path(L *lua.LState) int {
	L.Push(lua.LString(filepath.FromSlash(L.CheckString(1))))
	return 1
}

func (m *Module) combine(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.CheckString(i))
	}
	L.Push(lua.LString(filepath.Join(parts...)))
	return 1
}

func (m *Module) absolute(L *lua.LState) int {
	p := L.CheckString(1)
	if filepath.IsAbs(p) {
		L.Push(lua.LString(p))
		return 1
	}
	L.Push(lua.LString(filepath.Join(m.host.Root, p)))
	return 1
}

// temp creates an empty file in the scratch directory and returns its path
func (m *Module) temp(L *lua.LState) int {
	f, err := os.CreateTemp(m.host.Scratch, "uniremote_")
	if err != nil {
		L.RaiseError("failed to create temp file: %s", err.Error())
		return 0
	}
	f.Close()
	L.Push(lua.LString(f.Name()))
	return 1
}
