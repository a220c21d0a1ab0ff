package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	lua "github.com/yuin/gopher-lua"
)

type entryFilter func(os.DirEntry) bool

func (m *Module) roots(L *lua.LState) int {
	return pushStrings(L, m.sandbox.Roots())
}

func (m *Module) files(L *lua.LState) int {
	return m.listing(L, func(e os.DirEntry) bool { return e.Type().IsRegular() })
}

func (m *Module) dirs(L *lua.LState) int {
	return m.listing(L, func(e os.DirEntry) bool { return e.IsDir() })
}

func (m *Module) list(L *lua.LState) int {
	return m.listing(L, func(os.DirEntry) bool { return true })
}

// listing returns full paths of the directory's entries that pass keep.
// Dot-entries are skipped unless the optional second argument is true.
func (m *Module) listing(L *lua.LState, keep entryFilter) int {
	requested := L.CheckString(1)
	resolved := m.resolveArg(L, 1)
	hidden := L.OptBool(2, false)

	entries, err := os.ReadDir(resolved)
	if err != nil {
		raise(L, "read directory", requested, err)
		return 0
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !hidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if keep(e) {
			out = append(out, filepath.Join(resolved, e.Name()))
		}
	}
	return pushStrings(L, out)
}

func (m *Module) createDir(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	if err := os.Mkdir(resolved, 0o755); err != nil {
		raise(L, "create directory", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) createDirs(L *lua.LState) int {
	resolved := m.resolveArg(L, 1)
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		raise(L, "create directories", L.CheckString(1), err)
	}
	return 0
}

func (m *Module) size(L *lua.LState) int {
	requested := L.CheckString(1)
	resolved := m.resolveArg(L, 1)
	n, err := Size(resolved)
	if err != nil {
		raise(L, "get size of", requested, err)
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// Size returns the size of a file, or the total size of the regular
// files below a directory. Symlinks are not followed.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		total.Add(fi.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total.Load(), nil
}
