package filesystem

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charlievieth/fastwalk"
	lua "github.com/yuin/gopher-lua"
)

func (m *Module) copy(L *lua.LState) int {
	src := m.resolveArg(L, 1)
	dst := m.resolveArg(L, 2)
	if err := Copy(src, dst); err != nil {
		raise(L, "copy", L.CheckString(1), err)
	}
	return 0
}

// move also serves rename
func (m *Module) move(L *lua.LState) int {
	src := m.resolveArg(L, 1)
	dst := m.resolveArg(L, 2)
	if err := os.Rename(src, dst); err != nil {
		raise(L, "move", L.CheckString(1), err)
	}
	return 0
}

// Copy copies a file, or a directory tree. Symlinks inside a tree are
// skipped so a copy cannot pull in content from outside the source.
func Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}

	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return copyFile(p, target, fi.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}
