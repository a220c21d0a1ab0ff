package filesystem

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	lua "github.com/yuin/gopher-lua"
)

// glob matches a doublestar pattern relative to the remote directory and
// returns full paths
func (m *Module) glob(L *lua.LState) int {
	pattern := filepath.ToSlash(L.CheckString(1))
	if filepath.IsAbs(pattern) || !doublestar.ValidatePattern(pattern) {
		L.ArgError(1, "invalid glob pattern")
		return 0
	}

	matches, err := Glob(m.sandbox.Root(), pattern)
	if err != nil {
		raise(L, "glob", pattern, err)
		return 0
	}
	return pushStrings(L, matches)
}

// Glob matches pattern below root
func Glob(root, pattern string) ([]string, error) {
	rel, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithNoFollow())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rel))
	for _, r := range rel {
		out = append(out, filepath.Join(root, filepath.FromSlash(r)))
	}
	return out, nil
}
