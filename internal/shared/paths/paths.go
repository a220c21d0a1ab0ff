package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSandboxViolation is returned when a path escapes every sandbox root
var ErrSandboxViolation = errors.New("access denied")

// Sandbox resolves paths against a primary root and checks containment
// against all of its roots.
type Sandbox struct {
	roots []string
}

// New creates a sandbox. The first root is the primary one and is used to
// resolve relative paths. Roots must exist.
func New(primary string, extra ...string) (*Sandbox, error) {
	all := append([]string{primary}, extra...)
	roots := make([]string, 0, len(all))
	for _, root := range all {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid sandbox root %q: %w", root, err)
		}
		canonical, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("invalid sandbox root %q: %w", root, err)
		}
		roots = append(roots, canonical)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("sandbox requires at least one root")
	}
	return &Sandbox{roots: roots}, nil
}

// Root returns the canonical primary root
func (s *Sandbox) Root() string {
	return s.roots[0]
}

// Roots returns a copy of all canonical roots
func (s *Sandbox) Roots() []string {
	return append([]string(nil), s.roots...)
}

// ResolveRelative resolves a path that must be relative to the primary
// root. Absolute paths are rejected outright.
func (s *Sandbox) ResolveRelative(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrSandboxViolation)
	}
	if filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("%w: %s", ErrSandboxViolation, p)
	}
	return s.check(filepath.Join(s.roots[0], p), p)
}

// Resolve resolves relative paths against the primary root and accepts
// absolute paths that land inside any root.
func (s *Sandbox) Resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrSandboxViolation)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.roots[0], p)
	}
	return s.check(p, p)
}

// Contains reports whether p, once canonicalized, lies inside a root
func (s *Sandbox) Contains(p string) bool {
	_, err := s.Resolve(p)
	return err == nil
}

func (s *Sandbox) check(joined, requested string) (string, error) {
	resolved, err := Canonical(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrSandboxViolation, requested)
	}
	for _, root := range s.roots {
		if Within(root, resolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSandboxViolation, requested)
}

// Canonical returns the absolute, symlink-free form of p. Trailing
// components that do not exist yet are appended to the canonical form of
// their deepest existing ancestor.
func Canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	existing := abs
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}
}

// Within reports whether target equals root or lies below it. Both paths
// must already be canonical.
func Within(root, target string) bool {
	if root == target {
		return true
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
