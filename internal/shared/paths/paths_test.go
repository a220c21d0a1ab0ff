package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRemote(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "remote")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "helper.lua"), []byte("x = 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret.txt"), []byte("secret"), 0o644))
	return base, root
}

func TestResolveRelative(t *testing.T) {
	base, root := setupRemote(t)
	require.NoError(t, os.Symlink(filepath.Join(base, "secret.txt"), filepath.Join(root, "escape.lua")))
	require.NoError(t, os.Symlink(base, filepath.Join(root, "updir")))

	box, err := New(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"nested file", "sub/helper.lua", false},
		{"dot segments inside", "sub/../sub/helper.lua", false},
		{"missing file inside", "sub/new.lua", false},
		{"parent escape", "../secret.txt", true},
		{"deep parent escape", "sub/../../secret.txt", true},
		{"absolute", "/etc/passwd", true},
		{"symlinked file", "escape.lua", true},
		{"symlinked dir", "updir/secret.txt", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := box.ResolveRelative(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSandboxViolation)
				assert.Contains(t, err.Error(), "access denied")
				return
			}
			require.NoError(t, err)
			assert.True(t, Within(box.Root(), resolved))
		})
	}
}

func TestResolveWithExtraRoot(t *testing.T) {
	base, root := setupRemote(t)
	scratch := filepath.Join(base, "scratch")
	require.NoError(t, os.Mkdir(scratch, 0o755))

	box, err := New(root, scratch)
	require.NoError(t, err)

	_, err = box.Resolve(filepath.Join(scratch, "tmp.txt"))
	assert.NoError(t, err)

	_, err = box.Resolve(filepath.Join(base, "secret.txt"))
	assert.ErrorIs(t, err, ErrSandboxViolation)

	resolved, err := box.Resolve("sub/helper.lua")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(box.Root(), "sub", "helper.lua"), resolved)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a/b"))
	assert.True(t, Within("/a/b", "/a/b/c"))
	assert.True(t, Within("/a/b", "/a/b/..c"))
	assert.False(t, Within("/a/b", "/a/bc"))
	assert.False(t, Within("/a/b", "/a"))
}

func TestNewRequiresExistingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
