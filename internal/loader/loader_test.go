package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uniremote/backend/internal/sandbox"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func testOptions(t *testing.T) Options {
	return Options{
		Platform:     types.PlatformLinux,
		StateOptions: []sandbox.Option{sandbox.WithScratchDir(t.TempDir())},
	}
}

func closeAll(t *testing.T, loaded []Loaded) {
	t.Cleanup(func() {
		for _, l := range loaded {
			l.State.Close()
		}
	})
}

func TestReadMeta(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"full/meta.prop": `meta.name = Media
meta.author = someone
meta.description = Media keys
meta.platform = win, linux osx
meta.remote = scripts/main.lua
meta.enabled = no
meta.hidden = true
`,
		"minimal/meta.prop":  "meta.name: Minimal\n",
		"nameless/meta.prop": "meta.author = nobody\n",
		"odd/meta.prop":      "meta.name = Odd\nmeta.platform = amiga\n",
	})

	meta, err := ReadMeta(filepath.Join(dir, "full", MetaFile))
	require.NoError(t, err)
	assert.Equal(t, "Media", meta.Name)
	assert.Equal(t, "someone", meta.Author)
	assert.Equal(t, "scripts/main.lua", meta.Remote)
	assert.Equal(t, []types.Platform{types.PlatformWindows, types.PlatformLinux, types.PlatformMac}, meta.Platforms)
	assert.False(t, meta.Enabled)
	assert.True(t, meta.Hidden)

	meta, err = ReadMeta(filepath.Join(dir, "minimal", MetaFile))
	require.NoError(t, err)
	assert.Equal(t, "Minimal", meta.Name)
	assert.Equal(t, defaultVersion, meta.Version)
	assert.True(t, meta.Enabled)
	assert.Empty(t, meta.Platforms)

	_, err = ReadMeta(filepath.Join(dir, "nameless", MetaFile))
	assert.ErrorIs(t, err, ErrMissingName)

	meta, err = ReadMeta(filepath.Join(dir, "odd", MetaFile))
	require.NoError(t, err)
	assert.Equal(t, []types.Platform{types.PlatformLinux}, meta.Platforms)

	_, err = ReadMeta(filepath.Join(dir, "missing", MetaFile))
	assert.Error(t, err)
}

func TestReadSettings(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"settings.prop": "# comment\nhost = 10.0.0.2\nport: 8080\npath = ${HOME}\n",
	})

	settings, err := ReadSettings(filepath.Join(dir, "settings.prop"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"host": "10.0.0.2",
		"port": "8080",
		"path": "${HOME}",
	}, settings)
}

func TestResolvePlatformFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"remote.lua":       "",
		"remote_win.lua":   "",
		"remote_linux.lua": "",
		"custom/main.lua":  "",
	})
	outside := filepath.Join(t.TempDir(), "outside.lua")
	writeFiles(t, filepath.Dir(outside), map[string]string{"outside.lua": ""})

	tests := []struct {
		name     string
		explicit string
		platform types.Platform
		want     string
		ok       bool
	}{
		{"platform file", "", types.PlatformWindows, "remote_win.lua", true},
		{"legacy uses linux", "", types.PlatformLegacy, "remote_linux.lua", true},
		{"generic fallback", "", types.PlatformMac, "remote.lua", true},
		{"explicit", "custom/main.lua", types.PlatformWindows, "main.lua", true},
		{"explicit missing", "custom/other.lua", types.PlatformWindows, "", false},
		{"explicit escape", "../" + filepath.Base(filepath.Dir(outside)) + "/outside.lua", types.PlatformLinux, "", false},
		{"explicit absolute", outside, types.PlatformLinux, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := ResolvePlatformFile(dir, tt.explicit, "remote", "lua", tt.platform)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, filepath.Base(path))
			}
		})
	}

	_, ok := ResolvePlatformFile(dir, "", "settings", "prop", types.PlatformLinux)
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"basic/meta.prop":  "meta.name = Basic\n",
		"basic/remote.lua": "actions = { ping = function() end }\n",

		"scriptless/meta.prop": "meta.name = Scriptless\n",

		"group/nested/meta.prop":  "meta.name = Nested\n",
		"group/nested/remote.lua": "x = 1\n",

		"hidden/meta.prop":   "meta.name = Hidden\nmeta.hidden = true\n",
		"disabled/meta.prop": "meta.name = Disabled\nmeta.enabled = false\n",
		"windows/meta.prop":  "meta.name = Windows\nmeta.platform = win\n",
		"absent/meta.prop":   "meta.name = Absent\n",
		"absent/remote.lua":  "events = { detect = function() return false end }\n",
		"broken/meta.prop":   "meta.name = Broken\n",
		"broken/remote.lua":  "this is not lua\n",
		"nameless/meta.prop": "meta.author = nobody\n",

		"nometa/remote.lua": "x = 1\n",
	})

	loaded, err := Load(context.Background(), root, testOptions(t))
	require.NoError(t, err)
	closeAll(t, loaded)

	ids := make([]types.RemoteID, 0, len(loaded))
	for _, l := range loaded {
		ids = append(ids, l.Remote.ID)
	}
	assert.Equal(t, []types.RemoteID{"basic", "group/nested", "scriptless"}, ids)

	assert.Equal(t, "Basic", loaded[0].Remote.Meta.Name)
	assert.Equal(t, "remote.lua", filepath.Base(loaded[0].Remote.Script))
	assert.Equal(t, types.RemoteID("basic"), loaded[0].State.Remote())
	assert.Empty(t, loaded[2].Remote.Script)
	assert.NotEmpty(t, loaded[2].State.Root())
}

func TestLoadAppliesSettingsBeforeDetect(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"on/meta.prop":      "meta.name = On\n",
		"on/settings.prop":  "enabled = yes\n",
		"on/remote.lua":     "events = { detect = function() return settings.enabled == 'yes' end }\n",
		"off/meta.prop":     "meta.name = Off\n",
		"off/settings.prop": "enabled = no\n",
		"off/remote.lua":    "events = { detect = function() return settings.enabled == 'yes' end }\n",
	})

	loaded, err := Load(context.Background(), root, testOptions(t))
	require.NoError(t, err)
	closeAll(t, loaded)

	require.Len(t, loaded, 1)
	assert.Equal(t, types.RemoteID("on"), loaded[0].Remote.ID)
	assert.Equal(t, map[string]string{"enabled": "yes"}, loaded[0].State.Settings())
}

func TestLoadDoesNotTriggerCreate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"r/meta.prop":  "meta.name = R\n",
		"r/remote.lua": "created = false\nevents = { create = function() created = true end }\n",
	})

	loaded, err := Load(context.Background(), root, testOptions(t))
	require.NoError(t, err)
	closeAll(t, loaded)

	require.Len(t, loaded, 1)
	assert.Equal(t, "false", loaded[0].State.LState().GetGlobal("created").String())
}

func TestLoadPlatformScript(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"r/meta.prop":      "meta.name = R\n",
		"r/remote.lua":     "which = 'generic'\n",
		"r/remote_osx.lua": "which = 'osx'\n",
	})

	for platform, want := range map[types.Platform]string{
		types.PlatformMac:   "osx",
		types.PlatformLinux: "generic",
	} {
		opts := testOptions(t)
		opts.Platform = platform
		loaded, err := Load(context.Background(), root, opts)
		require.NoError(t, err)
		closeAll(t, loaded)

		require.Len(t, loaded, 1)
		assert.Equal(t, want, loaded[0].State.LState().GetGlobal("which").String(), platform)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"), testOptions(t))
	assert.Error(t, err)

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"r/meta.prop": "meta.name = R\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, root, testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRemoteSkips(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"hidden/meta.prop": "meta.name = Hidden\nmeta.hidden = on\n",
	})

	l, err := LoadRemote(root, filepath.Join(root, "hidden"), testOptions(t))
	assert.NoError(t, err)
	assert.Nil(t, l)

	_, err = LoadRemote(root, filepath.Join(root, "nothing"), testOptions(t))
	assert.Error(t, err)
}
