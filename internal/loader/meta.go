package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

const (
	MetaFile       = "meta.prop"
	defaultVersion = "0.0.0"
)

// ErrMissingName is returned for a meta.prop without meta.name
var ErrMissingName = errors.New("meta.name is required")

var propLoader = properties.Loader{
	Encoding:         properties.UTF8,
	DisableExpansion: true,
}

// ReadMeta parses a meta.prop file
func ReadMeta(path string) (types.RemoteMeta, error) {
	p, err := propLoader.LoadFile(path)
	if err != nil {
		return types.RemoteMeta{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return metaFrom(p)
}

func metaFrom(p *properties.Properties) (types.RemoteMeta, error) {
	name, ok := p.Get("meta.name")
	if !ok || strings.TrimSpace(name) == "" {
		return types.RemoteMeta{}, ErrMissingName
	}

	meta := types.RemoteMeta{
		Name:        name,
		Author:      p.GetString("meta.author", ""),
		Description: p.GetString("meta.description", ""),
		Friendly:    p.GetString("meta.friendly", ""),
		URL:         p.GetString("meta.url", ""),
		Version:     p.GetString("meta.version", defaultVersion),
		Remote:      p.GetString("meta.remote", ""),
		Layout:      p.GetString("meta.layout", ""),
		Icon:        p.GetString("meta.icon", ""),
		Settings:    p.GetString("meta.settings", ""),
		Enabled:     p.GetBool("meta.enabled", true),
		Hidden:      p.GetBool("meta.hidden", false),
	}
	if platforms, ok := p.Get("meta.platform"); ok {
		meta.Platforms = parsePlatforms(platforms)
	}
	return meta, nil
}

// parsePlatforms reads a whitespace or comma separated platform list.
// Unknown names count as linux.
func parsePlatforms(s string) []types.Platform {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]types.Platform, 0, len(fields))
	for _, f := range fields {
		p, ok := types.ParsePlatform(f)
		if !ok {
			p = types.PlatformLinux
		}
		out = append(out, p)
	}
	return out
}

// ReadSettings parses a settings.prop file into plain key/value pairs
func ReadSettings(path string) (map[string]string, error) {
	p, err := propLoader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return p.Map(), nil
}

// ResolvePlatformFile finds base_<platform>.ext, then base.ext, inside
// dir. An explicit path is the only candidate when set and must stay
// inside dir.
func ResolvePlatformFile(dir, explicit, base, ext string, platform types.Platform) (string, bool) {
	if explicit != "" {
		sb, err := paths.New(dir)
		if err != nil {
			return "", false
		}
		path, err := sb.ResolveRelative(filepath.FromSlash(explicit))
		if err != nil {
			return "", false
		}
		return regularFile(path)
	}

	suffix := string(platform)
	if platform == types.PlatformLegacy {
		suffix = string(types.PlatformLinux)
	}
	if path, ok := regularFile(filepath.Join(dir, base+"_"+suffix+"."+ext)); ok {
		return path, true
	}
	return regularFile(filepath.Join(dir, base+"."+ext))
}

func regularFile(path string) (string, bool) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
