package types

import (
	"path/filepath"
	"runtime"
	"strings"
)

// RemoteID identifies a loaded remote. It is the remote's directory
// relative to the remotes root, always with forward slashes.
type RemoteID string

// ActionID names a callable entry in a script's actions table
type ActionID string

func (id RemoteID) String() string { return string(id) }
func (id ActionID) String() string { return string(id) }

// NewRemoteID builds a RemoteID from a path relative to the remotes root
func NewRemoteID(rel string) RemoteID {
	return RemoteID(filepath.ToSlash(filepath.Clean(rel)))
}

// Platform is a target operating system declared in meta.prop
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "win"
	PlatformMac     Platform = "osx"
	PlatformLegacy  Platform = "legacy"
)

// CurrentPlatform returns the platform the host is running on
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		return PlatformLinux
	}
}

// ParsePlatform maps the spellings seen in meta.prop onto a Platform
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return PlatformLinux, true
	case "win", "windows":
		return PlatformWindows, true
	case "osx", "mac", "macos", "darwin":
		return PlatformMac, true
	case "legacy":
		return PlatformLegacy, true
	default:
		return "", false
	}
}

// RemoteMeta mirrors the meta.prop file of a remote
type RemoteMeta struct {
	Name        string     `json:"name"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Friendly    string     `json:"friendly,omitempty"`
	URL         string     `json:"url,omitempty"`
	Version     string     `json:"version"`
	Remote      string     `json:"remote,omitempty"`   // explicit script path
	Layout      string     `json:"layout,omitempty"`   // explicit layout path (not parsed)
	Icon        string     `json:"icon,omitempty"`     // explicit icon path
	Settings    string     `json:"settings,omitempty"` // explicit settings path
	Platforms   []Platform `json:"platforms,omitempty"`
	Enabled     bool       `json:"enabled"`
	Hidden      bool       `json:"hidden"`
}

// IsCompatible reports whether the remote can run on the given platform
func (m RemoteMeta) IsCompatible(p Platform) bool {
	if len(m.Platforms) == 0 {
		return true
	}
	for _, candidate := range m.Platforms {
		if candidate == p || candidate == PlatformLegacy {
			return true
		}
	}
	return false
}

// Remote is a remote discovered on disk
type Remote struct {
	ID     RemoteID   `json:"id"`
	Path   string     `json:"path"`
	Script string     `json:"script,omitempty"` // empty when the remote ships no script
	Meta   RemoteMeta `json:"meta"`
}

// Limits is the resource budget applied to one script state
type Limits struct {
	MemoryMB        int   `json:"memory_mb"`
	MaxInstructions int64 `json:"max_instructions"`
}

// DefaultLimits returns the budget used when the loader supplies none
func DefaultLimits() Limits {
	return Limits{
		MemoryMB:        64,
		MaxInstructions: 100_000_000,
	}
}

// MemoryBytes returns the memory cap in bytes, zero meaning unlimited
func (l Limits) MemoryBytes() uint64 {
	if l.MemoryMB <= 0 {
		return 0
	}
	return uint64(l.MemoryMB) << 20
}
