// Package input defines the virtual input device the keyboard and mouse
// capabilities forward to. The host ships only a logging implementation;
// real device emulation is plugged in by the embedding program.
package input

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Button is a mouse button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton maps a script-supplied name onto a Button. An empty name
// selects the left button.
func ParseButton(name string) (Button, error) {
	switch strings.ToLower(name) {
	case "", "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	default:
		return "", fmt.Errorf("invalid mouse button: %s", name)
	}
}

// Backend performs keyboard and mouse effects on behalf of scripts.
// Implementations must be safe for concurrent use by several remotes.
type Backend interface {
	IsKey(key string) bool
	KeyPress(key string) error
	KeyRelease(key string) error
	TypeText(text string) error

	MouseMoveTo(x, y int) error
	MouseMoveBy(dx, dy int) error
	MousePress(b Button) error
	MouseRelease(b Button) error
	MouseScroll(dx, dy int) error
	MousePosition() (x, y int, err error)
}

// Modifiers are the keys keyboard.ismodifier reports as modifiers
var Modifiers = []string{"shift", "ctrl", "alt", "meta", "lshift", "rshift", "lctrl", "rctrl", "lalt", "ralt", "lwin", "rwin", "win", "cmd"}

// IsModifier reports whether key is a modifier key
func IsModifier(key string) bool {
	key = strings.ToLower(key)
	for _, m := range Modifiers {
		if m == key {
			return true
		}
	}
	return false
}

var namedKeys = map[string]struct{}{}

func init() {
	for _, k := range []string{
		"return", "enter", "escape", "esc", "tab", "space", "back", "backspace", "delete", "insert",
		"home", "end", "prior", "pageup", "next", "pagedown", "left", "right", "up", "down",
		"capital", "capslock", "numlock", "scroll", "snapshot", "printscreen", "pause", "apps", "menu",
		"volume_up", "volume_down", "volume_mute", "media_next", "media_prev", "media_stop", "media_play_pause",
		"browser_back", "browser_forward", "browser_refresh", "browser_home",
		"add", "subtract", "multiply", "divide", "decimal", "separator",
	} {
		namedKeys[k] = struct{}{}
	}
	for _, m := range Modifiers {
		namedKeys[m] = struct{}{}
	}
	for i := 0; i <= 9; i++ {
		namedKeys[fmt.Sprintf("num%d", i)] = struct{}{}
		namedKeys[fmt.Sprintf("numpad%d", i)] = struct{}{}
	}
	for i := 1; i <= 24; i++ {
		namedKeys[fmt.Sprintf("f%d", i)] = struct{}{}
	}
}

// KnownKey reports whether key is a named key or a single printable
// ASCII character
func KnownKey(key string) bool {
	if len(key) == 1 {
		return key[0] > 0x20 && key[0] < 0x7f
	}
	_, ok := namedKeys[strings.ToLower(key)]
	return ok
}

// LogBackend records every effect in the log instead of performing it.
// It keeps a virtual pointer position so scripts reading it back see
// their own moves.
type LogBackend struct {
	logger *zap.Logger

	mu   sync.Mutex
	x, y int
}

// NewLogBackend creates a logging backend
func NewLogBackend(logger *zap.Logger) *LogBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogBackend{logger: logger.Named("input")}
}

func (b *LogBackend) IsKey(key string) bool { return KnownKey(key) }

func (b *LogBackend) KeyPress(key string) error {
	b.logger.Info("key down", zap.String("key", key))
	return nil
}

func (b *LogBackend) KeyRelease(key string) error {
	b.logger.Info("key up", zap.String("key", key))
	return nil
}

func (b *LogBackend) TypeText(text string) error {
	b.logger.Info("typing text", zap.Int("length", len(text)))
	return nil
}

func (b *LogBackend) MouseMoveTo(x, y int) error {
	b.mu.Lock()
	b.x, b.y = x, y
	b.mu.Unlock()
	b.logger.Info("mouse move", zap.Int("x", x), zap.Int("y", y))
	return nil
}

func (b *LogBackend) MouseMoveBy(dx, dy int) error {
	b.mu.Lock()
	b.x, b.y = max(b.x+dx, 0), max(b.y+dy, 0)
	b.mu.Unlock()
	b.logger.Info("mouse move by", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

func (b *LogBackend) MousePress(btn Button) error {
	b.logger.Info("mouse down", zap.String("button", string(btn)))
	return nil
}

func (b *LogBackend) MouseRelease(btn Button) error {
	b.logger.Info("mouse up", zap.String("button", string(btn)))
	return nil
}

func (b *LogBackend) MouseScroll(dx, dy int) error {
	b.logger.Info("mouse scroll", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

func (b *LogBackend) MousePosition() (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.x, b.y, nil
}
