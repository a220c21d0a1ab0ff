package providers

import (
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/input"
)

// Keyboard exposes key presses and text entry
type Keyboard struct {
	host *Host
}

func NewKeyboard(h *Host) *Keyboard { return &Keyboard{host: h} }

func (k *Keyboard) Name() string { return "keyboard" }

func (k *Keyboard) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"press":      k.press,
		"stroke":     k.stroke,
		"text":       k.text,
		"down":       k.down,
		"up":         k.up,
		"character":  k.character,
		"ismodifier": k.isModifier,
		"iskey":      k.isKey,
	}))
	return 1
}

// keys collects and validates every string argument
func (k *Keyboard) keys(L *lua.LState) []string {
	top := L.GetTop()
	if top == 0 {
		L.ArgError(1, "at least one key expected")
	}
	keys := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		key := L.CheckString(i)
		if !k.host.Input.IsKey(key) {
			L.RaiseError("unknown key: %s", key)
		}
		keys = append(keys, key)
	}
	return keys
}

func (k *Keyboard) press(L *lua.LState) int {
	for _, key := range k.keys(L) {
		check(L, k.host.Input.KeyPress(key))
		check(L, k.host.Input.KeyRelease(key))
	}
	return 0
}

func (k *Keyboard) stroke(L *lua.LState) int {
	keys := k.keys(L)
	for _, key := range keys {
		check(L, k.host.Input.KeyPress(key))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		check(L, k.host.Input.KeyRelease(keys[i]))
	}
	return 0
}

func (k *Keyboard) down(L *lua.LState) int {
	for _, key := range k.keys(L) {
		check(L, k.host.Input.KeyPress(key))
	}
	return 0
}

func (k *Keyboard) up(L *lua.LState) int {
	for _, key := range k.keys(L) {
		check(L, k.host.Input.KeyRelease(key))
	}
	return 0
}

func (k *Keyboard) text(L *lua.LState) int {
	check(L, k.host.Input.TypeText(L.CheckString(1)))
	return 0
}

func (k *Keyboard) character(L *lua.LState) int {
	c := L.CheckString(1)
	if utf8.RuneCountInString(c) != 1 {
		L.ArgError(1, "expected a single character")
	}
	check(L, k.host.Input.TypeText(c))
	return 0
}

func (k *Keyboard) isModifier(L *lua.LState) int {
	L.Push(lua.LBool(input.IsModifier(L.CheckString(1))))
	return 1
}

func (k *Keyboard) isKey(L *lua.LState) int {
	L.Push(lua.LBool(k.host.Input.IsKey(L.CheckString(1))))
	return 1
}

// check raises err into the calling script
func check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
}
