package providers

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/input"
)

// Mouse exposes pointer movement, buttons and scrolling
type Mouse struct {
	host *Host
}

func NewMouse(h *Host) *Mouse { return &Mouse{host: h} }

func (m *Mouse) Name() string { return "mouse" }

func (m *Mouse) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"click":    m.click,
		"double":   m.double,
		"down":     m.down,
		"up":       m.up,
		"moveto":   m.moveTo,
		"moveby":   m.moveBy,
		"moveraw":  m.moveBy,
		"vscroll":  m.vscroll,
		"hscroll":  m.hscroll,
		"position": m.position,
	}))
	return 1
}

func (m *Mouse) button(L *lua.LState) input.Button {
	b, err := input.ParseButton(L.OptString(1, ""))
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return b
}

func (m *Mouse) click(L *lua.LState) int {
	b := m.button(L)
	check(L, m.host.Input.MousePress(b))
	check(L, m.host.Input.MouseRelease(b))
	return 0
}

func (m *Mouse) double(L *lua.LState) int {
	b := m.button(L)
	for range 2 {
		check(L, m.host.Input.MousePress(b))
		check(L, m.host.Input.MouseRelease(b))
	}
	return 0
}

func (m *Mouse) down(L *lua.LState) int {
	check(L, m.host.Input.MousePress(m.button(L)))
	return 0
}

func (m *Mouse) up(L *lua.LState) int {
	check(L, m.host.Input.MouseRelease(m.button(L)))
	return 0
}

func (m *Mouse) moveTo(L *lua.LState) int {
	x, y := L.CheckInt(1), L.CheckInt(2)
	if x < 0 || y < 0 {
		L.RaiseError("coordinates must not be negative")
	}
	check(L, m.host.Input.MouseMoveTo(x, y))
	return 0
}

func (m *Mouse) moveBy(L *lua.LState) int {
	check(L, m.host.Input.MouseMoveBy(L.CheckInt(1), L.CheckInt(2)))
	return 0
}

func (m *Mouse) vscroll(L *lua.LState) int {
	check(L, m.host.Input.MouseScroll(0, L.CheckInt(1)))
	return 0
}

func (m *Mouse) hscroll(L *lua.LState) int {
	check(L, m.host.Input.MouseScroll(L.CheckInt(1), 0))
	return 0
}

func (m *Mouse) position(L *lua.LState) int {
	x, y, err := m.host.Input.MousePosition()
	check(L, err)
	L.Push(lua.LNumber(x))
	L.Push(lua.LNumber(y))
	return 2
}
