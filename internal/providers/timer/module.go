package timer

import (
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// maxDelayMillis is the longest delay a time.Duration can hold
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

func (s *Scheduler) Name() string { return "timer" }

// Loader builds the timer module table
func (s *Scheduler) Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"timeout":  s.luaTimeout,
		"interval": s.luaInterval,
		"schedule": s.luaSchedule,
		"cancel":   s.luaCancel,
	})
	L.Push(mod)
	return 1
}

func (s *Scheduler) luaTimeout(L *lua.LState) int {
	fn := L.CheckFunction(1)
	ms := L.CheckInt64(2)
	if ms < 0 {
		L.ArgError(2, "timeout must not be negative")
		return 0
	}
	if ms > maxDelayMillis {
		L.ArgError(2, "timeout is too long")
		return 0
	}
	id, err := s.Timeout(fn, time.Duration(ms)*time.Millisecond)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (s *Scheduler) luaInterval(L *lua.LState) int {
	fn := L.CheckFunction(1)
	ms := L.CheckInt64(2)
	if ms < 1 {
		L.ArgError(2, "interval must be at least 1ms")
		return 0
	}
	if ms > maxDelayMillis {
		L.ArgError(2, "interval is too long")
		return 0
	}
	id, err := s.Interval(fn, time.Duration(ms)*time.Millisecond)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (s *Scheduler) luaSchedule(L *lua.LState) int {
	fn := L.CheckFunction(1)
	iso := L.CheckString(2)
	id, err := s.Schedule(fn, iso)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (s *Scheduler) luaCancel(L *lua.LState) int {
	id := L.CheckInt64(1)
	L.Push(lua.LBool(id > 0 && s.Cancel(ID(id))))
	return 1
}
