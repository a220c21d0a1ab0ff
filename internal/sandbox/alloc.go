package sandbox

import (
	"math"

	lua "github.com/yuin/gopher-lua"
)

// guardAllocations wraps the builtins whose result can be far larger than
// their arguments. Each reserves its result size against the memory cap
// before running.
func (s *State) guardAllocations() {
	L := s.L
	if str, ok := L.GetGlobal("string").(*lua.LTable); ok {
		s.guard(str, "rep", repSize)
		s.guard(str, "format", formatSize)
		s.guardGsub(str)
	}
	if tbl, ok := L.GetGlobal("table").(*lua.LTable); ok {
		s.guard(tbl, "concat", concatSize)
	}
}

func (s *State) guard(lib *lua.LTable, name string, size func(L *lua.LState) uint64) {
	orig, ok := lib.RawGetString(name).(*lua.LFunction)
	if !ok {
		return
	}
	lib.RawSetString(name, s.L.NewFunction(func(L *lua.LState) int {
		s.reserve(L, size(L))
		return callThrough(L, orig, L.GetTop())
	}))
}

// reserve raises the memory error when n bytes do not fit
func (s *State) reserve(L *lua.LState, n uint64) {
	if !s.budget.reserve(n) {
		L.RaiseError("%s", ErrMemoryLimit.Error())
	}
}

// callThrough calls fn with the first n stack values and returns all of
// its results
func callThrough(L *lua.LState, fn *lua.LFunction, n int) int {
	base := L.GetTop()
	L.Push(fn)
	for i := 1; i <= n; i++ {
		L.Push(L.Get(i))
	}
	L.Call(n, lua.MultRet)
	return L.GetTop() - base
}

func repSize(L *lua.LState) uint64 {
	src := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 {
		return 0
	}
	return mulSat(uint64(len(src)), uint64(n))
}

func concatSize(L *lua.LState) uint64 {
	tbl := L.CheckTable(1)
	sep := uint64(len(L.OptString(2, "")))
	i := L.OptInt(3, 1)
	j := L.OptInt(4, tbl.Len())

	var n uint64
	for k := i; k <= j; k++ {
		switch v := tbl.RawGetInt(k).(type) {
		case lua.LString:
			n = addSat(n, uint64(len(v)))
		case lua.LNumber:
			n = addSat(n, 24)
		default:
			// concat itself rejects the value
			return n
		}
		if k > i {
			n = addSat(n, sep)
		}
	}
	return n
}

// formatSize bounds string.format: the format, every argument, and the
// widths and precisions written into the directives
func formatSize(L *lua.LState) uint64 {
	f := L.CheckString(1)
	n := uint64(len(f))
	for i := 2; i <= L.GetTop(); i++ {
		if s, ok := L.Get(i).(lua.LString); ok {
			n = addSat(n, uint64(len(s)))
		} else {
			n = addSat(n, 32)
		}
	}

	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			continue
		}
		var num uint64
		for i++; i < len(f); i++ {
			c := f[i]
			if c >= '0' && c <= '9' {
				num = min(num*10+uint64(c-'0'), math.MaxUint32)
				continue
			}
			if c != '.' && c != '-' && c != '+' && c != ' ' && c != '#' {
				break
			}
			n = addSat(n, num)
			num = 0
		}
		n = addSat(n, num)
	}
	return n
}

// guardGsub bounds string.gsub. A string replacement is sized from the
// match count; table and function replacements reserve each value as it
// is produced.
func (s *State) guardGsub(str *lua.LTable) {
	orig, ok := str.RawGetString("gsub").(*lua.LFunction)
	if !ok {
		return
	}

	str.RawSetString("gsub", s.L.NewFunction(func(L *lua.LState) int {
		src := L.CheckString(1)
		L.CheckAny(2)
		top := L.GetTop()

		switch repl := L.Get(3).(type) {
		case lua.LString:
			r := string(repl)
			size := gsubSize(len(src), len(src)+1, r)
			if size > s.budget.remaining() {
				size = gsubSize(len(src), s.countMatches(L, orig, top), r)
			}
			s.reserve(L, size)
		case *lua.LTable, *lua.LFunction:
			s.reserve(L, uint64(len(src)))
			L.Replace(3, s.meteredReplacement(repl))
		}
		return callThrough(L, orig, top)
	}))
}

// countMatches runs gsub with an empty replacement to count matches
func (s *State) countMatches(L *lua.LState, gsub *lua.LFunction, top int) int {
	L.Push(gsub)
	L.Push(L.Get(1))
	L.Push(L.Get(2))
	L.Push(lua.LString(""))
	nargs := 3
	if top >= 4 {
		L.Push(L.Get(4))
		nargs++
	}
	L.Call(nargs, 2)
	count := L.ToInt(-1)
	L.Pop(2)
	return count
}

// gsubSize is the largest result matches replacements with r can build.
// Capture references expand to text of the match, and matches do not
// overlap, so all of them together copy src at most once per reference.
func gsubSize(srcLen, matches int, r string) uint64 {
	refs := 0
	for i := 0; i+1 < len(r); i++ {
		if r[i] == '%' {
			if r[i+1] >= '0' && r[i+1] <= '9' {
				refs++
			}
			i++
		}
	}
	n := addSat(uint64(srcLen), mulSat(uint64(matches), uint64(len(r))))
	return addSat(n, mulSat(uint64(refs), uint64(srcLen)))
}

// meteredReplacement wraps a table or function replacement. gsub holds
// every replacement until it builds the result, so their running total
// must fit under the cap.
func (s *State) meteredReplacement(repl lua.LValue) *lua.LFunction {
	var produced uint64
	return s.L.NewFunction(func(L *lua.LState) int {
		var v lua.LValue
		switch r := repl.(type) {
		case *lua.LTable:
			v = L.GetTable(r, L.Get(1))
		case *lua.LFunction:
			nargs := L.GetTop()
			L.Push(r)
			for i := 1; i <= nargs; i++ {
				L.Push(L.Get(i))
			}
			L.Call(nargs, 1)
			v = L.Get(-1)
			L.Pop(1)
		}
		switch v := v.(type) {
		case lua.LString:
			produced = addSat(produced, uint64(len(v)))
		case lua.LNumber:
			produced = addSat(produced, 24)
		}
		if !s.budget.fits(produced) {
			L.RaiseError("%s", ErrMemoryLimit.Error())
		}
		L.Push(v)
		return 1
	})
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func mulSat(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}
