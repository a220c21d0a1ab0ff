package sandbox

import (
	"unsafe"

	lua "github.com/yuin/gopher-lua"
)

// maxFootprintNodes bounds one measurement
const maxFootprintNodes = 1 << 20

// Approximate in-memory sizes of interpreter values
const (
	stringHeader = 16
	tableSize    = 96
	slotSize     = 40
	functionSize = 64
	userDataSize = 48
)

// shareThreshold is the length from which strings are counted once no
// matter how many slots hold them
const shareThreshold = 64

// footprint walks the values reachable from one State: its globals, its
// registry, the locals and temporaries of every live call frame and the
// upvalues of every function it finds along the way.
type footprint struct {
	limit   uint64
	total   uint64
	nodes   int
	pending []lua.LValue
	seen    map[any]struct{}
	strings map[*byte]struct{}
}

// measureState estimates the bytes held by L. The walk stops as soon as
// the estimate passes limit, or after maxFootprintNodes values.
func measureState(L *lua.LState, limit uint64) uint64 {
	f := &footprint{
		limit:   limit,
		seen:    make(map[any]struct{}),
		strings: make(map[*byte]struct{}),
	}
	f.push(L.G.Global)
	f.push(L.G.Registry)
	for level := 0; ; level++ {
		dbg, ok := L.GetStack(level)
		if !ok {
			break
		}
		for no := 1; ; no++ {
			name, v := L.GetLocal(dbg, no)
			if name == "" {
				break
			}
			f.push(v)
		}
	}
	f.walk()
	return f.total
}

func (f *footprint) push(v lua.LValue) {
	switch v.(type) {
	case lua.LString, *lua.LTable, *lua.LFunction, *lua.LUserData:
		f.pending = append(f.pending, v)
	}
}

func (f *footprint) over() bool {
	return f.total > f.limit || f.nodes >= maxFootprintNodes
}

func (f *footprint) walk() {
	for len(f.pending) > 0 && !f.over() {
		v := f.pending[len(f.pending)-1]
		f.pending = f.pending[:len(f.pending)-1]
		f.nodes++

		switch v := v.(type) {
		case lua.LString:
			f.addString(string(v))
		case *lua.LTable:
			if !f.visit(v) {
				continue
			}
			f.total += tableSize
			if v.Metatable != nil {
				f.push(v.Metatable)
			}
			for k, val := v.Next(lua.LNil); k != lua.LNil; k, val = v.Next(k) {
				f.total += slotSize
				f.push(k)
				f.push(val)
				if f.total > f.limit {
					return
				}
			}
		case *lua.LFunction:
			if !f.visit(v) {
				continue
			}
			f.total += functionSize
			if v.Env != nil {
				f.push(v.Env)
			}
			for _, uv := range v.Upvalues {
				if uv != nil {
					f.push(uv.Value())
				}
			}
		case *lua.LUserData:
			if !f.visit(v) {
				continue
			}
			f.total += userDataSize
			if v.Metatable != nil {
				f.push(v.Metatable)
			}
		}
	}
}

// visit reports whether ref is seen for the first time
func (f *footprint) visit(ref any) bool {
	if _, ok := f.seen[ref]; ok {
		return false
	}
	f.seen[ref] = struct{}{}
	return true
}

func (f *footprint) addString(s string) {
	if len(s) >= shareThreshold {
		data := unsafe.StringData(s)
		if _, ok := f.strings[data]; ok {
			return
		}
		f.strings[data] = struct{}{}
	}
	f.total += stringHeader + uint64(len(s))
}
