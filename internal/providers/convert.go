package providers

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// maxConvertDepth bounds nesting so self-referencing tables fail cleanly
const maxConvertDepth = 64

var ErrConvertDepth = errors.New("value nested too deeply")

// ToLua converts a decoded JSON-like Go value into a Lua value. Objects
// become tables, arrays become 1-based sequences and nil becomes nil.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case interface{ Float64() (float64, error) }:
		f, err := val.Float64()
		if err != nil {
			return lua.LNil
		}
		return lua.LNumber(f)
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(ToLua(L, item))
		}
		return tbl
	case []string:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(val))
		for k, item := range val {
			tbl.RawSetString(k, ToLua(L, item))
		}
		return tbl
	case map[string]string:
		tbl := L.CreateTable(0, len(val))
		for k, item := range val {
			tbl.RawSetString(k, lua.LString(item))
		}
		return tbl
	case map[any]any:
		tbl := L.CreateTable(0, len(val))
		for k, item := range val {
			tbl.RawSetString(fmt.Sprint(k), ToLua(L, item))
		}
		return tbl
	case lua.LValue:
		return val
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// FromLua converts a Lua value into a JSON-like Go value. Sequences
// become []any, other tables map[string]any. Integral numbers come back
// as int64. Functions, userdata and threads have no data form and
// convert to nil.
func FromLua(v lua.LValue) (any, error) {
	return fromLua(v, 0)
}

func fromLua(v lua.LValue, depth int) (any, error) {
	if depth > maxConvertDepth {
		return nil, ErrConvertDepth
	}

	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LString:
		return string(val), nil
	case lua.LNumber:
		return number(float64(val)), nil
	case *lua.LTable:
		if n, ok := sequenceLen(val); ok && n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				item, err := fromLua(val.RawGetInt(i), depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, item)
			}
			return out, nil
		}

		out := make(map[string]any)
		var err error
		val.ForEach(func(key, item lua.LValue) {
			if err != nil {
				return
			}
			var conv any
			if conv, err = fromLua(item, depth+1); err != nil {
				return
			}
			out[keyString(key)] = conv
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, nil
	}
}

// TableToMap converts a table into an object, keys stringified
func TableToMap(tbl *lua.LTable) (map[string]any, error) {
	out := make(map[string]any)
	var err error
	tbl.ForEach(func(key, item lua.LValue) {
		if err != nil {
			return
		}
		var conv any
		if conv, err = fromLua(item, 1); err != nil {
			return
		}
		out[keyString(key)] = conv
	})
	return out, err
}

// StringMap reads the string-convertible pairs of a table
func StringMap(tbl *lua.LTable) map[string]string {
	out := make(map[string]string)
	tbl.ForEach(func(key, item lua.LValue) {
		if lua.LVCanConvToString(item) {
			out[keyString(key)] = lua.LVAsString(item)
		}
	})
	return out
}

// SortedKeys returns the keys of m in order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sequenceLen(tbl *lua.LTable) (int, bool) {
	n := tbl.Len()
	count := 0
	tbl.ForEach(func(_, _ lua.LValue) { count++ })
	return n, count == n
}

func keyString(key lua.LValue) string {
	if num, ok := key.(lua.LNumber); ok {
		f := float64(num)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return key.String()
}

func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
