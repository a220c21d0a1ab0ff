package providers

import (
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	lua "github.com/yuin/gopher-lua"
)

// Data converts between Lua values and JSON, YAML and TOML text
type Data struct{}

func NewData() *Data { return &Data{} }

func (d *Data) Name() string { return "data" }

func (d *Data) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"tojson":   encoder(sonic.Marshal),
		"fromjson": decoder(sonic.Unmarshal),
		"toyaml":   encoder(func(v any) ([]byte, error) { return yaml.Marshal(v) }),
		"fromyaml": decoder(func(b []byte, v any) error { return yaml.Unmarshal(b, v) }),
		"totoml":   tomlEncode,
		"fromtoml": decoder(toml.Unmarshal),
	}))
	return 1
}

func encoder(marshal func(any) ([]byte, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		v, err := FromLua(L.CheckAny(1))
		if err != nil {
			L.RaiseError("encode: %s", err.Error())
			return 0
		}
		out, err := marshal(v)
		if err != nil {
			L.RaiseError("encode: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(out))
		return 1
	}
}

func decoder(unmarshal func([]byte, any) error) lua.LGFunction {
	return func(L *lua.LState) int {
		var v any
		if err := unmarshal([]byte(L.CheckString(1)), &v); err != nil {
			L.RaiseError("decode: %s", err.Error())
			return 0
		}
		L.Push(ToLua(L, v))
		return 1
	}
}

// TOML documents are tables at the top level, so sequences are refused
func tomlEncode(L *lua.LState) int {
	tbl := L.CheckTable(1)
	if n, ok := sequenceLen(tbl); ok && n > 0 {
		L.RaiseError("encode: toml documents must be tables, not sequences")
		return 0
	}
	v, err := TableToMap(tbl)
	if err != nil {
		L.RaiseError("encode: %s", err.Error())
		return 0
	}
	out, err := toml.Marshal(v)
	if err != nil {
		L.RaiseError("encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}
