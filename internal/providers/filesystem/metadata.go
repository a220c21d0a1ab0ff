package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	lua "github.com/yuin/gopher-lua"
)

func (m *Module) isFile(L *lua.LState) int {
	info, err := os.Stat(m.resolveArg(L, 1))
	L.Push(lua.LBool(err == nil && info.Mode().IsRegular()))
	return 1
}

func (m *Module) isDir(L *lua.LState) int {
	info, err := os.Stat(m.resolveArg(L, 1))
	L.Push(lua.LBool(err == nil && info.IsDir()))
	return 1
}

func (m *Module) isHidden(L *lua.LState) int {
	L.Push(lua.LBool(strings.HasPrefix(filepath.Base(L.CheckString(1)), ".")))
	return 1
}

// created reports the modification time: birth times are not exposed
// portably by the platforms the host runs on
func (m *Module) created(L *lua.LState) int {
	return m.modified(L)
}

func (m *Module) modified(L *lua.LState) int {
	requested := L.CheckString(1)
	info, err := os.Stat(m.resolveArg(L, 1))
	if err != nil {
		raise(L, "get metadata for", requested, err)
		return 0
	}
	L.Push(lua.LNumber(info.ModTime().Unix()))
	return 1
}

func (m *Module) mime(L *lua.LState) int {
	requested := L.CheckString(1)
	mtype, err := mimetype.DetectFile(m.resolveArg(L, 1))
	if err != nil {
		raise(L, "detect mime type of", requested, err)
		return 0
	}
	L.Push(lua.LString(mtype.String()))
	return 1
}
