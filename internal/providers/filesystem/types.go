package filesystem

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/paths"
)

// Module is the fs capability of one remote
type Module struct {
	host    *providers.Host
	sandbox *paths.Sandbox
}

// New creates the module. sb decides which paths scripts may touch.
func New(h *providers.Host, sb *paths.Sandbox) *Module {
	return &Module{host: h, sandbox: sb}
}

func (m *Module) Name() string { return "fs" }

func (m *Module) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		// paths
		"remotefile": m.remoteFile,
		"remotedir":  m.remoteDir,
		"workingdir": m.workingDir,
		"homedir":    m.homeDir,
		"appdir":     m.appDir,
		"special":    m.special,
		"name":       m.name,
		"fullname":   m.fullName,
		"extension":  m.extension,
		"parent":     m.parent,
		"expand":     m.expand,
		"path":       m.path,
		"combine":    m.combine,
		"absolute":   m.absolute,
		"temp":       m.temp,

		// basic
		"exists":      m.exists,
		"delete":      m.delete,
		"createfile":  m.createFile,
		"write":       m.write,
		"writelines":  m.writeLines,
		"append":      m.append,
		"appendlines": m.appendLines,
		"read":        m.read,
		"readlines":   m.readLines,

		// directory
		"roots":      m.roots,
		"files":      m.files,
		"dirs":       m.dirs,
		"list":       m.list,
		"createdir":  m.createDir,
		"createdirs": m.createDirs,
		"size":       m.size,

		// operations
		"copy":   m.copy,
		"move":   m.move,
		"rename": m.move,

		// metadata
		"isfile":   m.isFile,
		"isdir":    m.isDir,
		"ishidden": m.isHidden,
		"created":  m.created,
		"modified": m.modified,
		"mime":     m.mime,

		// search
		"glob": m.glob,
	}))
	return 1
}

// Resolve maps a script path onto disk, enforcing the sandbox
func (m *Module) Resolve(p string) (string, error) {
	resolved, err := m.sandbox.Resolve(p)
	if err != nil {
		m.host.Log().Warn("fs access denied", zap.String("path", p))
		return "", err
	}
	return resolved, nil
}

// resolveArg resolves argument n or raises into the script
func (m *Module) resolveArg(L *lua.LState, n int) string {
	p := L.CheckString(n)
	resolved, err := m.Resolve(p)
	if err != nil {
		L.RaiseError("%s", paths.ErrSandboxViolation.Error())
	}
	return resolved
}

// raise reports a failed operation on path
func raise(L *lua.LState, op, path string, err error) {
	if errors.Is(err, paths.ErrSandboxViolation) {
		L.RaiseError("%s", paths.ErrSandboxViolation.Error())
		return
	}
	L.RaiseError("%s", fmt.Sprintf("failed to %s '%s': %v", op, path, err))
}

// lines reads a sequence of strings from a table argument
func lines(L *lua.LState, n int) []string {
	tbl := L.CheckTable(n)
	out := make([]string, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		out = append(out, L.ToStringMeta(tbl.RawGetInt(i)).String())
	}
	return out
}

func pushStrings(L *lua.LState, items []string) int {
	tbl := L.CreateTable(len(items), 0)
	for _, item := range items {
		tbl.Append(lua.LString(item))
	}
	L.Push(tbl)
	return 1
}
