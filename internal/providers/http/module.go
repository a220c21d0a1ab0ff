package http

import (
	"context"
	nethttp "net/http"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
)

// Module exposes get, post and request to scripts
type Module struct {
	host *providers.Host
}

func NewModule(h *providers.Host) *Module { return &Module{host: h} }

func (m *Module) Name() string { return "http" }

func (m *Module) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":     m.get,
		"post":    m.post,
		"request": m.request,
	}))
	return 1
}

// get(url[, cb])
func (m *Module) get(L *lua.LState) int {
	req := providers.HTTPRequest{Method: nethttp.MethodGet, URL: L.CheckString(1)}
	return m.send(L, req, L.OptFunction(2, nil))
}

// post(url[, data][, cb])
func (m *Module) post(L *lua.LState) int {
	req := providers.HTTPRequest{Method: nethttp.MethodPost, URL: L.CheckString(1)}
	var cb *lua.LFunction
	switch v := L.Get(2).(type) {
	case *lua.LFunction:
		cb = v
	case *lua.LNilType:
		cb = L.OptFunction(3, nil)
	default:
		req.Body = L.CheckString(2)
		cb = L.OptFunction(3, nil)
	}
	return m.send(L, req, cb)
}

// request{method, url, headers, content, mime}[, cb]
func (m *Module) request(L *lua.LState) int {
	tbl := L.CheckTable(1)

	method := strings.ToUpper(stringField(tbl, "method"))
	if !validMethod(method) {
		L.RaiseError("invalid method")
		return 0
	}
	url := stringField(tbl, "url")
	if url == "" {
		L.ArgError(1, "url expected")
		return 0
	}

	req := providers.HTTPRequest{
		Method: method,
		URL:    url,
		Body:   stringField(tbl, "content"),
		Mime:   stringField(tbl, "mime"),
	}
	if headers, ok := tbl.RawGetString("headers").(*lua.LTable); ok {
		req.Headers = make(map[string]string)
		headers.ForEach(func(k, v lua.LValue) {
			ks, kok := k.(lua.LString)
			if !kok || !lua.LVCanConvToString(v) {
				return
			}
			req.Headers[string(ks)] = lua.LVAsString(v)
		})
	}
	return m.send(L, req, L.OptFunction(2, nil))
}

func (m *Module) send(L *lua.LState, req providers.HTTPRequest, cb *lua.LFunction) int {
	if cb == nil {
		resp, err := m.do(m.host.Ctx(), req)
		if err != nil {
			L.RaiseError("http request failed: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(resp.Body))
		return 1
	}

	ctx := m.host.Ctx()
	go func() {
		resp, err := m.do(ctx, req)
		task := func(c providers.Caller) {
			L := c.LState()
			var errVal, respVal lua.LValue = lua.LNil, lua.LNil
			if err != nil {
				errVal = lua.LString("http request failed: " + err.Error())
			} else {
				respVal = responseTable(L, resp)
			}
			if err := c.CallFunction(cb, errVal, respVal); err != nil {
				m.host.Log().Warn("http callback failed", zap.String("url", req.URL), zap.Error(err))
			}
		}
		if err := m.host.Dispatcher.Dispatch(ctx, task); err != nil {
			m.host.Log().Debug("http callback dropped", zap.String("url", req.URL), zap.Error(err))
		}
	}()
	return 0
}

func (m *Module) do(ctx context.Context, req providers.HTTPRequest) (*providers.HTTPResponse, error) {
	resp, err := m.host.HTTP.Do(ctx, req)
	if err != nil {
		m.host.Log().Warn("http request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, err
	}
	m.host.Log().Info("http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.Status))
	return resp, nil
}

func responseTable(L *lua.LState, resp *providers.HTTPResponse) *lua.LTable {
	headers := L.NewTable()
	for name, values := range resp.Headers {
		headers.RawSetString(strings.ToLower(name), lua.LString(strings.Join(values, ", ")))
	}

	tbl := L.NewTable()
	tbl.RawSetString("status", lua.LNumber(resp.Status))
	tbl.RawSetString("reason", lua.LString(resp.Reason))
	tbl.RawSetString("mime", lua.LString(resp.Mime))
	tbl.RawSetString("headers", headers)
	tbl.RawSetString("content", lua.LString(resp.Body))
	return tbl
}

func stringField(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if v == lua.LNil || !lua.LVCanConvToString(v) {
		return ""
	}
	return lua.LVAsString(v)
}

// validMethod reports whether method is a non-empty RFC 9110 token
func validMethod(method string) bool {
	if method == "" {
		return false
	}
	return !strings.ContainsFunc(method, func(r rune) bool {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case strings.ContainsRune("!#$%&'*+-.^_`|~", r):
			return false
		}
		return true
	})
}
