package providers

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Server pushes updates to the clients attached to a remote
type Server struct {
	host *Host
}

func NewServer(h *Host) *Server { return &Server{host: h} }

func (s *Server) Name() string { return "server" }

func (s *Server) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"update": s.update,
	}))
	return 1
}

// update(tbl...) publishes one event per table, keyed by its id field
func (s *Server) update(L *lua.LState) int {
	top := L.GetTop()
	events := make([]types.OutboundEvent, 0, top)
	for i := 1; i <= top; i++ {
		tbl := L.CheckTable(i)
		id := tbl.RawGetString("id")
		if id == lua.LNil || !lua.LVCanConvToString(id) {
			L.RaiseError("update table missing 'id' field")
			return 0
		}
		args, err := TableToMap(tbl)
		if err != nil {
			L.RaiseError("update %s: %s", lua.LVAsString(id), err.Error())
			return 0
		}
		events = append(events, types.OutboundEvent{Action: lua.LVAsString(id), Args: args})
	}

	for _, ev := range events {
		s.host.Log().Debug("server update", zap.String("action", ev.Action))
		s.host.Publisher.Publish(ev)
	}
	return 0
}
