package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	lua "github.com/yuin/gopher-lua"
)

// cpuSampleWindow is how long the default sampler measures CPU load
const cpuSampleWindow = 100 * time.Millisecond

// SystemSampler reads host usage through gopsutil
type SystemSampler struct {
	window time.Duration
}

func NewSystemSampler() *SystemSampler {
	return &SystemSampler{window: cpuSampleWindow}
}

func (s *SystemSampler) Sample(ctx context.Context) (Usage, error) {
	loads, err := cpu.PercentWithContext(ctx, s.window, false)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu usage: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory usage: %w", err)
	}

	u := Usage{MemPhysUsed: vm.Used, MemPhysTotal: vm.Total}
	if len(loads) > 0 {
		u.CPULoad = loads[0]
	}
	return u, nil
}

// PS reports process-level host usage
type PS struct {
	host *Host
}

func NewPS(h *Host) *PS { return &PS{host: h} }

func (p *PS) Name() string { return "ps" }

func (p *PS) Loader(L *lua.LState) int {
	L.Push(L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"usage": p.usage,
	}))
	return 1
}

func (p *PS) usage(L *lua.LState) int {
	u, err := p.host.Usage.Sample(p.host.Ctx())
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	tbl := L.CreateTable(0, 3)
	tbl.RawSetString("cpuload", lua.LNumber(u.CPULoad))
	tbl.RawSetString("memphysused", lua.LNumber(u.MemPhysUsed))
	tbl.RawSetString("memphystotal", lua.LNumber(u.MemPhysTotal))
	L.Push(tbl)
	return 1
}
