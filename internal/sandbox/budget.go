package sandbox

import (
	"context"
	"runtime/metrics"
	"sync/atomic"
	"time"
)

// governorStride is how many VM instructions pass between limit checks
const governorStride = 10_000

// heapPeriod is how often a running call samples the process heap
const heapPeriod = 250 * time.Microsecond

const heapMetric = "/memory/classes/heap/objects:bytes"

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// budget is the context installed on the interpreter. gopher-lua polls
// Done once per instruction, which makes it a step counter: it returns a
// nil channel while the call is within its limits and a closed one once
// a limit trips.
//
// Memory is enforced per State. While a call runs, a sampler goroutine
// watches the process heap; growth of half the cap flags the budget and
// the interpreter then measures what its own State holds on the next
// instruction. Only that measurement can trip the limit, so allocations
// made by other goroutines never abort this State's calls.
type budget struct {
	parent   context.Context
	maxSteps int64
	memCap   uint64

	// Touched only by the interpreter goroutine.
	steps    int64
	next     int64
	tripped  error
	used     uint64
	watching int

	suspect atomic.Bool

	// measure returns the State's footprint, stopping early past limit
	measure func(limit uint64) uint64
	heap    func() uint64
}

func newBudget(parent context.Context, maxSteps int64, memCap uint64) *budget {
	return &budget{
		parent:   parent,
		maxSteps: maxSteps,
		memCap:   memCap,
		measure:  func(uint64) uint64 { return 0 },
		heap:     processHeap(),
	}
}

// reset arms the budget for a new top-level call
func (b *budget) reset() {
	b.steps = 0
	b.next = b.stride()
	b.tripped = b.parent.Err()
	b.suspect.Store(false)
}

// Tripped returns the limit error of the current call, if any
func (b *budget) Tripped() error {
	return b.tripped
}

func (b *budget) Deadline() (time.Time, bool) { return b.parent.Deadline() }

func (b *budget) Value(key any) any { return b.parent.Value(key) }

func (b *budget) Done() <-chan struct{} {
	if b.tripped != nil {
		return closedChan
	}
	if b.suspect.Load() {
		b.suspect.Store(false)
		b.checkMemory()
		if b.tripped != nil {
			return closedChan
		}
	}
	b.steps++
	if b.steps < b.next {
		return nil
	}
	b.next = b.steps + b.stride()
	b.check()
	if b.tripped != nil {
		return closedChan
	}
	return nil
}

func (b *budget) Err() error {
	if b.tripped != nil {
		return b.tripped
	}
	return b.parent.Err()
}

func (b *budget) stride() int64 {
	if b.maxSteps > 0 && b.maxSteps-b.steps < governorStride {
		return max(b.maxSteps-b.steps+1, 1)
	}
	return governorStride
}

func (b *budget) check() {
	if err := b.parent.Err(); err != nil {
		b.tripped = err
		return
	}
	if b.maxSteps > 0 && b.steps > b.maxSteps {
		b.tripped = ErrInstructionLimit
	}
}

func (b *budget) checkMemory() {
	if b.memCap == 0 {
		return
	}
	b.used = b.measure(b.memCap)
	if b.used > b.memCap {
		b.tripped = ErrMemoryLimit
	}
}

// reserve accounts for n bytes a builtin is about to allocate
func (b *budget) reserve(n uint64) bool {
	if !b.fits(n) {
		return false
	}
	b.used = addSat(b.used, n)
	return true
}

// fits reports whether n bytes the State cannot reach yet fit under the
// cap. It re-measures the State before refusing, so garbage from earlier
// reservations does not count.
func (b *budget) fits(n uint64) bool {
	if b.memCap == 0 {
		return true
	}
	if n > b.memCap {
		return false
	}
	if b.used+n > b.memCap {
		b.used = b.measure(b.memCap)
	}
	return b.used+n <= b.memCap
}

// remaining is what reserve would currently accept without re-measuring
func (b *budget) remaining() uint64 {
	if b.memCap == 0 {
		return ^uint64(0)
	}
	if b.used >= b.memCap {
		return 0
	}
	return b.memCap - b.used
}

// watch starts the heap sampler for the duration of one call. Nested
// calls share the outer sampler.
func (b *budget) watch() (stop func()) {
	if b.memCap == 0 {
		return func() {}
	}
	b.watching++
	if b.watching > 1 {
		return func() { b.watching-- }
	}

	quit := make(chan struct{})
	done := make(chan struct{})
	go b.sample(b.heap(), quit, done)
	return func() {
		close(quit)
		<-done
		b.watching--
		b.suspect.Store(false)
	}
}

func (b *budget) sample(base uint64, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(heapPeriod)
	defer ticker.Stop()

	trigger := max(b.memCap/2, 1)
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			cur := b.heap()
			switch {
			case cur < base:
				base = cur
			case cur-base >= trigger:
				base = cur
				b.suspect.Store(true)
			}
		}
	}
}

// processHeap returns a sampler of live and unswept heap object bytes
func processHeap() func() uint64 {
	sample := []metrics.Sample{{Name: heapMetric}}
	return func() uint64 {
		metrics.Read(sample)
		if sample[0].Value.Kind() != metrics.KindUint64 {
			return 0
		}
		return sample[0].Value.Uint64()
	}
}
