// scheduler.go - virtual-time device scheduler (spec.md §4.2).
package dreamcast

import (
	"container/heap"
	"sync"
)

// Device is anything the scheduler advances by cycle slices: the SH-4,
// the ARM7 audio coprocessor, or the PVR scanout timer. Run is handed a
// cycle budget and returns how many cycles it actually consumed; it may
// under-consume but must never report more than it was given.
type Device interface {
	Name() string
	ClockHz() uint64
	Run(cycles uint64) (consumed uint64)
}

// TimerFunc is invoked when a one-shot timer's deadline is reached.
type TimerFunc func(userdata any)

type timerEntry struct {
	deadline uint64 // absolute virtual-clock nanoseconds
	seq      uint64 // enqueue order, breaks deadline ties
	fn       TimerFunc
	data     any
	canceled bool
	handle   TimerHandle
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// TimerHandle identifies a scheduled timer for cancellation.
type TimerHandle uint64

// Scheduler advances every registered device a requested number of
// nanoseconds per Tick, firing due timers in deadline order. It is
// single-threaded: only the core thread ever calls Tick (spec.md §5).
type Scheduler struct {
	mu      sync.Mutex
	clock   uint64 // virtual nanoseconds elapsed
	devices []Device
	timers  timerHeap
	nextSeq uint64
	nextID  TimerHandle
}

// NewScheduler returns an empty scheduler at virtual-clock zero.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	heap.Init(&s.timers)
	return s
}

// Register adds a device; devices run in registration order within a
// tick (spec.md §4.2 ordering guarantee).
func (s *Scheduler) Register(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, d)
}

// Clock returns the current virtual-clock value in nanoseconds.
func (s *Scheduler) Clock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// StartTimer arms a one-shot timer to fire nsFromNow nanoseconds after
// the current virtual clock. Handles returned here remain valid until
// fired or cancelled.
func (s *Scheduler) StartTimer(fn TimerFunc, data any, nsFromNow uint64) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.nextSeq++
	e := &timerEntry{
		deadline: s.clock + nsFromNow,
		seq:      s.nextSeq,
		fn:       fn,
		data:     data,
		handle:   s.nextID,
	}
	heap.Push(&s.timers, e)
	return e.handle
}

// CancelTimer marks a timer cancelled; idempotent, and safe even if the
// timer has already fired or never existed.
func (s *Scheduler) CancelTimer(h TimerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.timers {
		if e.handle == h {
			e.canceled = true
			return
		}
	}
}

// Tick divides delta nanoseconds into per-device cycle counts by each
// device's clock rate, runs every device once in registration order,
// then fires every timer whose deadline has now passed — including
// timers a device's Run enqueued during this same call, provided their
// deadline falls within [old_clock, old_clock+delta]. The virtual clock
// is advanced to old+delta before returning, regardless of how many
// cycles devices actually reported consuming (there is no preemption:
// each device runs to completion of its budget before the next starts).
func (s *Scheduler) Tick(delta uint64) {
	s.mu.Lock()
	devices := append([]Device(nil), s.devices...)
	startClock := s.clock
	endClock := startClock + delta
	s.mu.Unlock()

	for _, d := range devices {
		cycles := (delta * d.ClockHz()) / 1_000_000_000
		if cycles > 0 {
			d.Run(cycles)
		}
	}

	// s.clock is left at startClock while devices run and while due
	// timers fire, so that StartTimer calls made from within a device's
	// Run or from within a timer callback compute their deadline
	// relative to the tick's start time, not to however far fireDue has
	// progressed. This is what lets a timer scheduled mid-tick for
	// "40ns from now" (i.e. absolute deadline 40 when the tick started
	// at 0) be recognised as due within this same tick.
	s.fireDue(endClock)

	s.mu.Lock()
	s.clock = endClock
	s.mu.Unlock()
}

// fireDue pops and invokes every non-cancelled timer whose deadline is
// <= clock, in deadline order (ties broken by enqueue order). Timers
// enqueued by a callback with a deadline <= clock fire within the same
// pass, matching spec.md's "timers scheduled during run... are fired in
// this tick" requirement.
func (s *Scheduler) fireDue(clock uint64) {
	for {
		s.mu.Lock()
		if s.timers.Len() == 0 || s.timers[0].deadline > clock {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.timers).(*timerEntry)
		s.mu.Unlock()

		if e.canceled {
			continue
		}
		e.fn(e.data)
	}
}
