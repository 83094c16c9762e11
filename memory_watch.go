// memory_watch.go - software write-watches over guest memory ranges.
package dreamcast

import "sync"

// WatchHandle identifies a registered write-watch so it can be cancelled.
type WatchHandle uint64

type watchEntry struct {
	id       WatchHandle
	addr     uint32
	length   uint32
	callback func()
	fired    bool
}

// watchList stands in for the real page-protection trap of spec.md
// §4.1: rather than mprotect-ing host pages and catching SIGSEGV (which
// the teacher's ie32/ie64 CPUs never needed and which has no portable
// Go story), writes are checked against the registered ranges directly
// in AddressSpace.Write*. This gives the same one-shot, range-overlap
// semantics the spec requires, at the cost of a linear scan on every
// write — acceptable since the watch list is small (one pair per live
// texture-cache entry plus one per compiled JIT page).
type watchList struct {
	mu      sync.Mutex
	entries []*watchEntry
	nextID  WatchHandle
}

func newWatchList() *watchList {
	return &watchList{}
}

func (w *watchList) register(addr, length uint32, callback func()) WatchHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	e := &watchEntry{id: w.nextID, addr: addr, length: length, callback: callback}
	w.entries = append(w.entries, e)
	return e.id
}

func (w *watchList) cancel(h WatchHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if e.id == h {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// fire checks every live watch against a write of the given length at
// addr and invokes + unregisters any that overlap. The owning
// AddressSpace is passed through only so future callbacks could inspect
// memory state; none of the current callers need it today.
func (w *watchList) fire(addr, length uint32, _ *AddressSpace) {
	w.mu.Lock()
	var due []*watchEntry
	remaining := w.entries[:0]
	for _, e := range w.entries {
		if !e.fired && rangesOverlap(addr, length, e.addr, e.length) {
			e.fired = true
			due = append(due, e)
			continue
		}
		remaining = append(remaining, e)
	}
	w.entries = remaining
	w.mu.Unlock()

	for _, e := range due {
		e.callback()
	}
}

func rangesOverlap(aStart, aLen, bStart, bLen uint32) bool {
	aEnd := aStart + aLen
	bEnd := bStart + bLen
	return aStart < bEnd && bStart < aEnd
}
