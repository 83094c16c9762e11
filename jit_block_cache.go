// jit_block_cache.go - compiled block cache (spec.md §4.7).
//
// Blocks are keyed by (guest entry pc, specialization mask) so that two
// translations of the same address under different FPU/CPU mode bits
// (SH-4's SZ/PR, ARM7's CPSR T-bit) never collide. Invalidation works at
// guest page granularity: a store through the write-watch mechanism
// (memory_watch.go) that touches a page holding compiled code drops
// every block whose guest byte range overlapped that page.
package dreamcast

import "sync"

// CachedBlock is one JIT translation unit: its guest address range,
// the backend-produced native entry point, and the specialization mask
// it was translated under.
type CachedBlock struct {
	EntryPC        uint32
	GuestBytes     uint32
	Specialization uint32
	TotalCycles    uint32 // Fn.CycleCost(), cached so the dispatcher never re-walks IR per call
	Run            func(ctx any)
	Fn             *Function // kept for interpreter fallback and tracing
}

func (b *CachedBlock) overlapsPage(pageBase, pageSize uint32) bool {
	end := b.EntryPC + b.GuestBytes
	pageEnd := pageBase + pageSize
	return b.EntryPC < pageEnd && end > pageBase
}

type blockKey struct {
	pc   uint32
	spec uint32
}

// BlockCache holds every compiled translation currently valid for a
// machine's address space.
type BlockCache struct {
	mu       sync.RWMutex
	blocks   map[blockKey]*CachedBlock
	pageSize uint32
	log      *Logger
}

// DefaultPageSize matches the SH-4's MMU page granularity used for
// invalidation scans (spec.md §4.7 leaves the exact size to the
// implementation; 4KiB is the SH-4's smallest MMU page).
const DefaultPageSize = 4096

// NewBlockCache creates an empty cache. pageSize of 0 selects
// DefaultPageSize.
func NewBlockCache(pageSize uint32, log *Logger) *BlockCache {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return &BlockCache{blocks: map[blockKey]*CachedBlock{}, pageSize: pageSize, log: log}
}

// Lookup returns the compiled block for (pc, specialization), if any.
func (c *BlockCache) Lookup(pc, specialization uint32) (*CachedBlock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[blockKey{pc, specialization}]
	return b, ok
}

// Insert registers a newly compiled block, replacing any prior
// translation for the same key.
func (c *BlockCache) Insert(b *CachedBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[blockKey{b.EntryPC, b.Specialization}] = b
}

// InvalidateAddr drops every block overlapping the guest page containing
// addr. Called from the address space's write-watch callback when a
// guest store lands inside a region that holds compiled code (self-
// modifying code, a case several Dreamcast titles rely on for their
// GD-ROM loaders).
func (c *BlockCache) InvalidateAddr(addr uint32) int {
	pageBase := addr &^ (c.pageSize - 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, b := range c.blocks {
		if b.overlapsPage(pageBase, c.pageSize) {
			delete(c.blocks, k)
			dropped++
		}
	}
	if dropped > 0 && c.log != nil {
		c.log.Debugf("jit", "invalidated %d block(s) covering page 0x%08X", dropped, pageBase)
	}
	return dropped
}

// InvalidateAll drops every cached translation (used on a full machine
// reset).
func (c *BlockCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = map[blockKey]*CachedBlock{}
}

// Len reports how many blocks are currently cached (diagnostics only).
func (c *BlockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}
