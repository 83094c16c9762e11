// ta_texture_cache.go - texture cache entry pool (spec.md §4.8 "Texture
// registration"). Grounded on original_source/src/hw/pvr/ta.c's
// ta_texture_entry/ta_alloc_texture/texture-registration flow, but the
// entry pool itself swaps the original's free-list-plus-rb_tree (an
// 8192-entry fixed array indexed through an intrusive red-black tree) for
// a map keyed by (TSP, TCW) plus a sorted key slice for deterministic
// iteration - see DESIGN.md's "Tile-context store" decision for the same
// substitution applied to tile contexts; the reasoning carries over
// identically here (point lookups dominate, Go's map is the idiomatic
// stand-in for an RB tree used purely as a lookup structure).
package dreamcast

import (
	"sort"

	"github.com/intuitionamiga/dreamcast/renderbackend"
)

// TextureKey uniquely identifies a cached texture by its two PVR control
// words, mirroring tr_texture_key(tsp, tcw) from the original.
type TextureKey uint64

func textureKey(tsp, tcw uint32) TextureKey {
	return TextureKey(uint64(tsp)<<32 | uint64(tcw))
}

// TextureEntry is one cache slot: enough of the original texture's PVR
// description to decode it, plus render-backend-side bookkeeping.
type TextureEntry struct {
	Key TextureKey
	TSP, TCW uint32

	VRAMAddr, VRAMSize       uint32
	PaletteAddr, PaletteSize uint32

	Dirty  bool
	Handle renderbackend.TextureHandle // zero until TR registers a host texture

	vramWatch   WatchHandle
	paletteWatch WatchHandle
	hasWatches  bool
}

// TextureCache owns every live entry. The core thread is the only
// mutator (spec.md §5); the render thread only reads entries it reached
// through the pending tile context.
type TextureCache struct {
	mem     *AddressSpace
	entries map[TextureKey]*TextureEntry
	order   []TextureKey
}

func NewTextureCache(mem *AddressSpace) *TextureCache {
	return &TextureCache{mem: mem, entries: map[TextureKey]*TextureEntry{}}
}

// Touch returns the cache entry for (tsp, tcw), creating one if this is
// the first registration. addr/size/paletteAddr/paletteSize describe
// where in VRAM/palette RAM the texture's bytes live, computed by the
// caller from tcw's format/size/stride fields; a zero paletteSize means
// the format carries no palette. Write-watches are installed once, on
// first registration, and their callback simply flips Dirty so the next
// render upload re-decodes - per spec.md §4.9/§9 "Texture coherence".
func (c *TextureCache) Touch(tsp, tcw, addr, size, paletteAddr, paletteSize uint32) (*TextureEntry, bool) {
	key := textureKey(tsp, tcw)
	if e, ok := c.entries[key]; ok {
		return e, false
	}

	e := &TextureEntry{
		Key: key, TSP: tsp, TCW: tcw,
		VRAMAddr: addr, VRAMSize: size,
		PaletteAddr: paletteAddr, PaletteSize: paletteSize,
		Dirty: true,
	}
	c.entries[key] = e
	c.insertSorted(key)

	if c.mem != nil {
		e.vramWatch = c.mem.RegisterWatch(addr, size, func() { c.markDirtyAndRewatch(e, true) })
		if paletteSize > 0 {
			e.paletteWatch = c.mem.RegisterWatch(paletteAddr, paletteSize, func() { c.markDirtyAndRewatch(e, false) })
		}
		e.hasWatches = true
	}
	return e, true
}

// markDirtyAndRewatch handles a watch firing: write-watches are one-shot
// (memory_watch.go), so the dirtied entry must re-arm its watch to catch
// the next modification once it has been re-uploaded and cleaned.
func (c *TextureCache) markDirtyAndRewatch(e *TextureEntry, vram bool) {
	e.Dirty = true
	if c.mem == nil {
		return
	}
	if vram {
		e.vramWatch = c.mem.RegisterWatch(e.VRAMAddr, e.VRAMSize, func() { c.markDirtyAndRewatch(e, true) })
	} else if e.PaletteSize > 0 {
		e.paletteWatch = c.mem.RegisterWatch(e.PaletteAddr, e.PaletteSize, func() { c.markDirtyAndRewatch(e, false) })
	}
}

func (c *TextureCache) insertSorted(key TextureKey) {
	i := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= key })
	c.order = append(c.order, 0)
	copy(c.order[i+1:], c.order[i:])
	c.order[i] = key
}

// Lookup returns the entry for (tsp, tcw) if one has been registered.
func (c *TextureCache) Lookup(tsp, tcw uint32) (*TextureEntry, bool) {
	e, ok := c.entries[textureKey(tsp, tcw)]
	return e, ok
}

// Len reports the number of live entries, for tests and diagnostics.
func (c *TextureCache) Len() int { return len(c.entries) }
