//go:build headless

// video_headless.go - no-op renderbackend.Backend for headless
// operation, mirroring video_backend_headless.go's HeadlessVideoOutput.
package hostadapter

import (
	"sync"
	"sync/atomic"

	"github.com/intuitionamiga/dreamcast/renderbackend"
)

// HeadlessBackend tracks registered textures and counts frames but
// never draws anything, the shape trace replay and CI runs need.
type HeadlessBackend struct {
	mu         sync.Mutex
	textures   map[renderbackend.TextureHandle]renderbackend.TextureDesc
	nextID     renderbackend.TextureHandle
	frameCount uint64
}

func NewHeadlessBackend() *HeadlessBackend {
	return &HeadlessBackend{textures: make(map[renderbackend.TextureHandle]renderbackend.TextureDesc)}
}

func (h *HeadlessBackend) RegisterTexture(desc renderbackend.TextureDesc) (renderbackend.TextureHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.textures[h.nextID] = desc
	return h.nextID, nil
}

func (h *HeadlessBackend) FreeTexture(handle renderbackend.TextureHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.textures, handle)
}

func (h *HeadlessBackend) BeginFrame() {}

func (h *HeadlessBackend) Draw(batch renderbackend.Batch) {}

func (h *HeadlessBackend) EndFrame() {
	atomic.AddUint64(&h.frameCount, 1)
}

func (h *HeadlessBackend) FrameCount() uint64 {
	return atomic.LoadUint64(&h.frameCount)
}
