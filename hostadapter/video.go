//go:build !headless

// video.go - ebiten-backed renderbackend.Backend implementation.
//
// Grounded on video_backend_ebiten.go's EbitenOutput: the window
// lifecycle (Start launching ebiten.RunGame on its own goroutine,
// fullscreen/vsync setup, a frame-count counter) stays. What changes
// is the draw path: the teacher blitted a raw RGBA framebuffer into a
// single ebiten.Image every frame; TR instead hands over a
// renderbackend.Batch of textured triangle surfaces (spec.md §4.9), so
// Draw here walks DrawOrder and issues one Image.DrawTriangles call
// per surface against a registered texture instead of one WritePixels
// blit. Clipboard paste and the keyboard-to-escape-sequence translation
// video_backend_ebiten.go carried (a text-terminal concern, not a
// Dreamcast one) are dropped; host controller input is hostadapter's
// input.go instead.
package hostadapter

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/intuitionamiga/dreamcast/renderbackend"
)

// EbitenBackend satisfies renderbackend.Backend and doubles as an
// ebiten.Game so it can drive its own window.
type EbitenBackend struct {
	mu       sync.Mutex
	textures map[renderbackend.TextureHandle]*ebiten.Image
	nextID   renderbackend.TextureHandle
	white    *ebiten.Image // 1x1 opaque texture for untextured surfaces

	screen      *ebiten.Image // TR's completed frame, blitted to the window in Draw
	width       int
	height      int
	windowScale int
	running     bool
	frameCount  uint64
	vsyncChan   chan struct{}
}

// NewEbitenBackend prepares a backend targeting a width x height
// output, displayed at windowScale magnification.
func NewEbitenBackend(width, height, windowScale int) *EbitenBackend {
	if windowScale <= 0 {
		windowScale = 1
	}
	white := ebiten.NewImage(1, 1)
	white.Fill(ebitenWhite)
	return &EbitenBackend{
		textures:    make(map[renderbackend.TextureHandle]*ebiten.Image),
		white:       white,
		screen:      ebiten.NewImage(width, height),
		width:       width,
		height:      height,
		windowScale: windowScale,
		vsyncChan:   make(chan struct{}, 1),
	}
}

var ebitenWhite = whiteColor{}

// whiteColor implements color.Color as opaque white without pulling in
// the image/color package just for one constant.
type whiteColor struct{}

func (whiteColor) RGBA() (r, g, b, a uint32) { return 0xffff, 0xffff, 0xffff, 0xffff }

// RegisterTexture implements renderbackend.Backend.
func (b *EbitenBackend) RegisterTexture(desc renderbackend.TextureDesc) (renderbackend.TextureHandle, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("hostadapter: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	img := ebiten.NewImage(desc.Width, desc.Height)
	img.WritePixels(desc.Pixels)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	h := b.nextID
	b.textures[h] = img
	return h, nil
}

// FreeTexture implements renderbackend.Backend.
func (b *EbitenBackend) FreeTexture(h renderbackend.TextureHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, h)
}

// BeginFrame implements renderbackend.Backend.
func (b *EbitenBackend) BeginFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screen.Clear()
}

// Draw implements renderbackend.Backend: it replays batch.DrawOrder
// (or surface-emission order if the autosort pass didn't run) as one
// DrawTriangles call per surface.
func (b *EbitenBackend) Draw(batch renderbackend.Batch) {
	verts := make([]ebiten.Vertex, len(batch.Vertices))
	for i, v := range batch.Vertices {
		verts[i] = ebiten.Vertex{
			DstX: v.X, DstY: v.Y,
			SrcX: v.U, SrcY: v.V,
			ColorR: v.R, ColorG: v.G, ColorB: v.B, ColorA: v.A,
		}
	}

	order := batch.DrawOrder
	if order == nil {
		order = make([]int, len(batch.Surfaces))
		for i := range order {
			order[i] = i
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, idx := range order {
		s := batch.Surfaces[idx]
		img := b.textures[s.Texture]
		if img == nil {
			img = b.white
		}
		indices := triangleStripIndices(s.Count)
		if indices == nil {
			continue
		}
		op := &ebiten.DrawTrianglesOptions{}
		b.screen.DrawTriangles(verts[s.Base:s.Base+s.Count], indices, img, op)
	}
}

// EndFrame implements renderbackend.Backend; the completed frame sits
// in b.screen until the next ebiten Draw callback blits it to the
// window (spec.md §4.9's render thread and the host's own frame pacing
// run independently).
func (b *EbitenBackend) EndFrame() {
	b.frameCount++
	select {
	case b.vsyncChan <- struct{}{}:
	default:
	}
}

// triangleStripIndices builds ebiten's flat index list for a PVR-style
// triangle strip of n vertices, flipping winding on alternate
// triangles the way a strip requires.
func triangleStripIndices(n int) []uint16 {
	if n < 3 {
		return nil
	}
	idx := make([]uint16, 0, (n-2)*3)
	for i := 0; i < n-2; i++ {
		if i%2 == 0 {
			idx = append(idx, uint16(i), uint16(i+1), uint16(i+2))
		} else {
			idx = append(idx, uint16(i+1), uint16(i), uint16(i+2))
		}
	}
	return idx
}

// Start opens the window and runs ebiten's game loop on its own
// goroutine, mirroring EbitenOutput.Start.
func (b *EbitenBackend) Start(title string) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	ebiten.SetWindowSize(b.width*b.windowScale, b.height*b.windowScale)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		if err := ebiten.RunGame(&ebitenGame{backend: b}); err != nil {
			fmt.Printf("ebiten error: %v\n", err)
		}
	}()

	<-b.vsyncChan // wait for the first Draw callback before returning
	return nil
}

func (b *EbitenBackend) Stop() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
}

func (b *EbitenBackend) IsStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *EbitenBackend) FrameCount() uint64 {
	return b.frameCount
}

// ebitenGame wraps an EbitenBackend to satisfy ebiten.Game: kept
// separate from EbitenBackend itself since renderbackend.Backend's own
// Draw(batch) already claims the method name ebiten.Game's per-frame
// callback needs.
type ebitenGame struct {
	backend *EbitenBackend
}

func (g *ebitenGame) Update() error {
	if ebiten.IsWindowBeingClosed() || !g.backend.IsStarted() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game, blitting the backend's completed frame
// to the window.
func (g *ebitenGame) Draw(screen *ebiten.Image) {
	b := g.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	screen.DrawImage(b.screen, nil)
}

func (g *ebitenGame) Layout(_, _ int) (int, int) {
	return g.backend.width, g.backend.height
}
