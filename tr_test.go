package dreamcast

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/intuitionamiga/dreamcast/renderbackend"
)

type fakeBackend struct {
	nextHandle renderbackend.TextureHandle
	registered []renderbackend.TextureDesc
	freed      []renderbackend.TextureHandle
}

func (f *fakeBackend) RegisterTexture(desc renderbackend.TextureDesc) (renderbackend.TextureHandle, error) {
	f.nextHandle++
	f.registered = append(f.registered, desc)
	return f.nextHandle, nil
}
func (f *fakeBackend) FreeTexture(h renderbackend.TextureHandle) { f.freed = append(f.freed, h) }
func (f *fakeBackend) BeginFrame()                               {}
func (f *fakeBackend) Draw(renderbackend.Batch)                  {}
func (f *fakeBackend) EndFrame()                                 {}

func putFloat32(b []byte, off int, f float32) {
	binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(f))
}

// untexturedPackedColorVertex builds a 32-byte VERTEX parameter for
// vertex type 0: xyz floats then a packed ARGB8888 colour.
func untexturedPackedColorVertex(x, y, z float32, argb uint32) []byte {
	cmd := make([]byte, 32)
	binary.LittleEndian.PutUint32(cmd[0:4], TAParamVertex<<29)
	putFloat32(cmd, 4, x)
	putFloat32(cmd, 8, y)
	putFloat32(cmd, 12, z)
	binary.LittleEndian.PutUint32(cmd[16:20], argb)
	return cmd
}

func TestRenderContextEmitsSurfaceAndVertices(t *testing.T) {
	params := append([]byte{}, polyOrVolCommand(TAListOpaque)...)
	params = append(params, untexturedPackedColorVertex(1, 2, 3, 0xFFAABBCC)...)
	params = append(params, endOfListCommand()...)

	ctx := &TileContext{Params: params, PolygonCount: 1}
	r := NewRenderer(nil, NewLogger(SeverityFatal), &fakeBackend{})
	batch := r.RenderContext(ctx, nil)

	if len(batch.Surfaces) != 1 {
		t.Fatalf("got %d surfaces, want 1", len(batch.Surfaces))
	}
	s := batch.Surfaces[0]
	if s.Count != 1 || s.Base != 0 {
		t.Fatalf("surface span = base %d count %d, want base 0 count 1", s.Base, s.Count)
	}
	if len(batch.Vertices) != 1 {
		t.Fatalf("got %d vertices, want 1", len(batch.Vertices))
	}
	v := batch.Vertices[0]
	if v.X != 1 || v.Y != 2 || v.Z != 3 {
		t.Fatalf("vertex position = (%v,%v,%v), want (1,2,3)", v.X, v.Y, v.Z)
	}
	if v.R < 0.66 || v.R > 0.67 {
		t.Fatalf("vertex R = %v, want ~0xAA/255", v.R)
	}
}

// TestRenderContextAutosortsTranslucentBackToFront exercises spec.md
// §4.9's "Sorting": two translucent surfaces, submitted near-to-far,
// must be reordered far-to-near in DrawOrder while Surfaces itself
// keeps submission order.
func TestRenderContextAutosortsTranslucentBackToFront(t *testing.T) {
	var params []byte
	params = append(params, polyOrVolCommand(TAListTranslucent)...)
	params = append(params, untexturedPackedColorVertex(0, 0, 1, 0xFFFFFFFF)...) // near
	params = append(params, endOfListCommand()...)
	params = append(params, polyOrVolCommand(TAListTranslucent)...)
	params = append(params, untexturedPackedColorVertex(0, 0, 10, 0xFFFFFFFF)...) // far
	params = append(params, endOfListCommand()...)

	ctx := &TileContext{Params: params, Autosort: true, PolygonCount: 2}
	r := NewRenderer(nil, NewLogger(SeverityFatal), &fakeBackend{})
	batch := r.RenderContext(ctx, nil)

	if len(batch.Surfaces) != 2 {
		t.Fatalf("got %d surfaces, want 2", len(batch.Surfaces))
	}
	if len(batch.DrawOrder) != 2 {
		t.Fatalf("got %d draw order entries, want 2", len(batch.DrawOrder))
	}
	if batch.DrawOrder[0] != 1 || batch.DrawOrder[1] != 0 {
		t.Fatalf("draw order = %v, want far surface (1) before near surface (0)", batch.DrawOrder)
	}
}
