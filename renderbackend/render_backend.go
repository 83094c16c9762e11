// Package renderbackend defines the consumed render backend interface
// (spec.md §6, "Render backend (consumed)"): texture registration,
// frame bracketing, and batch submission. TR (tr.go) is the only
// producer of calls against this interface; hostadapter supplies the
// concrete implementations.
package renderbackend

// PixelFormat enumerates the texture formats TR can decode and hand to
// a backend.
type PixelFormat int

const (
	FormatInvalid PixelFormat = iota
	FormatRGBA5551
	FormatRGB565
	FormatRGBA4444
	FormatRGBA8888
)

// BlendFunc enumerates the blend factors a surface's TSP instruction
// word can select for source and destination.
type BlendFunc int

const (
	BlendNone BlendFunc = iota
	BlendZero
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
	BlendDstColor
	BlendOneMinusDstColor
)

// TextureHandle names a texture registered with a Backend; the zero
// value never denotes a live texture.
type TextureHandle uint32

// TextureDesc describes a texture at registration time. Pixels is
// already-decoded RGBA8888 regardless of Format's source encoding — TR
// owns format decode so every Backend implementation shares one upload
// path.
type TextureDesc struct {
	Format       PixelFormat
	Width, Height int
	MipMapped    bool
	FilterLinear bool
	WrapU, WrapV WrapMode
	Pixels       []byte
}

// WrapMode mirrors the PVR's per-axis texture wrap control.
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClampToEdge
	WrapFlip
)

// Vertex is one transformed, lit vertex ready for rasterization.
type Vertex struct {
	X, Y, Z    float32
	U, V       float32
	R, G, B, A float32
}

// Surface is one draw call's worth of state: a vertex-array slice
// (Base, Count index into the batch's shared Vertex array), the
// texture it samples (zero if untextured), and its blend state.
type Surface struct {
	Base, Count  int
	Texture      TextureHandle
	SrcBlend, DstBlend BlendFunc
	DepthWrite   bool
	DepthTestLess bool
}

// Batch groups every surface TR produced for one render pass, in TA
// emission order, plus a separately-sorted index array the translucent
// autosort pass writes (spec.md §4.9, "Sorting") — opaque/punch-through
// lists pass 0..len(Surfaces)-1 unsorted.
type Batch struct {
	Vertices    []Vertex
	Surfaces    []Surface
	DrawOrder   []int
	Projection  [16]float32
}

// Backend is the consumed render backend surface. Register/Free manage
// texture lifetime; Begin/EndFrame bracket one render; Draw submits a
// batch within that bracket.
type Backend interface {
	RegisterTexture(desc TextureDesc) (TextureHandle, error)
	FreeTexture(h TextureHandle)
	BeginFrame()
	Draw(batch Batch)
	EndFrame()
}
