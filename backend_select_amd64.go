//go:build amd64

// backend_select_amd64.go - picks the native amd64 backend when available,
// the same build-tag split the teacher uses for its ebiten/oto vs.
// headless backend pairs (video_backend_ebiten.go/video_backend_headless.go).
package dreamcast

// newPreferredBackend returns the native backend, or nil if the current
// CPU doesn't support what backend_native.go needs - jitCore falls back
// to the interpreter per block in that case, same as it does for any
// individual block a native Compile can't lower.
func newPreferredBackend(log *Logger) Backend {
	nb, err := NewNativeBackend()
	if err != nil {
		log.Warningf("jit", "native backend unavailable, using interpreter only: %v", err)
		return nil
	}
	return nb
}
