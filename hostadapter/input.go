//go:build !headless

// input.go - InputSource implementation polling ebiten's keyboard
// state, feeding maple.go's Controller.HandleInput.
//
// Grounded on video_backend_ebiten.go's handleKeyboardInput, which
// walked a small table of ebiten keys with inpututil's just-pressed
// detection; the same shape is reused here, but against the Maple
// controller's Keycode/Value event model (maple.go's NewController
// binds single ASCII characters to buttons, and LoadProfile can rebind
// any of them) instead of emitting escape sequences for a terminal.
package hostadapter

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/intuitionamiga/dreamcast"
)

// pressedValue/releasedValue match Controller.HandleInput's rule:
// HandleInput treats a positive Value as "pressed" for digital
// buttons.
const (
	pressedValue  int16 = 32767
	releasedValue int16 = -32768
)

// EbitenInputSource polls every a-z, 0-9, and space key each frame and
// reports press/release transitions for DeviceIndex, satisfying
// dreamcast.InputSource.
type EbitenInputSource struct {
	DeviceIndex int
}

func NewEbitenInputSource(deviceIndex int) *EbitenInputSource {
	return &EbitenInputSource{DeviceIndex: deviceIndex}
}

// PollInput implements dreamcast.InputSource.
func (s *EbitenInputSource) PollInput() []dreamcast.InputEvent {
	var events []dreamcast.InputEvent

	emit := func(code int, key ebiten.Key) {
		switch {
		case inpututil.IsKeyJustPressed(key):
			events = append(events, dreamcast.InputEvent{DeviceIndex: s.DeviceIndex, Keycode: code, Value: pressedValue})
		case inpututil.IsKeyJustReleased(key):
			events = append(events, dreamcast.InputEvent{DeviceIndex: s.DeviceIndex, Keycode: code, Value: releasedValue})
		}
	}

	for k := ebiten.KeyA; k <= ebiten.KeyZ; k++ {
		emit('a'+int(k-ebiten.KeyA), k)
	}
	for k := ebiten.Key0; k <= ebiten.Key9; k++ {
		emit('0'+int(k-ebiten.Key0), k)
	}
	emit(' ', ebiten.KeySpace)

	return events
}
