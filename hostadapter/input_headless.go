//go:build headless

// input_headless.go - no input device under headless operation; trace
// replay drives the machine directly and has no host keyboard to poll.
package hostadapter

import "github.com/intuitionamiga/dreamcast"

type EbitenInputSource struct {
	DeviceIndex int
}

func NewEbitenInputSource(deviceIndex int) *EbitenInputSource {
	return &EbitenInputSource{DeviceIndex: deviceIndex}
}

func (s *EbitenInputSource) PollInput() []dreamcast.InputEvent { return nil }
