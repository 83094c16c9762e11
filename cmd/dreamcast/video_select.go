//go:build !headless

package main

import (
	"github.com/intuitionamiga/dreamcast"
	"github.com/intuitionamiga/dreamcast/audiosink"
	"github.com/intuitionamiga/dreamcast/hostadapter"
	"github.com/intuitionamiga/dreamcast/renderbackend"
)

// newVideoBackend wires the ebiten-backed render backend. Its Start
// method is returned separately since hostadapter.EbitenBackend and
// hostadapter.HeadlessBackend don't share a common lifecycle method
// (headless has nothing to start).
func newVideoBackend(width, height, scale int) (renderbackend.Backend, func(title string) error) {
	b := hostadapter.NewEbitenBackend(width, height, scale)
	return b, b.Start
}

func newHostAudio(lowWaterFrames int) (audiosink.Sink, error) {
	return hostadapter.NewOtoSink(lowWaterFrames)
}

func newHostInput(deviceIndex int) dreamcast.InputSource {
	return hostadapter.NewEbitenInputSource(deviceIndex)
}
