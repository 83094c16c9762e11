//go:build headless

package main

import (
	"github.com/intuitionamiga/dreamcast"
	"github.com/intuitionamiga/dreamcast/audiosink"
	"github.com/intuitionamiga/dreamcast/hostadapter"
	"github.com/intuitionamiga/dreamcast/renderbackend"
)

func newVideoBackend(width, height, scale int) (renderbackend.Backend, func(title string) error) {
	b := hostadapter.NewHeadlessBackend()
	return b, func(title string) error { return nil }
}

func newHostAudio(lowWaterFrames int) (audiosink.Sink, error) {
	return hostadapter.NewOtoSink(lowWaterFrames)
}

func newHostInput(deviceIndex int) dreamcast.InputSource {
	return hostadapter.NewEbitenInputSource(deviceIndex)
}
