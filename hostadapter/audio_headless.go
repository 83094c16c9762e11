//go:build headless

// audio_headless.go - no-op audiosink.Sink for headless operation
// (trace replay, CI), mirroring audio_backend_headless.go's stub shape.
package hostadapter

// OtoSink is a no-op stand-in: Push discards every frame and BufferLow
// always reports true, so a core thread pacing itself against
// BufferLow never stalls waiting on audio that nothing is consuming.
type OtoSink struct{}

func NewOtoSink(lowWaterFrames int) (*OtoSink, error) {
	return &OtoSink{}, nil
}

func (s *OtoSink) Push(samples []int16, count int) {}

func (s *OtoSink) BufferLow() bool { return true }

func (s *OtoSink) Close() {}
