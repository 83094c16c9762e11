// Package audiosink defines the consumed host audio sink interface
// (spec.md §6, "Audio sink (consumed)"): a push/drain buffer of
// interleaved signed 16-bit stereo samples at 44,100 Hz, plus the
// low-water-mark signal the core thread paces emulation against
// (spec.md §5, "core thread... paced by audio_buffer_low()").
package audiosink

// SampleRate is the fixed PCM rate every Sink implementation consumes
// at; AICA's own resampling is out of scope (spec.md Non-goals).
const SampleRate = 44100

// Sink receives interleaved stereo s16 frames (two int16 per frame,
// left then right) and reports back-pressure.
type Sink interface {
	// Push enqueues count frames from samples (len(samples) >=
	// count*2). Implementations must not block; a full sink drops the
	// newest frames rather than stall emulation.
	Push(samples []int16, count int)

	// BufferLow reports whether queued audio has fallen below the
	// sink's configured low-water mark, the core thread's pacing
	// signal.
	BufferLow() bool
}
