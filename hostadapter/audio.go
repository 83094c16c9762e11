//go:build !headless

// audio.go - oto-backed audiosink.Sink implementation.
//
// Grounded on audio_backend_oto.go's OtoPlayer: the oto.Context/
// oto.NewPlayer lifecycle and the io.Reader pull model stay; what
// changes is the buffer Read drains from. The teacher fed Read from a
// *SoundChip's own ring buffer (SoundChip.ReadSampleFromRing); nothing
// under this module plays the role of SoundChip (AICA's own wavetable
// mixing is out of scope per spec.md's Non-goals), so Sink owns its
// own ring buffer directly and exposes it through audiosink.Sink's
// Push/BufferLow instead.
package hostadapter

import (
	"encoding/binary"
	"sync"
	"time"

	oto "github.com/ebitengine/oto/v3"

	"github.com/intuitionamiga/dreamcast/audiosink"
)

// ringFrames sizes the sink's internal buffer at roughly 180ms of
// stereo audio at 44.1kHz, generous against scheduler tick jitter
// without risking noticeable output latency.
const ringFrames = 8192

// OtoSink satisfies audiosink.Sink over an ebitengine/oto player. The
// ring buffer is guarded by a single mutex rather than the teacher's
// atomic.Pointer swap: Push and Read both need to advance the same
// read/write/count triple together, which an atomic pointer swap alone
// can't give consistently.
type OtoSink struct {
	mu       sync.Mutex
	ctx      *oto.Context
	player   *oto.Player
	buf      []int16 // interleaved stereo samples, ringFrames*2 long
	r, w, n  int     // read index, write index, queued frame count
	lowWater int
}

// NewOtoSink opens the host audio device and returns a Sink with
// lowWaterFrames as its BufferLow threshold.
func NewOtoSink(lowWaterFrames int) (*OtoSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audiosink.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   8 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{
		buf:      make([]int16, ringFrames*2),
		lowWater: lowWaterFrames,
	}
	s.ctx = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Push implements audiosink.Sink. Frames that don't fit the ring are
// dropped rather than overwriting unread ones, matching the interface's
// must-not-block contract.
func (s *OtoSink) Push(samples []int16, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	free := ringFrames - s.n
	if count > free {
		count = free
	}
	for i := 0; i < count; i++ {
		idx := (s.w + i) % ringFrames
		s.buf[idx*2] = samples[i*2]
		s.buf[idx*2+1] = samples[i*2+1]
	}
	s.w = (s.w + count) % ringFrames
	s.n += count
}

// BufferLow implements audiosink.Sink.
func (s *OtoSink) BufferLow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n < s.lowWater
}

// Read implements io.Reader for oto's player, draining the ring buffer
// frame by frame and zero-filling (silence) once it runs dry rather
// than blocking the player's pull.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 4 // 2 channels * 2 bytes/sample
	for i := 0; i < frames; i++ {
		var l, r int16
		if s.n > 0 {
			l, r = s.buf[s.r*2], s.buf[s.r*2+1]
			s.r = (s.r + 1) % ringFrames
			s.n--
		}
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return frames * 4, nil
}

// Close stops playback and releases the player.
func (s *OtoSink) Close() {
	s.player.Close()
}
