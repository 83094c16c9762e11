package dreamcast

import (
	"encoding/binary"
	"testing"
	"time"
)

func newTestAccelerator(t *testing.T) (*Accelerator, *Holly, *SH4Context) {
	t.Helper()
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	sh4 := NewSH4Context()
	holly := NewHolly(mem, NewLogger(SeverityFatal), sh4)
	sched := NewScheduler()
	ta := NewAccelerator(mem, NewLogger(SeverityFatal), holly, sched)
	holly.AttachAccelerator(ta)
	return ta, holly, sh4
}

func encodePCW(full uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, full)
	return b
}

// polyOrVolCommand builds a minimal 32-byte untextured, Gouraud-shaded
// opaque polygon header (col_type=0 -> poly type 0 -> 32 bytes).
func polyOrVolCommand(listType uint32) []byte {
	pcw := TAParamPolyOrVol<<29 | listType<<26
	cmd := make([]byte, 32)
	copy(cmd, encodePCW(pcw))
	return cmd
}

func endOfListCommand() []byte {
	cmd := make([]byte, 32)
	copy(cmd, encodePCW(TAParamEndOfList<<29))
	return cmd
}

// TestTAPolyFIFOEndOfListRaisesListCompleteInterrupt exercises the Poly
// FIFO row of spec.md §4.8: a polygon header followed by END_OF_LIST
// must raise the opaque-list-complete interrupt and route it to IRL_9
// when IML6 unmasks it.
func TestTAPolyFIFOEndOfListRaisesListCompleteInterrupt(t *testing.T) {
	ta, holly, sh4 := newTestAccelerator(t)
	holly.mem.Write32(hollyRegIML6NRM, HollyIntListEndOpaque)

	ta.mem.WriteBlock(TAPolyFIFOBase, polyOrVolCommand(TAListOpaque))
	if sh4.PendingInterrupts != 0 {
		t.Fatalf("expected no interrupt before END_OF_LIST")
	}

	ta.mem.WriteBlock(TAPolyFIFOBase, endOfListCommand())
	if sh4.PendingInterrupts&SH4IntIRL9 == 0 {
		t.Fatalf("expected IRL_9 pending after opaque list END_OF_LIST")
	}
}

// TestTARenderHandoffBackpressure is spec.md §8's named scenario: the
// render thread is slow to pick up a context; three STARTRENDER calls
// land while it is busy; the first is accepted, the next two are
// dropped and increment the skipped-frame counter while raising
// render-done interrupts immediately.
func TestTARenderHandoffBackpressure(t *testing.T) {
	ta, _, _ := newTestAccelerator(t)

	ta.mem.WriteBlock(TAPolyFIFOBase, polyOrVolCommand(TAListOpaque))
	ta.mem.WriteBlock(TAPolyFIFOBase, endOfListCommand())

	ta.StartRender()
	if ta.FramesSkipped() != 0 {
		t.Fatalf("first STARTRENDER should be accepted, got %d skipped", ta.FramesSkipped())
	}

	done := make(chan struct{})
	go func() {
		ctx, _, ok := ta.LockPendingContext(time.Second)
		if !ok || ctx == nil {
			t.Errorf("render thread failed to lock the first pending context")
		}
		time.Sleep(100 * time.Millisecond)
		ta.UnlockPendingContext()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine above take the lock first
	ta.StartRender()
	ta.StartRender()

	if got := ta.FramesSkipped(); got != 2 {
		t.Fatalf("frames_skipped = %d, want 2", got)
	}

	<-done

	// Now that the slot is free, a fourth STARTRENDER must succeed.
	before := ta.FramesSkipped()
	ta.StartRender()
	if ta.FramesSkipped() != before {
		t.Fatalf("STARTRENDER after unlock should be accepted, frames_skipped grew to %d", ta.FramesSkipped())
	}
}
