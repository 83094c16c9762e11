package dreamcast

import "testing"

func newTestHolly(t *testing.T) (*Holly, *SH4Context) {
	t.Helper()
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	sh4 := NewSH4Context()
	return NewHolly(mem, NewLogger(SeverityFatal), sh4), sh4
}

// TestHollyRoutesIRL13ForIML2 checks the level-2-masked path: a device
// interrupt whose bit is only enabled in IML2NRM must raise exactly
// IRL_13 and no other line.
func TestHollyRoutesIRL13ForIML2(t *testing.T) {
	h, sh4 := newTestHolly(t)
	h.mem.Write32(hollyRegIML2NRM, HollyIntPCVOINT)

	h.RequestInterrupt(HollyIntNRM, HollyIntPCVOINT)

	if sh4.PendingInterrupts&SH4IntIRL13 == 0 {
		t.Fatalf("expected IRL_13 pending after an IML2-masked NRM interrupt")
	}
	if sh4.PendingInterrupts&(SH4IntIRL9|SH4IntIRL11) != 0 {
		t.Fatalf("expected only IRL_13 pending, got mask %#x", sh4.PendingInterrupts)
	}
}

// TestHollyUnmaskedInterruptRaisesNoLine verifies a bit with no
// corresponding IML mask set never reaches the SH-4.
func TestHollyUnmaskedInterruptRaisesNoLine(t *testing.T) {
	h, sh4 := newTestHolly(t)
	h.RequestInterrupt(HollyIntNRM, HollyIntPCVOINT)
	if sh4.PendingInterrupts != 0 {
		t.Fatalf("expected no IRL line pending for an unmasked interrupt, got %#x", sh4.PendingInterrupts)
	}
}

// TestHollyISTNRMWriteClearsAckedBits checks the write-1-to-clear
// discipline and that the line drops once the bit is gone.
func TestHollyISTNRMWriteClearsAckedBits(t *testing.T) {
	h, sh4 := newTestHolly(t)
	h.mem.Write32(hollyRegIML6NRM, HollyIntListEndOpaque)
	h.RequestInterrupt(HollyIntNRM, HollyIntListEndOpaque)
	if sh4.PendingInterrupts&SH4IntIRL9 == 0 {
		t.Fatalf("expected IRL_9 pending before ack")
	}

	h.mem.Write32(hollyRegISTNRM, HollyIntListEndOpaque)

	if h.istNRM&HollyIntListEndOpaque != 0 {
		t.Fatalf("expected ISTNRM bit cleared after write-1-to-clear")
	}
	if sh4.PendingInterrupts&SH4IntIRL9 != 0 {
		t.Fatalf("expected IRL_9 to drop once its only source was acked")
	}
}

// TestHollyISTNRMReadMirrorsEXTERR verifies the top two read-only bits
// that summarize ISTEXT/ISTERR non-zero-ness.
func TestHollyISTNRMReadMirrorsEXTERR(t *testing.T) {
	h, _ := newTestHolly(t)
	h.RequestInterrupt(HollyIntERR, 1)
	v := h.mem.Read32(hollyRegISTNRM)
	if v&0x80000000 == 0 {
		t.Fatalf("expected ISTNRM's ERR-summary bit set, got %#x", v)
	}
}

type fakeDrainer struct{ drained bool }

func (f *fakeDrainer) DrainOnReset() { f.drained = true }

// TestHollySoftResetDrainsAndClears verifies SOFTRESET both drains the
// attached accelerator and clears all pending interrupts.
func TestHollySoftResetDrainsAndClears(t *testing.T) {
	h, sh4 := newTestHolly(t)
	drainer := &fakeDrainer{}
	h.AttachAccelerator(drainer)

	h.mem.Write32(hollyRegIML6NRM, HollyIntListEndOpaque)
	h.RequestInterrupt(HollyIntNRM, HollyIntListEndOpaque)
	if sh4.PendingInterrupts == 0 {
		t.Fatalf("setup: expected a pending interrupt before reset")
	}

	h.mem.Write32(hollyRegSFRES, 0x00007611)

	if !drainer.drained {
		t.Fatalf("expected SOFTRESET to drain the attached accelerator")
	}
	if sh4.PendingInterrupts != 0 {
		t.Fatalf("expected all IRL lines clear after SOFTRESET, got %#x", sh4.PendingInterrupts)
	}
}
