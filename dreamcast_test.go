package dreamcast

import (
	"testing"
	"time"
)

func TestNewMachineWiresEveryDevice(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal)})
	if m.Mem == nil || m.SH4 == nil || m.ARM7 == nil || m.Holly == nil || m.TA == nil || m.GDROM == nil || m.Maple == nil {
		t.Fatalf("NewMachine left a device unwired: %+v", m)
	}
	if len(m.Maple.Controllers) != 1 {
		t.Fatalf("default ControllerCount = %d, want 1", len(m.Maple.Controllers))
	}
}

// TestMachineTickRunsSH4ThroughTrapLoop exercises the full translate-
// cache-execute loop against guest memory that decodes to nothing but
// illegal instructions: every block is exactly one trap, which stores
// the flat exception vector 0x100 back into PC, so after at least one
// block executes the core's PC settles at 0x100 and stays there for
// every subsequent (single-cycle) block.
func TestMachineTickRunsSH4ThroughTrapLoop(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal)})
	m.SH4.PC = MainRAMBase

	m.Tick(1000) // nanoseconds; SH4 at 200 MHz gets plenty of cycles here
	if m.SH4.PC != 0x100 {
		t.Fatalf("SH4.PC after tick = %#08x, want 0x100", m.SH4.PC)
	}
	if m.Cache.Len() == 0 {
		t.Fatalf("expected at least one compiled block cached")
	}
}

func TestMachineResetClearsBlockCache(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal)})
	m.SH4.PC = MainRAMBase
	m.Tick(1000)
	if m.Cache.Len() == 0 {
		t.Fatalf("expected a populated cache before reset")
	}
	m.Reset()
	if m.Cache.Len() != 0 {
		t.Fatalf("Cache.Len() after Reset = %d, want 0", m.Cache.Len())
	}
}

func TestMachineRenderPendingFrameFalseWithoutBackendOrFrame(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal)})
	if m.RenderPendingFrame(time.Millisecond) {
		t.Fatalf("RenderPendingFrame with no render backend configured should report false")
	}
}

type fakeInputSource struct{ events []InputEvent }

func (f fakeInputSource) PollInput() []InputEvent { return f.events }

func TestMachinePumpInputRoutesToController(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal), ControllerCount: 2})
	src := fakeInputSource{events: []InputEvent{{DeviceIndex: 1}}}
	m.PumpInput(src) // must not panic on an in-range device index
}

func TestJitCoreTranslateCachesUnderSpecialization(t *testing.T) {
	m := NewMachine(MachineOptions{Log: NewLogger(SeverityFatal)})
	m.SH4.PC = MainRAMBase
	m.SH4.FPSCR = FPSCRRM | FPSCRDN // default specialization (0 after masking SZ/PR)

	m.Tick(100)
	before := m.Cache.Len()
	if before == 0 {
		t.Fatalf("expected a cached block after the first tick")
	}

	// A different FPU mode must translate (and cache) separately rather
	// than reuse the first specialization's block.
	m.SH4.PC = MainRAMBase
	m.SH4.FPSCR |= FPSCRSZ
	m.Tick(100)
	if m.Cache.Len() <= before {
		t.Fatalf("Cache.Len() = %d after a differently-specialized retranslation, want growth from %d", m.Cache.Len(), before)
	}
}
