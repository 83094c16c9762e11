package dreamcast

import "testing"

// sliceGuest is a minimal Guest backed by a flat halfword program, enough
// to drive the frontend's analyze/translate/idle-loop paths in isolation.
type sliceGuest struct {
	words map[uint32]uint16
}

func newSliceGuest(base uint32, words []uint16) *sliceGuest {
	g := &sliceGuest{words: map[uint32]uint16{}}
	for i, w := range words {
		g.words[base+uint32(i*2)] = w
	}
	return g
}

func (g *sliceGuest) Read16(addr uint32) uint16 { return g.words[addr] }
func (g *sliceGuest) Read32(addr uint32) uint32 {
	return uint32(g.words[addr]) | uint32(g.words[addr+2])<<16
}

// TestIdleLoopDetection exercises spec.md §8's scenario: a block
// "MOV.L @r0,r1; TST r1,r1; BT .-4" must be flagged idle_loop=1; the same
// block with a forward BT target must be flagged 0.
func TestIdleLoopDetection(t *testing.T) {
	const movLoad = 0x6102 // MOV.L @r0,r1
	const tst = 0x2118     // TST r1,r1

	backEdge := uint16(0x8900 | 0xFC) // BT disp=-4 -> targets begin_addr exactly
	guestBack := newSliceGuest(0, []uint16{movLoad, tst, backEdge})

	fe := NewSH4Frontend()
	if !fe.IsIdleLoop(guestBack, 0) {
		t.Fatalf("expected idle loop for back-edge BT block")
	}

	forward := uint16(0x8900 | 0x04) // BT disp=+4 -> forward target, disqualifies
	guestForward := newSliceGuest(0, []uint16{movLoad, tst, forward})
	if fe.IsIdleLoop(guestForward, 0) {
		t.Fatalf("expected non-idle loop for forward BT block")
	}
}

func TestSH4AnalyzeCodeStopsAtTerminator(t *testing.T) {
	const movLoad = 0x6102
	const tst = 0x2118
	backEdge := uint16(0x8900 | 0xFC)
	guest := newSliceGuest(0, []uint16{movLoad, tst, backEdge})

	fe := NewSH4Frontend()
	size := fe.AnalyzeCode(guest, 0)
	if size != 6 {
		t.Fatalf("AnalyzeCode size = %d, want 6 (3 non-delayed halfwords)", size)
	}
}

func TestSH4TranslateCodeProducesWellFormedIR(t *testing.T) {
	const movLoad = 0x6102 // MOV.L @r0,r1
	const addImm = 0x7101  // ADD #1,r1 (n=1, imm=1)
	const unknown = 0xFFFF // decodes to a trap, terminating the block
	guest := newSliceGuest(0, []uint16{movLoad, addImm, unknown})
	fe := NewSH4Frontend()
	size := fe.AnalyzeCode(guest, 0)
	fn := NewFunction(0)
	fe.TranslateCode(guest, 0, size, fn)

	if len(fn.Blocks) == 0 {
		t.Fatalf("TranslateCode produced no blocks")
	}
	text := Format(fn)
	if _, err := Parse(text); err != nil {
		t.Fatalf("translated IR failed to round-trip: %v\n%s", err, text)
	}
}

// TestSH4DelayedBranchInsertsDelaySlotBeforeTerminator verifies a delayed
// op (BRA) places its delay-slot instruction's IR ahead of the branch,
// per spec.md §4.4's insertion-cursor rule.
func TestSH4DelayedBranchInsertsDelaySlotBeforeTerminator(t *testing.T) {
	const movLoad = 0x6102       // MOV.L @r0,r1 (delay slot)
	bra := uint16(0xA000 | 0x002) // BRA disp=2 -> target = pc+4+4 = addr+8
	guest := newSliceGuest(0, []uint16{bra, movLoad})

	fe := NewSH4Frontend()
	size := fe.AnalyzeCode(guest, 0)
	if size != 4 {
		t.Fatalf("AnalyzeCode size = %d, want 4 (branch + delay slot)", size)
	}

	fn := NewFunction(0)
	fe.TranslateCode(guest, 0, size, fn)

	entry := fn.Blocks[0]
	var sawLoadBeforeBranch, sawBranch bool
	for _, ins := range entry.Instrs {
		if ins.Op == OpLoadGuest {
			sawLoadBeforeBranch = !sawBranch
		}
		if ins.Op == OpBranch {
			sawBranch = true
		}
	}
	if !sawBranch {
		t.Fatalf("expected a BR instruction for BRA")
	}
	if !sawLoadBeforeBranch {
		t.Fatalf("delay slot's LOAD_GUEST must precede the branch instruction")
	}
}
