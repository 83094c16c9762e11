// frontend.go - guest frontend contract (spec.md §4.4).
//
// Grounded on original_source/src/jit/frontend/sh4/sh4_frontend.c's
// analyze_code/translate_code pair and original_source/src/jit/jit_guest.h's
// guest-memory-read surface (r16/r32 against an address space).
package dreamcast

// Guest is the small surface a frontend needs from the machine it is
// decoding: guest-memory reads for fetching instruction words.
type Guest interface {
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
}

// Frontend decodes one guest ISA into IR. Implementations: frontend_sh4.go,
// frontend_arm7.go.
type Frontend interface {
	// AnalyzeCode scans forward from pc to find the next terminator
	// (spec.md §4.4's "block shape") and returns the block's byte size,
	// including any delay slot.
	AnalyzeCode(guest Guest, pc uint32) (size uint32)

	// TranslateCode emits IR for the block [pc, pc+size) into fn.
	TranslateCode(guest Guest, pc, size uint32, fn *Function)

	// IsIdleLoop reports spec.md §4.4's idle-loop heuristic for the
	// candidate block starting at pc.
	IsIdleLoop(guest Guest, pc uint32) bool
}

// instrFlags classifies one decoded guest instruction for block-shaping
// purposes (terminator detection, idle-loop heuristic, delay slots).
type instrFlags uint32

const (
	flagLoad instrFlags = 1 << iota
	flagCmp
	flagCond
	flagStorePC
	flagStoreSR
	flagStoreFPSCR
	flagDelayed
)

const idleMask = flagLoad | flagCmp | flagCond

// isTerminator implements sh4_frontend_is_terminator's rule, shared by
// both guest frontends: a block ends at a PC-writing instruction, or one
// that invalidates the block's specialization by changing SR or FPSCR/CPSR.
func isTerminator(flags instrFlags) bool {
	return flags&flagStorePC != 0 || flags&(flagStoreFPSCR|flagStoreSR) != 0
}
