// cpu_context.go - guest CPU architectural state (spec.md §3 "CPU contexts").
//
// Grounded on original_source/src/jit/frontend/sh4/sh4_context.h (field
// layout, SR/FPSCR bit meanings) and original_source/src/guest/arm7/arm7.c
// (CPSR mode field, banked-register swap). Field offsets are computed with
// unsafe.Offsetof so the IR's byte-offset LOAD_CTX/STORE_CTX operations
// (ir_builder.go) address real struct storage, mirroring the original's
// offsetof(struct sh4_context, ...) usage from C.
package dreamcast

import "unsafe"

// SH-4 status register bits.
const (
	SRFlagT  uint32 = 0x00000001
	SRFlagS  uint32 = 0x00000002
	SRFlagI  uint32 = 0x000000f0
	SRFlagQ  uint32 = 0x00000100
	SRFlagM  uint32 = 0x00000200
	SRFlagFD uint32 = 0x00008000
	SRFlagBL uint32 = 0x10000000
	SRFlagRB uint32 = 0x20000000
	SRFlagMD uint32 = 0x40000000
)

// SH-4 FPSCR bits.
const (
	FPSCRRM uint32 = 0x00000003
	FPSCRDN uint32 = 0x00040000
	FPSCRPR uint32 = 0x00080000
	FPSCRSZ uint32 = 0x00100000
	FPSCRFR uint32 = 0x00200000
)

// SH4Context holds one SH-4 core's full architectural state. r[16] holds
// the active register bank (r0-r15); ralt[8] holds the inactive bank's
// r0-r7, swapped in on an RB toggle.
type SH4Context struct {
	RemainingCycles int32
	TotalCycles     int32

	PC, PR, SR, SRQM, FPSCR uint32
	DBR, GBR, VBR           uint32
	FPUL, MACH, MACL        uint32
	SGR, SPC, SSR           uint32
	SQ                      [2][8]uint32

	R    [16]uint32
	RAlt [8]uint32

	FR [16]uint32
	XF [16]uint32

	PendingInterrupts uint32
}

// SH-4 context field byte offsets, for IR LOAD_CTX/STORE_CTX operands.
var (
	SH4CtxPC     = uint32(unsafe.Offsetof(SH4Context{}.PC))
	SH4CtxPR     = uint32(unsafe.Offsetof(SH4Context{}.PR))
	SH4CtxSR     = uint32(unsafe.Offsetof(SH4Context{}.SR))
	SH4CtxFPSCR  = uint32(unsafe.Offsetof(SH4Context{}.FPSCR))
	SH4CtxGBR    = uint32(unsafe.Offsetof(SH4Context{}.GBR))
	SH4CtxVBR    = uint32(unsafe.Offsetof(SH4Context{}.VBR))
	SH4CtxFPUL   = uint32(unsafe.Offsetof(SH4Context{}.FPUL))
	SH4CtxMACH   = uint32(unsafe.Offsetof(SH4Context{}.MACH))
	SH4CtxMACL   = uint32(unsafe.Offsetof(SH4Context{}.MACL))
	SH4CtxR      = uint32(unsafe.Offsetof(SH4Context{}.R))
	SH4CtxFR     = uint32(unsafe.Offsetof(SH4Context{}.FR))
	SH4CtxCycles = uint32(unsafe.Offsetof(SH4Context{}.RemainingCycles))
)

// SH-4 external interrupt request lines Holly drives (spec.md §4.10): the
// three IML*/IST OR-masks resolve to exactly these three IRL levels.
const (
	SH4IntIRL9  uint32 = 1 << 0
	SH4IntIRL11 uint32 = 1 << 1
	SH4IntIRL13 uint32 = 1 << 2
)

// RequestInterrupt/UnrequestInterrupt set or clear one IRL line in
// PendingInterrupts. Holly (holly.go) calls these from
// forwardPendingInterrupts whenever an IST/IML register changes; the
// dispatcher (jitCore.Run in dreamcast.go) samples PendingInterrupts between blocks.
func (c *SH4Context) RequestInterrupt(line uint32) {
	c.PendingInterrupts |= line
}

func (c *SH4Context) UnrequestInterrupt(line uint32) {
	c.PendingInterrupts &^= line
}

// CheckPendingInterrupts vectors to a hardware exception if an IRL line
// is pending and the core isn't already masking interrupts (SR.BL):
// real SH-4 hardware interrupts all share the VBR+0x600 entry point,
// distinguished at the handler by INTEVT, which this context doesn't
// model (spec.md's Non-goals exclude cycle-accurate SH-4 exception
// handling); only entry/SPC/SSR/BL bookkeeping mirrors the real
// sequence, the same level of fidelity ARM7Context.CheckPendingInterrupts
// below gives FIQ.
func (c *SH4Context) CheckPendingInterrupts() {
	if c.PendingInterrupts == 0 || c.SR&SRFlagBL != 0 {
		return
	}
	c.SSR = c.SR
	c.SPC = c.PC
	c.SR |= SRFlagBL | SRFlagMD
	c.PC = c.VBR + 0x600
}

// SH4RegOffset returns the byte offset of general register n (0-15).
func SH4RegOffset(n int) uint32 { return SH4CtxR + uint32(n)*4 }

// SH4FROffset returns the byte offset of floating-point register n (0-15).
func SH4FROffset(n int) uint32 { return SH4CtxFR + uint32(n)*4 }

// NewSH4Context returns a zeroed context with power-on register state.
func NewSH4Context() *SH4Context {
	ctx := &SH4Context{}
	ctx.SR = SRFlagMD | SRFlagBL | SRFlagI
	ctx.VBR = 0
	ctx.FPSCR = FPSCRRM | FPSCRDN
	return ctx
}

// ARMv3 CPSR mode field values (the low 5 bits of CPSR).
const (
	ARM7ModeUSR uint32 = 0x10
	ARM7ModeFIQ uint32 = 0x11
	ARM7ModeIRQ uint32 = 0x12
	ARM7ModeSVC uint32 = 0x13
	ARM7ModeABT uint32 = 0x17
	ARM7ModeUND uint32 = 0x1b
	ARM7ModeSYS uint32 = 0x1f

	ARM7ModeMask uint32 = 0x1f
	ARM7FlagI    uint32 = 0x00000080
	ARM7FlagF    uint32 = 0x00000040
)

// ARM7Context holds the ARM7DI coprocessor's state. R[16] is CPSR (index
// ARM7RegCPSR) and R[0..15] the active register window; Banks holds every
// mode's banked r8-r14+SPSR, indexed by mode.
type ARM7Context struct {
	R [17]uint32 // r0-r15 plus CPSR at index 16

	// banked registers per privileged mode: 7 slots (r8-r14) plus SPSR
	Banks [7][8]uint32

	PendingInterrupts   uint32
	RequestedInterrupts uint32

	RemainingCycles int32
	TotalCycles     int32
}

const (
	ARM7RegCPSR = 16
)

var (
	ARM7CtxR      = uint32(unsafe.Offsetof(ARM7Context{}.R))
	ARM7CtxCycles = uint32(unsafe.Offsetof(ARM7Context{}.RemainingCycles))
)

// ARM7RegOffset returns the byte offset of register n (0-15) or CPSR (16).
func ARM7RegOffset(n int) uint32 { return ARM7CtxR + uint32(n)*4 }

// NewARM7Context returns a context matching arm7_reset's power-on state
// (original_source/src/guest/arm7/arm7.c).
func NewARM7Context() *ARM7Context {
	ctx := &ARM7Context{}
	ctx.R[13] = 0x03007f00
	ctx.R[15] = 0x00000000
	ctx.R[ARM7RegCPSR] = ARM7FlagF | ARM7ModeSYS
	return ctx
}

// armModeBankIndex maps a CPSR mode field to a Banks row, or -1 for modes
// with no private bank (USR/SYS share the same registers).
func armModeBankIndex(mode uint32) int {
	switch mode {
	case ARM7ModeFIQ:
		return 0
	case ARM7ModeIRQ:
		return 1
	case ARM7ModeSVC:
		return 2
	case ARM7ModeABT:
		return 3
	case ARM7ModeUND:
		return 4
	default:
		return -1
	}
}

// SwitchMode implements arm7_swap_registers + the CPSR/SPSR write from
// arm7_switch_mode: it banks out r8-r14 (FIQ banks all seven; other
// privileged modes bank only r13-r14) and the old mode's SPSR, then banks
// in the new mode's copies, and recomputes the pending interrupt mask from
// CPSR's F bit.
func (c *ARM7Context) SwitchMode(newCPSR uint32) {
	oldMode := c.R[ARM7RegCPSR] & ARM7ModeMask
	newMode := newCPSR & ARM7ModeMask

	if oldMode != newMode {
		c.swapBank(oldMode, newMode)
	}

	if idx := armModeBankIndex(newMode); idx >= 0 {
		c.Banks[idx][7] = c.R[ARM7RegCPSR] // write old CPSR into new mode's SPSR slot
	}
	c.R[ARM7RegCPSR] = newCPSR
	c.updatePendingInterrupts()
}

func (c *ARM7Context) swapBank(oldMode, newMode uint32) {
	oldIdx := armModeBankIndex(oldMode)
	newIdx := armModeBankIndex(newMode)

	first := 13 // FIQ banks r8-r14; every other privileged mode banks only r13-r14
	if oldIdx == 0 || newIdx == 0 {
		first = 8
	}

	for r := first; r <= 14; r++ {
		slot := r - 8
		var old uint32
		if oldIdx >= 0 {
			old = c.Banks[oldIdx][slot]
			c.Banks[oldIdx][slot] = c.R[r]
		}
		if newIdx >= 0 {
			c.R[r] = c.Banks[newIdx][slot]
			if oldIdx < 0 {
				c.Banks[newIdx][slot] = old // old was USR/SYS-resident, nowhere to stash; keep new bank authoritative
			}
		} else {
			c.R[r] = old
		}
	}
}

func (c *ARM7Context) updatePendingInterrupts() {
	var mask uint32
	if c.R[ARM7RegCPSR]&ARM7FlagF == 0 {
		mask |= ARM7IntFIQ
	}
	c.PendingInterrupts = c.RequestedInterrupts & mask
}

// ARM7 interrupt bits (original_source enum arm7_interrupt).
const (
	ARM7IntFIQ uint32 = 1 << 0
)

// RaiseInterrupt marks intr requested and recomputes the pending mask.
func (c *ARM7Context) RaiseInterrupt(intr uint32) {
	c.RequestedInterrupts |= intr
	c.updatePendingInterrupts()
}

// CheckPendingInterrupts implements arm7_check_pending_interrupts: on a
// pending FIQ it switches to FIQ mode with interrupts masked and vectors
// to 0x1c, having stacked the return address in r14.
func (c *ARM7Context) CheckPendingInterrupts() {
	if c.PendingInterrupts&ARM7IntFIQ == 0 {
		return
	}
	c.RequestedInterrupts &^= ARM7IntFIQ

	newCPSR := (c.R[ARM7RegCPSR] &^ ARM7ModeMask) | ARM7FlagI | ARM7FlagF | ARM7ModeFIQ
	returnPC := c.R[15] + 4
	c.SwitchMode(newCPSR)
	c.R[14] = returnPC
	c.R[15] = 0x1c
}

// SoftwareInterrupt implements arm7_software_interrupt (the SWI vector).
func (c *ARM7Context) SoftwareInterrupt() {
	newCPSR := (c.R[ARM7RegCPSR] &^ ARM7ModeMask) | ARM7FlagI | ARM7ModeSVC
	returnPC := c.R[15] + 4
	c.SwitchMode(newCPSR)
	c.R[14] = returnPC
	c.R[15] = 0x08
}
