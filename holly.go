// holly.go - Holly interrupt routing and system-bus registers
// (spec.md §4.10, §9 "Holly interrupt routing").
//
// Grounded on original_source/src/hw/holly/holly.cc: RequestInterrupt/
// UnrequestInterrupt OR/AND the requested bit into one of three pending
// registers (ISTNRM/ISTEXT/ISTERR), then ForwardRequestInterrupts
// recomputes three IRL levels by ANDing each pending register against its
// three level masks (IML2*/IML4*/IML6*) and calls into the SH-4's
// interrupt set/clear entry points. Only a representative subset of the
// real hardware's ~30 interrupt sources is modeled - the ones the rest of
// this package's devices actually raise (TA list-complete, render-done,
// vblank) - mirroring the frontends' representative-opcode-subset
// approach rather than transcribing the full bit layout of an .inc file
// that was not part of the retrieved sources.
package dreamcast

// Holly interrupt pending-register selector: which of ISTNRM/ISTEXT/ISTERR
// a given bit belongs to.
type HollyIntClass int

const (
	HollyIntNRM HollyIntClass = iota
	HollyIntEXT
	HollyIntERR
)

// Representative Holly interrupt bits, all within ISTNRM unless noted.
const (
	HollyIntPCVOINT             uint32 = 1 << 3  // vblank-in
	HollyIntPCVOOUT             uint32 = 1 << 4  // vblank-out
	HollyIntRenderDoneISP       uint32 = 1 << 0  // end-of-render: ISP/TSP parse done
	HollyIntRenderDoneTSP       uint32 = 1 << 1  // end-of-render: autosort done
	HollyIntRenderDoneVideo     uint32 = 1 << 2  // end-of-render: scanout-ready
	HollyIntListEndOpaque       uint32 = 1 << 7
	HollyIntListEndOpaqueMod    uint32 = 1 << 8
	HollyIntListEndTrans        uint32 = 1 << 9
	HollyIntListEndTransMod     uint32 = 1 << 10
	HollyIntListEndPunchThrough uint32 = 1 << 21
	HollyIntYUVDone             uint32 = 1 << 22
	HollyIntGDROMCmd            uint32 = 1 << 0 // ISTEXT: GD-ROM command complete
)

// System-bus register byte offsets within HollyRegBase (memory_map.go),
// matching the well-known addresses of the real hardware's interrupt
// block.
const (
	hollyRegISTNRM  = HollyRegBase + 0x100
	hollyRegISTEXT  = HollyRegBase + 0x104
	hollyRegISTERR  = HollyRegBase + 0x108
	hollyRegIML2NRM = HollyRegBase + 0x110
	hollyRegIML2EXT = HollyRegBase + 0x114
	hollyRegIML2ERR = HollyRegBase + 0x118
	hollyRegIML4NRM = HollyRegBase + 0x120
	hollyRegIML4EXT = HollyRegBase + 0x124
	hollyRegIML4ERR = HollyRegBase + 0x128
	hollyRegIML6NRM = HollyRegBase + 0x130
	hollyRegIML6EXT = HollyRegBase + 0x134
	hollyRegIML6ERR = HollyRegBase + 0x138
	hollyRegSFRES   = HollyRegBase + 0x090 // SOFTRESET
)

// hollyFIFODrainer is satisfied by ta.go's Accelerator: SOFTRESET drains
// every in-flight FIFO and discards pending render contexts rather than
// leaving half-built tile state around (see DESIGN.md's SOFTRESET note).
type hollyFIFODrainer interface {
	DrainOnReset()
}

// Holly routes device-raised interrupts to the SH-4's three IRL lines and
// exposes the handful of system-bus registers software polls/acks through.
type Holly struct {
	mem *AddressSpace
	log *Logger
	sh4 *SH4Context

	istNRM, istEXT, istERR           uint32
	iml2NRM, iml2EXT, iml2ERR        uint32
	iml4NRM, iml4EXT, iml4ERR        uint32
	iml6NRM, iml6EXT, iml6ERR        uint32

	ta hollyFIFODrainer
}

// NewHolly creates the routing service and installs its MMIO handler.
// sh4 is the core whose IRL lines get driven. The TA drainer is attached
// separately with AttachAccelerator (nil until then) and is consulted
// only on SOFTRESET.
func NewHolly(mem *AddressSpace, log *Logger, sh4 *SH4Context) *Holly {
	h := &Holly{mem: mem, log: log, sh4: sh4}
	mem.MapHandler(HollyRegBase, HollyRegBase+HollyRegSize-1, &Handler{
		Read32:  h.readRegister,
		Write32: h.writeRegister,
	})
	return h
}

// AttachAccelerator lets dreamcast.go wire the TA in after both exist,
// without holly.go needing to know about ta.go's full type up front.
func (h *Holly) AttachAccelerator(ta hollyFIFODrainer) { h.ta = ta }

// RequestInterrupt raises bit within the pending register named by class,
// then recomputes the three IRL levels.
func (h *Holly) RequestInterrupt(class HollyIntClass, bit uint32) {
	switch class {
	case HollyIntNRM:
		h.istNRM |= bit
	case HollyIntEXT:
		h.istEXT |= bit
	case HollyIntERR:
		h.istERR |= bit
	}
	h.forwardPendingInterrupts()
}

// UnrequestInterrupt clears bit, e.g. once a device's own status register
// has been acknowledged.
func (h *Holly) UnrequestInterrupt(class HollyIntClass, bit uint32) {
	switch class {
	case HollyIntNRM:
		h.istNRM &^= bit
	case HollyIntEXT:
		h.istEXT &^= bit
	case HollyIntERR:
		h.istERR &^= bit
	}
	h.forwardPendingInterrupts()
}

// forwardPendingInterrupts recomputes SH-4 IRL 9/11/13 from the three
// pending registers ANDed against their respective level masks, per
// spec.md §4.10. A line already matching its requested state is still
// re-requested/unrequested; SH4Context.RequestInterrupt is idempotent.
func (h *Holly) forwardPendingInterrupts() {
	level6 := (h.istNRM&h.iml6NRM != 0) || (h.istEXT&h.iml6EXT != 0) || (h.istERR&h.iml6ERR != 0)
	level4 := (h.istNRM&h.iml4NRM != 0) || (h.istEXT&h.iml4EXT != 0) || (h.istERR&h.iml4ERR != 0)
	level2 := (h.istNRM&h.iml2NRM != 0) || (h.istEXT&h.iml2EXT != 0) || (h.istERR&h.iml2ERR != 0)

	setLine := func(active bool, line uint32) {
		if active {
			h.sh4.RequestInterrupt(line)
		} else {
			h.sh4.UnrequestInterrupt(line)
		}
	}
	setLine(level6, SH4IntIRL9)
	setLine(level4, SH4IntIRL11)
	setLine(level2, SH4IntIRL13)
}

// SoftReset implements the SOFTRESET register: drain every FIFO and
// discard any pending render context (DESIGN.md's SOFTRESET decision),
// then clear all pending interrupts so the freshly-reset core doesn't
// immediately re-enter an interrupt handler for state that no longer
// exists.
func (h *Holly) SoftReset() {
	if h.ta != nil {
		h.ta.DrainOnReset()
	}
	h.istNRM, h.istEXT, h.istERR = 0, 0, 0
	h.forwardPendingInterrupts()
}

func (h *Holly) readRegister(addr uint32) uint32 {
	switch addr {
	case hollyRegISTNRM:
		// The two highest bits mirror whether ISTEXT/ISTERR are
		// non-zero; writes to those two bits are ignored (see Write).
		v := h.istNRM & 0x3fffffff
		if h.istEXT != 0 {
			v |= 0x40000000
		}
		if h.istERR != 0 {
			v |= 0x80000000
		}
		return v
	case hollyRegISTEXT:
		return h.istEXT
	case hollyRegISTERR:
		return h.istERR
	case hollyRegIML2NRM:
		return h.iml2NRM
	case hollyRegIML2EXT:
		return h.iml2EXT
	case hollyRegIML2ERR:
		return h.iml2ERR
	case hollyRegIML4NRM:
		return h.iml4NRM
	case hollyRegIML4EXT:
		return h.iml4EXT
	case hollyRegIML4ERR:
		return h.iml4ERR
	case hollyRegIML6NRM:
		return h.iml6NRM
	case hollyRegIML6EXT:
		return h.iml6EXT
	case hollyRegIML6ERR:
		return h.iml6ERR
	default:
		h.log.Warningf("holly", "read from unmodeled register %#x", addr)
		return 0
	}
}

func (h *Holly) writeRegister(addr uint32, v uint32) {
	switch addr {
	case hollyRegISTNRM:
		h.istNRM &^= v // write-1-to-clear
	case hollyRegISTEXT, hollyRegISTERR:
		// Read-only on real hardware: cleared only by acknowledging the
		// owning device, never by a direct write.
	case hollyRegIML2NRM:
		h.iml2NRM = v
	case hollyRegIML2EXT:
		h.iml2EXT = v
	case hollyRegIML2ERR:
		h.iml2ERR = v
	case hollyRegIML4NRM:
		h.iml4NRM = v
	case hollyRegIML4EXT:
		h.iml4EXT = v
	case hollyRegIML4ERR:
		h.iml4ERR = v
	case hollyRegIML6NRM:
		h.iml6NRM = v
	case hollyRegIML6EXT:
		h.iml6EXT = v
	case hollyRegIML6ERR:
		h.iml6ERR = v
	case hollyRegSFRES:
		if v != 0 {
			h.SoftReset()
		}
		return
	default:
		h.log.Warningf("holly", "write to unmodeled register %#x", addr)
		return
	}
	h.forwardPendingInterrupts()
}
