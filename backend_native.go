//go:build amd64

// backend_native.go - amd64 machine-code backend (spec.md §4.6, §4.7). A
// peer of backend_interpreter.go: it lowers register-allocated IR straight
// to host instructions instead of walking the IR tree at call time.
//
// Scope: only the register/context arithmetic subset of the IR lowers to
// native code. LOAD_GUEST/STORE_GUEST and CALL_EXTERNAL do not, because Go
// functions compiled with the default ABIInternal calling convention are
// not safely callable from hand-emitted machine code without their own
// per-callee assembly shim - there is no general "call arbitrary Go method"
// trampoline to reach for here the way tinyrange-rtg's backend calls into
// the Linux kernel with a fixed, known syscall ABI. A block using either op
// fails Compile and jitCore.compileWithFallback in dreamcast.go (per
// spec.md's codegen-error policy) retries it with the interpreter backend instead of treating the
// failure as fatal; Compile only returns an error meant to be fatal when
// the IR itself is malformed (an unallocated Value reaching emission).
package dreamcast

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// nativeGPR/nativeXMM map a Value.Reg index (as produced by
// ir_regalloc.go against DefaultRegisters()) to an amd64 register number.
// Reg indices 0..DefaultGPRCount-1 are GPRs; DefaultGPRCount.. are XMMs.
// RDI, RSP and RBP are never handed out by DefaultRegisters and stay
// reserved: RDI holds the guest context pointer for the life of the
// compiled block, RSP/RBP frame the spill area.
var nativeGPR = [DefaultGPRCount]byte{0, 1, 2, 3, 6, 8, 9, 10, 11, 12, 13, 14, 15}

const ctxReg = 7 // RDI

func gprOf(reg int) (byte, error) {
	if reg < 0 || reg >= DefaultGPRCount {
		return 0, fmt.Errorf("backend_native: value has no GPR assignment (reg=%d)", reg)
	}
	return nativeGPR[reg], nil
}

func xmmOf(reg int) (byte, error) {
	x := reg - DefaultGPRCount
	if x < 0 || x >= DefaultFPRCount {
		return 0, fmt.Errorf("backend_native: value has no XMM assignment (reg=%d)", reg)
	}
	return byte(x), nil
}

// NativeBackend compiles IR to amd64 machine code and runs it on a
// dedicated, non-moving stack (native_call_amd64.s). One instance must
// not be used for concurrent Compile/Call from multiple goroutines - the
// jitCore dispatcher in dreamcast.go drives a single CPU's blocks
// sequentially, so
// this mirrors how the rest of the JIT pipeline is already single-threaded
// per guest core.
type NativeBackend struct {
	stack    []byte
	stackTop uintptr
}

const nativeStackSize = 1 << 20

// NewNativeBackend mmaps the dedicated call stack. Returns an error if the
// host cannot provide anonymous executable-capable mappings (e.g. a
// hardened kernel with W^X restrictions this process isn't allowed to
// cross) - callers are expected to fall back to NewInterpreter in that
// case, matching the "native is an optimization, interpreter is always
// correct" framing of spec.md §4.6.
func NewNativeBackend() (*NativeBackend, error) {
	stack, err := unix.Mmap(-1, 0, nativeStackSize, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("backend_native: mmap stack: %w", err)
	}
	nb := &NativeBackend{stack: stack}
	nb.stackTop = uintptr(unsafe.Pointer(unsafe.SliceData(stack))) + uintptr(len(stack))
	return nb, nil
}

// nativeBlock is the CompiledBlock a NativeBackend hands back: an
// executable mmap'd region (write-protected after assembly, per W^X) plus
// the guest entry address it was translated from.
type nativeBlock struct {
	entryPC uint32
	code    []byte
	entry   uintptr
}

func (b *nativeBlock) EntryPC() uint32 { return b.entryPC }

type patch struct {
	pos    int // offset of the rel32 field within the buffer
	target *Block
}

type nativeAsm struct {
	buf          []byte
	blockOffsets map[*Block]int
	patches      []patch
	frameSize    int
	layout       ContextLayout
}

// Compile lowers fn to amd64 machine code. Only the arithmetic/context
// subset described at the top of this file is supported; anything else
// returns an error so the caller can retry with the interpreter.
func (nb *NativeBackend) Compile(fn *Function, layout ContextLayout) (CompiledBlock, error) {
	as := &nativeAsm{blockOffsets: map[*Block]int{}, layout: layout}
	as.frameSize = alignUp(len(fn.Locals)*8, 16)

	as.emitPrologue()
	for _, blk := range fn.Blocks {
		as.blockOffsets[blk] = len(as.buf)
		for _, ins := range blk.Instrs {
			if err := as.emitInstr(ins); err != nil {
				return nil, err
			}
		}
		if !blockHasTerminator(blk) {
			as.emitEpilogue()
		}
	}
	as.applyPatches()

	mem, err := unix.Mmap(-1, 0, len(as.buf), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("backend_native: mmap code: %w", err)
	}
	copy(mem, as.buf)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return nil, fmt.Errorf("backend_native: mprotect rx: %w", err)
	}

	return &nativeBlock{
		entryPC: fn.EntryPC,
		code:    mem,
		entry:   uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
	}, nil
}

func (nb *NativeBackend) Call(block CompiledBlock, ctx unsafe.Pointer) {
	nblk := block.(*nativeBlock)
	callNative(nblk.entry, uintptr(ctx), nb.stackTop)
}

func blockHasTerminator(blk *Block) bool {
	if len(blk.Instrs) == 0 {
		return false
	}
	switch blk.Instrs[len(blk.Instrs)-1].Op {
	case OpBranch, OpBranchCond:
		return true
	}
	return false
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

// --- prologue/epilogue: reserve/release the spill frame under RSP ---

func (as *nativeAsm) emitPrologue() {
	if as.frameSize > 0 {
		as.emitSubRSPImm32(uint32(as.frameSize))
	}
}

func (as *nativeAsm) emitEpilogue() {
	if as.frameSize > 0 {
		as.emitAddRSPImm32(uint32(as.frameSize))
	}
	as.emitByte(0xC3) // RET
}

func (as *nativeAsm) emitSubRSPImm32(imm uint32) {
	as.emitByte(0x48) // REX.W
	as.emitByte(0x81)
	as.emitByte(0xEC) // ModRM: mod=11 reg=/5 rm=RSP
	as.emitU32(imm)
}

func (as *nativeAsm) emitAddRSPImm32(imm uint32) {
	as.emitByte(0x48)
	as.emitByte(0x81)
	as.emitByte(0xC4) // ModRM: mod=11 reg=/0 rm=RSP
	as.emitU32(imm)
}

// --- raw byte emission, in the style of a hand-rolled x86-64 assembler ---

func (as *nativeAsm) emitByte(b byte)     { as.buf = append(as.buf, b) }
func (as *nativeAsm) emitBytes(bs ...byte) { as.buf = append(as.buf, bs...) }
func (as *nativeAsm) emitU32(v uint32) {
	as.emitBytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func rex(w bool, regField, rmField byte) byte {
	r := byte(0)
	if w {
		r |= 0x08
	}
	if regField >= 8 {
		r |= 0x04
	}
	if rmField >= 8 {
		r |= 0x01
	}
	if r == 0 {
		return 0
	}
	return 0x40 | r
}

func modRM(mod, regField, rmField byte) byte {
	return mod<<6 | (regField&7)<<3 | (rmField & 7)
}

// emitRR emits `op reg, rm` in the two-register (mod=11) form, e.g.
// ADD dst, src (0x01), MOV dst, src (0x89) with operands swapped to taste
// by the caller.
func (as *nativeAsm) emitRR(opcode byte, w bool, regField, rmField byte) {
	if r := rex(w, regField, rmField); r != 0 {
		as.emitByte(r)
	}
	as.emitByte(opcode)
	as.emitByte(modRM(3, regField, rmField))
}

// emitRegImm32 emits an ALU op's immediate form (opcode 0x81, /regSlash
// selects the operation) against a register operand.
func (as *nativeAsm) emitRegImm32(regSlash byte, w bool, rmField byte, imm uint32) {
	if r := rex(w, 0, rmField); r != 0 {
		as.emitByte(r)
	}
	as.emitByte(0x81)
	as.emitByte(modRM(3, regSlash, rmField))
	as.emitU32(imm)
}

// emitMovImm emits MOV reg, imm32 (sign/zero-extended per width).
func (as *nativeAsm) emitMovImm(w bool, rmField byte, imm uint32) {
	if r := rex(w, 0, rmField); r != 0 {
		as.emitByte(r)
	}
	as.emitByte(0xC7)
	as.emitByte(modRM(3, 0, rmField))
	as.emitU32(imm)
}

// emitLoadDisp32/emitStoreDisp32 access [baseReg+disp32], used both for
// context fields (base = RDI) and spill slots (base = RSP).
func (as *nativeAsm) emitLoadDisp32(w bool, dst, base byte, disp int32) {
	if r := rex(w, dst, base); r != 0 {
		as.emitByte(r)
	}
	as.emitByte(0x8B)
	as.emitByte(modRM(2, dst, base))
	if base&7 == 4 { // RSP/R12 require a SIB byte even with no indexing
		as.emitByte(0x24)
	}
	as.emitU32(uint32(disp))
}

func (as *nativeAsm) emitStoreDisp32(w bool, base, src byte, disp int32) {
	if r := rex(w, src, base); r != 0 {
		as.emitByte(r)
	}
	as.emitByte(0x89)
	as.emitByte(modRM(2, src, base))
	if base&7 == 4 {
		as.emitByte(0x24)
	}
	as.emitU32(uint32(disp))
}

var compareCC = map[Op]byte{
	OpCmpEQ: 0x4, OpCmpNE: 0x5,
	OpCmpSLT: 0xC, OpCmpSLE: 0xE, OpCmpSGT: 0xF, OpCmpSGE: 0xD,
	OpCmpULT: 0x2, OpCmpULE: 0x6, OpCmpUGT: 0x7, OpCmpUGE: 0x3,
}

func isWide(t ValueType) bool { return t == TypeI64 }

func isSupportedWidth(t ValueType) bool { return t == TypeI32 || t == TypeI64 }

func (as *nativeAsm) emitInstr(ins *Instruction) error {
	switch ins.Op {
	case OpNop, OpLabel:
		return nil
	case OpAdd, OpSub, OpAnd, OpOr, OpXor:
		return as.emitALU(ins)
	case OpLoadContext:
		return as.emitLoadContext(ins)
	case OpStoreContext:
		return as.emitStoreContext(ins)
	case OpLoadLocal:
		return as.emitLoadLocal(ins)
	case OpStoreLocal:
		return as.emitStoreLocal(ins)
	case OpCmpEQ, OpCmpNE, OpCmpSLT, OpCmpSLE, OpCmpSGT, OpCmpSGE,
		OpCmpULT, OpCmpULE, OpCmpUGT, OpCmpUGE:
		return as.emitCompare(ins)
	case OpSelect:
		return as.emitSelect(ins)
	case OpBranch:
		as.emitJmp(ins.Target)
		return nil
	case OpBranchCond:
		return as.emitBranchCond(ins)
	default:
		return fmt.Errorf("backend_native: unsupported op %s", ins.Op)
	}
}

func (as *nativeAsm) moveValueToReg(v *Value, dst byte, w bool) error {
	if v.IsConstant() {
		as.emitMovImm(w, dst, uint32(v.ConstI))
		return nil
	}
	src, err := gprOf(v.Reg)
	if err != nil {
		return err
	}
	if src != dst {
		as.emitRR(0x89, w, src, dst)
	}
	return nil
}

func (as *nativeAsm) emitALU(ins *Instruction) error {
	if !isSupportedWidth(ins.Result.Type) {
		return fmt.Errorf("backend_native: unsupported result width for %s", ins.Op)
	}
	w := isWide(ins.Result.Type)
	dst, err := gprOf(ins.Result.Reg)
	if err != nil {
		return err
	}
	if err := as.moveValueToReg(ins.Arg(0), dst, w); err != nil {
		return err
	}
	opcodes := map[Op]byte{OpAdd: 0x01, OpSub: 0x29, OpAnd: 0x21, OpOr: 0x09, OpXor: 0x31}
	slashes := map[Op]byte{OpAdd: 0, OpSub: 5, OpAnd: 4, OpOr: 1, OpXor: 6}
	rhs := ins.Arg(1)
	if rhs.IsConstant() {
		as.emitRegImm32(slashes[ins.Op], w, dst, uint32(rhs.ConstI))
		return nil
	}
	src, err := gprOf(rhs.Reg)
	if err != nil {
		return err
	}
	as.emitRR(opcodes[ins.Op], w, src, dst)
	return nil
}

func (as *nativeAsm) emitLoadContext(ins *Instruction) error {
	if !isSupportedWidth(ins.Result.Type) {
		return fmt.Errorf("backend_native: unsupported context load width")
	}
	dst, err := gprOf(ins.Result.Reg)
	if err != nil {
		return err
	}
	offset := int32(ins.Arg(0).ConstI)
	as.emitLoadDisp32(isWide(ins.Result.Type), dst, ctxReg, offset)
	return nil
}

func (as *nativeAsm) emitStoreContext(ins *Instruction) error {
	val := ins.Arg(1)
	if !isSupportedWidth(val.Type) {
		return fmt.Errorf("backend_native: unsupported context store width")
	}
	w := isWide(val.Type)
	offset := int32(ins.Arg(0).ConstI)
	if val.IsConstant() {
		// There is no store-immediate-to-memory helper here; materialize
		// the constant in a scratch register (R15, last in nativeGPR)
		// first. R15 is never live across instruction boundaries once
		// ir_regalloc.go has run, since it is one of the 13 allocatable
		// registers and only ever holds this transient value here.
		as.emitMovImm(w, 15, uint32(val.ConstI))
		as.emitStoreDisp32(w, ctxReg, 15, offset)
		return nil
	}
	src, err := gprOf(val.Reg)
	if err != nil {
		return err
	}
	as.emitStoreDisp32(w, ctxReg, src, offset)
	return nil
}

func (as *nativeAsm) emitLoadLocal(ins *Instruction) error {
	if !isSupportedWidth(ins.Result.Type) {
		return fmt.Errorf("backend_native: unsupported local load width")
	}
	dst, err := gprOf(ins.Result.Reg)
	if err != nil {
		return err
	}
	local := ins.Arg(0).Local
	as.emitLoadDisp32(isWide(ins.Result.Type), dst, 4 /*RSP*/, int32(local.ID*8))
	return nil
}

func (as *nativeAsm) emitStoreLocal(ins *Instruction) error {
	val := ins.Arg(1)
	if !isSupportedWidth(val.Type) {
		return fmt.Errorf("backend_native: unsupported local store width")
	}
	src, err := gprOf(val.Reg)
	if err != nil {
		return err
	}
	local := ins.Arg(0).Local
	as.emitStoreDisp32(isWide(val.Type), 4, src, int32(local.ID*8))
	return nil
}

func (as *nativeAsm) emitCompare(ins *Instruction) error {
	lhs, rhs := ins.Arg(0), ins.Arg(1)
	w := isWide(lhs.Type)
	if !isSupportedWidth(lhs.Type) {
		return fmt.Errorf("backend_native: unsupported compare operand width")
	}
	dst, err := gprOf(ins.Result.Reg)
	if err != nil {
		return err
	}
	if err := as.moveValueToReg(lhs, dst, w); err != nil {
		return err
	}
	cmpSlash := byte(7)
	if rhs.IsConstant() {
		as.emitRegImm32(cmpSlash, w, dst, uint32(rhs.ConstI))
	} else {
		src, err := gprOf(rhs.Reg)
		if err != nil {
			return err
		}
		as.emitRR(0x39, w, src, dst)
	}
	cc := compareCC[ins.Op]
	// SETcc dst_low8; any register number needs a REX prefix here even
	// without REX.W, or the encoding addresses AH/BH/CH/DH instead.
	as.emitByte(rex(false, 0, dst) | 0x40)
	as.emitByte(0x0F)
	as.emitByte(0x90 | cc)
	as.emitByte(modRM(3, 0, dst))
	// MOVZX dst, dst_low8 to clear the garbage left in the upper bits.
	if r := rex(false, dst, dst); r != 0 {
		as.emitByte(r)
	}
	as.emitBytes(0x0F, 0xB6, modRM(3, dst, dst))
	return nil
}

func (as *nativeAsm) emitSelect(ins *Instruction) error {
	if !isSupportedWidth(ins.Result.Type) {
		return fmt.Errorf("backend_native: unsupported select width")
	}
	w := isWide(ins.Result.Type)
	dst, err := gprOf(ins.Result.Reg)
	if err != nil {
		return err
	}
	cond := ins.Arg(0)
	condReg, err := gprOf(cond.Reg)
	if err != nil {
		return err
	}
	// TEST the condition register first (dst may share its register, and
	// the MOVs below leave the flags alone), then load the true value into
	// a throwaway slot and the false value into dst, then CMOVNZ. The
	// scratch slot must differ from both dst and condReg, so pick
	// whichever of the reserve candidates isn't already taken.
	as.emitRR(0x85, false, condReg, condReg) // TEST condReg, condReg
	scratch := pickScratch(dst, condReg)
	if err := as.moveValueToReg(ins.Arg(1), scratch, w); err != nil {
		return err
	}
	if err := as.moveValueToReg(ins.Arg(2), dst, w); err != nil {
		return err
	}
	if r := rex(w, dst, scratch); r != 0 {
		as.emitByte(r)
	}
	as.emitBytes(0x0F, 0x45, modRM(3, dst, scratch)) // CMOVNZ dst, scratch
	return nil
}

// pickScratch returns an amd64 register distinct from every register in
// avoid, from the fixed candidate set {R15, R14, R13} - three candidates
// comfortably cover the at-most-two registers a caller ever needs to avoid.
func pickScratch(avoid ...byte) byte {
	for _, c := range []byte{15, 14, 13} {
		taken := false
		for _, a := range avoid {
			if a == c {
				taken = true
				break
			}
		}
		if !taken {
			return c
		}
	}
	return 13
}

func (as *nativeAsm) emitJmp(target *Block) {
	as.emitByte(0xE9)
	as.patches = append(as.patches, patch{pos: len(as.buf), target: target})
	as.emitU32(0)
}

func (as *nativeAsm) emitJnz(target *Block) {
	as.emitBytes(0x0F, 0x85)
	as.patches = append(as.patches, patch{pos: len(as.buf), target: target})
	as.emitU32(0)
}

func (as *nativeAsm) emitBranchCond(ins *Instruction) error {
	cond := ins.Arg(0)
	condReg, err := gprOf(cond.Reg)
	if err != nil {
		return err
	}
	as.emitRR(0x85, false, condReg, condReg) // TEST condReg, condReg
	as.emitJnz(ins.Target)
	as.emitJmp(ins.FalseTarget)
	return nil
}

func (as *nativeAsm) applyPatches() {
	for _, p := range as.patches {
		target := as.blockOffsets[p.target]
		rel := int32(target - (p.pos + 4))
		as.buf[p.pos] = byte(rel)
		as.buf[p.pos+1] = byte(rel >> 8)
		as.buf[p.pos+2] = byte(rel >> 16)
		as.buf[p.pos+3] = byte(rel >> 24)
	}
}
