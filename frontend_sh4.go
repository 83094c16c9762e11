// frontend_sh4.go - SH-4 guest frontend (spec.md §4.4).
//
// Grounded on original_source/src/jit/frontend/sh4/sh4_frontend.c for the
// analyze/translate/idle-loop algorithms and on the published SH-4
// instruction encoding for the opcode subset decoded here. Instructions
// outside this subset decode to a trap op, matching spec.md §7's "invalid
// guest instruction" policy; this mirrors how real incremental JITs grow
// opcode coverage rather than hand-waving full ISA decode up front.
package dreamcast

// sh4Decoded is one decode result: its flags (for block shaping and the
// idle-loop heuristic), its guest cycle cost, and a translator that emits
// its IR.
type sh4Decoded struct {
	flags      instrFlags
	cycles     uint32
	translate  func(fe *SH4Frontend, b *Builder, pc uint32, instr uint16)
	delayPoint bool // whether this op has a delay slot
}

// SH4Frontend implements Frontend for the SH-4.
type SH4Frontend struct{}

func NewSH4Frontend() *SH4Frontend { return &SH4Frontend{} }

func sh4Field(instr uint16, shift, bits uint) uint16 {
	return (instr >> shift) & ((1 << bits) - 1)
}

func sh4SignExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// sh4Decode classifies a 16-bit instruction word, grounded on the
// published SH-4 opcode map for the subset handled by its switch; any
// other word decodes to a trap.
func sh4Decode(instr uint16) sh4Decoded {
	switch {
	case instr == 0x0009: // NOP
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateNop}
	case instr == 0x000B: // RTS
		return sh4Decoded{flags: flagStorePC | flagDelayed, cycles: 2, translate: sh4TranslateRTS, delayPoint: true}
	case instr&0xF0FF == 0x400B: // JSR @Rn
		return sh4Decoded{flags: flagStorePC | flagDelayed, cycles: 2, translate: sh4TranslateJSR, delayPoint: true}
	case instr&0xF0FF == 0x402B: // JMP @Rn
		return sh4Decoded{flags: flagStorePC | flagDelayed, cycles: 2, translate: sh4TranslateJMP, delayPoint: true}
	case instr&0xF000 == 0xA000: // BRA disp12
		return sh4Decoded{flags: flagStorePC | flagDelayed, cycles: 2, translate: sh4TranslateBRA, delayPoint: true}
	case instr&0xF000 == 0xB000: // BSR disp12
		return sh4Decoded{flags: flagStorePC | flagDelayed, cycles: 2, translate: sh4TranslateBSR, delayPoint: true}
	case instr&0xFF00 == 0x8900: // BT disp8 (not delayed)
		return sh4Decoded{flags: flagStorePC | flagCond, cycles: 1, translate: sh4TranslateBT}
	case instr&0xFF00 == 0x8B00: // BF disp8 (not delayed)
		return sh4Decoded{flags: flagStorePC | flagCond, cycles: 1, translate: sh4TranslateBF}
	case instr&0xFF00 == 0x8D00: // BT/S disp8 (delayed)
		return sh4Decoded{flags: flagStorePC | flagCond | flagDelayed, cycles: 1, translate: sh4TranslateBTS, delayPoint: true}
	case instr&0xFF00 == 0x8F00: // BF/S disp8 (delayed)
		return sh4Decoded{flags: flagStorePC | flagCond | flagDelayed, cycles: 1, translate: sh4TranslateBFS, delayPoint: true}
	case instr&0xF00F == 0x6002: // MOV.L @Rm,Rn
		return sh4Decoded{flags: flagLoad, cycles: 1, translate: sh4TranslateMovLoad}
	case instr&0xF00F == 0x6003: // MOV Rm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateMovReg}
	case instr&0xF000 == 0x5000: // MOV.L @(disp,Rm),Rn
		return sh4Decoded{flags: flagLoad, cycles: 1, translate: sh4TranslateMovLoadDisp}
	case instr&0xF000 == 0x1000: // MOV.L Rm,@(disp,Rn)
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateMovStoreDisp}
	case instr&0xF00F == 0x2008: // TST Rm,Rn
		return sh4Decoded{flags: flagCmp, cycles: 1, translate: sh4TranslateTst}
	case instr&0xF00F == 0x3000: // CMP/EQ Rm,Rn
		return sh4Decoded{flags: flagCmp, cycles: 1, translate: sh4TranslateCmpEQ}
	case instr&0xF00F == 0x300C: // ADD Rm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateAdd}
	case instr&0xF000 == 0x7000: // ADD #imm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateAddImm}
	case instr&0xF00F == 0x2009: // AND Rm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateAnd}
	case instr&0xF00F == 0x200B: // OR Rm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateOr}
	case instr&0xF00F == 0x200A: // XOR Rm,Rn
		return sh4Decoded{flags: 0, cycles: 1, translate: sh4TranslateXor}
	case instr&0xF0FF == 0x400E: // LDC Rm,SR
		return sh4Decoded{flags: flagStoreSR, cycles: 4, translate: sh4TranslateLdcSR}
	case instr&0xF0FF == 0x0002: // STC SR,Rn
		return sh4Decoded{flags: 0, cycles: 2, translate: sh4TranslateStcSR}
	default:
		return sh4Decoded{flags: flagStorePC, cycles: 1, translate: sh4TranslateTrap}
	}
}

func (fe *SH4Frontend) AnalyzeCode(guest Guest, pc uint32) uint32 {
	var size uint32
	for {
		instr := guest.Read16(pc + size)
		d := sh4Decode(instr)
		size += 2
		if d.flags&flagDelayed != 0 {
			size += 2 // delay slots never themselves carry another delay slot
		}
		if isTerminator(d.flags) {
			break
		}
	}
	return size
}

func (fe *SH4Frontend) IsIdleLoop(guest Guest, pc uint32) bool {
	idle := true
	var allFlags instrFlags
	offset := uint32(0)

	for {
		addr := pc + offset
		instr := guest.Read16(addr)
		d := sh4Decode(instr)
		offset += 2

		idle = idle && (d.flags&idleMask != 0)
		allFlags |= d.flags

		if d.flags&flagDelayed != 0 {
			delayInstr := guest.Read16(pc + offset)
			dd := sh4Decode(delayInstr)
			offset += 2
			idle = idle && (dd.flags&idleMask != 0)
			allFlags |= dd.flags
		}

		if isTerminator(d.flags) {
			idle = idle && (allFlags&idleMask == idleMask)
			if d.flags&flagStorePC != 0 && d.flags&flagDelayed == 0 {
				// short conditional back edge check (BT/BF disp8, *2 signed)
				disp := sh4SignExtend(uint32(sh4Field(instr, 0, 8)), 8) * 2
				branchAddr := uint32(int32(addr) + 4 + disp)
				idle = idle && (pc-branchAddr) <= 32
			}
			break
		}
	}
	return idle
}

func (fe *SH4Frontend) TranslateCode(guest Guest, pc, size uint32, fn *Function) {
	b := NewBuilder(fn)
	offset := uint32(0)
	var lastFlags instrFlags

	for offset < size {
		addr := pc + offset
		instr := guest.Read16(addr)
		d := sh4Decode(instr)
		lastFlags = d.flags

		b.SourceInfo(addr, d.cycles)
		d.translate(fe, b, addr, instr)
		offset += 2

		if d.flags&flagDelayed != 0 {
			// The builder's cursor now sits just past the branch
			// instruction translate() appended to its originating block;
			// rewind one slot to insert the delay-slot instruction ahead
			// of the control transfer (spec.md §4.4, §9's InsertPoint).
			after := b.Mark()
			delayPoint := InsertPoint{Block: after.Block, Index: after.Index - 1}

			delayAddr := pc + offset
			delayInstr := guest.Read16(delayAddr)
			dd := sh4Decode(delayInstr)

			b.Seek(delayPoint)
			b.SourceInfo(delayAddr, dd.cycles)
			dd.translate(fe, b, delayAddr, delayInstr)
			b.SeekEnd(delayPoint.Block)
			offset += 2
		}
	}

	// Conditional branches here (sh4TranslateCondBranch) already emit an
	// explicit context PC store on both outcomes, unlike the original's
	// implicit-fallthrough model, so only a non-PC-writing terminator
	// (an SR/FPSCR change) needs a trailing branch to the next address.
	if lastFlags&flagStorePC == 0 {
		last := fn.Blocks[len(fn.Blocks)-1]
		next := fn.NewBlock(blockLabelFor(pc + size))
		last.Succs = append(last.Succs, next)
		b.Seek(InsertPoint{Block: last, Index: len(last.Instrs)})
		b.StoreContext(SH4CtxPC, ConstI32(pc+size))
		b.Branch(next)
	}
}

func blockLabelFor(pc uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 10)
	buf[0] = 'L'
	buf[1] = '_'
	for i := 0; i < 8; i++ {
		buf[9-i] = hexDigits[(pc>>(4*i))&0xF]
	}
	return string(buf)
}

// --- per-opcode translators ---

func sh4R(b *Builder, n uint16) *Value { return b.LoadContext(TypeI32, SH4RegOffset(int(n))) }
func sh4SetR(b *Builder, n uint16, v *Value) { b.StoreContext(SH4RegOffset(int(n)), v) }

func sh4TranslateNop(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {}

func sh4TranslateMovLoad(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	addr := sh4R(b, m)
	val := b.LoadGuest(TypeI32, addr)
	sh4SetR(b, n, val)
}

func sh4TranslateMovLoadDisp(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	disp := uint32(sh4Field(instr, 0, 4)) * 4
	addr := b.Add(TypeI32, sh4R(b, m), ConstI32(disp))
	val := b.LoadGuest(TypeI32, addr)
	sh4SetR(b, n, val)
}

func sh4TranslateMovStoreDisp(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	disp := uint32(sh4Field(instr, 0, 4)) * 4
	addr := b.Add(TypeI32, sh4R(b, n), ConstI32(disp))
	b.StoreGuest(addr, sh4R(b, m))
}

func sh4TranslateMovReg(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	sh4SetR(b, n, sh4R(b, m))
}

func sh4TranslateTst(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	and := b.And(TypeI32, sh4R(b, n), sh4R(b, m))
	t := b.Cmp(OpCmpEQ, and, ConstI32(0))
	b.StoreContext(SH4CtxSR, t) // simplified: T bit tracked as whole SR low bit
}

func sh4TranslateCmpEQ(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	t := b.Cmp(OpCmpEQ, sh4R(b, n), sh4R(b, m))
	b.StoreContext(SH4CtxSR, t)
}

func sh4TranslateAdd(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	sum := b.Add(TypeI32, sh4R(b, n), sh4R(b, m))
	sh4SetR(b, n, sum)
}

func sh4TranslateAddImm(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	n := sh4Field(instr, 8, 4)
	imm := uint32(int32(int8(sh4Field(instr, 0, 8))))
	sum := b.Add(TypeI32, sh4R(b, n), ConstI32(imm))
	sh4SetR(b, n, sum)
}

func sh4TranslateAnd(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	sh4SetR(b, n, b.And(TypeI32, sh4R(b, n), sh4R(b, m)))
}

func sh4TranslateOr(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	sh4SetR(b, n, b.Or(TypeI32, sh4R(b, n), sh4R(b, m)))
}

func sh4TranslateXor(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 4, 4)
	n := sh4Field(instr, 8, 4)
	sh4SetR(b, n, b.Xor(TypeI32, sh4R(b, n), sh4R(b, m)))
}

func sh4TranslateLdcSR(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	m := sh4Field(instr, 8, 4)
	b.StoreContext(SH4CtxSR, sh4R(b, m))
}

func sh4TranslateStcSR(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	n := sh4Field(instr, 8, 4)
	sh4SetR(b, n, b.LoadContext(TypeI32, SH4CtxSR))
}

func sh4BranchTarget(pc uint32, instr uint16, bits uint) uint32 {
	disp := sh4SignExtend(uint32(sh4Field(instr, 0, bits)), bits) * 2
	return uint32(int32(pc) + 4 + disp)
}

// sh4TranslateCondBranch emits the shared BT/BF shape: a branch_cond
// between two tail blocks that each store the resolved PC and fall off
// the end of the function, handing control back to the dispatch loop
// (real control transfer to the target/fallthrough block happens via the
// block cache at runtime, not by inlining the other block's IR here).
func sh4TranslateCondBranch(b *Builder, pc uint32, target, fall uint32, takenIsTarget bool) {
	origin := b.Mark().Block
	cond := b.LoadContext(TypeI8, SH4CtxSR)
	takenBlock := b.Fn.NewBlock(blockLabelFor(pc) + "_taken")
	notTakenBlock := b.Fn.NewBlock(blockLabelFor(pc) + "_nottaken")
	b.BranchCond(cond, takenBlock, notTakenBlock)

	b.SeekEnd(takenBlock)
	if takenIsTarget {
		b.StoreContext(SH4CtxPC, ConstI32(target))
	} else {
		b.StoreContext(SH4CtxPC, ConstI32(fall))
	}

	b.SeekEnd(notTakenBlock)
	if takenIsTarget {
		b.StoreContext(SH4CtxPC, ConstI32(fall))
	} else {
		b.StoreContext(SH4CtxPC, ConstI32(target))
	}
	b.SeekEnd(origin)
}

func sh4TranslateBT(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	target := sh4BranchTarget(pc, instr, 8)
	sh4TranslateCondBranch(b, pc, target, pc+2, true)
}

func sh4TranslateBF(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	target := sh4BranchTarget(pc, instr, 8)
	sh4TranslateCondBranch(b, pc, target, pc+2, false)
}

func sh4TranslateBTS(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	sh4TranslateBT(fe, b, pc, instr)
}

func sh4TranslateBFS(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	sh4TranslateBF(fe, b, pc, instr)
}

func sh4TranslateBRA(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	target := sh4BranchTarget(pc, instr, 12)
	b.StoreContext(SH4CtxPC, ConstI32(target))
	b.Branch(b.Fn.NewBlock(blockLabelFor(target)))
}

func sh4TranslateBSR(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	target := sh4BranchTarget(pc, instr, 12)
	b.StoreContext(SH4CtxPR, ConstI32(pc+4))
	b.StoreContext(SH4CtxPC, ConstI32(target))
	b.Branch(b.Fn.NewBlock(blockLabelFor(target)))
}

func sh4TranslateJMP(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	n := sh4Field(instr, 8, 4)
	b.StoreContext(SH4CtxPC, sh4R(b, n))
}

func sh4TranslateJSR(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	n := sh4Field(instr, 8, 4)
	b.StoreContext(SH4CtxPR, ConstI32(pc+4))
	b.StoreContext(SH4CtxPC, sh4R(b, n))
}

func sh4TranslateRTS(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	b.StoreContext(SH4CtxPC, b.LoadContext(TypeI32, SH4CtxPR))
}

func sh4TranslateTrap(fe *SH4Frontend, b *Builder, pc uint32, instr uint16) {
	b.CallExternal("sh4_invalid_instruction", TypeI32, false, ConstI32(pc))
	b.StoreContext(SH4CtxPC, ConstI32(sh4ExceptionVectorGeneralIllegal))
}

// sh4ExceptionVectorGeneralIllegal is the SH-4's general illegal
// instruction exception vector offset (VBR + 0x100, simplified to a flat
// constant since VBR handling is a runtime concern, not a frontend one).
const sh4ExceptionVectorGeneralIllegal = 0x100
