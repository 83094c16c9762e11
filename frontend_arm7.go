// frontend_arm7.go - ARMv3 (ARM7DI) guest frontend (spec.md §4.4).
//
// No frontend source for the ARM7 side was retrieved in original_source/
// (only the device-level original_source/src/guest/arm7/arm7.c, which
// covers reset/mode-switch/interrupt glue, already ported into
// cpu_context.go). This file follows frontend_sh4.go's analyze/translate/
// decode shape and the published ARMv3 instruction encoding for the
// decoded subset; MSR-to-CPSR and SWI translate to calls named after
// arm7.c's arm7_switch_mode/arm7_software_interrupt, keeping the same
// external-call boundary the original uses for mode transitions.
package dreamcast

// ARM7 condition codes (bits 31-28 of every instruction word).
const (
	armCondEQ = iota
	armCondNE
	armCondCS
	armCondCC
	armCondMI
	armCondPL
	armCondVS
	armCondVC
	armCondHI
	armCondLS
	armCondGE
	armCondLT
	armCondGT
	armCondLE
	armCondAL
	armCondNV
)

// CPSR condition flag bits.
const (
	armFlagN uint32 = 0x80000000
	armFlagZ uint32 = 0x40000000
	armFlagC uint32 = 0x20000000
	armFlagV uint32 = 0x10000000
)

func armField(instr uint32, shift, bits uint) uint32 {
	return (instr >> shift) & ((1 << bits) - 1)
}

func armSignExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func constI8(v uint32) *Value { return &Value{Kind: ValueConstant, Type: TypeI8, ConstI: uint64(v), Reg: -1} }

// arm7Decoded mirrors sh4Decoded: flags for block shaping, a translator,
// and the instruction's condition field (bits 31-28).
type arm7Decoded struct {
	flags     instrFlags
	cycles    uint32
	cond      uint32
	translate func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32)
}

// ARM7Frontend implements Frontend for the ARM7DI coprocessor.
type ARM7Frontend struct{}

func NewARM7Frontend() *ARM7Frontend { return &ARM7Frontend{} }

// arm7Decode classifies a 32-bit ARM instruction word for the subset
// listed in the package doc comment; anything else decodes to a trap.
func arm7Decode(instr uint32) arm7Decoded {
	cond := armField(instr, 28, 4)

	switch {
	case instr&0x0FBFFFF0 == 0x0129F000: // MSR CPSR, Rm
		return arm7Decoded{flags: flagStoreSR, cycles: 1, cond: cond, translate: arm7TranslateMsrCPSR}
	case instr&0x0F000000 == 0x0F000000: // SWI
		return arm7Decoded{flags: flagStorePC, cycles: 3, cond: cond, translate: arm7TranslateSWI}
	case instr&0x0E000000 == 0x0A000000: // B/BL
		link := instr&0x01000000 != 0
		return arm7Decoded{flags: flagStorePC, cycles: 3, cond: cond, translate: arm7BranchTranslator(link)}
	case instr&0x0C000000 == 0x04000000: // LDR/STR, immediate offset
		load := instr&0x00100000 != 0
		rd := armField(instr, 12, 4)
		flags := instrFlags(0)
		if load {
			flags |= flagLoad
			if rd == 15 {
				flags |= flagStorePC
			}
		}
		return arm7Decoded{flags: flags, cycles: 1, cond: cond, translate: arm7TranslateLoadStore(load)}
	case instr&0x0C000000 == 0x00000000: // data processing
		opcode := armField(instr, 21, 4)
		rd := armField(instr, 12, 4)
		flags := instrFlags(0)
		if rd == 15 && opcode != 8 && opcode != 9 && opcode != 10 && opcode != 11 {
			flags |= flagStorePC // ops that write Rd (not TST/TEQ/CMP/CMN) can retarget PC
		}
		if opcode == 8 || opcode == 9 || opcode == 10 || opcode == 11 {
			flags |= flagCmp
		}
		return arm7Decoded{flags: flags, cycles: 1, cond: cond, translate: arm7DataProcTranslator(opcode)}
	default:
		return arm7Decoded{flags: flagStorePC, cycles: 1, cond: armCondAL, translate: arm7TranslateTrap}
	}
}

// AnalyzeCode ends a block at its first terminator or after 256
// instructions, whichever comes first, so a run of words with no
// terminator (zero-filled memory decodes as ANDEQ) still yields a block.
func (fe *ARM7Frontend) AnalyzeCode(guest Guest, pc uint32) uint32 {
	const maxInstrs = 256
	var size uint32
	for {
		instr := guest.Read32(pc + size)
		d := arm7Decode(instr)
		size += 4
		if isTerminator(d.flags) || size >= maxInstrs*4 {
			break
		}
	}
	return size
}

// IsIdleLoop applies the same shape as the SH-4 heuristic (spec.md
// §4.4): every instruction in the block must be a load, comparison, or
// conditional, and any PC-writing terminator must branch back within 32
// bytes of the block entry.
func (fe *ARM7Frontend) IsIdleLoop(guest Guest, pc uint32) bool {
	idle := true
	var allFlags instrFlags
	offset := uint32(0)

	for {
		addr := pc + offset
		instr := guest.Read32(addr)
		d := arm7Decode(instr)
		offset += 4

		augmented := d.flags
		if d.cond != armCondAL {
			augmented |= flagCond
		}
		idle = idle && (augmented&idleMask != 0)
		allFlags |= augmented

		if isTerminator(d.flags) {
			idle = idle && (allFlags&idleMask == idleMask)
			if d.flags&flagStorePC != 0 && instr&0x0E000000 == 0x0A000000 {
				target := arm7BranchTarget(addr, instr)
				idle = idle && (pc-target) <= 32
			}
			break
		}
	}
	return idle
}

func (fe *ARM7Frontend) TranslateCode(guest Guest, pc, size uint32, fn *Function) {
	b := NewBuilder(fn)
	offset := uint32(0)
	var lastFlags instrFlags

	for offset < size {
		addr := pc + offset
		instr := guest.Read32(addr)
		d := arm7Decode(instr)
		lastFlags = d.flags

		b.SourceInfo(addr, d.cycles)
		d.translate(fe, b, addr, instr)
		offset += 4
	}

	if lastFlags&flagStorePC == 0 {
		last := fn.Blocks[len(fn.Blocks)-1]
		next := fn.NewBlock(blockLabelFor(pc + size))
		last.Succs = append(last.Succs, next)
		b.Seek(InsertPoint{Block: last, Index: len(last.Instrs)})
		b.StoreContext(ARM7RegOffset(15), ConstI32(pc+size))
		b.Branch(next)
	}
}

// --- condition evaluation ---

func arm7FlagBit(b *Builder, cpsr *Value, mask uint32) *Value {
	return b.Cmp(OpCmpNE, b.And(TypeI32, cpsr, ConstI32(mask)), ConstI32(0))
}

// arm7EvalCond builds an I8 0/1 value for instr's condition field,
// following the ARM condition-code truth table.
func arm7EvalCond(b *Builder, cond uint32) *Value {
	cpsr := b.LoadContext(TypeI32, ARM7RegOffset(ARM7RegCPSR))
	n := arm7FlagBit(b, cpsr, armFlagN)
	z := arm7FlagBit(b, cpsr, armFlagZ)
	c := arm7FlagBit(b, cpsr, armFlagC)
	v := arm7FlagBit(b, cpsr, armFlagV)
	notZ := b.Xor(TypeI8, z, constI8(1))
	notC := b.Xor(TypeI8, c, constI8(1))
	notV := b.Xor(TypeI8, v, constI8(1))
	nEqV := b.Cmp(OpCmpEQ, n, v)
	nNeV := b.Cmp(OpCmpNE, n, v)

	switch cond {
	case armCondEQ:
		return z
	case armCondNE:
		return notZ
	case armCondCS:
		return c
	case armCondCC:
		return notC
	case armCondMI:
		return n
	case armCondPL:
		return b.Xor(TypeI8, n, constI8(1))
	case armCondVS:
		return v
	case armCondVC:
		return notV
	case armCondHI:
		return b.And(TypeI8, c, notZ)
	case armCondLS:
		return b.Or(TypeI8, notC, z)
	case armCondGE:
		return nEqV
	case armCondLT:
		return nNeV
	case armCondGT:
		return b.And(TypeI8, notZ, nEqV)
	case armCondLE:
		return b.Or(TypeI8, z, nNeV)
	default: // AL and the reserved NV both fall through to "always" at this call site
		return constI8(1)
	}
}

// --- register helpers ---

func arm7R(b *Builder, n uint32) *Value { return b.LoadContext(TypeI32, ARM7RegOffset(int(n))) }

// arm7SetR writes v into register n, predicated by cond when the
// instruction isn't unconditional (the common AL case skips the guard
// entirely, since the large majority of guest code runs unconditionally).
func arm7SetR(b *Builder, n uint32, v *Value, cond uint32) {
	if cond != armCondAL {
		old := arm7R(b, n)
		v = b.Select(TypeI32, arm7EvalCond(b, cond), v, old)
	}
	b.StoreContext(ARM7RegOffset(int(n)), v)
}

// --- data processing ---

func arm7Operand2(b *Builder, instr uint32) *Value {
	if instr&0x02000000 != 0 { // immediate, 8-bit value rotated right by 2*rotate
		imm := armField(instr, 0, 8)
		rot := armField(instr, 8, 4) * 2
		if rot == 0 {
			return ConstI32(imm)
		}
		return ConstI32((imm >> rot) | (imm << (32 - rot)))
	}
	// register operand2, no shift applied: a documented simplification,
	// matching the scope of the decoded subset described in the package
	// doc comment.
	rm := armField(instr, 0, 4)
	return arm7R(b, rm)
}

func arm7DataProcTranslator(opcode uint32) func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	return func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
		rn := armField(instr, 16, 4)
		rd := armField(instr, 12, 4)
		cond := armField(instr, 28, 4)
		op2 := arm7Operand2(b, instr)

		switch opcode {
		case 0: // AND
			arm7SetR(b, rd, b.And(TypeI32, arm7R(b, rn), op2), cond)
		case 1: // EOR
			arm7SetR(b, rd, b.Xor(TypeI32, arm7R(b, rn), op2), cond)
		case 2: // SUB
			arm7SetR(b, rd, b.Sub(TypeI32, arm7R(b, rn), op2), cond)
		case 3: // RSB
			arm7SetR(b, rd, b.Sub(TypeI32, op2, arm7R(b, rn)), cond)
		case 4: // ADD
			arm7SetR(b, rd, b.Add(TypeI32, arm7R(b, rn), op2), cond)
		case 8, 9, 10, 11: // TST/TEQ/CMP/CMN: flag-setting only, not modeled at this level
		case 12: // ORR
			arm7SetR(b, rd, b.Or(TypeI32, arm7R(b, rn), op2), cond)
		case 13: // MOV
			arm7SetR(b, rd, op2, cond)
		case 14: // BIC
			arm7SetR(b, rd, b.And(TypeI32, arm7R(b, rn), b.Not(TypeI32, op2)), cond)
		case 15: // MVN
			arm7SetR(b, rd, b.Not(TypeI32, op2), cond)
		default:
			arm7TranslateTrap(fe, b, pc, instr)
		}
	}
}

// --- load/store ---

func arm7TranslateLoadStore(load bool) func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	return func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
		rn := armField(instr, 16, 4)
		rd := armField(instr, 12, 4)
		cond := armField(instr, 28, 4)
		offset := ConstI32(armField(instr, 0, 12))
		up := instr&0x00800000 != 0

		base := arm7R(b, rn)
		var addr *Value
		if up {
			addr = b.Add(TypeI32, base, offset)
		} else {
			addr = b.Sub(TypeI32, base, offset)
		}

		if load {
			arm7SetR(b, rd, b.LoadGuest(TypeI32, addr), cond)
		} else {
			b.StoreGuest(addr, arm7R(b, rd))
		}
	}
}

// --- branches ---

func arm7BranchTarget(pc uint32, instr uint32) uint32 {
	disp := armSignExtend(armField(instr, 0, 24), 24) * 4
	return uint32(int32(pc) + 8 + disp) // ARM PC reads 8 ahead of the executing instruction
}

func arm7BranchTranslator(link bool) func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	return func(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
		target := arm7BranchTarget(pc, instr)
		cond := armField(instr, 28, 4)

		if link {
			arm7SetR(b, 14, ConstI32(pc+4), armCondAL)
		}
		if cond == armCondAL {
			b.StoreContext(ARM7RegOffset(15), ConstI32(target))
			return
		}
		taken := arm7EvalCond(b, cond)
		result := b.Select(TypeI32, taken, ConstI32(target), ConstI32(pc+4))
		b.StoreContext(ARM7RegOffset(15), result)
	}
}

// --- SWI / MSR ---

func arm7TranslateSWI(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	b.CallExternal("arm7_software_interrupt", TypeI32, false, ConstI32(pc))
}

func arm7TranslateMsrCPSR(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	rm := armField(instr, 0, 4)
	b.CallExternal("arm7_switch_mode", TypeI32, false, arm7R(b, rm))
}

func arm7TranslateTrap(fe *ARM7Frontend, b *Builder, pc uint32, instr uint32) {
	b.CallExternal("arm7_invalid_instruction", TypeI32, false, ConstI32(pc))
	b.StoreContext(ARM7RegOffset(15), ConstI32(pc+4))
}
