// ir_builder.go - convenience emitters used by guest frontends.
package dreamcast

// Builder emits instructions into a function's "current" block, tracking
// an insertion point that delayed-branch handling can save and restore
// (spec.md §4.4, §9). The cursor is deliberately an explicit value
// (InsertPoint), not a language-level stack frame, per spec.md §9.
type Builder struct {
	Fn  *Function
	at  InsertPoint
}

// InsertPoint names a specific position to insert instructions: before
// instruction index Index in block Block (Index == len(Block.Instrs)
// means "append at the end").
type InsertPoint struct {
	Block *Block
	Index int
}

// NewBuilder starts emitting at the end of the function's last block.
func NewBuilder(fn *Function) *Builder {
	last := fn.Blocks[len(fn.Blocks)-1]
	return &Builder{Fn: fn, at: InsertPoint{Block: last, Index: len(last.Instrs)}}
}

// Mark returns the current insertion point so a terminator emitter can
// later restore it after a delay-slot instruction has been inserted
// ahead of the control transfer (spec.md §4.4).
func (b *Builder) Mark() InsertPoint { return b.at }

// Seek moves the insertion cursor to an explicit point.
func (b *Builder) Seek(p InsertPoint) { b.at = p }

// SeekEnd moves the cursor to just before blk's terminator (its current
// end), used when restoring after a delay-slot emission.
func (b *Builder) SeekEnd(blk *Block) { b.at = InsertPoint{Block: blk, Index: len(blk.Instrs)} }

func (b *Builder) insert(ins *Instruction) *Instruction {
	ins.Block = b.at.Block
	blk := b.at.Block
	if b.at.Index >= len(blk.Instrs) {
		blk.Instrs = append(blk.Instrs, ins)
	} else {
		blk.Instrs = append(blk.Instrs, nil)
		copy(blk.Instrs[b.at.Index+1:], blk.Instrs[b.at.Index:])
		blk.Instrs[b.at.Index] = ins
	}
	b.at.Index++
	return ins
}

func (b *Builder) result(ins *Instruction, t ValueType) *Value {
	v := &Value{Kind: ValueInstrResult, Type: t, Def: ins, Reg: -1}
	ins.Result = v
	return v
}

func (b *Builder) bin(op Op, t ValueType, a, c *Value) *Value {
	ins := &Instruction{Op: op}
	ins.setArg(0, a)
	ins.setArg(1, c)
	b.insert(ins)
	return b.result(ins, t)
}

func (b *Builder) un(op Op, t ValueType, a *Value) *Value {
	ins := &Instruction{Op: op}
	ins.setArg(0, a)
	b.insert(ins)
	return b.result(ins, t)
}

func (b *Builder) Add(t ValueType, a, c *Value) *Value  { return b.bin(OpAdd, t, a, c) }
func (b *Builder) Sub(t ValueType, a, c *Value) *Value  { return b.bin(OpSub, t, a, c) }
func (b *Builder) SMul(t ValueType, a, c *Value) *Value { return b.bin(OpSMul, t, a, c) }
func (b *Builder) UMul(t ValueType, a, c *Value) *Value { return b.bin(OpUMul, t, a, c) }
func (b *Builder) Div(t ValueType, a, c *Value) *Value  { return b.bin(OpDiv, t, a, c) }
func (b *Builder) Neg(t ValueType, a *Value) *Value     { return b.un(OpNeg, t, a) }
func (b *Builder) Abs(t ValueType, a *Value) *Value     { return b.un(OpAbs, t, a) }
func (b *Builder) Sin(t ValueType, a *Value) *Value     { return b.un(OpSin, t, a) }
func (b *Builder) Cos(t ValueType, a *Value) *Value     { return b.un(OpCos, t, a) }
func (b *Builder) Sqrt(t ValueType, a *Value) *Value    { return b.un(OpSqrt, t, a) }

func (b *Builder) And(t ValueType, a, c *Value) *Value  { return b.bin(OpAnd, t, a, c) }
func (b *Builder) Or(t ValueType, a, c *Value) *Value   { return b.bin(OpOr, t, a, c) }
func (b *Builder) Xor(t ValueType, a, c *Value) *Value  { return b.bin(OpXor, t, a, c) }
func (b *Builder) Not(t ValueType, a *Value) *Value     { return b.un(OpNot, t, a) }
func (b *Builder) Shl(t ValueType, a, c *Value) *Value  { return b.bin(OpShl, t, a, c) }
func (b *Builder) LShr(t ValueType, a, c *Value) *Value { return b.bin(OpLShr, t, a, c) }
func (b *Builder) AShr(t ValueType, a, c *Value) *Value { return b.bin(OpAShr, t, a, c) }

func (b *Builder) Cmp(op Op, a, c *Value) *Value { return b.bin(op, TypeI8, a, c) }

func (b *Builder) Select(t ValueType, cond, a, c *Value) *Value {
	ins := &Instruction{Op: OpSelect}
	ins.setArg(0, cond)
	ins.setArg(1, a)
	ins.setArg(2, c)
	b.insert(ins)
	return b.result(ins, t)
}

// LoadGuest/StoreGuest access guest memory through the address space.
func (b *Builder) LoadGuest(t ValueType, addr *Value) *Value { return b.un(OpLoadGuest, t, addr) }
func (b *Builder) StoreGuest(addr, val *Value) {
	ins := &Instruction{Op: OpStoreGuest}
	ins.setArg(0, addr)
	ins.setArg(1, val)
	b.insert(ins)
}

// LoadContext/StoreContext access a field of the CPU context record by
// byte offset (spec.md §3's "CPU contexts").
func (b *Builder) LoadContext(t ValueType, offset uint32) *Value {
	ins := &Instruction{Op: OpLoadContext}
	ins.setArg(0, ConstI32(offset))
	b.insert(ins)
	return b.result(ins, t)
}

func (b *Builder) StoreContext(offset uint32, val *Value) {
	ins := &Instruction{Op: OpStoreContext}
	ins.setArg(0, ConstI32(offset))
	ins.setArg(1, val)
	b.insert(ins)
}

// LoadLocal/StoreLocal access a stack spill slot directly (used by
// frontends rarely; mainly emitted by ir_regalloc.go itself).
func (b *Builder) LoadLocal(t ValueType, l *Local) *Value {
	ins := &Instruction{Op: OpLoadLocal}
	ins.setArg(0, &Value{Kind: ValueLocalRef, Type: t, Local: l, Reg: -1})
	b.insert(ins)
	return b.result(ins, t)
}

func (b *Builder) StoreLocal(l *Local, val *Value) {
	ins := &Instruction{Op: OpStoreLocal}
	ins.setArg(0, &Value{Kind: ValueLocalRef, Type: l.Type, Local: l, Reg: -1})
	ins.setArg(1, val)
	b.insert(ins)
}

// Branch emits an unconditional branch to target.
func (b *Builder) Branch(target *Block) {
	ins := &Instruction{Op: OpBranch, Target: target}
	b.insert(ins)
	b.at.Block.Succs = append(b.at.Block.Succs, target)
}

// BranchCond emits a conditional branch: cond is tested for non-zero,
// taking trueTarget if set, falseTarget otherwise.
func (b *Builder) BranchCond(cond *Value, trueTarget, falseTarget *Block) {
	ins := &Instruction{Op: OpBranchCond, Target: trueTarget, FalseTarget: falseTarget}
	ins.setArg(0, cond)
	b.insert(ins)
	b.at.Block.Succs = append(b.at.Block.Succs, trueTarget, falseTarget)
}

// CallExternal invokes a named runtime helper (e.g. ARM7 bank-switch on
// CPSR mode change) and optionally returns a value of type t.
func (b *Builder) CallExternal(name string, t ValueType, hasResult bool, args ...*Value) *Value {
	ins := &Instruction{Op: OpCallExternal, CallTarget: name}
	for i, a := range args {
		if i >= MaxInstrArgs {
			break
		}
		ins.setArg(i, a)
	}
	b.insert(ins)
	if !hasResult {
		return nil
	}
	return b.result(ins, t)
}

// SourceInfo marks the host code generated from here as corresponding to
// guest PC pc, costing cycles guest cycles (spec.md §4.3).
func (b *Builder) SourceInfo(pc uint32, cycles uint32) {
	ins := &Instruction{Op: OpSourceInfo, SourcePC: pc, CycleCost: cycles}
	b.insert(ins)
}

// Label starts (or marks) a new block as the builder's current position.
func (b *Builder) Label(blk *Block) { b.SeekEnd(blk) }
