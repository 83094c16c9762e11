package dreamcast

import "testing"

// regallocChainFn builds a straight-line function of N additions of a
// constant 1 to r0, all kept live until a final chain sums them into
// r1, so N+1 values are simultaneously live at the widest point. With
// r0 = 0 the stored result is N.
func regallocChainFn(n int) *Function {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	base := b.LoadContext(TypeI32, SH4RegOffset(0))
	vals := make([]*Value, n)
	for i := range vals {
		vals[i] = b.Add(TypeI32, base, ConstI32(1))
	}
	sum := vals[0]
	for _, v := range vals[1:] {
		sum = b.Add(TypeI32, sum, v)
	}
	b.StoreContext(SH4RegOffset(1), sum)
	return fn
}

// TestRegAllocSafety checks the core safety property of spec.md §8: no
// two simultaneously-live temporaries are ever assigned the same
// physical register, for a function with more live ranges than
// registers (forcing spills).
func TestRegAllocSafety(t *testing.T) {
	fn := regallocChainFn(50)
	regs := []*MachineRegister{
		{Name: "r0", Class: ClassGPR},
		{Name: "r1", Class: ClassGPR},
		{Name: "r2", Class: ClassGPR},
	}
	ra := NewRegisterAllocator(regs)
	stats, err := ra.Allocate(fn)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if stats.GPRSpills == 0 {
		t.Fatalf("expected spills with only %d registers for a 50-deep chain", len(regs))
	}

	// Allocating the already-allocated function again (now carrying
	// spill stores and fills) must also succeed.
	ra2 := NewRegisterAllocator(regs)
	if _, err := ra2.Allocate(fn); err != nil {
		t.Fatalf("re-allocate of already-allocated fn: %v", err)
	}
}

// TestRegAllocOptimalityBound verifies spec.md §8's smoke-level
// optimality bound: a straight-line function whose live-value count
// never exceeds the register budget allocates with zero spills.
func TestRegAllocOptimalityBound(t *testing.T) {
	fn := regallocChainFn(5)
	regs := DefaultRegisters()
	ra := NewRegisterAllocator(regs)
	stats, err := ra.Allocate(fn)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if stats.GPRSpills != 0 || stats.FPRSpills != 0 {
		t.Fatalf("expected zero spills with %d GPRs for a 5-deep chain, got %+v", DefaultGPRCount, stats)
	}
}

// TestRegAllocSpillRoundTrip checks that a spilled-and-refilled value
// still reaches its final consumer: after allocation, the function's
// last instruction (STORE_CTX) must read either the original result or
// a LOAD_LOCAL-produced value of the same type, never a dangling
// reference.
func TestRegAllocSpillRoundTrip(t *testing.T) {
	fn := regallocChainFn(20)
	regs := []*MachineRegister{
		{Name: "r0", Class: ClassGPR},
		{Name: "r1", Class: ClassGPR},
	}
	ra := NewRegisterAllocator(regs)
	if _, err := ra.Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	var storeCtx *Instruction
	for _, blk := range fn.Blocks {
		for _, ins := range blk.Instrs {
			if ins.Op == OpStoreContext {
				storeCtx = ins
			}
		}
	}
	if storeCtx == nil {
		t.Fatalf("STORE_CTX instruction missing after allocation")
	}
	val := storeCtx.Arg(1)
	if val == nil {
		t.Fatalf("STORE_CTX has no value argument")
	}
	if val.Type != TypeI32 {
		t.Fatalf("STORE_CTX value type = %s, want i32", val.Type)
	}

	loadLocals := 0
	storeLocals := 0
	for _, blk := range fn.Blocks {
		for _, ins := range blk.Instrs {
			switch ins.Op {
			case OpLoadLocal:
				loadLocals++
			case OpStoreLocal:
				storeLocals++
			}
		}
	}
	if loadLocals == 0 || storeLocals == 0 {
		t.Fatalf("expected spill fills/stores to have been inserted with only 2 registers, got loads=%d stores=%d", loadLocals, storeLocals)
	}
	if loadLocals != storeLocals {
		t.Fatalf("unbalanced spill traffic: %d stores vs %d loads", storeLocals, loadLocals)
	}
}

// TestRegAllocReuseArgBin verifies the result-reuse shortcut: when an
// instruction's first argument has no further uses after this point,
// the result is allocated into that argument's own bin rather than a
// fresh one, per spec.md §4.5.
func TestRegAllocReuseArgBin(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	a := b.LoadContext(TypeI32, 0)
	sum := b.Add(TypeI32, a, ConstI32(1)) // a has no use after this instruction
	b.StoreContext(4, sum)

	regs := DefaultRegisters()
	ra := NewRegisterAllocator(regs)
	if _, err := ra.Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ra.stats.GPRSpills != 0 {
		t.Fatalf("unexpected spill for a 2-value function with %d registers", DefaultGPRCount)
	}
	if a.Reg < 0 || sum.Reg < 0 {
		t.Fatalf("expected both values to carry an assigned register, got a.Reg=%d sum.Reg=%d", a.Reg, sum.Reg)
	}
	if a.Reg != sum.Reg {
		t.Fatalf("expected sum to reuse a's bin (a.Reg=%d, sum.Reg=%d)", a.Reg, sum.Reg)
	}
	if ra.Registers()[sum.Reg].Class != ClassGPR {
		t.Fatalf("sum's assigned register is not a GPR")
	}
}

// TestRegAllocDiamondCFG exercises the push/pop per-successor state
// discipline across a branch with two independent successors, each of
// which must start allocation from the same state as the predecessor
// left it, not from whatever the other successor did.
func TestRegAllocDiamondCFG(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	left := fn.NewBlock("left")
	right := fn.NewBlock("right")
	join := fn.NewBlock("join")

	v := b.LoadContext(TypeI32, 0)
	cond := b.Cmp(OpCmpEQ, v, ConstI32(0))
	b.BranchCond(cond, left, right)

	b.Seek(InsertPoint{Block: left, Index: 0})
	lv := b.Add(TypeI32, v, ConstI32(1))
	b.StoreContext(4, lv)
	b.Branch(join)

	b.Seek(InsertPoint{Block: right, Index: 0})
	rv := b.Add(TypeI32, v, ConstI32(2))
	b.StoreContext(8, rv)
	b.Branch(join)

	b.Seek(InsertPoint{Block: join, Index: 0})
	b.StoreContext(12, v)

	regs := DefaultRegisters()
	ra := NewRegisterAllocator(regs)
	if _, err := ra.Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
}
