package dreamcast

import (
	"testing"
	"unsafe"
)

func newTestNativeBackend(t *testing.T) *NativeBackend {
	t.Helper()
	nb, err := NewNativeBackend()
	if err != nil {
		t.Skipf("native backend unavailable on this host: %v", err)
	}
	return nb
}

func TestNativeArithmeticAndContext(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	r1 := b.LoadContext(TypeI32, SH4RegOffset(1))
	sum := b.Add(TypeI32, r1, ConstI32(5))
	b.StoreContext(SH4RegOffset(0), sum)
	if _, err := NewRegisterAllocator(DefaultRegisters()).Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	nb := newTestNativeBackend(t)
	block, err := nb.Compile(fn, ContextLayout{CyclesOffset: SH4CtxCycles})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := NewSH4Context()
	ctx.R[1] = 37
	nb.Call(block, unsafe.Pointer(ctx))

	if ctx.R[0] != 42 {
		t.Fatalf("ctx.R[0] = %d, want 42", ctx.R[0])
	}
}

func TestNativeCompareAndSelect(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	r0 := b.LoadContext(TypeI32, SH4RegOffset(0))
	cond := b.Cmp(OpCmpSGT, r0, ConstI32(10))
	picked := b.Select(TypeI32, cond, ConstI32(111), ConstI32(222))
	b.StoreContext(SH4RegOffset(1), picked)
	if _, err := NewRegisterAllocator(DefaultRegisters()).Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	nb := newTestNativeBackend(t)
	block, err := nb.Compile(fn, ContextLayout{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	big := NewSH4Context()
	big.R[0] = 20
	nb.Call(block, unsafe.Pointer(big))
	if big.R[1] != 111 {
		t.Fatalf("ctx.R[1] = %d, want 111 (r0=20 > 10)", big.R[1])
	}

	small := NewSH4Context()
	small.R[0] = 1
	nb.Call(block, unsafe.Pointer(small))
	if small.R[1] != 222 {
		t.Fatalf("ctx.R[1] = %d, want 222 (r0=1 not > 10)", small.R[1])
	}
}

func TestNativeBranchCondTakesRightTarget(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	taken := fn.NewBlock("taken")
	notTaken := fn.NewBlock("not_taken")

	cond := b.Cmp(OpCmpNE, b.LoadContext(TypeI32, SH4CtxFPUL), ConstI32(0))
	b.BranchCond(cond, taken, notTaken)

	b.Seek(InsertPoint{Block: taken, Index: 0})
	b.StoreContext(SH4RegOffset(0), ConstI32(111))

	b.Seek(InsertPoint{Block: notTaken, Index: 0})
	b.StoreContext(SH4RegOffset(0), ConstI32(222))
	if _, err := NewRegisterAllocator(DefaultRegisters()).Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	nb := newTestNativeBackend(t)
	block, err := nb.Compile(fn, ContextLayout{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := NewSH4Context()
	ctx.FPUL = 1
	nb.Call(block, unsafe.Pointer(ctx))
	if ctx.R[0] != 111 {
		t.Fatalf("expected the taken branch's store, got ctx.R[0]=%d", ctx.R[0])
	}

	ctx2 := NewSH4Context()
	nb.Call(block, unsafe.Pointer(ctx2))
	if ctx2.R[0] != 222 {
		t.Fatalf("expected the not-taken branch's store, got ctx.R[0]=%d", ctx2.R[0])
	}
}

func TestNativeSpillRoundTrip(t *testing.T) {
	fn := regallocChainFn(20)
	regs := []*MachineRegister{
		{Name: "r0", Class: ClassGPR},
		{Name: "r1", Class: ClassGPR},
	}
	ra := NewRegisterAllocator(regs)
	if _, err := ra.Allocate(fn); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	nb := newTestNativeBackend(t)
	block, err := nb.Compile(fn, ContextLayout{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := NewSH4Context()
	nb.Call(block, unsafe.Pointer(ctx))
	if ctx.R[1] != 20 {
		t.Fatalf("ctx.R[1] = %d, want 20 after a 20-deep +1 chain with only 2 registers", ctx.R[1])
	}
}

// TestNativeRejectsGuestMemoryOps confirms a block touching guest memory
// fails Compile cleanly rather than emitting something unsafe - a JIT
// block cache is expected to retry such blocks with the interpreter.
func TestNativeRejectsGuestMemoryOps(t *testing.T) {
	fn := NewFunction(0)
	b := NewBuilder(fn)
	v := b.LoadGuest(TypeI32, ConstI32(MainRAMBase))
	b.StoreContext(SH4RegOffset(0), v)

	nb := newTestNativeBackend(t)
	if _, err := nb.Compile(fn, ContextLayout{}); err == nil {
		t.Fatalf("expected Compile to reject a LOAD_GUEST instruction")
	}
}
