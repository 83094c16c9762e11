package dreamcast

import "testing"

func foldBin(t *testing.T, op Op, typ ValueType, a, c *Value) *Value {
	t.Helper()
	fn := NewFunction(0)
	b := NewBuilder(fn)
	v := b.bin(op, typ, a, c)
	FoldConstants(fn)
	if n := len(fn.Blocks[0].Instrs); n != 0 {
		t.Fatalf("expected the folded instruction to be removed, got %d instrs", n)
	}
	if !v.IsConstant() {
		t.Fatalf("expected the result to be rewritten into a constant")
	}
	return v
}

// TestFoldIntegerOverflowWrapping checks ADD/SUB wrap at the result's
// bit width, per spec.md §8 (SMUL is covered by TestFoldSignedMulOverflow).
func TestFoldIntegerOverflowWrapping(t *testing.T) {
	v := foldBin(t, OpAdd, TypeI32, ConstI32(0xFFFFFFFF), ConstI32(2))
	if v.ConstI != 1 {
		t.Fatalf("ADD i32 overflow: got 0x%X want 0x1", v.ConstI)
	}
	v = foldBin(t, OpSub, TypeI32, ConstI32(0), ConstI32(1))
	if v.ConstI != 0xFFFFFFFF {
		t.Fatalf("SUB i32 underflow: got 0x%X want 0xFFFFFFFF", v.ConstI)
	}
}

func TestFoldSubWrap8(t *testing.T) {
	a := &Value{Kind: ValueConstant, Type: TypeI8, ConstI: 0, Reg: -1}
	c := &Value{Kind: ValueConstant, Type: TypeI8, ConstI: 1, Reg: -1}
	v := foldBin(t, OpSub, TypeI8, a, c)
	if v.ConstI != 0xFF {
		t.Fatalf("SUB i8 underflow: got 0x%X want 0xFF", v.ConstI)
	}
}

func TestFoldSignedMulOverflow(t *testing.T) {
	a := &Value{Kind: ValueConstant, Type: TypeI32, ConstI: 0xFFFFFFFF, Reg: -1}
	c := &Value{Kind: ValueConstant, Type: TypeI32, ConstI: 2, Reg: -1}
	v := foldBin(t, OpSMul, TypeI32, a, c)
	if int32(v.ConstI) != -2 {
		t.Fatalf("SMUL: got %d want -2", int32(v.ConstI))
	}
}

func TestFoldUnsignedWideningMul(t *testing.T) {
	a := &Value{Kind: ValueConstant, Type: TypeI32, ConstI: 0xFFFFFFFF, Reg: -1}
	c := &Value{Kind: ValueConstant, Type: TypeI32, ConstI: 2, Reg: -1}
	v := foldBin(t, OpUMul, TypeI32, a, c)
	want := (uint64(0xFFFFFFFF) * 2) & 0xFFFFFFFF
	if v.ConstI != want {
		t.Fatalf("UMUL: got 0x%X want 0x%X", v.ConstI, want)
	}
}

func TestFoldLogicalShiftRight(t *testing.T) {
	a := &Value{Kind: ValueConstant, Type: TypeI32, ConstI: 0x80000000, Reg: -1}
	c := ConstI32(4)
	v := foldBin(t, OpLShr, TypeI32, a, c)
	if v.ConstI != 0x08000000 {
		t.Fatalf("LSHR: got 0x%X want 0x08000000", v.ConstI)
	}
}

// TestFoldExcludesDivNegAbsTrig verifies DIV/NEG/ABS/SIN/COS are never
// folded, per spec.md §4.5 and §8.
func TestFoldExcludesDivNegAbsTrig(t *testing.T) {
	for _, op := range []Op{OpDiv, OpNeg, OpAbs, OpSin, OpCos} {
		if foldable(op) {
			t.Fatalf("op %s must not be marked foldable", op)
		}
	}

	fn := NewFunction(0)
	b := NewBuilder(fn)
	b.bin(OpDiv, TypeI32, ConstI32(10), ConstI32(2))
	FoldConstants(fn)
	if len(fn.Blocks[0].Instrs) != 1 {
		t.Fatalf("DIV must survive folding unchanged")
	}
}
