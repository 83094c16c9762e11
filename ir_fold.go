// ir_fold.go - constant folding pass (spec.md §4.5, §8).
//
// Table-driven: the (op, result-type, arg0-type, arg1-type) tuple
// selects a typed folding routine. Division, negation, trig, and
// absolute value are deliberately not folded (original_source/src/jit/ir
// /passes/constant_propagation_pass.cc excludes exactly these for the
// same reason: their host-library implementations may not bit-match the
// guest's, so folding them would diverge from interpretation).
package dreamcast

import "math"

type foldKey struct {
	op         Op
	resultType ValueType
	arg0Type   ValueType
	arg1Type   ValueType // same as arg0Type for unary ops (tryFold copies it)
}

type foldFunc func(args []*Value) *Value

var foldTable map[foldKey]foldFunc

func init() {
	foldTable = map[foldKey]foldFunc{}
	registerIntFold := func(op Op, t ValueType, f func(a, c uint64) uint64) {
		foldTable[foldKey{op, t, t, t}] = func(args []*Value) *Value {
			return &Value{Kind: ValueConstant, Type: t, ConstI: f(args[0].ConstI, args[1].ConstI), Reg: -1}
		}
	}
	registerFloatFold := func(op Op, t ValueType, f func(a, c float64) float64) {
		foldTable[foldKey{op, t, t, t}] = func(args []*Value) *Value {
			return &Value{Kind: ValueConstant, Type: t, ConstF: f(args[0].ConstF, args[1].ConstF), Reg: -1}
		}
	}

	for _, t := range []ValueType{TypeI8, TypeI16, TypeI32, TypeI64} {
		mask := typeMask(t)
		registerIntFold(OpAdd, t, func(a, c uint64) uint64 { return (a + c) & mask })
		registerIntFold(OpSub, t, func(a, c uint64) uint64 { return (a - c) & mask })
		registerIntFold(OpSMul, t, func(a, c uint64) uint64 {
			return uint64(int64(signExtend(a, t)) * int64(signExtend(c, t)) & int64(mask))
		})
		registerIntFold(OpUMul, t, func(a, c uint64) uint64 { return (a * c) & mask })
		registerIntFold(OpAnd, t, func(a, c uint64) uint64 { return a & c & mask })
		registerIntFold(OpOr, t, func(a, c uint64) uint64 { return (a | c) & mask })
		registerIntFold(OpXor, t, func(a, c uint64) uint64 { return (a ^ c) & mask })
		registerIntFold(OpShl, t, func(a, c uint64) uint64 { return (a << (c & 63)) & mask })
		registerIntFold(OpLShr, t, func(a, c uint64) uint64 { return (a & mask) >> (c & 63) })
		registerIntFold(OpAShr, t, func(a, c uint64) uint64 {
			return uint64(signExtend(a, t)>>(c&63)) & mask
		})
		registerIntFold(OpCmpEQ, t, boolFold(func(a, c uint64) bool { return a == c }))
		registerIntFold(OpCmpNE, t, boolFold(func(a, c uint64) bool { return a != c }))
		registerIntFold(OpCmpULT, t, boolFold(func(a, c uint64) bool { return a < c }))
		registerIntFold(OpCmpULE, t, boolFold(func(a, c uint64) bool { return a <= c }))
		registerIntFold(OpCmpUGT, t, boolFold(func(a, c uint64) bool { return a > c }))
		registerIntFold(OpCmpUGE, t, boolFold(func(a, c uint64) bool { return a >= c }))
		registerIntFold(OpCmpSLT, t, func(a, c uint64) uint64 { return boolU(signExtend(a, t) < signExtend(c, t)) })
		registerIntFold(OpCmpSLE, t, func(a, c uint64) uint64 { return boolU(signExtend(a, t) <= signExtend(c, t)) })
		registerIntFold(OpCmpSGT, t, func(a, c uint64) uint64 { return boolU(signExtend(a, t) > signExtend(c, t)) })
		registerIntFold(OpCmpSGE, t, func(a, c uint64) uint64 { return boolU(signExtend(a, t) >= signExtend(c, t)) })
	}

	for _, t := range []ValueType{TypeF32, TypeF64} {
		registerFloatFold(OpAdd, t, func(a, c float64) float64 { return a + c })
		registerFloatFold(OpSub, t, func(a, c float64) float64 { return a - c })
		registerFloatFold(OpSMul, t, func(a, c float64) float64 { return a * c })
	}
	_ = math.MaxInt64
}

func typeMask(t ValueType) uint64 {
	switch t {
	case TypeI8:
		return 0xFF
	case TypeI16:
		return 0xFFFF
	case TypeI32:
		return 0xFFFFFFFF
	default:
		return ^uint64(0)
	}
}

func signExtend(v uint64, t ValueType) int64 {
	switch t {
	case TypeI8:
		return int64(int8(v))
	case TypeI16:
		return int64(int16(v))
	case TypeI32:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func boolU(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func boolFold(f func(a, c uint64) bool) func(a, c uint64) uint64 {
	return func(a, c uint64) uint64 { return boolU(f(a, c)) }
}

// foldable reports whether op is eligible for folding at all; DIV, NEG,
// ABS, SIN, COS, SQRT, and NOT are excluded regardless of operand types.
func foldable(op Op) bool {
	switch op {
	case OpDiv, OpNeg, OpAbs, OpSin, OpCos, OpSqrt, OpNot:
		return false
	default:
		return true
	}
}

// FoldConstants rewrites every instruction whose arguments are all
// constant and whose op is foldable into a plain constant value,
// removing the instruction. Instructions with side effects (stores,
// branches, calls) are never folding candidates since they have no
// Value result.
func FoldConstants(fn *Function) (folded int) {
	for _, blk := range fn.Blocks {
		kept := blk.Instrs[:0]
		for _, ins := range blk.Instrs {
			if ins.Result != nil && foldable(ins.Op) && allConstant(ins) {
				if c := tryFold(ins); c != nil {
					rewriteUsesInPlace(ins.Result, c)
					folded++
					continue
				}
			}
			kept = append(kept, ins)
		}
		blk.Instrs = kept
	}
	return folded
}

func allConstant(ins *Instruction) bool {
	if ins.NumArgs == 0 {
		return false
	}
	for i := 0; i < ins.NumArgs; i++ {
		if !ins.Args[i].IsConstant() {
			return false
		}
	}
	return true
}

func tryFold(ins *Instruction) *Value {
	var a0, a1 ValueType
	a0 = ins.Args[0].Type
	if ins.NumArgs > 1 {
		a1 = ins.Args[1].Type
	} else {
		a1 = a0
	}
	fn, ok := foldTable[foldKey{ins.Op, ins.Result.Type, a0, a1}]
	if !ok {
		return nil
	}
	return fn(ins.Args[:ins.NumArgs])
}

// rewriteUsesInPlace mutates the value object shared by every use site so
// that existing *Value pointers held by downstream instructions now read
// as a constant, without needing to walk the whole function substituting
// pointers.
func rewriteUsesInPlace(v *Value, c *Value) {
	v.Kind = ValueConstant
	v.ConstI = c.ConstI
	v.ConstF = c.ConstF
	v.Def = nil
}
