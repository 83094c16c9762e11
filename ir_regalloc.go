// ir_regalloc.go - second-chance binpacking register allocator
// (spec.md §4.5, the principal IR pass).
//
// Grounded directly on original_source/src/jit/passes/
// register_allocation_pass.c: bins represent machine registers, each
// holding at most one temporary; temporaries track a current location
// (register or spill slot) over their lifetime; allocation proceeds
// instruction-by-instruction with an expire/rewrite/allocate sequence,
// recursing over the control-flow graph as an extended basic block tree
// (each block visited once; the allocator state is pushed before
// descending into each successor and popped on return, giving per-path
// allocation without join reconciliation).
package dreamcast

import "fmt"

// RegClass groups machine registers by the value types they can hold.
type RegClass int

const (
	ClassGPR RegClass = iota
	ClassFPR
)

// MachineRegister names one physical register slot available to the
// allocator.
type MachineRegister struct {
	Name  string
	Class RegClass
}

func (r *MachineRegister) accepts(t ValueType) bool {
	switch t {
	case TypeF32, TypeF64, TypeV128:
		return r.Class == ClassFPR
	default:
		return r.Class == ClassGPR
	}
}

// DefaultGPRCount/DefaultFPRCount mirror a typical amd64 allocation
// budget: enough GPRs to leave a couple of scratch registers for the
// native backend's call sequences, and the full xmm bank for FPR/V128.
const (
	DefaultGPRCount = 13
	DefaultFPRCount = 16
)

// DefaultRegisters builds the standard GPR+FPR register file used when a
// caller does not supply its own (tests may shrink this to exercise
// spilling deterministically).
func DefaultRegisters() []*MachineRegister {
	regs := make([]*MachineRegister, 0, DefaultGPRCount+DefaultFPRCount)
	for i := 0; i < DefaultGPRCount; i++ {
		regs = append(regs, &MachineRegister{Name: fmt.Sprintf("r%d", i), Class: ClassGPR})
	}
	for i := 0; i < DefaultFPRCount; i++ {
		regs = append(regs, &MachineRegister{Name: fmt.Sprintf("f%d", i), Class: ClassFPR})
	}
	return regs
}

// SpillStats records GPR/FPR spill counts for diagnostics (spec.md §4.5).
type SpillStats struct {
	GPRSpills int
	FPRSpills int
}

type bin struct {
	reg *MachineRegister
	tmp *temp
}

// temp is a register-allocation candidate corresponding to one original
// instruction result. uses holds every ordinal (in the original,
// unmodified IR) at which the value defined by defInstr is read.
type temp struct {
	defInstr   *Instruction
	defBlock   *Block
	uses       []int
	nextUseIdx int
	resident   *Value // current Value identity living in a bin; nil if spilled
	slot       *Local // non-nil once this temp has been spilled at least once
}

func (t *temp) nextUse() (int, bool) {
	if t.nextUseIdx >= len(t.uses) {
		return 0, false
	}
	return t.uses[t.nextUseIdx], true
}

// allocState is the per-path snapshot pushed/popped at block boundaries.
type allocState struct {
	bins []bin
}

func (s *allocState) clone() *allocState {
	c := &allocState{bins: make([]bin, len(s.bins))}
	copy(c.bins, s.bins)
	return c
}

// RegisterAllocator runs the second-chance binpacking pass over a
// Function. Create one per function with NewRegisterAllocator.
type RegisterAllocator struct {
	regs    []*MachineRegister
	fn      *Function
	byValue map[*Value]*temp
	state   *allocState
	stats   SpillStats
	visited map[*Block]bool
}

// NewRegisterAllocator constructs an allocator over regs (use
// DefaultRegisters() unless a test wants a constrained register file).
func NewRegisterAllocator(regs []*MachineRegister) *RegisterAllocator {
	return &RegisterAllocator{regs: regs}
}

// Registers returns the register file this allocator was constructed
// with, so a backend can map a Value's post-allocation Reg index back to
// a concrete machine register.
func (ra *RegisterAllocator) Registers() []*MachineRegister { return ra.regs }

// Allocate assigns every instruction result in fn a machine register or
// spill slot, mutating fn in place (inserting load_local/store_local
// instructions as needed) and returns spill statistics.
func (ra *RegisterAllocator) Allocate(fn *Function) (SpillStats, error) {
	ra.fn = fn
	ra.byValue = map[*Value]*temp{}
	ra.visited = map[*Block]bool{}
	ra.stats = SpillStats{}

	assignOrdinals(fn)
	uses := computeUses(fn)

	ra.state = &allocState{bins: make([]bin, len(ra.regs))}
	for i, r := range ra.regs {
		ra.state.bins[i].reg = r
	}

	if len(fn.Blocks) == 0 {
		return ra.stats, nil
	}
	if err := ra.visit(fn.Blocks[0], uses); err != nil {
		return ra.stats, err
	}
	return ra.stats, nil
}

// assignOrdinals assigns every instruction an ordinal in block-slice
// order (an extended-basic-block DFS over the CFG, see the package doc
// comment), spaced MAX_INSTR_ARGS+1 apart so inserted fills can take
// sub-ordinals without renumbering the rest of the function.
func assignOrdinals(fn *Function) {
	ordinal := 0
	for _, blk := range fn.Blocks {
		for _, ins := range blk.Instrs {
			ins.Ordinal = ordinal
			ordinal += MaxInstrArgs + 1
		}
	}
}

// computeUses scans the original, unmodified IR and builds, for every
// value produced by some instruction, the ascending list of ordinals at
// which it is used as an argument.
func computeUses(fn *Function) map[*Value][]int {
	uses := map[*Value][]int{}
	for _, blk := range fn.Blocks {
		for _, ins := range blk.Instrs {
			for i := 0; i < ins.NumArgs; i++ {
				a := ins.Args[i]
				if a == nil || a.IsConstant() {
					continue
				}
				uses[a] = append(uses[a], ins.Ordinal)
			}
		}
	}
	return uses
}

// visit processes one block's instructions against the current state,
// then recurses into each not-yet-visited successor with a pushed copy
// of the resulting state, popping afterward so siblings start from the
// same input.
func (ra *RegisterAllocator) visit(blk *Block, uses map[*Value][]int) error {
	if ra.visited[blk] {
		return nil
	}
	ra.visited[blk] = true

	for idx := 0; idx < len(blk.Instrs); idx++ {
		ins := blk.Instrs[idx]
		if err := ra.step(blk, ins, uses); err != nil {
			return err
		}
	}

	for _, succ := range blk.Succs {
		if ra.visited[succ] {
			continue
		}
		saved := ra.state
		ra.state = saved.clone()
		if err := ra.visit(succ, uses); err != nil {
			ra.state = saved
			return err
		}
		ra.state = saved
	}
	return nil
}

func (ra *RegisterAllocator) expire(ordinal int) {
	for i := range ra.state.bins {
		b := &ra.state.bins[i]
		if b.tmp == nil {
			continue
		}
		if ord, ok := b.tmp.nextUse(); !ok || ord < ordinal {
			b.tmp = nil
		}
	}
}

func (ra *RegisterAllocator) binOf(t *temp) *bin {
	for i := range ra.state.bins {
		if ra.state.bins[i].tmp == t {
			return &ra.state.bins[i]
		}
	}
	return nil
}

func (ra *RegisterAllocator) freeBin(class RegClass) *bin {
	for i := range ra.state.bins {
		b := &ra.state.bins[i]
		if b.tmp == nil && b.reg.Class == class {
			return b
		}
	}
	return nil
}

func classFor(t ValueType) RegClass {
	switch t {
	case TypeF32, TypeF64, TypeV128:
		return ClassFPR
	default:
		return ClassGPR
	}
}

// step runs the three-phase per-instruction procedure of spec.md §4.5:
// expire, rewrite arguments, allocate for result.
func (ra *RegisterAllocator) step(blk *Block, ins *Instruction, uses map[*Value][]int) error {
	ra.expire(ins.Ordinal)

	for i := 0; i < ins.NumArgs; i++ {
		a := ins.Args[i]
		if a == nil || a.IsConstant() || a.Kind == ValueLocalRef {
			continue
		}
		t := ra.byValue[a]
		if t == nil {
			// Argument references a value with no recorded temp (e.g.
			// a context/global read materialized elsewhere); nothing to
			// rewrite.
			continue
		}
		if t.resident != nil {
			ins.Args[i] = t.resident
		} else {
			filled := ra.fill(blk, ins, t)
			ins.Args[i] = filled
		}
		ra.consumeUse(t, ins.Ordinal)
	}

	if ins.Result == nil {
		return nil
	}

	t := &temp{defInstr: ins, defBlock: blk, uses: uses[ins.Result]}
	ra.byValue[ins.Result] = t

	if b := ra.tryReuse(ins); b != nil {
		b.tmp = t
		t.resident = ins.Result
		t.resident.Reg = ra.regIndex(b)
		return nil
	}
	if b := ra.freeBin(classFor(ins.Result.Type)); b != nil {
		b.tmp = t
		t.resident = ins.Result
		t.resident.Reg = ra.regIndex(b)
		return nil
	}
	return ra.spillAndOccupy(blk, ins, t)
}

// consumeUse advances nextUseIdx past the use just rewritten at ordinal.
func (ra *RegisterAllocator) consumeUse(t *temp, ordinal int) {
	for t.nextUseIdx < len(t.uses) && t.uses[t.nextUseIdx] <= ordinal {
		t.nextUseIdx++
	}
}

// fill inserts a load_local immediately before ins for a spilled
// temporary and allocates a bin for the resulting value, which becomes
// the temp's new resident identity.
func (ra *RegisterAllocator) fill(blk *Block, before *Instruction, t *temp) *Value {
	loadIns := &Instruction{Op: OpLoadLocal}
	loadIns.setArg(0, &Value{Kind: ValueLocalRef, Type: t.slot.Type, Local: t.slot, Reg: -1})
	filled := &Value{Kind: ValueInstrResult, Type: t.slot.Type, Reg: -1}
	loadIns.Result = filled
	loadIns.Ordinal = before.Ordinal - 1 // sub-ordinal, strictly precedes `before`
	insertBefore(blk, before, loadIns)

	filled.Def = loadIns
	t.resident = filled
	ra.byValue[filled] = t

	if b := ra.tryReuseForFill(loadIns); b != nil {
		b.tmp = t
		filled.Reg = ra.regIndex(b)
		return filled
	}
	if b := ra.freeBin(classFor(filled.Type)); b != nil {
		b.tmp = t
		filled.Reg = ra.regIndex(b)
		return filled
	}
	ra.spillAndOccupy(blk, loadIns, t) //nolint:errcheck // fill allocation cannot itself fail meaningfully here
	return filled
}

func (ra *RegisterAllocator) tryReuse(ins *Instruction) *bin {
	if ins.NumArgs == 0 {
		return nil
	}
	a0 := ins.Args[0]
	if a0 == nil || a0.IsConstant() || a0.Kind == ValueLocalRef {
		return nil
	}
	t0 := ra.byValue[a0]
	if t0 == nil || t0.resident == nil {
		return nil
	}
	if _, hasMore := t0.nextUse(); hasMore {
		return nil
	}
	b := ra.binOf(t0)
	if b == nil || !b.reg.accepts(ins.Result.Type) {
		return nil
	}
	return b
}

func (ra *RegisterAllocator) tryReuseForFill(loadIns *Instruction) *bin {
	return nil // load_local has one local-ref argument, never a reusable register operand
}

// spillAndOccupy picks the resident of a matching-class bin whose next
// use is furthest in the future (or has none), stores it to a fresh
// slot immediately after its defining instruction, then occupies the
// freed bin with t.
func (ra *RegisterAllocator) spillAndOccupy(blk *Block, ins *Instruction, t *temp) error {
	class := classFor(ins.Result.Type)
	var victim *bin
	furthest := -1
	for i := range ra.state.bins {
		b := &ra.state.bins[i]
		if b.reg.Class != class || b.tmp == nil {
			continue
		}
		ord, ok := b.tmp.nextUse()
		if !ok {
			victim = b
			break
		}
		if ord > furthest {
			furthest = ord
			victim = b
		}
	}
	if victim == nil {
		return fmt.Errorf("ir regalloc: no %v register available to spill for result of %s at ordinal %d", class, ins.Op, ins.Ordinal)
	}

	resident := victim.tmp
	slot := ra.fn.NewLocal(resident.resident.Type)
	resident.slot = slot

	storeIns := &Instruction{Op: OpStoreLocal}
	storeIns.setArg(0, &Value{Kind: ValueLocalRef, Type: slot.Type, Local: slot, Reg: -1})
	storeIns.setArg(1, resident.resident)
	insertAfter(resident.defBlock, resident.defInstr, storeIns)

	resident.resident = nil

	if class == ClassGPR {
		ra.stats.GPRSpills++
	} else {
		ra.stats.FPRSpills++
	}

	victim.tmp = t
	t.resident = ins.Result
	t.resident.Reg = ra.regIndex(victim)
	return nil
}

// regIndex returns b's position in ra.regs, the stable machine-register
// index every allocState clone preserves (bins are cloned in place, never
// reordered), for stamping onto a resident Value's Reg field.
func (ra *RegisterAllocator) regIndex(b *bin) int {
	for i := range ra.state.bins {
		if &ra.state.bins[i] == b {
			return i
		}
	}
	return -1
}

func insertAfter(blk *Block, after *Instruction, ins *Instruction) {
	for i, x := range blk.Instrs {
		if x == after {
			blk.Instrs = append(blk.Instrs, nil)
			copy(blk.Instrs[i+2:], blk.Instrs[i+1:])
			blk.Instrs[i+1] = ins
			return
		}
	}
	blk.Instrs = append(blk.Instrs, ins)
}

func insertBefore(blk *Block, before *Instruction, ins *Instruction) {
	for i, x := range blk.Instrs {
		if x == before {
			blk.Instrs = append(blk.Instrs, nil)
			copy(blk.Instrs[i+1:], blk.Instrs[i:])
			blk.Instrs[i] = ins
			return
		}
	}
	blk.Instrs = append([]*Instruction{ins}, blk.Instrs...)
}
