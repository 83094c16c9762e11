package dreamcast

import "testing"

// TestIRTextRoundTrip exercises spec.md §8's "IR round-trip" property on
// a small function mixing arithmetic, memory, and control flow.
func TestIRTextRoundTrip(t *testing.T) {
	fn := NewFunction(0x8c010000)
	b := NewBuilder(fn)
	entry := fn.Blocks[0]
	loop := fn.NewBlock("loop")
	done := fn.NewBlock("done")

	addr := b.LoadContext(TypeI32, 0)
	val := b.LoadGuest(TypeI32, addr)
	b.Branch(loop)

	b.Seek(InsertPoint{Block: loop, Index: 0})
	sum := b.Add(TypeI32, val, ConstI32(1))
	cond := b.Cmp(OpCmpEQ, sum, ConstI32(10))
	b.BranchCond(cond, done, loop)

	b.Seek(InsertPoint{Block: done, Index: 0})
	b.StoreContext(4, sum)
	b.SourceInfo(0x8c010000, 4)

	_ = entry

	text := Format(fn)
	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v\n---\n%s", err, text)
	}

	text2 := Format(parsed)
	if text != text2 {
		t.Fatalf("round trip mismatch:\n--- original ---\n%s\n--- reparsed ---\n%s", text, text2)
	}

	if len(parsed.Blocks) != len(fn.Blocks) {
		t.Fatalf("block count mismatch: got %d want %d", len(parsed.Blocks), len(fn.Blocks))
	}
	for i, blk := range parsed.Blocks {
		if blk.Label != fn.Blocks[i].Label {
			t.Fatalf("block %d label mismatch: got %q want %q", i, blk.Label, fn.Blocks[i].Label)
		}
		if len(blk.Instrs) != len(fn.Blocks[i].Instrs) {
			t.Fatalf("block %q instr count mismatch: got %d want %d", blk.Label, len(blk.Instrs), len(fn.Blocks[i].Instrs))
		}
		for j, ins := range blk.Instrs {
			want := fn.Blocks[i].Instrs[j]
			if ins.Op != want.Op {
				t.Fatalf("block %q instr %d op mismatch: got %s want %s", blk.Label, j, ins.Op, want.Op)
			}
			if (ins.Result == nil) != (want.Result == nil) {
				t.Fatalf("block %q instr %d result presence mismatch", blk.Label, j)
			}
			if ins.Result != nil && ins.Result.Type != want.Result.Type {
				t.Fatalf("block %q instr %d result type mismatch: got %s want %s", blk.Label, j, ins.Result.Type, want.Result.Type)
			}
		}
	}
}
