package dreamcast

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseTraceSkipsBlankAndCommentLines(t *testing.T) {
	src := "# header\n\nwrite32 0x0c010000 0x1\nread32 0x0c010000 0x1\n"
	ops, err := ParseTrace(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseTrace: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].Op != "write32" || ops[0].Addr != 0x0c010000 || ops[0].Value != 1 {
		t.Fatalf("ops[0] = %+v", ops[0])
	}
	if ops[1].Op != "read32" || !ops[1].HasVal || ops[1].Value != 1 {
		t.Fatalf("ops[1] = %+v", ops[1])
	}
}

func TestParseTraceRejectsMalformedLine(t *testing.T) {
	if _, err := ParseTrace(strings.NewReader("write32\n")); err == nil {
		t.Fatalf("expected error for line missing an address")
	}
}

func TestReplayDetectsNoDivergenceOnConsistentTrace(t *testing.T) {
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	ops := []TraceOp{
		{Op: "write32", Addr: MainRAMBase, Value: 0xCAFEBABE},
		{Op: "read32", Addr: MainRAMBase, Value: 0xCAFEBABE, HasVal: true},
	}
	if diffs := Replay(mem, NewLogger(SeverityFatal), ops); len(diffs) != 0 {
		t.Fatalf("diffs = %+v, want none", diffs)
	}
}

func TestReplayReportsDivergence(t *testing.T) {
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	ops := []TraceOp{
		{Op: "write32", Addr: MainRAMBase, Value: 0x11111111},
		{Op: "read32", Addr: MainRAMBase, Value: 0x22222222, HasVal: true, Line: 2},
	}
	diffs := Replay(mem, NewLogger(SeverityFatal), ops)
	if len(diffs) != 1 {
		t.Fatalf("diffs = %+v, want 1", diffs)
	}
	if diffs[0].Expected != 0x22222222 || diffs[0].Actual != 0x11111111 {
		t.Fatalf("diffs[0] = %+v", diffs[0])
	}
}

func TestRunTraceReportsSummary(t *testing.T) {
	src := "write8 0x0c000000 0xAB\nread8 0x0c000000 0xAB\n"
	var out bytes.Buffer
	if err := RunTrace(strings.NewReader(src), &out, NewLogger(SeverityFatal)); err != nil {
		t.Fatalf("RunTrace: %v", err)
	}
	if !strings.Contains(out.String(), "no divergences") {
		t.Fatalf("output = %q, want a no-divergences summary", out.String())
	}
}
