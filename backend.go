// backend.go - backend contract (spec.md §4.6): compile IR to something
// runnable, then invoke it against a guest CPU context until the context's
// cycle budget is exhausted or a PC-writing instruction hands control back
// to the dispatcher.
package dreamcast

import "unsafe"

// ContextLayout tells a backend where a guest context keeps its
// remaining-cycle counter, since SH4Context and ARM7Context place it at
// different offsets (cpu_context.go).
type ContextLayout struct {
	CyclesOffset uint32
}

// ExternalFunc is a runtime helper a CallExternal instruction invokes
// (e.g. sh4_invalid_instruction, arm7_switch_mode). args/return are raw
// bit patterns, reinterpreted by the caller according to IR type.
type ExternalFunc func(ctx unsafe.Pointer, args []uint64) uint64

// CompiledBlock is the opaque result of Backend.Compile: whatever a
// backend needs to re-invoke the block (the interpreter wraps the
// Function itself; the native backend wraps a pointer into its
// executable region).
type CompiledBlock interface {
	// EntryPC is the guest address this block starts translating from,
	// for diagnostics.
	EntryPC() uint32
}

// Backend lowers IR to something runnable. Two implementations are
// peers, per spec.md §4.6: backend_interpreter.go (portable, used for
// correctness comparison) and backend_native.go (amd64 codegen).
type Backend interface {
	Compile(fn *Function, layout ContextLayout) (CompiledBlock, error)
	Call(block CompiledBlock, ctx unsafe.Pointer)
}
