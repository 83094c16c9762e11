// dreamcast.go - top-level machine wiring and the JIT dispatcher loop
// (spec.md §2, §5: "a host 'core' thread drives dc_tick(ns)").
//
// Grounded on original_source/src/emu/emulator.c and dreamcast.h for the
// device set a machine owns and the order it's reset/ticked in, and on
// scheduler.go's own Device contract for how a CPU core is expected to
// behave inside one Tick: "Run is handed a cycle budget and returns how
// many cycles it actually consumed". jitCore is the piece neither
// frontend.go, backend.go nor jit_block_cache.go owns on their own: the
// lookup/compile/cache/call loop that ties a Frontend, a Backend and a
// BlockCache to one guest context and turns the whole assembly into one
// Device.
package dreamcast

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/intuitionamiga/dreamcast/renderbackend"
)

// Published Dreamcast clock rates: SH-4 at 200 MHz, the AICA's ARM7DI
// coprocessor at 22.5792 MHz (half the AICA's 45.1584 MHz master clock).
const (
	SH4ClockHz  uint64 = 200_000_000
	ARM7ClockHz uint64 = 22_579_200
)

// jitCore drives one guest CPU's fetch/translate/cache/execute loop and
// satisfies scheduler.go's Device interface. The per-context field
// access (PC, specialization mask, remaining-cycle budget) is bound at
// construction time through closures rather than a shared interface on
// cpu_context.go, since SH4Context keeps PC as a direct field while
// ARM7Context keeps it at R[15] - the two contexts otherwise have
// nothing in common worth a new abstraction over.
type jitCore struct {
	name    string
	clockHz uint64
	mem     *AddressSpace
	log     *Logger

	frontend    Frontend
	interpreter *Interpreter
	native      Backend // nil where no native backend is available for this arch
	layout      ContextLayout
	cache       *BlockCache

	ctxPtr unsafe.Pointer

	pc              func() uint32
	setPC           func(uint32)
	specialization  func() uint32
	remaining       func() int32
	setRemaining    func(int32)
	checkInterrupts func()
}

func (c *jitCore) Name() string    { return c.name }
func (c *jitCore) ClockHz() uint64 { return c.clockHz }

// Run executes blocks until the requested cycle budget (added to
// whatever this context's RemainingCycles already carries forward from
// a prior undershoot or overshoot) is consumed. It always reports the
// full request consumed: the context's persistent cycle balance, not
// Run's return value, is what lets an imprecise block granularity catch
// up or pay back across calls, matching the same "frozen clock, settle
// the books at the end" model scheduler.go's Tick itself uses.
func (c *jitCore) Run(cycles uint64) uint64 {
	if cycles == 0 {
		return 0
	}
	budget := int64(c.remaining()) + int64(cycles)
	if budget > (1<<31 - 1) {
		budget = 1<<31 - 1 // clamp a pathologically large single tick
	}
	c.setRemaining(int32(budget))

	for c.remaining() > 0 {
		c.checkInterrupts()

		pc := c.pc()
		spec := c.specialization()
		block, ok := c.cache.Lookup(pc, spec)
		if !ok {
			block = c.translate(pc, spec)
			c.cache.Insert(block)
		}
		block.Run(c.ctxPtr)

		cost := int32(block.TotalCycles)
		if cost <= 0 {
			cost = 1 // guarantee forward progress on a zero-cost (pure control-flow) block
		}
		c.setRemaining(c.remaining() - cost)
	}
	return cycles
}

// translate runs the full compile pipeline for one guest block: decode
// shape (AnalyzeCode), emit IR (TranslateCode), fold constants, assign
// machine registers, then hand the allocated IR to whichever backend
// will take it.
func (c *jitCore) translate(pc, spec uint32) *CachedBlock {
	size := c.frontend.AnalyzeCode(c.mem, pc)
	fn := NewFunction(pc)
	fn.GuestBytes = size
	c.frontend.TranslateCode(c.mem, pc, size, fn)
	FoldConstants(fn)

	ra := NewRegisterAllocator(DefaultRegisters())
	if _, err := ra.Allocate(fn); err != nil {
		c.log.Fatalf(c.name, "register allocation failed at pc=%#08x: %v", pc, err)
	}

	compiled, backend := c.compileWithFallback(fn)
	return &CachedBlock{
		EntryPC:        pc,
		GuestBytes:     size,
		Specialization: spec,
		TotalCycles:    fn.CycleCost(),
		Fn:             fn,
		Run:            func(ctx any) { backend.Call(compiled, ctx.(unsafe.Pointer)) },
	}
}

// compileWithFallback tries the native backend first where one exists,
// retrying with the portable interpreter on the recoverable compile
// errors backend_native.go documents (LOAD_GUEST/STORE_GUEST/
// CALL_EXTERNAL not lowering to host code). A failure from the
// interpreter itself means the IR is malformed, which is fatal.
func (c *jitCore) compileWithFallback(fn *Function) (CompiledBlock, Backend) {
	if c.native != nil {
		if cb, err := c.native.Compile(fn, c.layout); err == nil {
			return cb, c.native
		} else {
			c.log.Debugf(c.name, "native compile fallback at pc=%#08x: %v", fn.EntryPC, err)
		}
	}
	cb, err := c.interpreter.Compile(fn, c.layout)
	if err != nil {
		c.log.Fatalf(c.name, "interpreter compile failed at pc=%#08x: %v", fn.EntryPC, err)
	}
	return cb, c.interpreter
}

// newSH4Core wires a jitCore against sh4, sharing cache and mem with
// whatever else the machine registers.
func newSH4Core(mem *AddressSpace, sh4 *SH4Context, cache *BlockCache, native Backend, log *Logger) *jitCore {
	externals := map[string]ExternalFunc{
		"sh4_invalid_instruction": sh4InvalidInstructionExternal(log),
	}
	return &jitCore{
		name:        "sh4",
		clockHz:     SH4ClockHz,
		mem:         mem,
		log:         log,
		frontend:    NewSH4Frontend(),
		interpreter: NewInterpreter(mem, externals),
		native:      native,
		layout:      ContextLayout{CyclesOffset: SH4CtxCycles},
		cache:       cache,
		ctxPtr:      unsafe.Pointer(sh4),
		pc:          func() uint32 { return sh4.PC },
		setPC:       func(v uint32) { sh4.PC = v },
		specialization: func() uint32 {
			return sh4.FPSCR & (FPSCRSZ | FPSCRPR)
		},
		remaining:       func() int32 { return sh4.RemainingCycles },
		setRemaining:    func(v int32) { sh4.RemainingCycles = v },
		checkInterrupts: sh4.CheckPendingInterrupts,
	}
}

// newARM7Core wires a jitCore against arm7. The AICA coprocessor's mode
// switches (arm7_switch_mode) don't change JIT specialization the way
// SH-4's SZ/PR FPU mode bits do - ARM7 has no analogous per-mode
// instruction encoding change - so specialization is always 0.
func newARM7Core(mem *AddressSpace, arm7 *ARM7Context, cache *BlockCache, native Backend, log *Logger) *jitCore {
	externals := map[string]ExternalFunc{
		"arm7_invalid_instruction": arm7InvalidInstructionExternal(log),
		"arm7_software_interrupt":  arm7SoftwareInterruptExternal(),
		"arm7_switch_mode":         arm7SwitchModeExternal(),
	}
	return &jitCore{
		name:            "arm7",
		clockHz:         ARM7ClockHz,
		mem:             mem,
		log:             log,
		frontend:        NewARM7Frontend(),
		interpreter:     NewInterpreter(mem, externals),
		native:          native,
		layout:          ContextLayout{CyclesOffset: ARM7CtxCycles},
		cache:           cache,
		ctxPtr:          unsafe.Pointer(arm7),
		pc:              func() uint32 { return arm7.R[15] },
		setPC:           func(v uint32) { arm7.R[15] = v },
		specialization:  func() uint32 { return 0 },
		remaining:       func() int32 { return arm7.RemainingCycles },
		setRemaining:    func(v int32) { arm7.RemainingCycles = v },
		checkInterrupts: arm7.CheckPendingInterrupts,
	}
}

// sh4InvalidInstructionExternal/arm7InvalidInstructionExternal log a
// decode failure; the frontend already stores the exception vector (or,
// for ARM7, pc+4) into the context separately, so these only need to
// report the fault.
func sh4InvalidInstructionExternal(log *Logger) ExternalFunc {
	return func(ctx unsafe.Pointer, args []uint64) uint64 {
		log.Warningf("sh4", "illegal instruction at pc=%#08x", uint32(args[0]))
		return 0
	}
}

func arm7InvalidInstructionExternal(log *Logger) ExternalFunc {
	return func(ctx unsafe.Pointer, args []uint64) uint64 {
		log.Warningf("arm7", "illegal instruction at pc=%#08x", uint32(args[0]))
		return 0
	}
}

// arm7SoftwareInterruptExternal/arm7SwitchModeExternal perform the full
// mode switch themselves (unlike the trap helpers above, no separate
// StoreContext follows these CallExternal sites in frontend_arm7.go).
func arm7SoftwareInterruptExternal() ExternalFunc {
	return func(ctx unsafe.Pointer, args []uint64) uint64 {
		(*ARM7Context)(ctx).SoftwareInterrupt()
		return 0
	}
}

func arm7SwitchModeExternal() ExternalFunc {
	return func(ctx unsafe.Pointer, args []uint64) uint64 {
		(*ARM7Context)(ctx).SwitchMode(uint32(args[0]))
		return 0
	}
}

// Machine is one fully wired Dreamcast: guest memory, both CPU cores,
// Holly's interrupt/MMIO block, the Tile Accelerator/Renderer pipeline,
// GD-ROM, Maple, scanout timing, and the scheduler that drives them all.
type Machine struct {
	Log   *Logger
	Mem   *AddressSpace
	SH4   *SH4Context
	ARM7  *ARM7Context
	Holly *Holly
	TA    *Accelerator
	GDROM *GDROM
	Maple *MapleBus

	Cache *BlockCache

	sched    *Scheduler
	renderer *Renderer
	render   renderbackend.Backend
	sh4Core  *jitCore
	arm7Core *jitCore
}

// MachineOptions configures NewMachine. A nil RenderBackend is valid:
// the TA/renderer pipeline still runs, just with nothing drawing frames
// (useful for trace replay and headless tests).
type MachineOptions struct {
	Log             *Logger
	RenderBackend   renderbackend.Backend
	ControllerCount int
	PAL             bool
}

// NewMachine wires one machine following original_source/src/emu/
// emulator.c's device set: memory, both CPU contexts, Holly (which
// needs the SH-4 context to raise IRLs against), the TA (which needs
// Holly and the scheduler for its render-duration timer), the renderer,
// GD-ROM, Maple, and PVR scanout - then registers both CPU cores and
// scanout with the scheduler.
func NewMachine(opts MachineOptions) *Machine {
	log := opts.Log
	if log == nil {
		log = NewLogger(SeverityInfo)
	}
	controllerCount := opts.ControllerCount
	if controllerCount == 0 {
		controllerCount = 1
	}

	mem := NewAddressSpace(log)
	sh4 := NewSH4Context()
	arm7 := NewARM7Context()

	holly := NewHolly(mem, log, sh4)
	sched := NewScheduler()
	ta := NewAccelerator(mem, log, holly, sched)
	holly.AttachAccelerator(ta)

	renderer := NewRenderer(mem, log, opts.RenderBackend)
	gdrom := NewGDROM(mem, holly)
	maple := NewMapleBus(controllerCount)
	scanout := NewScanout(mem, holly)
	if opts.PAL {
		scanout.ConfigurePAL()
	}

	cache := NewBlockCache(0, log)
	sh4Core := newSH4Core(mem, sh4, cache, newPreferredBackend(log), log)
	arm7Core := newARM7Core(mem, arm7, cache, newPreferredBackend(log), log)

	sched.Register(sh4Core)
	sched.Register(arm7Core)
	sched.Register(scanout)

	return &Machine{
		Log:      log,
		Mem:      mem,
		SH4:      sh4,
		ARM7:     arm7,
		Holly:    holly,
		TA:       ta,
		GDROM:    gdrom,
		Maple:    maple,
		Cache:    cache,
		sched:    sched,
		renderer: renderer,
		render:   opts.RenderBackend,
		sh4Core:  sh4Core,
		arm7Core: arm7Core,
	}
}

// Tick is dc_tick(ns): advance every device (both CPU cores, the PVR
// scanout timer) by ns nanoseconds of virtual time (spec.md §2, §5).
func (m *Machine) Tick(ns uint64) {
	m.sched.Tick(ns)
}

// PumpInput drains src (the host's polled controller/keyboard state)
// into the Maple bus (spec.md §2's "host main loop" collaborator).
func (m *Machine) PumpInput(src InputSource) {
	m.Maple.PumpInput(src)
}

// RenderPendingFrame takes ownership of the latest tile context the TA
// has handed off (if any arrived within timeout), translates it via the
// Tile Renderer, and drives one BeginFrame/Draw/EndFrame cycle against
// the configured render backend (spec.md §2's "render thread" and §4.9).
// It reports false when no context became available, or when no render
// backend is configured (trace-replay and headless-core operation).
func (m *Machine) RenderPendingFrame(timeout time.Duration) bool {
	if m.render == nil {
		return false
	}
	ctx, _, ok := m.TA.LockPendingContext(timeout)
	if !ok {
		return false
	}
	defer m.TA.UnlockPendingContext()

	batch := m.renderer.RenderContext(ctx, m.TA.Textures)
	m.render.BeginFrame()
	m.render.Draw(batch)
	m.render.EndFrame()
	return true
}

// LoadBinary copies a raw guest binary to addr, the convention spec.md
// §6 uses for a ".bin" CLI argument (0x0c010000, main RAM plus the IP.BIN
// bootstrap's size).
func (m *Machine) LoadBinary(addr uint32, data []byte) {
	m.Mem.WriteBlock(addr, data)
	m.SH4.PC = addr
}

// Reset drops every cached translation and clears the TA's half-built
// state, mirroring a machine reset without re-allocating the address
// space or its MMIO wiring.
func (m *Machine) Reset() {
	m.Cache.InvalidateAll()
	m.TA.DrainOnReset()
	m.Holly.SoftReset()
}

func (m *Machine) String() string {
	return fmt.Sprintf("dreamcast.Machine{blocks=%d}", m.Cache.Len())
}
