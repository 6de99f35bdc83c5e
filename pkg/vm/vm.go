package vm

// VM owns all interpreter state for one guest execution: the register
// file, call-frame stack, guest memory mapping, taint engine, jump
// tracer, the loaded executable, and the external context object and
// optional instrumenter. A VM is exclusively owned by one worker for its
// lifetime; nothing about it is safe to share across goroutines while a
// program is running.
type VM struct {
	Regs    Registers
	Calls   *CallStack
	Mem     *Mapping
	Taint   *Engine
	Jumps   *JumpTracer
	Exe     *Executable
	Context ContextObject
	Instr   Instrumenter

	dueCount uint64
	result   ProgramResult
	halted   bool
}

// NewVM builds a VM over the given executable, memory regions and
// context object. The instrumenter is optional; pass nil to run without
// one attached.
func NewVM(exe *Executable, regions []Region, ctx ContextObject, instr Instrumenter) *VM {
	cfg := exe.Config()
	v := &VM{
		Calls:   NewCallStack(cfg.MaxCallDepth),
		Mem:     NewMapping(regions, !cfg.EnableAddressTranslation),
		Taint:   NewEngine(),
		Jumps:   NewJumpTracer(),
		Exe:     exe,
		Context: ctx,
		Instr:   instr,
	}
	if instr != nil {
		instr.IncrementVMDepth()
	}
	return v
}

// ExecuteProgram runs the loaded executable to completion, returning
// the number of instructions executed and the final program result.
//
// 1. Seed reg[1] with the input region base and reg[11] (pc) with the
//    entrypoint.
// 2. Snapshot the context object's remaining budget; zero the due count
//    and program result.
// 3. If an instrumenter is attached, parse the input region into a
//    semantic mapping and publish it before stepping begins, so the
//    interpreter never needs concurrent access to the instrumenter
//    while a step is in flight.
// 4. Step repeatedly until step() returns false.
// 5. Consume the due count against the meter and report executed
//    instructions as initial minus remaining.
func (v *VM) ExecuteProgram() (uint64, ProgramResult) {
	v.Regs[1] = InputVMAddr
	v.Regs[RegFP] = StackVMAddr + stackTopOffset(v.Exe.Config())
	v.Regs[RegPC] = v.Exe.EntrypointInstructionOffset()

	initial := v.Context.GetRemaining()
	v.dueCount = 0
	v.result = ProgramResult{}
	v.halted = false

	if v.Instr != nil {
		if mapping, err := ParseInputRegion(v.Mem); err == nil {
			v.Instr.SetSemanticInput(mapping)
		}
	}

	for v.step() {
	}

	v.Context.Consume(v.dueCount)
	remaining := v.Context.GetRemaining()
	executed := uint64(0)
	if initial > remaining {
		executed = initial - remaining
	}
	return executed, v.result
}

// stackTopOffset computes the guest offset of the initial stack pointer
// within the stack region: one frame stride (the stack frame size,
// doubled when stack-frame gaps are enabled) above the region's base,
// so r10 starts pointing just past the first frame.
func stackTopOffset(cfg Config) uint64 {
	stride := cfg.StackFrameSize
	if cfg.EnableStackFrameGaps {
		stride *= 2
	}
	return stride
}
