package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestExecutable(t *testing.T, text []byte, version Version) *Executable {
	t.Helper()
	cfg := DefaultConfig()
	return NewExecutable(text, 0, cfg, version)
}

// Scenario 1: immediate division by zero. DIV64_IMM faults before
// mutating the destination register, and the executed count reflects
// exactly the two instructions that ran (the MOV priming r0, and the
// faulting DIV itself).
func TestScenarioImmediateDivideByZero(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstImm(Mov64Imm, 0, 10))
	asm.Emit(BPFIDstImm(Div64Imm, 0, 0))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	executed, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, DivideByZero, result.Fault.Kind)
	require.Equal(t, uint64(2), executed)
	require.Equal(t, uint64(10), machine.Regs[0])
}

// Scenario 2: a conditional jump comparing a fully tainted register
// against a clean immediate records one comparison fact per tainted
// byte, regardless of whether the branch is taken.
func TestScenarioConditionalJumpTaint(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIJumpImm(JeqImm, 2, 0, 0))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)
	for _, addr := range RegisterAddresses(2, 8) {
		machine.Taint.SetState(addr, Tainted(1))
	}

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	require.Len(t, machine.Taint.Records(), 8)
	for _, rec := range machine.Taint.Records() {
		require.True(t, rec.Dest.Taint.Tainted)
		require.Equal(t, ImmediateSentinel, rec.Source.Address.Kind)
	}
}

// Scenario 3: a BPF-to-BPF call preserves the caller-saved registers
// (6-9) across the callee's own mutation of them, restoring their
// values exactly on return.
func TestScenarioCallReturnFrameDiscipline(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstImm(Mov64Imm, 6, 111)) // pc 0
	asm.Emit(BPFIDstImm(CallImm, 0, 2))    // pc 1: target = 1+1+2 = 4
	asm.Emit(BPFIDstSrc(Mov64Reg, 0, 6))   // pc 2: r0 = r6 after return
	asm.Exit()                             // pc 3: outer exit, depth 0
	asm.Emit(BPFIDstImm(Mov64Imm, 6, 999)) // pc 4: callee clobbers r6
	asm.Exit()                             // pc 5: return to pc 2

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	exe.FunctionRegistry().Register(4, "callee", 4)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	require.Equal(t, uint64(111), result.Value)
	require.Equal(t, uint64(111), machine.Regs[6])
}

// Scenario 4: the instruction meter halts execution exactly at budget,
// with ExceededMaxInstructions and an executed count equal to the
// budget, not the program length.
func TestScenarioMeterExhaustion(t *testing.T) {
	asm := NewAssembler()
	for i := 0; i < 5; i++ {
		asm.Emit(BPFIDstImm(Mov64Imm, 0, int32(i)))
	}
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(2)
	machine := NewVM(exe, nil, ctx, nil)

	executed, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, ExceededMaxInstructions, result.Fault.Kind)
	require.Equal(t, uint64(2), executed)
}

// Scenario 5: signed 64-bit division overflow (MIN_INT64 / -1) faults
// DivideOverflow and leaves the destination register untouched.
func TestScenarioSignedDivideOverflow(t *testing.T) {
	asm := NewAssembler()
	// V2 disables LD_DW_IMM, so INT64_MIN is built with HOR64_IMM.
	asm.Emit(BPFIDstImm(Mov64Imm, 0, 0))
	asm.Emit(BPFIDstImm(Hor64Imm, 0, math.MinInt32))
	asm.Emit(BPFIDstImm(Mov64Imm, 1, -1))
	asm.Emit(BPFIDstSrc(Sdiv64Reg, 0, 1))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV2)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, DivideOverflow, result.Fault.Kind)
	require.Equal(t, uint64(math.MinInt64), machine.Regs[0])
}

// Scenario 6: BE composed with itself is a round trip, both for the
// swapped value and for the taint permuted alongside it.
func TestScenarioEndianSwapRoundTrip(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstImm(Be, 2, 64))
	asm.Emit(BPFIDstImm(Be, 2, 64))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)
	machine.Regs[2] = 0x1122334455667788
	machine.Taint.SetState(RegisterAddress(2, 0), Tainted(5))

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	require.Equal(t, uint64(0x1122334455667788), machine.Regs[2])
	require.True(t, machine.Taint.StateOf(RegisterAddress(2, 0)).Tainted)
	for i := 1; i < 8; i++ {
		require.False(t, machine.Taint.StateOf(RegisterAddress(2, uint8(i))).Tainted)
	}
}

// LE is a zero-extending no-op on a little-endian host: applying it to
// the full 64-bit width leaves both value and taint untouched.
func TestEndianLeftEncodingIsNoOpAtFullWidth(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstImm(Le, 2, 64))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)
	machine.Regs[2] = 0x1122334455667788
	machine.Taint.SetState(RegisterAddress(2, 0), Tainted(5))

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	require.Equal(t, uint64(0x1122334455667788), machine.Regs[2])
	require.True(t, machine.Taint.StateOf(RegisterAddress(2, 0)).Tainted)
}

// Universal invariant: every control-flow step, including terminal
// EXIT at call depth zero, appends exactly one jump record.
func TestEveryStepEmitsOneJumpRecord(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIJumpImm(Ja, 0, 0, 0))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	log := machine.Jumps.Log()
	require.Len(t, log, 2)
	require.Equal(t, JumpRecord{From: 0, To: 1}, log[0])
	require.Equal(t, JumpRecord{From: 1, To: 1}, log[1])
}

func TestUnsupportedInstructionUnderDialectGating(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstSrc(Sdiv64Reg, 0, 1))
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, UnsupportedInstruction, result.Fault.Kind)
}

// Under static_syscalls dialects EXIT is illegal (RETURN, a separate
// opcode, terminates instead): a program built with the assembler's
// Exit() must fault rather than silently terminate.
func TestExitUnsupportedUnderStaticSyscalls(t *testing.T) {
	asm := NewAssembler()
	asm.Exit()

	exe := newTestExecutable(t, asm.Bytes(), VersionV3)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, UnsupportedInstruction, result.Fault.Kind)
}

// Conversely, RETURN is illegal outside static_syscalls dialects.
func TestReturnUnsupportedOutsideStaticSyscalls(t *testing.T) {
	asm := NewAssembler()
	asm.Return()

	exe := newTestExecutable(t, asm.Bytes(), VersionV0)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.False(t, result.Ok())
	require.Equal(t, UnsupportedInstruction, result.Fault.Kind)
}

// RETURN is the correct, legal terminator under static_syscalls.
func TestReturnLegalUnderStaticSyscalls(t *testing.T) {
	asm := NewAssembler()
	asm.Emit(BPFIDstImm(Mov64Imm, 0, 7))
	asm.Return()

	exe := newTestExecutable(t, asm.Bytes(), VersionV3)
	ctx := NewMeteredContext(1000)
	machine := NewVM(exe, nil, ctx, nil)

	_, result := machine.ExecuteProgram()
	require.True(t, result.Ok())
	require.Equal(t, uint64(7), result.Value)
}
