package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// FaultKind enumerates the ways a program can fail to complete. Every
// fault halts the interpreter immediately; there is no local recovery.
type FaultKind uint8

const (
	// ExecutionOverrun means pc ran past the end of program text.
	ExecutionOverrun FaultKind = iota
	// CallOutsideTextSegment means a call or return target pc lies
	// outside program text.
	CallOutsideTextSegment
	// CallDepthExceeded means the frame stack would exceed the
	// configured maximum depth.
	CallDepthExceeded
	// DivideByZero means a division or modulo opcode observed a zero
	// divisor.
	DivideByZero
	// DivideOverflow means a signed division or modulo opcode observed
	// dst = INT_MIN, src = -1 at the operand width.
	DivideOverflow
	// InvalidInstruction means a valid opcode carried a malformed
	// operand, e.g. LE/BE with an immediate outside {16,32,64}.
	InvalidInstruction
	// UnsupportedInstruction means the opcode is not legal under the
	// active dialect, or a call target has no entry in the relevant
	// registry under a static-syscalls dialect.
	UnsupportedInstruction
	// ExceededMaxInstructions means the instruction meter is exhausted.
	ExceededMaxInstructions
	// AccessViolation means a guest memory load or store failed bounds,
	// width or writability checks.
	AccessViolation
)

func (k FaultKind) String() string {
	switch k {
	case ExecutionOverrun:
		return "ExecutionOverrun"
	case CallOutsideTextSegment:
		return "CallOutsideTextSegment"
	case CallDepthExceeded:
		return "CallDepthExceeded"
	case DivideByZero:
		return "DivideByZero"
	case DivideOverflow:
		return "DivideOverflow"
	case InvalidInstruction:
		return "InvalidInstruction"
	case UnsupportedInstruction:
		return "UnsupportedInstruction"
	case ExceededMaxInstructions:
		return "ExceededMaxInstructions"
	case AccessViolation:
		return "AccessViolation"
	default:
		return "UnknownFault"
	}
}

// Fault is the error value the interpreter produces on termination by
// any path other than a normal EXIT/RETURN at call depth zero. It wraps
// an optional underlying cause (e.g. the specific bounds violation that
// produced an AccessViolation) for diagnostics, following the same
// errors.Wrap idiom used for contextualizing lower-level causes.
type Fault struct {
	Kind FaultKind
	Pc   uint64
	Err  error
}

func newFault(kind FaultKind, pc uint64) *Fault {
	return &Fault{Kind: kind, Pc: pc}
}

func wrapFault(kind FaultKind, pc uint64, cause error, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Pc: pc, Err: errors.Wrapf(cause, format, args...)}
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s at pc=%d: %v", f.Kind, f.Pc, f.Err)
	}
	return fmt.Sprintf("%s at pc=%d", f.Kind, f.Pc)
}

func (f *Fault) Unwrap() error { return f.Err }

// ProgramResult is the sum type Ok(u64) | Err(FaultKind) the VM driver
// produces for one execution.
type ProgramResult struct {
	Value uint64
	Fault *Fault
}

// Ok reports whether the program terminated successfully.
func (r ProgramResult) Ok() bool { return r.Fault == nil }

func (r ProgramResult) String() string {
	if r.Ok() {
		return fmt.Sprintf("Ok(%d)", r.Value)
	}
	return fmt.Sprintf("Err(%s)", r.Fault)
}
