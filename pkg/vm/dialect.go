package vm

// Version identifies a dialect of the instruction set. Each successive
// version is a strict superset of capability flags over its predecessor,
// mirroring the way the upstream sBPF ISA evolved: V0 is the classic
// kernel eBPF encoding; later versions progressively disable legacy
// opcodes in favor of more compact or less ambiguous replacements.
type Version uint8

const (
	VersionV0 Version = iota
	VersionV1
	VersionV2
	VersionV3
)

// String renders the dialect version the way log lines and test table
// names expect to see it.
func (v Version) String() string {
	switch v {
	case VersionV0:
		return "v0"
	case VersionV1:
		return "v1"
	case VersionV2:
		return "v2"
	case VersionV3:
		return "v3"
	default:
		return "unknown"
	}
}

// DisableLddw reports whether LD_DW_IMM is illegal under this dialect, in
// which case HOR64_IMM is the only way to build a 64-bit constant with
// more than 32 significant bits in one instruction pair.
func (v Version) DisableLddw() bool { return v >= VersionV2 }

// MoveMemoryInstructionClasses reports whether the compact
// LD/ST_{1B,2B,4B,8B} encodings replace the classic LD/ST_{B,H,W,DW}
// family.
func (v Version) MoveMemoryInstructionClasses() bool { return v >= VersionV2 }

// EnablePQR reports whether the extended multiply/divide/remainder class
// is legal, and correspondingly whether the classic ALU MUL/DIV/MOD
// opcodes are withdrawn.
func (v Version) EnablePQR() bool { return v >= VersionV2 }

// DisableNeg reports whether NEG32/NEG64 are withdrawn.
func (v Version) DisableNeg() bool { return v >= VersionV2 }

// DisableLe reports whether the LE byteswap opcode is withdrawn (BE
// remains legal and covers both directions under this dialect).
func (v Version) DisableLe() bool { return v >= VersionV2 }

// SwapSubRegImmOperands reports whether SUB*_IMM computes imm-dst instead
// of dst-imm.
func (v Version) SwapSubRegImmOperands() bool { return v >= VersionV2 }

// ExplicitSignExtensionOfResults reports whether 32-bit ALU results are
// sign-extended into the 64-bit destination slot rather than
// zero-extended.
func (v Version) ExplicitSignExtensionOfResults() bool { return v >= VersionV1 }

// CallxUsesSrcReg reports whether CALL_REG reads its target from the
// register named by the instruction's src field, as opposed to the
// register named by the immediate.
func (v Version) CallxUsesSrcReg() bool { return v >= VersionV1 }

// StaticSyscalls reports whether SYSCALL is the only legal way to invoke
// a builtin, with CALL_IMM reserved exclusively for BPF-to-BPF calls.
func (v Version) StaticSyscalls() bool { return v >= VersionV3 }

// DynamicStackFrames reports whether call frames are sized per-function
// rather than by a fixed configured stack_frame_size.
func (v Version) DynamicStackFrames() bool { return v >= VersionV1 }

// inRange reports whether v falls within the inclusive [lo, hi] range
// recorded in Config.EnabledDialectRange.
func (v Version) inRange(lo, hi Version) bool {
	return v >= lo && v <= hi
}
