package vm

// Opcodes form a dense byte space partitioned by class, following the
// classic eBPF bit layout: bits 0-2 select the instruction class, bit 3
// selects the operand source (0 = immediate, 1 = register), and bits 4-7
// select the operation within the class.
//
//	msb                                     lsb
//	+------------------+---+-----------------+
//	| op (4 bits)       | s |  class (3 bits) |
//	+------------------+---+-----------------+
const (
	classLD    = 0x00
	classLDX   = 0x01
	classST    = 0x02
	classSTX   = 0x03
	classALU32 = 0x04
	classJMP   = 0x05
	classPQR   = 0x06
	classALU64 = 0x07

	srcReg = 0x08
)

// Memory instructions: classic LD/ST/STX family, sized by mode bits.
const (
	LdDwImm = 0x18 | classLD // two-word load of a 64-bit immediate

	LdWReg  = classLDX | 0x60
	LdHReg  = classLDX | 0x68
	LdBReg  = classLDX | 0x70
	LdDwReg = classLDX | 0x78

	StWImm  = classST | 0x60
	StHImm  = classST | 0x68
	StBImm  = classST | 0x70
	StDwImm = classST | 0x78

	StWReg  = classSTX | 0x60
	StHReg  = classSTX | 0x68
	StBReg  = classSTX | 0x70
	StDwReg = classSTX | 0x78
)

// Compact memory instructions, legal only under the
// move_memory_instruction_classes dialect. They carry identical semantics
// to their classic counterparts above (same width, same addressing mode)
// but occupy a disjoint byte range so both encodings can be described
// without aliasing opcode values; the interpreter dispatches both variants
// to the same handler, guarded by the dialect flag.
const (
	Ld1bReg = 0x20
	Ld2bReg = 0x28
	Ld4bReg = 0x30
	Ld8bReg = 0x38

	St1bImm = 0x40
	St2bImm = 0x48
	St4bImm = 0x50
	St8bImm = 0x58

	St1bReg = 0x08
	St2bReg = 0x10
	St4bReg = 0x78
	St8bReg = 0x60
)

// ALU32: 32-bit arithmetic, logic and shift operations.
const (
	Add32Imm = classALU32 | 0x00
	Add32Reg = classALU32 | 0x00 | srcReg
	Sub32Imm = classALU32 | 0x10
	Sub32Reg = classALU32 | 0x10 | srcReg
	Mul32Imm = classALU32 | 0x20
	Mul32Reg = classALU32 | 0x20 | srcReg
	Div32Imm = classALU32 | 0x30
	Div32Reg = classALU32 | 0x30 | srcReg
	Or32Imm  = classALU32 | 0x40
	Or32Reg  = classALU32 | 0x40 | srcReg
	And32Imm = classALU32 | 0x50
	And32Reg = classALU32 | 0x50 | srcReg
	Lsh32Imm = classALU32 | 0x60
	Lsh32Reg = classALU32 | 0x60 | srcReg
	Rsh32Imm = classALU32 | 0x70
	Rsh32Reg = classALU32 | 0x70 | srcReg
	Neg32    = classALU32 | 0x80
	Mod32Imm = classALU32 | 0x90
	Mod32Reg = classALU32 | 0x90 | srcReg
	Xor32Imm = classALU32 | 0xa0
	Xor32Reg = classALU32 | 0xa0 | srcReg
	Mov32Imm = classALU32 | 0xb0
	Mov32Reg = classALU32 | 0xb0 | srcReg
	Arsh32Imm = classALU32 | 0xc0
	Arsh32Reg = classALU32 | 0xc0 | srcReg
	Le        = classALU32 | 0xd0
	Be        = classALU32 | 0xd0 | srcReg
)

// ALU64: 64-bit counterparts of the above.
const (
	Add64Imm = classALU64 | 0x00
	Add64Reg = classALU64 | 0x00 | srcReg
	Sub64Imm = classALU64 | 0x10
	Sub64Reg = classALU64 | 0x10 | srcReg
	Mul64Imm = classALU64 | 0x20
	Mul64Reg = classALU64 | 0x20 | srcReg
	Div64Imm = classALU64 | 0x30
	Div64Reg = classALU64 | 0x30 | srcReg
	Or64Imm  = classALU64 | 0x40
	Or64Reg  = classALU64 | 0x40 | srcReg
	And64Imm = classALU64 | 0x50
	And64Reg = classALU64 | 0x50 | srcReg
	Lsh64Imm = classALU64 | 0x60
	Lsh64Reg = classALU64 | 0x60 | srcReg
	Rsh64Imm = classALU64 | 0x70
	Rsh64Reg = classALU64 | 0x70 | srcReg
	Neg64    = classALU64 | 0x80
	Mod64Imm = classALU64 | 0x90
	Mod64Reg = classALU64 | 0x90 | srcReg
	Xor64Imm = classALU64 | 0xa0
	Xor64Reg = classALU64 | 0xa0 | srcReg
	Mov64Imm = classALU64 | 0xb0
	Mov64Reg = classALU64 | 0xb0 | srcReg
	Arsh64Imm = classALU64 | 0xc0
	Arsh64Reg = classALU64 | 0xc0 | srcReg
	Hor64Imm  = classALU64 | 0xf0 // only legal when LD_DW_IMM is disabled
)

// PQR: extended multiply/divide/remainder, legal only under enable_pqr.
const (
	Lmul32Imm  = classPQR | 0x00
	Lmul32Reg  = classPQR | 0x00 | srcReg
	Lmul64Imm  = classPQR | 0x10
	Lmul64Reg  = classPQR | 0x10 | srcReg
	Uhmul64Imm = classPQR | 0x20
	Uhmul64Reg = classPQR | 0x20 | srcReg
	Shmul64Imm = classPQR | 0x30
	Shmul64Reg = classPQR | 0x30 | srcReg
	Udiv32Imm  = classPQR | 0x40
	Udiv32Reg  = classPQR | 0x40 | srcReg
	Udiv64Imm  = classPQR | 0x50
	Udiv64Reg  = classPQR | 0x50 | srcReg
	Urem32Imm  = classPQR | 0x60
	Urem32Reg  = classPQR | 0x60 | srcReg
	Urem64Imm  = classPQR | 0x70
	Urem64Reg  = classPQR | 0x70 | srcReg
	Sdiv32Imm  = classPQR | 0x80
	Sdiv32Reg  = classPQR | 0x80 | srcReg
	Sdiv64Imm  = classPQR | 0x90
	Sdiv64Reg  = classPQR | 0x90 | srcReg
	Srem32Imm  = classPQR | 0xa0
	Srem32Reg  = classPQR | 0xa0 | srcReg
	Srem64Imm  = classPQR | 0xb0
	Srem64Reg  = classPQR | 0xb0 | srcReg
)

// JMP: control flow.
const (
	Ja       = classJMP | 0x00
	JeqImm   = classJMP | 0x10
	JeqReg   = classJMP | 0x10 | srcReg
	JgtImm   = classJMP | 0x20
	JgtReg   = classJMP | 0x20 | srcReg
	JgeImm   = classJMP | 0x30
	JgeReg   = classJMP | 0x30 | srcReg
	JsetImm  = classJMP | 0x40
	JsetReg  = classJMP | 0x40 | srcReg
	JneImm   = classJMP | 0x50
	JneReg   = classJMP | 0x50 | srcReg
	JsgtImm  = classJMP | 0x60
	JsgtReg  = classJMP | 0x60 | srcReg
	JsgeImm  = classJMP | 0x70
	JsgeReg  = classJMP | 0x70 | srcReg
	CallImm  = classJMP | 0x80
	CallReg  = classJMP | 0x80 | srcReg
	Exit     = classJMP | 0x90
	Return   = classJMP | 0x90 | srcReg
	JltImm   = classJMP | 0xa0
	JltReg   = classJMP | 0xa0 | srcReg
	JleImm   = classJMP | 0xb0
	JleReg   = classJMP | 0xb0 | srcReg
	JsltImm  = classJMP | 0xc0
	JsltReg  = classJMP | 0xc0 | srcReg
	JsleImm  = classJMP | 0xd0
	JsleReg  = classJMP | 0xd0 | srcReg
	Syscall  = classJMP | 0xe0
)

// Width enumerates the byte widths legal for memory and ALU operations.
type Width uint8

const (
	WidthByte  Width = 1
	WidthHalf  Width = 2
	WidthWord  Width = 4
	WidthDWord Width = 8
)
