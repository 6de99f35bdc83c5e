package vm

// Assembler accumulates instruction words into program text, the shape
// tests build fixture programs with instead of hand-writing byte
// literals.
type Assembler struct {
	text []byte
}

// NewAssembler allocates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) emit(i Instruction) *Assembler {
	a.text = append(a.text,
		i.Opcode,
		i.DstSrc,
		byte(uint16(i.Offset)),
		byte(uint16(i.Offset)>>8),
		byte(uint32(i.Immediate)),
		byte(uint32(i.Immediate)>>8),
		byte(uint32(i.Immediate)>>16),
		byte(uint32(i.Immediate)>>24),
	)
	return a
}

// Bytes returns the assembled program text.
func (a *Assembler) Bytes() []byte { return a.text }

// Len returns the number of instruction words assembled so far.
func (a *Assembler) Len() uint64 { return uint64(len(a.text) / 8) }

// BPFIOp builds a bare opcode with no operands, e.g. EXIT.
func BPFIOp(opcode uint8) Instruction {
	return Instruction{Opcode: opcode}
}

// BPFIDstImm builds an opcode with a destination register and an
// immediate, e.g. MOV64_IMM.
func BPFIDstImm(opcode uint8, dst uint8, imm int32) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, 0), Immediate: imm}
}

// BPFIDstSrc builds an opcode with destination and source registers,
// e.g. ADD64_REG.
func BPFIDstSrc(opcode uint8, dst, src uint8) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, src)}
}

// BPFIDstOffImm builds a memory-store opcode: destination register,
// byte offset, and immediate value.
func BPFIDstOffImm(opcode uint8, dst uint8, off int16, imm int32) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, 0), Offset: off, Immediate: imm}
}

// BPFIDstOffSrc builds a memory load-or-store opcode addressed by
// register plus offset.
func BPFIDstOffSrc(opcode uint8, dst, src uint8, off int16) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, src), Offset: off}
}

// BPFIJumpImm builds a conditional-jump-against-immediate opcode.
func BPFIJumpImm(opcode uint8, dst uint8, off int16, imm int32) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, 0), Offset: off, Immediate: imm}
}

// BPFIJumpSrc builds a conditional-jump-against-register opcode.
func BPFIJumpSrc(opcode uint8, dst, src uint8, off int16) Instruction {
	return Instruction{Opcode: opcode, DstSrc: packDstSrc(dst, src), Offset: off}
}

// LoadImm64 appends the two-word LD_DW_IMM sequence that loads a full
// 64-bit immediate into dst.
func (a *Assembler) LoadImm64(dst uint8, imm uint64) *Assembler {
	a.emit(Instruction{Opcode: LdDwImm, DstSrc: packDstSrc(dst, 0), Immediate: int32(uint32(imm))})
	a.emit(Instruction{Immediate: int32(uint32(imm >> 32))})
	return a
}

// Emit appends one already-built instruction.
func (a *Assembler) Emit(i Instruction) *Assembler {
	return a.emit(i)
}

// Exit appends an EXIT, legal under every dialect except the
// static_syscalls ones, where RETURN (a separate opcode) replaces it.
func (a *Assembler) Exit() *Assembler {
	return a.emit(BPFIOp(Exit))
}

// Return appends a RETURN, the static_syscalls dialects' replacement
// for EXIT.
func (a *Assembler) Return() *Assembler {
	return a.emit(BPFIOp(Return))
}
