package vm

import "fmt"

// Instruction represents a decoded eBPF/sBPF instruction.
//
// msb                                                        lsb
// +------------------------+----------------+----+----+--------+
// |immediate               |offset          |src |dst |opcode  |
// +------------------------+----------------+----+----+--------+
//
// From least significant to most significant bit:
// 8 bit opcode
// 4 bit destination register (dst)
// 4 bit source register (src)
// 16 bit offset
// 32 bit immediate (imm)
//
// LD_DW_IMM is the one opcode whose immediate spans two words: the
// second word's immediate supplies the upper 32 bits, while its opcode,
// dst, src and offset are all zero.
// e.g.
//    opcode  dst+src     offset         immediate
// 1: [0x18]  [0x01]   [0x00 0x00] [0x01 0x02 0x03 0x04]
// 2: [0x00]  [0x00]   [0x00 0x00] [0x05 0x06 0x07 0x08]
type Instruction struct {
	// Opcode is the instruction's opcode.
	Opcode uint8

	// DstSrc contains both destination and source registers.
	// Dst occupies the 4 LSB, Src occupies the 4 MSB. This packing is
	// fixed regardless of the program's byte order; only the
	// surrounding word's endianness varies.
	DstSrc uint8

	// Offset is the offset for the current instruction.
	Offset int16

	// Immediate is the immediate value for the instruction.
	Immediate int32
}

// Dst extracts the destination register index.
func (i Instruction) Dst() uint8 { return i.DstSrc & 0x0f }

// Src extracts the source register index.
func (i Instruction) Src() uint8 { return (i.DstSrc >> 4) & 0x0f }

func packDstSrc(dst, src uint8) uint8 {
	return (dst & 0x0f) | (src&0x0f)<<4
}

func (i Instruction) String() string {
	return fmt.Sprintf("opcode: %#02x, dst: r%d, src: r%d, off: %d, imm: %d",
		i.Opcode, i.Dst(), i.Src(), i.Offset, i.Immediate)
}
