package vm

import (
	"encoding/binary"
	"math"
	"math/big"
	"math/bits"
)

// decodeInstruction reads one fixed 8-byte instruction word from text at
// byteOffset.
func decodeInstruction(text []byte, byteOffset uint64) Instruction {
	b := text[byteOffset : byteOffset+8]
	return Instruction{
		Opcode:    b[0],
		DstSrc:    b[1],
		Offset:    int16(binary.LittleEndian.Uint16(b[2:4])),
		Immediate: int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}

func classicWidth(op uint8) Width {
	switch op & 0x18 {
	case 0x00:
		return WidthWord
	case 0x08:
		return WidthHalf
	case 0x10:
		return WidthByte
	case 0x18:
		return WidthDWord
	}
	return 0
}

func compactWidth(op uint8) Width {
	switch op {
	case Ld1bReg, St1bImm, St1bReg:
		return WidthByte
	case Ld2bReg, St2bImm, St2bReg:
		return WidthHalf
	case Ld4bReg, St4bImm, St4bReg:
		return WidthWord
	case Ld8bReg, St8bImm, St8bReg:
		return WidthDWord
	}
	return 0
}

func shiftMask(is64 bool) uint64 {
	if is64 {
		return 63
	}
	return 31
}

// emitEdge records a control-flow edge in both the authoritative jump
// tracer and, if attached, the external instrumenter.
func (v *VM) emitEdge(from, to uint64) {
	v.Jumps.TraceJump(from, to)
	if v.Instr != nil {
		v.Instr.RecordEdge(from, to)
	}
}

// halt commits a fault as the program's final result.
func (v *VM) halt(f *Fault) {
	v.result = ProgramResult{Fault: f}
	v.halted = true
}

// step advances the VM by one instruction, returning false on
// termination or fault.
//
// Per-step order: (1) check and charge the instruction meter, (2) fetch
// and decode at pc*8, (3) trace the full register file if tracing is
// enabled, (4) dispatch on opcode under the active dialect, (5) write
// back pc.
func (v *VM) step() bool {
	cfg := v.Exe.Config()
	pc := v.Regs[RegPC]

	if cfg.EnableInstructionMeter {
		if v.dueCount >= v.Context.GetRemaining() {
			v.halt(newFault(ExceededMaxInstructions, pc))
			return false
		}
	}
	v.dueCount++

	_, text := v.Exe.TextBytes()
	if pc*8 >= uint64(len(text)) {
		v.halt(newFault(ExecutionOverrun, pc))
		return false
	}
	instr := decodeInstruction(text, pc*8)

	if cfg.EnableInstructionTracing {
		v.Context.Trace(v.Regs)
	}

	version := v.Exe.SBPFVersion()
	nextPC := pc + 1
	var fault *Fault

	switch instr.Opcode {
	case LdDwImm:
		if version.DisableLddw() {
			fault = newFault(UnsupportedInstruction, pc)
			break
		}
		if (pc+1)*8+8 > uint64(len(text)) {
			fault = newFault(ExecutionOverrun, pc)
			break
		}
		second := decodeInstruction(text, (pc+1)*8)
		dst := instr.Dst()
		v.Regs[dst] = uint64(uint32(instr.Immediate)) | uint64(uint32(second.Immediate))<<32
		v.Taint.ClearVector(RegisterAddresses(dst, 8))
		nextPC = pc + 2

	case Add32Imm, Add32Reg, Sub32Imm, Sub32Reg, Or32Imm, Or32Reg, And32Imm, And32Reg,
		Lsh32Imm, Lsh32Reg, Rsh32Imm, Rsh32Reg, Xor32Imm, Xor32Reg, Mov32Imm, Mov32Reg,
		Arsh32Imm, Arsh32Reg:
		fault = v.execALU(instr, false, version)

	case Mul32Imm, Mul32Reg, Div32Imm, Div32Reg, Mod32Imm, Mod32Reg:
		if version.EnablePQR() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execALU(instr, false, version)
		}

	case Neg32:
		if version.DisableNeg() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execALU(instr, false, version)
		}

	case Le:
		if version.DisableLe() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execEndian(instr, false)
		}

	case Be:
		fault = v.execEndian(instr, true)

	case Add64Imm, Add64Reg, Sub64Imm, Sub64Reg, Or64Imm, Or64Reg, And64Imm, And64Reg,
		Lsh64Imm, Lsh64Reg, Rsh64Imm, Rsh64Reg, Xor64Imm, Xor64Reg, Mov64Imm, Mov64Reg,
		Arsh64Imm, Arsh64Reg:
		fault = v.execALU(instr, true, version)

	case Mul64Imm, Mul64Reg, Div64Imm, Div64Reg, Mod64Imm, Mod64Reg:
		if version.EnablePQR() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execALU(instr, true, version)
		}

	case Neg64:
		if version.DisableNeg() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execALU(instr, true, version)
		}

	case Hor64Imm:
		if !version.DisableLddw() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			v.Regs[instr.Dst()] |= uint64(uint32(instr.Immediate)) << 32
		}

	case Lmul32Imm, Lmul32Reg, Lmul64Imm, Lmul64Reg, Uhmul64Imm, Uhmul64Reg, Shmul64Imm, Shmul64Reg,
		Udiv32Imm, Udiv32Reg, Udiv64Imm, Udiv64Reg, Urem32Imm, Urem32Reg, Urem64Imm, Urem64Reg,
		Sdiv32Imm, Sdiv32Reg, Sdiv64Imm, Sdiv64Reg, Srem32Imm, Srem32Reg, Srem64Imm, Srem64Reg:
		fault = v.execPQR(instr, version)

	case LdWReg, LdHReg, LdBReg, LdDwReg:
		if version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execLoad(instr, classicWidth(instr.Opcode))
		}

	case Ld1bReg, Ld2bReg, Ld4bReg, Ld8bReg:
		if !version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execLoad(instr, compactWidth(instr.Opcode))
		}

	case StWImm, StHImm, StBImm, StDwImm:
		if version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execStoreImm(instr, classicWidth(instr.Opcode))
		}

	case St1bImm, St2bImm, St4bImm, St8bImm:
		if !version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execStoreImm(instr, compactWidth(instr.Opcode))
		}

	case StWReg, StHReg, StBReg, StDwReg:
		if version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execStoreReg(instr, classicWidth(instr.Opcode))
		}

	case St1bReg, St2bReg, St4bReg, St8bReg:
		if !version.MoveMemoryInstructionClasses() {
			fault = newFault(UnsupportedInstruction, pc)
		} else {
			fault = v.execStoreReg(instr, compactWidth(instr.Opcode))
		}

	case Ja:
		target := uint64(int64(pc) + 1 + int64(instr.Offset))
		v.emitEdge(pc, target)
		nextPC = target

	case JeqImm, JeqReg, JgtImm, JgtReg, JgeImm, JgeReg, JsetImm, JsetReg, JneImm, JneReg,
		JsgtImm, JsgtReg, JsgeImm, JsgeReg, JltImm, JltReg, JleImm, JleReg,
		JsltImm, JsltReg, JsleImm, JsleReg:
		var resolved uint64
		fault, resolved = v.execJumpCond(instr)
		if fault == nil {
			v.emitEdge(pc, resolved)
			nextPC = resolved
		}

	case CallReg:
		var resolved uint64
		resolved, fault = v.execCallReg(instr, version)
		if fault == nil {
			v.emitEdge(pc, resolved)
			nextPC = resolved
		}

	case CallImm:
		var resolved uint64
		resolved, fault = v.execCallImm(instr, version)
		if fault == nil {
			v.emitEdge(pc, resolved)
			nextPC = resolved
		}

	case Syscall:
		fault = v.execSyscall(instr, version)
		if fault == nil {
			v.emitEdge(pc, pc+1)
		}

	case Exit, Return:
		if (instr.Opcode == Exit && version.StaticSyscalls()) || (instr.Opcode == Return && !version.StaticSyscalls()) {
			fault = newFault(UnsupportedInstruction, pc)
			break
		}
		resolved, terminate, rFault := v.execReturn(instr)
		if rFault != nil {
			fault = rFault
		} else if terminate {
			v.emitEdge(pc, pc)
			v.halted = true
		} else {
			v.emitEdge(pc, resolved)
			nextPC = resolved
		}

	default:
		fault = newFault(UnsupportedInstruction, pc)
	}

	if fault != nil {
		v.halt(fault)
		return false
	}
	if v.halted {
		return false
	}
	v.Regs[RegPC] = nextPC
	return true
}

// execALU handles the binary and unary ALU32/ALU64 operations that share
// an op-nibble encoding between the two widths: ADD, SUB, MUL, DIV, OR,
// AND, LSH, RSH, NEG, MOD, XOR, MOV, ARSH.
func (v *VM) execALU(instr Instruction, is64 bool, version Version) *Fault {
	pc := v.Regs[RegPC]
	dst := instr.Dst()
	isReg := instr.Opcode&srcReg != 0
	opNibble := instr.Opcode & 0xf0

	var operand uint64
	if isReg {
		operand = v.Regs[instr.Src()]
	} else if is64 {
		operand = uint64(int64(instr.Immediate))
	} else {
		operand = uint64(uint32(instr.Immediate))
	}
	dstVal := v.Regs[dst]

	var result uint64
	switch opNibble {
	case 0x00:
		if is64 {
			result = dstVal + operand
		} else {
			result = uint64(uint32(dstVal) + uint32(operand))
		}
	case 0x10:
		a, b := dstVal, operand
		if !isReg && version.SwapSubRegImmOperands() {
			a, b = b, a
		}
		if is64 {
			result = a - b
		} else {
			result = uint64(uint32(a) - uint32(b))
		}
	case 0x20:
		if is64 {
			result = dstVal * operand
		} else {
			result = uint64(uint32(dstVal) * uint32(operand))
		}
	case 0x30:
		if is64 {
			if operand == 0 {
				return newFault(DivideByZero, pc)
			}
			result = dstVal / operand
		} else {
			o := uint32(operand)
			if o == 0 {
				return newFault(DivideByZero, pc)
			}
			result = uint64(uint32(dstVal) / o)
		}
	case 0x40:
		if is64 {
			result = dstVal | operand
		} else {
			result = uint64(uint32(dstVal) | uint32(operand))
		}
	case 0x50:
		if is64 {
			result = dstVal & operand
		} else {
			result = uint64(uint32(dstVal) & uint32(operand))
		}
	case 0x60:
		shift := operand & shiftMask(is64)
		if is64 {
			result = dstVal << shift
		} else {
			result = uint64(uint32(dstVal) << shift)
		}
	case 0x70:
		shift := operand & shiftMask(is64)
		if is64 {
			result = dstVal >> shift
		} else {
			result = uint64(uint32(dstVal) >> shift)
		}
	case 0x80:
		if is64 {
			result = uint64(-int64(dstVal))
		} else {
			result = uint64(uint32(-int32(uint32(dstVal))))
		}
	case 0x90:
		if is64 {
			if operand == 0 {
				return newFault(DivideByZero, pc)
			}
			result = dstVal % operand
		} else {
			o := uint32(operand)
			if o == 0 {
				return newFault(DivideByZero, pc)
			}
			result = uint64(uint32(dstVal) % o)
		}
	case 0xa0:
		if is64 {
			result = dstVal ^ operand
		} else {
			result = uint64(uint32(dstVal) ^ uint32(operand))
		}
	case 0xb0:
		if is64 {
			result = operand
		} else {
			result = uint64(uint32(operand))
		}
	case 0xc0:
		shift := operand & shiftMask(is64)
		if is64 {
			result = uint64(int64(dstVal) >> shift)
		} else {
			result = uint64(uint32(int32(uint32(dstVal)) >> shift))
		}
	default:
		return newFault(InvalidInstruction, pc)
	}

	if !is64 && version.ExplicitSignExtensionOfResults() {
		result = uint64(int64(int32(uint32(result))))
	}
	v.Regs[dst] = result

	if opNibble == 0xb0 {
		dstAddrs := RegisterAddresses(dst, 8)
		ptrAddr := pc * 8
		if isReg {
			srcAddrs := RegisterAddresses(instr.Src(), 8)
			v.Taint.PropagateVector(ptrAddr, instr.Opcode, srcAddrs, dstAddrs)
			if v.Instr != nil {
				observed := leBytes(operand)
				for i := range srcAddrs {
					v.Instr.RecordPropagation(ptrAddr, instr.Opcode, srcAddrs[i], dstAddrs[i], observed[i])
				}
			}
		} else {
			v.Taint.ClearVector(dstAddrs)
		}
	}
	return nil
}

// execEndian handles LE and BE byteswap opcodes. Taint follows the same
// byte permutation as the value: reversed within the converted width
// under BE, left in place under LE, and cleared above the width since
// the result is zero-extended.
func (v *VM) execEndian(instr Instruction, toBigEndian bool) *Fault {
	dst := instr.Dst()
	val := v.Regs[dst]
	var result uint64
	var width int
	switch instr.Immediate {
	case 16:
		x := uint16(val)
		if toBigEndian {
			x = bits.ReverseBytes16(x)
		}
		result, width = uint64(x), 2
	case 32:
		x := uint32(val)
		if toBigEndian {
			x = bits.ReverseBytes32(x)
		}
		result, width = uint64(x), 4
	case 64:
		x := val
		if toBigEndian {
			x = bits.ReverseBytes64(x)
		}
		result, width = x, 8
	default:
		return newFault(InvalidInstruction, v.Regs[RegPC])
	}

	old := make([]TaintState, 8)
	for i := 0; i < 8; i++ {
		old[i] = v.Taint.StateOf(RegisterAddress(dst, uint8(i)))
	}
	v.Regs[dst] = result
	for i := 0; i < 8; i++ {
		addr := RegisterAddress(dst, uint8(i))
		switch {
		case i >= width:
			v.Taint.SetState(addr, Clean)
		case toBigEndian:
			v.Taint.SetState(addr, old[width-1-i])
		default:
			v.Taint.SetState(addr, old[i])
		}
	}
	return nil
}

// mulHi64Signed computes the high 64 bits of the signed 128-bit product
// of a and b.
func mulHi64Signed(a, b int64) int64 {
	product := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	if product.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		product.Add(product, mod)
	}
	hi := new(big.Int).Rsh(product, 64)
	return int64(hi.Uint64())
}

// execPQR handles the extended multiply/divide/remainder class.
func (v *VM) execPQR(instr Instruction, version Version) *Fault {
	pc := v.Regs[RegPC]
	if !version.EnablePQR() {
		return newFault(UnsupportedInstruction, pc)
	}
	dst := instr.Dst()
	isReg := instr.Opcode&srcReg != 0
	var operand uint64
	if isReg {
		operand = v.Regs[instr.Src()]
	} else {
		operand = uint64(int64(instr.Immediate))
	}
	dstVal := v.Regs[dst]
	opByte := instr.Opcode &^ srcReg

	var result uint64
	switch opByte {
	case Lmul32Imm:
		result = uint64(uint32(dstVal) * uint32(operand))
	case Lmul64Imm:
		result = dstVal * operand
	case Uhmul64Imm:
		hi, _ := bits.Mul64(dstVal, operand)
		result = hi
	case Shmul64Imm:
		result = uint64(mulHi64Signed(int64(dstVal), int64(operand)))
	case Udiv32Imm:
		o := uint32(operand)
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		result = uint64(uint32(dstVal) / o)
	case Udiv64Imm:
		if operand == 0 {
			return newFault(DivideByZero, pc)
		}
		result = dstVal / operand
	case Urem32Imm:
		o := uint32(operand)
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		result = uint64(uint32(dstVal) % o)
	case Urem64Imm:
		if operand == 0 {
			return newFault(DivideByZero, pc)
		}
		result = dstVal % operand
	case Sdiv32Imm:
		o := int32(uint32(operand))
		d := int32(uint32(dstVal))
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		if d == math.MinInt32 && o == -1 {
			return newFault(DivideOverflow, pc)
		}
		result = uint64(uint32(d / o))
	case Sdiv64Imm:
		o := int64(operand)
		d := int64(dstVal)
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		if d == math.MinInt64 && o == -1 {
			return newFault(DivideOverflow, pc)
		}
		result = uint64(d / o)
	case Srem32Imm:
		o := int32(uint32(operand))
		d := int32(uint32(dstVal))
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		if d == math.MinInt32 && o == -1 {
			return newFault(DivideOverflow, pc)
		}
		result = uint64(uint32(d % o))
	case Srem64Imm:
		o := int64(operand)
		d := int64(dstVal)
		if o == 0 {
			return newFault(DivideByZero, pc)
		}
		if d == math.MinInt64 && o == -1 {
			return newFault(DivideOverflow, pc)
		}
		result = uint64(d % o)
	default:
		return newFault(InvalidInstruction, pc)
	}
	v.Regs[dst] = result
	return nil
}

// execLoad handles LD_*_REG and its compact move_memory_instruction_classes
// counterparts: addr = reg[src] + sign_extend(offset); load width bytes;
// zero-extend into reg[dst]; propagate taint from memory to dst.
func (v *VM) execLoad(instr Instruction, width Width) *Fault {
	pc := v.Regs[RegPC]
	addr := v.Regs[instr.Src()] + uint64(int64(instr.Offset))
	val, fault := v.Mem.LoadWidth(addr, width)
	if fault != nil {
		fault.Pc = pc
		return fault
	}
	dst := instr.Dst()
	v.Regs[dst] = val

	ptrAddr := pc * 8
	memAddrs := MemoryAddresses(addr, uint8(width))
	dstAddrs := RegisterAddresses(dst, uint8(width))
	v.Taint.PropagateVector(ptrAddr, instr.Opcode, memAddrs, dstAddrs)
	if v.Instr != nil {
		observed := leBytes(val)
		for i := range memAddrs {
			v.Instr.RecordPropagation(ptrAddr, instr.Opcode, memAddrs[i], dstAddrs[i], observed[i])
		}
	}
	return nil
}

// execStoreImm handles ST_*_IMM and its compact counterparts: the stored
// bytes are always clean, since they originate from the instruction
// stream rather than a register.
func (v *VM) execStoreImm(instr Instruction, width Width) *Fault {
	pc := v.Regs[RegPC]
	addr := v.Regs[instr.Dst()] + uint64(int64(instr.Offset))
	val := uint64(uint32(instr.Immediate))
	if fault := v.Mem.StoreWidth(addr, val, width); fault != nil {
		fault.Pc = pc
		return fault
	}
	v.Taint.ClearVector(MemoryAddresses(addr, uint8(width)))
	return nil
}

// execStoreReg handles ST_*_REG and its compact counterparts: taint
// propagates from the source register's bytes to the written memory.
func (v *VM) execStoreReg(instr Instruction, width Width) *Fault {
	pc := v.Regs[RegPC]
	addr := v.Regs[instr.Dst()] + uint64(int64(instr.Offset))
	val := v.Regs[instr.Src()]
	if fault := v.Mem.StoreWidth(addr, val, width); fault != nil {
		fault.Pc = pc
		return fault
	}
	ptrAddr := pc * 8
	srcAddrs := RegisterAddresses(instr.Src(), uint8(width))
	memAddrs := MemoryAddresses(addr, uint8(width))
	v.Taint.PropagateVector(ptrAddr, instr.Opcode, srcAddrs, memAddrs)
	if v.Instr != nil {
		observed := leBytes(val)
		for i := range srcAddrs {
			v.Instr.RecordPropagation(ptrAddr, instr.Opcode, srcAddrs[i], memAddrs[i], observed[i])
		}
	}
	return nil
}

// execJumpCond evaluates a conditional jump's predicate, records the
// comparison's taint facts over 8 little-endian bytes regardless of
// whether the branch is taken, and returns the resolved next pc.
func (v *VM) execJumpCond(instr Instruction) (*Fault, uint64) {
	pc := v.Regs[RegPC]
	dst := instr.Dst()
	isReg := instr.Opcode&srcReg != 0
	dstVal := v.Regs[dst]
	var srcVal uint64
	if isReg {
		srcVal = v.Regs[instr.Src()]
	} else {
		srcVal = uint64(int64(instr.Immediate))
	}

	var taken bool
	switch instr.Opcode &^ srcReg {
	case JeqImm:
		taken = dstVal == srcVal
	case JgtImm:
		taken = dstVal > srcVal
	case JgeImm:
		taken = dstVal >= srcVal
	case JsetImm:
		taken = dstVal&srcVal != 0
	case JneImm:
		taken = dstVal != srcVal
	case JsgtImm:
		taken = int64(dstVal) > int64(srcVal)
	case JsgeImm:
		taken = int64(dstVal) >= int64(srcVal)
	case JltImm:
		taken = dstVal < srcVal
	case JleImm:
		taken = dstVal <= srcVal
	case JsltImm:
		taken = int64(dstVal) < int64(srcVal)
	case JsleImm:
		taken = int64(dstVal) <= int64(srcVal)
	default:
		return newFault(InvalidInstruction, pc), 0
	}

	dstAddrs := RegisterAddresses(dst, 8)
	dstBytes := leBytes(dstVal)
	before := len(v.Taint.Records())
	if isReg {
		srcAddrs := RegisterAddresses(instr.Src(), 8)
		v.Taint.RecordRegCompare(instr.Opcode, srcAddrs, leBytes(srcVal), dstAddrs, dstBytes)
	} else {
		v.Taint.RecordImmCompare(instr.Opcode, leBytes(srcVal), dstAddrs, dstBytes)
	}
	if v.Instr != nil {
		for _, rec := range v.Taint.Records()[before:] {
			v.Instr.RecordCompare(rec)
		}
	}

	next := pc + 1
	if taken {
		next = uint64(int64(pc) + 1 + int64(instr.Offset))
	}
	return nil, next
}

// execCallReg resolves and invokes CALL_REG: the target register is
// chosen per dialect, its value is translated to a pc, a frame is
// pushed, and under static-syscalls the resulting pc must be a
// registered function.
func (v *VM) execCallReg(instr Instruction, version Version) (uint64, *Fault) {
	pc := v.Regs[RegPC]
	var targetReg uint8
	if version.CallxUsesSrcReg() {
		targetReg = instr.Src()
	} else {
		targetReg = uint8(instr.Immediate)
	}
	if int(targetReg) >= NumRegisters {
		return 0, newFault(InvalidInstruction, pc)
	}
	targetAddr := v.Regs[targetReg]
	textBase, text := v.Exe.TextBytes()
	if targetAddr < textBase {
		return 0, newFault(CallOutsideTextSegment, pc)
	}
	targetPC := (targetAddr - textBase) / 8
	if targetPC*8 >= uint64(len(text)) {
		return 0, newFault(CallOutsideTextSegment, pc)
	}
	if version.StaticSyscalls() {
		if _, ok := v.Exe.FunctionRegistry().LookupByKey(uint32(targetPC)); !ok {
			return 0, newFault(UnsupportedInstruction, pc)
		}
	}
	if fault := v.Calls.PushFrame(&v.Regs, pc+1, v.Exe.Config(), version, pc); fault != nil {
		return 0, fault
	}
	return targetPC, nil
}

// execCallImm resolves CALL_IMM: first as a BPF-to-BPF call via the
// executable's function registry, keyed by the dialect's own
// pc-relative target calculation; otherwise, under non-static-syscalls
// dialects, as a syscall via the loader.
func (v *VM) execCallImm(instr Instruction, version Version) (uint64, *Fault) {
	pc := v.Regs[RegPC]
	target := uint32(v.Exe.CalculateCallImmTargetPC(pc, instr.Immediate))
	if fn, ok := v.Exe.FunctionRegistry().LookupByKey(target); ok {
		_, text := v.Exe.TextBytes()
		if fn.PC*8 >= uint64(len(text)) {
			return 0, newFault(CallOutsideTextSegment, pc)
		}
		if fault := v.Calls.PushFrame(&v.Regs, pc+1, v.Exe.Config(), version, pc); fault != nil {
			return 0, fault
		}
		return fn.PC, nil
	}
	if version.StaticSyscalls() {
		return 0, newFault(UnsupportedInstruction, pc)
	}
	entry, ok := v.Exe.Loader().LookupByKey(uint32(instr.Immediate))
	if !ok {
		return 0, newFault(UnsupportedInstruction, pc)
	}
	result, err := entry.Fn(v, v.Regs[1], v.Regs[2], v.Regs[3], v.Regs[4], v.Regs[5])
	if err != nil {
		return 0, wrapFault(UnsupportedInstruction, pc, err, "syscall %s", entry.Name)
	}
	v.Regs[0] = result
	return pc + 1, nil
}

// execSyscall handles SYSCALL, legal only under static-syscalls
// dialects: the immediate names a builtin directly.
func (v *VM) execSyscall(instr Instruction, version Version) *Fault {
	pc := v.Regs[RegPC]
	if !version.StaticSyscalls() {
		return newFault(UnsupportedInstruction, pc)
	}
	entry, ok := v.Exe.Loader().LookupByKey(uint32(instr.Immediate))
	if !ok {
		return newFault(UnsupportedInstruction, pc)
	}
	result, err := entry.Fn(v, v.Regs[1], v.Regs[2], v.Regs[3], v.Regs[4], v.Regs[5])
	if err != nil {
		return wrapFault(UnsupportedInstruction, pc, err, "syscall %s", entry.Name)
	}
	v.Regs[0] = result
	return nil
}

// execReturn handles RETURN/EXIT: at call depth zero the program
// terminates with Ok(reg[0]); otherwise the frame is popped and
// execution resumes at its recorded target pc.
func (v *VM) execReturn(instr Instruction) (uint64, bool, *Fault) {
	pc := v.Regs[RegPC]
	if v.Calls.Depth() == 0 {
		v.result = ProgramResult{Value: v.Regs[0]}
		return 0, true, nil
	}
	_, text := v.Exe.TextBytes()
	target := v.Calls.PopFrame(&v.Regs)
	if target*8 >= uint64(len(text)) {
		return 0, false, newFault(CallOutsideTextSegment, pc)
	}
	return target, false, nil
}
