package vm

import "encoding/binary"

// AddressKind tags the three variants a UnifiedAddress can take.
type AddressKind uint8

const (
	// RegisterByte identifies one byte of one register slot.
	RegisterByte AddressKind = iota
	// MemoryByte identifies one byte of guest memory.
	MemoryByte
	// ImmediateSentinel identifies an immediate operand; it is never
	// stored in taint state, only used to record comparison facts.
	ImmediateSentinel
)

// UnifiedAddress names any byte the taint engine tracks. It is
// comparable, so it can be used directly as a map key.
type UnifiedAddress struct {
	Kind   AddressKind
	Reg    uint8  // valid when Kind == RegisterByte
	Offset uint8  // byte offset within the register, when Kind == RegisterByte
	Addr   uint64 // guest address, when Kind == MemoryByte
}

// RegisterAddress names one byte of a register.
func RegisterAddress(reg, offset uint8) UnifiedAddress {
	return UnifiedAddress{Kind: RegisterByte, Reg: reg, Offset: offset}
}

// MemAddress names one byte of guest memory.
func MemAddress(addr uint64) UnifiedAddress {
	return UnifiedAddress{Kind: MemoryByte, Addr: addr}
}

// immediateAddress is the sentinel used when recording comparisons
// against an immediate operand.
var immediateAddress = UnifiedAddress{Kind: ImmediateSentinel}

// RegisterAddresses produces the width consecutive register-byte
// addresses starting at byte offset 0 of reg.
func RegisterAddresses(reg uint8, width uint8) []UnifiedAddress {
	out := make([]UnifiedAddress, width)
	for i := uint8(0); i < width; i++ {
		out[i] = RegisterAddress(reg, i)
	}
	return out
}

// MemoryAddresses produces the width consecutive memory-byte addresses
// starting at base.
func MemoryAddresses(base uint64, width uint8) []UnifiedAddress {
	out := make([]UnifiedAddress, width)
	for i := uint8(0); i < width; i++ {
		out[i] = MemAddress(base + uint64(i))
	}
	return out
}

// TaintState is Clean or Tainted(origin). The zero value is Clean, so a
// map lookup miss is equivalent to Clean without an explicit entry.
type TaintState struct {
	Tainted bool
	Origin  uint32
}

// Clean is the untainted state.
var Clean = TaintState{}

// Tainted builds a tainted state with the given origin.
func Tainted(origin uint32) TaintState {
	return TaintState{Tainted: true, Origin: origin}
}

// AddressRecord bundles a unified address with the byte value and taint
// state observed at the time of a recorded comparison.
type AddressRecord struct {
	Address UnifiedAddress
	Value   byte
	Taint   TaintState
}

// InstructionRecord is a recorded comparison fact: the comparing opcode
// plus address-records for its source and destination operands.
type InstructionRecord struct {
	Opcode uint8
	Source AddressRecord
	Dest   AddressRecord
}

// Engine is the byte-addressed taint map plus the comparison log the
// conditional-jump handlers append to. A two-tier backing structure
// (dense array for the 12x8 register space, sparse map for memory)
// would improve locality over a single map; the flat map below is
// equivalent in behavior and kept for clarity given the engine's
// comparatively small share of the interpreter's hot path.
type Engine struct {
	state map[UnifiedAddress]TaintState
	log   []InstructionRecord
}

// NewEngine allocates an empty taint engine.
func NewEngine() *Engine {
	return &Engine{state: make(map[UnifiedAddress]TaintState)}
}

// StateOf returns the taint state recorded for addr, or Clean if absent.
func (e *Engine) StateOf(addr UnifiedAddress) TaintState {
	return e.state[addr]
}

// Clear removes taint from a single address.
func (e *Engine) Clear(addr UnifiedAddress) {
	delete(e.state, addr)
}

// SetState assigns addr's taint directly, used by handlers (byte-order
// conversion) that permute existing taint rather than propagate it from
// a distinct source.
func (e *Engine) SetState(addr UnifiedAddress, st TaintState) {
	if st.Tainted {
		e.state[addr] = st
		return
	}
	e.Clear(addr)
}

// ClearVector removes taint from every address in addrs.
func (e *Engine) ClearVector(addrs []UnifiedAddress) {
	for _, a := range addrs {
		e.Clear(a)
	}
}

// Propagate sets the taint of to as a function of the taint of from: a
// tainted source taints the destination with the same origin; a clean
// source clears the destination. ptrAddr (the instruction's own
// location in program text) and opcode are not stored by the engine;
// the interpreter reports them to an attached Instrumenter through
// RecordPropagation.
func (e *Engine) Propagate(ptrAddr uint64, opcode uint8, from, to UnifiedAddress) {
	st := e.StateOf(from)
	if st.Tainted {
		e.state[to] = st
	} else {
		e.Clear(to)
	}
	_ = ptrAddr
	_ = opcode
}

// PropagateVector propagates taint pairwise across matching positions of
// froms and tos, used by the width-parameterized load/store/move
// handlers.
func (e *Engine) PropagateVector(ptrAddr uint64, opcode uint8, froms, tos []UnifiedAddress) {
	n := len(froms)
	if len(tos) < n {
		n = len(tos)
	}
	for i := 0; i < n; i++ {
		e.Propagate(ptrAddr, opcode, froms[i], tos[i])
	}
}

// RecordRegCompare inspects width byte positions of a register-vs-
// register (or register-vs-memory) comparison; for any position where
// either side is tainted, it appends an instruction record bundling
// both sides' address, observed byte and taint state.
func (e *Engine) RecordRegCompare(opcode uint8, srcAddrs []UnifiedAddress, srcBytes []byte, dstAddrs []UnifiedAddress, dstBytes []byte) {
	width := len(srcAddrs)
	if len(dstAddrs) < width {
		width = len(dstAddrs)
	}
	for i := 0; i < width; i++ {
		srcState := e.StateOf(srcAddrs[i])
		dstState := e.StateOf(dstAddrs[i])
		if !srcState.Tainted && !dstState.Tainted {
			continue
		}
		e.log = append(e.log, InstructionRecord{
			Opcode: opcode,
			Source: AddressRecord{Address: srcAddrs[i], Value: srcBytes[i], Taint: srcState},
			Dest:   AddressRecord{Address: dstAddrs[i], Value: dstBytes[i], Taint: dstState},
		})
	}
}

// RecordImmCompare is the symmetric case where the source operand is an
// immediate: its unified address is the Immediate sentinel and its
// taint is always Clean.
func (e *Engine) RecordImmCompare(opcode uint8, immBytes []byte, dstAddrs []UnifiedAddress, dstBytes []byte) {
	width := len(immBytes)
	if len(dstAddrs) < width {
		width = len(dstAddrs)
	}
	for i := 0; i < width; i++ {
		dstState := e.StateOf(dstAddrs[i])
		if !dstState.Tainted {
			continue
		}
		e.log = append(e.log, InstructionRecord{
			Opcode: opcode,
			Source: AddressRecord{Address: immediateAddress, Value: immBytes[i], Taint: Clean},
			Dest:   AddressRecord{Address: dstAddrs[i], Value: dstBytes[i], Taint: dstState},
		})
	}
}

// Records returns the accumulated comparison log.
func (e *Engine) Records() []InstructionRecord { return e.log }

// leBytes renders a uint64 as its 8-byte little-endian view, the
// canonical observed-byte representation used by comparison recording
// and load/store propagation.
func leBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
