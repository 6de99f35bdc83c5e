package vm

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Canonical guest base addresses. Each region lives at a 4 GiB-aligned
// boundary so a bounds check can often be short-circuited by comparing
// the high bits of the address, the same layout the upstream sBPF
// runtime uses for its four canonical regions.
const (
	ProgramTextVMAddr uint64 = 0x100000000
	StackVMAddr       uint64 = 0x200000000
	HeapVMAddr        uint64 = 0x300000000
	InputVMAddr       uint64 = 0x400000000
)

// Region is one non-overlapping slice of guest address space backed by
// host memory.
type Region struct {
	Name     string
	VMAddr   uint64
	Host     []byte
	Writable bool
}

func (r *Region) contains(addr uint64, width uint64) bool {
	if addr < r.VMAddr {
		return false
	}
	offset := addr - r.VMAddr
	if offset > uint64(len(r.Host)) {
		return false
	}
	return width <= uint64(len(r.Host))-offset
}

// Mapping translates guest virtual addresses to host byte ranges across
// a fixed set of regions, or reports an AccessViolation fault.
type Mapping struct {
	regions  []Region
	identity bool
}

// NewMapping builds a mapping over the given regions. When identity is
// true, translation is disabled: every access is resolved against
// region 0 alone, as an offset from its VMAddr (with a region 0 based at
// guest address 0, guest addresses are the host byte offsets).
func NewMapping(regions []Region, identity bool) *Mapping {
	return &Mapping{regions: regions, identity: identity}
}

func (m *Mapping) find(addr uint64, width uint64) (*Region, uint64, *Fault) {
	if m.identity {
		r := &m.regions[0]
		if !r.contains(addr, width) {
			return nil, 0, wrapFault(AccessViolation, 0, errors.New("out of bounds"),
				"identity load addr=%#x width=%d", addr, width)
		}
		return r, addr - r.VMAddr, nil
	}
	for i := range m.regions {
		r := &m.regions[i]
		if r.contains(addr, width) {
			return r, addr - r.VMAddr, nil
		}
	}
	return nil, 0, wrapFault(AccessViolation, 0, errors.New("no region contains range"),
		"load addr=%#x width=%d", addr, width)
}

// RegionAt returns the region whose guest base address is exactly
// vmAddr, used by callers that parse a whole region's contents directly
// (the input-layout parser) rather than issuing individual loads.
func (m *Mapping) RegionAt(vmAddr uint64) (*Region, bool) {
	for i := range m.regions {
		if m.regions[i].VMAddr == vmAddr {
			return &m.regions[i], true
		}
	}
	return nil, false
}

// LoadBytes reads width bytes from guest addr into a freshly allocated
// slice.
func (m *Mapping) LoadBytes(addr uint64, width uint64) ([]byte, *Fault) {
	r, offset, fault := m.find(addr, width)
	if fault != nil {
		return nil, fault
	}
	out := make([]byte, width)
	copy(out, r.Host[offset:offset+width])
	return out, nil
}

// StoreBytes writes data to guest addr, failing if the target region is
// not writable or the range straddles region bounds.
func (m *Mapping) StoreBytes(addr uint64, data []byte) *Fault {
	r, offset, fault := m.find(addr, uint64(len(data)))
	if fault != nil {
		return fault
	}
	if !r.Writable {
		return wrapFault(AccessViolation, 0, errors.New("region not writable"),
			"store addr=%#x width=%d region=%s", addr, len(data), r.Name)
	}
	copy(r.Host[offset:offset+uint64(len(data))], data)
	return nil
}

// Load8/16/32/64 read a little-endian unsigned integer of the named
// width from guest memory.

func (m *Mapping) Load8(addr uint64) (uint8, *Fault) {
	b, f := m.LoadBytes(addr, 1)
	if f != nil {
		return 0, f
	}
	return b[0], nil
}

func (m *Mapping) Load16(addr uint64) (uint16, *Fault) {
	b, f := m.LoadBytes(addr, 2)
	if f != nil {
		return 0, f
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Mapping) Load32(addr uint64) (uint32, *Fault) {
	b, f := m.LoadBytes(addr, 4)
	if f != nil {
		return 0, f
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Mapping) Load64(addr uint64) (uint64, *Fault) {
	b, f := m.LoadBytes(addr, 8)
	if f != nil {
		return 0, f
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Store8/16/32/64 write a little-endian unsigned integer of the named
// width to guest memory.

func (m *Mapping) Store8(addr uint64, v uint8) *Fault {
	return m.StoreBytes(addr, []byte{v})
}

func (m *Mapping) Store16(addr uint64, v uint16) *Fault {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return m.StoreBytes(addr, b)
}

func (m *Mapping) Store32(addr uint64, v uint32) *Fault {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return m.StoreBytes(addr, b)
}

func (m *Mapping) Store64(addr uint64, v uint64) *Fault {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return m.StoreBytes(addr, b)
}

// LoadWidth and StoreWidth dispatch on a runtime Width value, used by
// the interpreter's memory-instruction handlers which are parameterized
// over width at decode time.

func (m *Mapping) LoadWidth(addr uint64, w Width) (uint64, *Fault) {
	switch w {
	case WidthByte:
		v, f := m.Load8(addr)
		return uint64(v), f
	case WidthHalf:
		v, f := m.Load16(addr)
		return uint64(v), f
	case WidthWord:
		v, f := m.Load32(addr)
		return uint64(v), f
	case WidthDWord:
		return m.Load64(addr)
	default:
		return 0, newFault(InvalidInstruction, 0)
	}
}

func (m *Mapping) StoreWidth(addr uint64, v uint64, w Width) *Fault {
	switch w {
	case WidthByte:
		return m.Store8(addr, uint8(v))
	case WidthHalf:
		return m.Store16(addr, uint16(v))
	case WidthWord:
		return m.Store32(addr, uint32(v))
	case WidthDWord:
		return m.Store64(addr, v)
	default:
		return newFault(InvalidInstruction, 0)
	}
}
