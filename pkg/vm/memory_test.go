package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMapping(t *testing.T) *Mapping {
	t.Helper()
	regions := []Region{
		{Name: "stack", VMAddr: StackVMAddr, Host: make([]byte, 256), Writable: true},
		{Name: "text", VMAddr: ProgramTextVMAddr, Host: make([]byte, 64), Writable: false},
	}
	return NewMapping(regions, false)
}

func TestMappingStoreLoadRoundTrip(t *testing.T) {
	m := newTestMapping(t)
	require.Nil(t, m.Store64(StackVMAddr+8, 0xdeadbeefcafef00d))
	got, fault := m.Load64(StackVMAddr + 8)
	require.Nil(t, fault)
	require.Equal(t, uint64(0xdeadbeefcafef00d), got)
}

func TestMappingOutOfBoundsFaults(t *testing.T) {
	m := newTestMapping(t)
	_, fault := m.Load64(StackVMAddr + 250)
	require.NotNil(t, fault)
	require.Equal(t, AccessViolation, fault.Kind)
}

func TestMappingWriteToReadOnlyFaults(t *testing.T) {
	m := newTestMapping(t)
	fault := m.Store32(ProgramTextVMAddr, 1)
	require.NotNil(t, fault)
	require.Equal(t, AccessViolation, fault.Kind)
}

func TestMappingWidthDispatch(t *testing.T) {
	m := newTestMapping(t)
	require.Nil(t, m.StoreWidth(StackVMAddr, 0xabcd, WidthHalf))
	v, fault := m.LoadWidth(StackVMAddr, WidthHalf)
	require.Nil(t, fault)
	require.Equal(t, uint64(0xabcd), v)
}

func TestMappingIdentityMode(t *testing.T) {
	host := make([]byte, 16)
	m := NewMapping([]Region{{Name: "flat", VMAddr: 0, Host: host, Writable: true}}, true)
	require.Nil(t, m.Store8(4, 0x42))
	require.Equal(t, byte(0x42), host[4])
}
