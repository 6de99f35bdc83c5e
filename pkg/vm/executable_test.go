package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, uint64(64), cfg.MaxCallDepth)
	require.Equal(t, uint64(4096), cfg.StackFrameSize)
	require.True(t, cfg.EnableAddressTranslation)
	require.True(t, cfg.EnableStackFrameGaps)
	require.True(t, cfg.EnableInstructionMeter)
	require.False(t, cfg.EnableInstructionTracing)
	require.Equal(t, [2]Version{VersionV0, VersionV3}, cfg.EnabledDialectRange)
	require.True(t, cfg.AlignedMemoryMapping)
}

func TestFunctionRegistryLookup(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register(0xcafe, "entry", 4)

	e, ok := r.LookupByKey(0xcafe)
	require.True(t, ok)
	require.Equal(t, "entry", e.Name)
	require.Equal(t, uint64(4), e.PC)

	_, ok = r.LookupByKey(0xbeef)
	require.False(t, ok)
}

func TestLoaderLookup(t *testing.T) {
	l := NewLoader()
	l.RegisterBuiltin(1, "log", func(v *VM, r1, r2, r3, r4, r5 uint64) (uint64, error) {
		return r1 + r2, nil
	})

	e, ok := l.LookupByKey(1)
	require.True(t, ok)
	require.Equal(t, "log", e.Name)
	got, err := e.Fn(nil, 2, 3, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got)
}

func TestCalculateCallImmTargetPC(t *testing.T) {
	exe := NewExecutable(nil, 0, DefaultConfig(), VersionV0)
	got := exe.CalculateCallImmTargetPC(10, 5)
	require.Equal(t, uint32(16), got)

	got = exe.CalculateCallImmTargetPC(10, -3)
	require.Equal(t, uint32(8), got)
}

func TestExecutableAccessors(t *testing.T) {
	text := make([]byte, 16)
	exe := NewExecutable(text, 2, DefaultConfig(), VersionV2)

	base, got := exe.TextBytes()
	require.Equal(t, ProgramTextVMAddr, base)
	require.Equal(t, text, got)
	require.Equal(t, uint64(2), exe.EntrypointInstructionOffset())
	require.Equal(t, VersionV2, exe.SBPFVersion())
	require.NotNil(t, exe.FunctionRegistry())
	require.NotNil(t, exe.Loader())
}
