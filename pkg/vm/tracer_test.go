package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJumpTracerAppendsInOrder(t *testing.T) {
	tr := NewJumpTracer()
	tr.TraceJump(0, 1)
	tr.TraceJump(1, 5)
	tr.TraceJump(5, 5)

	log := tr.Log()
	require.Equal(t, []JumpRecord{
		{From: 0, To: 1},
		{From: 1, To: 5},
		{From: 5, To: 5},
	}, log)
}

func TestJumpTracerEmptyLog(t *testing.T) {
	tr := NewJumpTracer()
	require.Empty(t, tr.Log())
}
