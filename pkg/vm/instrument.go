package vm

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// Instrumenter is the external contract a fuzzer harness attaches to a
// VM. The interpreter always maintains its own Engine and JumpTracer as
// the authoritative core state (components D and E); an attached
// Instrumenter is a sibling object notified by indirection alongside
// that state, never an owner of it; it may be nil.
type Instrumenter interface {
	RecordEdge(from, to uint64)
	RecordPropagation(ptrAddr uint64, opcode uint8, from, to UnifiedAddress, observed byte)
	RecordCompare(rec InstructionRecord)
	SetSemanticInput(m SemanticMapping)
	IncrementVMDepth()
}

// DefaultInstrumenter is a ready-to-use Instrumenter that mirrors the
// core's own taint/jump state into a second, independently readable
// copy plus the parsed semantic-input mapping, for a harness that wants
// to inspect results without reaching into VM internals.
type DefaultInstrumenter struct {
	Edges         []JumpRecord
	Propagations  []PropagationRecord
	Compares      []InstructionRecord
	SemanticInput SemanticMapping
	VMDepth       int

	// Logger receives one debug line per recorded edge when non-nil,
	// following the structured-logging idiom used across the sBPF
	// tooling ecosystem rather than ad hoc fmt.Printf calls.
	Logger *logrus.Logger
}

// PropagationRecord is a standalone copy of one taint-propagation
// notification, kept for harnesses that want a flat history rather than
// re-deriving it from the current Engine state.
type PropagationRecord struct {
	PtrAddr  uint64
	Opcode   uint8
	From     UnifiedAddress
	To       UnifiedAddress
	Observed byte
}

// NewDefaultInstrumenter builds an instrumenter with a fresh logrus
// logger at its default Info level, so the Debug-level edge lines are
// not emitted; callers that want them should set a Logger at Debug level.
func NewDefaultInstrumenter() *DefaultInstrumenter {
	return &DefaultInstrumenter{Logger: logrus.New()}
}

func (d *DefaultInstrumenter) RecordEdge(from, to uint64) {
	d.Edges = append(d.Edges, JumpRecord{From: from, To: to})
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("edge")
	}
}

func (d *DefaultInstrumenter) RecordPropagation(ptrAddr uint64, opcode uint8, from, to UnifiedAddress, observed byte) {
	d.Propagations = append(d.Propagations, PropagationRecord{
		PtrAddr: ptrAddr, Opcode: opcode, From: from, To: to, Observed: observed,
	})
}

func (d *DefaultInstrumenter) RecordCompare(rec InstructionRecord) {
	d.Compares = append(d.Compares, rec)
}

func (d *DefaultInstrumenter) SetSemanticInput(m SemanticMapping) {
	d.SemanticInput = m
}

func (d *DefaultInstrumenter) IncrementVMDepth() {
	d.VMDepth++
}

// Dump renders the instrumenter's accumulated state for troubleshooting,
// in the same spirit as coverbee dumping verifier logs via go-spew
// rather than a hand-rolled formatter.
func (d *DefaultInstrumenter) Dump() string {
	return spew.Sdump(d)
}
