package vm

// ContextObject is the contract the VM driver consults for instruction
// tracing and budget accounting.
type ContextObject interface {
	Trace(regs [NumRegisters]uint64)
	Consume(amount uint64)
	GetRemaining() uint64
}

// MeteredContext is a ready-to-use ContextObject that enforces a fixed
// instruction budget and records every traced register snapshot, the
// shape a test harness or the cmd-line driver needs without having to
// implement the interface itself.
type MeteredContext struct {
	remaining uint64
	traces    [][NumRegisters]uint64
}

// NewMeteredContext allocates a context with the given instruction
// budget.
func NewMeteredContext(budget uint64) *MeteredContext {
	return &MeteredContext{remaining: budget}
}

func (c *MeteredContext) Trace(regs [NumRegisters]uint64) {
	c.traces = append(c.traces, regs)
}

func (c *MeteredContext) Consume(amount uint64) {
	if amount > c.remaining {
		c.remaining = 0
		return
	}
	c.remaining -= amount
}

func (c *MeteredContext) GetRemaining() uint64 { return c.remaining }

// Traces returns every register snapshot recorded via Trace.
func (c *MeteredContext) Traces() [][NumRegisters]uint64 { return c.traces }
