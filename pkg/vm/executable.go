package vm

// Config recognizes the options the interpreter and VM driver consult.
// Defaults mirror the values the upstream sBPF runtime ships.
type Config struct {
	MaxCallDepth             uint64
	StackFrameSize           uint64
	EnableAddressTranslation bool
	EnableStackFrameGaps     bool
	EnableInstructionMeter   bool
	EnableInstructionTracing bool
	EnabledDialectRange      [2]Version
	AlignedMemoryMapping     bool
}

// DefaultConfig returns the configuration the spec names as defaults.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:             64,
		StackFrameSize:           4096,
		EnableAddressTranslation: true,
		EnableStackFrameGaps:     true,
		EnableInstructionMeter:   true,
		EnableInstructionTracing: false,
		EnabledDialectRange:      [2]Version{VersionV0, VersionV3},
		AlignedMemoryMapping:     true,
	}
}

// FunctionEntry names one BPF-to-BPF callable function.
type FunctionEntry struct {
	Name string
	PC   uint64
}

// FunctionRegistry resolves BPF-to-BPF call targets. The interpreter
// keys its lookups by target pc: for CALL_IMM the pc that
// CalculateCallImmTargetPC derives from the immediate, and for CALL_REG
// (under static-syscalls dialects) the pc of the register's target.
type FunctionRegistry struct {
	byKey map[uint32]FunctionEntry
}

// NewFunctionRegistry allocates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byKey: make(map[uint32]FunctionEntry)}
}

// Register adds an entry under key.
func (r *FunctionRegistry) Register(key uint32, name string, pc uint64) {
	r.byKey[key] = FunctionEntry{Name: name, PC: pc}
}

// LookupByKey resolves key to a function entry, if registered.
func (r *FunctionRegistry) LookupByKey(key uint32) (FunctionEntry, bool) {
	e, ok := r.byKey[key]
	return e, ok
}

// BuiltinFunction is a host-implemented syscall, invoked with registers
// 1 through 5 and returning either a value for register 0 or an error
// that halts the interpreter.
type BuiltinFunction func(vm *VM, r1, r2, r3, r4, r5 uint64) (uint64, error)

// BuiltinEntry names one registered syscall.
type BuiltinEntry struct {
	Name string
	Fn   BuiltinFunction
}

// Loader resolves builtins by key: for SYSCALL under static-syscalls
// dialects, and for CALL_IMM under the other dialects, where CALL_IMM
// may name either a BPF-to-BPF call or a builtin.
type Loader struct {
	byKey map[uint32]BuiltinEntry
}

// NewLoader allocates an empty builtin registry.
func NewLoader() *Loader {
	return &Loader{byKey: make(map[uint32]BuiltinEntry)}
}

// RegisterBuiltin adds a builtin under key.
func (l *Loader) RegisterBuiltin(key uint32, name string, fn BuiltinFunction) {
	l.byKey[key] = BuiltinEntry{Name: name, Fn: fn}
}

// LookupByKey resolves key to a builtin entry, if registered.
func (l *Loader) LookupByKey(key uint32) (BuiltinEntry, bool) {
	e, ok := l.byKey[key]
	return e, ok
}

// Executable is the contract the interpreter consumes: program text,
// entrypoint, configuration, dialect, and the two call registries.
type Executable struct {
	textVMAddr  uint64
	text        []byte
	entrypoint  uint64
	config      Config
	version     Version
	functions   *FunctionRegistry
	loader      *Loader
}

// NewExecutable builds an Executable over a text section already
// measured in whole 8-byte instruction words.
func NewExecutable(text []byte, entrypoint uint64, cfg Config, version Version) *Executable {
	return &Executable{
		textVMAddr: ProgramTextVMAddr,
		text:       text,
		entrypoint: entrypoint,
		config:     cfg,
		version:    version,
		functions:  NewFunctionRegistry(),
		loader:     NewLoader(),
	}
}

// TextBytes returns the program text region's guest base and backing
// bytes.
func (e *Executable) TextBytes() (uint64, []byte) { return e.textVMAddr, e.text }

// EntrypointInstructionOffset returns the entry pc, in instructions.
func (e *Executable) EntrypointInstructionOffset() uint64 { return e.entrypoint }

// Config returns the executable's configuration.
func (e *Executable) Config() Config { return e.config }

// SBPFVersion returns the executable's dialect.
func (e *Executable) SBPFVersion() Version { return e.version }

// FunctionRegistry returns the BPF-to-BPF call registry.
func (e *Executable) FunctionRegistry() *FunctionRegistry { return e.functions }

// Loader returns the syscall loader.
func (e *Executable) Loader() *Loader { return e.loader }

// CalculateCallImmTargetPC resolves a CALL_IMM immediate to an absolute
// pc. Classic dialects encode the target as a pc-relative displacement
// from the instruction following the call; this is the one piece of
// call-target arithmetic the dialect is free to redefine.
func (e *Executable) CalculateCallImmTargetPC(currentPC uint64, imm int32) uint32 {
	return uint32(int64(currentPC) + 1 + int64(imm))
}
