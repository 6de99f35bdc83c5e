package main

import (
	"flag"
	"os"

	"github.com/rjstrand/sbpf/pkg/vm"
	"github.com/sirupsen/logrus"
)

var (
	flagFilename = flag.String("filename", "", "Path to a raw sBPF program text file")
	flagEntry    = flag.Uint64("entry", 0, "Entrypoint instruction offset")
	flagBudget   = flag.Uint64("budget", 1_000_000, "Instruction meter budget")
	flagDialect  = flag.Uint("dialect", uint(vm.VersionV3), "Dialect version (0-3)")
	flagVerbose  = flag.Bool("v", false, "Log every traced control-flow edge")
)

func main() {
	flag.Parse()
	log := logrus.New()
	if *flagFilename == "" {
		log.Fatal("please specify -filename")
	}

	text, err := os.ReadFile(*flagFilename)
	if err != nil {
		log.WithError(err).Fatal("reading program text")
	}

	cfg := vm.DefaultConfig()
	exe := vm.NewExecutable(text, *flagEntry, cfg, vm.Version(*flagDialect))

	stack := make([]byte, cfg.StackFrameSize*cfg.MaxCallDepth*2)
	heap := make([]byte, 256*1024)
	input := make([]byte, 64*1024)
	regions := []vm.Region{
		{Name: "text", VMAddr: vm.ProgramTextVMAddr, Host: text, Writable: false},
		{Name: "stack", VMAddr: vm.StackVMAddr, Host: stack, Writable: true},
		{Name: "heap", VMAddr: vm.HeapVMAddr, Host: heap, Writable: true},
		{Name: "input", VMAddr: vm.InputVMAddr, Host: input, Writable: true},
	}

	ctx := vm.NewMeteredContext(*flagBudget)
	instr := vm.NewDefaultInstrumenter()
	if *flagVerbose {
		log.SetLevel(logrus.DebugLevel)
		instr.Logger = log
	} else {
		instr.Logger = nil
	}

	machine := vm.NewVM(exe, regions, ctx, instr)
	executed, result := machine.ExecuteProgram()

	log.WithFields(logrus.Fields{
		"executed": executed,
		"result":   result.String(),
		"edges":    len(instr.Edges),
	}).Info("program finished")

	if !result.Ok() {
		os.Exit(1)
	}
}
