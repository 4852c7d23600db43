// Command rvsim is a thin flag-parsing front end over the driver
// package: load a config, assemble/link/run one or more RV32IM
// sources, and exit with the guest's exit code (printing it and the
// cycle count only under -verbose).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lookbusy1344/rv32im-sim/config"
	"github.com/lookbusy1344/rv32im-sim/driver"
	"github.com/lookbusy1344/rv32im-sim/interp"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to a TOML config file (default: platform config dir)")
		maxCycles   = flag.Uint64("max-cycles", 0, "Override the configured instruction budget (0 = use config)")
		noCache     = flag.Bool("no-cache", false, "Disable the cache model")
		debugInfo   = flag.Bool("debug", false, "Keep debug info (register/trace dump on error)")
		verbose     = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rvsim %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvsim [flags] file.s [file.s ...]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	sources := make([]string, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path) // #nosec G304 -- user-supplied source path
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
			os.Exit(1)
		}
		sources = append(sources, string(data))
	}

	maxCyclesVal := cfg.Execution.MaxCycles
	if *maxCycles > 0 {
		maxCyclesVal = *maxCycles
	}

	if *verbose {
		fmt.Printf("assembling %d source(s), max_cycles=%d, cache=%v\n", len(sources), maxCyclesVal, cfg.Execution.CacheEnabled && !*noCache)
	}

	res, err := driver.Simulate(driver.Config{
		Sources:       sources,
		OutputStream:  os.Stdout,
		InputStream:   os.Stdin,
		CacheEnabled:  cfg.Execution.CacheEnabled && !*noCache,
		MaxCycles:     maxCyclesVal,
		MaxStorage:    cfg.Execution.MaxStorage,
		KeepDebugInfo: cfg.Execution.KeepDebugInfo || *debugInfo,
		PrintInsts:    cfg.Execution.PrintInsts,
		InstructionWeights: interp.Weights{
			Simple:   cfg.Weights.Simple,
			Mul:      cfg.Weights.Mul,
			CacheHit: cfg.Weights.CacheHit,
			Branch:   cfg.Weights.Branch,
			Div:      cfg.Weights.Div,
			MemMiss:  cfg.Weights.MemMiss,
			LibcIO:   cfg.Weights.LibcIO,
			LibcMem:  cfg.Weights.LibcMem,
		},
	})
	if err != nil {
		if res.Machine != nil && (cfg.Execution.KeepDebugInfo || *debugInfo) {
			dumpDebugInfo(res.Machine)
		}
		fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("cycles=%d exit_code=%d\n", res.Cycles, res.ExitCode)
	}
	os.Exit(int(res.ExitCode))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func dumpDebugInfo(m *interp.Machine) {
	fmt.Fprintf(os.Stderr, "PC=0x%08x\n", m.PC)
	for i, r := range m.Regs {
		fmt.Fprintf(os.Stderr, "x%-2d=0x%08x ", i, r)
		if i%4 == 3 {
			fmt.Fprintln(os.Stderr)
		}
	}
	fmt.Fprintln(os.Stderr)
}
