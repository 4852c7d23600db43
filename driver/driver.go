// Package driver wires the assemble, link, and interp packages into
// the toolchain's single public entry point. It is the boundary the
// spec calls out as where external collaborators (a CLI, a session
// API, file I/O) live — this package itself stays free of flags and
// file handling.
package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/lookbusy1344/rv32im-sim/assemble"
	"github.com/lookbusy1344/rv32im-sim/interp"
	"github.com/lookbusy1344/rv32im-sim/link"
	"github.com/lookbusy1344/rv32im-sim/objunit"
)

// Config is the driver's external surface: one or more assembly
// sources, I/O wiring, and the execution limits/weights the spec's
// Config record names.
type Config struct {
	Sources []string // assembly source text, one unit per entry

	InputStream  io.Reader
	OutputStream io.Writer

	CacheEnabled       bool
	MaxCycles          uint64
	MaxStorage         int
	KeepDebugInfo      bool
	PrintInsts         bool
	InstructionWeights interp.Weights

	// ExternalRegs/ExternalArena let a caller supply borrowed buffers
	// instead of letting the driver allocate them.
	ExternalRegs  *[32]uint32
	ExternalArena []byte
}

// Result is what a caller gets back after a run completes: the cycle
// count plus the final machine state, useful for session-style
// callers (apisrv, traceview) that want registers/stats/exit code
// without re-running.
type Result struct {
	Cycles   uint64
	Machine  *interp.Machine
	ExitCode int32
}

// Simulate assembles every source, links the resulting units into one
// image, boots an interpreter over it, and runs to completion or
// error. This is the spec's one-call driver contract:
// `simulate(config) -> cycles`.
func Simulate(cfg Config) (Result, error) {
	if len(cfg.Sources) == 0 {
		return Result{}, fmt.Errorf("driver: no sources given")
	}

	units := make([]*objunit.Unit, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		name := fmt.Sprintf("unit%d.s", i)
		u, errs := assemble.Assemble(src, name)
		if len(errs) != 0 {
			return Result{}, fmt.Errorf("driver: assemble %s: %w", name, errs[0])
		}
		units = append(units, u)
	}

	img, err := link.Link(units)
	if err != nil {
		return Result{}, fmt.Errorf("driver: link: %w", err)
	}

	icfg := interp.Config{
		MaxCycles:     cfg.MaxCycles,
		MaxStorage:    cfg.MaxStorage,
		CacheEnabled:  cfg.CacheEnabled,
		KeepDebugInfo: cfg.KeepDebugInfo,
		Weights:       cfg.InstructionWeights,
		In:            cfg.InputStream,
		Out:           cfg.OutputStream,
		ExternalArena: cfg.ExternalArena,
		ExternalRegs:  cfg.ExternalRegs,
	}
	if icfg.In == nil {
		icfg.In = os.Stdin
	}
	if icfg.Out == nil {
		icfg.Out = os.Stdout
	}
	if icfg.Weights == (interp.Weights{}) {
		icfg.Weights = interp.DefaultWeights()
	}

	m := interp.New(img, icfg)
	cycles, err := m.Run()
	if err != nil {
		return Result{Cycles: cycles, Machine: m}, err
	}

	return Result{Cycles: cycles, Machine: m, ExitCode: int32(m.Regs[10])}, nil
}
