// Package interp executes a linked Image on a simulated RV32IM core:
// a 32-register file, a byte-addressable arena, the memcache cache
// model, and the libc surrogate for host calls reached through the
// boot header's trampoline slots.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/lookbusy1344/rv32im-sim/instr"
	"github.com/lookbusy1344/rv32im-sim/libc"
	"github.com/lookbusy1344/rv32im-sim/link"
	"github.com/lookbusy1344/rv32im-sim/memcache"
)

// Weights assigns a cycle cost to each instruction/access category.
// Mirrors the TOML [weights] table.
type Weights struct {
	Simple   uint64
	Mul      uint64
	CacheHit uint64
	Branch   uint64
	Div      uint64
	MemMiss  uint64
	LibcIO   uint64
	LibcMem  uint64
}

// DefaultWeights returns the weight table used when a caller does not
// supply one (matches the default TOML [weights] table).
func DefaultWeights() Weights {
	return Weights{
		Simple: 1, Mul: 3, CacheHit: 1, Branch: 1,
		Div: 8, MemMiss: 4, LibcIO: 2, LibcMem: 1,
	}
}

// ioFuncs classifies libc surrogate calls for cycle weighting: the
// names listed are stdio-shaped; every other call (arena or heap
// manipulation) is weighted as a libc memory call.
var ioFuncs = map[string]bool{
	"puts": true, "printf": true, "sprintf": true,
	"scanf": true, "sscanf": true, "putchar": true,
}

// Config bundles everything a Machine needs beyond the linked image:
// limits, the cache toggle, debug tracing, and the I/O streams the
// libc surrogate reads and writes through.
type Config struct {
	MaxCycles     uint64
	MaxStorage    int
	CacheEnabled  bool
	KeepDebugInfo bool
	Weights       Weights
	In            io.Reader
	Out           io.Writer

	// ExternalArena and ExternalRegs let a caller supply its own
	// backing buffers instead of a freshly allocated arena/register
	// file (the spec's "external_regs?/external_arena?" driver
	// fields). When set, the Machine borrows them for the duration of
	// Run and writes the final register state back into ExternalRegs
	// on return.
	ExternalArena []byte
	ExternalRegs  *[32]uint32
}

// DefaultConfig returns sane defaults: a 1M instruction budget, a
// 512 MiB arena, the cache enabled, debug tracing off, stdin/stdout.
func DefaultConfig() Config {
	return Config{
		MaxCycles:    1_000_000,
		MaxStorage:   512 * 1024 * 1024,
		CacheEnabled: true,
		Weights:      DefaultWeights(),
		In:           os.Stdin,
		Out:          os.Stdout,
	}
}

// TimeoutError reports that the executed-instruction count exceeded
// the configured budget.
type TimeoutError struct {
	Limit uint64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("interp: instruction budget of %d exceeded", e.Limit)
}

// InvalidAddressError reports an access outside the arena, to the
// null page, or to a registered guard byte.
type InvalidAddressError struct {
	Addr   uint32
	Detail string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("interp: invalid address 0x%x: %s", e.Addr, e.Detail)
}

// Machine is one interpreter invocation's full state: registers, PC,
// arena, cache, heap bookkeeping, and optional debug tracing. A fresh
// Machine must be constructed per run; nothing here is safe to share
// across concurrent invocations.
type Machine struct {
	PC   int32
	Regs [32]uint32

	Arena []byte
	Pool  []*instr.Instruction
	Cache *memcache.Cache

	HeapPtr      uint32
	Malloced     map[uint32]bool
	InvalidAddrs map[uint32]bool

	cfg   Config
	stdin *bufio.Reader

	TotalInsts uint64
	Stats      Statistics
	Trace      *ExecutionTrace
}

// New constructs a Machine from a linked Image and boots it: image
// storage is copied to the front of the arena, the heap pointer is
// set to the end of the image, PC is reset to 0, and sp is set to the
// arena size (the spec's boot contract).
func New(img *link.Image, cfg Config) *Machine {
	if cfg.MaxStorage < len(img.Storage) {
		cfg.MaxStorage = len(img.Storage)
	}
	var arena []byte
	if cfg.ExternalArena != nil {
		arena = cfg.ExternalArena
	} else {
		arena = make([]byte, cfg.MaxStorage)
	}
	copy(arena, img.Storage)

	c := memcache.New()
	if !cfg.CacheEnabled {
		c.Disable()
	}

	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	cfg.In, cfg.Out = in, out

	m := &Machine{
		Arena:        arena,
		Pool:         img.Insts,
		Cache:        c,
		HeapPtr:      uint32(len(img.Storage)),
		Malloced:     make(map[uint32]bool),
		InvalidAddrs: make(map[uint32]bool),
		cfg:          cfg,
		stdin:        bufio.NewReader(in),
	}
	m.PC = 0
	m.Regs[2] = uint32(len(arena)) // sp
	if cfg.ExternalRegs != nil {
		m.Regs = *cfg.ExternalRegs
	}

	if cfg.KeepDebugInfo {
		m.Trace = NewExecutionTrace()
	}
	return m
}

// setReg writes a register, enforcing the x0-is-always-zero invariant.
func (m *Machine) setReg(idx int, val uint32) {
	if idx == 0 {
		return
	}
	m.Regs[idx] = val
}

// Run drives the guest program to completion: the spec's `while PC !=
// 8` loop. It returns the total weighted cycle count.
func (m *Machine) Run() (uint64, error) {
	if m.cfg.ExternalRegs != nil {
		defer func() { *m.cfg.ExternalRegs = m.Regs }()
	}
	for m.PC != 8 {
		if m.PC < 0 || int(m.PC) >= len(m.Arena) {
			return m.Stats.CycleTotal, &InvalidAddressError{Addr: uint32(m.PC), Detail: "PC outside arena"}
		}
		m.TotalInsts++
		if m.cfg.MaxCycles > 0 && m.TotalInsts > m.cfg.MaxCycles {
			return m.Stats.CycleTotal, &TimeoutError{Limit: m.cfg.MaxCycles}
		}
		m.Cache.Tick()

		if link.IsLibcTrampoline(int(m.PC)) {
			name, _ := link.LibcFuncAt(int(m.PC))
			if err := m.dispatchLibc(name); err != nil {
				return m.Stats.CycleTotal, err
			}
			m.PC = int32(m.Regs[1]) // return via ra
			m.scramble()
			continue
		}

		idx := le32At(m.Arena, uint32(m.PC))
		if int(idx) >= len(m.Pool) {
			return m.Stats.CycleTotal, &InvalidAddressError{Addr: uint32(m.PC), Detail: "pool index out of range"}
		}
		inst := m.Pool[idx]

		if m.Trace != nil {
			m.Trace.Record(m.PC, inst)
		}

		if err := m.execute(inst); err != nil {
			return m.Stats.CycleTotal, err
		}
		m.setReg(0, 0)
		m.PC += 4
	}
	return m.Stats.CycleTotal, nil
}

// dispatchLibc builds a libc.State borrowing the machine's live
// arena/registers/heap bookkeeping and invokes the named surrogate.
func (m *Machine) dispatchLibc(name string) error {
	st := &libc.State{
		Arena:        m.Arena,
		Regs:         &m.Regs,
		HeapPtr:      &m.HeapPtr,
		Malloced:     m.Malloced,
		InvalidAddrs: m.InvalidAddrs,
		In:           m.stdin,
		Out:          m.cfg.Out,
		IOCycles:     new(uint64),
		MemCycles:    new(uint64),
	}
	if err := libc.Call(st, name); err != nil {
		return err
	}

	weight := m.cfg.Weights.LibcMem
	bucket := &m.Stats.LibcMem
	if ioFuncs[name] {
		weight = m.cfg.Weights.LibcIO
		bucket = &m.Stats.LibcIO
	}
	*bucket++
	m.Stats.CycleTotal += weight + *st.IOCycles + *st.MemCycles
	return nil
}

// scrambledRegs are the caller-saved registers perturbed after every
// libc return, per the spec's diagnostic "caller-saved scramble": a0
// (index 10) is excluded since it carries the return value.
var scrambledRegs = [...]int{1, 5, 6, 7, 11, 12, 13, 14, 15, 16, 17, 28, 29, 30, 31}

func (m *Machine) scramble() {
	for _, idx := range scrambledRegs {
		m.setReg(idx, m.Regs[idx]+0x1234)
	}
}

func le32At(mem []byte, addr uint32) uint32 {
	return uint32(mem[addr]) | uint32(mem[addr+1])<<8 | uint32(mem[addr+2])<<16 | uint32(mem[addr+3])<<24
}
