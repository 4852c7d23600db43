package interp

import "github.com/lookbusy1344/rv32im-sim/instr"

// Statistics accumulates per-category instruction counts and the
// weighted cycle total they produced, grounded on the teacher's
// PerformanceStatistics bucket-counter idiom.
type Statistics struct {
	Simple   uint64
	Mul      uint64
	CacheHit uint64
	Branch   uint64
	Div      uint64
	MemMiss  uint64
	LibcIO   uint64
	LibcMem  uint64

	CycleTotal uint64
}

// traceEntry is one ring-buffer slot: the spec's "debug-trace ring of
// last 8 instructions per call frame".
type traceEntry struct {
	PC int32
	Op instr.Op
}

const traceRingSize = 8

// ExecutionTrace keeps the last traceRingSize executed instructions
// per call depth, enabled only when KeepDebugInfo is set. Structurally
// the same ring shape as the teacher's ExecutionTrace, generalized
// from ARM opcodes to RV32IM ones.
type ExecutionTrace struct {
	frames [][traceRingSize]traceEntry
	counts []int
	depth  int
}

// NewExecutionTrace starts a trace with a single (top-level) frame.
func NewExecutionTrace() *ExecutionTrace {
	return &ExecutionTrace{
		frames: [][traceRingSize]traceEntry{{}},
		counts: []int{0},
	}
}

// Record appends to the current frame's ring, pushing a new frame on
// JAL/JALR with a non-zero destination (a call) and popping on return
// through `ra` (JALR with a zero destination and base == ra).
func (t *ExecutionTrace) Record(pc int32, inst *instr.Instruction) {
	i := t.depth
	slot := t.counts[i] % traceRingSize
	t.frames[i][slot] = traceEntry{PC: pc, Op: inst.Op}
	t.counts[i]++

	switch inst.Op {
	case instr.JAL:
		if inst.JumpLink.Dest != 0 {
			t.pushFrame()
		}
	case instr.JALR:
		if inst.JumpLinkReg.Dest != 0 {
			t.pushFrame()
		} else if inst.JumpLinkReg.Base == 1 && t.depth > 0 {
			t.popFrame()
		}
	}
}

func (t *ExecutionTrace) pushFrame() {
	t.frames = append(t.frames, [traceRingSize]traceEntry{})
	t.counts = append(t.counts, 0)
	t.depth++
}

func (t *ExecutionTrace) popFrame() {
	t.frames = t.frames[:len(t.frames)-1]
	t.counts = t.counts[:len(t.counts)-1]
	t.depth--
}

// Depth reports the current call-frame nesting the trace believes it
// is at (best-effort; it tracks calls, not verified returns).
func (t *ExecutionTrace) Depth() int {
	return t.depth
}

// LastFrame returns the up-to-traceRingSize most recent instructions
// executed in the current (deepest) call frame, oldest first.
func (t *ExecutionTrace) LastFrame() []traceEntry {
	i := t.depth
	n := t.counts[i]
	if n > traceRingSize {
		n = traceRingSize
	}
	out := make([]traceEntry, 0, n)
	start := t.counts[i] - n
	for k := 0; k < n; k++ {
		out = append(out, t.frames[i][(start+k)%traceRingSize])
	}
	return out
}
