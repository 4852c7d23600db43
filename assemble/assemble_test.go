package assemble

import (
	"testing"

	"github.com/lookbusy1344/rv32im-sim/instr"
)

func TestAssembleSimpleArithmetic(t *testing.T) {
	src := `
.text
.globl main
main:
	addi t0, zero, 5
	addi t1, zero, 7
	add  t2, t0, t1
	jalr zero, 0(ra)
`
	u, errs := Assemble(src, "arith.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(u.Insts) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(u.Insts))
	}
	if u.Insts[2].Op != instr.ADD {
		t.Errorf("expected third instruction to be ADD, got %v", u.Insts[2].Op)
	}
	if _, ok := u.SymTable["main"]; !ok {
		t.Error("expected main symbol to be recorded")
	}
	if !u.Globals["main"] {
		t.Error("expected main to be marked global")
	}
	if err := u.CheckInvariants(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestAssembleBranchBakesLocalOffset(t *testing.T) {
	src := `
.text
loop:
	addi t0, t0, -1
	bne t0, zero, loop
	jalr zero, 0(ra)
`
	u, errs := Assemble(src, "loop.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	branch := u.Insts[1]
	if branch.Op != instr.BNE {
		t.Fatalf("expected BNE at index 1, got %v", branch.Op)
	}
	if branch.Branch.Offset != -4 {
		t.Errorf("expected branch offset -4 (back to loop), got %d", branch.Branch.Offset)
	}
}

func TestAssembleJumpOffsetIsHalved(t *testing.T) {
	src := `
.text
start:
	addi t0, t0, 1
	jal ra, start
`
	u, errs := Assemble(src, "jal.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	j := u.Insts[1]
	if j.Op != instr.JAL {
		t.Fatalf("expected JAL, got %v", j.Op)
	}
	if j.JumpLink.Offset != -2 {
		t.Errorf("expected byte distance -4 stored halved as -2, got %d", j.JumpLink.Offset)
	}
}

func TestAssembleExternalSymbolRegistersRef(t *testing.T) {
	src := `
.text
.globl main
main:
	jal ra, helper
`
	u, errs := Assemble(src, "ext.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	j := u.Insts[0]
	sym, ok := u.ExternalRefs[j.ID]
	if !ok || sym != "helper" {
		t.Errorf("expected external ref to helper, got %q ok=%v", sym, ok)
	}
}

func TestAssembleDataAndStringLayout(t *testing.T) {
	src := `
.data
msg:
	.string "hi"
count:
	.word 42
.text
.globl main
main:
	lw a0, count
	jalr zero, 0(ra)
`
	u, errs := Assemble(src, "data.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	msgOff, ok := u.SymTable["msg"]
	if !ok {
		t.Fatal("expected msg symbol")
	}
	if got := string(u.Storage[msgOff : msgOff+3]); got != "hi\x00" {
		t.Errorf("expected nul-terminated string, got %q", got)
	}
	countOff, ok := u.SymTable["count"]
	if !ok {
		t.Fatal("expected count symbol")
	}
	if countOff < u.DataStart || countOff >= u.DataEnd {
		t.Errorf("count offset %d not within data section [%d,%d)", countOff, u.DataStart, u.DataEnd)
	}
}

func TestAssembleCommMergeWidensReservation(t *testing.T) {
	src := `
.text
.comm buf, 8, 4
.comm buf, 32, 4
.globl main
main:
	jalr zero, 0(ra)
`
	u, errs := Assemble(src, "comm.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	off, ok := u.SymTable["buf"]
	if !ok {
		t.Fatal("expected buf symbol in bss")
	}
	if off < u.BSSStart || off+32 > u.BSSEnd {
		t.Errorf("widened buf reservation does not fit in bss [%d,%d): off=%d", u.BSSStart, u.BSSEnd, off)
	}
}

func TestAssembleUnknownMnemonicIsNotSupportedError(t *testing.T) {
	src := `
.text
.globl main
main:
	frobnicate t0, t1, t2
`
	_, errs := Assemble(src, "bad.s")
	if len(errs) == 0 {
		t.Fatal("expected an error for unknown mnemonic")
	}
	found := false
	for _, e := range errs {
		if _, ok := asErrNotSupported(e); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a NotSupportedError among: %v", errs)
	}
}

func asErrNotSupported(err error) (*NotSupportedError, bool) {
	type wrapper interface{ Unwrap() error }
	for err != nil {
		if nse, ok := err.(*NotSupportedError); ok {
			return nse, true
		}
		w, ok := err.(wrapper)
		if !ok {
			return nil, false
		}
		err = w.Unwrap()
	}
	return nil, false
}

func TestAssemblePseudoInstructionsExpandBeforeAssembly(t *testing.T) {
	src := `
.text
.globl main
main:
	li t0, 1000000
	la t1, somewhere
	jalr zero, 0(ra)
.data
somewhere:
	.word 0
`
	u, errs := Assemble(src, "pseudo.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(u.Insts) < 4 {
		t.Fatalf("expected li/la to expand into multiple real instructions, got %d total", len(u.Insts))
	}
	sawAuipc := false
	for _, inst := range u.Insts {
		if inst.Op == instr.AUIPC {
			sawAuipc = true
		}
	}
	if !sawAuipc {
		t.Error("expected la to expand through an auipc")
	}
}

func TestAssembleSectionDirectiveSwitchesCursor(t *testing.T) {
	src := `
.rodata
greet:
	.string "ok"
.text
.globl main
main:
	jalr zero, 0(ra)
`
	u, errs := Assemble(src, "sections.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	off := u.SymTable["greet"]
	if off < u.RodataStart || off >= u.RodataEnd {
		t.Errorf("greet should live in rodata [%d,%d), got %d", u.RodataStart, u.RodataEnd, off)
	}
	if u.TextEnd != u.DataStart {
		t.Errorf("section bounds should be contiguous: TextEnd=%d DataStart=%d", u.TextEnd, u.DataStart)
	}
}

func TestAssembleInstructionStorageHoldsPoolIndices(t *testing.T) {
	// Testable property: every text-section word holds a valid index
	// into Insts, not a raw encoding.
	src := `
.text
.globl main
main:
	add t0, t0, t0
	sub t1, t1, t1
`
	u, errs := Assemble(src, "idx.s")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for id, pos := range u.InstPos {
		var idx uint32
		for i := 0; i < 4; i++ {
			idx |= uint32(u.Storage[pos+i]) << (8 * i)
		}
		if int(idx) >= len(u.Insts) || u.Insts[idx].ID != id {
			t.Errorf("storage slot at %d does not index back to instruction %d", pos, id)
		}
	}
}
