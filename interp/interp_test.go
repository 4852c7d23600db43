package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/rv32im-sim/assemble"
	"github.com/lookbusy1344/rv32im-sim/link"
	"github.com/lookbusy1344/rv32im-sim/objunit"
)

func buildImage(t *testing.T, src string) *link.Image {
	t.Helper()
	u, errs := assemble.Assemble(src, "test.s")
	if len(errs) != 0 {
		t.Fatalf("assemble: %v", errs)
	}
	img, err := link.Link([]*objunit.Unit{u})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	return img
}

func runSource(t *testing.T, src, stdin string) (*Machine, uint64) {
	t.Helper()
	img := buildImage(t, src)
	cfg := DefaultConfig()
	cfg.In = strings.NewReader(stdin)
	out := &bytes.Buffer{}
	cfg.Out = out
	m := New(img, cfg)
	cycles, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return m, cycles
}

// S1: exit code 42.
func TestScenarioLiAndRet(t *testing.T) {
	m, _ := runSource(t, ".text\n.globl main\nmain:\n\tli a0, 42\n\tret\n", "")
	if m.Regs[10] != 42 {
		t.Errorf("expected a0=42, got %d", m.Regs[10])
	}
}

// S3: a call to a helper function that increments a0.
func TestScenarioCallHelper(t *testing.T) {
	m, _ := runSource(t, `
.text
.globl main
main:
	addi sp, sp, -16
	sw ra, 0(sp)
	li a0, 5
	jal ra, f
	lw ra, 0(sp)
	addi sp, sp, 16
	ret
f:
	addi a0, a0, 1
	ret
`, "")
	if m.Regs[10] != 6 {
		t.Errorf("expected a0=6, got %d", m.Regs[10])
	}
}

// S5: puts("Hi") writes "Hi\n" to stdout and exits cleanly.
func TestScenarioPuts(t *testing.T) {
	img := buildImage(t, `
.text
.globl main
main:
	addi sp, sp, -16
	sw ra, 0(sp)
	la a0, msg
	call puts
	lw ra, 0(sp)
	addi sp, sp, 16
	li a0, 0
	ret
.rodata
msg:
	.string "Hi"
`)
	cfg := DefaultConfig()
	cfg.In = strings.NewReader("")
	out := &bytes.Buffer{}
	cfg.Out = out
	m := New(img, cfg)
	if _, err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "Hi\n" {
		t.Errorf("expected stdout %q, got %q", "Hi\n", out.String())
	}
	if m.Regs[10] != 0 {
		t.Errorf("expected exit code 0, got %d", m.Regs[10])
	}
}

// S6: malloc(16) then free(p) does not register a double-free or any
// other RuntimeError.
func TestScenarioMallocFree(t *testing.T) {
	_, _ = runSource(t, `
.text
.globl main
main:
	addi sp, sp, -16
	sw ra, 0(sp)
	li a0, 16
	call malloc
	mv s1, a0
	mv a0, s1
	call free
	lw ra, 0(sp)
	addi sp, sp, 16
	li a0, 0
	ret
`, "")
}

// Property #4: after any interpreter step, regs[0] == 0.
func TestX0StaysZero(t *testing.T) {
	img := buildImage(t, `
.text
.globl main
main:
	addi zero, zero, 0
	li t0, 7
	add zero, t0, t0
	ret
`)
	m := New(img, DefaultConfig())
	if _, err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.Regs[0] != 0 {
		t.Errorf("expected regs[0] == 0, got %d", m.Regs[0])
	}
}

// Property #8: running the same program twice yields identical cycle
// counts.
func TestCycleCountIsDeterministic(t *testing.T) {
	src := `
.text
.globl main
main:
	li t0, 0
	li t1, 0
loop:
	addi t1, t1, 1
	blt t1, a1, loop
	mv a0, t1
	ret
`
	img1 := buildImage(t, src)
	m1 := New(img1, DefaultConfig())
	m1.Regs[11] = 100
	c1, err := m1.Run()
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}

	img2 := buildImage(t, src)
	m2 := New(img2, DefaultConfig())
	m2.Regs[11] = 100
	c2, err := m2.Run()
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}

	if c1 != c2 {
		t.Errorf("cycle counts differ across runs: %d vs %d", c1, c2)
	}
}

func TestDivByZeroFollowsRiscVConvention(t *testing.T) {
	img := buildImage(t, `
.text
.globl main
main:
	li t0, 7
	li t1, 0
	div a0, t0, t1
	rem a1, t0, t1
	ret
`)
	m := New(img, DefaultConfig())
	if _, err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if int32(m.Regs[10]) != -1 {
		t.Errorf("expected div-by-zero a0=-1, got %d", int32(m.Regs[10]))
	}
	if m.Regs[11] != 7 {
		t.Errorf("expected rem-by-zero a1=dividend(7), got %d", m.Regs[11])
	}
}

// S2: scanf reads "a+b" from stdin, main returns their sum in a0.
func TestScenarioScanfSum(t *testing.T) {
	m, _ := runSource(t, `
.text
.globl main
main:
	addi sp, sp, -16
	sw ra, 0(sp)
	la a0, fmt
	la a1, x
	la a2, y
	call scanf
	lw ra, 0(sp)
	addi sp, sp, 16
	la t6, x
	lw t0, 0(t6)
	la t6, y
	lw t1, 0(t6)
	add a0, t0, t1
	ret
.rodata
fmt:
	.string "%d+%d"
.bss
x:
	.zero 4
y:
	.zero 4
`, "3+4")
	if m.Regs[10] != 7 {
		t.Errorf("expected a0=7 (3+4), got %d", m.Regs[10])
	}
}

// S4: a bubble sort over a small fixed array ends with the array
// sorted in ascending order.
func TestScenarioBubbleSort(t *testing.T) {
	m, _ := runSource(t, `
.text
.globl main
main:
	la s0, arr
	li s1, 5
outer:
	li t0, 0
	addi s2, s1, -1
inner:
	bge t0, s2, outer_done
	slli t1, t0, 2
	add t2, s0, t1
	lw t3, 0(t2)
	lw t4, 4(t2)
	ble t3, t4, no_swap
	sw t4, 0(t2)
	sw t3, 4(t2)
no_swap:
	addi t0, t0, 1
	jal zero, inner
outer_done:
	addi s1, s1, -1
	li t5, 1
	bgt s1, t5, outer
	lw a0, 0(s0)
	lw a1, 4(s0)
	lw a2, 8(s0)
	lw a3, 12(s0)
	lw a4, 16(s0)
	ret
.data
arr:
	.word 5
	.word 3
	.word 4
	.word 1
	.word 2
`, "")
	got := [5]uint32{m.Regs[10], m.Regs[11], m.Regs[12], m.Regs[13], m.Regs[14]}
	want := [5]uint32{1, 2, 3, 4, 5}
	if got != want {
		t.Errorf("expected sorted array %v, got %v", want, got)
	}
}

func TestInfiniteLoopTimeoutAborts(t *testing.T) {
	img := buildImage(t, `
.text
.globl main
main:
	jal zero, main
`)
	cfg := DefaultConfig()
	cfg.MaxCycles = 50
	m := New(img, cfg)
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected a TimeoutError")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Errorf("expected *TimeoutError, got %T: %v", err, err)
	}
}
