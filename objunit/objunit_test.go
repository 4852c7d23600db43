package objunit

import (
	"testing"

	"github.com/lookbusy1344/rv32im-sim/instr"
)

func TestPadTo16(t *testing.T) {
	cases := map[int]int{0: 0, 1: 16, 15: 16, 16: 16, 17: 32}
	for in, want := range cases {
		if got := PadTo16(in); got != want {
			t.Errorf("PadTo16(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCheckInvariantsCatchesDanglingID(t *testing.T) {
	u := New("t")
	inst := instr.New(instr.ADDI)
	u.Insts = append(u.Insts, inst)
	u.InstPos[inst.ID] = 0

	if err := u.CheckInvariants(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bogus := instr.New(instr.ADD)
	u.InstPos[bogus.ID] = 4
	if err := u.CheckInvariants(); err == nil {
		t.Fatal("expected invariant violation for dangling id")
	}
}
