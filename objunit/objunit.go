// Package objunit defines the Object Unit: the assembler's output for
// one source string, consumed by the linker.
package objunit

import (
	"github.com/lookbusy1344/rv32im-sim/asmutil"
	"github.com/lookbusy1344/rv32im-sim/instr"
)

// sectionPad is the alignment every section is padded up to before
// sections are concatenated.
const sectionPad = 16

// RelocEntry pairs a relocation function with its target symbol and
// addend, keyed by instruction id in Unit.Relocations.
type RelocEntry struct {
	Kind   asmutil.RelocKind
	Symbol string
	Addend int32
}

// DeferredWord is a ".word symbol" directive whose value is not known
// until link time.
type DeferredWord struct {
	Symbol string
	Offset int // byte offset within Storage
}

// Unit is the assembler's output for one source string: a byte image
// plus an instruction pool plus symbol and relocation side-tables.
//
// Invariants:
//   - every instruction id in InstPos, ExternalRefs, Relocations
//     refers to a member of Insts;
//   - every text-section 4-byte slot in Storage holds the index
//     (within Insts) of the corresponding instruction, not a RISC-V
//     encoding.
type Unit struct {
	Name string // source identifier, for diagnostics

	Storage []byte                  // [text | data | rodata | bss], each padded to 16 bytes
	Insts   []*instr.Instruction    // ordered pool of instruction records
	InstPos map[instr.ID]int        // instruction id -> byte offset within Storage

	SymTable map[string]int // symbol name -> offset within Storage
	Globals  map[string]bool

	ExternalRefs map[instr.ID]string // instruction id -> referenced symbol (unresolved within unit)
	Relocations  map[instr.ID]RelocEntry

	DeferredWords []DeferredWord

	// Section bounds, in Storage, set once layout is finalized.
	TextStart, TextEnd     int
	DataStart, DataEnd     int
	RodataStart, RodataEnd int
	BSSStart, BSSEnd       int
}

// New creates an empty Unit ready for the assembler's two passes.
func New(name string) *Unit {
	return &Unit{
		Name:         name,
		InstPos:      make(map[instr.ID]int),
		SymTable:     make(map[string]int),
		Globals:      make(map[string]bool),
		ExternalRefs: make(map[instr.ID]string),
		Relocations:  make(map[instr.ID]RelocEntry),
	}
}

// PadTo16 rounds n up to the next multiple of 16.
func PadTo16(n int) int {
	if n%sectionPad == 0 {
		return n
	}
	return n + (sectionPad - n%sectionPad)
}

// CheckInvariants validates the first invariant described above (every
// side-table id is a member of Insts); the storage-slot invariant is
// not checked here. Used by tests and by the assembler before it
// returns a unit.
func (u *Unit) CheckInvariants() error {
	idsInPool := make(map[instr.ID]bool, len(u.Insts))
	for _, ir := range u.Insts {
		idsInPool[ir.ID] = true
	}
	for id := range u.InstPos {
		if !idsInPool[id] {
			return &InvariantError{Unit: u.Name, Detail: "InstPos references an id not present in Insts"}
		}
	}
	for id := range u.ExternalRefs {
		if !idsInPool[id] {
			return &InvariantError{Unit: u.Name, Detail: "ExternalRefs references an id not present in Insts"}
		}
	}
	for id := range u.Relocations {
		if !idsInPool[id] {
			return &InvariantError{Unit: u.Name, Detail: "Relocations references an id not present in Insts"}
		}
	}
	return nil
}

// InvariantError reports a broken Unit invariant.
type InvariantError struct {
	Unit   string
	Detail string
}

func (e *InvariantError) Error() string {
	return "objunit " + e.Unit + ": " + e.Detail
}
