// Package link merges object units into a single flat Image: one byte
// arena, one instruction pool, and a resolved global symbol table. It
// also reserves the 48-byte boot header (the `call main` start stub
// and the libc dispatch table) that every image begins with.
package link

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/rv32im-sim/asmutil"
	"github.com/lookbusy1344/rv32im-sim/instr"
	"github.com/lookbusy1344/rv32im-sim/objunit"
)

// headerSize is the reserved boot region: a 12-byte start stub
// (8 bytes of call main, then the nop sentinel at 8) followed by 36
// bytes of libc trampoline slots.
const headerSize = 48

// libcSlotBase is the first libc dispatch offset; slots are 2 bytes
// apart up to headerSize.
const libcSlotBase = 12

// LibcSlots maps a libc surrogate function name to its PC offset
// within the boot header. A guest program calls these the same way
// it calls any other global symbol; the interpreter recognizes any PC
// landing in [12,48) as a libc dispatch rather than guest code.
var LibcSlots = map[string]int{
	"puts": 12, "scanf": 14, "sscanf": 16, "printf": 18, "sprintf": 20,
	"putchar": 22, "malloc": 24, "free": 26, "memcpy": 28, "strlen": 30,
	"strcpy": 32, "strcat": 34, "strcmp": 36, "memset": 38, "calloc": 40,
}

// LibcFuncAt reverse-looks-up the function dispatched at a given PC.
func LibcFuncAt(pc int) (string, bool) {
	for name, off := range LibcSlots {
		if off == pc {
			return name, true
		}
	}
	return "", false
}

// IsLibcTrampoline reports whether pc falls in the reserved dispatch
// region, regardless of whether every slot in it is named.
func IsLibcTrampoline(pc int) bool {
	return pc >= libcSlotBase && pc < headerSize
}

// Image is the linker's output: the flat address space an interpreter
// runs directly against.
type Image struct {
	Storage  []byte
	Insts    []*instr.Instruction
	InstPos  map[instr.ID]int // flat byte offset, keyed by instruction id
	SymTable map[string]int   // resolved global symbols, flat offsets
	EntryPC  int              // always 0: the start stub's first instruction
}

// DuplicatedSymbolError reports two units (or a unit and the libc
// header) defining the same global symbol.
type DuplicatedSymbolError struct {
	Symbol string
}

func (e *DuplicatedSymbolError) Error() string {
	return fmt.Sprintf("duplicate global symbol %q", e.Symbol)
}

// UnresolvableSymbolError reports a relocation, external reference, or
// deferred word whose symbol resolves nowhere.
type UnresolvableSymbolError struct {
	Symbol string
}

func (e *UnresolvableSymbolError) Error() string {
	return fmt.Sprintf("unresolvable symbol %q", e.Symbol)
}

// Link merges units (in the given order) into an Image, resolving
// every relocation, external reference, and deferred word.
func Link(units []*objunit.Unit) (*Image, error) {
	header := buildHeaderUnit()

	all := append([]*objunit.Unit{header}, units...)

	bases := make([]int, len(all))
	total := 0
	for i, u := range all {
		bases[i] = total
		total += len(u.Storage)
	}

	storage := make([]byte, total)
	for i, u := range all {
		copy(storage[bases[i]:], u.Storage)
	}

	globalSyms := make(map[string]int)
	for i, u := range all {
		for name := range u.Globals {
			if _, dup := globalSyms[name]; dup {
				return nil, &DuplicatedSymbolError{Symbol: name}
			}
			globalSyms[name] = bases[i] + u.SymTable[name]
		}
	}

	flatInsts := make([]*instr.Instruction, 0, sumInstCounts(all))
	flatInstPos := make(map[instr.ID]int, len(flatInsts))
	poolOffset := make([]int, len(all))
	idxOf := make([]map[instr.ID]int, len(all))

	for i, u := range all {
		poolOffset[i] = len(flatInsts)
		idxOf[i] = make(map[instr.ID]int, len(u.Insts))
		for j, inst := range u.Insts {
			idxOf[i][inst.ID] = j
		}
		flatInsts = append(flatInsts, u.Insts...)
		for id, localPos := range u.InstPos {
			flatPos := bases[i] + localPos
			flatInstPos[id] = flatPos
			flatIdx := poolOffset[i] + idxOf[i][id]
			binary.LittleEndian.PutUint32(storage[flatPos:], uint32(flatIdx))
		}
	}

	resolve := func(unitIdx int, sym string) (int, bool) {
		if off, ok := all[unitIdx].SymTable[sym]; ok {
			return bases[unitIdx] + off, true
		}
		if off, ok := globalSyms[sym]; ok {
			return off, true
		}
		return 0, false
	}

	// pcrelHIAt maps a flat instruction position to the symbol its
	// PCREL_HI relocation targets, for PCREL_LO pairing.
	pcrelHIAt := make(map[int]string)
	for i, u := range all {
		for id, r := range u.Relocations {
			if r.Kind == asmutil.RelocPCRelHI {
				pcrelHIAt[bases[i]+u.InstPos[id]] = r.Symbol
			}
		}
	}

	for i, u := range all {
		for id, r := range u.Relocations {
			instPos := bases[i] + u.InstPos[id]
			var val int32
			switch r.Kind {
			case asmutil.RelocHI:
				target, ok := resolve(i, r.Symbol)
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: r.Symbol}
				}
				val = (int32(target) + r.Addend) >> 12

			case asmutil.RelocLO:
				target, ok := resolve(i, r.Symbol)
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: r.Symbol}
				}
				val = (int32(target) + r.Addend) & 0xfff

			case asmutil.RelocPCRelHI:
				target, ok := resolve(i, r.Symbol)
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: r.Symbol}
				}
				val = (int32(target) - int32(instPos)) >> 12

			case asmutil.RelocPCRelLO:
				p, ok := resolve(i, r.Symbol)
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: r.Symbol}
				}
				hiSym, ok := pcrelHIAt[p]
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: r.Symbol}
				}
				hiTarget, ok := resolve(i, hiSym)
				if !ok {
					return nil, &UnresolvableSymbolError{Symbol: hiSym}
				}
				d := int32(hiTarget) - int32(p)
				val = d & 0xfff
			}
			idx := poolOffset[i] + idxOf[i][id]
			applyRelocValue(flatInsts[idx], val)
		}

		for id, sym := range u.ExternalRefs {
			instPos := bases[i] + u.InstPos[id]
			target, ok := resolve(i, sym)
			if !ok {
				return nil, &UnresolvableSymbolError{Symbol: sym}
			}
			offset := int32(target - instPos)
			idx := poolOffset[i] + idxOf[i][id]
			applyBranchOffset(flatInsts[idx], offset)
		}

		for _, dw := range u.DeferredWords {
			target, ok := resolve(i, dw.Symbol)
			if !ok {
				return nil, &UnresolvableSymbolError{Symbol: dw.Symbol}
			}
			flatPos := bases[i] + dw.Offset
			binary.LittleEndian.PutUint32(storage[flatPos:], uint32(target))
		}
	}

	return &Image{
		Storage:  storage,
		Insts:    flatInsts,
		InstPos:  flatInstPos,
		SymTable: globalSyms,
		EntryPC:  0,
	}, nil
}

func sumInstCounts(units []*objunit.Unit) int {
	n := 0
	for _, u := range units {
		n += len(u.Insts)
	}
	return n
}

// applyRelocValue writes a resolved relocation value into whichever
// shape field an instruction's operand immediate lives in.
func applyRelocValue(inst *instr.Instruction, val int32) {
	switch instr.ShapeOf(inst.Op) {
	case instr.ShapeImmConstruction:
		inst.ImmConstruction.Imm = val
	case instr.ShapeArithRegImm:
		inst.ArithRegImm.Imm = val
	case instr.ShapeMemAccess:
		inst.MemAccess.Offset = val
	case instr.ShapeJumpLinkReg:
		inst.JumpLinkReg.Offset = val
	}
}

// applyBranchOffset writes a resolved external-reference byte offset
// into a JAL (halved, per the wire contract) or Branch instruction.
func applyBranchOffset(inst *instr.Instruction, byteOffset int32) {
	switch instr.ShapeOf(inst.Op) {
	case instr.ShapeJumpLink:
		inst.JumpLink.Offset = byteOffset / 2
	case instr.ShapeBranch:
		inst.Branch.Offset = byteOffset
	}
}

// buildHeaderUnit constructs the reserved 48-byte boot region as an
// ordinary object unit so it can be merged and relocated through the
// exact same machinery as guest units: a 12-byte `call main; nop`
// start stub followed by the libc dispatch table, whose slot names
// are pre-registered as global symbols so guest code can call them
// like any other external function.
func buildHeaderUnit() *objunit.Unit {
	u := objunit.New("<boot>")
	u.Storage = make([]byte, headerSize)

	auipc := instr.New(instr.AUIPC)
	auipc.ImmConstruction.Dest = 6 // x6 / t1, scratch for the call stub
	jalr := instr.New(instr.JALR)
	jalr.JumpLinkReg.Dest = 1 // x1 / ra
	jalr.JumpLinkReg.Base = 6
	nop := instr.New(instr.ADDI) // addi zero,zero,0

	u.Insts = []*instr.Instruction{auipc, jalr, nop}
	u.InstPos[auipc.ID] = 0
	u.InstPos[jalr.ID] = 4
	u.InstPos[nop.ID] = 8

	binary.LittleEndian.PutUint32(u.Storage[0:], 0)
	binary.LittleEndian.PutUint32(u.Storage[4:], 1)
	binary.LittleEndian.PutUint32(u.Storage[8:], 2)

	u.SymTable["Lstart"] = 0 // the auipc's own position, for %pcrel_lo pairing
	u.Relocations[auipc.ID] = objunit.RelocEntry{Kind: asmutil.RelocPCRelHI, Symbol: "main"}
	u.Relocations[jalr.ID] = objunit.RelocEntry{Kind: asmutil.RelocPCRelLO, Symbol: "Lstart"}

	for name, off := range LibcSlots {
		u.SymTable[name] = off
		u.Globals[name] = true
	}

	return u
}
