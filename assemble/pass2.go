package assemble

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/rv32im-sim/asmutil"
	"github.com/lookbusy1344/rv32im-sim/instr"
	"github.com/lookbusy1344/rv32im-sim/objunit"
)

type sectionBases struct {
	text, data, rodata, bss int
	total                   int
}

func computeBases(lay *layout) sectionBases {
	var b sectionBases
	b.text = 0
	b.data = b.text + objunit.PadTo16(lay.cursor[asmutil.SectionText])
	b.rodata = b.data + objunit.PadTo16(lay.cursor[asmutil.SectionData])
	b.bss = b.rodata + objunit.PadTo16(lay.cursor[asmutil.SectionRodata])
	b.total = b.bss + objunit.PadTo16(lay.cursor[asmutil.SectionBSS])
	return b
}

func (b sectionBases) base(sec asmutil.Section) int {
	switch sec {
	case asmutil.SectionText:
		return b.text
	case asmutil.SectionData:
		return b.data
	case asmutil.SectionRodata:
		return b.rodata
	case asmutil.SectionBSS:
		return b.bss
	default:
		return 0
	}
}

type pass2 struct {
	unit    *objunit.Unit
	lay     *layout
	bases   sectionBases
	cursor  map[asmutil.Section]int
	section asmutil.Section
}

func runPass2(stmts []statement, lay *layout, name string) (*objunit.Unit, []error) {
	bases := computeBases(lay)
	u := objunit.New(name)
	u.Storage = make([]byte, bases.total)
	u.TextStart, u.TextEnd = bases.text, bases.data
	u.DataStart, u.DataEnd = bases.data, bases.rodata
	u.RodataStart, u.RodataEnd = bases.rodata, bases.bss
	u.BSSStart, u.BSSEnd = bases.bss, bases.total

	for name, loc := range lay.symbols {
		u.SymTable[name] = bases.base(loc.section) + loc.offset
	}
	for name := range lay.globals {
		u.Globals[name] = true
	}

	p := &pass2{
		unit:  u,
		lay:   lay,
		bases: bases,
		cursor: map[asmutil.Section]int{
			asmutil.SectionText:   bases.text,
			asmutil.SectionData:   bases.data,
			asmutil.SectionRodata: bases.rodata,
			asmutil.SectionBSS:    bases.bss,
		},
	}

	var errs []error
	for _, s := range stmts {
		if err := p.emit(s); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", s.line, err))
		}
	}
	return u, errs
}

func (p *pass2) emit(s statement) error {
	switch s.kind {
	case stmtSection:
		p.section = s.section
		return nil

	case stmtGlobl, stmtLabel:
		return nil // fully handled by pass1

	case stmtAlign:
		p.cursor[p.section] = alignUp(p.cursor[p.section], 1<<uint(s.alignExp))
		return nil

	case stmtComm:
		return nil // space already reserved and zeroed

	case stmtZero:
		p.cursor[p.section] += s.zeroN
		return nil

	case stmtString:
		copy(p.unit.Storage[p.cursor[p.section]:], s.strBytes)
		p.cursor[p.section] += len(s.strBytes)
		return nil

	case stmtWord:
		for _, arg := range s.wordArgs {
			pos := p.cursor[p.section]
			if v, err := asmutil.ParseImmediate(arg); err == nil {
				binary.LittleEndian.PutUint32(p.unit.Storage[pos:], uint32(v))
			} else {
				p.unit.DeferredWords = append(p.unit.DeferredWords, objunit.DeferredWord{Symbol: arg, Offset: pos})
			}
			p.cursor[p.section] += 4
		}
		return nil

	case stmtInstr:
		return p.emitInstruction(s)
	}
	return fmt.Errorf("unreachable statement kind %v", s.kind)
}

func (p *pass2) emitInstruction(s statement) error {
	op, ok := asmutil.LookupOp(s.mnemonic)
	if !ok {
		return &NotSupportedError{Line: s.line, Detail: fmt.Sprintf("unknown opcode %q", s.mnemonic)}
	}
	inst := instr.New(op)
	pos := p.cursor[p.section]

	fields := splitArgs(s.operands)

	switch instr.ShapeOf(op) {
	case instr.ShapeImmConstruction:
		if len(fields) != 2 {
			return fmt.Errorf("%s expects 2 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		inst.ImmConstruction.Dest = rd
		if err := p.resolveImmOrReloc(inst, fields[1], pos); err != nil {
			return err
		}

	case instr.ShapeArithRegReg:
		if len(fields) != 3 {
			return fmt.Errorf("%s expects 3 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		rs1, err := asmutil.ParseRegister(fields[1])
		if err != nil {
			return err
		}
		rs2, err := asmutil.ParseRegister(fields[2])
		if err != nil {
			return err
		}
		inst.ArithRegReg = instr.ArithRegReg{Dest: rd, Src1: rs1, Src2: rs2}

	case instr.ShapeArithRegImm:
		if len(fields) != 3 {
			return fmt.Errorf("%s expects 3 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		rs, err := asmutil.ParseRegister(fields[1])
		if err != nil {
			return err
		}
		inst.ArithRegImm.Dest = rd
		inst.ArithRegImm.Src = rs
		if err := p.resolveImmOrReloc(inst, fields[2], pos); err != nil {
			return err
		}

	case instr.ShapeMemAccess:
		if len(fields) != 2 {
			return fmt.Errorf("%s expects 2 operands, got %d", s.mnemonic, len(fields))
		}
		reg, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		bo, err := asmutil.ParseBaseOffset(fields[1])
		if err != nil {
			return err
		}
		inst.MemAccess.Reg = reg
		inst.MemAccess.Base = bo.Base
		if bo.HasReloc {
			p.unit.Relocations[inst.ID] = objunit.RelocEntry{Kind: bo.Reloc.Kind, Symbol: bo.Reloc.Symbol, Addend: bo.Reloc.Addend}
		} else {
			inst.MemAccess.Offset = bo.Offset
		}

	case instr.ShapeJumpLink:
		if len(fields) != 2 {
			return fmt.Errorf("%s expects 2 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		inst.JumpLink.Dest = rd
		p.resolveBranchTarget(inst, fields[1], pos, true)

	case instr.ShapeJumpLinkReg:
		if len(fields) != 2 {
			return fmt.Errorf("%s expects 2 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		bo, err := asmutil.ParseBaseOffset(fields[1])
		if err != nil {
			return err
		}
		inst.JumpLinkReg.Dest = rd
		inst.JumpLinkReg.Base = bo.Base
		if bo.HasReloc {
			p.unit.Relocations[inst.ID] = objunit.RelocEntry{Kind: bo.Reloc.Kind, Symbol: bo.Reloc.Symbol, Addend: bo.Reloc.Addend}
		} else {
			inst.JumpLinkReg.Offset = bo.Offset
		}

	case instr.ShapeBranch:
		if len(fields) != 3 {
			return fmt.Errorf("%s expects 3 operands, got %d", s.mnemonic, len(fields))
		}
		rs1, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		rs2, err := asmutil.ParseRegister(fields[1])
		if err != nil {
			return err
		}
		inst.Branch.Src1 = rs1
		inst.Branch.Src2 = rs2
		p.resolveBranchTarget(inst, fields[2], pos, false)

	case instr.ShapeMArith:
		if len(fields) != 3 {
			return fmt.Errorf("%s expects 3 operands, got %d", s.mnemonic, len(fields))
		}
		rd, err := asmutil.ParseRegister(fields[0])
		if err != nil {
			return err
		}
		rs1, err := asmutil.ParseRegister(fields[1])
		if err != nil {
			return err
		}
		rs2, err := asmutil.ParseRegister(fields[2])
		if err != nil {
			return err
		}
		inst.MArith = instr.MArith{Dest: rd, Src1: rs1, Src2: rs2}
	}

	idx := len(p.unit.Insts)
	p.unit.Insts = append(p.unit.Insts, inst)
	p.unit.InstPos[inst.ID] = pos
	binary.LittleEndian.PutUint32(p.unit.Storage[pos:], uint32(idx))
	p.cursor[p.section] += 4
	return nil
}

// resolveImmOrReloc fills in either a numeric immediate or registers a
// relocation, for the shapes whose immediate field can carry either
// (ImmConstruction, ArithRegImm).
func (p *pass2) resolveImmOrReloc(inst *instr.Instruction, tok string, pos int) error {
	if reloc, ok, err := asmutil.ParseReloc(tok); ok {
		if err != nil {
			return err
		}
		p.unit.Relocations[inst.ID] = objunit.RelocEntry{Kind: reloc.Kind, Symbol: reloc.Symbol, Addend: reloc.Addend}
		return nil
	}
	imm, err := asmutil.ParseImmediate(tok)
	if err != nil {
		return fmt.Errorf("bad immediate %q: %w", tok, err)
	}
	switch instr.ShapeOf(inst.Op) {
	case instr.ShapeImmConstruction:
		inst.ImmConstruction.Imm = imm
	case instr.ShapeArithRegImm:
		inst.ArithRegImm.Imm = imm
	}
	return nil
}

// resolveBranchTarget resolves a JAL/Branch target: a symbol found in
// this unit's local symbol table is baked in as a byte offset
// (halved for JAL per the wire contract); otherwise the instruction is
// registered in ExternalRefs for the linker to patch.
func (p *pass2) resolveBranchTarget(inst *instr.Instruction, target string, pos int, isJal bool) {
	if flat, ok := p.lay.symbols[target]; ok {
		off := int32(p.bases.base(flat.section) + flat.offset - pos)
		p.setBranchOffset(inst, off, isJal)
		return
	}
	if imm, err := asmutil.ParseImmediate(target); err == nil {
		p.setBranchOffset(inst, imm, isJal)
		return
	}
	p.unit.ExternalRefs[inst.ID] = target
}

func (p *pass2) setBranchOffset(inst *instr.Instruction, byteOffset int32, isJal bool) {
	if isJal {
		inst.JumpLink.Offset = byteOffset / 2
	} else {
		inst.Branch.Offset = byteOffset
	}
}

// NotSupportedError reports an opcode, relocation, or directive this
// toolchain has no handling for.
type NotSupportedError struct {
	Line   int
	Detail string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("line %d: not supported: %s", e.Line, e.Detail)
}
