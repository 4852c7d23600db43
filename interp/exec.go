package interp

import "github.com/lookbusy1344/rv32im-sim/instr"

// execute dispatches one instruction by shape and mutates machine
// state accordingly. PC-affecting instructions (JAL, JALR, taken
// branches) write PC as if the loop's `PC += 4` post-increment had
// already been cancelled, per the spec's `-4` convention.
func (m *Machine) execute(inst *instr.Instruction) error {
	switch instr.ShapeOf(inst.Op) {
	case instr.ShapeImmConstruction:
		return m.execImmConstruction(inst)
	case instr.ShapeArithRegReg:
		return m.execArithRegReg(inst)
	case instr.ShapeArithRegImm:
		return m.execArithRegImm(inst)
	case instr.ShapeMemAccess:
		return m.execMemAccess(inst)
	case instr.ShapeJumpLink:
		return m.execJumpLink(inst)
	case instr.ShapeJumpLinkReg:
		return m.execJumpLinkReg(inst)
	case instr.ShapeBranch:
		return m.execBranch(inst)
	case instr.ShapeMArith:
		return m.execMArith(inst)
	default:
		return &InvalidAddressError{Detail: "unreachable: unknown instruction shape"}
	}
}

func (m *Machine) execImmConstruction(inst *instr.Instruction) error {
	f := inst.ImmConstruction
	switch inst.Op {
	case instr.LUI:
		m.setReg(f.Dest, uint32(f.Imm)<<12)
	case instr.AUIPC:
		m.setReg(f.Dest, uint32(m.PC)+uint32(f.Imm)<<12)
	}
	m.addWeight(&m.Stats.Simple, m.cfg.Weights.Simple)
	return nil
}

func (m *Machine) execArithRegReg(inst *instr.Instruction) error {
	f := inst.ArithRegReg
	a, b := m.Regs[f.Src1], m.Regs[f.Src2]
	var res uint32
	switch inst.Op {
	case instr.ADD:
		res = a + b
	case instr.SUB:
		res = a - b
	case instr.SLL:
		res = a << (b & 0x1f)
	case instr.SLT:
		res = boolToWord(int32(a) < int32(b))
	case instr.SLTU:
		res = boolToWord(a < b)
	case instr.XOR:
		res = a ^ b
	case instr.SRL:
		res = a >> (b & 0x1f)
	case instr.SRA:
		res = uint32(int32(a) >> (b & 0x1f))
	case instr.OR:
		res = a | b
	case instr.AND:
		res = a & b
	}
	m.setReg(f.Dest, res)
	m.addWeight(&m.Stats.Simple, m.cfg.Weights.Simple)
	return nil
}

func (m *Machine) execArithRegImm(inst *instr.Instruction) error {
	f := inst.ArithRegImm
	a := m.Regs[f.Src]
	imm := f.Imm
	var res uint32
	switch inst.Op {
	case instr.ADDI:
		res = a + uint32(imm)
	case instr.SLTI:
		res = boolToWord(int32(a) < imm)
	case instr.SLTIU:
		res = boolToWord(a < uint32(imm))
	case instr.XORI:
		res = a ^ uint32(imm)
	case instr.ORI:
		res = a | uint32(imm)
	case instr.ANDI:
		res = a & uint32(imm)
	case instr.SLLI:
		res = a << (uint32(imm) & 0x1f)
	case instr.SRLI:
		res = a >> (uint32(imm) & 0x1f)
	case instr.SRAI:
		res = uint32(int32(a) >> (uint32(imm) & 0x1f))
	}
	m.setReg(f.Dest, res)
	m.addWeight(&m.Stats.Simple, m.cfg.Weights.Simple)
	return nil
}

func (m *Machine) execJumpLink(inst *instr.Instruction) error {
	f := inst.JumpLink
	m.setReg(f.Dest, uint32(m.PC+4))
	m.PC = m.PC + f.Offset*2 - 4
	m.addWeight(&m.Stats.Branch, m.cfg.Weights.Branch)
	return nil
}

func (m *Machine) execJumpLinkReg(inst *instr.Instruction) error {
	f := inst.JumpLinkReg
	ret := uint32(m.PC + 4)
	target := (m.Regs[f.Base] + uint32(f.Offset)) &^ 1
	m.setReg(f.Dest, ret)
	m.PC = int32(target) - 4
	m.addWeight(&m.Stats.Branch, m.cfg.Weights.Branch)
	return nil
}

func (m *Machine) execBranch(inst *instr.Instruction) error {
	f := inst.Branch
	a, b := m.Regs[f.Src1], m.Regs[f.Src2]
	var taken bool
	switch inst.Op {
	case instr.BEQ:
		taken = a == b
	case instr.BNE:
		taken = a != b
	case instr.BLT:
		taken = int32(a) < int32(b)
	case instr.BGE:
		taken = int32(a) >= int32(b)
	case instr.BLTU:
		taken = a < b
	case instr.BGEU:
		taken = a >= b
	}
	if taken {
		m.PC = m.PC + f.Offset - 4
	}
	m.addWeight(&m.Stats.Branch, m.cfg.Weights.Branch)
	return nil
}

func (m *Machine) execMArith(inst *instr.Instruction) error {
	f := inst.MArith
	a, b := m.Regs[f.Src1], m.Regs[f.Src2]
	var res uint32
	isDiv := false
	switch inst.Op {
	case instr.MUL:
		res = a * b
	case instr.MULH:
		res = uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case instr.MULHSU:
		res = uint32((int64(int32(a)) * int64(uint64(b))) >> 32)
	case instr.MULHU:
		res = uint32((uint64(a) * uint64(b)) >> 32)
	case instr.DIV:
		isDiv = true
		res = sdiv(int32(a), int32(b))
	case instr.DIVU:
		isDiv = true
		if b == 0 {
			res = 0xffffffff
		} else {
			res = a / b
		}
	case instr.REM:
		isDiv = true
		res = srem(int32(a), int32(b))
	case instr.REMU:
		isDiv = true
		if b == 0 {
			res = a
		} else {
			res = a % b
		}
	}
	m.setReg(f.Dest, res)
	if isDiv {
		m.addWeight(&m.Stats.Div, m.cfg.Weights.Div)
	} else {
		m.addWeight(&m.Stats.Mul, m.cfg.Weights.Mul)
	}
	return nil
}

// sdiv implements RISC-V signed division: divide-by-zero yields -1,
// and INT_MIN/-1 yields INT_MIN (the host overflow case).
func sdiv(a, b int32) uint32 {
	if b == 0 {
		return 0xffffffff
	}
	if a == -2147483648 && b == -1 {
		return 0x80000000
	}
	return uint32(a / b)
}

// srem implements RISC-V signed remainder: remainder-by-zero yields
// the dividend, and INT_MIN%-1 yields 0.
func srem(a, b int32) uint32 {
	if b == 0 {
		return uint32(a)
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return uint32(a % b)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) addWeight(bucket *uint64, weight uint64) {
	*bucket++
	m.Stats.CycleTotal += weight
}
