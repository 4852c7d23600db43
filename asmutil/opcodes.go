package asmutil

import "github.com/lookbusy1344/rv32im-sim/instr"

var nameToOp = map[string]instr.Op{
	"lui": instr.LUI, "auipc": instr.AUIPC,
	"add": instr.ADD, "sub": instr.SUB, "sll": instr.SLL, "slt": instr.SLT,
	"sltu": instr.SLTU, "xor": instr.XOR, "srl": instr.SRL, "sra": instr.SRA,
	"or": instr.OR, "and": instr.AND,
	"addi": instr.ADDI, "slti": instr.SLTI, "sltiu": instr.SLTIU,
	"xori": instr.XORI, "ori": instr.ORI, "andi": instr.ANDI,
	"slli": instr.SLLI, "srli": instr.SRLI, "srai": instr.SRAI,
	"lb": instr.LB, "lh": instr.LH, "lw": instr.LW, "lbu": instr.LBU, "lhu": instr.LHU,
	"sb": instr.SB, "sh": instr.SH, "sw": instr.SW,
	"jal": instr.JAL, "jalr": instr.JALR,
	"beq": instr.BEQ, "bne": instr.BNE, "blt": instr.BLT, "bge": instr.BGE,
	"bltu": instr.BLTU, "bgeu": instr.BGEU,
	"mul": instr.MUL, "mulh": instr.MULH, "mulhsu": instr.MULHSU, "mulhu": instr.MULHU,
	"div": instr.DIV, "divu": instr.DIVU, "rem": instr.REM, "remu": instr.REMU,
}

// LookupOp resolves a concrete (non-pseudo) mnemonic to its opcode tag.
func LookupOp(mnemonic string) (instr.Op, bool) {
	op, ok := nameToOp[mnemonic]
	return op, ok
}

// IsOp reports whether mnemonic names a concrete instruction.
func IsOp(mnemonic string) bool {
	_, ok := nameToOp[mnemonic]
	return ok
}
