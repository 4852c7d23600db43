package preprocess

import (
	"fmt"
	"strings"

	"github.com/lookbusy1344/rv32im-sim/asmutil"
)

// splitOperands splits "a, b, c" into ["a","b","c"], respecting
// parenthesized base-offset operands so a comma inside "imm(reg)" (none
// exist in this ISA, but %reloc(sym+N) might) never breaks a field.
func splitOperands(rest string) []string {
	var fields []string
	depth := 0
	start := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, strings.TrimSpace(rest[start:i]))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(rest[start:])
	if last != "" || len(fields) > 0 {
		fields = append(fields, last)
	}
	return fields
}

func splitMnemonic(line string) (string, string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:idx]), strings.TrimSpace(line[idx+1:])
}

var zeroBranchOps = map[string]string{
	"beqz": "beq", "bnez": "bne", "bltz": "blt", "bgez": "bge",
	"bltuz": "bltu", "bgeuz": "bgeu",
}

var swappedBranchOps = map[string]string{
	"bgt": "blt", "ble": "bge", "bgtu": "bltu", "bleu": "bgeu",
}

// expand translates one normalized line (label, directive, or
// instruction) into one or more concrete output lines. Labels and
// directives pass through untouched; unrecognized mnemonics pass
// through untouched too (the assembler reports NotSupported for those
// that are neither valid pseudo- nor concrete instructions).
func (p *Preprocessor) expand(line string, num int) ([]string, error) {
	if strings.HasSuffix(line, ":") || strings.HasPrefix(line, ".") {
		return []string{line}, nil
	}

	mnemonic, rest := splitMnemonic(line)
	ops := splitOperands(rest)

	switch mnemonic {
	case "nop":
		return []string{"addi zero,zero,0"}, nil

	case "mv":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("addi %s,%s,0", ops[0], ops[1])} })

	case "not":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("xori %s,%s,-1", ops[0], ops[1])} })

	case "neg":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("sub %s,zero,%s", ops[0], ops[1])} })

	case "seqz":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("sltiu %s,%s,1", ops[0], ops[1])} })

	case "snez":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("sltu %s,zero,%s", ops[0], ops[1])} })

	case "sltz":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("slt %s,%s,zero", ops[0], ops[1])} })

	case "sgtz":
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("slt %s,zero,%s", ops[0], ops[1])} })

	case "sgt":
		return need(ops, 3, func() []string { return []string{fmt.Sprintf("slt %s,%s,%s", ops[0], ops[2], ops[1])} })

	case "j":
		return need(ops, 1, func() []string { return []string{fmt.Sprintf("jal zero,%s", ops[0])} })

	case "jal":
		if len(ops) == 1 {
			return []string{fmt.Sprintf("jal ra,%s", ops[0])}, nil
		}
		return []string{line}, nil // concrete two-operand form, pass through

	case "jr":
		return need(ops, 1, func() []string { return []string{fmt.Sprintf("jalr zero,0(%s)", ops[0])} })

	case "jalr":
		if len(ops) == 1 {
			return []string{fmt.Sprintf("jalr ra,0(%s)", ops[0])}, nil
		}
		return []string{line}, nil // concrete rd,offset(base) form

	case "ret":
		return []string{"jalr zero,0(ra)"}, nil

	case "li":
		return need(ops, 2, func() []string { return p.expandLi(ops[0], ops[1]) })

	case "la":
		return need(ops, 2, func() []string { return p.expandLa(ops[0], ops[1]) })

	case "lb", "lh", "lw":
		if len(ops) == 2 && !strings.Contains(ops[1], "(") {
			return p.expandLoadSym(mnemonic, ops[0], ops[1]), nil
		}
		return []string{line}, nil // concrete rd,offset(base) form

	case "sb", "sh", "sw":
		if len(ops) == 3 {
			return p.expandStoreSym(mnemonic, ops[0], ops[1], ops[2]), nil
		}
		return []string{line}, nil // concrete rs,offset(base) form

	case "call":
		return need(ops, 1, func() []string { return p.expandCall(ops[0], "ra") })

	case "tail":
		return need(ops, 1, func() []string { return p.expandCall(ops[0], "zero") })
	}

	if real, ok := zeroBranchOps[mnemonic]; ok {
		return need(ops, 2, func() []string { return []string{fmt.Sprintf("%s %s,zero,%s", real, ops[0], ops[1])} })
	}
	if real, ok := swappedBranchOps[mnemonic]; ok {
		return need(ops, 3, func() []string { return []string{fmt.Sprintf("%s %s,%s,%s", real, ops[1], ops[0], ops[2])} })
	}

	// Concrete instruction (or unrecognized mnemonic, deferred to the
	// assembler for diagnosis) — pass the original line through.
	return []string{line}, nil
}

func need(ops []string, n int, f func() []string) ([]string, error) {
	if len(ops) != n {
		return nil, fmt.Errorf("expected %d operand(s), got %d: %v", n, len(ops), ops)
	}
	return f(), nil
}

func (p *Preprocessor) expandLi(rd, immTok string) []string {
	imm, err := asmutil.ParseImmediate(immTok)
	if err != nil {
		// Not a literal immediate (e.g. a symbol); treat like la.
		return p.expandLa(rd, immTok)
	}
	hi := imm >> 12
	if hi != 0 {
		lo := imm & 0xfff
		return []string{
			fmt.Sprintf("lui %s,%d", rd, hi),
			fmt.Sprintf("ori %s,%s,%d", rd, rd, lo),
		}
	}
	return []string{fmt.Sprintf("addi %s,zero,%d", rd, imm)}
}

func (p *Preprocessor) expandLa(rd, sym string) []string {
	label := p.nextLabel()
	return []string{
		label + ":",
		fmt.Sprintf("auipc %s,%%pcrel_hi(%s)", rd, sym),
		fmt.Sprintf("addi %s,%s,%%pcrel_lo(%s)", rd, rd, label),
	}
}

func (p *Preprocessor) expandLoadSym(mnemonic, rd, sym string) []string {
	label := p.nextLabel()
	return []string{
		label + ":",
		fmt.Sprintf("auipc %s,%%pcrel_hi(%s)", rd, sym),
		fmt.Sprintf("%s %s,%%pcrel_lo(%s)(%s)", mnemonic, rd, label, rd),
	}
}

func (p *Preprocessor) expandStoreSym(mnemonic, rd, sym, rt string) []string {
	label := p.nextLabel()
	return []string{
		label + ":",
		fmt.Sprintf("auipc %s,%%pcrel_hi(%s)", rt, sym),
		fmt.Sprintf("%s %s,%%pcrel_lo(%s)(%s)", mnemonic, rd, label, rt),
	}
}

func (p *Preprocessor) expandCall(fn, linkReg string) []string {
	label := p.nextLabel()
	return []string{
		label + ":",
		"auipc t1,%pcrel_hi(" + fn + ")",
		fmt.Sprintf("jalr %s,%%pcrel_lo(%s)(t1)", linkReg, label),
	}
}
