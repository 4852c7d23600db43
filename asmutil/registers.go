// Package asmutil provides the small parsing utilities shared by the
// preprocessor, assembler and linker: register/opcode name tables,
// base-offset and relocation-function syntax, escape decoding, and
// section-directive recognition.
package asmutil

import (
	"fmt"
	"strings"
)

// register canonical names, index == register number.
var registerNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var nameToRegister map[string]int

func init() {
	nameToRegister = make(map[string]int, 40)
	for i, name := range registerNames {
		nameToRegister[name] = i
	}
	// fp is an alias for s0 (x8)
	nameToRegister["fp"] = 8
}

// RegisterName returns the canonical ABI name for a register index.
func RegisterName(reg int) string {
	if reg < 0 || reg > 31 {
		return fmt.Sprintf("x%d?", reg)
	}
	return registerNames[reg]
}

// ParseRegister resolves a register operand token, accepting either
// the ABI name ("a0", "sp", "fp", ...) or the raw "xN" form.
func ParseRegister(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("empty register operand")
	}
	if reg, ok := nameToRegister[tok]; ok {
		return reg, nil
	}
	if len(tok) >= 2 && (tok[0] == 'x' || tok[0] == 'X') {
		var n int
		if _, err := fmt.Sscanf(tok[1:], "%d", &n); err == nil && n >= 0 && n <= 31 {
			// guard against trailing garbage, e.g. "x1a"
			if fmt.Sprintf("%d", n) == tok[1:] {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown register: %q", tok)
}
