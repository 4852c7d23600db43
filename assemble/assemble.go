// Package assemble implements the two-pass assembler: source text in,
// an object unit out. Pass one discovers section layout and symbols
// without emitting bytes; pass two walks the identical statement
// sequence again, now writing the byte image and instruction pool.
package assemble

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-sim/objunit"
	"github.com/lookbusy1344/rv32im-sim/preprocess"
)

// Assemble turns one source string into an object unit. name is used
// only for diagnostics (preprocessor error locations, the unit's Name
// field); the preprocessor's synthetic-label prefix is random and does
// not depend on it.
func Assemble(source, name string) (*objunit.Unit, []error) {
	pp := preprocess.New(name)
	lines, ppErrs := pp.Process(source)
	if len(ppErrs) > 0 {
		return nil, ppErrs
	}

	stmts, stmtErrs := parseStatements(lines)
	if len(stmtErrs) > 0 {
		return nil, stmtErrs
	}

	lay, layErrs := runPass1(stmts)
	if len(layErrs) > 0 {
		return nil, layErrs
	}

	u, emitErrs := runPass2(stmts, lay, name)
	if len(emitErrs) > 0 {
		return nil, emitErrs
	}

	if err := u.CheckInvariants(); err != nil {
		return nil, []error{fmt.Errorf("assemble %s: %w", name, err)}
	}

	return u, nil
}
