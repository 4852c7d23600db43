package assemble

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-sim/asmutil"
)

// symLoc is a symbol's section-relative position before the final
// flat layout is known.
type symLoc struct {
	section asmutil.Section
	offset  int
}

type layout struct {
	cursor  map[asmutil.Section]int
	symbols map[string]symLoc
	globals map[string]bool
	// commSizes tracks the widest .comm request seen so far per
	// symbol, so a later smaller/larger .comm for the same symbol in
	// the same unit widens rather than re-reserving space.
	commSizes map[string]int
}

func newLayout() *layout {
	return &layout{
		cursor: map[asmutil.Section]int{
			asmutil.SectionText:   0,
			asmutil.SectionData:   0,
			asmutil.SectionRodata: 0,
			asmutil.SectionBSS:    0,
		},
		symbols:   make(map[string]symLoc),
		globals:   make(map[string]bool),
		commSizes: make(map[string]int),
	}
}

// runPass1 walks the statement sequence computing section sizes and
// unit-local symbol offsets. It never emits bytes.
func runPass1(stmts []statement) (*layout, []error) {
	lay := newLayout()
	var errs []error
	section := asmutil.SectionNone

	for _, s := range stmts {
		switch s.kind {
		case stmtSection:
			section = s.section

		case stmtGlobl:
			lay.globals[s.label] = true

		case stmtLabel:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: label %q outside any section", s.line, s.label))
				continue
			}
			if _, exists := lay.symbols[s.label]; exists {
				errs = append(errs, fmt.Errorf("line %d: duplicate symbol definition %q", s.line, s.label))
				continue
			}
			lay.symbols[s.label] = symLoc{section: section, offset: lay.cursor[section]}

		case stmtAlign:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: alignment directive outside any section", s.line))
				continue
			}
			lay.cursor[section] = alignUp(lay.cursor[section], 1<<uint(s.alignExp))

		case stmtComm:
			// A repeated .comm for a symbol already reserved in this
			// unit widens the reservation to max(old, new) instead of
				// re-reserving space, matching GNU as's common-symbol merge.
			if prevSize, exists := lay.commSizes[s.commSym]; exists {
				if s.commSize > prevSize {
					loc := lay.symbols[s.commSym]
					lay.cursor[asmutil.SectionBSS] = loc.offset + s.commSize
					lay.commSizes[s.commSym] = s.commSize
				}
				continue
			}
			lay.cursor[asmutil.SectionBSS] = alignUp(lay.cursor[asmutil.SectionBSS], s.commAlign)
			lay.symbols[s.commSym] = symLoc{section: asmutil.SectionBSS, offset: lay.cursor[asmutil.SectionBSS]}
			lay.cursor[asmutil.SectionBSS] += s.commSize
			lay.commSizes[s.commSym] = s.commSize

		case stmtZero:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: .zero outside any section", s.line))
				continue
			}
			lay.cursor[section] += s.zeroN

		case stmtString:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: .string/.asciz outside any section", s.line))
				continue
			}
			lay.cursor[section] += len(s.strBytes)

		case stmtWord:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: .word outside any section", s.line))
				continue
			}
			lay.cursor[section] += 4 * len(s.wordArgs)

		case stmtInstr:
			if section == asmutil.SectionNone {
				errs = append(errs, fmt.Errorf("line %d: instruction outside any section", s.line))
				continue
			}
			lay.cursor[section] += 4
		}
	}
	return lay, errs
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}
