// Package preprocess turns raw RV32IM assembly text into a normalized
// sequence of lines: one label, directive, or concrete instruction per
// line, pseudo-instructions already expanded. It owns no state beyond
// the single call; its output is consumed once by the assembler and
// then discarded.
package preprocess

import (
	"fmt"
	"math/rand"
	"strings"
)

// Line is one normalized, non-empty preprocessor output line.
type Line struct {
	Text string
	File string
	Num  int // 1-based source line number this text originated from
}

// Error reports a line the preprocessor could not make sense of. The
// preprocessor never silently drops content: every unparsable token
// produces one of these instead.
type Error struct {
	File    string
	Num     int
	Message string
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("%d", e.Num)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Preprocessor normalizes one source string into a Line sequence.
type Preprocessor struct {
	file     string
	labelSeq int
	prefix   string
}

// New creates a Preprocessor for a named source (used only in
// diagnostics). Each call gets its own random 16-bit label prefix, so
// multiple units preprocessed in the same process are unlikely (though
// not guaranteed never) to share synthesized la/call/tail labels.
func New(file string) *Preprocessor {
	return &Preprocessor{
		file:   file,
		prefix: fmt.Sprintf("__pp%04x", rand.Intn(0x10000)),
	}
}

// Process runs the full pipeline: split, strip comments, trim, hoist
// labels, expand pseudo-instructions.
func (p *Preprocessor) Process(source string) ([]Line, []error) {
	var errs []error
	var out []Line

	rawLines := strings.Split(source, "\n")
	for i, raw := range rawLines {
		num := i + 1
		stripped := stripComment(raw)
		trimmed := strings.TrimSpace(expandTabs(stripped))
		if trimmed == "" {
			continue
		}
		for _, piece := range hoistLabel(trimmed) {
			if piece == "" {
				continue
			}
			expanded, err := p.expand(piece, num)
			if err != nil {
				errs = append(errs, &Error{File: p.file, Num: num, Message: err.Error()})
				continue
			}
			for _, e := range expanded {
				out = append(out, Line{Text: e, File: p.file, Num: num})
			}
		}
	}
	return out, errs
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", " ")
}

// stripComment truncates a raw source line at the first '#' that is
// not inside a string literal (honoring backslash escapes).
func stripComment(line string) string {
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		if c == '#' {
			return line[:i]
		}
	}
	return line
}

var labelRe = buildLabelMatcher()

// hoistLabel splits "label: rest" into ["label:", "rest"] so that each
// becomes its own line. A line with no label is returned unchanged as
// a single-element slice. Multiple successive colons are not special;
// only the first "ident:" prefix is treated as a label.
func hoistLabel(line string) []string {
	end := labelRe(line)
	if end < 0 {
		return []string{line}
	}
	label := strings.TrimSpace(line[:end])
	rest := strings.TrimSpace(line[end:])
	if rest == "" {
		return []string{label}
	}
	return []string{label, rest}
}

// buildLabelMatcher returns a function reporting the end index (just
// past the ':') of a leading "[.A-Za-z0-9_]*:" label, or -1 if none.
// Hand-rolled rather than regexp to match the lexer's character-at-a-
// time idiom used elsewhere in the preprocessor.
func buildLabelMatcher() func(string) int {
	isLabelChar := func(c byte) bool {
		return c == '.' || c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	return func(line string) int {
		i := 0
		for i < len(line) && isLabelChar(line[i]) {
			i++
		}
		if i < len(line) && line[i] == ':' {
			return i + 1
		}
		return -1
	}
}

// nextLabel synthesizes a unique internal label for la/l{b,h,w}/
// s{b,h,w}/call/tail expansions.
func (p *Preprocessor) nextLabel() string {
	p.labelSeq++
	return fmt.Sprintf("%s_%d", p.prefix, p.labelSeq)
}
