package asmutil

import (
	"fmt"
	"strconv"
	"strings"
)

// RelocKind is one of the four relocation functions a textual operand
// can postpone to link time.
type RelocKind int

const (
	RelocHI RelocKind = iota
	RelocLO
	RelocPCRelHI
	RelocPCRelLO
)

func (k RelocKind) String() string {
	switch k {
	case RelocHI:
		return "%hi"
	case RelocLO:
		return "%lo"
	case RelocPCRelHI:
		return "%pcrel_hi"
	case RelocPCRelLO:
		return "%pcrel_lo"
	default:
		return "%?"
	}
}

// Reloc is a parsed relocation-function operand: %kind(symbol[+addend]).
type Reloc struct {
	Kind   RelocKind
	Symbol string
	Addend int32
}

var relocPrefixes = map[string]RelocKind{
	"%hi":        RelocHI,
	"%lo":        RelocLO,
	"%pcrel_hi":  RelocPCRelHI,
	"%pcrel_lo":  RelocPCRelLO,
}

// ParseReloc parses "%kind(sym[+N])" and reports whether tok was a
// relocation-function operand at all.
func ParseReloc(tok string) (Reloc, bool, error) {
	tok = strings.TrimSpace(tok)
	for prefix, kind := range relocPrefixes {
		if !strings.HasPrefix(tok, prefix+"(") || !strings.HasSuffix(tok, ")") {
			continue
		}
		inner := tok[len(prefix)+1 : len(tok)-1]
		sym, addend, err := splitSymbolAddend(inner)
		if err != nil {
			return Reloc{}, true, err
		}
		return Reloc{Kind: kind, Symbol: sym, Addend: addend}, true, nil
	}
	return Reloc{}, false, nil
}

func splitSymbolAddend(inner string) (string, int32, error) {
	inner = strings.TrimSpace(inner)
	// Look for a top-level + or - that introduces a numeric addend.
	for i := len(inner) - 1; i > 0; i-- {
		if inner[i] == '+' || inner[i] == '-' {
			sym := strings.TrimSpace(inner[:i])
			numStr := strings.TrimSpace(inner[i:])
			n, err := ParseImmediate(numStr)
			if err == nil && sym != "" {
				return sym, n, nil
			}
		}
	}
	if inner == "" {
		return "", 0, fmt.Errorf("empty relocation operand")
	}
	return inner, 0, nil
}

// BaseOffset is a parsed "imm(reg)" memory operand.
type BaseOffset struct {
	Offset    int32
	OffsetSym string // non-empty if the offset is a relocation, set Offset=0
	Reloc     Reloc
	HasReloc  bool
	Base      int
}

// ParseBaseOffset parses "imm(reg)" or "%relfunc(sym)(reg)" memory
// operands used by loads, stores, and their pseudo expansions.
func ParseBaseOffset(tok string) (BaseOffset, error) {
	tok = strings.TrimSpace(tok)
	open := strings.LastIndex(tok, "(")
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return BaseOffset{}, fmt.Errorf("expected imm(reg) operand, got %q", tok)
	}
	immPart := strings.TrimSpace(tok[:open])
	regPart := tok[open+1 : len(tok)-1]

	reg, err := ParseRegister(regPart)
	if err != nil {
		return BaseOffset{}, fmt.Errorf("bad base register in %q: %w", tok, err)
	}

	if immPart == "" {
		return BaseOffset{Offset: 0, Base: reg}, nil
	}
	if reloc, ok, err := ParseReloc(immPart); ok {
		if err != nil {
			return BaseOffset{}, err
		}
		return BaseOffset{OffsetSym: reloc.Symbol, Reloc: reloc, HasReloc: true, Base: reg}, nil
	}
	n, err := ParseImmediate(immPart)
	if err != nil {
		return BaseOffset{}, fmt.Errorf("bad offset in %q: %w", tok, err)
	}
	return BaseOffset{Offset: n, Base: reg}, nil
}

// ParseImmediate parses a decimal, 0x, 0b, or negative integer literal.
func ParseImmediate(tok string) (int32, error) {
	tok = strings.TrimSpace(tok)
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	} else if strings.HasPrefix(tok, "+") {
		tok = tok[1:]
	}
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X"):
		v, err = strconv.ParseUint(tok[2:], 16, 64)
	case strings.HasPrefix(tok, "0b") || strings.HasPrefix(tok, "0B"):
		v, err = strconv.ParseUint(tok[2:], 2, 64)
	case tok == "0":
		v = 0
	default:
		v, err = strconv.ParseUint(tok, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid immediate %q: %w", tok, err)
	}
	n := int64(v)
	if neg {
		n = -n
	}
	return int32(n), nil
}
