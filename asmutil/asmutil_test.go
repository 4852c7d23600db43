package asmutil

import "testing"

func TestParseRegister(t *testing.T) {
	cases := map[string]int{
		"zero": 0, "ra": 1, "sp": 2, "fp": 8, "s0": 8,
		"a0": 10, "a7": 17, "t6": 31, "x0": 0, "x31": 31,
	}
	for tok, want := range cases {
		got, err := ParseRegister(tok)
		if err != nil {
			t.Errorf("ParseRegister(%q) error: %v", tok, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRegister(%q) = %d, want %d", tok, got, want)
		}
	}
	if _, err := ParseRegister("bogus"); err == nil {
		t.Error("expected error for unknown register")
	}
}

func TestDecodeEscapes(t *testing.T) {
	cases := map[string]string{
		`hello\n`:    "hello\n",
		`a\tb`:       "a\tb",
		`\x41`:       "A",
		`\101`:       "A", // octal 101 = 0x41 = 'A'
		`\12`:        "\n",
		`no-escapes`: "no-escapes",
	}
	for in, want := range cases {
		got := string(DecodeEscapes(in))
		if got != want {
			t.Errorf("DecodeEscapes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseImmediate(t *testing.T) {
	cases := map[string]int32{
		"42":    42,
		"-1":    -1,
		"0x2A":  42,
		"0b101": 5,
		"0":     0,
	}
	for tok, want := range cases {
		got, err := ParseImmediate(tok)
		if err != nil {
			t.Errorf("ParseImmediate(%q) error: %v", tok, err)
			continue
		}
		if got != want {
			t.Errorf("ParseImmediate(%q) = %d, want %d", tok, got, want)
		}
	}
}

func TestParseReloc(t *testing.T) {
	r, ok, err := ParseReloc("%hi(main)")
	if err != nil || !ok {
		t.Fatalf("ParseReloc failed: ok=%v err=%v", ok, err)
	}
	if r.Kind != RelocHI || r.Symbol != "main" || r.Addend != 0 {
		t.Errorf("unexpected reloc: %+v", r)
	}

	r2, ok, err := ParseReloc("%pcrel_lo(Lstart)")
	if err != nil || !ok {
		t.Fatalf("ParseReloc failed: ok=%v err=%v", ok, err)
	}
	if r2.Kind != RelocPCRelLO || r2.Symbol != "Lstart" {
		t.Errorf("unexpected reloc: %+v", r2)
	}

	_, ok, _ = ParseReloc("42")
	if ok {
		t.Error("expected non-reloc operand to report ok=false")
	}
}

func TestParseBaseOffset(t *testing.T) {
	bo, err := ParseBaseOffset("8(sp)")
	if err != nil {
		t.Fatalf("ParseBaseOffset error: %v", err)
	}
	if bo.Offset != 8 || bo.Base != 2 {
		t.Errorf("unexpected base-offset: %+v", bo)
	}

	bo2, err := ParseBaseOffset("%pcrel_lo(Lk)(a0)")
	if err != nil {
		t.Fatalf("ParseBaseOffset error: %v", err)
	}
	if !bo2.HasReloc || bo2.Reloc.Kind != RelocPCRelLO || bo2.Base != 10 {
		t.Errorf("unexpected base-offset: %+v", bo2)
	}
}

func TestParseSectionDirective(t *testing.T) {
	cases := map[string]Section{
		".text":            SectionText,
		".data":            SectionData,
		".rodata":          SectionRodata,
		".bss":             SectionBSS,
		".section .text":   SectionText,
		".section .sdata":  SectionData,
		".section .srodata": SectionRodata,
	}
	for line, want := range cases {
		got, ok := ParseSectionDirective(line)
		if !ok {
			t.Errorf("ParseSectionDirective(%q) not recognized", line)
			continue
		}
		if got != want {
			t.Errorf("ParseSectionDirective(%q) = %v, want %v", line, got, want)
		}
	}
	if _, ok := ParseSectionDirective("li a0, 1"); ok {
		t.Error("expected non-directive line to be unrecognized")
	}
}
