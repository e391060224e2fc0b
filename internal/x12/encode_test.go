package x12

import (
	"strings"
	"testing"
	"time"
)

func TestClean(t *testing.T) {
	d := DefaultDelimiters()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uppercases", "Smith", "SMITH"},
		{"trims whitespace", "  Smith  ", "SMITH"},
		{"strips element separator", "PHYSIO*THERAPY", "PHYSIOTHERAPY"},
		{"strips component separator", "A:B", "AB"},
		{"strips repetition separator", "A^B", "AB"},
		{"strips terminator", "A~B", "AB"},
		{"keeps basic punctuation", "O'Brien-Smith, Jr.", "O'BRIEN-SMITH, JR."},
		{"drops non-basic runes", "José", "JOS"},
		{"preserves interior spaces", "MAIN STREET PT", "MAIN STREET PT"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposite(t *testing.T) {
	d := DefaultDelimiters()

	if got := d.Composite("11", "B", "1"); got != "11:B:1" {
		t.Errorf("Composite = %q, want 11:B:1", got)
	}
	// a separator inside a value must not create a phantom component
	if got := d.Composite("ABK", "M54:5"); got != "ABK:M545" {
		t.Errorf("Composite with embedded separator = %q, want ABK:M545", got)
	}
}

func TestSegmentString(t *testing.T) {
	d := DefaultDelimiters()
	s := Seg("NM1", "IL", "1", "SMITH", "JANE", "", "", "", "MI", "123456789")
	want := "NM1*IL*1*SMITH*JANE****MI*123456789~"
	if got := s.String(d); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestFormatting(t *testing.T) {
	when := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	if got := Date(when); got != "20250115" {
		t.Errorf("Date = %q", got)
	}
	if got := ShortDate(when); got != "250115" {
		t.Errorf("ShortDate = %q", got)
	}
	if got := Clock(when); got != "1030" {
		t.Errorf("Clock = %q", got)
	}
	if got := Decimal(85); got != "85.00" {
		t.Errorf("Decimal(85) = %q, want 85.00", got)
	}
	if got := Decimal(1234.5); got != "1234.50" {
		t.Errorf("Decimal(1234.5) = %q, want 1234.50", got)
	}
	if got := ZeroPad(42, 9); got != "000000042" {
		t.Errorf("ZeroPad = %q", got)
	}
	if got := FixedWidth("AB", 5); got != "AB   " {
		t.Errorf("FixedWidth pad = %q", got)
	}
	if got := FixedWidth("ABCDEFG", 5); got != "ABCDE" {
		t.Errorf("FixedWidth truncate = %q", got)
	}
	if got := DigitsOnly("12-3456789"); got != "123456789" {
		t.Errorf("DigitsOnly = %q", got)
	}
}

func TestNewControlNumber(t *testing.T) {
	a := NewControlNumber()
	b := NewControlNumber()

	if len(a) != 9 {
		t.Fatalf("control number %q is not nine digits", a)
	}
	if strings.Trim(a, "0123456789") != "" {
		t.Fatalf("control number %q contains non-digits", a)
	}
	if a == b {
		t.Fatalf("successive control numbers repeated: %q", a)
	}
}
