// Package x12 implements ANSI ASC X12 005010 transaction generation for
// outpatient claims: the 270 eligibility inquiry (005010X279A1) and the 837P
// professional claim (005010X222A1), plus the shared segment encoding
// primitives and a companion parser for envelope verification.
package x12

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Delimiters holds the separator characters declared in the ISA header.
// Every data element is cleaned against these before it is emitted.
type Delimiters struct {
	Element    string // ISA element separator, conventionally "*"
	Component  string // ISA16 component separator, ":" or "^"
	Repetition string // ISA11 repetition separator, "^" in 5010
	Terminator string // segment terminator, "~" for production or "\n" for readable files
}

// DefaultDelimiters returns the production 5010 delimiter set.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Element:    "*",
		Component:  ":",
		Repetition: "^",
		Terminator: "~",
	}
}

// ReadableDelimiters terminates segments with newlines for files meant to be
// inspected or uploaded manually.
func ReadableDelimiters() Delimiters {
	d := DefaultDelimiters()
	d.Terminator = "\n"
	return d
}

// basicCharacterSet is the X12 basic character set. Anything outside it is
// dropped by Clean.
const basicCharacterSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 !\"&'()+,-./;?="

// Segment is one X12 segment: an ID and its ordered elements. Element
// positions are significant, so empty elements are preserved when joined.
type Segment struct {
	ID       string
	Elements []string
}

// Seg builds a segment from an ID and its elements.
func Seg(id string, elements ...string) Segment {
	return Segment{ID: id, Elements: elements}
}

// String joins the segment with the given delimiters, terminator included.
func (s Segment) String(d Delimiters) string {
	var b strings.Builder
	b.WriteString(s.ID)
	for _, e := range s.Elements {
		b.WriteString(d.Element)
		b.WriteString(e)
	}
	b.WriteString(d.Terminator)
	return b.String()
}

// Clean strips reserved delimiter characters and anything outside the X12
// basic character set from free-text input, upper-casing it on the way.
// Names and addresses must pass through here before insertion; the generators
// apply it to every free-text element.
func (d Delimiters) Clean(text string) string {
	upper := strings.ToUpper(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		c := string(r)
		if c == d.Element || c == d.Component || c == d.Repetition || c == d.Terminator {
			continue
		}
		if !strings.ContainsRune(basicCharacterSet, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Composite joins sub-element values with the component separator. Values are
// cleaned individually so a stray separator cannot add a phantom component.
func (d Delimiters) Composite(values ...string) string {
	cleaned := make([]string, len(values))
	for i, v := range values {
		cleaned[i] = d.Clean(v)
	}
	return strings.Join(cleaned, d.Component)
}

// Date formats a date as CCYYMMDD.
func Date(t time.Time) string {
	return t.Format("20060102")
}

// ShortDate formats a date as YYMMDD, the legacy format the ISA header uses.
func ShortDate(t time.Time) string {
	return t.Format("060102")
}

// Clock formats a time as HHMM, 24-hour.
func Clock(t time.Time) string {
	return t.Format("1504")
}

// FixedWidth right-pads with spaces, or truncates, to exactly width bytes.
// The ISA header is positional fixed-width, unlike the rest of the format.
func FixedWidth(value string, width int) string {
	if len(value) > width {
		return value[:width]
	}
	return value + strings.Repeat(" ", width-len(value))
}

// ZeroPad left-pads a numeric value with zeros to the given width.
func ZeroPad(n int64, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// Decimal formats a monetary amount with exactly two decimal places and no
// grouping. Locale formatting (thousands commas) would corrupt the claim.
func Decimal(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// DigitsOnly strips everything but digits, reducing formatted NPIs and tax
// IDs ("12-3456789") to the raw digit string the transaction requires.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// controlCounter is a per-process monotonic counter seeded from crypto/rand.
// Uniqueness is only required within one submitter's interchange stream to
// one receiver; a persisted per-trading-partner sequence is left to the
// clearinghouse onboarding (see DESIGN.md).
var controlCounter atomic.Uint64

func init() {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err == nil {
		controlCounter.Store(binary.BigEndian.Uint64(seed[:]) % 100_000_000)
	} else {
		controlCounter.Store(uint64(time.Now().UnixNano()) % 100_000_000)
	}
}

// NewControlNumber returns the next interchange control number as a nine-digit
// string (the ISA13 width). Successive calls never repeat within a process.
func NewControlNumber() string {
	n := controlCounter.Add(1) % 1_000_000_000
	if n == 0 {
		n = controlCounter.Add(1) % 1_000_000_000
	}
	return ZeroPad(int64(n), 9)
}

// timeNow is a variable to allow clamping in tests.
var timeNow = time.Now
