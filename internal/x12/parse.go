package x12

// Companion parser: splits an interchange back into segments using the
// delimiters the ISA header declares, and verifies the envelope invariants
// the generators guarantee. Used for acknowledgment triage and by tests.

import (
	"fmt"
	"strconv"
	"strings"
)

// The ISA segment is fixed-width: 106 bytes, with the element separator at
// byte 3, the component separator at byte 104 and the terminator at byte 106.
const isaByteCount = 106

// Interchange is a parsed X12 interchange.
type Interchange struct {
	Delimiters Delimiters
	Segments   []Segment
}

// Parse splits raw X12 text into segments, taking the separators from the
// fixed-width ISA header rather than assuming them.
func Parse(content string) (*Interchange, error) {
	if len(content) < isaByteCount+1 {
		return nil, fmt.Errorf("interchange too short: %d bytes", len(content))
	}
	if !strings.HasPrefix(content, "ISA") {
		return nil, fmt.Errorf("interchange does not start with ISA")
	}

	d := Delimiters{
		Element:    string(content[3]),
		Repetition: string(content[82]),
		Component:  string(content[104]),
		Terminator: string(content[105]),
	}

	var segs []Segment
	for _, raw := range strings.Split(content, d.Terminator) {
		raw = strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parts := strings.Split(raw, d.Element)
		segs = append(segs, Segment{ID: parts[0], Elements: parts[1:]})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("no segments found")
	}
	return &Interchange{Delimiters: d, Segments: segs}, nil
}

// Find returns every segment with the given ID.
func (ic *Interchange) Find(id string) []Segment {
	var out []Segment
	for _, s := range ic.Segments {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

// element returns the 1-based element of a segment, or "" when absent.
func element(s Segment, n int) string {
	if n < 1 || n > len(s.Elements) {
		return ""
	}
	return s.Elements[n-1]
}

// ControlNumbers extracts the three envelope control numbers.
func (ic *Interchange) ControlNumbers() (ControlNumbers, error) {
	var nums ControlNumbers
	for _, s := range ic.Segments {
		switch s.ID {
		case "ISA":
			nums.Interchange = strings.TrimSpace(element(s, 13))
		case "GS":
			nums.Group = element(s, 6)
		case "ST":
			nums.TransactionSet = element(s, 2)
		}
	}
	if nums.Interchange == "" || nums.Group == "" || nums.TransactionSet == "" {
		return nums, fmt.Errorf("incomplete envelope: missing control numbers")
	}
	return nums, nil
}

// TransactionSegmentCount counts segments from ST through SE inclusive.
func (ic *Interchange) TransactionSegmentCount() (int, error) {
	start := -1
	for i, s := range ic.Segments {
		switch s.ID {
		case "ST":
			start = i
		case "SE":
			if start < 0 {
				return 0, fmt.Errorf("SE before ST")
			}
			return i - start + 1, nil
		}
	}
	return 0, fmt.Errorf("transaction set not terminated")
}

// Verify checks the envelope invariants: the SE segment count matches the
// actual count, and each trailer control number matches its header.
func (ic *Interchange) Verify() error {
	byID := map[string]Segment{}
	for _, id := range []string{"ISA", "IEA", "GS", "GE", "ST", "SE"} {
		segs := ic.Find(id)
		if len(segs) != 1 {
			return fmt.Errorf("expected exactly one %s segment, found %d", id, len(segs))
		}
		byID[id] = segs[0]
	}

	count, err := ic.TransactionSegmentCount()
	if err != nil {
		return err
	}
	declared, err := strconv.Atoi(element(byID["SE"], 1))
	if err != nil || declared != count {
		return fmt.Errorf("SE01 declares %s segments, counted %d", element(byID["SE"], 1), count)
	}
	if st, se := element(byID["ST"], 2), element(byID["SE"], 2); st != se {
		return fmt.Errorf("ST02 %q does not match SE02 %q", st, se)
	}
	if gs, ge := element(byID["GS"], 6), element(byID["GE"], 2); gs != ge {
		return fmt.Errorf("GS06 %q does not match GE02 %q", gs, ge)
	}
	if isa, iea := strings.TrimSpace(element(byID["ISA"], 13)), element(byID["IEA"], 2); isa != iea {
		return fmt.Errorf("ISA13 %q does not match IEA02 %q", isa, iea)
	}
	if element(byID["GE"], 1) != "1" {
		return fmt.Errorf("GE01 must be 1 for a single-transaction group")
	}
	if element(byID["IEA"], 1) != "1" {
		return fmt.Errorf("IEA01 must be 1 for a single-group interchange")
	}
	return nil
}

// Acknowledgment summarizes a 999 functional acknowledgment from the
// clearinghouse.
type Acknowledgment struct {
	TransactionSet string
	Accepted       bool
	StatusCode     string // AK901: A accepted, E accepted with errors, R rejected
}

// ParseAcknowledgment triages a 999 response. Anything other than an outright
// rejection leaves the claim submitted; rejections are surfaced for operator
// follow-up.
func ParseAcknowledgment(content string) (*Acknowledgment, error) {
	ic, err := Parse(content)
	if err != nil {
		return nil, err
	}
	st := ic.Find("ST")
	if len(st) == 0 {
		return nil, fmt.Errorf("no transaction set in acknowledgment")
	}
	ack := &Acknowledgment{TransactionSet: element(st[0], 1)}
	if ack.TransactionSet != "999" && ack.TransactionSet != "997" {
		return nil, fmt.Errorf("not an acknowledgment transaction: %s", ack.TransactionSet)
	}
	ak9 := ic.Find("AK9")
	if len(ak9) == 0 {
		return nil, fmt.Errorf("acknowledgment missing AK9")
	}
	ack.StatusCode = element(ak9[0], 1)
	ack.Accepted = ack.StatusCode == "A" || ack.StatusCode == "E"
	return ack, nil
}
