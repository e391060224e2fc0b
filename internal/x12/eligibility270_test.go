package x12

import (
	"strings"
	"testing"
	"time"
)

func fixedClock(t *testing.T) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time {
		return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	}
	t.Cleanup(func() { timeNow = orig })
}

func valid270Input() Eligibility270Input {
	return Eligibility270Input{
		PayerName:        "Texas Medicaid",
		PayerID:          "TXMCD",
		SubmitterID:      "TX1234",
		ProviderName:     "Main Street Physical Therapy",
		ProviderNPI:      "1234567893",
		MemberID:         "123456789",
		PatientFirstName: "Jane",
		PatientLastName:  "Smith",
		PatientDOB:       time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		PatientGender:    "F",
		ServiceDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func testEnvelope() EnvelopeConfig {
	return EnvelopeConfig{SenderID: "TX1234", ReceiverID: "TXMCD"}
}

func TestGenerate270(t *testing.T) {
	fixedClock(t)

	res, err := Generate270(valid270Input(), testEnvelope(), DefaultDelimiters())
	if err != nil {
		t.Fatalf("Generate270: %v", err)
	}

	ic, err := Parse(res.Content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ic.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	wantOrder := []string{"ISA", "GS", "ST", "BHT", "HL", "NM1", "HL", "NM1", "HL", "TRN", "NM1", "DMG", "DTP", "EQ", "SE", "GE", "IEA"}
	if len(ic.Segments) != len(wantOrder) {
		t.Fatalf("got %d segments, want %d", len(ic.Segments), len(wantOrder))
	}
	for i, id := range wantOrder {
		if ic.Segments[i].ID != id {
			t.Errorf("segment %d is %s, want %s", i, ic.Segments[i].ID, id)
		}
	}

	if res.SegmentCount != 13 {
		t.Errorf("SegmentCount = %d, want 13", res.SegmentCount)
	}

	nums, err := ic.ControlNumbers()
	if err != nil {
		t.Fatalf("ControlNumbers: %v", err)
	}
	if nums != res.ControlNumbers {
		t.Errorf("parsed control numbers %+v do not match result %+v", nums, res.ControlNumbers)
	}

	// TRN02 and BHT03 carry the interchange control number so that tracing a
	// payer response back to the inquiry needs no extra bookkeeping.
	trn := ic.Find("TRN")[0]
	if got := element(trn, 2); got != res.ControlNumbers.Interchange {
		t.Errorf("TRN02 = %q, want interchange control %q", got, res.ControlNumbers.Interchange)
	}
	bht := ic.Find("BHT")[0]
	if got := element(bht, 3); got != res.ControlNumbers.Interchange {
		t.Errorf("BHT03 = %q, want interchange control %q", got, res.ControlNumbers.Interchange)
	}

	subscriber := ic.Find("NM1")[2]
	if element(subscriber, 1) != "IL" || element(subscriber, 3) != "SMITH" || element(subscriber, 4) != "JANE" {
		t.Errorf("subscriber NM1 = %v", subscriber.Elements)
	}
	if got := element(subscriber, 9); got != "123456789" {
		t.Errorf("member ID = %q", got)
	}

	dmg := ic.Find("DMG")[0]
	if element(dmg, 2) != "19900315" || element(dmg, 3) != "F" {
		t.Errorf("DMG = %v", dmg.Elements)
	}
	dtp := ic.Find("DTP")[0]
	if element(dtp, 1) != "291" || element(dtp, 3) != "20250115" {
		t.Errorf("DTP = %v", dtp.Elements)
	}
}

func TestGenerate270Defaults(t *testing.T) {
	fixedClock(t)

	in := valid270Input()
	in.ServiceTypeCode = ""
	in.PatientGender = ""

	res, err := Generate270(in, testEnvelope(), DefaultDelimiters())
	if err != nil {
		t.Fatalf("Generate270: %v", err)
	}
	ic, _ := Parse(res.Content)

	if got := element(ic.Find("EQ")[0], 1); got != "30" {
		t.Errorf("EQ01 = %q, want default 30", got)
	}
	if got := element(ic.Find("DMG")[0], 3); got != "U" {
		t.Errorf("DMG03 = %q, want default U", got)
	}
}

func TestGenerate270Validation(t *testing.T) {
	fixedClock(t)

	tests := []struct {
		name   string
		mutate func(*Eligibility270Input)
	}{
		{"missing payer", func(in *Eligibility270Input) { in.PayerID = "" }},
		{"missing submitter", func(in *Eligibility270Input) { in.SubmitterID = "" }},
		{"missing NPI", func(in *Eligibility270Input) { in.ProviderNPI = "" }},
		{"missing member ID", func(in *Eligibility270Input) { in.MemberID = "" }},
		{"missing name", func(in *Eligibility270Input) { in.PatientLastName = "" }},
		{"name cleans to empty", func(in *Eligibility270Input) { in.PatientLastName = "***" }},
		{"payer cleans to empty", func(in *Eligibility270Input) { in.PayerName = "~*:^" }},
		{"NPI without digits", func(in *Eligibility270Input) { in.ProviderNPI = "A-B" }},
		{"missing DOB", func(in *Eligibility270Input) { in.PatientDOB = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid270Input()
			tt.mutate(&in)
			if _, err := Generate270(in, testEnvelope(), DefaultDelimiters()); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestGenerate270Deterministic(t *testing.T) {
	fixedClock(t)

	in := valid270Input()
	a, err := Generate270(in, testEnvelope(), DefaultDelimiters())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate270(in, testEnvelope(), DefaultDelimiters())
	if err != nil {
		t.Fatal(err)
	}

	if normalizeControlNumbers(a.Content, a.ControlNumbers) != normalizeControlNumbers(b.Content, b.ControlNumbers) {
		t.Error("identical input produced different output beyond control numbers")
	}
}

// normalizeControlNumbers masks the per-generation control numbers so two
// runs over the same input can be compared byte for byte.
func normalizeControlNumbers(content string, nums ControlNumbers) string {
	content = strings.ReplaceAll(content, nums.Interchange, "#########")
	content = strings.ReplaceAll(content, nums.Group, "#")
	return content
}
