package x12

import (
	"strings"
	"testing"
	"time"
)

func valid837Input() Claim837Input {
	return Claim837Input{
		Submitter: Submitter{
			Name:        "Main Street Physical Therapy",
			ID:          "TX1234",
			ContactName: "Pat Moreno",
			Phone:       "512-555-0134",
		},
		Receiver: Receiver{Name: "TMHP", ID: "617591011C21P"},
		Billing: BillingProvider{
			Name:         "Main Street Physical Therapy",
			NPI:          "1234567893",
			TaxonomyCode: "225100000X",
			TaxID:        "12-3456789",
			Address: Address{
				Line1: "400 Main St",
				City:  "Austin",
				State: "TX",
				Zip:   "78701",
			},
		},
		Subscriber: Subscriber{
			LastName:  "Smith",
			FirstName: "Jane",
			MemberID:  "123456789",
			Gender:    "F",
			DOB:       time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
			Address: Address{
				Line1: "12 Oak Ln",
				City:  "Austin",
				State: "TX",
				Zip:   "78702",
			},
		},
		Payer:          Payer{Name: "Texas Medicaid", ID: "TXMCD"},
		ClaimID:        "CLM1001",
		TotalCharge:    85,
		PlaceOfService: "11",
		DiagnosisCodes: []string{"M54.5", "M25.561"},
		Lines: []ServiceLine{
			{
				LineNumber:        1,
				ProcedureCode:     "97110",
				Charge:            85,
				Units:             1,
				DiagnosisPointers: []int{1, 2},
				ServiceDate:       time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestGenerate837P(t *testing.T) {
	fixedClock(t)
	d := DefaultDelimiters()

	res := Generate837P(valid837Input(), testEnvelope(), d)
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}

	ic, err := Parse(res.Content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ic.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	count, err := ic.TransactionSegmentCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != res.SegmentCount {
		t.Errorf("SegmentCount = %d, parser counted %d", res.SegmentCount, count)
	}

	clm := ic.Find("CLM")
	if len(clm) != 1 {
		t.Fatalf("found %d CLM segments", len(clm))
	}
	if got := element(clm[0], 1); got != "CLM1001" {
		t.Errorf("CLM01 = %q", got)
	}
	if got := element(clm[0], 2); got != "85.00" {
		t.Errorf("CLM02 = %q, want 85.00", got)
	}
	if got := element(clm[0], 5); got != "11:B:1" {
		t.Errorf("CLM05 = %q, want 11:B:1", got)
	}
	if got := element(clm[0], 6); got != "Y" {
		t.Errorf("CLM06 = %q, want Y", got)
	}

	// principal diagnosis first under ABK, the rest under ABF, in input order
	hi := ic.Find("HI")
	if len(hi) != 1 {
		t.Fatalf("found %d HI segments", len(hi))
	}
	if element(hi[0], 1) != "ABK:M54.5" || element(hi[0], 2) != "ABF:M25.561" {
		t.Errorf("HI = %v", hi[0].Elements)
	}

	lx := ic.Find("LX")
	if len(lx) != 1 || element(lx[0], 1) != "1" {
		t.Errorf("LX = %v", lx)
	}
	sv1 := ic.Find("SV1")
	if len(sv1) != 1 {
		t.Fatalf("found %d SV1 segments", len(sv1))
	}
	if element(sv1[0], 1) != "HC:97110" {
		t.Errorf("SV101 = %q", element(sv1[0], 1))
	}
	if element(sv1[0], 2) != "85.00" || element(sv1[0], 3) != "UN" || element(sv1[0], 4) != "1" {
		t.Errorf("SV1 = %v", sv1[0].Elements)
	}
	if got := element(sv1[0], 7); got != "1:2" {
		t.Errorf("SV107 = %q, want 1:2", got)
	}

	dtp := ic.Find("DTP")
	if len(dtp) != 1 || element(dtp[0], 1) != "472" || element(dtp[0], 3) != "20250110" {
		t.Errorf("DTP = %v", dtp)
	}

	// billing provider identity
	var billing, payer Segment
	for _, s := range ic.Find("NM1") {
		switch element(s, 1) {
		case "85":
			billing = s
		case "PR":
			payer = s
		case "82":
			t.Error("rendering NM1*82 emitted without a rendering provider")
		}
	}
	if element(billing, 9) != "1234567893" {
		t.Errorf("billing NPI = %q", element(billing, 9))
	}
	if element(payer, 9) != "TXMCD" {
		t.Errorf("payer ID = %q", element(payer, 9))
	}

	ref := ic.Find("REF")
	if len(ref) != 1 || element(ref[0], 1) != "EI" || element(ref[0], 2) != "123456789" {
		t.Errorf("REF = %v, want tax ID reduced to digits", ref)
	}
}

func TestGenerate837PRenderingProvider(t *testing.T) {
	fixedClock(t)

	in := valid837Input()
	in.Rendering = &RenderingProvider{
		LastName:     "Nguyen",
		FirstName:    "Alex",
		NPI:          "1999999984",
		TaxonomyCode: "225100000X",
	}

	res := Generate837P(in, testEnvelope(), DefaultDelimiters())
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}
	ic, _ := Parse(res.Content)

	var rendering Segment
	for _, s := range ic.Find("NM1") {
		if element(s, 1) == "82" {
			rendering = s
		}
	}
	if rendering.ID == "" {
		t.Fatal("rendering NM1*82 not emitted")
	}
	if element(rendering, 3) != "NGUYEN" || element(rendering, 4) != "ALEX" || element(rendering, 9) != "1999999984" {
		t.Errorf("rendering NM1 = %v", rendering.Elements)
	}

	foundPE := false
	for _, s := range ic.Find("PRV") {
		if element(s, 1) == "PE" {
			foundPE = true
		}
	}
	if !foundPE {
		t.Error("rendering PRV*PE not emitted")
	}
}

func TestGenerate837PValidation(t *testing.T) {
	fixedClock(t)
	d := DefaultDelimiters()

	res := Generate837P(Claim837Input{}, testEnvelope(), d)
	if res.Success {
		t.Fatal("empty input generated successfully")
	}
	if res.Content != "" {
		t.Error("failed generation produced content")
	}
	if len(res.Errors) < 5 {
		t.Errorf("expected the full error list, got %v", res.Errors)
	}

	tests := []struct {
		name   string
		mutate func(*Claim837Input)
		want   string
	}{
		{"pointer out of range", func(in *Claim837Input) {
			in.Lines[0].DiagnosisPointers = []int{3}
		}, "diagnosis pointer 3 is out of range"},
		{"zero units", func(in *Claim837Input) {
			in.Lines[0].Units = 0
		}, "unit count must be at least 1"},
		{"three modifiers", func(in *Claim837Input) {
			in.Lines[0].Modifiers = []string{"GP", "59", "KX"}
		}, "at most two modifiers"},
		{"no pointers", func(in *Claim837Input) {
			in.Lines[0].DiagnosisPointers = nil
		}, "at least one diagnosis pointer"},
		{"no lines", func(in *Claim837Input) {
			in.Lines = nil
		}, "at least one service line"},
		{"name cleans to empty", func(in *Claim837Input) {
			in.Subscriber.LastName = "***"
		}, "subscriber last name is missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid837Input()
			tt.mutate(&in)
			res := Generate837P(in, testEnvelope(), d)
			if res.Success {
				t.Fatal("expected validation failure")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", res.Errors, tt.want)
			}
		})
	}
}

func TestGenerate837PLineOrdering(t *testing.T) {
	fixedClock(t)

	in := valid837Input()
	in.Lines = []ServiceLine{
		{LineNumber: 2, ProcedureCode: "97140", Charge: 40, Units: 1, DiagnosisPointers: []int{1}, ServiceDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{LineNumber: 1, ProcedureCode: "97110", Charge: 45, Units: 1, DiagnosisPointers: []int{1}, ServiceDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	}

	res := Generate837P(in, testEnvelope(), DefaultDelimiters())
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}
	ic, _ := Parse(res.Content)

	sv1 := ic.Find("SV1")
	if len(sv1) != 2 {
		t.Fatalf("found %d SV1 segments", len(sv1))
	}
	if element(sv1[0], 1) != "HC:97110" || element(sv1[1], 1) != "HC:97140" {
		t.Errorf("lines not emitted in line-number order: %v, %v", sv1[0].Elements, sv1[1].Elements)
	}
	lx := ic.Find("LX")
	if element(lx[0], 1) != "1" || element(lx[1], 1) != "2" {
		t.Errorf("LX counters = %v, %v", lx[0].Elements, lx[1].Elements)
	}
}

func TestGenerate837PSanitization(t *testing.T) {
	fixedClock(t)

	in := valid837Input()
	in.Submitter.Name = "Physio*Thera:py~Clinic^"

	res := Generate837P(in, testEnvelope(), DefaultDelimiters())
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}
	ic, _ := Parse(res.Content)

	submitter := ic.Find("NM1")[0]
	if got := element(submitter, 3); got != "PHYSIOTHERAPYCLINIC" {
		t.Errorf("submitter name = %q, want delimiters stripped", got)
	}
}

func TestGenerate837PModifiers(t *testing.T) {
	fixedClock(t)

	in := valid837Input()
	in.Lines[0].Modifiers = []string{"GP", "59"}

	res := Generate837P(in, testEnvelope(), DefaultDelimiters())
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}
	ic, _ := Parse(res.Content)

	if got := element(ic.Find("SV1")[0], 1); got != "HC:97110:GP:59" {
		t.Errorf("SV101 = %q, want HC:97110:GP:59", got)
	}
}

func TestGenerate837PDeterministic(t *testing.T) {
	fixedClock(t)

	in := valid837Input()
	a := Generate837P(in, testEnvelope(), DefaultDelimiters())
	b := Generate837P(in, testEnvelope(), DefaultDelimiters())
	if !a.Success || !b.Success {
		t.Fatal("generation failed")
	}

	if normalizeControlNumbers(a.Content, a.ControlNumbers) != normalizeControlNumbers(b.Content, b.ControlNumbers) {
		t.Error("identical input produced different output beyond control numbers")
	}
}

func TestGenerate837PFormatted(t *testing.T) {
	fixedClock(t)

	res := Generate837P(valid837Input(), testEnvelope(), DefaultDelimiters())
	if !res.Success {
		t.Fatalf("generation failed: %v", res.Errors)
	}

	lines := strings.Split(strings.TrimSuffix(res.ContentFormatted, "~"), "~\n")
	if len(lines) != strings.Count(res.Content, "~") {
		t.Errorf("formatted rendering has %d lines, content has %d segments",
			len(lines), strings.Count(res.Content, "~"))
	}
	if !strings.HasPrefix(lines[0], "ISA*") {
		t.Errorf("first formatted line = %q", lines[0])
	}
}
