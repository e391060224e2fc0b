package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/rehabdocs/go-claims/internal/domain/claim"
	"github.com/rehabdocs/go-claims/internal/x12"
)

func testClinic() *claim.Clinic {
	return &claim.Clinic{
		ID:              "clinic-1",
		Name:            "Main Street Physical Therapy",
		NPI:             "1234567893",
		TaxID:           "12-3456789",
		TaxonomyCode:    "225100000X",
		BillingAddress1: "400 Main St",
		BillingCity:     "Austin",
		BillingState:    "TX",
		BillingZip:      "78701",
		SubmitterID:     "TX1234",
		PayerName:       "Texas Medicaid",
		PayerID:         "TXMCD",

		RenderingProviderName: "Nguyen, Alex",
		RenderingProviderNPI:  "1999999984",
	}
}

func testPatient() *claim.Patient {
	return &claim.Patient{
		ID:         "patient-1",
		FirstName:  "Jane",
		LastName:   "Smith",
		Gender:     "female",
		DOB:        time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		MedicaidID: "123456789",
		Address1:   "12 Oak Ln",
		City:       "Austin",
		State:      "TX",
		Zip:        "78702",
	}
}

func testBundle() *claim.Bundle {
	return &claim.Bundle{
		Claim: &claim.Claim{
			ID:             "CLM1001",
			ClinicID:       "clinic-1",
			PatientID:      "patient-1",
			TotalCharge:    85,
			PlaceOfService: "11",
			DiagnosisCodes: []string{"M54.5", "M25.561"},
			Status:         claim.StatusDraft,
		},
		Lines: []claim.Line{
			{
				LineNumber:        1,
				CPTCode:           "97110",
				Charge:            85,
				Units:             1,
				DiagnosisPointers: []int{1, 2},
				ServiceDate:       time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			},
		},
		Clinic:  testClinic(),
		Patient: testPatient(),
	}
}

func newTestAssembler() *Assembler {
	return NewAssembler(x12.Receiver{Name: "TMHP", ID: "617591011C21P"})
}

func TestBuild837(t *testing.T) {
	in, err := newTestAssembler().Build837(testBundle())
	if err != nil {
		t.Fatalf("Build837: %v", err)
	}

	if in.Submitter.ID != "TX1234" || in.Submitter.Name != "Main Street Physical Therapy" {
		t.Errorf("submitter = %+v", in.Submitter)
	}
	if in.Receiver.ID != "617591011C21P" {
		t.Errorf("receiver = %+v", in.Receiver)
	}
	if in.Billing.NPI != "1234567893" || in.Billing.TaxID != "12-3456789" {
		t.Errorf("billing = %+v", in.Billing)
	}
	if in.Subscriber.MemberID != "123456789" || in.Subscriber.Gender != "F" {
		t.Errorf("subscriber = %+v", in.Subscriber)
	}
	if in.Rendering == nil {
		t.Fatal("rendering provider not mapped")
	}
	if in.Rendering.LastName != "Nguyen" || in.Rendering.FirstName != "Alex" {
		t.Errorf("rendering = %+v", in.Rendering)
	}
	if len(in.Lines) != 1 || in.Lines[0].ProcedureCode != "97110" {
		t.Errorf("lines = %+v", in.Lines)
	}

	// the built input must generate cleanly
	res := x12.Generate837P(in, x12.EnvelopeConfig{SenderID: "TX1234", ReceiverID: "TXMCD"}, x12.DefaultDelimiters())
	if !res.Success {
		t.Errorf("assembled input failed generation: %v", res.Errors)
	}
}

func TestBuild837Defaults(t *testing.T) {
	b := testBundle()
	b.Clinic.TaxonomyCode = ""
	b.Clinic.RenderingProviderNPI = ""
	b.Claim.PlaceOfService = ""
	b.Lines[0].DiagnosisPointers = nil
	b.Lines[0].Units = 0

	in, err := newTestAssembler().Build837(b)
	if err != nil {
		t.Fatalf("Build837: %v", err)
	}

	if in.Billing.TaxonomyCode != DefaultTaxonomyCode {
		t.Errorf("taxonomy = %q, want default", in.Billing.TaxonomyCode)
	}
	if in.PlaceOfService != DefaultPlaceOfService {
		t.Errorf("place of service = %q, want default", in.PlaceOfService)
	}
	if in.Rendering != nil {
		t.Error("rendering provider mapped without an NPI")
	}
	if got := in.Lines[0].DiagnosisPointers; len(got) != 1 || got[0] != 1 {
		t.Errorf("pointers = %v, want principal default", got)
	}
	if in.Lines[0].Units != 1 {
		t.Errorf("units = %d, want floor of 1", in.Lines[0].Units)
	}
}

func TestBuild837MissingConfig(t *testing.T) {
	b := testBundle()
	b.Clinic.NPI = ""
	b.Clinic.TaxID = "  "
	b.Clinic.PayerID = ""

	_, err := newTestAssembler().Build837(b)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	want := map[string]bool{"NPI": true, "tax ID": true, "payer ID": true}
	if len(cfgErr.Missing) != len(want) {
		t.Fatalf("missing = %v", cfgErr.Missing)
	}
	for _, f := range cfgErr.Missing {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}

func TestBuild270(t *testing.T) {
	serviceDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	in, err := newTestAssembler().Build270(testClinic(), testPatient(), serviceDate, "")
	if err != nil {
		t.Fatalf("Build270: %v", err)
	}
	if in.ServiceTypeCode != DefaultServiceType {
		t.Errorf("service type = %q, want default", in.ServiceTypeCode)
	}
	if in.MemberID != "123456789" || in.PatientGender != "F" {
		t.Errorf("input = %+v", in)
	}

	res, err := x12.Generate270(in, x12.EnvelopeConfig{SenderID: in.SubmitterID, ReceiverID: in.PayerID}, x12.DefaultDelimiters())
	if err != nil {
		t.Errorf("assembled input failed generation: %v", err)
	}
	if res != nil && res.SegmentCount == 0 {
		t.Error("empty generation result")
	}
}

func TestBuild270RequiresMemberID(t *testing.T) {
	p := testPatient()
	p.MedicaidID = ""

	if _, err := newTestAssembler().Build270(testClinic(), p, time.Now(), ""); err == nil {
		t.Error("expected an error for a patient without a member ID")
	}
}

func TestGenderCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"m", "M"}, {"M", "M"}, {"male", "M"}, {" Male ", "M"},
		{"f", "F"}, {"female", "F"},
		{"", "U"}, {"nonbinary", "U"}, {"x", "U"},
	}
	for _, tt := range tests {
		if got := GenderCode(tt.in); got != tt.want {
			t.Errorf("GenderCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitProviderName(t *testing.T) {
	tests := []struct {
		in          string
		last, first string
	}{
		{"Nguyen, Alex", "Nguyen", "Alex"},
		{"Nguyen,Alex", "Nguyen", "Alex"},
		{"Nguyen", "Nguyen", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		last, first := SplitProviderName(tt.in)
		if last != tt.last || first != tt.first {
			t.Errorf("SplitProviderName(%q) = %q, %q", tt.in, last, first)
		}
	}
}
