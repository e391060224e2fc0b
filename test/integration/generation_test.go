// Package integration exercises the full generation path: database-shaped
// rows through the assembler into the X12 generators and back out through
// the parser.
package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/rehabdocs/go-claims/internal/claims"
	"github.com/rehabdocs/go-claims/internal/delivery"
	"github.com/rehabdocs/go-claims/internal/domain/claim"
	"github.com/rehabdocs/go-claims/internal/x12"
)

func bundle() *claim.Bundle {
	return &claim.Bundle{
		Claim: &claim.Claim{
			ID:             "CLM1001",
			ClinicID:       "clinic-1",
			PatientID:      "patient-1",
			TotalCharge:    165,
			PlaceOfService: "11",
			DiagnosisCodes: []string{"M54.5", "M25.561"},
			Status:         claim.StatusDraft,
		},
		Lines: []claim.Line{
			{LineNumber: 1, CPTCode: "97110", Modifiers: []string{"GP"}, Charge: 85, Units: 1,
				DiagnosisPointers: []int{1}, ServiceDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
			{LineNumber: 2, CPTCode: "97140", Charge: 80, Units: 2,
				DiagnosisPointers: []int{1, 2}, ServiceDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		},
		Clinic: &claim.Clinic{
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
		},
		Patient: &claim.Patient{
			ID:         "patient-1",
			FirstName:  "Jane",
			LastName:   "Smith",
			Gender:     "F",
			DOB:        time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
			MedicaidID: "123456789",
			Address1:   "12 Oak Ln",
			City:       "Austin",
			State:      "TX",
			Zip:        "78702",
		},
	}
}

func TestClaimGenerationRoundTrip(t *testing.T) {
	b := bundle()
	assembler := claims.NewAssembler(x12.Receiver{Name: "TMHP", ID: "617591011C21P"})

	in, err := assembler.Build837(b)
	if err != nil {
		t.Fatalf("Build837: %v", err)
	}

	env := x12.EnvelopeConfig{SenderID: b.Clinic.SubmitterID, ReceiverID: "617591011C21P"}
	result := x12.Generate837P(in, env, x12.DefaultDelimiters())
	if !result.Success {
		t.Fatalf("generation failed: %v", result.Errors)
	}

	ic, err := x12.Parse(result.Content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ic.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	nums, err := ic.ControlNumbers()
	if err != nil {
		t.Fatal(err)
	}
	if nums != result.ControlNumbers {
		t.Errorf("round-tripped control numbers %+v != %+v", nums, result.ControlNumbers)
	}

	if got := len(ic.Find("SV1")); got != 2 {
		t.Errorf("service lines = %d, want 2", got)
	}
	if !strings.Contains(result.Content, "CLM*CLM1001*165.00") {
		t.Error("CLM segment missing the total charge")
	}
	if !strings.Contains(result.Content, "HI*ABK:M54.5*ABF:M25.561~") {
		t.Error("HI segment does not carry the diagnosis codes in order")
	}

	// the claim transitions and keeps the generated metadata
	now := time.Now().UTC()
	if err := b.Claim.MarkGenerated(result, now); err != nil {
		t.Fatalf("MarkGenerated: %v", err)
	}
	if b.Claim.Status != claim.StatusGenerated {
		t.Errorf("status = %s", b.Claim.Status)
	}
	if b.Claim.EDIFileContent != result.Content {
		t.Error("content not persisted on the claim")
	}

	// delivery naming is derived from submitter identity and generation time
	name := delivery.RemoteName(b.Clinic.SubmitterID, now)
	if !strings.HasPrefix(name, "TX1234_837P_") || !strings.HasSuffix(name, ".txt") {
		t.Errorf("remote name = %q", name)
	}

	// a submitted claim refuses regeneration
	if err := b.Claim.MarkSubmitted("/inbound/" + name); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	if err := b.Claim.MarkGenerated(result, now); err == nil {
		t.Error("regeneration allowed after submission")
	}
}

func TestEligibilityGenerationRoundTrip(t *testing.T) {
	b := bundle()
	assembler := claims.NewAssembler(x12.Receiver{Name: "TMHP", ID: "617591011C21P"})

	in, err := assembler.Build270(b.Clinic, b.Patient, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("Build270: %v", err)
	}

	env := x12.EnvelopeConfig{SenderID: b.Clinic.SubmitterID, ReceiverID: b.Clinic.PayerID}
	result, err := x12.Generate270(in, env, x12.DefaultDelimiters())
	if err != nil {
		t.Fatalf("Generate270: %v", err)
	}

	ic, err := x12.Parse(result.Content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ic.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !strings.Contains(result.Content, "EQ*30~") {
		t.Error("EQ segment missing the default service type")
	}
	if !strings.Contains(result.Content, "NM1*IL*1*SMITH*JANE") {
		t.Error("subscriber segment missing")
	}
}

func TestSubmitFailureKeepsGeneratedFile(t *testing.T) {
	b := bundle()
	assembler := claims.NewAssembler(x12.Receiver{Name: "TMHP", ID: "617591011C21P"})

	in, err := assembler.Build837(b)
	if err != nil {
		t.Fatal(err)
	}
	result := x12.Generate837P(in, x12.EnvelopeConfig{SenderID: "TX1234", ReceiverID: "TXMCD"}, x12.DefaultDelimiters())
	if !result.Success {
		t.Fatalf("generation failed: %v", result.Errors)
	}

	now := time.Now().UTC()
	if err := b.Claim.MarkGenerated(result, now); err != nil {
		t.Fatal(err)
	}
	if err := b.Claim.MarkSubmitFailed("connection refused"); err != nil {
		t.Fatal(err)
	}

	if b.Claim.Status != claim.StatusSubmitFailed {
		t.Errorf("status = %s", b.Claim.Status)
	}
	if b.Claim.EDIFileContent == "" {
		t.Error("delivery failure discarded the generated file")
	}
	if b.Claim.SubmitError != "connection refused" {
		t.Errorf("submit error = %q", b.Claim.SubmitError)
	}

	// the failed state still permits a retry
	if err := b.Claim.MarkSubmitted("/inbound/retry.txt"); err != nil {
		t.Errorf("retry after failure rejected: %v", err)
	}
}
