// Package claim implements the claim lifecycle and its persistence.
package claim

import (
	"errors"
	"time"

	"github.com/rehabdocs/go-claims/internal/x12"
)

// Status represents claim status. Generation and submission are separate
// transitions: a delivery failure keeps the generated content and records the
// reason instead of discarding the file.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusGenerated    Status = "generated"
	StatusSubmitted    Status = "submitted"
	StatusSubmitFailed Status = "submit_failed"
)

// Claim is one billable claim row.
type Claim struct {
	ID             string
	ClinicID       string
	PatientID      string
	TotalCharge    float64
	PlaceOfService string
	DiagnosisCodes []string
	Status         Status

	EDIFileContent string
	EDIGeneratedAt *time.Time
	ControlNumbers x12.ControlNumbers
	SegmentCount   int
	RemotePath     string
	SubmitError    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is one claim line item.
type Line struct {
	LineNumber        int
	CPTCode           string
	Modifiers         []string
	Charge            float64
	Units             int
	DiagnosisPointers []int
	ServiceDate       time.Time
}

// Clinic holds the billing configuration of a clinic.
type Clinic struct {
	ID           string
	Name         string
	NPI          string
	TaxID        string
	TaxonomyCode string

	BillingAddress1 string
	BillingAddress2 string
	BillingCity     string
	BillingState    string
	BillingZip      string

	SubmitterID      string
	SubmitterContact string
	SubmitterPhone   string

	RenderingProviderName string // stored as "Last, First"
	RenderingProviderNPI  string

	PayerName string
	PayerID   string
}

// Patient holds the demographics a claim or inquiry needs.
type Patient struct {
	ID         string
	FirstName  string
	LastName   string
	Gender     string // free-form as stored
	DOB        time.Time
	MedicaidID string

	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
}

// MarkGenerated records a successful generation. Regeneration from the
// generated or submit_failed states produces a new file with new control
// numbers; a submitted claim is immutable.
func (c *Claim) MarkGenerated(result *x12.Claim837Result, at time.Time) error {
	if c.Status == StatusSubmitted {
		return errors.New("claim already submitted")
	}
	c.Status = StatusGenerated
	c.EDIFileContent = result.Content
	c.EDIGeneratedAt = &at
	c.ControlNumbers = result.ControlNumbers
	c.SegmentCount = result.SegmentCount
	c.SubmitError = ""
	return nil
}

// MarkSubmitted records a successful clearinghouse delivery.
func (c *Claim) MarkSubmitted(remotePath string) error {
	if c.Status != StatusGenerated && c.Status != StatusSubmitFailed {
		return errors.New("claim has no generated file to submit")
	}
	c.Status = StatusSubmitted
	c.RemotePath = remotePath
	c.SubmitError = ""
	return nil
}

// MarkSubmitFailed records a delivery failure without touching the generated
// content.
func (c *Claim) MarkSubmitFailed(reason string) error {
	if c.Status != StatusGenerated && c.Status != StatusSubmitFailed {
		return errors.New("claim has no generated file to submit")
	}
	c.Status = StatusSubmitFailed
	c.SubmitError = reason
	return nil
}
