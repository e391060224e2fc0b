// Package claims maps persisted clinic, patient and claim rows into the
// strict input shape the X12 generators require.
package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/rehabdocs/go-claims/internal/domain/claim"
	"github.com/rehabdocs/go-claims/internal/x12"
)

// Defaults applied when clinic rows predate the billing configuration UI.
const (
	DefaultPlaceOfService = "11"         // office
	DefaultTaxonomyCode   = "225100000X" // physical therapist
	DefaultServiceType    = "30"         // health benefit plan coverage
)

// ConfigError reports the clinic billing configuration fields a generation
// attempt cannot proceed without. Surfaced as a precise list so the operator
// fixes the clinic record once, instead of rediscovering one field per retry.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("clinic billing configuration incomplete: %s", strings.Join(e.Missing, ", "))
}

// Assembler builds generator input from database rows.
type Assembler struct {
	// Receiver identifies the clearinghouse the file is addressed to.
	Receiver x12.Receiver
}

// NewAssembler creates an assembler targeting the given clearinghouse.
func NewAssembler(receiver x12.Receiver) *Assembler {
	return &Assembler{Receiver: receiver}
}

// checkBillingConfig fails fast with the full missing-field list before any
// generation is attempted, rather than delegating discovery to the
// generator's lower-level validation.
func checkBillingConfig(clinic *claim.Clinic) error {
	var missing []string
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	require("clinic name", clinic.Name)
	require("NPI", clinic.NPI)
	require("tax ID", clinic.TaxID)
	require("billing address", clinic.BillingAddress1)
	require("billing city", clinic.BillingCity)
	require("billing state", clinic.BillingState)
	require("billing zip", clinic.BillingZip)
	require("submitter ID", clinic.SubmitterID)
	require("payer name", clinic.PayerName)
	require("payer ID", clinic.PayerID)
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Build837 assembles a complete 837P input from the claim bundle.
func (a *Assembler) Build837(b *claim.Bundle) (x12.Claim837Input, error) {
	clinic, patient, c := b.Clinic, b.Patient, b.Claim

	if err := checkBillingConfig(clinic); err != nil {
		return x12.Claim837Input{}, err
	}

	taxonomy := clinic.TaxonomyCode
	if taxonomy == "" {
		taxonomy = DefaultTaxonomyCode
	}
	pos := c.PlaceOfService
	if pos == "" {
		pos = DefaultPlaceOfService
	}

	in := x12.Claim837Input{
		Submitter: x12.Submitter{
			Name:        clinic.Name,
			ID:          clinic.SubmitterID,
			ContactName: clinic.SubmitterContact,
			Phone:       clinic.SubmitterPhone,
		},
		Receiver: a.Receiver,
		Billing: x12.BillingProvider{
			Name:         clinic.Name,
			NPI:          clinic.NPI,
			TaxonomyCode: taxonomy,
			TaxID:        clinic.TaxID,
			Address: x12.Address{
				Line1: clinic.BillingAddress1,
				Line2: clinic.BillingAddress2,
				City:  clinic.BillingCity,
				State: clinic.BillingState,
				Zip:   clinic.BillingZip,
			},
		},
		Subscriber: x12.Subscriber{
			LastName:  patient.LastName,
			FirstName: patient.FirstName,
			MemberID:  patient.MedicaidID,
			Gender:    GenderCode(patient.Gender),
			DOB:       patient.DOB,
			Address: x12.Address{
				Line1: patient.Address1,
				Line2: patient.Address2,
				City:  patient.City,
				State: patient.State,
				Zip:   patient.Zip,
			},
		},
		Payer: x12.Payer{
			Name: clinic.PayerName,
			ID:   clinic.PayerID,
		},
		ClaimID:        c.ID,
		TotalCharge:    c.TotalCharge,
		PlaceOfService: pos,
		DiagnosisCodes: c.DiagnosisCodes,
	}

	if clinic.RenderingProviderNPI != "" {
		last, first := SplitProviderName(clinic.RenderingProviderName)
		in.Rendering = &x12.RenderingProvider{
			LastName:     last,
			FirstName:    first,
			NPI:          clinic.RenderingProviderNPI,
			TaxonomyCode: taxonomy,
		}
	}

	// Lines keep their stored order; the generator re-sorts by line number,
	// which is protocol-significant for the LX counters.
	for _, l := range b.Lines {
		pointers := l.DiagnosisPointers
		if len(pointers) == 0 {
			pointers = []int{1} // default to the principal diagnosis
		}
		units := l.Units
		if units < 1 {
			units = 1
		}
		in.Lines = append(in.Lines, x12.ServiceLine{
			LineNumber:        l.LineNumber,
			ProcedureCode:     l.CPTCode,
			Modifiers:         l.Modifiers,
			Charge:            l.Charge,
			Units:             units,
			DiagnosisPointers: pointers,
			ServiceDate:       l.ServiceDate,
		})
	}

	return in, nil
}

// Build270 assembles a 270 eligibility inquiry from clinic and patient rows.
// Callers must reject patients without a member ID before reaching the
// generator.
func (a *Assembler) Build270(clinic *claim.Clinic, patient *claim.Patient, serviceDate time.Time, serviceTypeCode string) (x12.Eligibility270Input, error) {
	if patient.MedicaidID == "" {
		return x12.Eligibility270Input{}, fmt.Errorf("patient has no member ID on file")
	}
	if serviceTypeCode == "" {
		serviceTypeCode = DefaultServiceType
	}
	return x12.Eligibility270Input{
		PayerName:        clinic.PayerName,
		PayerID:          clinic.PayerID,
		SubmitterID:      clinic.SubmitterID,
		ProviderName:     clinic.Name,
		ProviderNPI:      clinic.NPI,
		MemberID:         patient.MedicaidID,
		PatientFirstName: patient.FirstName,
		PatientLastName:  patient.LastName,
		PatientDOB:       patient.DOB,
		PatientGender:    GenderCode(patient.Gender),
		ServiceDate:      serviceDate,
		ServiceTypeCode:  serviceTypeCode,
	}, nil
}

// GenderCode translates a free-form stored gender into the M/F/U code the
// transaction requires. Unknown values map to U rather than guessing.
func GenderCode(stored string) string {
	switch strings.ToLower(strings.TrimSpace(stored)) {
	case "m", "male":
		return "M"
	case "f", "female":
		return "F"
	default:
		return "U"
	}
}

// SplitProviderName parses a stored "Last, First" provider name. A name
// without a comma is treated as a bare last name.
func SplitProviderName(name string) (last, first string) {
	parts := strings.SplitN(name, ",", 2)
	last = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		first = strings.TrimSpace(parts[1])
	}
	return last, first
}
