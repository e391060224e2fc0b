package x12

import (
	"fmt"
	"time"
)

// Version270 is the implementation guide version for eligibility inquiries.
const Version270 = "005010X279A1"

// Eligibility270Input is everything a 270 inquiry needs. The application
// layer is responsible for business validity (an enrolled member ID, a payer
// the clinic actually bills); the generator only checks structural
// completeness.
type Eligibility270Input struct {
	PayerName   string
	PayerID     string
	SubmitterID string

	ProviderName string
	ProviderNPI  string

	MemberID         string
	PatientFirstName string
	PatientLastName  string
	PatientDOB       time.Time
	PatientGender    string // M, F or U

	ServiceDate     time.Time
	ServiceTypeCode string // EQ01, defaults to 30 (health benefit plan coverage)
}

// Validate checks structural completeness. A mandatory free-text field that
// cleans down to nothing counts as missing, so sanitization can never leave
// an empty mandatory element in the output.
func (in Eligibility270Input) Validate(d Delimiters) error {
	switch {
	case d.Clean(in.PayerName) == "" || d.Clean(in.PayerID) == "":
		return fmt.Errorf("payer name and ID are required")
	case d.Clean(in.SubmitterID) == "":
		return fmt.Errorf("submitter ID is required")
	case DigitsOnly(in.ProviderNPI) == "":
		return fmt.Errorf("provider NPI is required")
	case d.Clean(in.MemberID) == "":
		return fmt.Errorf("member ID is required")
	case d.Clean(in.PatientLastName) == "" || d.Clean(in.PatientFirstName) == "":
		return fmt.Errorf("patient name is required")
	case in.PatientDOB.IsZero():
		return fmt.Errorf("patient date of birth is required")
	}
	return nil
}

// Result is the output of a successful generation.
type Result struct {
	Content        string         `json:"content"`
	ControlNumbers ControlNumbers `json:"control_numbers"`
	SegmentCount   int            `json:"segment_count"`
}

// Generate270 builds a single eligibility-inquiry transaction. The shape is
// fixed (no optional loops); two calls with identical input differ only in
// control numbers and envelope timestamps.
func Generate270(in Eligibility270Input, env EnvelopeConfig, d Delimiters) (*Result, error) {
	if err := in.Validate(d); err != nil {
		return nil, err
	}

	serviceType := in.ServiceTypeCode
	if serviceType == "" {
		serviceType = "30"
	}
	gender := in.PatientGender
	if gender == "" {
		gender = "U"
	}

	b := newBuilder(d)
	nums := b.open(env, "270", Version270)

	now := timeNow().UTC()
	b.add("BHT", "0022", "13", nums.Interchange, Date(now), Clock(now))

	// 2000A: information source (payer)
	b.add("HL", "1", "", "20", "1")
	b.add("NM1", "PR", "2", d.Clean(in.PayerName), "", "", "", "", "PI", d.Clean(in.PayerID))

	// 2000B: information receiver (the inquiring provider)
	b.add("HL", "2", "1", "21", "1")
	b.add("NM1", "1P", "2", d.Clean(in.ProviderName), "", "", "", "", "XX", DigitsOnly(in.ProviderNPI))

	// 2000C: subscriber
	b.add("HL", "3", "2", "22", "0")
	b.add("TRN", "1", nums.Interchange, d.Clean(in.SubmitterID))
	b.add("NM1", "IL", "1", d.Clean(in.PatientLastName), d.Clean(in.PatientFirstName), "", "", "", "MI", d.Clean(in.MemberID))
	b.add("DMG", "D8", Date(in.PatientDOB), gender)
	b.add("DTP", "291", "D8", Date(in.ServiceDate))
	b.add("EQ", serviceType)

	count := b.close(nums)
	return &Result{
		Content:        b.render(),
		ControlNumbers: nums,
		SegmentCount:   count,
	}, nil
}
