package x12

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Version837P is the implementation guide version for professional claims.
const Version837P = "005010X222A1"

// Address is a billing or subscriber street address.
type Address struct {
	Line1 string
	Line2 string
	City  string
	State string
	Zip   string
}

// Submitter identifies the entity transmitting the claim (loop 1000A).
type Submitter struct {
	Name        string
	ID          string
	ContactName string
	Phone       string
}

// Receiver identifies the clearinghouse or payer receiving the file (1000B).
type Receiver struct {
	Name string
	ID   string
}

// BillingProvider is the billing organization (loop 2000A/2010AA).
type BillingProvider struct {
	Name         string
	NPI          string
	TaxonomyCode string
	TaxID        string
	Address      Address
}

// RenderingProvider is the person who performed the service, when distinct
// from the billing organization (loop 2310B). Optional.
type RenderingProvider struct {
	LastName     string
	FirstName    string
	NPI          string
	TaxonomyCode string
}

// Subscriber is the insured patient (loop 2000B/2010BA). Medicaid treats the
// patient as the subscriber (relationship self).
type Subscriber struct {
	LastName  string
	FirstName string
	MemberID  string
	Gender    string // M, F or U
	DOB       time.Time
	Address   Address
}

// Payer identifies the destination payer (loop 2010BB).
type Payer struct {
	Name string
	ID   string
}

// ServiceLine is one 2400 loop: a CPT code with charge, units and pointers
// into the claim's diagnosis code list.
type ServiceLine struct {
	LineNumber        int
	ProcedureCode     string
	Modifiers         []string // up to two
	Charge            float64
	Units             int
	DiagnosisPointers []int // 1-based indices into Claim837Input.DiagnosisCodes
	ServiceDate       time.Time
}

// Claim837Input is the full input to the 837P generator. It is constructed
// fresh per generation call and treated as immutable.
type Claim837Input struct {
	Submitter Submitter
	Receiver  Receiver
	Billing   BillingProvider
	Rendering *RenderingProvider

	Subscriber Subscriber
	Payer      Payer

	ClaimID        string
	TotalCharge    float64
	PlaceOfService string
	FrequencyCode  string // claim frequency (CLM05-3), defaults to 1 (original)

	DiagnosisCodes []string // first is principal (ABK), rest other (ABF)
	Lines          []ServiceLine
}

// Claim837Result is the binary outcome of a generation attempt. There is no
// partial or with-warnings state: either Success with content and metadata,
// or a list of validation errors and no content.
type Claim837Result struct {
	Success          bool           `json:"success"`
	Content          string         `json:"edi_content,omitempty"`
	ContentFormatted string         `json:"edi_content_formatted,omitempty"`
	ControlNumbers   ControlNumbers `json:"control_numbers"`
	SegmentCount     int            `json:"segment_count"`
	Errors           []string       `json:"errors,omitempty"`
}

// validate collects every structural problem instead of stopping at the
// first, so the operator sees the complete list at once. A mandatory
// free-text field that cleans down to nothing counts as missing.
func (in Claim837Input) validate(d Delimiters) []string {
	var errs []string
	missing := func(field, value string) {
		if d.Clean(value) == "" {
			errs = append(errs, field+" is missing")
		}
	}

	missing("submitter name", in.Submitter.Name)
	missing("submitter ID", in.Submitter.ID)
	if DigitsOnly(in.Billing.NPI) == "" {
		errs = append(errs, "billing provider NPI is missing")
	}
	if DigitsOnly(in.Billing.TaxID) == "" {
		errs = append(errs, "billing provider tax ID is missing")
	}
	missing("billing provider name", in.Billing.Name)
	missing("billing address line 1", in.Billing.Address.Line1)
	missing("billing address city", in.Billing.Address.City)
	missing("billing address state", in.Billing.Address.State)
	missing("billing address zip", in.Billing.Address.Zip)
	missing("subscriber last name", in.Subscriber.LastName)
	missing("subscriber first name", in.Subscriber.FirstName)
	missing("subscriber member ID", in.Subscriber.MemberID)
	missing("payer name", in.Payer.Name)
	missing("claim ID", in.ClaimID)

	if len(in.DiagnosisCodes) == 0 {
		errs = append(errs, "at least one diagnosis code is required")
	}
	if len(in.Lines) == 0 {
		errs = append(errs, "at least one service line is required")
	}
	for _, line := range in.Lines {
		if d.Clean(line.ProcedureCode) == "" {
			errs = append(errs, fmt.Sprintf("service line %d: procedure code is missing", line.LineNumber))
		}
		if line.Units < 1 {
			errs = append(errs, fmt.Sprintf("service line %d: unit count must be at least 1", line.LineNumber))
		}
		if len(line.Modifiers) > 2 {
			errs = append(errs, fmt.Sprintf("service line %d: at most two modifiers are allowed", line.LineNumber))
		}
		if len(line.DiagnosisPointers) == 0 {
			errs = append(errs, fmt.Sprintf("service line %d: at least one diagnosis pointer is required", line.LineNumber))
		}
		for _, p := range line.DiagnosisPointers {
			if p < 1 || p > len(in.DiagnosisCodes) {
				errs = append(errs, fmt.Sprintf("service line %d: diagnosis pointer %d is out of range", line.LineNumber, p))
			}
		}
		if line.ServiceDate.IsZero() {
			errs = append(errs, fmt.Sprintf("service line %d: service date is missing", line.LineNumber))
		}
	}
	return errs
}

// Generate837P validates the input and builds a professional claim
// transaction. Service lines are emitted in ascending line-number order;
// the HI diagnosis ordering matches the order the pointers refer to.
func Generate837P(in Claim837Input, env EnvelopeConfig, d Delimiters) *Claim837Result {
	if errs := in.validate(d); len(errs) > 0 {
		return &Claim837Result{Success: false, Errors: errs}
	}

	lines := make([]ServiceLine, len(in.Lines))
	copy(lines, in.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })

	frequency := in.FrequencyCode
	if frequency == "" {
		frequency = "1"
	}
	pos := in.PlaceOfService
	if pos == "" {
		pos = "11" // office
	}
	gender := in.Subscriber.Gender
	if gender == "" {
		gender = "U"
	}

	b := newBuilder(d)
	nums := b.open(env, "837", Version837P)

	now := timeNow().UTC()
	b.add("BHT", "0019", "00", nums.Interchange, Date(now), Clock(now), "CH")

	// 1000A / 1000B: submitter and receiver
	b.add("NM1", "41", "2", d.Clean(in.Submitter.Name), "", "", "", "", "46", d.Clean(in.Submitter.ID))
	if in.Submitter.ContactName != "" {
		b.add("PER", "IC", d.Clean(in.Submitter.ContactName), "TE", DigitsOnly(in.Submitter.Phone))
	}
	b.add("NM1", "40", "2", d.Clean(in.Receiver.Name), "", "", "", "", "46", d.Clean(in.Receiver.ID))

	// 2000A: billing provider hierarchical level
	b.add("HL", "1", "", "20", "1")
	if in.Billing.TaxonomyCode != "" {
		b.add("PRV", "BI", "PXC", d.Clean(in.Billing.TaxonomyCode))
	}
	b.add("NM1", "85", "2", d.Clean(in.Billing.Name), "", "", "", "", "XX", DigitsOnly(in.Billing.NPI))
	b.addAddress(in.Billing.Address)
	b.add("REF", "EI", DigitsOnly(in.Billing.TaxID))

	// 2000B: subscriber hierarchical level. Medicaid: primary payer,
	// relationship self, plan type MC.
	b.add("HL", "2", "1", "22", "0")
	b.add("SBR", "P", "18", "", "", "", "", "", "", "MC")
	b.add("NM1", "IL", "1", d.Clean(in.Subscriber.LastName), d.Clean(in.Subscriber.FirstName), "", "", "", "MI", d.Clean(in.Subscriber.MemberID))
	b.addAddress(in.Subscriber.Address)
	b.add("DMG", "D8", Date(in.Subscriber.DOB), gender)
	b.add("NM1", "PR", "2", d.Clean(in.Payer.Name), "", "", "", "", "PI", d.Clean(in.Payer.ID))

	// 2300: claim
	b.add("CLM",
		d.Clean(in.ClaimID),
		Decimal(in.TotalCharge),
		"", "",
		d.Composite(pos, "B", frequency),
		"Y", "A", "Y", "Y",
	)
	hi := make([]string, len(in.DiagnosisCodes))
	for i, code := range in.DiagnosisCodes {
		qualifier := "ABF"
		if i == 0 {
			qualifier = "ABK" // principal diagnosis
		}
		hi[i] = d.Composite(qualifier, code)
	}
	b.add("HI", hi...)

	// 2310B: rendering provider, only when distinct from the billing
	// organization. The generator's one structural conditional.
	if in.Rendering != nil && in.Rendering.NPI != "" {
		b.add("NM1", "82", "1", d.Clean(in.Rendering.LastName), d.Clean(in.Rendering.FirstName), "", "", "", "XX", DigitsOnly(in.Rendering.NPI))
		if in.Rendering.TaxonomyCode != "" {
			b.add("PRV", "PE", "PXC", d.Clean(in.Rendering.TaxonomyCode))
		}
	}

	// 2400: service lines
	for i, line := range lines {
		b.add("LX", strconv.Itoa(i+1))
		procedure := append([]string{"HC", line.ProcedureCode}, line.Modifiers...)
		pointers := make([]string, len(line.DiagnosisPointers))
		for j, p := range line.DiagnosisPointers {
			pointers[j] = strconv.Itoa(p)
		}
		b.add("SV1",
			d.Composite(procedure...),
			Decimal(line.Charge),
			"UN", strconv.Itoa(line.Units),
			"", "",
			strings.Join(pointers, d.Component),
		)
		b.add("DTP", "472", "D8", Date(line.ServiceDate))
	}

	count := b.close(nums)
	content := b.render()
	return &Claim837Result{
		Success:          true,
		Content:          content,
		ContentFormatted: formatted(content, d),
		ControlNumbers:   nums,
		SegmentCount:     count,
	}
}

// addAddress emits the N3/N4 pair for an address.
func (b *builder) addAddress(a Address) {
	if a.Line2 != "" {
		b.add("N3", b.d.Clean(a.Line1), b.d.Clean(a.Line2))
	} else {
		b.add("N3", b.d.Clean(a.Line1))
	}
	b.add("N4", b.d.Clean(a.City), b.d.Clean(a.State), DigitsOnly(a.Zip))
}

// formatted renders one segment per line for display, regardless of the
// wire terminator.
func formatted(content string, d Delimiters) string {
	if d.Terminator == "\n" {
		return content
	}
	trimmed := strings.TrimSuffix(content, d.Terminator)
	return strings.ReplaceAll(trimmed, d.Terminator, d.Terminator+"\n") + d.Terminator
}
