package x12

// Envelope construction: ISA/GS/ST headers and the matching SE/GE/IEA
// trailers. Control numbers are generated when the interchange is opened and
// repeated verbatim in the trailers; the SE segment count is recomputed from
// the emitted segment list, never estimated.

import (
	"strconv"
)

// ISA element widths per the 5010 fixed-width header layout.
const (
	isaLenAuthInfo      = 10
	isaLenSecurityInfo  = 10
	isaLenQualifier     = 2
	isaLenSenderID      = 15
	isaLenReceiverID    = 15
	isaLenControlNumber = 9

	isaVersion = "00501"
)

// Functional identifier codes (GS01) by transaction set.
var functionalIdentifierCodes = map[string]string{
	"270": "HS",
	"271": "HB",
	"276": "HR",
	"277": "HN",
	"835": "HP",
	"837": "HC",
	"999": "FA",
}

// EnvelopeConfig identifies the trading partners on the interchange.
type EnvelopeConfig struct {
	SenderID          string
	SenderQualifier   string // defaults to ZZ (mutually defined)
	ReceiverID        string
	ReceiverQualifier string // defaults to ZZ
	Usage             string // ISA15: P (production) or T (test); defaults to P
}

func (c EnvelopeConfig) withDefaults() EnvelopeConfig {
	if c.SenderQualifier == "" {
		c.SenderQualifier = "ZZ"
	}
	if c.ReceiverQualifier == "" {
		c.ReceiverQualifier = "ZZ"
	}
	if c.Usage == "" {
		c.Usage = "P"
	}
	return c
}

// ControlNumbers carries the three envelope control numbers of one generated
// transaction, for persistence alongside the file content.
type ControlNumbers struct {
	Interchange    string `json:"interchange"`     // ISA13 = IEA02
	Group          string `json:"group"`           // GS06 = GE02
	TransactionSet string `json:"transaction_set"` // ST02 = SE02
}

// builder accumulates segments for a single-transaction interchange.
type builder struct {
	d       Delimiters
	segs    []Segment
	stIndex int // index of the ST segment within segs
}

func newBuilder(d Delimiters) *builder {
	return &builder{d: d, stIndex: -1}
}

func (b *builder) add(id string, elements ...string) {
	b.segs = append(b.segs, Seg(id, elements...))
}

// open emits ISA, GS and ST for the given transaction set and implementation
// version, returning the freshly generated control numbers.
func (b *builder) open(cfg EnvelopeConfig, txCode, version string) ControlNumbers {
	cfg = cfg.withDefaults()
	now := timeNow().UTC()

	icn := NewControlNumber()
	nums := ControlNumbers{
		Interchange:    icn,
		Group:          strconv.FormatInt(mustParseInt(icn), 10), // GS06 is not zero padded
		TransactionSet: "0001",
	}

	b.add("ISA",
		"00", FixedWidth("", isaLenAuthInfo),
		"00", FixedWidth("", isaLenSecurityInfo),
		FixedWidth(cfg.SenderQualifier, isaLenQualifier),
		FixedWidth(b.d.Clean(cfg.SenderID), isaLenSenderID),
		FixedWidth(cfg.ReceiverQualifier, isaLenQualifier),
		FixedWidth(b.d.Clean(cfg.ReceiverID), isaLenReceiverID),
		ShortDate(now), Clock(now),
		b.d.Repetition,
		isaVersion,
		FixedWidth(icn, isaLenControlNumber),
		"0", cfg.Usage,
		b.d.Component,
	)
	b.add("GS",
		functionalIdentifierCodes[txCode],
		b.d.Clean(cfg.SenderID), b.d.Clean(cfg.ReceiverID),
		Date(now), Clock(now),
		nums.Group,
		"X", version,
	)
	b.stIndex = len(b.segs)
	b.add("ST", txCode, nums.TransactionSet, version)
	return nums
}

// close emits SE, GE and IEA. The SE count covers ST through SE inclusive.
func (b *builder) close(nums ControlNumbers) int {
	count := len(b.segs) - b.stIndex + 1
	b.add("SE", strconv.Itoa(count), nums.TransactionSet)
	b.add("GE", "1", nums.Group)
	b.add("IEA", "1", nums.Interchange)
	return count
}

func (b *builder) render() string {
	var out string
	for _, s := range b.segs {
		out += s.String(b.d)
	}
	return out
}

func mustParseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
