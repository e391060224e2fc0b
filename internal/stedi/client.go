// Package stedi is a thin client for the Stedi real-time eligibility API,
// the primary path of the eligibility endpoint. When no API key is
// configured, callers fall back to generating a 270 file for manual
// clearinghouse upload.
package stedi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rehabdocs/go-claims/internal/x12"
)

const defaultURL = "https://healthcare.us.stedi.com/2024-04-01/change/medicalnetwork/eligibility/v3"

// Client calls the Stedi eligibility engine on behalf of one provider.
type Client struct {
	apiKey       string
	url          string
	providerName string
	npi          string
	client       *http.Client
	logger       *zap.Logger
}

// NewClient creates a client for the given provider identity. An empty API
// key yields a nil client, signalling the 270 fallback path.
func NewClient(providerName, npi, apiKey string, logger *zap.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:       apiKey,
		url:          defaultURL,
		providerName: providerName,
		npi:          npi,
		client:       &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// Date marshals as CCYYMMDD, the format the eligibility API expects.
type Date time.Time

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format("20060102"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return err
	}
	*d = Date(t)
	return nil
}

// Subscriber identifies the member being checked.
type Subscriber struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth Date   `json:"dateOfBirth"`
	MemberID    string `json:"memberId"`
}

type provider struct {
	OrganizationName string `json:"organizationName"`
	NPI              string `json:"npi"`
}

type encounter struct {
	ServiceTypeCodes []string `json:"serviceTypeCodes"`
}

type request struct {
	ControlNumber          string     `json:"controlNumber"`
	TradingPartnerServiceID string    `json:"tradingPartnerServiceId"`
	Provider               provider   `json:"provider"`
	Subscriber             Subscriber `json:"subscriber"`
	Encounter              encounter  `json:"encounter"`
}

// Result is the coarse eligibility outcome plus the raw payer response for
// display.
type Result struct {
	Active     bool            `json:"active"`
	PlanStatus string          `json:"plan_status,omitempty"`
	Raw        json.RawMessage `json:"raw"`
}

type response struct {
	PlanStatus []struct {
		StatusCode string `json:"statusCode"`
		Status     string `json:"status"`
	} `json:"planStatus"`
}

// CheckEligibility runs a real-time 270/271 exchange through Stedi.
func (c *Client) CheckEligibility(ctx context.Context, payerID string, sub Subscriber, serviceTypeCode string) (*Result, error) {
	if serviceTypeCode == "" {
		serviceTypeCode = "30"
	}
	body, err := json.Marshal(request{
		ControlNumber:           x12.NewControlNumber(),
		TradingPartnerServiceID: payerID,
		Provider:                provider{OrganizationName: c.providerName, NPI: c.npi},
		Subscriber:              sub,
		Encounter:               encounter{ServiceTypeCodes: []string{serviceTypeCode}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eligibility request: %w", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode eligibility response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eligibility check failed: status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse eligibility response: %w", err)
	}

	result := &Result{Raw: raw}
	for _, ps := range parsed.PlanStatus {
		if ps.StatusCode == "1" { // active coverage
			result.Active = true
			result.PlanStatus = ps.Status
			break
		}
		result.PlanStatus = ps.Status
	}

	c.logger.Info("eligibility checked",
		zap.String("payer_id", payerID),
		zap.Bool("active", result.Active))
	return result, nil
}
