package claim

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of claim domain event.
type EventType string

const (
	EventClaimGenerated    EventType = "ClaimGenerated"
	EventClaimSubmitted    EventType = "ClaimSubmitted"
	EventClaimSubmitFailed EventType = "ClaimSubmitFailed"
)

// Event is a claim domain event, relayed to Kafka through the outbox.
type Event struct {
	ID        string          `json:"id"`
	ClaimID   string          `json:"claim_id"`
	ClinicID  string          `json:"clinic_id"`
	EventType EventType       `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with a marshaled payload.
func NewEvent(claimID, clinicID string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		ClaimID:   claimID,
		ClinicID:  clinicID,
		EventType: eventType,
		EventData: eventData,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ClaimGeneratedData is the payload of a ClaimGenerated event.
type ClaimGeneratedData struct {
	ClaimID            string    `json:"claim_id"`
	ClinicID           string    `json:"clinic_id"`
	InterchangeControl string    `json:"interchange_control"`
	SegmentCount       int       `json:"segment_count"`
	TotalCharge        float64   `json:"total_charge"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// ClaimSubmittedData is the payload of a ClaimSubmitted event.
type ClaimSubmittedData struct {
	ClaimID     string    `json:"claim_id"`
	RemotePath  string    `json:"remote_path"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ClaimSubmitFailedData is the payload of a ClaimSubmitFailed event.
type ClaimSubmitFailedData struct {
	ClaimID  string    `json:"claim_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// SubmissionRequest is the message consumed by the submission worker.
type SubmissionRequest struct {
	ClaimID            string `json:"claim_id"`
	ClinicID           string `json:"clinic_id"`
	InterchangeControl string `json:"interchange_control"`
}
