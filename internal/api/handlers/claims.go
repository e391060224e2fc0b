// Package handlers provides HTTP handlers for the billing API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rehabdocs/go-claims/internal/api/middleware"
	"github.com/rehabdocs/go-claims/internal/claims"
	"github.com/rehabdocs/go-claims/internal/domain/claim"
	"github.com/rehabdocs/go-claims/internal/observability/metrics"
	"github.com/rehabdocs/go-claims/internal/x12"
)

// SubmissionPublisher publishes submission requests for the worker.
type SubmissionPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// ClaimHandler handles claim generation and submission endpoints.
type ClaimHandler struct {
	repo             *claim.Repository
	assembler        *claims.Assembler
	receiverID       string
	publisher        SubmissionPublisher
	submissionsTopic string
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// NewClaimHandler creates a new handler. receiverID is the clearinghouse
// interchange receiver ID the generated envelopes are addressed to.
func NewClaimHandler(repo *claim.Repository, assembler *claims.Assembler, receiverID string,
	publisher SubmissionPublisher, submissionsTopic string, m *metrics.Metrics, logger *zap.Logger) *ClaimHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimHandler{
		repo:             repo,
		assembler:        assembler,
		receiverID:       receiverID,
		publisher:        publisher,
		submissionsTopic: submissionsTopic,
		metrics:          m,
		logger:           logger,
	}
}

// Routes returns the handler routes
func (h *ClaimHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Get)
	r.Get("/{id}/file", h.GetFile)
	r.Post("/{id}/generate", h.Generate)
	r.Post("/{id}/submit", h.Submit)
	return r
}

// GenerateResponse is the response for a successful generation.
type GenerateResponse struct {
	ID             string             `json:"id"`
	Status         string             `json:"status"`
	ControlNumbers x12.ControlNumbers `json:"control_numbers"`
	SegmentCount   int                `json:"segment_count"`
	GeneratedAt    time.Time          `json:"generated_at"`
	EDIContent     string             `json:"edi_content"`
	Queued         bool               `json:"queued_for_submission,omitempty"`
	QueueError     string             `json:"queue_error,omitempty"`
}

// Generate handles POST /claims/{id}/generate. With ?submit=true the claim is
// also queued for clearinghouse delivery after the file is persisted.
func (h *ClaimHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	tracer := otel.Tracer("claim-handler")
	ctx, span := tracer.Start(ctx, "generate_claim")
	defer span.End()
	span.SetAttributes(attribute.String("claim_id", id))

	bundle, err := h.repo.GetBundle(ctx, id)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load claim bundle failed", zap.String("claim_id", id), zap.Error(err))
		h.jsonError(w, "failed to load claim", http.StatusInternalServerError)
		return
	}

	in, err := h.assembler.Build837(bundle)
	var cfgErr *claims.ConfigError
	if errors.As(err, &cfgErr) {
		h.countValidationFailures(cfgErr.Missing)
		h.jsonWrite(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":          "clinic billing configuration incomplete",
			"missing_fields": cfgErr.Missing,
		})
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	result := x12.Generate837P(in, h.envelopeFor(bundle.Clinic), x12.DefaultDelimiters())
	if h.metrics != nil {
		h.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}

	if !result.Success {
		h.countValidationFailures(result.Errors)
		h.jsonWrite(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "claim validation failed",
			"errors": result.Errors,
		})
		return
	}

	c := bundle.Claim
	expected := c.UpdatedAt
	now := time.Now().UTC()
	if err := c.MarkGenerated(result, now); err != nil {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}

	event, err := claim.NewEvent(c.ID, c.ClinicID, claim.EventClaimGenerated, claim.ClaimGeneratedData{
		ClaimID:            c.ID,
		ClinicID:           c.ClinicID,
		InterchangeControl: result.ControlNumbers.Interchange,
		SegmentCount:       result.SegmentCount,
		TotalCharge:        c.TotalCharge,
		GeneratedAt:        now,
	})
	if err != nil {
		h.jsonError(w, "failed to record event", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Save(ctx, c, expected, []*claim.Event{event}); err != nil {
		if errors.Is(err, claim.ErrConflict) {
			h.jsonError(w, "claim was modified concurrently, reload and retry", http.StatusConflict)
			return
		}
		h.logger.Error("save generated claim failed", zap.String("claim_id", id), zap.Error(err))
		h.jsonError(w, "failed to save claim", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.ClaimsGenerated.Inc()
	}
	h.logger.Info("claim generated",
		zap.String("claim_id", c.ID),
		zap.String("interchange_control", result.ControlNumbers.Interchange),
		zap.Int("segments", result.SegmentCount),
		zap.String("request_id", middleware.GetRequestID(ctx)))

	resp := GenerateResponse{
		ID:             c.ID,
		Status:         string(c.Status),
		ControlNumbers: c.ControlNumbers,
		SegmentCount:   c.SegmentCount,
		GeneratedAt:    now,
		EDIContent:     result.Content,
	}
	if r.URL.Query().Get("submit") == "true" {
		if err := h.queueSubmission(ctx, c); err != nil {
			// the file is persisted; submission can be retried explicitly
			h.logger.Error("queue submission failed", zap.String("claim_id", c.ID), zap.Error(err))
			resp.QueueError = "failed to queue submission, retry via /submit"
		} else {
			resp.Queued = true
		}
	}

	h.jsonWrite(w, http.StatusOK, resp)
}

// Submit handles POST /claims/{id}/submit. Queues an already generated file
// for clearinghouse delivery; also the operator's retry path after a failure.
func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := h.repo.GetClaim(ctx, id)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, "failed to load claim", http.StatusInternalServerError)
		return
	}

	if c.Status != claim.StatusGenerated && c.Status != claim.StatusSubmitFailed {
		h.jsonError(w, "claim has no generated file to submit", http.StatusConflict)
		return
	}

	if err := h.queueSubmission(ctx, c); err != nil {
		h.logger.Error("queue submission failed", zap.String("claim_id", c.ID), zap.Error(err))
		h.jsonError(w, "failed to queue submission", http.StatusServiceUnavailable)
		return
	}

	h.jsonWrite(w, http.StatusAccepted, map[string]string{
		"id":     c.ID,
		"status": string(c.Status),
		"result": "queued",
	})
}

// Get handles GET /claims/{id}
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := h.repo.GetClaim(ctx, id)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, "failed to load claim", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"id":              c.ID,
		"clinic_id":       c.ClinicID,
		"patient_id":      c.PatientID,
		"status":          c.Status,
		"total_charge":    c.TotalCharge,
		"diagnosis_codes": c.DiagnosisCodes,
		"has_file":        c.EDIFileContent != "",
	}
	if c.EDIGeneratedAt != nil {
		resp["generated_at"] = c.EDIGeneratedAt
		resp["control_numbers"] = c.ControlNumbers
		resp["segment_count"] = c.SegmentCount
	}
	if c.RemotePath != "" {
		resp["remote_path"] = c.RemotePath
	}
	if c.SubmitError != "" {
		resp["submit_error"] = c.SubmitError
	}

	h.jsonWrite(w, http.StatusOK, resp)
}

// GetFile handles GET /claims/{id}/file, returning the raw generated EDI.
func (h *ClaimHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := h.repo.GetClaim(ctx, id)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, "failed to load claim", http.StatusInternalServerError)
		return
	}
	if c.EDIFileContent == "" {
		h.jsonError(w, "claim has not been generated", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(c.EDIFileContent))
}

func (h *ClaimHandler) queueSubmission(ctx context.Context, c *claim.Claim) error {
	req := claim.SubmissionRequest{
		ClaimID:            c.ID,
		ClinicID:           c.ClinicID,
		InterchangeControl: c.ControlNumbers.Interchange,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return h.publisher.Publish(ctx, h.submissionsTopic, c.ID, payload)
}

func (h *ClaimHandler) envelopeFor(clinic *claim.Clinic) x12.EnvelopeConfig {
	return x12.EnvelopeConfig{
		SenderID:   clinic.SubmitterID,
		ReceiverID: h.receiverID,
	}
}

func (h *ClaimHandler) countValidationFailures(fields []string) {
	if h.metrics == nil {
		return
	}
	for _, f := range fields {
		h.metrics.ValidationFailures.WithLabelValues(f).Inc()
	}
}

func (h *ClaimHandler) jsonWrite(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *ClaimHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonWrite(w, code, map[string]string{"error": message})
}
