package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rehabdocs/go-claims/internal/claims"
	"github.com/rehabdocs/go-claims/internal/domain/claim"
	"github.com/rehabdocs/go-claims/internal/observability/metrics"
	"github.com/rehabdocs/go-claims/internal/stedi"
	"github.com/rehabdocs/go-claims/internal/x12"
)

// EligibilityHandler handles coverage checks. The real-time path goes through
// the Stedi API when a key is configured; otherwise a 270 file is generated
// for manual clearinghouse upload.
type EligibilityHandler struct {
	repo       *claim.Repository
	assembler  *claims.Assembler
	realtime   *stedi.Client // nil when no API key is configured
	receiverID string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewEligibilityHandler creates a new handler.
func NewEligibilityHandler(repo *claim.Repository, assembler *claims.Assembler, realtime *stedi.Client,
	receiverID string, m *metrics.Metrics, logger *zap.Logger) *EligibilityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityHandler{
		repo:       repo,
		assembler:  assembler,
		realtime:   realtime,
		receiverID: receiverID,
		metrics:    m,
		logger:     logger,
	}
}

// Routes returns the handler routes
func (h *EligibilityHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/check", h.Check)
	return r
}

// CheckRequest is the request body for an eligibility check.
type CheckRequest struct {
	ClinicID        string `json:"clinic_id"`
	PatientID       string `json:"patient_id"`
	ServiceDate     string `json:"service_date,omitempty"` // YYYY-MM-DD, defaults to today
	ServiceTypeCode string `json:"service_type_code,omitempty"`
}

// Check handles POST /eligibility/check
func (h *EligibilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClinicID == "" || req.PatientID == "" {
		h.jsonError(w, "clinic_id and patient_id are required", http.StatusBadRequest)
		return
	}

	serviceDate := time.Now().UTC()
	if req.ServiceDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ServiceDate)
		if err != nil {
			h.jsonError(w, "service_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		serviceDate = parsed
	}

	clinic, err := h.repo.GetClinic(ctx, req.ClinicID)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, "failed to load clinic", http.StatusInternalServerError)
		return
	}

	patient, err := h.repo.GetPatient(ctx, req.PatientID)
	if errors.Is(err, claim.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, "failed to load patient", http.StatusInternalServerError)
		return
	}

	if patient.MedicaidID == "" {
		h.jsonError(w, "patient has no member ID on file", http.StatusUnprocessableEntity)
		return
	}

	if h.realtime != nil {
		h.checkRealtime(w, r, clinic, patient, req.ServiceTypeCode)
		return
	}
	h.generate270(w, clinic, patient, serviceDate, req.ServiceTypeCode)
}

func (h *EligibilityHandler) checkRealtime(w http.ResponseWriter, r *http.Request, clinic *claim.Clinic, patient *claim.Patient, serviceTypeCode string) {
	result, err := h.realtime.CheckEligibility(r.Context(), clinic.PayerID, stedi.Subscriber{
		FirstName:   patient.FirstName,
		LastName:    patient.LastName,
		DateOfBirth: stedi.Date(patient.DOB),
		MemberID:    patient.MedicaidID,
	}, serviceTypeCode)
	if err != nil {
		h.countCheck("realtime", "error")
		h.logger.Error("realtime eligibility check failed",
			zap.String("patient_id", patient.ID), zap.Error(err))
		h.jsonError(w, "eligibility service unavailable", http.StatusBadGateway)
		return
	}

	outcome := "inactive"
	if result.Active {
		outcome = "active"
	}
	h.countCheck("realtime", outcome)

	h.jsonWrite(w, http.StatusOK, map[string]interface{}{
		"path":        "realtime",
		"active":      result.Active,
		"plan_status": result.PlanStatus,
		"raw":         result.Raw,
	})
}

func (h *EligibilityHandler) generate270(w http.ResponseWriter, clinic *claim.Clinic, patient *claim.Patient, serviceDate time.Time, serviceTypeCode string) {
	in, err := h.assembler.Build270(clinic, patient, serviceDate, serviceTypeCode)
	if err != nil {
		h.countCheck("file", "error")
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	env := x12.EnvelopeConfig{
		SenderID:   clinic.SubmitterID,
		ReceiverID: h.receiverID,
	}
	result, err := x12.Generate270(in, env, x12.DefaultDelimiters())
	if err != nil {
		h.countCheck("file", "error")
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.countCheck("file", "generated")

	h.logger.Info("270 inquiry generated",
		zap.String("patient_id", patient.ID),
		zap.String("interchange_control", result.ControlNumbers.Interchange))

	h.jsonWrite(w, http.StatusOK, map[string]interface{}{
		"path":            "file",
		"edi_content":     result.Content,
		"control_numbers": result.ControlNumbers,
		"segment_count":   result.SegmentCount,
	})
}

func (h *EligibilityHandler) countCheck(path, outcome string) {
	if h.metrics != nil {
		h.metrics.EligibilityChecks.WithLabelValues(path, outcome).Inc()
	}
}

func (h *EligibilityHandler) jsonWrite(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *EligibilityHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonWrite(w, code, map[string]string{"error": message})
}
