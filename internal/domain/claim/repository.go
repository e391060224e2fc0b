// Package claim provides the claim repository over PostgreSQL.
package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rehabdocs/go-claims/internal/infrastructure/postgres"
)

// ErrNotFound is returned when a claim, clinic or patient row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an optimistic update loses a race: the row
// changed since it was read, e.g. a concurrent regeneration or submission.
var ErrConflict = errors.New("claim was modified concurrently")

// Repository persists claims and their related rows.
type Repository struct {
	pool        *pgxpool.Pool
	eventsTopic string
	logger      *zap.Logger
}

// NewRepository creates a new repository. Events written alongside claim
// updates are relayed to eventsTopic through the transactional outbox.
func NewRepository(pool *pgxpool.Pool, eventsTopic string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, eventsTopic: eventsTopic, logger: logger}
}

// Bundle is everything claim generation reads: the claim, its line items and
// the clinic and patient rows it references.
type Bundle struct {
	Claim   *Claim
	Lines   []Line
	Clinic  *Clinic
	Patient *Patient
}

// GetBundle loads the full generation input for one claim.
func (r *Repository) GetBundle(ctx context.Context, claimID string) (*Bundle, error) {
	c, err := r.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	lines, err := r.GetLines(ctx, claimID)
	if err != nil {
		return nil, err
	}
	clinic, err := r.GetClinic(ctx, c.ClinicID)
	if err != nil {
		return nil, err
	}
	patient, err := r.GetPatient(ctx, c.PatientID)
	if err != nil {
		return nil, err
	}
	return &Bundle{Claim: c, Lines: lines, Clinic: clinic, Patient: patient}, nil
}

// GetClaim retrieves a claim by ID.
func (r *Repository) GetClaim(ctx context.Context, id string) (*Claim, error) {
	query := `
		SELECT id, clinic_id, patient_id, total_charge, place_of_service,
		       diagnosis_codes, status, edi_file_content, edi_generated_at,
		       interchange_control, group_control, transaction_control,
		       segment_count, remote_path, submit_error, created_at, updated_at
		FROM claims
		WHERE id = $1
	`
	c := &Claim{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ClinicID, &c.PatientID, &c.TotalCharge, &c.PlaceOfService,
		&c.DiagnosisCodes, &status, &c.EDIFileContent, &c.EDIGeneratedAt,
		&c.ControlNumbers.Interchange, &c.ControlNumbers.Group,
		&c.ControlNumbers.TransactionSet,
		&c.SegmentCount, &c.RemotePath, &c.SubmitError, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}

// GetLines retrieves the claim's line items ordered by line number.
func (r *Repository) GetLines(ctx context.Context, claimID string) ([]Line, error) {
	query := `
		SELECT line_number, cpt_code, modifiers, charge, units,
		       diagnosis_pointers, service_date
		FROM claim_lines
		WHERE claim_id = $1
		ORDER BY line_number ASC
	`
	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("get claim lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.LineNumber, &l.CPTCode, &l.Modifiers,
			&l.Charge, &l.Units, &l.DiagnosisPointers, &l.ServiceDate); err != nil {
			return nil, fmt.Errorf("scan claim line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetClinic retrieves a clinic's billing configuration.
func (r *Repository) GetClinic(ctx context.Context, id string) (*Clinic, error) {
	query := `
		SELECT id, name, npi, tax_id, taxonomy_code,
		       billing_address1, billing_address2, billing_city, billing_state, billing_zip,
		       submitter_id, submitter_contact, submitter_phone,
		       rendering_provider_name, rendering_provider_npi,
		       payer_name, payer_id
		FROM clinics
		WHERE id = $1
	`
	c := &Clinic{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.NPI, &c.TaxID, &c.TaxonomyCode,
		&c.BillingAddress1, &c.BillingAddress2, &c.BillingCity, &c.BillingState, &c.BillingZip,
		&c.SubmitterID, &c.SubmitterContact, &c.SubmitterPhone,
		&c.RenderingProviderName, &c.RenderingProviderNPI,
		&c.PayerName, &c.PayerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("clinic %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get clinic: %w", err)
	}
	return c, nil
}

// GetPatient retrieves patient demographics.
func (r *Repository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, first_name, last_name, gender, dob, medicaid_id,
		       address1, address2, city, state, zip
		FROM patients
		WHERE id = $1
	`
	p := &Patient{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Gender, &p.DOB, &p.MedicaidID,
		&p.Address1, &p.Address2, &p.City, &p.State, &p.Zip,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// Save persists the claim's current state with a compare-and-set on
// updated_at, writing the given domain events to the outbox in the same
// transaction. expectedUpdatedAt is the timestamp read before the state
// transition; a mismatch means a concurrent writer won and the caller should
// reload rather than clobber a just-submitted status.
func (r *Repository) Save(ctx context.Context, c *Claim, expectedUpdatedAt time.Time, events []*Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE claims
		SET status = $1, edi_file_content = $2, edi_generated_at = $3,
		    interchange_control = $4, group_control = $5, transaction_control = $6,
		    segment_count = $7, remote_path = $8, submit_error = $9,
		    updated_at = NOW()
		WHERE id = $10 AND updated_at = $11
	`
	tag, err := tx.Exec(ctx, query,
		string(c.Status), c.EDIFileContent, c.EDIGeneratedAt,
		c.ControlNumbers.Interchange, c.ControlNumbers.Group, c.ControlNumbers.TransactionSet,
		c.SegmentCount, c.RemotePath, c.SubmitError,
		c.ID, expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		entry := &postgres.OutboxEntry{
			AggregateID:   c.ID,
			AggregateType: "Claim",
			EventType:     string(event.EventType),
			Payload:       payload,
			KafkaTopic:    r.eventsTopic,
			KafkaKey:      c.ID,
		}
		if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("claim saved",
		zap.String("claim_id", c.ID),
		zap.String("status", string(c.Status)),
		zap.Int("events", len(events)))
	return nil
}
