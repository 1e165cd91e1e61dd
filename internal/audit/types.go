// Package audit provides persistent records of diagnosis runs. Every request
// is stored with its full ranked result so a reviewer can reconstruct why a
// differential was produced.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinical-ddx-server/internal/domain"
)

// Record represents one persisted diagnosis run
type Record struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	State          string          `json:"resolution_state"`
	DiagnosisCount int             `json:"diagnosis_count"`
	UniqueEvidence int             `json:"unique_evidence_count"`
	Abstentions    int             `json:"abstention_count"`
	Duplicates     int             `json:"duplicate_count"`
	DurationMS     int64           `json:"duration_ms"`
	Result         json.RawMessage `json:"result"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewRecord builds an audit record from a completed diagnosis result
func NewRecord(result *domain.DiagnoseResult) (*Record, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	return &Record{
		ID:             uuid.New().String(),
		RequestID:      result.RequestID,
		State:          string(result.State),
		DiagnosisCount: len(result.Diagnoses),
		UniqueEvidence: result.UniqueEvidence,
		Abstentions:    result.Abstentions,
		Duplicates:     result.Duplicates,
		DurationMS:     result.ProcessingTime.Milliseconds(),
		Result:         payload,
		CreatedAt:      result.Timestamp,
	}, nil
}

// Store defines the interface for audit record storage.
type Store interface {
	// Save persists one audit record.
	Save(ctx context.Context, record *Record) error

	// Get retrieves an audit record by its ID. Returns nil when not found.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns audit records newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of audit records.
	Count(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
