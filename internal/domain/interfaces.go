package domain

import (
	"context"
)

// ScorerResult is the output of a single candidate scorer run
type ScorerResult struct {
	Candidates []Candidate
	// Abstained counts diseases rejected by the minimum-evidence gate
	Abstained int
}

// CandidateScorer scores diseases from an immutable knowledge table.
// Scorers are pure over their inputs and safe to run concurrently.
type CandidateScorer interface {
	// SourceID identifies this scorer in candidate provenance
	SourceID() string

	// Score computes bounded match scores for every disease in the
	// scorer's table. Pattern scores are shared read-only and must not
	// be mutated.
	Score(symptoms []CanonicalSymptom, negations []string, patterns PatternScores) ScorerResult
}

// EvidenceRetriever fetches ranked evidence items for a diagnosis query.
// A failed or empty retrieval is "zero evidence available", not an error
// the pipeline propagates.
type EvidenceRetriever interface {
	Search(ctx context.Context, query string, limit int) ([]EvidenceItem, error)
}

// FallbackGenerator produces language-model candidates used only when the
// structured scorers yield nothing.
type FallbackGenerator interface {
	Generate(ctx context.Context, req *DiagnoseRequest) ([]Candidate, error)
}

// ConfigManager provides access to application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Validate() error
}
