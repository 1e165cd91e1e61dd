package domain

import (
	"time"
)

// Core Enums and Types

// SourceType represents the provenance tier of a diagnosis candidate
type SourceType string

const (
	SourceRule     SourceType = "rule"
	SourceEvidence SourceType = "evidence"
	SourceLLM      SourceType = "llm"
)

// RiskLevel represents the 3-tier risk category
type RiskLevel string

const (
	RiskCritical RiskLevel = "Red/Danger"
	RiskWarning  RiskLevel = "Orange/Warning"
	RiskLow      RiskLevel = "Blue/Low"
)

// PlausibilityCategory represents the ordinal likelihood classification
type PlausibilityCategory string

const (
	PlausibilityVeryLikely PlausibilityCategory = "VERY_LIKELY"
	PlausibilityLikely     PlausibilityCategory = "LIKELY"
	PlausibilityPossible   PlausibilityCategory = "POSSIBLE"
	PlausibilityUnlikely   PlausibilityCategory = "UNLIKELY"
)

// EvidenceSupport represents the count-based evidence classification
type EvidenceSupport string

const (
	SupportMultiple EvidenceSupport = "MULTIPLE_SOURCES"
	SupportLimited  EvidenceSupport = "LIMITED"
	SupportSingle   EvidenceSupport = "SINGLE_SOURCE"
	SupportNone     EvidenceSupport = "NONE"
)

// ResolutionState names the states of the diagnosis fallback state machine
type ResolutionState string

const (
	StateStructuredMatch ResolutionState = "STRUCTURED_MATCH"
	StateValidated       ResolutionState = "VALIDATED"
	StateLLMFallback     ResolutionState = "LLM_FALLBACK"
	StateMinimalFallback ResolutionState = "MINIMAL_FALLBACK"
	StateNoDiagnoses     ResolutionState = "NO_DIAGNOSES"
)

// Pattern bucket names emitted by the pattern detector
const (
	PatternGI      = "gi"
	PatternCardiac = "cardiac"
)

// Core Data Models

// CanonicalSymptom represents a normalized symptom with optional modifiers.
// Produced once per request by the upstream normalizer; immutable during scoring.
type CanonicalSymptom struct {
	Base      string `json:"base"`
	Quality   string `json:"quality,omitempty"`
	Location  string `json:"location,omitempty"`
	Severity  *int   `json:"severity,omitempty"`
	Radiation string `json:"radiation,omitempty"`
	Timing    string `json:"timing,omitempty"`
}

// PatternScores maps pattern bucket names to their scores.
// Computed once per request and shared read-only by all scorers.
type PatternScores map[string]float64

// Clone returns an independent copy of the pattern scores.
func (p PatternScores) Clone() PatternScores {
	out := make(PatternScores, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Provenance records where a candidate came from
type Provenance struct {
	Source      SourceType `json:"source"`
	RuleApplied bool       `json:"rule_applied"`
	LLMUsed     bool       `json:"llm_used"`
}

// Candidate represents an unranked diagnosis proposal from one scoring source
type Candidate struct {
	DiagnosisName   string     `json:"diagnosis_name"`
	SourceID        string     `json:"source_id"`
	RawScore        float64    `json:"raw_score"`
	MatchedSymptoms []string   `json:"matched_symptoms"`
	Provenance      Provenance `json:"provenance"`
	// Downranked records that the cross-source downrank was already applied,
	// so re-merging an already-merged list never reapplies it.
	Downranked bool `json:"downranked,omitempty"`
}

// EvidenceItem represents one retrieved evidence chunk.
// Owned by the retrieval collaborator; read-only to the pipeline.
type EvidenceItem struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	DatasetTag string  `json:"dataset_tag"`
	Section    string  `json:"section,omitempty"`
}

// GradedEvidence pairs an evidence item with its deterministic grades
type GradedEvidence struct {
	Item      EvidenceItem `json:"item"`
	Relevance float64      `json:"relevance"`
	Strength  float64      `json:"strength"`
	Grade     float64      `json:"grade"`
	Composite float64      `json:"composite"`
}

// ConfidenceAssessment represents belief with an uncertainty band
type ConfidenceAssessment struct {
	Belief      float64  `json:"belief"`
	Uncertainty float64  `json:"uncertainty"`
	LowerBound  float64  `json:"lower_bound"`
	UpperBound  float64  `json:"upper_bound"`
	Sources     []string `json:"uncertainty_sources"`
}

// RiskAssessment represents the result of risk classification
type RiskAssessment struct {
	Score          float64            `json:"score"`
	Level          RiskLevel          `json:"level"`
	CalculatorUsed string             `json:"calculator_used"`
	Components     map[string]float64 `json:"components"`
	Interpretation string             `json:"interpretation,omitempty"`
}

// FinalDiagnosis is the terminal per-diagnosis aggregate
type FinalDiagnosis struct {
	Candidate    Candidate            `json:"candidate"`
	Evidence     []EvidenceItem       `json:"evidence"`
	Confidence   ConfidenceAssessment `json:"confidence"`
	Risk         RiskAssessment       `json:"risk"`
	Plausibility PlausibilityCategory `json:"plausibility"`
	Support      EvidenceSupport      `json:"evidence_support"`
	Rank         int                  `json:"rank"`
}

// PatientData is the structured clinical data bag from the extraction collaborator
type PatientData struct {
	Age          *int               `json:"age,omitempty"`
	Sex          string             `json:"sex,omitempty"`
	Vitals       map[string]float64 `json:"vitals,omitempty"`
	Labs         map[string]float64 `json:"labs,omitempty"`
	History      []string           `json:"past_medical_history,omitempty"`
	PhysicalExam []string           `json:"physical_exam,omitempty"`
	Triggers     []string           `json:"triggers,omitempty"`
}

// Request/Response Models

// DiagnoseRequest represents an incoming differential diagnosis request
type DiagnoseRequest struct {
	RequestID string             `json:"request_id,omitempty"`
	Symptoms  []CanonicalSymptom `json:"symptoms"`
	Negations []string           `json:"negations,omitempty"`
	Patient   PatientData        `json:"patient"`

	// Optional pre-generated language-model candidates, used only when
	// the structured scorers produce nothing.
	FallbackCandidates []Candidate `json:"fallback_candidates,omitempty"`
}

// DiagnoseResult represents the ranked differential diagnosis output
type DiagnoseResult struct {
	RequestID      string           `json:"request_id"`
	State          ResolutionState  `json:"resolution_state"`
	Diagnoses      []FinalDiagnosis `json:"diagnoses"`
	UniqueEvidence int              `json:"unique_evidence_count"`
	Abstentions    int              `json:"abstention_count"`
	Duplicates     int              `json:"duplicate_count"`
	Excluded       []string         `json:"excluded,omitempty"`
	ProcessingTime time.Duration    `json:"processing_time"`
	Timestamp      time.Time        `json:"timestamp"`
}
