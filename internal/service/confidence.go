package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
)

// Uncertainty component values and triggering thresholds
const (
	targetEvidenceChunks   = 5
	coverageThreshold      = 0.6
	coverageComponent      = 0.3
	contradictionThreshold = 0.2
	singleSourceComponent  = 0.2
	incompleteThreshold    = 0.5
	incompleteScale        = 0.3
	uncertaintyCap         = 0.6
	uncertaintyBaseline    = 0.1
	expectedVitals         = 5
	expectedLabs           = 3
)

// Base beliefs by provenance, before evidence grading
const (
	evidenceBaseBelief = 0.7
	llmBaseBelief      = 0.5
	fallbackBaseBelief = 0.3
)

// ConfidenceEngine combines a base belief with independent uncertainty
// contributions into a compounded uncertainty band. Components compound on
// the complement rather than averaging: stacked independent doubts must not
// cancel each other out.
type ConfidenceEngine struct {
	grader *EvidenceGrader
	logger *logrus.Logger
}

// NewConfidenceEngine creates a new confidence engine
func NewConfidenceEngine(grader *EvidenceGrader, logger *logrus.Logger) *ConfidenceEngine {
	return &ConfidenceEngine{grader: grader, logger: logger}
}

// Assess produces the confidence assessment for one candidate
func (e *ConfidenceEngine) Assess(candidate domain.Candidate, graded []domain.GradedEvidence, patient domain.PatientData) domain.ConfidenceAssessment {
	base := e.baseBelief(candidate)
	belief := e.grader.Confidence(base, graded)

	components, sources := e.uncertaintyComponents(graded, patient)
	uncertainty := CompoundUncertainty(components)

	assessment := domain.ConfidenceAssessment{
		Belief:      belief,
		Uncertainty: uncertainty,
		LowerBound:  clamp01(belief - uncertainty),
		UpperBound:  clamp01(belief + uncertainty),
		Sources:     sources,
	}

	e.logger.WithFields(logrus.Fields{
		"diagnosis":   candidate.DiagnosisName,
		"belief":      belief,
		"uncertainty": uncertainty,
		"sources":     len(sources),
	}).Debug("Confidence assessed")

	return assessment
}

// baseBelief derives the point estimate from candidate provenance
func (e *ConfidenceEngine) baseBelief(candidate domain.Candidate) float64 {
	switch candidate.Provenance.Source {
	case domain.SourceRule:
		return clamp01(candidate.RawScore / 100)
	case domain.SourceEvidence:
		return evidenceBaseBelief
	case domain.SourceLLM:
		return llmBaseBelief
	default:
		return fallbackBaseBelief
	}
}

// uncertaintyComponents collects the independent doubt sources that trigger
func (e *ConfidenceEngine) uncertaintyComponents(graded []domain.GradedEvidence, patient domain.PatientData) ([]float64, []string) {
	var components []float64
	var sources []string

	// Evidence coverage below target
	coverage := float64(len(graded)) / targetEvidenceChunks
	if coverage < coverageThreshold {
		components = append(components, coverageComponent)
		sources = append(sources, "Limited evidence (< 3 sources)")
	}

	// Contradiction rate among evidence text
	contradictions := 0
	for _, ge := range graded {
		if containsAnyTerm(strings.ToLower(ge.Item.Text), []string{"not", "no ", "denies", "absence"}) {
			contradictions++
		}
	}
	denom := len(graded)
	if denom == 0 {
		denom = 1
	}
	rate := float64(contradictions) / float64(denom)
	if rate > contradictionThreshold {
		components = append(components, rate)
		sources = append(sources, fmt.Sprintf("Contradictory evidence (%.0f%%)", rate*100))
	}

	// Fewer than two distinct datasets
	datasets := make(map[string]struct{})
	for _, ge := range graded {
		datasets[ge.Item.DatasetTag] = struct{}{}
	}
	if len(datasets) < 2 {
		components = append(components, singleSourceComponent)
		sources = append(sources, "Single dataset only")
	}

	// Missing vitals and labs
	missingVitals := expectedVitals - len(patient.Vitals)
	if missingVitals < 0 {
		missingVitals = 0
	}
	missingLabs := expectedLabs - len(patient.Labs)
	if missingLabs < 0 {
		missingLabs = 0
	}
	incompleteness := float64(missingVitals+missingLabs) / float64(expectedVitals+expectedLabs)
	if incompleteness > incompleteThreshold {
		components = append(components, incompleteness*incompleteScale)
		sources = append(sources, fmt.Sprintf("Missing key data (%.0f%% incomplete)", incompleteness*100))
	}

	return components, sources
}

// CompoundUncertainty combines components multiplicatively on the complement:
// 1 - product(1 - c), capped. No triggered components yields the irreducible
// baseline, never zero.
func CompoundUncertainty(components []float64) float64 {
	if len(components) == 0 {
		return uncertaintyBaseline
	}
	complement := 1.0
	for _, c := range components {
		complement *= 1 - c
	}
	uncertainty := 1 - complement
	if uncertainty > uncertaintyCap {
		return uncertaintyCap
	}
	return uncertainty
}
