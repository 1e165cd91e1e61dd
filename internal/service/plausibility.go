package service

import (
	"github.com/clinical-ddx-server/internal/domain"
)

// Rule-based plausibility thresholds in matched-symptom counts
const (
	veryLikelyMatches = 7
	likelyMatches     = 5
	possibleMatches   = 3

	strongEvidenceCount = 3
	highQualityGrade    = 0.8
)

// ClassifyPlausibility maps a candidate to a categorical likelihood by
// provenance: structured rule hits are graded on match count, evidence-backed
// candidates on chunk count and quality, and LLM fallbacks are capped at
// POSSIBLE regardless of their numeric score.
func ClassifyPlausibility(c domain.Candidate, graded []domain.GradedEvidence) domain.PlausibilityCategory {
	switch c.Provenance.Source {
	case domain.SourceRule:
		matches := len(c.MatchedSymptoms)
		switch {
		case matches >= veryLikelyMatches:
			return domain.PlausibilityVeryLikely
		case matches >= likelyMatches:
			return domain.PlausibilityLikely
		case matches >= possibleMatches:
			return domain.PlausibilityPossible
		default:
			return domain.PlausibilityUnlikely
		}
	case domain.SourceEvidence:
		if len(graded) >= strongEvidenceCount && highestGrade(graded) >= highQualityGrade {
			return domain.PlausibilityLikely
		}
		if len(graded) >= 1 {
			return domain.PlausibilityPossible
		}
		return domain.PlausibilityUnlikely
	default:
		return domain.PlausibilityPossible
	}
}

// ClassifyEvidenceSupport buckets the amount of distinct evidence behind a
// diagnosis.
func ClassifyEvidenceSupport(graded []domain.GradedEvidence) domain.EvidenceSupport {
	switch {
	case len(graded) >= 3:
		return domain.SupportMultiple
	case len(graded) == 2:
		return domain.SupportLimited
	case len(graded) == 1:
		return domain.SupportSingle
	default:
		return domain.SupportNone
	}
}

func highestGrade(graded []domain.GradedEvidence) float64 {
	best := 0.0
	for _, g := range graded {
		if g.Grade > best {
			best = g.Grade
		}
	}
	return best
}
