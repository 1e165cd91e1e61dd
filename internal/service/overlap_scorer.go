package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

// SourceOverlap identifies the proportional-overlap scorer
const SourceOverlap = "overlap"

// OverlapScorer computes proportional evidence-overlap scores against the
// overlap disease table: base = matched/total * 100, a small capped
// match-count bonus, sparse-match penalties, negation penalties, and a hard
// clamp to [0, 100]. The proportional base can never exceed 100; the clamp
// guard exists to catch bonus arithmetic regressions.
type OverlapScorer struct {
	kb     *knowledge.Base
	cfg    domain.ScoringConfig
	logger *logrus.Logger
}

// NewOverlapScorer creates a new proportional-overlap scorer
func NewOverlapScorer(kb *knowledge.Base, cfg domain.ScoringConfig, logger *logrus.Logger) *OverlapScorer {
	return &OverlapScorer{kb: kb, cfg: cfg, logger: logger}
}

// SourceID identifies this scorer in candidate provenance
func (s *OverlapScorer) SourceID() string {
	return SourceOverlap
}

// Score computes a candidate per disease with at least one evidence match
func (s *OverlapScorer) Score(symptoms []domain.CanonicalSymptom, negations []string, patterns domain.PatternScores) domain.ScorerResult {
	terms := BuildCanonicalTerms(symptoms)
	if len(terms) == 0 {
		return domain.ScorerResult{}
	}

	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	result := domain.ScorerResult{}
	for _, disease := range sortedDiseaseNames(s.kb.OverlapDiseases) {
		evidences := s.kb.OverlapDiseases[disease]
		var matched []string
		for _, ev := range evidences {
			if _, ok := termSet[ev]; ok {
				matched = append(matched, ev)
			}
		}

		matchCount := len(matched)
		if matchCount < s.cfg.MinMatches {
			result.Abstained++
			continue
		}

		base := float64(matchCount) / float64(len(evidences)) * 100

		var bonus float64
		if matchCount >= 3 {
			bonus = s.cfg.OverlapBonusPerMatch * float64(matchCount)
			if bonus > s.cfg.OverlapBonusCap {
				bonus = s.cfg.OverlapBonusCap
			}
		}

		var sparsePenalty float64
		switch matchCount {
		case 1:
			sparsePenalty = s.cfg.OverlapSinglePen
		case 2:
			sparsePenalty = s.cfg.OverlapDoublePen
		}

		var negationPenalty float64
		for _, neg := range negations {
			negLower := strings.ToLower(neg)
			for _, m := range matched {
				if strings.Contains(m, negLower) || strings.Contains(negLower, m) {
					negationPenalty += s.cfg.OverlapNegationPen
				}
			}
		}

		score := clampScore(base+bonus-sparsePenalty-negationPenalty, disease, SourceOverlap, s.logger)
		if score <= 0 {
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"disease": disease,
			"matches": matchCount,
			"total":   len(evidences),
			"base":    base,
			"bonus":   bonus,
			"score":   score,
		}).Debug("Overlap score computed")

		result.Candidates = append(result.Candidates, domain.Candidate{
			DiagnosisName:   disease,
			SourceID:        SourceOverlap,
			RawScore:        score,
			MatchedSymptoms: matched,
			Provenance: domain.Provenance{
				Source:      domain.SourceEvidence,
				RuleApplied: false,
			},
		})
	}

	return result
}
