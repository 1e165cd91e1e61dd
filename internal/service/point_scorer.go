package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

// SourceWeighted identifies the weighted point scorer. It is the
// high-specificity source consulted by the merger's downrank rule.
const SourceWeighted = "weighted"

// WeightedScorer computes point-based match scores against the weighted
// disease-symptom table: fixed points per matched symptom, a minimum-evidence
// gate, precomputed pattern family bonuses and negation penalties, and a hard
// clamp to [0, 100].
type WeightedScorer struct {
	kb     *knowledge.Base
	cfg    domain.ScoringConfig
	logger *logrus.Logger
}

// NewWeightedScorer creates a new weighted point scorer
func NewWeightedScorer(kb *knowledge.Base, cfg domain.ScoringConfig, logger *logrus.Logger) *WeightedScorer {
	return &WeightedScorer{kb: kb, cfg: cfg, logger: logger}
}

// SourceID identifies this scorer in candidate provenance
func (s *WeightedScorer) SourceID() string {
	return SourceWeighted
}

// Score computes a candidate per disease with at least one symptom match
func (s *WeightedScorer) Score(symptoms []domain.CanonicalSymptom, negations []string, patterns domain.PatternScores) domain.ScorerResult {
	terms := BuildCanonicalTerms(symptoms)
	if len(terms) == 0 {
		return domain.ScorerResult{}
	}

	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}
	negationText := strings.ToLower(strings.Join(negations, " "))

	result := domain.ScorerResult{}
	for _, disease := range sortedDiseaseNames(s.kb.WeightedDiseases) {
		known := s.kb.WeightedDiseases[disease]
		var matched []string
		for _, symptom := range known {
			if _, ok := termSet[symptom]; ok {
				matched = append(matched, symptom)
			}
		}

		// Minimum evidence gate: rejected silently, not an error
		if len(matched) < s.cfg.MinMatches {
			result.Abstained++
			continue
		}

		score := float64(len(matched)) * s.cfg.PointsPerMatch

		// Pattern family bonus uses the precomputed per-request scores
		isGI := s.kb.IsGIDisease(disease)
		isCardiac := s.kb.IsCardiacDisease(disease)
		if isGI {
			score += patterns[domain.PatternGI]
		} else if isCardiac {
			score += patterns[domain.PatternCardiac]
		}

		if isCardiac {
			for _, neg := range s.kb.CardiacNegations {
				if strings.Contains(negationText, neg) {
					score -= s.cfg.CardiacNegationPen
				}
			}
		}
		if isGI {
			for _, neg := range s.kb.GINegations {
				if strings.Contains(negationText, neg) {
					score -= s.cfg.GINegationPen
				}
			}
		}

		score = clampScore(score, disease, SourceWeighted, s.logger)
		if score <= 0 {
			continue
		}

		result.Candidates = append(result.Candidates, domain.Candidate{
			DiagnosisName:   disease,
			SourceID:        SourceWeighted,
			RawScore:        score,
			MatchedSymptoms: matched,
			Provenance: domain.Provenance{
				Source:      domain.SourceRule,
				RuleApplied: true,
			},
		})
	}

	return result
}

// sortedDiseaseNames fixes the evaluation order of a disease table. Scorers
// must emit candidates in a stable order so that same-score candidates rank
// identically across runs.
func sortedDiseaseNames(table map[string][]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clampScore enforces the 0-100 bound. An intermediate score above 100 is a
// regression signal and is logged before clamping.
func clampScore(score float64, disease, source string, logger *logrus.Logger) float64 {
	if score > 100 {
		logger.WithFields(logrus.Fields{
			"code":    domain.ErrScoreOverflow,
			"disease": disease,
			"source":  source,
			"score":   score,
		}).Error("Intermediate score exceeded 100, clamping")
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
