package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
)

// Evidence grading weights and gates
const (
	contradictionGateFactor = 0.4
	temporalMismatchFactor  = 0.7
	strengthCoverageWeight  = 0.6
	strengthMentionWeight   = 0.4
	compositeRelevanceW     = 0.4
	compositeStrengthW      = 0.4
	compositeGradeW         = 0.2
	confidenceSimilarityW   = 0.3
	confidenceCompositeW    = 0.7
	noEvidencePenalty       = 0.5
)

var negationMarkers = []string{"no ", "not ", "denies ", "without ", "absence of ", "absent "}

// EvidenceGrader derives per-evidence relevance scores from similarity plus
// lexical overlap checks. Deterministic; no semantic guesswork.
type EvidenceGrader struct {
	logger *logrus.Logger
}

// NewEvidenceGrader creates a new evidence grader
func NewEvidenceGrader(logger *logrus.Logger) *EvidenceGrader {
	return &EvidenceGrader{logger: logger}
}

// GradeAll grades every selected evidence item for a diagnosis
func (g *EvidenceGrader) GradeAll(diagnosis string, items []domain.EvidenceItem, symptoms []string) []domain.GradedEvidence {
	graded := make([]domain.GradedEvidence, 0, len(items))
	for _, item := range items {
		graded = append(graded, g.grade(diagnosis, item, symptoms))
	}
	return graded
}

func (g *EvidenceGrader) grade(diagnosis string, item domain.EvidenceItem, symptoms []string) domain.GradedEvidence {
	relevance := g.clinicalRelevance(item.Similarity, item.Text, diagnosis, symptoms)

	coverage := symptomCoverage(item.Text, symptoms)
	mention := 0.5
	if strings.Contains(strings.ToLower(item.Text), strings.ToLower(diagnosis)) {
		mention = 1.0
	}
	strength := strengthCoverageWeight*coverage + strengthMentionWeight*mention

	var grade float64
	switch {
	case relevance >= 0.7:
		grade = 0.8
	case relevance >= 0.5:
		grade = 0.6
	default:
		grade = 0.4
	}

	composite := compositeRelevanceW*relevance + compositeStrengthW*strength + compositeGradeW*grade

	return domain.GradedEvidence{
		Item:      item,
		Relevance: relevance,
		Strength:  strength,
		Grade:     grade,
		Composite: composite,
	}
}

// clinicalRelevance gates raw similarity by lexical checks: hard contradiction
// penalty, temporal mismatch penalty, otherwise a floor scaled by alignment.
func (g *EvidenceGrader) clinicalRelevance(similarity float64, text, diagnosis string, symptoms []string) float64 {
	contradiction := contradictionPenalty(text, symptoms)
	if contradiction > 0.5 {
		return similarity * contradictionGateFactor
	}

	if temporalAlignment(text, symptoms) <= 0.3 {
		return similarity * temporalMismatchFactor
	}

	alignment := clinicalAlignment(text, diagnosis, symptoms)
	return similarity * (0.5 + 0.5*alignment)
}

// contradictionPenalty returns the fraction of patient symptoms that the
// evidence text negates.
func contradictionPenalty(text string, symptoms []string) float64 {
	if len(symptoms) == 0 {
		return 0
	}
	textLower := strings.ToLower(text)
	contradicted := 0
	for _, symptom := range symptoms {
		symptomLower := strings.ToLower(symptom)
		for _, marker := range negationMarkers {
			if strings.Contains(textLower, marker+symptomLower) {
				contradicted++
				break
			}
		}
	}
	return float64(contradicted) / float64(len(symptoms))
}

// temporalAlignment compares acute/chronic markers between symptoms and
// evidence: 1.0 match, 0.3 mismatch, 0.7 when no clear markers exist.
func temporalAlignment(text string, symptoms []string) float64 {
	symptomText := strings.ToLower(strings.Join(symptoms, " "))
	textLower := strings.ToLower(text)

	symptomAcute := containsAnyTerm(symptomText, []string{"acute", "sudden", "abrupt"})
	symptomChronic := containsAnyTerm(symptomText, []string{"chronic", "longstanding", "weeks", "months"})
	evidenceAcute := containsAnyTerm(textLower, []string{"acute", "sudden", "abrupt"})
	evidenceChronic := containsAnyTerm(textLower, []string{"chronic", "longstanding"})

	switch {
	case symptomAcute && evidenceChronic && !evidenceAcute:
		return 0.3
	case symptomChronic && evidenceAcute && !evidenceChronic:
		return 0.3
	case (symptomAcute && evidenceAcute) || (symptomChronic && evidenceChronic):
		return 1.0
	default:
		return 0.7
	}
}

// clinicalAlignment starts neutral and rewards diagnosis mention and
// symptom coverage in the evidence text.
func clinicalAlignment(text, diagnosis string, symptoms []string) float64 {
	alignment := 0.5
	if strings.Contains(strings.ToLower(text), strings.ToLower(diagnosis)) {
		alignment += 0.3
	}
	alignment += symptomCoverage(text, symptoms) * 0.2
	if alignment > 1.0 {
		alignment = 1.0
	}
	return alignment
}

// symptomCoverage returns the fraction of patient symptoms mentioned in text
func symptomCoverage(text string, symptoms []string) float64 {
	if len(symptoms) == 0 {
		return 0
	}
	textLower := strings.ToLower(text)
	mentioned := 0
	for _, s := range symptoms {
		if strings.Contains(textLower, strings.ToLower(s)) {
			mentioned++
		}
	}
	return float64(mentioned) / float64(len(symptoms))
}

// Confidence combines base belief with graded evidence:
// 0.3 * average similarity + 0.7 * average composite grade. With no evidence,
// the base is penalized instead.
func (g *EvidenceGrader) Confidence(base float64, graded []domain.GradedEvidence) float64 {
	if len(graded) == 0 {
		return clamp01(base * noEvidencePenalty)
	}

	var simSum, compositeSum float64
	for _, ge := range graded {
		simSum += ge.Item.Similarity
		compositeSum += ge.Composite
	}
	avgSim := simSum / float64(len(graded))
	avgComposite := compositeSum / float64(len(graded))

	return clamp01(confidenceSimilarityW*avgSim + confidenceCompositeW*avgComposite)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
