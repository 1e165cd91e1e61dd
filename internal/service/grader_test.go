package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-ddx-server/internal/domain"
)

func TestEvidenceGrader_ContradictionGatesRelevance(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())
	symptoms := []string{"chest pain"}

	supporting := domain.EvidenceItem{
		ID:         "ev-1",
		Text:       "GERD typically presents with chest pain after meals.",
		Similarity: 0.8,
	}
	contradicting := domain.EvidenceItem{
		ID:         "ev-2",
		Text:       "The patient denies chest pain and has no other complaints.",
		Similarity: 0.8,
	}

	graded := grader.GradeAll("GERD", []domain.EvidenceItem{supporting, contradicting}, symptoms)
	require.Len(t, graded, 2)

	assert.InDelta(t, 0.8*0.4, graded[1].Relevance, 1e-9, "contradicted evidence relevance is similarity * 0.4")
	assert.Greater(t, graded[0].Relevance, graded[1].Relevance)
}

func TestEvidenceGrader_TemporalMismatchPenalty(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())
	symptoms := []string{"acute dyspnea"}

	chronic := domain.EvidenceItem{
		ID:         "ev-1",
		Text:       "A chronic, longstanding course over years is characteristic.",
		Similarity: 1.0,
	}

	graded := grader.GradeAll("COPD", []domain.EvidenceItem{chronic}, symptoms)

	assert.InDelta(t, 0.7, graded[0].Relevance, 1e-9, "temporal mismatch applies the 0.7 factor")
}

func TestEvidenceGrader_DiagnosisMentionRaisesStrength(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())
	symptoms := []string{"heartburn"}

	mentioning := domain.EvidenceItem{ID: "ev-1", Text: "GERD causes heartburn.", Similarity: 0.9}
	silent := domain.EvidenceItem{ID: "ev-2", Text: "Reflux causes heartburn.", Similarity: 0.9}

	graded := grader.GradeAll("GERD", []domain.EvidenceItem{mentioning, silent}, symptoms)

	assert.Greater(t, graded[0].Strength, graded[1].Strength)
}

func TestEvidenceGrader_GradeBands(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	tests := []struct {
		name       string
		similarity float64
		wantGrade  float64
	}{
		{"High relevance grades 0.8", 0.95, 0.8},
		{"Moderate relevance grades 0.6", 0.6, 0.6},
		{"Low relevance grades 0.4", 0.2, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := domain.EvidenceItem{
				ID:         "ev",
				Text:       "GERD typically presents with heartburn.",
				Similarity: tt.similarity,
			}
			graded := grader.GradeAll("GERD", []domain.EvidenceItem{item}, []string{"heartburn"})
			assert.Equal(t, tt.wantGrade, graded[0].Grade)
		})
	}
}

func TestEvidenceGrader_ConfidenceWithoutEvidence(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	confidence := grader.Confidence(0.6, nil)

	assert.InDelta(t, 0.3, confidence, 1e-9, "no evidence halves the base belief")
}

func TestEvidenceGrader_ConfidenceBounded(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	item := domain.EvidenceItem{
		ID:         "ev",
		Text:       "GERD typically presents with heartburn.",
		Similarity: 1.0,
	}
	graded := grader.GradeAll("GERD", []domain.EvidenceItem{item}, []string{"heartburn"})

	confidence := grader.Confidence(1.0, graded)

	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)
}
