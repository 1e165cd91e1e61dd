package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-ddx-server/internal/domain"
)

func TestOverlapScorer_ProportionalBase(t *testing.T) {
	scorer := NewOverlapScorer(testKnowledgeBase(), domain.DefaultScoringConfig(), testLogger())
	neutral := domain.PatternScores{}

	tests := []struct {
		name      string
		symptoms  []domain.CanonicalSymptom
		disease   string
		wantScore float64
	}{
		{
			name: "Two of five with double penalty",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain"},
				{Base: "heartburn"},
			},
			disease: "Esophagitis",
			// 2/5 * 100 = 40, no bonus below 3 matches, -5 double penalty
			wantScore: 35,
		},
		{
			name: "Three of five with bonus",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain"},
				{Base: "heartburn"},
				{Base: "dysphagia"},
			},
			disease: "Esophagitis",
			// 3/5 * 100 = 60 + min(10, 2*3) bonus
			wantScore: 66,
		},
		{
			name: "Single match with sparse penalty",
			symptoms: []domain.CanonicalSymptom{
				{Base: "hemoptysis"},
			},
			disease: "Pulmonary Embolism",
			// 1/5 * 100 = 20 - 15 single penalty
			wantScore: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(tt.symptoms, nil, neutral)
			c := findCandidate(t, result.Candidates, tt.disease)
			assert.Equal(t, tt.wantScore, c.RawScore)
			assert.Equal(t, domain.SourceEvidence, c.Provenance.Source)
		})
	}
}

func TestOverlapScorer_BonusCapped(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	scorer := NewOverlapScorer(testKnowledgeBase(), cfg, testLogger())

	symptoms := []domain.CanonicalSymptom{
		{Base: "chest pain"},
		{Base: "shortness of breath"},
		{Base: "hemoptysis"},
		{Base: "leg swelling"},
		{Base: "tachycardia"},
	}

	result := scorer.Score(symptoms, nil, domain.PatternScores{})

	pe := findCandidate(t, result.Candidates, "Pulmonary Embolism")
	// 5/5 * 100 = 100 + bonus would overflow; clamp holds the bound
	assert.Equal(t, float64(100), pe.RawScore)
}

func TestOverlapScorer_NegationPenalty(t *testing.T) {
	scorer := NewOverlapScorer(testKnowledgeBase(), domain.DefaultScoringConfig(), testLogger())

	symptoms := []domain.CanonicalSymptom{
		{Base: "chest pain"},
		{Base: "heartburn"},
	}

	withNegation := scorer.Score(symptoms, []string{"heartburn"}, domain.PatternScores{})
	without := scorer.Score(symptoms, nil, domain.PatternScores{})

	negated := findCandidate(t, withNegation.Candidates, "Esophagitis")
	clean := findCandidate(t, without.Candidates, "Esophagitis")
	assert.Equal(t, clean.RawScore-5, negated.RawScore)
}

func TestOverlapScorer_AbstainsBelowGate(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.MinMatches = 2
	scorer := NewOverlapScorer(testKnowledgeBase(), cfg, testLogger())

	result := scorer.Score([]domain.CanonicalSymptom{{Base: "hemoptysis"}}, nil, domain.PatternScores{})

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 2, result.Abstained)
}

func TestOverlapScorer_ScoresBounded(t *testing.T) {
	scorer := NewOverlapScorer(testKnowledgeBase(), domain.DefaultScoringConfig(), testLogger())

	result := scorer.Score(chestPainSymptoms(), nil, domain.PatternScores{})

	require.NotEmpty(t, result.Candidates)
	for _, c := range result.Candidates {
		assert.GreaterOrEqual(t, c.RawScore, float64(0))
		assert.LessOrEqual(t, c.RawScore, float64(100))
	}
}

func TestOverlapScorer_StableOrderAcrossRuns(t *testing.T) {
	kb := testKnowledgeBase()
	kb.OverlapDiseases = tiedDiseaseTable("fatigue")
	scorer := NewOverlapScorer(kb, domain.DefaultScoringConfig(), testLogger())
	symptoms := []domain.CanonicalSymptom{{Base: "fatigue"}}
	neutral := domain.PatternScores{}

	first := candidateNames(scorer.Score(symptoms, nil, neutral).Candidates)
	require.Len(t, first, 6)

	for i := 0; i < 50; i++ {
		again := candidateNames(scorer.Score(symptoms, nil, neutral).Candidates)
		require.Equal(t, first, again)
	}
}
