package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-ddx-server/internal/domain"
)

func newTestMerger() *Merger {
	return NewMerger(domain.DefaultScoringConfig(), SourceWeighted, testLogger())
}

func TestMerger_DeduplicatesByName(t *testing.T) {
	merger := newTestMerger()

	lists := [][]domain.Candidate{
		{{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 62, MatchedSymptoms: []string{"a", "b", "c", "d"}}},
		{{DiagnosisName: "gerd", SourceID: SourceOverlap, RawScore: 45, MatchedSymptoms: []string{"a", "b"}}},
	}

	result := merger.Merge(lists)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, float64(62), result.Candidates[0].RawScore)
	assert.Equal(t, SourceWeighted, result.Candidates[0].SourceID)
}

func TestMerger_SortsByScoreDescending(t *testing.T) {
	merger := newTestMerger()

	lists := [][]domain.Candidate{
		{
			{DiagnosisName: "Costochondritis", SourceID: SourceWeighted, RawScore: 10, MatchedSymptoms: []string{"a"}},
			{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 40, MatchedSymptoms: []string{"a", "b", "c", "d"}},
			{DiagnosisName: "ACS", SourceID: SourceWeighted, RawScore: 25, MatchedSymptoms: []string{"a", "b"}},
		},
	}

	result := merger.Merge(lists)

	require.Len(t, result.Candidates, 3)
	assert.Equal(t, "GERD", result.Candidates[0].DiagnosisName)
	assert.Equal(t, "ACS", result.Candidates[1].DiagnosisName)
	assert.Equal(t, "Costochondritis", result.Candidates[2].DiagnosisName)
}

func TestMerger_DownranksThinCrossSourceMatches(t *testing.T) {
	merger := newTestMerger()

	lists := [][]domain.Candidate{
		{{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 70, MatchedSymptoms: []string{"a", "b", "c", "d", "e"}}},
		{
			{DiagnosisName: "Esophagitis", SourceID: SourceOverlap, RawScore: 40, MatchedSymptoms: []string{"a", "b"}},
			{DiagnosisName: "Pulmonary Embolism", SourceID: SourceOverlap, RawScore: 60, MatchedSymptoms: []string{"a", "b", "c"}},
		},
	}

	result := merger.Merge(lists)

	esophagitis := findCandidate(t, result.Candidates, "Esophagitis")
	pe := findCandidate(t, result.Candidates, "Pulmonary Embolism")
	assert.InDelta(t, 16.0, esophagitis.RawScore, 1e-9, "2 matches downranked by 0.4")
	assert.InDelta(t, 42.0, pe.RawScore, 1e-9, "3 matches downranked by 0.7")
	assert.True(t, esophagitis.Downranked)
}

func TestMerger_NoDownrankWithoutHighConfidenceAnchor(t *testing.T) {
	merger := newTestMerger()

	lists := [][]domain.Candidate{
		{{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 45, MatchedSymptoms: []string{"a", "b"}}},
		{{DiagnosisName: "Esophagitis", SourceID: SourceOverlap, RawScore: 40, MatchedSymptoms: []string{"a", "b"}}},
	}

	result := merger.Merge(lists)

	esophagitis := findCandidate(t, result.Candidates, "Esophagitis")
	assert.Equal(t, float64(40), esophagitis.RawScore)
	assert.False(t, esophagitis.Downranked)
}

func TestMerger_MergeIsIdempotent(t *testing.T) {
	merger := newTestMerger()

	lists := [][]domain.Candidate{
		{{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 70, MatchedSymptoms: []string{"a", "b", "c", "d", "e"}}},
		{{DiagnosisName: "Esophagitis", SourceID: SourceOverlap, RawScore: 40, MatchedSymptoms: []string{"a", "b"}}},
	}

	once := merger.Merge(lists)
	twice := merger.Merge([][]domain.Candidate{once.Candidates})

	require.Len(t, twice.Candidates, len(once.Candidates))
	for i := range once.Candidates {
		assert.Equal(t, once.Candidates[i].RawScore, twice.Candidates[i].RawScore,
			"re-merging must not reapply the downrank factor")
	}
}

func TestMerger_DeterministicUnderInputPermutation(t *testing.T) {
	merger := newTestMerger()

	a := domain.Candidate{DiagnosisName: "GERD", SourceID: SourceWeighted, RawScore: 30, MatchedSymptoms: []string{"a", "b", "c", "d"}}
	b := domain.Candidate{DiagnosisName: "ACS", SourceID: SourceWeighted, RawScore: 30, MatchedSymptoms: []string{"a", "b", "c", "d"}}

	first := merger.Merge([][]domain.Candidate{{a, b}})
	second := merger.Merge([][]domain.Candidate{{a, b}})

	require.Len(t, first.Candidates, 2)
	assert.Equal(t, first.Candidates[0].DiagnosisName, second.Candidates[0].DiagnosisName)
	assert.Equal(t, first.Candidates[1].DiagnosisName, second.Candidates[1].DiagnosisName)
}

func TestMerger_EmptyAndBlankNames(t *testing.T) {
	merger := newTestMerger()

	result := merger.Merge([][]domain.Candidate{
		{},
		{{DiagnosisName: "  ", SourceID: SourceWeighted, RawScore: 50}},
	})

	assert.Empty(t, result.Candidates)
	assert.Zero(t, result.Duplicates)
}
