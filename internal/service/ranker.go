package service

import (
	"sort"

	"github.com/clinical-ddx-server/internal/domain"
)

// sourceTier orders provenance for ranking: structured rule matches always
// outrank evidence-derived candidates, which outrank LLM fallbacks, no matter
// the numeric scores involved.
func sourceTier(s domain.SourceType) int {
	switch s {
	case domain.SourceRule:
		return 0
	case domain.SourceEvidence:
		return 1
	default:
		return 2
	}
}

// RankDiagnoses sorts lexicographically by (source tier, raw score desc,
// evidence count desc) and assigns 1-based ranks. The sort is stable, so
// candidates tied on all keys keep their merge order.
func RankDiagnoses(diagnoses []domain.FinalDiagnosis) {
	sort.SliceStable(diagnoses, func(i, j int) bool {
		ti, tj := sourceTier(diagnoses[i].Candidate.Provenance.Source), sourceTier(diagnoses[j].Candidate.Provenance.Source)
		if ti != tj {
			return ti < tj
		}
		if diagnoses[i].Candidate.RawScore != diagnoses[j].Candidate.RawScore {
			return diagnoses[i].Candidate.RawScore > diagnoses[j].Candidate.RawScore
		}
		return len(diagnoses[i].Evidence) > len(diagnoses[j].Evidence)
	})
	for i := range diagnoses {
		diagnoses[i].Rank = i + 1
	}
}
