package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
)

// MergeResult is the output of merging candidate lists
type MergeResult struct {
	Candidates []domain.Candidate
	// Duplicates counts candidates discarded on name collision
	Duplicates int
}

// Merger deduplicates candidate lists from multiple scorers by
// case-normalized diagnosis name, keeping the higher score on collision,
// then applies the cross-source downrank rule and re-sorts by score.
type Merger struct {
	cfg domain.ScoringConfig
	// highSpecificitySource is the scorer whose high-confidence candidates
	// trigger downranking of thin matches from other sources.
	highSpecificitySource string
	logger                *logrus.Logger
}

// NewMerger creates a new candidate merger
func NewMerger(cfg domain.ScoringConfig, highSpecificitySource string, logger *logrus.Logger) *Merger {
	return &Merger{
		cfg:                   cfg,
		highSpecificitySource: highSpecificitySource,
		logger:                logger,
	}
}

// Merge combines candidate lists into one deduplicated, score-sorted list.
// Merging an already-merged list yields the same list.
func (m *Merger) Merge(lists [][]domain.Candidate) MergeResult {
	unique := make(map[string]domain.Candidate)
	var order []string
	duplicates := 0

	for _, list := range lists {
		for _, c := range list {
			key := strings.ToLower(strings.TrimSpace(c.DiagnosisName))
			if key == "" {
				continue
			}
			existing, ok := unique[key]
			if !ok {
				unique[key] = c
				order = append(order, key)
				continue
			}
			duplicates++
			if c.RawScore > existing.RawScore {
				unique[key] = c
			}
		}
	}

	merged := make([]domain.Candidate, 0, len(unique))
	for _, key := range order {
		merged = append(merged, unique[key])
	}

	m.downrank(merged)

	// Stable: same-score candidates keep first-seen order
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RawScore > merged[j].RawScore
	})

	if duplicates > 0 {
		m.logger.WithFields(logrus.Fields{
			"unique":     len(merged),
			"duplicates": duplicates,
		}).Info("Candidate deduplication complete")
	}

	return MergeResult{Candidates: merged, Duplicates: duplicates}
}

// downrank applies the cross-source plausibility rule: when the
// high-specificity source holds a candidate above the high-confidence cutoff,
// thin matches from other sources are multiplicatively downweighted. The
// qualifying-candidate check runs exactly once per merge, not per pair.
func (m *Merger) downrank(candidates []domain.Candidate) {
	qualifies := false
	for _, c := range candidates {
		if c.SourceID == m.highSpecificitySource && c.RawScore > m.cfg.HighConfidenceCutoff {
			qualifies = true
			break
		}
	}
	if !qualifies {
		return
	}

	for i := range candidates {
		c := &candidates[i]
		if c.SourceID == m.highSpecificitySource || c.Downranked {
			continue
		}
		matches := len(c.MatchedSymptoms)
		switch {
		case matches <= 2:
			original := c.RawScore
			c.RawScore *= m.cfg.DownrankFewFactor
			c.Downranked = true
			m.logger.WithFields(logrus.Fields{
				"diagnosis": c.DiagnosisName,
				"from":      original,
				"to":        c.RawScore,
			}).Debug("Downranked thin cross-source candidate")
		case matches == 3:
			original := c.RawScore
			c.RawScore *= m.cfg.DownrankLimitedFactor
			c.Downranked = true
			m.logger.WithFields(logrus.Fields{
				"diagnosis": c.DiagnosisName,
				"from":      original,
				"to":        c.RawScore,
			}).Debug("Downranked limited cross-source candidate")
		}
	}
}
