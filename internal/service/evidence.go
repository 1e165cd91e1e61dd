package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

// diagnosticTypes are the evidence keyword categories that carry diagnostic
// value; everything else is management or background text.
var diagnosticTypes = []string{"diagnostic_criteria", "typical_symptoms", "exclusion_features"}

// minQualityScore is the quality cutoff for keeping an evidence chunk
const minQualityScore = 0.5

// EvidenceSelector filters a retrieved evidence pool for diagnostic
// relevance and assigns each item to at most one diagnosis per request.
// The used-ID set is request-scoped and mutated sequentially across
// diagnoses in rank order; selection must not be parallelized.
type EvidenceSelector struct {
	kb     *knowledge.Base
	cfg    domain.ScoringConfig
	logger *logrus.Logger
}

// NewEvidenceSelector creates a new evidence selector
func NewEvidenceSelector(kb *knowledge.Base, cfg domain.ScoringConfig, logger *logrus.Logger) *EvidenceSelector {
	return &EvidenceSelector{kb: kb, cfg: cfg, logger: logger}
}

// Select picks diagnostically relevant, not-yet-claimed evidence for one
// diagnosis. The pool is iterated in its given order (similarity-ranked
// upstream). Selected ids are marked into used immediately.
func (s *EvidenceSelector) Select(diagnosis domain.Candidate, pool []domain.EvidenceItem, used map[string]struct{}) []domain.EvidenceItem {
	var selected []domain.EvidenceItem
	perSource := make(map[string]int)
	sources := make(map[string]struct{})

	for _, item := range pool {
		if _, claimed := used[item.ID]; claimed {
			continue
		}

		quality, types := s.assessQuality(item)
		if quality < minQualityScore {
			s.logger.WithFields(logrus.Fields{
				"evidence_id": item.ID,
				"quality":     quality,
			}).Debug("Filtered non-diagnostic evidence chunk")
			continue
		}

		if perSource[item.DatasetTag] >= s.cfg.MaxEvidencePerSource {
			continue
		}
		if _, known := sources[item.DatasetTag]; !known && len(sources) >= s.cfg.MaxEvidenceSources {
			continue
		}

		used[item.ID] = struct{}{}
		perSource[item.DatasetTag]++
		sources[item.DatasetTag] = struct{}{}
		selected = append(selected, item)

		s.logger.WithFields(logrus.Fields{
			"diagnosis":   diagnosis.DiagnosisName,
			"evidence_id": item.ID,
			"dataset":     item.DatasetTag,
			"types":       types,
		}).Debug("Evidence claimed")
	}

	return selected
}

// assessQuality scores a chunk's diagnostic value from keyword presence and
// section metadata. Management-only chunks score below the cutoff.
func (s *EvidenceSelector) assessQuality(item domain.EvidenceItem) (float64, []string) {
	text := strings.ToLower(item.Text)

	var types []string
	for evType, keywords := range s.kb.EvidenceKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				types = append(types, evType)
				break
			}
		}
	}

	section := strings.ToLower(item.Section)
	if strings.Contains(section, "diagnostic") || strings.Contains(section, "evaluation") {
		if !containsString(types, "diagnostic_criteria") {
			types = append(types, "diagnostic_criteria")
		}
	}

	diagnostic := false
	for _, t := range types {
		if containsString(diagnosticTypes, t) {
			diagnostic = true
			break
		}
	}
	if !diagnostic {
		return 0, types
	}

	typeWeights := map[string]float64{
		"diagnostic_criteria": 1.0,
		"typical_symptoms":    0.9,
		"exclusion_features":  0.8,
		"management":          0.3,
	}

	var score float64
	for _, t := range types {
		if w, ok := typeWeights[t]; ok {
			score += w
		} else {
			score += 0.1
		}
	}
	for _, sec := range []string{"diagnostic", "evaluation", "presentation", "clinical"} {
		if strings.Contains(section, sec) {
			score += 0.2
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, types
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
