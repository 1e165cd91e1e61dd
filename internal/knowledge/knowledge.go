// Package knowledge loads the clinical knowledge base used by the scoring
// pipeline: disease-symptom tables, pattern family terms, negation
// categories, danger priors and evidence quality keywords.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
)

// Base holds the loaded knowledge tables. All fields are immutable after Load.
type Base struct {
	// WeightedDiseases maps disease name to its known symptom set for the
	// point-based scorer.
	WeightedDiseases map[string][]string

	// OverlapDiseases maps disease name to its evidence set for the
	// proportional-overlap scorer.
	OverlapDiseases map[string][]string

	// Disease family keyword lists, matched against disease names.
	GIDiseaseTerms      []string
	CardiacDiseaseTerms []string

	// Negation categories matched against patient-denied findings.
	CardiacNegations []string
	GINegations      []string

	// DangerPriors maps disease name to a 0-10 danger-if-missed score.
	// The "_default" key supplies the fallback prior.
	DangerPriors map[string]float64

	// EvidenceKeywords maps evidence type (diagnostic_criteria,
	// typical_symptoms, exclusion_features, management) to keyword lists.
	EvidenceKeywords map[string][]string

	// Demographic exclusion lists.
	MaleExclusive   []string
	FemaleExclusive []string
	AdultOnly       []string
	PediatricOnly   []string
}

// rawBase mirrors the JSON file layout
type rawBase struct {
	WeightedDiseases    map[string][]string `json:"weighted_diseases"`
	OverlapDiseases     map[string][]string `json:"overlap_diseases"`
	GIDiseaseTerms      []string            `json:"gi_disease_terms"`
	CardiacDiseaseTerms []string            `json:"cardiac_disease_terms"`
	CardiacNegations    []string            `json:"cardiac_negations"`
	GINegations         []string            `json:"gi_negations"`
	DangerPriors        map[string]float64  `json:"danger_priors"`
	EvidenceKeywords    map[string][]string `json:"evidence_keywords"`
	MaleExclusive       []string            `json:"male_exclusive"`
	FemaleExclusive     []string            `json:"female_exclusive"`
	AdultOnly           []string            `json:"adult_only"`
	PediatricOnly       []string            `json:"pediatric_only"`
}

// Load reads and validates the knowledge base from a JSON file.
// A missing or unreadable file is fatal. A single disease with an empty or
// missing symptom set is skipped with a warning, not fatal.
func Load(path string, logger *logrus.Logger) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrKnowledgeLoad,
			fmt.Sprintf("failed to read knowledge base at %s", path), err.Error(), "")
	}

	var raw rawBase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewPipelineError(domain.ErrKnowledgeLoad,
			"failed to parse knowledge base", err.Error(), "")
	}

	base := &Base{
		WeightedDiseases:    sanitizeDiseaseTable(raw.WeightedDiseases, "weighted", logger),
		OverlapDiseases:     sanitizeDiseaseTable(raw.OverlapDiseases, "overlap", logger),
		GIDiseaseTerms:      lowerAll(raw.GIDiseaseTerms),
		CardiacDiseaseTerms: lowerAll(raw.CardiacDiseaseTerms),
		CardiacNegations:    lowerAll(raw.CardiacNegations),
		GINegations:         lowerAll(raw.GINegations),
		DangerPriors:        raw.DangerPriors,
		EvidenceKeywords:    raw.EvidenceKeywords,
		MaleExclusive:       lowerAll(raw.MaleExclusive),
		FemaleExclusive:     lowerAll(raw.FemaleExclusive),
		AdultOnly:           lowerAll(raw.AdultOnly),
		PediatricOnly:       lowerAll(raw.PediatricOnly),
	}

	if len(base.WeightedDiseases) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKnowledgeLoad,
			"weighted disease table is empty", path, "")
	}
	if len(base.OverlapDiseases) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKnowledgeLoad,
			"overlap disease table is empty", path, "")
	}
	if base.DangerPriors == nil {
		base.DangerPriors = map[string]float64{"_default": 4.0}
	}
	if _, ok := base.DangerPriors["_default"]; !ok {
		base.DangerPriors["_default"] = 4.0
	}

	logger.WithFields(logrus.Fields{
		"path":              path,
		"weighted_diseases": len(base.WeightedDiseases),
		"overlap_diseases":  len(base.OverlapDiseases),
		"danger_priors":     len(base.DangerPriors),
	}).Info("Knowledge base loaded")

	return base, nil
}

// sanitizeDiseaseTable drops malformed disease entries, keeping the rest
func sanitizeDiseaseTable(table map[string][]string, name string, logger *logrus.Logger) map[string][]string {
	out := make(map[string][]string, len(table))
	for disease, symptoms := range table {
		cleaned := make([]string, 0, len(symptoms))
		for _, s := range symptoms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if strings.TrimSpace(disease) == "" || len(cleaned) == 0 {
			logger.WithFields(logrus.Fields{
				"table":   name,
				"disease": disease,
			}).Warn("Skipping malformed disease entry")
			continue
		}
		out[disease] = cleaned
	}
	return out
}

// DangerPrior returns the danger-if-missed score for a diagnosis,
// falling back to partial name matches and then the default prior.
// When several priors partially match, the longest known name wins,
// with ties broken alphabetically, so the result never depends on
// map iteration order.
func (b *Base) DangerPrior(diagnosis string) float64 {
	if score, ok := b.DangerPriors[diagnosis]; ok {
		return score
	}
	dxLower := strings.ToLower(diagnosis)

	bestName := ""
	bestScore := b.DangerPriors["_default"]
	for known, score := range b.DangerPriors {
		if strings.HasPrefix(known, "_") {
			continue
		}
		knownLower := strings.ToLower(known)
		if !strings.Contains(dxLower, knownLower) && !strings.Contains(knownLower, dxLower) {
			continue
		}
		if len(knownLower) > len(bestName) || (len(knownLower) == len(bestName) && knownLower < bestName) {
			bestName = knownLower
			bestScore = score
		}
	}
	return bestScore
}

// IsGIDisease reports whether the disease name belongs to the GI family
func (b *Base) IsGIDisease(name string) bool {
	return containsAny(strings.ToLower(name), b.GIDiseaseTerms)
}

// IsCardiacDisease reports whether the disease name belongs to the cardiac family
func (b *Base) IsCardiacDisease(name string) bool {
	return containsAny(strings.ToLower(name), b.CardiacDiseaseTerms)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lowerAll(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		x = strings.ToLower(strings.TrimSpace(x))
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
