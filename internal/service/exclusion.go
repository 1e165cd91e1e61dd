package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

const (
	pediatricAgeLimit = 18
	normalTroponinMax = 0.04
)

// ExclusionFilter removes candidates that are demographically impossible or
// directly contradicted by negated symptoms or normal lab values.
type ExclusionFilter struct {
	kb     *knowledge.Base
	logger *logrus.Logger
}

// NewExclusionFilter creates a new exclusion filter
func NewExclusionFilter(kb *knowledge.Base, logger *logrus.Logger) *ExclusionFilter {
	return &ExclusionFilter{kb: kb, logger: logger}
}

// Exclusion records why a candidate was removed before ranking
type Exclusion struct {
	DiagnosisName string `json:"diagnosis_name"`
	Reason        string `json:"reason"`
}

// Filter returns the candidates that survive demographic, negation, and lab
// checks, plus a record of each exclusion.
func (f *ExclusionFilter) Filter(candidates []domain.Candidate, patient domain.PatientData, negations []string) ([]domain.Candidate, []Exclusion) {
	kept := make([]domain.Candidate, 0, len(candidates))
	var excluded []Exclusion

	for _, c := range candidates {
		if reason, ok := f.exclusionReason(c, patient, negations); ok {
			excluded = append(excluded, Exclusion{DiagnosisName: c.DiagnosisName, Reason: reason})
			f.logger.WithFields(logrus.Fields{
				"diagnosis": c.DiagnosisName,
				"reason":    reason,
			}).Debug("Candidate excluded")
			continue
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

func (f *ExclusionFilter) exclusionReason(c domain.Candidate, patient domain.PatientData, negations []string) (string, bool) {
	dxLower := strings.ToLower(c.DiagnosisName)

	switch strings.ToLower(patient.Sex) {
	case "male", "m":
		if containsAnyTerm(dxLower, f.kb.FemaleExclusive) {
			return "sex-incompatible diagnosis for male patient", true
		}
	case "female", "f":
		if containsAnyTerm(dxLower, f.kb.MaleExclusive) {
			return "sex-incompatible diagnosis for female patient", true
		}
	}

	if patient.Age != nil {
		if *patient.Age < pediatricAgeLimit && containsAnyTerm(dxLower, f.kb.AdultOnly) {
			return fmt.Sprintf("adult-onset diagnosis for age %d", *patient.Age), true
		}
		if *patient.Age >= pediatricAgeLimit && containsAnyTerm(dxLower, f.kb.PediatricOnly) {
			return fmt.Sprintf("pediatric diagnosis for age %d", *patient.Age), true
		}
	}

	// A negated finding that names the diagnosis itself is a direct contradiction
	for _, neg := range negations {
		negLower := strings.ToLower(strings.TrimSpace(neg))
		if negLower != "" && strings.Contains(dxLower, negLower) {
			return fmt.Sprintf("negated finding %q contradicts diagnosis", neg), true
		}
	}

	// Normal troponin rules out acute MI
	if troponin, ok := labValue(patient.Labs, "troponin"); ok && troponin <= normalTroponinMax {
		if containsAnyTerm(dxLower, []string{"myocardial infarction", "acute mi"}) {
			return "normal troponin rules out acute myocardial infarction", true
		}
	}

	return "", false
}
