package service

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testKnowledgeBase() *knowledge.Base {
	return &knowledge.Base{
		WeightedDiseases: map[string][]string{
			"GERD":                    {"chest pain", "burning chest pain", "heartburn", "regurgitation", "sour taste"},
			"Acute Coronary Syndrome": {"chest pain", "pressure chest pain", "diaphoresis", "nausea", "chest pain radiating to left arm", "shortness of breath"},
			"Costochondritis":         {"chest pain", "chest wall tenderness"},
		},
		OverlapDiseases: map[string][]string{
			"Esophagitis":        {"chest pain", "heartburn", "odynophagia", "dysphagia", "regurgitation"},
			"Pulmonary Embolism": {"chest pain", "shortness of breath", "hemoptysis", "leg swelling", "tachycardia"},
		},
		GIDiseaseTerms:      []string{"gerd", "reflux", "esophag", "gastro", "peptic", "ulcer"},
		CardiacDiseaseTerms: []string{"cardiac", "heart", "coronary", "infarction", "angina"},
		CardiacNegations:    []string{"diaphoresis", "sweating", "radiation", "shortness of breath", "nausea"},
		GINegations:         []string{"heartburn", "regurgitation", "sour taste", "belching"},
		DangerPriors: map[string]float64{
			"Acute Coronary Syndrome": 9.5,
			"Aortic Dissection":       10.0,
			"Pulmonary Embolism":      9.0,
			"GERD":                    2.0,
			"Costochondritis":         1.0,
			"_default":                4.0,
		},
		EvidenceKeywords: map[string][]string{
			"diagnostic_criteria": {"diagnosis requires", "diagnostic criteria", "confirmed by"},
			"typical_symptoms":    {"typically presents", "classic presentation", "characterized by"},
			"exclusion_features":  {"rules out", "excludes", "argues against"},
			"management":          {"treatment", "therapy", "management"},
		},
		MaleExclusive:   []string{"prostate", "testicular"},
		FemaleExclusive: []string{"pregnancy", "ovarian", "ectopic"},
		AdultOnly:       []string{"atherosclerosis"},
		PediatricOnly:   []string{"kawasaki"},
	}
}

func chestPainSymptoms() []domain.CanonicalSymptom {
	return []domain.CanonicalSymptom{
		{Base: "chest pain", Quality: "burning"},
		{Base: "heartburn"},
	}
}

func intPtr(v int) *int { return &v }

func candidateNames(candidates []domain.Candidate) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.DiagnosisName)
	}
	return names
}

// tiedDiseaseTable builds a table of diseases that all match the same single
// symptom and therefore all score identically. Any instability in evaluation
// order surfaces as reordered ties.
func tiedDiseaseTable(symptom string) map[string][]string {
	return map[string][]string{
		"Alpha":   {symptom},
		"Bravo":   {symptom},
		"Charlie": {symptom},
		"Delta":   {symptom},
		"Echo":    {symptom},
		"Foxtrot": {symptom},
	}
}
