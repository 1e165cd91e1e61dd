package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

// Danger-prior fallback weights and cutoffs
const (
	dangerWeight       = 0.5
	severityWeight     = 0.3
	missingDataWeight  = 0.2
	criticalCutoff     = 7
	warningCutoff      = 4
	severityCap        = 10
	missingPenaltyCap  = 5
	missingVitalPoints = 0.5
	missingTroponinPen = 2
)

// RiskClassifier maps a diagnosis plus structured patient data to a
// validated-rule risk score and 3-tier category. Confidence never reduces
// computed risk: a low-confidence but high-danger diagnosis must not be
// down-ranked to low risk.
type RiskClassifier struct {
	kb     *knowledge.Base
	logger *logrus.Logger
}

// NewRiskClassifier creates a new risk classifier
func NewRiskClassifier(kb *knowledge.Base, logger *logrus.Logger) *RiskClassifier {
	return &RiskClassifier{kb: kb, logger: logger}
}

// Classify dispatches by diagnosis-name keyword to a validated scoring rule,
// falling back to the danger-prior heuristic.
func (r *RiskClassifier) Classify(diagnosis string, patient domain.PatientData, symptoms []string, confidence float64) domain.RiskAssessment {
	dxUpper := strings.ToUpper(diagnosis)

	switch {
	case containsAnyTerm(dxUpper, []string{"ACUTE CORONARY", "MYOCARDIAL INFARCTION", "ACS", "CHEST PAIN"}):
		return r.heartScore(patient, symptoms)
	case containsAnyTerm(dxUpper, []string{"PULMONARY EMBOLISM", "PE "}) || dxUpper == "PE":
		return r.wellsPEScore(patient, symptoms, confidence)
	case containsAnyTerm(dxUpper, []string{"DVT", "DEEP VEIN THROMBOSIS"}):
		return r.wellsDVTScore(patient, symptoms)
	default:
		return r.dangerPriorFallback(diagnosis, patient, symptoms)
	}
}

// heartScore implements the HEART score for chest pain (0-10):
// History, ECG, Age, Risk factors, Troponin.
func (r *RiskClassifier) heartScore(patient domain.PatientData, symptoms []string) domain.RiskAssessment {
	score := 0.0
	components := make(map[string]float64)
	symptomText := strings.ToLower(strings.Join(symptoms, " "))

	// History (0-2)
	if containsAnyTerm(symptomText, []string{"chest pain", "pressure", "tightness"}) {
		if containsAnyTerm(symptomText, []string{"radiation", "radiating", "diaphoresis", "nausea"}) {
			components["History"] = 2
		} else {
			components["History"] = 1
		}
	} else {
		components["History"] = 0
	}
	score += components["History"]

	// Age (0-2)
	if patient.Age != nil {
		switch {
		case *patient.Age >= 65:
			components["Age"] = 2
		case *patient.Age >= 45:
			components["Age"] = 1
		default:
			components["Age"] = 0
		}
		score += components["Age"]
	}

	// Risk factors (0-2)
	history := strings.ToLower(strings.Join(patient.History, " "))
	riskFactors := 0
	if strings.Contains(history, "hypertension") || strings.Contains(history, "htn") {
		riskFactors++
	}
	if strings.Contains(history, "diabetes") || strings.Contains(history, "dm") {
		riskFactors++
	}
	if strings.Contains(history, "smoking") || strings.Contains(history, "smoker") {
		riskFactors++
	}
	switch {
	case riskFactors >= 3:
		components["RiskFactors"] = 2
	case riskFactors >= 1:
		components["RiskFactors"] = 1
	default:
		components["RiskFactors"] = 0
	}
	score += components["RiskFactors"]

	// ECG (0-2): defaults to 1 without ECG data
	components["ECG"] = 1
	score += 1

	// Troponin (0-2): unknown counts as 1
	if troponin, ok := labValue(patient.Labs, "troponin"); ok {
		switch {
		case troponin > 0.1:
			components["Troponin"] = 2
		case troponin > 0:
			components["Troponin"] = 1
		default:
			components["Troponin"] = 0
		}
	} else {
		components["Troponin"] = 1
	}
	score += components["Troponin"]

	level, interpretation := tierFromScore(score, criticalCutoff, warningCutoff,
		"High risk for MACE (Major Adverse Cardiac Event)",
		"Moderate risk - further testing recommended",
		"Low risk for MACE")

	return domain.RiskAssessment{
		Score:          score,
		Level:          level,
		CalculatorUsed: "HEART Score",
		Components:     components,
		Interpretation: interpretation,
	}
}

// wellsPEScore implements the Wells score for pulmonary embolism
func (r *RiskClassifier) wellsPEScore(patient domain.PatientData, symptoms []string, confidence float64) domain.RiskAssessment {
	score := 0.0
	components := make(map[string]float64)

	symptomText := strings.ToLower(strings.Join(symptoms, " "))
	exam := strings.ToLower(strings.Join(patient.PhysicalExam, " "))
	history := strings.ToLower(strings.Join(patient.History, " "))

	if containsAnyTerm(exam, []string{"leg swelling", "calf tenderness", "edema"}) {
		components["DVT_signs"] = 3
		score += 3
	}
	if confidence > 0.7 {
		components["PE_most_likely"] = 3
		score += 3
	}
	if hr, ok := vitalValue(patient.Vitals, "HR", "heart_rate"); ok && hr > 100 {
		components["Tachycardia"] = 1.5
		score += 1.5
	}
	if strings.Contains(history, "surgery") || strings.Contains(history, "immobilization") {
		components["Immobilization"] = 1.5
		score += 1.5
	}
	if strings.Contains(history, "pulmonary embolism") || strings.Contains(history, "dvt") {
		components["Prior_PE_DVT"] = 1.5
		score += 1.5
	}
	if containsAnyTerm(symptomText, []string{"hemoptysis", "coughing blood"}) {
		components["Hemoptysis"] = 1
		score++
	}
	if strings.Contains(history, "cancer") || strings.Contains(history, "malignancy") {
		components["Malignancy"] = 1
		score++
	}

	var level domain.RiskLevel
	var interpretation string
	switch {
	case score > 6:
		level = domain.RiskCritical
		interpretation = "High probability of PE"
	case score >= 2:
		level = domain.RiskWarning
		interpretation = "Moderate probability - imaging recommended"
	default:
		level = domain.RiskLow
		interpretation = "Low probability of PE"
	}

	return domain.RiskAssessment{
		Score:          score,
		Level:          level,
		CalculatorUsed: "Wells PE Score",
		Components:     components,
		Interpretation: interpretation,
	}
}

// wellsDVTScore covers DVT via the danger-prior path; a dedicated Wells DVT
// point system is a candidate followup once lower-extremity exam extraction
// lands.
func (r *RiskClassifier) wellsDVTScore(patient domain.PatientData, symptoms []string) domain.RiskAssessment {
	assessment := r.dangerPriorFallback("Deep Vein Thrombosis", patient, symptoms)
	assessment.CalculatorUsed = "Wells DVT (danger-prior fallback)"
	return assessment
}

// dangerPriorFallback combines the static danger-if-missed prior with current
// acuity and a conservative missing-data penalty.
func (r *RiskClassifier) dangerPriorFallback(diagnosis string, patient domain.PatientData, symptoms []string) domain.RiskAssessment {
	danger := r.kb.DangerPrior(diagnosis)
	severity := symptomSeverity(patient, symptoms)
	missingPenalty := missingDataPenalty(patient, symptoms)

	score := danger*dangerWeight + severity*severityWeight + missingPenalty*missingDataWeight

	level, interpretation := tierFromScore(score, criticalCutoff, warningCutoff,
		"High danger if missed - urgent evaluation",
		"Moderate concern - timely workup recommended",
		"Low acute risk")

	r.logger.WithFields(logrus.Fields{
		"diagnosis": diagnosis,
		"danger":    danger,
		"severity":  severity,
		"missing":   missingPenalty,
		"score":     score,
	}).Debug("Danger-prior risk computed")

	return domain.RiskAssessment{
		Score:          score,
		Level:          level,
		CalculatorUsed: "Danger Prior",
		Components: map[string]float64{
			"danger_if_missed":     danger,
			"symptom_severity":     severity,
			"missing_data_penalty": missingPenalty,
		},
		Interpretation: interpretation,
	}
}

// symptomSeverity estimates current acuity from vitals and mental status (0-10)
func symptomSeverity(patient domain.PatientData, symptoms []string) float64 {
	severity := 0.0
	if spo2, ok := vitalValue(patient.Vitals, "SpO2", "spo2"); ok && spo2 < 90 {
		severity += 3
	}
	if hr, ok := vitalValue(patient.Vitals, "HR", "heart_rate"); ok && hr > 120 {
		severity += 2
	}
	if sbp, ok := vitalValue(patient.Vitals, "BP_systolic", "sbp"); ok && sbp < 90 {
		severity += 3
	}
	symptomText := strings.ToLower(strings.Join(symptoms, " "))
	if containsAnyTerm(symptomText, []string{"confusion", "altered", "unresponsive", "lethargic"}) {
		severity += 4
	}
	if severity > severityCap {
		severity = severityCap
	}
	return severity
}

// missingDataPenalty is conservative: missing data assumes worse (0-5)
func missingDataPenalty(patient domain.PatientData, symptoms []string) float64 {
	penalty := 0.0
	for _, v := range []string{"HR", "BP_systolic", "RR", "Temp", "SpO2"} {
		if _, ok := vitalValue(patient.Vitals, v, strings.ToLower(v)); !ok {
			penalty += missingVitalPoints
		}
	}

	symptomText := strings.ToLower(strings.Join(symptoms, " "))
	if strings.Contains(symptomText, "chest pain") {
		if _, ok := labValue(patient.Labs, "troponin"); !ok {
			penalty += missingTroponinPen
		}
	}
	if penalty > missingPenaltyCap {
		penalty = missingPenaltyCap
	}
	return penalty
}

func tierFromScore(score float64, critical, warning float64, critMsg, warnMsg, lowMsg string) (domain.RiskLevel, string) {
	switch {
	case score >= critical:
		return domain.RiskCritical, critMsg
	case score >= warning:
		return domain.RiskWarning, warnMsg
	default:
		return domain.RiskLow, lowMsg
	}
}

func vitalValue(vitals map[string]float64, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := vitals[k]; ok {
			return v, true
		}
	}
	return 0, false
}

func labValue(labs map[string]float64, key string) (float64, bool) {
	for k, v := range labs {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return 0, false
}
