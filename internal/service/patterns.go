package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
)

// Pattern detection constants. Keyword hits increment one bucket and
// decrement the competing bucket.
const (
	giBurningBonus      = 20
	cardiacBurningPen   = 15
	cardiacQualityBonus = 15
	giQualityPen        = 10
	giLocationBonus     = 10
	cardiacLocBonus     = 10
	giTriggerBonus      = 15
	cardiacTriggerPen   = 10
	cardiacTriggerBonus = 15
	giTriggerPen        = 5
)

var (
	cardiacQualities = []string{"pressure", "crushing", "squeezing"}
	giLocations      = []string{"epigastric", "substernal"}
	giTriggerWords   = []string{"meal", "eating", "food", "lying", "bending"}
	cardiacTriggers  = []string{"exertion", "exercise", "stress", "activity"}
)

// PatternDetector scans canonical symptoms once per request for opposing
// clinical interpretations of ambiguous symptom quality. The result is shared
// read-only by every scorer; it is never recomputed per candidate.
type PatternDetector struct {
	logger *logrus.Logger
}

// NewPatternDetector creates a new pattern detector
func NewPatternDetector(logger *logrus.Logger) *PatternDetector {
	return &PatternDetector{logger: logger}
}

// Detect computes the GI and cardiac pattern scores for a request
func (d *PatternDetector) Detect(symptoms []domain.CanonicalSymptom, triggers []string) domain.PatternScores {
	var gi, cardiac float64

	for _, s := range symptoms {
		base := strings.ToLower(s.Base)
		quality := strings.ToLower(s.Quality)
		location := strings.ToLower(s.Location)

		if !strings.Contains(base, "chest") && !strings.Contains(base, "abdominal") &&
			!strings.Contains(base, "epigastric") {
			continue
		}

		if strings.Contains(quality, "burning") {
			gi += giBurningBonus
			cardiac -= cardiacBurningPen
		} else if containsAnyTerm(quality, cardiacQualities) {
			cardiac += cardiacQualityBonus
			gi -= giQualityPen
		}

		if containsAnyTerm(location, giLocations) {
			gi += giLocationBonus
		}
		if strings.Contains(location, "central") || strings.Contains(location, "left") {
			cardiac += cardiacLocBonus
		}
	}

	triggerText := strings.ToLower(strings.Join(triggers, " "))
	if containsAnyTerm(triggerText, giTriggerWords) {
		gi += giTriggerBonus
		cardiac -= cardiacTriggerPen
	}
	if containsAnyTerm(triggerText, cardiacTriggers) {
		cardiac += cardiacTriggerBonus
		gi -= giTriggerPen
	}

	scores := domain.PatternScores{
		domain.PatternGI:      gi,
		domain.PatternCardiac: cardiac,
	}

	d.logger.WithFields(logrus.Fields{
		"gi":      gi,
		"cardiac": cardiac,
	}).Debug("Pattern detection complete")

	return scores
}

func containsAnyTerm(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
