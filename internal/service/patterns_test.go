package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinical-ddx-server/internal/domain"
)

func TestPatternDetector_Detect(t *testing.T) {
	detector := NewPatternDetector(testLogger())

	tests := []struct {
		name        string
		symptoms    []domain.CanonicalSymptom
		triggers    []string
		wantGI      float64
		wantCardiac float64
	}{
		{
			name: "Burning chest pain favors GI",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain", Quality: "burning"},
			},
			wantGI:      20,
			wantCardiac: -15,
		},
		{
			name: "Crushing chest pain favors cardiac",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain", Quality: "crushing"},
			},
			wantGI:      -10,
			wantCardiac: 15,
		},
		{
			name: "Epigastric location adds GI points",
			symptoms: []domain.CanonicalSymptom{
				{Base: "abdominal pain", Location: "epigastric"},
			},
			wantGI:      10,
			wantCardiac: 0,
		},
		{
			name: "Meal trigger favors GI",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain"},
			},
			triggers:    []string{"worse after eating"},
			wantGI:      15,
			wantCardiac: -10,
		},
		{
			name: "Exertion trigger favors cardiac",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain"},
			},
			triggers:    []string{"brought on by exertion"},
			wantGI:      -5,
			wantCardiac: 15,
		},
		{
			name: "Non-thoracic symptoms are ignored",
			symptoms: []domain.CanonicalSymptom{
				{Base: "headache", Quality: "burning"},
				{Base: "knee pain", Quality: "crushing"},
			},
			wantGI:      0,
			wantCardiac: 0,
		},
		{
			name: "Burning quality on chest pain takes precedence over cardiac quality",
			symptoms: []domain.CanonicalSymptom{
				{Base: "chest pain", Quality: "burning pressure"},
			},
			wantGI:      20,
			wantCardiac: -15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := detector.Detect(tt.symptoms, tt.triggers)
			assert.Equal(t, tt.wantGI, scores[domain.PatternGI], "gi bucket")
			assert.Equal(t, tt.wantCardiac, scores[domain.PatternCardiac], "cardiac bucket")
		})
	}
}

func TestPatternDetector_DetectDoesNotMutateInput(t *testing.T) {
	detector := NewPatternDetector(testLogger())
	symptoms := []domain.CanonicalSymptom{
		{Base: "chest pain", Quality: "burning", Location: "substernal"},
	}

	detector.Detect(symptoms, []string{"after meal"})

	assert.Equal(t, "chest pain", symptoms[0].Base)
	assert.Equal(t, "burning", symptoms[0].Quality)
	assert.Equal(t, "substernal", symptoms[0].Location)
}

func TestBuildCanonicalTerms(t *testing.T) {
	symptoms := []domain.CanonicalSymptom{
		{Base: "Chest Pain", Quality: "burning", Location: "substernal", Radiation: "left arm"},
		{Base: "chest pain"},
		{Base: ""},
	}

	terms := BuildCanonicalTerms(symptoms)

	assert.Equal(t, []string{
		"chest pain",
		"burning chest pain",
		"substernal chest pain",
		"chest pain radiating to left arm",
	}, terms)
}
