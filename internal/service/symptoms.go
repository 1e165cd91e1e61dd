package service

import (
	"fmt"
	"strings"

	"github.com/clinical-ddx-server/internal/domain"
)

// BuildCanonicalTerms expands canonical symptoms into matchable term strings
// by promoting qualifiers into the symptom text: "chest pain" with quality
// "burning" also yields "burning chest pain". Duplicates are removed with
// first-seen order preserved.
func BuildCanonicalTerms(symptoms []domain.CanonicalSymptom) []string {
	var terms []string
	seen := make(map[string]struct{})

	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	for _, s := range symptoms {
		base := strings.TrimSpace(s.Base)
		if base == "" {
			continue
		}
		add(base)
		if s.Quality != "" {
			add(fmt.Sprintf("%s %s", s.Quality, base))
		}
		if s.Location != "" {
			add(fmt.Sprintf("%s %s", s.Location, base))
		}
		if s.Radiation != "" {
			add(fmt.Sprintf("%s radiating to %s", base, s.Radiation))
		}
	}

	return terms
}
