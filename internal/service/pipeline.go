package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
)

const evidenceRetrievalLimit = 10

// Pipeline orchestrates the full differential-diagnosis flow: pattern
// detection, parallel scoring, merge and dedup, exclusion, evidence
// selection and grading, uncertainty, risk, and final ranking.
type Pipeline struct {
	kb         *knowledge.Base
	cfg        domain.ScoringConfig
	detector   *PatternDetector
	scorers    []domain.CandidateScorer
	merger     *Merger
	exclusion  *ExclusionFilter
	selector   *EvidenceSelector
	grader     *EvidenceGrader
	confidence *ConfidenceEngine
	risk       *RiskClassifier
	retriever  domain.EvidenceRetriever
	logger     *logrus.Logger
}

// NewPipeline wires the full scoring pipeline from a loaded knowledge base.
// The retriever may be nil, in which case every diagnosis runs with zero
// evidence and the confidence engine degrades accordingly.
func NewPipeline(kb *knowledge.Base, cfg domain.ScoringConfig, retriever domain.EvidenceRetriever, logger *logrus.Logger) *Pipeline {
	grader := NewEvidenceGrader(logger)
	return &Pipeline{
		kb:       kb,
		cfg:      cfg,
		detector: NewPatternDetector(logger),
		scorers: []domain.CandidateScorer{
			NewWeightedScorer(kb, cfg, logger),
			NewOverlapScorer(kb, cfg, logger),
		},
		merger:     NewMerger(cfg, SourceWeighted, logger),
		exclusion:  NewExclusionFilter(kb, logger),
		selector:   NewEvidenceSelector(kb, cfg, logger),
		grader:     grader,
		confidence: NewConfidenceEngine(grader, logger),
		risk:       NewRiskClassifier(kb, logger),
		retriever:  retriever,
		logger:     logger,
	}
}

// Diagnose runs the full pipeline for one request. Cancellation via ctx
// discards all partial work and returns an error; a result is only ever
// complete or absent.
func (p *Pipeline) Diagnose(ctx context.Context, req *domain.DiagnoseRequest) (*domain.DiagnoseResult, error) {
	start := time.Now()

	result := &domain.DiagnoseResult{
		RequestID: req.RequestID,
		Diagnoses: []domain.FinalDiagnosis{},
		Timestamp: start.UTC(),
	}

	if len(req.Symptoms) == 0 {
		result.State = domain.StateNoDiagnoses
		result.ProcessingTime = time.Since(start)
		p.logger.WithField("request_id", req.RequestID).Info("No symptoms provided, returning empty differential")
		return result, nil
	}

	terms := BuildCanonicalTerms(req.Symptoms)
	patterns := p.detector.Detect(req.Symptoms, req.Patient.Triggers)

	scored := make([]domain.ScorerResult, len(p.scorers))
	var wg sync.WaitGroup
	for i, scorer := range p.scorers {
		wg.Add(1)
		go func(i int, scorer domain.CandidateScorer) {
			defer wg.Done()
			scored[i] = scorer.Score(req.Symptoms, req.Negations, patterns)
		}(i, scorer)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.ErrCancelled, "request cancelled during scoring", err.Error(), req.RequestID)
	}

	structuredMatches := 0
	lists := make([][]domain.Candidate, 0, len(scored))
	for _, sr := range scored {
		result.Abstentions += sr.Abstained
		structuredMatches += len(sr.Candidates)
		kept, excluded := p.exclusion.Filter(sr.Candidates, req.Patient, req.Negations)
		for _, ex := range excluded {
			result.Excluded = append(result.Excluded, fmt.Sprintf("%s: %s", ex.DiagnosisName, ex.Reason))
		}
		lists = append(lists, kept)
	}

	merged := p.merger.Merge(lists)
	result.Duplicates = merged.Duplicates

	candidates := merged.Candidates
	state := domain.StateNoDiagnoses
	if structuredMatches > 0 {
		// A structured table matched; exclusion and merge decide whether
		// the match survives into the validated differential.
		state = domain.StateStructuredMatch
		p.logger.WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"matches":    structuredMatches,
			"surviving":  len(candidates),
		}).Debug("Structured match, validating")
	}
	switch {
	case len(candidates) > 0:
		state = domain.StateValidated
	case len(req.FallbackCandidates) > 0:
		candidates = normalizeFallbacks(req.FallbackCandidates)
		state = domain.StateLLMFallback
		p.logger.WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"candidates": len(candidates),
		}).Warn("Structured scorers empty, using language-model fallback candidates")
	default:
		candidates = []domain.Candidate{minimalFallbackCandidate(req.Symptoms)}
		state = domain.StateMinimalFallback
		p.logger.WithField("request_id", req.RequestID).Warn("No candidates from any source, emitting minimal fallback")
	}
	result.State = state

	usedEvidence := make(map[string]struct{})
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewPipelineError(domain.ErrCancelled, "request cancelled during enrichment", err.Error(), req.RequestID)
		}

		evidence := p.retrieveEvidence(ctx, c, usedEvidence)
		graded := p.grader.GradeAll(c.DiagnosisName, evidence, terms)
		conf := p.confidence.Assess(c, graded, req.Patient)

		plausibility := ClassifyPlausibility(c, graded)
		if state == domain.StateLLMFallback && plausibility != domain.PlausibilityUnlikely {
			// Fallback candidates never claim more than POSSIBLE
			plausibility = domain.PlausibilityPossible
		}

		result.Diagnoses = append(result.Diagnoses, domain.FinalDiagnosis{
			Candidate:    c,
			Evidence:     evidence,
			Confidence:   conf,
			Risk:         p.risk.Classify(c.DiagnosisName, req.Patient, terms, conf.Belief),
			Plausibility: plausibility,
			Support:      ClassifyEvidenceSupport(graded),
		})
	}

	RankDiagnoses(result.Diagnoses)
	result.UniqueEvidence = len(usedEvidence)
	result.ProcessingTime = time.Since(start)

	p.logger.WithFields(logrus.Fields{
		"request_id":  req.RequestID,
		"state":       result.State,
		"diagnoses":   len(result.Diagnoses),
		"duplicates":  result.Duplicates,
		"abstentions": result.Abstentions,
		"excluded":    len(result.Excluded),
		"duration_ms": result.ProcessingTime.Milliseconds(),
	}).Info("Differential diagnosis complete")

	return result, nil
}

// retrieveEvidence fetches and selects evidence for one candidate. Retrieval
// failure degrades to zero evidence rather than failing the request.
func (p *Pipeline) retrieveEvidence(ctx context.Context, c domain.Candidate, used map[string]struct{}) []domain.EvidenceItem {
	if p.retriever == nil {
		return nil
	}
	pool, err := p.retriever.Search(ctx, c.DiagnosisName, evidenceRetrievalLimit)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"diagnosis": c.DiagnosisName,
			"error":     err.Error(),
		}).Warn("Evidence retrieval failed, continuing without evidence")
		return nil
	}
	return p.selector.Select(c, pool, used)
}

// normalizeFallbacks stamps fallback candidates with LLM provenance and keeps
// them in a deterministic order.
func normalizeFallbacks(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].SourceID = "llm"
		out[i].Provenance = domain.Provenance{Source: domain.SourceLLM, LLMUsed: true}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawScore > out[j].RawScore
	})
	return out
}

// minimalFallbackCandidate is the deterministic last-resort answer when no
// source produced anything.
func minimalFallbackCandidate(symptoms []domain.CanonicalSymptom) domain.Candidate {
	bases := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		bases = append(bases, s.Base)
	}
	return domain.Candidate{
		DiagnosisName:   "Undifferentiated presentation - insufficient data",
		SourceID:        "fallback",
		RawScore:        0,
		MatchedSymptoms: bases,
		Provenance:      domain.Provenance{Source: domain.SourceLLM},
	}
}
