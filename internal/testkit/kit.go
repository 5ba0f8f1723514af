// Package testkit provides fixtures, toy evaluators and in-memory repositories for tests.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/generator"
	"bondfuzz/ports"
)

// Opt builds an option with no urgency and no constraint violation
func Opt(id, label string, harm, benefit float64) scenario.Option {
	return scenario.Option{ID: id, Label: label, Harm: harm, Benefit: benefit}
}

// TwoOptions returns the A/B fixture: a clearly good option listed second
func TwoOptions() scenario.Scenario {
	return scenario.New("ab", "A patient needs a decision",
		Opt("a", "Wait and observe", 0.6, 0.3),
		Opt("b", "Treat immediately", 0.1, 0.9),
	)
}

// Corpus generates a deterministic corpus and panics if generation fails
func Corpus(n int, seed int64) []scenario.Scenario {
	scenarios, err := generator.Generate(generator.Config{N: n, Seed: seed})
	if err != nil {
		panic(fmt.Sprintf("testkit: generate corpus: %v", err))
	}
	return scenarios
}

// FirstOption always picks the first listed option, the most order-sensitive behaviour possible
func FirstOption() ports.Evaluator {
	return ports.EvaluatorFunc{ID: "first_option", Fn: func(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		return scenario.EvaluationResult{Selection: s.Options[0].ID, Confidence: 1}, nil
	}}
}

// BestOption picks the canonical option with the best benefit-harm margin and reports its
// canonical label, so no representation-only change can move its decision
func BestOption() ports.Evaluator {
	return ports.EvaluatorFunc{ID: "best_option", Fn: func(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		c := canon.Canonicalize(s)
		best := c.Options[0]
		for _, o := range c.Options[1:] {
			if o.Benefit-o.Harm > best.Benefit-best.Harm+1e-12 {
				best = o
			}
		}
		return scenario.EvaluationResult{Selection: best.Label, Confidence: 1}, nil
	}}
}

// Failing returns an evaluator that fails permanently on every call
func Failing() ports.Evaluator {
	return ports.EvaluatorFunc{ID: "failing", Fn: func(context.Context, scenario.Scenario) (scenario.EvaluationResult, error) {
		return scenario.EvaluationResult{}, core.NewExternalError("failing", false, errors.New("backend unavailable"))
	}}
}

// Flaky wraps ev so that every scenario whose surface hash falls in one of every k buckets
// fails permanently. The failure set depends only on content, never on call order.
func Flaky(ev ports.Evaluator, k int) ports.Evaluator {
	return ports.EvaluatorFunc{ID: ev.Name(), Fn: func(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		if core.StableSeed(string(canon.SurfaceHash(s)))%uint64(k) == 0 {
			return scenario.EvaluationResult{}, core.NewExternalError(ev.Name(), false, errors.New("flaky backend"))
		}
		return ev.Evaluate(ctx, s)
	}}
}

// Counting counts the calls that reach the wrapped evaluator
type Counting struct {
	ports.Evaluator
	calls atomic.Int64
}

// NewCounting wraps ev
func NewCounting(ev ports.Evaluator) *Counting {
	return &Counting{Evaluator: ev}
}

func (c *Counting) Evaluate(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	c.calls.Add(1)
	return c.Evaluator.Evaluate(ctx, s)
}

// Calls returns the number of evaluations so far
func (c *Counting) Calls() int64 {
	return c.calls.Load()
}

// InMemoryStore implements the corpus and run repositories with in-memory storage
type InMemoryStore struct {
	corpora map[core.CorpusID]ports.Corpus
	runs    map[core.RunID]ports.RunRecord
	mu      sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		corpora: make(map[core.CorpusID]ports.Corpus),
		runs:    make(map[core.RunID]ports.RunRecord),
	}
}

func (s *InMemoryStore) SaveCorpus(ctx context.Context, corpus *ports.Corpus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpora[corpus.ID] = *corpus
	return nil
}

func (s *InMemoryStore) GetCorpus(ctx context.Context, id core.CorpusID) (*ports.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus, exists := s.corpora[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrCorpusNotFound, id)
	}
	return &corpus, nil
}

func (s *InMemoryStore) SaveRun(ctx context.Context, run *ports.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return &run, nil
}

// ListRuns returns the newest runs first
func (s *InMemoryStore) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ports.RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		summary := ports.RunSummary{
			ID:         run.ID,
			CorpusID:   run.CorpusID,
			Evaluator:  run.Evaluator,
			FinishedAt: run.FinishedAt,
		}
		if run.Result != nil {
			summary.BondIndex = run.Result.BondIndex
			summary.Tier = string(run.Result.Tier)
		}
		results = append(results, summary)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].FinishedAt.Time().Equal(results[j].FinishedAt.Time()) {
			return results[j].FinishedAt.Before(results[i].FinishedAt)
		}
		return results[i].ID > results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
