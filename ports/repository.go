package ports

import (
	"context"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
)

// Corpus is a persisted, reusable set of generated scenarios
type Corpus struct {
	ID        core.CorpusID       `json:"id"`
	Name      string              `json:"name"`
	Seed      int64               `json:"seed"`
	Scenarios []scenario.Scenario `json:"scenarios"`
	CreatedAt core.Timestamp      `json:"created_at"`
}

// RunRecord is one stored measurement of one evaluator
type RunRecord struct {
	ID         core.RunID              `json:"id"`
	CorpusID   core.CorpusID           `json:"corpus_id"`
	Evaluator  string                  `json:"evaluator"`
	Seed       int64                   `json:"seed"`
	Result     *bond.MeasurementResult `json:"result"`
	StartedAt  core.Timestamp          `json:"started_at"`
	FinishedAt core.Timestamp          `json:"finished_at"`
}

// RunSummary is the listing view of a stored run
type RunSummary struct {
	ID         core.RunID     `json:"id"`
	CorpusID   core.CorpusID  `json:"corpus_id"`
	Evaluator  string         `json:"evaluator"`
	BondIndex  *float64       `json:"bond_index"`
	Tier       string         `json:"tier"`
	FinishedAt core.Timestamp `json:"finished_at"`
}

// CorpusRepository stores generated corpora
type CorpusRepository interface {
	SaveCorpus(ctx context.Context, corpus *Corpus) error
	GetCorpus(ctx context.Context, id core.CorpusID) (*Corpus, error)
}

// RunRepository stores measurement runs
type RunRepository interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}
