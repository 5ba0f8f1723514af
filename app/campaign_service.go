package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"bondfuzz/adapters/excel"
	"bondfuzz/adapters/report"
	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/internal"
	"bondfuzz/internal/calibration"
	"bondfuzz/internal/errors"
	"bondfuzz/internal/generator"
	"bondfuzz/internal/measure"
	"bondfuzz/ports"
)

// CampaignService generates corpora, measures evaluators against them and persists the results
type CampaignService struct {
	engine  *measure.Engine
	corpora ports.CorpusRepository
	runs    ports.RunRepository
	logger  *internal.Logger
}

// CampaignRun is the envelope around one campaign: every evaluator measured over one corpus
// with one engine configuration
type CampaignRun struct {
	ID         core.RunID                `json:"id"`
	CorpusID   core.CorpusID             `json:"corpus_id"`
	Seed       int64                     `json:"seed"`
	CorpusSize int                       `json:"corpus_size"`
	Config     measure.Config            `json:"config"`
	StartedAt  core.Timestamp            `json:"started_at"`
	FinishedAt core.Timestamp            `json:"finished_at"`
	RunIDs     []core.RunID              `json:"run_ids"`
	Results    []*bond.MeasurementResult `json:"results"`

	// calibration campaigns only
	Checks []calibration.Check `json:"checks,omitempty"`
}

// NewCampaignService creates a campaign service. Either repository may be nil, in which case
// nothing is persisted for it.
func NewCampaignService(engine *measure.Engine, corpora ports.CorpusRepository, runs ports.RunRepository, logger *internal.Logger) *CampaignService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &CampaignService{
		engine:  engine,
		corpora: corpora,
		runs:    runs,
		logger:  logger,
	}
}

// GenerateCorpus builds a deterministic corpus and stores it
func (s *CampaignService) GenerateCorpus(ctx context.Context, name string, cfg generator.Config) (*ports.Corpus, error) {
	scenarios, err := generator.Generate(cfg)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	corpus := &ports.Corpus{
		ID:        core.NewCorpusID(),
		Name:      name,
		Seed:      cfg.Seed,
		Scenarios: scenarios,
		CreatedAt: core.Now(),
	}
	if s.corpora != nil {
		if err := s.corpora.SaveCorpus(ctx, corpus); err != nil {
			return nil, errors.DatabaseError("save corpus", err)
		}
	}
	s.logger.Info("generated corpus %s: %d scenarios, seed %d", corpus.ID, len(scenarios), cfg.Seed)
	return corpus, nil
}

// LoadCorpus fetches a stored corpus
func (s *CampaignService) LoadCorpus(ctx context.Context, id core.CorpusID) (*ports.Corpus, error) {
	if s.corpora == nil {
		return nil, errors.NotFound("corpus " + id.String())
	}
	corpus, err := s.corpora.GetCorpus(ctx, id)
	if core.IsNotFoundError(err) {
		return nil, errors.WithCode(errors.CodeNotFound, err)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load corpus %s", id)
	}
	return corpus, nil
}

// Measure runs a campaign for each evaluator in order and stores one run per evaluator
func (s *CampaignService) Measure(ctx context.Context, corpus *ports.Corpus, evaluators ...ports.Evaluator) (*CampaignRun, error) {
	if len(evaluators) == 0 {
		return nil, errors.InvalidInput("no evaluators to measure")
	}
	campaign := s.newCampaign(corpus)
	for _, ev := range evaluators {
		started := core.Now()
		res, err := s.engine.Measure(ctx, ev, corpus.Scenarios)
		if err != nil {
			return nil, errors.Wrapf(err, "measure %s", ev.Name())
		}
		if err := s.record(ctx, campaign, res, started); err != nil {
			return nil, err
		}
	}
	campaign.FinishedAt = core.Now()
	if err := campaign.Err(); err != nil {
		s.logger.Warn("%v", err)
	}
	return campaign, nil
}

// Reproduce measures every evaluator of campaign again over corpus, storing nothing, and
// fails with core.ErrNonDeterministic when any result differs from the recorded one.
// Evaluators are matched to campaign results by position.
func (s *CampaignService) Reproduce(ctx context.Context, corpus *ports.Corpus, campaign *CampaignRun, evaluators ...ports.Evaluator) error {
	if len(evaluators) != len(campaign.Results) {
		return errors.InvalidInput(fmt.Sprintf("campaign has %d results, got %d evaluators",
			len(campaign.Results), len(evaluators)))
	}
	for i, ev := range evaluators {
		want := campaign.Results[i]
		if want.Partial {
			s.logger.Warn("not reproducing partial result for %s", want.Evaluator)
			continue
		}
		got, err := s.engine.Measure(ctx, ev, corpus.Scenarios)
		if err != nil {
			return errors.Wrapf(err, "re-measure %s", ev.Name())
		}
		if got.Partial {
			return errors.DeadlineExceeded("re-measure of %s ended early", ev.Name())
		}
		wantHash, err := fingerprint(want)
		if err != nil {
			return err
		}
		gotHash, err := fingerprint(got)
		if err != nil {
			return err
		}
		if !wantHash.Equals(gotHash) {
			return fmt.Errorf("%w: %s measured %s then %s (bd %s vs %s)", core.ErrNonDeterministic, ev.Name(),
				wantHash.Short(), gotHash.Short(), report.FormatIndex(want), report.FormatIndex(got))
		}
		s.logger.Info("reproduced %s: %s", ev.Name(), gotHash.Short())
	}
	return nil
}

func fingerprint(res *bond.MeasurementResult) (core.Hash, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return "", errors.Wrapf(err, "encode result for %s", res.Evaluator)
	}
	return core.NewHash(body), nil
}

// Calibrate measures the reference evaluators over corpus. A failed calibration still returns
// the campaign; the report's Err describes which checks failed.
func (s *CampaignService) Calibrate(ctx context.Context, corpus *ports.Corpus) (*CampaignRun, *calibration.Report, error) {
	campaign := s.newCampaign(corpus)
	started := core.Now()

	rep, err := calibration.NewHarness(s.engine, s.logger).Run(ctx, corpus.Scenarios)
	if err != nil {
		return nil, nil, errors.Wrap(err, "calibration")
	}
	for _, res := range rep.Results {
		if err := s.record(ctx, campaign, res, started); err != nil {
			return nil, nil, err
		}
	}
	campaign.Checks = rep.Checks
	campaign.FinishedAt = core.Now()
	if err := campaign.Err(); err != nil {
		s.logger.Warn("%v", err)
	}

	if rep.Passed {
		s.logger.Info("calibration passed (%d checks)", len(rep.Checks))
	} else {
		s.logger.Warn("calibration failed: %v", rep.Err())
	}
	return campaign, rep, nil
}

// Err reports results that were cut short by the campaign deadline
func (c *CampaignRun) Err() error {
	var partial []string
	for _, res := range c.Results {
		if res.Partial {
			partial = append(partial, res.Evaluator)
		}
	}
	if len(partial) == 0 {
		return nil
	}
	return errors.DeadlineExceeded("deadline expired before finishing %s", strings.Join(partial, ", "))
}

// Document converts a campaign into a renderable report
func (c *CampaignRun) Document(title string) *report.Document {
	return &report.Document{
		Title:      title,
		RunID:      c.ID.String(),
		Seed:       c.Seed,
		CorpusSize: c.CorpusSize,
		Results:    c.Results,
		Checks:     c.Checks,
	}
}

// RunDocument loads a stored run and wraps it in a report
func (s *CampaignService) RunDocument(ctx context.Context, id core.RunID) (*report.Document, error) {
	if s.runs == nil {
		return nil, errors.NotFound("run " + id.String())
	}
	run, err := s.runs.GetRun(ctx, id)
	if core.IsNotFoundError(err) {
		return nil, errors.WithCode(errors.CodeNotFound, err)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", id)
	}
	size := 0
	if s.corpora != nil {
		if corpus, err := s.corpora.GetCorpus(ctx, run.CorpusID); err == nil {
			size = len(corpus.Scenarios)
		}
	}
	return &report.Document{
		Title:      "Bond Index report: " + run.Evaluator,
		RunID:      run.ID.String(),
		Seed:       run.Seed,
		CorpusSize: size,
		Results:    []*bond.MeasurementResult{run.Result},
	}, nil
}

// ListRuns returns stored run summaries, newest first
func (s *CampaignService) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	if s.runs == nil {
		return nil, nil
	}
	summaries, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, errors.DatabaseError("list runs", err)
	}
	return summaries, nil
}

// WriteReports writes doc to dir in each requested format: json, md, html, xlsx
func WriteReports(dir, base string, formats []string, doc *report.Document) ([]string, error) {
	written, err := report.WriteFiles(dir, base, formats, doc)
	if err != nil {
		return written, errors.Wrap(err, "write reports")
	}
	if slices.Contains(formats, "xlsx") {
		path := filepath.Join(dir, base+".xlsx")
		if err := excel.NewWorkbookWriter(doc).SaveAs(path); err != nil {
			return written, errors.Wrapf(err, "write %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}

func (s *CampaignService) newCampaign(corpus *ports.Corpus) *CampaignRun {
	return &CampaignRun{
		ID:         core.NewRunID(),
		CorpusID:   corpus.ID,
		Seed:       corpus.Seed,
		CorpusSize: len(corpus.Scenarios),
		Config:     s.engine.Config(),
		StartedAt:  core.Now(),
	}
}

func (s *CampaignService) record(ctx context.Context, campaign *CampaignRun, res *bond.MeasurementResult, started core.Timestamp) error {
	campaign.Results = append(campaign.Results, res)
	rec := &ports.RunRecord{
		ID:         core.NewRunID(),
		CorpusID:   campaign.CorpusID,
		Evaluator:  res.Evaluator,
		Seed:       campaign.Seed,
		Result:     res,
		StartedAt:  started,
		FinishedAt: core.Now(),
	}
	campaign.RunIDs = append(campaign.RunIDs, rec.ID)
	s.logger.Info("measured %s: bd=%s tier=%s", res.Evaluator, report.FormatIndex(res), res.Tier)

	if s.runs == nil {
		return nil
	}
	if err := s.runs.SaveRun(ctx, rec); err != nil {
		return errors.DatabaseError("save run for "+res.Evaluator, err)
	}
	return nil
}
