package app

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/errors"
	"bondfuzz/internal/generator"
	"bondfuzz/internal/measure"
	"bondfuzz/internal/testkit"
	"bondfuzz/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) SaveRun(ctx context.Context, run *ports.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunRepository) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*ports.RunRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRunRepository) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]ports.RunSummary), args.Error(1)
}

func testEngine(t *testing.T) *measure.Engine {
	t.Helper()
	cfg := measure.DefaultConfig()
	cfg.Intensities = []float64{0.5, 1.0}
	cfg.Chains.Count = 4
	cfg.CurvePoints = 3
	cfg.CurveScenarios = 3
	cfg.AdversarialScenarios = 2

	dc := dispatch.DefaultConfig()
	dc.Backoff = time.Millisecond
	dc.MaxBackoff = time.Millisecond
	engine, err := measure.NewEngine(cfg, measure.WithDispatchConfig(dc))
	require.NoError(t, err)
	return engine
}

func TestGenerateCorpusIsStored(t *testing.T) {
	store := testkit.NewInMemoryStore()
	svc := NewCampaignService(testEngine(t), store, store, nil)
	ctx := context.Background()

	corpus, err := svc.GenerateCorpus(ctx, "smoke", generator.Config{N: 8, Seed: 7})
	require.NoError(t, err)
	assert.Len(t, corpus.Scenarios, 8)
	assert.Equal(t, int64(7), corpus.Seed)

	loaded, err := svc.LoadCorpus(ctx, corpus.ID)
	require.NoError(t, err)
	assert.Equal(t, corpus.Scenarios, loaded.Scenarios)

	_, err = svc.LoadCorpus(ctx, core.NewCorpusID())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestMeasurePersistsOneRunPerEvaluator(t *testing.T) {
	store := testkit.NewInMemoryStore()
	svc := NewCampaignService(testEngine(t), store, store, nil)
	ctx := context.Background()

	corpus, err := svc.GenerateCorpus(ctx, "smoke", generator.Config{N: 6, Seed: 3})
	require.NoError(t, err)

	campaign, err := svc.Measure(ctx, corpus, testkit.BestOption(), testkit.FirstOption())
	require.NoError(t, err)
	require.Len(t, campaign.Results, 2)
	require.Len(t, campaign.RunIDs, 2)
	assert.Equal(t, corpus.ID, campaign.CorpusID)
	assert.Equal(t, 6, campaign.CorpusSize)
	assert.False(t, campaign.FinishedAt.Before(campaign.StartedAt))

	summaries, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	doc, err := svc.RunDocument(ctx, campaign.RunIDs[1])
	require.NoError(t, err)
	assert.Equal(t, "first_option", doc.Results[0].Evaluator)
	assert.Equal(t, 6, doc.CorpusSize)
}

func TestMeasureRequiresEvaluator(t *testing.T) {
	svc := NewCampaignService(testEngine(t), nil, nil, nil)
	_, err := svc.Measure(context.Background(), &ports.Corpus{Scenarios: testkit.Corpus(2, 1)})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestMeasureSurfacesStorageFailure(t *testing.T) {
	runs := new(mockRunRepository)
	runs.On("SaveRun", mock.Anything, mock.AnythingOfType("*ports.RunRecord")).Return(stderrors.New("disk full")).Once()

	svc := NewCampaignService(testEngine(t), nil, runs, nil)
	corpus := &ports.Corpus{ID: core.NewCorpusID(), Scenarios: testkit.Corpus(3, 1)}

	_, err := svc.Measure(context.Background(), corpus, testkit.BestOption())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	runs.AssertExpectations(t)
}

func TestCampaignErrReportsPartialResults(t *testing.T) {
	campaign := &CampaignRun{Results: []*bond.MeasurementResult{{Evaluator: "ideal"}}}
	assert.NoError(t, campaign.Err())

	campaign.Results = append(campaign.Results,
		&bond.MeasurementResult{Evaluator: "slow", Partial: true},
		&bond.MeasurementResult{Evaluator: "slower", Partial: true})
	err := campaign.Err()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDeadline))
	assert.Equal(t, "deadline expired before finishing slow, slower", err.Error())
}

func TestMeasureKeepsPartialCampaign(t *testing.T) {
	slow := ports.EvaluatorFunc{ID: "slow", Fn: func(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		select {
		case <-time.After(5 * time.Millisecond):
			return scenario.EvaluationResult{Selection: s.Options[0].ID}, nil
		case <-ctx.Done():
			return scenario.EvaluationResult{}, ctx.Err()
		}
	}}
	cfg := measure.DefaultConfig()
	cfg.Deadline = 20 * time.Millisecond
	dc := dispatch.DefaultConfig()
	dc.Workers = 1
	engine, err := measure.NewEngine(cfg, measure.WithDispatchConfig(dc))
	require.NoError(t, err)

	store := testkit.NewInMemoryStore()
	svc := NewCampaignService(engine, nil, store, nil)
	corpus := &ports.Corpus{ID: core.NewCorpusID(), Scenarios: testkit.Corpus(20, 2)}

	campaign, err := svc.Measure(context.Background(), corpus, slow)
	require.NoError(t, err, "a partial result is still recorded")
	require.Len(t, campaign.RunIDs, 1)
	assert.True(t, campaign.Results[0].Partial)
	assert.Equal(t, errors.CodeDeadline, errors.GetCode(campaign.Err()))
}

// drifting answers like FirstOption until switched, then like BestOption
type drifting struct {
	switched atomic.Bool
}

func (d *drifting) Name() string { return "drifting" }

func (d *drifting) Evaluate(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	if d.switched.Load() {
		return testkit.BestOption().Evaluate(ctx, s)
	}
	return testkit.FirstOption().Evaluate(ctx, s)
}

func TestReproduce(t *testing.T) {
	svc := NewCampaignService(testEngine(t), nil, nil, nil)
	ctx := context.Background()
	corpus := &ports.Corpus{ID: core.NewCorpusID(), Seed: 9, Scenarios: testkit.Corpus(6, 9)}

	campaign, err := svc.Measure(ctx, corpus, testkit.FirstOption(), testkit.BestOption())
	require.NoError(t, err)
	assert.NoError(t, svc.Reproduce(ctx, corpus, campaign, testkit.FirstOption(), testkit.BestOption()))

	err = svc.Reproduce(ctx, corpus, campaign, testkit.FirstOption())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	ev := &drifting{}
	campaign, err = svc.Measure(ctx, corpus, ev)
	require.NoError(t, err)
	ev.switched.Store(true)

	err = svc.Reproduce(ctx, corpus, campaign, ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNonDeterministic)
	assert.True(t, core.IsDeterminismError(err))
	assert.Contains(t, err.Error(), "drifting")
}

func TestWriteReportsAllFormats(t *testing.T) {
	svc := NewCampaignService(testEngine(t), nil, nil, nil)
	corpus := &ports.Corpus{ID: core.NewCorpusID(), Seed: 5, Scenarios: testkit.Corpus(4, 5)}

	campaign, err := svc.Measure(context.Background(), corpus, testkit.FirstOption())
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := WriteReports(dir, "run", []string{"json", "md", "html", "xlsx"}, campaign.Document("Smoke"))
	require.NoError(t, err)
	assert.Len(t, written, 4)
	for _, ext := range []string{"json", "md", "html", "xlsx"} {
		info, err := os.Stat(filepath.Join(dir, "run."+ext))
		require.NoError(t, err, ext)
		assert.Positive(t, info.Size(), ext)
	}
}
