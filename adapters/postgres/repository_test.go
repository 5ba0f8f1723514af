package postgres

import (
	"context"
	"testing"
	"time"

	"bondfuzz/adapters/db/postgres/migrations"
	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/internal/errors"
	"bondfuzz/internal/testkit"
	"bondfuzz/ports"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.NewMigrator(db, nil).Up(ctx))
	return db
}

func TestCorpusRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCorpusRepository(setupDB(t))

	corpus := &ports.Corpus{
		Name:      "default",
		Seed:      42,
		Scenarios: testkit.Corpus(12, 42),
		CreatedAt: core.NewTimestamp(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, repo.SaveCorpus(ctx, corpus))
	require.NotEmpty(t, corpus.ID, "an ID is assigned on save")

	got, err := repo.GetCorpus(ctx, corpus.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(corpus.Scenarios, got.Scenarios); diff != "" {
		t.Errorf("scenarios changed in storage:\n%s", diff)
	}
	assert.Equal(t, corpus.Name, got.Name)
	assert.Equal(t, corpus.Seed, got.Seed)
	assert.True(t, corpus.CreatedAt.Time().Equal(got.CreatedAt.Time()))

	_, err = repo.GetCorpus(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
	assert.True(t, core.IsNotFoundError(err))
}

func TestGetCorpusDetectsAlteredScenario(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewCorpusRepository(db)

	corpus := &ports.Corpus{Name: "tampered", Seed: 7, Scenarios: testkit.Corpus(3, 7)}
	require.NoError(t, repo.SaveCorpus(ctx, corpus))

	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE scenarios SET content_hash = ? WHERE corpus_id = ? AND position = 1`),
		"0000000000000000", corpus.ID.String())
	require.NoError(t, err)

	_, err = repo.GetCorpus(ctx, corpus.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrHashMismatch)
	assert.True(t, core.IsDeterminismError(err))
	assert.Contains(t, err.Error(), corpus.Scenarios[1].ID)
}

func TestRunRoundTripAndListing(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(setupDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bd := 0.1725
	defined := &ports.RunRecord{
		CorpusID:  "corpus-1",
		Evaluator: "order_sensitive",
		Seed:      42,
		Result: &bond.MeasurementResult{
			Evaluator:      "order_sensitive",
			BondIndex:      &bd,
			Tier:           bond.TierFor(bd),
			TransformMeans: map[string]float64{"reorder": 0.61},
			WorstDeviations: []bond.Deviation{
				{ScenarioID: "scn-0001", Transform: "reorder", Intensity: 1, Omega: 0.7},
			},
		},
		StartedAt:  core.NewTimestamp(base),
		FinishedAt: core.NewTimestamp(base.Add(time.Minute)),
	}
	undefined := &ports.RunRecord{
		Evaluator:  "failing",
		Result:     &bond.MeasurementResult{Evaluator: "failing", Tier: bond.TierUndefined},
		StartedAt:  core.NewTimestamp(base),
		FinishedAt: core.NewTimestamp(base.Add(2 * time.Minute)),
	}
	require.NoError(t, repo.SaveRun(ctx, defined))
	require.NoError(t, repo.SaveRun(ctx, undefined))

	got, err := repo.GetRun(ctx, defined.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(defined.Result, got.Result); diff != "" {
		t.Errorf("result changed in storage:\n%s", diff)
	}
	assert.Equal(t, core.CorpusID("corpus-1"), got.CorpusID)

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "failing", runs[0].Evaluator, "newest first")
	assert.Nil(t, runs[0].BondIndex)
	assert.Equal(t, string(bond.TierUndefined), runs[0].Tier)
	require.NotNil(t, runs[1].BondIndex)
	assert.Equal(t, bd, *runs[1].BondIndex)
	assert.Equal(t, "Moderate", runs[1].Tier)

	limited, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestClosedDatabaseIsDatabaseError(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	runs := NewRunRepository(db)
	corpora := NewCorpusRepository(db)
	require.NoError(t, db.Close())

	_, err := runs.ListRuns(ctx, 5)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	assert.Contains(t, err.Error(), "list runs")

	err = corpora.SaveCorpus(ctx, &ports.Corpus{Name: "late", Scenarios: testkit.Corpus(1, 1)})
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseError))
}
