package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/internal/errors"
	"bondfuzz/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository over sqlx
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new SQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	ID         string          `db:"id"`
	CorpusID   sql.NullString  `db:"corpus_id"`
	Evaluator  string          `db:"evaluator"`
	Seed       int64           `db:"seed"`
	BondIndex  sql.NullFloat64 `db:"bond_index"`
	Tier       string          `db:"tier"`
	Result     string          `db:"result"`
	StartedAt  time.Time       `db:"started_at"`
	FinishedAt time.Time       `db:"finished_at"`
}

// SaveRun stores a finished measurement. The result is kept as JSON; index and tier are
// duplicated into columns for listing.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *ports.RunRecord) error {
	if run.ID == "" {
		run.ID = core.NewRunID()
	}
	body, err := json.Marshal(run.Result)
	if err != nil {
		return errors.Wrapf(err, "encode run %s", run.ID)
	}

	var bd sql.NullFloat64
	tier := string(bond.TierUndefined)
	if run.Result != nil {
		if v, ok := run.Result.Index(); ok {
			bd = sql.NullFloat64{Float64: v, Valid: true}
		}
		tier = string(run.Result.Tier)
	}
	corpusID := sql.NullString{String: run.CorpusID.String(), Valid: run.CorpusID != ""}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO measurement_runs (id, corpus_id, evaluator, seed, bond_index, tier, result, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), run.ID.String(), corpusID, run.Evaluator, run.Seed, bd, tier, string(body),
		run.StartedAt.Time().UTC(), run.FinishedAt.Time().UTC())
	if err != nil {
		return errors.DatabaseError("insert run "+run.ID.String(), err)
	}
	return nil
}

// GetRun loads one run with its full result
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, corpus_id, evaluator, seed, bond_index, tier, result, started_at, finished_at
		FROM measurement_runs
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("select run "+id.String(), err)
	}

	var result bond.MeasurementResult
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", id)
	}

	return &ports.RunRecord{
		ID:         core.RunID(row.ID),
		CorpusID:   core.CorpusID(row.CorpusID.String),
		Evaluator:  row.Evaluator,
		Seed:       row.Seed,
		Result:     &result,
		StartedAt:  core.NewTimestamp(row.StartedAt),
		FinishedAt: core.NewTimestamp(row.FinishedAt),
	}, nil
}

// ListRuns returns the newest runs first, optionally limited
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	query := `
		SELECT id, corpus_id, evaluator, seed, bond_index, tier, started_at, finished_at
		FROM measurement_runs
		ORDER BY finished_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("list runs", err)
	}

	summaries := make([]ports.RunSummary, 0, len(rows))
	for _, row := range rows {
		summary := ports.RunSummary{
			ID:         core.RunID(row.ID),
			CorpusID:   core.CorpusID(row.CorpusID.String),
			Evaluator:  row.Evaluator,
			Tier:       row.Tier,
			FinishedAt: core.NewTimestamp(row.FinishedAt),
		}
		if row.BondIndex.Valid {
			v := row.BondIndex.Float64
			summary.BondIndex = &v
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
