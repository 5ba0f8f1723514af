package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/errors"
	"bondfuzz/ports"

	"github.com/jmoiron/sqlx"
)

// CorpusRepositoryImpl implements CorpusRepository over sqlx. Queries are written with ?
// placeholders and rebound for the connected driver.
type CorpusRepositoryImpl struct {
	db *sqlx.DB
}

// NewCorpusRepository creates a new SQL corpus repository
func NewCorpusRepository(db *sqlx.DB) ports.CorpusRepository {
	return &CorpusRepositoryImpl{db: db}
}

type corpusRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Seed      int64     `db:"seed"`
	Size      int       `db:"size"`
	CreatedAt time.Time `db:"created_at"`
}

type scenarioRow struct {
	ScenarioID  string `db:"scenario_id"`
	ContentHash string `db:"content_hash"`
	Body        string `db:"body"`
}

// SaveCorpus stores the corpus and its scenarios in one transaction
func (r *CorpusRepositoryImpl) SaveCorpus(ctx context.Context, corpus *ports.Corpus) error {
	if corpus.ID == "" {
		corpus.ID = core.NewCorpusID()
	}
	if corpus.CreatedAt.IsZero() {
		corpus.CreatedAt = core.Now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("begin corpus transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO corpora (id, name, seed, size, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), corpus.ID.String(), corpus.Name, corpus.Seed, len(corpus.Scenarios), corpus.CreatedAt.Time().UTC())
	if err != nil {
		return errors.DatabaseError("insert corpus "+corpus.ID.String(), err)
	}

	insert := tx.Rebind(`
		INSERT INTO scenarios (corpus_id, position, scenario_id, content_hash, body)
		VALUES (?, ?, ?, ?, ?)
	`)
	for i, s := range corpus.Scenarios {
		body, err := json.Marshal(s)
		if err != nil {
			return errors.Wrapf(err, "encode scenario %s", s.ID)
		}
		_, err = tx.ExecContext(ctx, insert, corpus.ID.String(), i, s.ID, canon.ContentHash(s).String(), string(body))
		if err != nil {
			return errors.DatabaseError("insert scenario "+s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("commit corpus "+corpus.ID.String(), err)
	}
	return nil
}

// GetCorpus loads a corpus with its scenarios in stored order
func (r *CorpusRepositoryImpl) GetCorpus(ctx context.Context, id core.CorpusID) (*ports.Corpus, error) {
	var row corpusRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, name, seed, size, created_at
		FROM corpora
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrCorpusNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("select corpus "+id.String(), err)
	}

	var rows []scenarioRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT scenario_id, content_hash, body FROM scenarios
		WHERE corpus_id = ?
		ORDER BY position
	`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("select scenarios of corpus "+id.String(), err)
	}

	scenarios := make([]scenario.Scenario, 0, len(rows))
	for _, row := range rows {
		var s scenario.Scenario
		if err := json.Unmarshal([]byte(row.Body), &s); err != nil {
			return nil, errors.Wrapf(err, "decode scenario in corpus %s", id)
		}
		// stored bodies must still hash to what was measured
		if got := canon.ContentHash(s).String(); got != row.ContentHash {
			return nil, core.NewScenarioError(row.ScenarioID,
				fmt.Errorf("%w: stored %s, decoded %s", core.ErrHashMismatch, row.ContentHash, got))
		}
		scenarios = append(scenarios, s)
	}

	return &ports.Corpus{
		ID:        core.CorpusID(row.ID),
		Name:      row.Name,
		Seed:      row.Seed,
		Scenarios: scenarios,
		CreatedAt: core.NewTimestamp(row.CreatedAt),
	}, nil
}
