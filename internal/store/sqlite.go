package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	criteria      TEXT NOT NULL,
	phase         TEXT NOT NULL DEFAULT 'init',
	progress_pct  INTEGER NOT NULL DEFAULT 0,
	current_step  TEXT NOT NULL DEFAULT '',
	detail        TEXT NOT NULL DEFAULT '',
	total_found   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidates (
	source_url    TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	data          TEXT NOT NULL,
	match_score   REAL NOT NULL DEFAULT 0,
	confidence    TEXT NOT NULL DEFAULT 'low',
	discovered_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS failures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	url        TEXT NOT NULL,
	phase      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_candidates_run_id ON candidates(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_phase ON runs(phase);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, criteria model.Criteria) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal criteria")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, criteria, phase, progress_pct, started_at, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?, ?)`,
		id, string(criteriaJSON), string(model.PhaseInit), now, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:       id,
		Criteria: criteria,
		State: model.RunState{
			RunID:     id,
			Phase:     model.PhaseInit,
			StartedAt: now,
			UpdatedAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, state model.RunState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET phase = ?, progress_pct = ?, current_step = ?, detail = ?, total_found = ?,
		 error_message = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(state.Phase), state.ProgressPct, state.CurrentStep, model.TruncateDetail(state.Detail),
		state.TotalFound, model.TruncateDetail(state.ErrorMessage), state.CompletedAt, time.Now().UTC(), state.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save state %s", state.RunID)
	}
	return checkRowsAffected(res, "run", state.RunID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, criteria, phase, progress_pct, current_step, detail, total_found, error_message,
		 started_at, completed_at, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, criteria, phase, progress_pct, current_step, detail, total_found, error_message,
		 started_at, completed_at, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) AppendCandidates(ctx context.Context, runID string, cands []model.Candidate) (int, error) {
	added := 0
	for _, c := range cands {
		data, err := json.Marshal(c)
		if err != nil {
			return added, eris.Wrap(err, "sqlite: marshal candidate")
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO candidates (source_url, run_id, data, match_score, confidence)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (source_url) DO NOTHING`,
			c.SourceURL, runID, string(data), c.MatchScore, string(c.Confidence),
		)
		if err != nil {
			return added, eris.Wrapf(err, "sqlite: insert candidate %s", c.SourceURL)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, eris.Wrap(err, "sqlite: rows affected")
		}
		added += int(n)
	}
	return added, nil
}

func (s *SQLiteStore) UpdateScores(ctx context.Context, cands []model.Candidate) error {
	for _, c := range cands {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal candidate")
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE candidates SET data = ?, match_score = ?, confidence = ? WHERE source_url = ?`,
			string(data), c.MatchScore, string(c.Confidence), c.SourceURL,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update candidate %s", c.SourceURL)
		}
		if err := checkRowsAffected(res, "candidate", c.SourceURL); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error) {
	query := `SELECT data FROM candidates`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY match_score DESC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		var c model.Candidate
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
		}
		cands = append(cands, c)
	}
	return cands, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) SeenSourceURLs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_url FROM candidates`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: seen source urls")
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source url")
		}
		seen[u] = true
	}
	return seen, eris.Wrap(rows.Err(), "sqlite: seen source urls iterate")
}

func (s *SQLiteStore) RecordFailures(ctx context.Context, runID string, failures []model.FailureRecord) error {
	for _, f := range failures {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO failures (run_id, url, phase, reason) VALUES (?, ?, ?, ?)`,
			runID, f.URL, string(f.Phase), f.Reason,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert failure for %s", f.URL)
		}
	}
	return nil
}

func (s *SQLiteStore) ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, phase, reason FROM failures WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close()

	var failures []model.FailureRecord
	for rows.Next() {
		var f model.FailureRecord
		var phase string
		if err := rows.Scan(&f.URL, &phase, &f.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		f.Phase = model.Phase(phase)
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "sqlite: list failures iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var criteriaJSON, phase string
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &criteriaJSON, &phase, &r.State.ProgressPct, &r.State.CurrentStep,
		&r.State.Detail, &r.State.TotalFound, &r.State.ErrorMessage,
		&r.State.StartedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &r.Criteria); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal criteria")
	}
	r.State.RunID = r.ID
	r.State.Phase = model.Phase(phase)
	if completedAt.Valid {
		t := completedAt.Time
		r.State.CompletedAt = &t
	}
	r.State.UpdatedAt = r.UpdatedAt
	return &r, nil
}
