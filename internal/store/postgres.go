package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/db"
	"github.com/sells-group/sourcing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests to substitute a
// pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	criteria      JSONB NOT NULL,
	phase         TEXT NOT NULL DEFAULT 'init',
	progress_pct  INTEGER NOT NULL DEFAULT 0,
	current_step  TEXT NOT NULL DEFAULT '',
	detail        TEXT NOT NULL DEFAULT '',
	total_found   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	source_url    TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	data          JSONB NOT NULL,
	match_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence    TEXT NOT NULL DEFAULT 'low',
	position      BIGSERIAL,
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS failures (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	url        TEXT NOT NULL,
	phase      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_run_id ON candidates(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_phase ON runs(phase);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, criteria model.Criteria) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal criteria")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, criteria, phase, progress_pct, started_at, created_at, updated_at) VALUES ($1, $2, $3, 0, $4, $5, $6)`,
		id, criteriaJSON, string(model.PhaseInit), now, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) SaveState(ctx context.Context, state model.RunState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET phase = $1, progress_pct = $2, current_step = $3, detail = $4, total_found = $5,
		 error_message = $6, completed_at = $7, updated_at = $8 WHERE id = $9`,
		string(state.Phase), state.ProgressPct, state.CurrentStep, model.TruncateDetail(state.Detail),
		state.TotalFound, model.TruncateDetail(state.ErrorMessage), state.CompletedAt, time.Now().UTC(), state.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save state %s", state.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", state.RunID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var criteriaJSON []byte
	var phase string

	err := s.pool.QueryRow(ctx,
		`SELECT id, criteria, phase, progress_pct, current_step, detail, total_found, error_message,
		 started_at, completed_at, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &criteriaJSON, &phase, &r.State.ProgressPct, &r.State.CurrentStep,
		&r.State.Detail, &r.State.TotalFound, &r.State.ErrorMessage,
		&r.State.StartedAt, &r.State.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(criteriaJSON, &r.Criteria); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal criteria")
	}
	r.State.RunID = r.ID
	r.State.Phase = model.Phase(phase)
	r.State.UpdatedAt = r.UpdatedAt
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, criteria, phase, progress_pct, current_step, detail, total_found, error_message,
		 started_at, completed_at, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var criteriaJSON []byte
		var phase string
		if err := rows.Scan(&r.ID, &criteriaJSON, &phase, &r.State.ProgressPct, &r.State.CurrentStep,
			&r.State.Detail, &r.State.TotalFound, &r.State.ErrorMessage,
			&r.State.StartedAt, &r.State.CompletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(criteriaJSON, &r.Criteria); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal criteria")
		}
		r.State.RunID = r.ID
		r.State.Phase = model.Phase(phase)
		r.State.UpdatedAt = r.UpdatedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) AppendCandidates(ctx context.Context, runID string, cands []model.Candidate) (int, error) {
	added := 0
	for _, c := range cands {
		data, err := json.Marshal(c)
		if err != nil {
			return added, eris.Wrap(err, "postgres: marshal candidate")
		}
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO candidates (source_url, run_id, data, match_score, confidence)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (source_url) DO NOTHING`,
			c.SourceURL, runID, data, c.MatchScore, string(c.Confidence),
		)
		if err != nil {
			return added, eris.Wrapf(err, "postgres: insert candidate %s", c.SourceURL)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (s *PostgresStore) UpdateScores(ctx context.Context, cands []model.Candidate) error {
	for _, c := range cands {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal candidate")
		}
		tag, err := s.pool.Exec(ctx,
			`UPDATE candidates SET data = $1, match_score = $2, confidence = $3 WHERE source_url = $4`,
			data, c.MatchScore, string(c.Confidence), c.SourceURL,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update candidate %s", c.SourceURL)
		}
		if tag.RowsAffected() == 0 {
			return eris.Errorf("candidate not found: %s", c.SourceURL)
		}
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error) {
	query := `SELECT data FROM candidates`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = $1`
		args = append(args, runID)
	}
	query += ` ORDER BY match_score DESC, position ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		var c model.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidate")
		}
		cands = append(cands, c)
	}
	return cands, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

func (s *PostgresStore) SeenSourceURLs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_url FROM candidates`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: seen source urls")
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source url")
		}
		seen[u] = true
	}
	return seen, eris.Wrap(rows.Err(), "postgres: seen source urls iterate")
}

func (s *PostgresStore) RecordFailures(ctx context.Context, runID string, failures []model.FailureRecord) error {
	for _, f := range failures {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO failures (run_id, url, phase, reason) VALUES ($1, $2, $3, $4)`,
			runID, f.URL, string(f.Phase), f.Reason,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert failure for %s", f.URL)
		}
	}
	return nil
}

func (s *PostgresStore) ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, phase, reason FROM failures WHERE run_id = $1 ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var failures []model.FailureRecord
	for rows.Next() {
		var f model.FailureRecord
		var phase string
		if err := rows.Scan(&f.URL, &phase, &f.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		f.Phase = model.Phase(phase)
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "postgres: list failures iterate")
}
