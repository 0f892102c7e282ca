package store

import (
	"context"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Store defines the persistence interface for sourcing runs, discovered
// manufacturer candidates, and the cross-run dedup history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, criteria model.Criteria) (*model.Run, error)
	SaveState(ctx context.Context, state model.RunState) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Candidates. AppendCandidates is idempotent on source URL: a candidate
	// whose source_url was already persisted (in any run) is skipped, and the
	// returned count covers only newly inserted rows.
	AppendCandidates(ctx context.Context, runID string, cands []model.Candidate) (int, error)
	UpdateScores(ctx context.Context, cands []model.Candidate) error
	ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error)

	// History. SeenSourceURLs returns every source URL persisted across all
	// runs, for dedup before fetching.
	SeenSourceURLs(ctx context.Context) (map[string]bool, error)

	// Failures
	RecordFailures(ctx context.Context, runID string, failures []model.FailureRecord) error
	ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
