package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sourcing.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intp(v int) *int { return &v }

func TestSQLiteCreateAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	criteria := model.Criteria{
		Locations: []string{"Vietnam"},
		MOQMin:    intp(500),
		MOQMax:    intp(2000),
		Materials: []string{"organic cotton"},
	}

	run, err := s.CreateRun(ctx, criteria)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.PhaseInit, run.State.Phase)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, []string{"Vietnam"}, got.Criteria.Locations)
	require.NotNil(t, got.Criteria.MOQMin)
	assert.Equal(t, 500, *got.Criteria.MOQMin)
	assert.Equal(t, model.PhaseInit, got.State.Phase)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSQLiteSaveState(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	err = s.SaveState(ctx, model.RunState{
		RunID:       run.ID,
		Phase:       model.PhaseSearching,
		ProgressPct: 30,
		CurrentStep: "executing search queries",
		Detail:      "12 queries",
		TotalFound:  7,
	})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseSearching, got.State.Phase)
	assert.Equal(t, 30, got.State.ProgressPct)
	assert.Equal(t, "executing search queries", got.State.CurrentStep)
	assert.Equal(t, "12 queries", got.State.Detail)
	assert.Equal(t, 7, got.State.TotalFound)
	assert.False(t, got.State.StartedAt.IsZero())
	assert.Nil(t, got.State.CompletedAt)
}

func TestSQLiteSaveStateTerminal(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	done := time.Now().UTC().Truncate(time.Second)
	err = s.SaveState(ctx, model.RunState{
		RunID:        run.ID,
		Phase:        model.PhaseError,
		ProgressPct:  40,
		TotalFound:   5,
		ErrorMessage: "brave: connection refused",
		CompletedAt:  &done,
	})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseError, got.State.Phase)
	assert.Equal(t, 40, got.State.ProgressPct)
	assert.Equal(t, "brave: connection refused", got.State.ErrorMessage)
	require.NotNil(t, got.State.CompletedAt)
	assert.Equal(t, done, got.State.CompletedAt.UTC())
}

func TestSQLiteSaveStateUnknownRun(t *testing.T) {
	s := newTestSQLite(t)

	err := s.SaveState(context.Background(), model.RunState{
		RunID: "missing",
		Phase: model.PhaseSearching,
	})
	assert.Error(t, err)
}

func TestSQLiteSaveStateTruncatesDetail(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	long := make([]byte, 900)
	for i := range long {
		long[i] = 'x'
	}
	err = s.SaveState(ctx, model.RunState{
		RunID:  run.ID,
		Phase:  model.PhaseError,
		Detail: string(long),
	})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.Detail, 500)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.CreateRun(ctx, model.Criteria{})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteAppendCandidatesDedup(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	cands := []model.Candidate{
		{SourceURL: "https://a.example.com", Name: "Alpha Textiles", MatchScore: 72.5, Confidence: model.ConfidenceHigh},
		{SourceURL: "https://b.example.com", Name: "Beta Garments", MatchScore: 41.0, Confidence: model.ConfidenceLow},
	}
	added, err := s.AppendCandidates(ctx, run.ID, cands)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Re-inserting the same URLs is a no-op, even from a different run.
	run2, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)
	added, err = s.AppendCandidates(ctx, run2.ID, cands)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestSQLiteListCandidatesOrdering(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	cands := []model.Candidate{
		{SourceURL: "https://low.example.com", Name: "Low", MatchScore: 20},
		{SourceURL: "https://tie-a.example.com", Name: "TieA", MatchScore: 50},
		{SourceURL: "https://tie-b.example.com", Name: "TieB", MatchScore: 50},
		{SourceURL: "https://high.example.com", Name: "High", MatchScore: 90},
	}
	_, err = s.AppendCandidates(ctx, run.ID, cands)
	require.NoError(t, err)

	got, err := s.ListCandidates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "High", got[0].Name)
	assert.Equal(t, "TieA", got[1].Name)
	assert.Equal(t, "TieB", got[2].Name)
	assert.Equal(t, "Low", got[3].Name)
}

func TestSQLiteUpdateScores(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	c := model.Candidate{SourceURL: "https://a.example.com", Name: "Alpha", MatchScore: 10, Confidence: model.ConfidenceLow}
	_, err = s.AppendCandidates(ctx, run.ID, []model.Candidate{c})
	require.NoError(t, err)

	c.MatchScore = 83.5
	c.Confidence = model.ConfidenceHigh
	c.Rationale = "Scoring Breakdown:"
	require.NoError(t, s.UpdateScores(ctx, []model.Candidate{c}))

	got, err := s.ListCandidates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 83.5, got[0].MatchScore)
	assert.Equal(t, model.ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, "Scoring Breakdown:", got[0].Rationale)
}

func TestSQLiteUpdateScoresUnknownCandidate(t *testing.T) {
	s := newTestSQLite(t)

	err := s.UpdateScores(context.Background(), []model.Candidate{
		{SourceURL: "https://missing.example.com"},
	})
	assert.Error(t, err)
}

func TestSQLiteListCandidatesAllRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run1, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)
	run2, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	_, err = s.AppendCandidates(ctx, run1.ID, []model.Candidate{{SourceURL: "https://a.example.com"}})
	require.NoError(t, err)
	_, err = s.AppendCandidates(ctx, run2.ID, []model.Candidate{{SourceURL: "https://b.example.com"}})
	require.NoError(t, err)

	all, err := s.ListCandidates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := s.ListCandidates(ctx, run1.ID)
	require.NoError(t, err)
	assert.Len(t, only, 1)
}

func TestSQLiteSeenSourceURLs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	seen, err := s.SeenSourceURLs(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	_, err = s.AppendCandidates(ctx, run.ID, []model.Candidate{
		{SourceURL: "https://a.example.com"},
		{SourceURL: "https://b.example.com"},
	})
	require.NoError(t, err)

	seen, err = s.SeenSourceURLs(ctx)
	require.NoError(t, err)
	assert.True(t, seen["https://a.example.com"])
	assert.True(t, seen["https://b.example.com"])
	assert.False(t, seen["https://c.example.com"])
}

func TestSQLiteFailures(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	failures := []model.FailureRecord{
		{URL: "https://slow.example.com", Phase: model.PhaseScraping, Reason: "timeout after 15s"},
		{URL: "https://broken.example.com", Phase: model.PhaseEvaluating, Reason: "invalid extraction payload"},
	}
	require.NoError(t, s.RecordFailures(ctx, run.ID, failures))

	got, err := s.ListFailures(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://slow.example.com", got[0].URL)
	assert.Equal(t, model.PhaseScraping, got[0].Phase)
	assert.Equal(t, "invalid extraction payload", got[1].Reason)
}

func TestSQLiteCandidateRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Criteria{})
	require.NoError(t, err)

	c := model.Candidate{
		SourceURL:         "https://hanoi-activewear.example.com",
		Name:              "Hanoi Activewear Co",
		Website:           "https://hanoi-activewear.example.com",
		Location:          "Hanoi, Vietnam",
		Contact:           model.Contact{Email: "sales@example.com", Phone: "+84 24 0000 0000"},
		Materials:         []string{"organic cotton", "recycled polyester"},
		ProductionMethods: []string{"cut and sew", "screen printing"},
		Certifications:    []string{"GOTS", "OEKO-TEX"},
		MOQ:               intp(500),
		MOQDescription:    "500 units per style",
	}
	_, err = s.AppendCandidates(ctx, run.ID, []model.Candidate{c})
	require.NoError(t, err)

	got, err := s.ListCandidates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.Name, got[0].Name)
	assert.Equal(t, c.Materials, got[0].Materials)
	assert.Equal(t, c.Certifications, got[0].Certifications)
	require.NotNil(t, got[0].MOQ)
	assert.Equal(t, 500, *got[0].MOQ)
	assert.Equal(t, "sales@example.com", got[0].Contact.Email)
}

func TestStoreInterfaceConformance(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
