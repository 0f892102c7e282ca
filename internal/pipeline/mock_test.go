package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, criteria model.Criteria) (*model.Run, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) SaveState(ctx context.Context, state model.RunState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) AppendCandidates(ctx context.Context, runID string, cands []model.Candidate) (int, error) {
	args := m.Called(ctx, runID, cands)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) UpdateScores(ctx context.Context, cands []model.Candidate) error {
	args := m.Called(ctx, cands)
	return args.Error(0)
}

func (m *mockStore) ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

func (m *mockStore) SeenSourceURLs(ctx context.Context) (map[string]bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *mockStore) RecordFailures(ctx context.Context, runID string, failures []model.FailureRecord) error {
	args := m.Called(ctx, runID, failures)
	return args.Error(0)
}

func (m *mockStore) ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FailureRecord), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- QueryGenerator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, criteria model.Criteria) ([]Query, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Query), args.Error(1)
}

// --- URLResolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, query string) ([]string, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- ContentFetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// --- FactExtractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, url, content string) (*model.Candidate, error) {
	args := m.Called(ctx, url, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Candidate), args.Error(1)
}

// --- ProgressSink recorder ---

type recordingSink struct {
	mu     sync.Mutex
	states []model.RunState
}

func (r *recordingSink) Update(state model.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingSink) snapshot() []model.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RunState, len(r.states))
	copy(out, r.states)
	return out
}
