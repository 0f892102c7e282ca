// Package runner executes sourcing runs in the background with bounded
// concurrency and keeps in-memory state for API polling.
package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Runner launches pipeline executions and tracks their latest state. It
// implements pipeline.ProgressSink so it can be wired straight into a
// pipeline as one of its sinks.
type Runner struct {
	group *errgroup.Group

	mu      sync.RWMutex
	states  map[string]model.RunState
	results map[string]*model.Result
}

// New creates a Runner allowing at most limit concurrent executions.
// Values below 1 mean unlimited.
func New(limit int) *Runner {
	g := &errgroup.Group{}
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Runner{
		group:   g,
		states:  make(map[string]model.RunState),
		results: make(map[string]*model.Result),
	}
}

// Update records a state snapshot. Part of the ProgressSink contract.
func (r *Runner) Update(state model.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.RunID] = state
}

// State returns the latest snapshot for a run launched through this Runner.
func (r *Runner) State(runID string) (model.RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[runID]
	return state, ok
}

// Result returns the final result of a finished run.
func (r *Runner) Result(runID string) (*model.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[runID]
	return result, ok
}

// Launch queues fn for execution. It blocks while the concurrency limit is
// saturated, then runs fn in the background. Errors are logged, not
// returned; the run's stored phase carries the failure.
func (r *Runner) Launch(ctx context.Context, runID string, fn func(ctx context.Context) (*model.Result, error)) {
	r.mu.Lock()
	if _, exists := r.states[runID]; !exists {
		r.states[runID] = model.RunState{RunID: runID, Phase: model.PhaseInit}
	}
	r.mu.Unlock()

	r.group.Go(func() error {
		result, err := fn(ctx)
		if err != nil {
			zap.L().Error("runner: run failed",
				zap.String("run_id", runID),
				zap.Error(err),
			)
		}
		if result != nil {
			r.mu.Lock()
			r.results[runID] = result
			r.mu.Unlock()
		}
		return nil
	})
}

// Wait blocks until every launched run has finished.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}
