package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
)

func TestRunnerTracksStateAndResult(t *testing.T) {
	r := New(2)

	r.Launch(context.Background(), "run-1", func(ctx context.Context) (*model.Result, error) {
		r.Update(model.RunState{RunID: "run-1", Phase: model.PhaseSearching, ProgressPct: 30})
		r.Update(model.RunState{RunID: "run-1", Phase: model.PhaseComplete, ProgressPct: 100})
		return &model.Result{RunID: "run-1", TotalFound: 3}, nil
	})
	r.Wait()

	state, ok := r.State("run-1")
	require.True(t, ok)
	assert.Equal(t, model.PhaseComplete, state.Phase)
	assert.Equal(t, 100, state.ProgressPct)

	result, ok := r.Result("run-1")
	require.True(t, ok)
	assert.Equal(t, 3, result.TotalFound)
}

func TestRunnerUnknownRun(t *testing.T) {
	r := New(1)

	_, ok := r.State("missing")
	assert.False(t, ok)
	_, ok = r.Result("missing")
	assert.False(t, ok)
}

func TestRunnerInitialStateVisibleImmediately(t *testing.T) {
	r := New(1)
	release := make(chan struct{})

	r.Launch(context.Background(), "run-1", func(ctx context.Context) (*model.Result, error) {
		<-release
		return nil, nil
	})

	state, ok := r.State("run-1")
	require.True(t, ok)
	assert.Equal(t, model.PhaseInit, state.Phase)

	close(release)
	r.Wait()
}

func TestRunnerFailedRunHasNoResult(t *testing.T) {
	r := New(1)

	r.Launch(context.Background(), "run-1", func(ctx context.Context) (*model.Result, error) {
		return nil, eris.New("pipeline: boom")
	})
	r.Wait()

	_, ok := r.Result("run-1")
	assert.False(t, ok)
}

func TestRunnerLimitsConcurrency(t *testing.T) {
	r := New(1)

	var active, peak int32
	work := func(ctx context.Context) (*model.Result, error) {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	}

	go r.Launch(context.Background(), "run-1", work)
	go r.Launch(context.Background(), "run-2", work)
	go r.Launch(context.Background(), "run-3", work)

	time.Sleep(200 * time.Millisecond)
	r.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
