package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// ProgressSink receives run state snapshots as a pipeline advances.
// Implementations must be safe for concurrent use.
type ProgressSink interface {
	Update(state model.RunState)
}

// NopSink discards all updates.
type NopSink struct{}

func (NopSink) Update(model.RunState) {}

// LogSink writes each state transition to the global logger.
type LogSink struct{}

func (LogSink) Update(state model.RunState) {
	zap.L().Info("pipeline: progress",
		zap.String("run_id", state.RunID),
		zap.String("phase", string(state.Phase)),
		zap.Int("pct", state.ProgressPct),
		zap.String("step", state.CurrentStep),
		zap.String("detail", state.Detail),
	)
}

// MultiSink fans updates out to several sinks in order.
type MultiSink []ProgressSink

func (m MultiSink) Update(state model.RunState) {
	for _, s := range m {
		s.Update(state)
	}
}
