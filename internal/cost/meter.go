// Package cost tracks Claude API spend across a pipeline run.
package cost

import (
	"context"
	"sync"

	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to their pricing. Unknown models meter tokens but
// contribute zero spend.
type Rates map[string]ModelRate

// DefaultRates returns current Claude pricing.
func DefaultRates() Rates {
	return Rates{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
	}
}

// Totals is a snapshot of accumulated usage.
type Totals struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	USD          float64
}

// Meter wraps an anthropic.Client and accumulates token usage and spend
// from every successful call.
type Meter struct {
	inner anthropic.Client
	rates Rates

	mu     sync.Mutex
	totals Totals
}

// NewMeter wraps inner with usage metering. nil rates use DefaultRates.
func NewMeter(inner anthropic.Client, rates Rates) *Meter {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Meter{inner: inner, rates: rates}
}

func (m *Meter) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	resp, err := m.inner.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	m.record(req.Model, resp.Usage)
	return resp, nil
}

func (m *Meter) record(model string, usage anthropic.TokenUsage) {
	rate := m.rates[model]

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Calls++
	m.totals.InputTokens += usage.InputTokens
	m.totals.OutputTokens += usage.OutputTokens
	m.totals.USD += (float64(usage.InputTokens)/1e6)*rate.Input +
		(float64(usage.OutputTokens)/1e6)*rate.Output
}

// Totals returns a snapshot of usage so far.
func (m *Meter) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}
