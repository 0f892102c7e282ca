package cost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testRates() Rates {
	return Rates{"sonnet": {Input: 3.00, Output: 15.00}}
}

func TestMeterAccumulatesSpend(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Usage: anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 200_000},
	}, nil).Twice()

	m := NewMeter(llm, testRates())
	req := anthropic.MessageRequest{Model: "sonnet"}

	_, err := m.CreateMessage(context.Background(), req)
	require.NoError(t, err)
	_, err = m.CreateMessage(context.Background(), req)
	require.NoError(t, err)

	totals := m.Totals()
	assert.Equal(t, 2, totals.Calls)
	assert.Equal(t, int64(2_000_000), totals.InputTokens)
	assert.Equal(t, int64(400_000), totals.OutputTokens)
	// 2 * (1M * 3.00/M + 0.2M * 15.00/M) = 2 * 6.00
	assert.InDelta(t, 12.0, totals.USD, 1e-9)
}

func TestMeterUnknownModelMetersTokensOnly(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Usage: anthropic.TokenUsage{InputTokens: 500, OutputTokens: 100},
	}, nil)

	m := NewMeter(llm, testRates())
	_, err := m.CreateMessage(context.Background(), anthropic.MessageRequest{Model: "unknown"})
	require.NoError(t, err)

	totals := m.Totals()
	assert.Equal(t, int64(500), totals.InputTokens)
	assert.Zero(t, totals.USD)
}

func TestMeterSkipsFailedCalls(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	m := NewMeter(llm, testRates())
	_, err := m.CreateMessage(context.Background(), anthropic.MessageRequest{Model: "sonnet"})
	require.Error(t, err)
	assert.Zero(t, m.Totals().Calls)
}
