package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/pkg/brave"
)

type mockBrave struct {
	mock.Mock
}

func (m *mockBrave) Search(ctx context.Context, query string, opts ...brave.SearchOption) (*brave.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*brave.SearchResponse), args.Error(1)
}

func TestBraveResolverReturnsURLs(t *testing.T) {
	bc := &mockBrave{}
	bc.On("Search", mock.Anything, "Vietnam activewear OEM").Return(&brave.SearchResponse{
		Web: brave.WebResults{Results: []brave.SearchResult{
			{URL: "https://alpha.example.com", Title: "Alpha"},
			{URL: "", Title: "no url"},
			{URL: "https://beta.example.com", Title: "Beta"},
		}},
	}, nil)

	r := NewBraveResolver(bc, 10)
	urls, err := r.Resolve(context.Background(), "Vietnam activewear OEM")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://alpha.example.com", "https://beta.example.com"}, urls)
}

func TestBraveResolverWrapsErrors(t *testing.T) {
	bc := &mockBrave{}
	bc.On("Search", mock.Anything, "bad query").Return(nil, eris.New("brave: status 429"))

	r := NewBraveResolver(bc, 10)
	_, err := r.Resolve(context.Background(), "bad query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad query")
}
