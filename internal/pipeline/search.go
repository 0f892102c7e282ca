package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/pkg/brave"
)

// braveResolver resolves queries to URLs via the Brave Search API.
type braveResolver struct {
	client brave.Client
	count  int
}

// NewBraveResolver adapts a Brave client into a URLResolver. count is the
// number of results requested per query.
func NewBraveResolver(client brave.Client, count int) URLResolver {
	if count < 1 {
		count = 10
	}
	return &braveResolver{client: client, count: count}
}

func (r *braveResolver) Resolve(ctx context.Context, query string) ([]string, error) {
	resp, err := r.client.Search(ctx, query, brave.WithCount(r.count))
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", query)
	}
	urls := make([]string, 0, len(resp.Web.Results))
	for _, res := range resp.Web.Results {
		if res.URL != "" {
			urls = append(urls, res.URL)
		}
	}
	return urls, nil
}
