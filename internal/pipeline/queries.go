package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

const queryGenSystemPrompt = `You are an expert at generating strategic search queries for finding activewear manufacturers.

Generate 7-10 diverse, high-quality search queries that will find manufacturers matching specific criteria. Each query should use a DIFFERENT search strategy to maximize coverage.

Search strategies to draw from:
1. Direct manufacturer searches. Use industry terms ("OEM", "ODM", "contract manufacturer", "private label") combined with 2-3 criteria.
2. B2B platform searches with site: operators (site:alibaba.com, site:makersrow.com, site:indiamart.com).
3. Certification or association directory searches ("GOTS member directory activewear", "textile manufacturers association [location]").
4. Material-specific searches ("recycled polyester activewear suppliers").
5. Production method searches ("sublimation printing activewear manufacturer", "CMT", "full package manufacturing").
6. MOQ-focused searches. For low MOQ under 1000 use "low MOQ", "small batch".
7. Sustainability-angle searches ("sustainable activewear manufacturer", "eco-friendly sportswear OEM").

Rules:
- Combine 2-3 criteria per query, not all at once.
- Use exact phrases with quotes when needed: "OEKO-TEX certified", "low MOQ".
- If multiple locations are given, spread them across queries.
- Include site: operators for at least 1-2 queries.
- Avoid near-duplicate queries.

Return a JSON object:
{"queries": [{"query": "the search query string", "strategy": "brief strategy name"}, ...]}

Generate 7-10 queries with DIVERSE strategies. Avoid duplicates.`

// Generator produces search queries with the LLM, falling back to a
// rule-based set when the response cannot be parsed.
type Generator struct {
	client     anthropic.Client
	model      string
	maxQueries int
}

// NewGenerator creates a query generator. maxQueries caps the number of
// queries returned; values below 1 default to 10.
func NewGenerator(client anthropic.Client, llmModel string, maxQueries int) *Generator {
	if maxQueries < 1 {
		maxQueries = 10
	}
	return &Generator{client: client, model: llmModel, maxQueries: maxQueries}
}

func (g *Generator) Generate(ctx context.Context, criteria model.Criteria) ([]Query, error) {
	userPrompt := fmt.Sprintf(`Generate 7-10 diverse, strategic search queries for finding activewear manufacturers with these criteria:

%s

Analyze the criteria and select appropriate strategies. Ensure query diversity.
Return the JSON object with queries and their strategies.`, criteria.Summary())

	temp := 0.5
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   2000,
		System:      []anthropic.SystemBlock{{Text: queryGenSystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "queries: create message")
	}

	queries, parseErr := parseQueries(resp.Text())
	if parseErr != nil {
		zap.L().Warn("queries: falling back to rule-based queries", zap.Error(parseErr))
		queries = fallbackQueries(criteria)
	}
	if len(queries) > g.maxQueries {
		queries = queries[:g.maxQueries]
	}

	zap.L().Info("queries: generated", zap.Int("count", len(queries)))
	return queries, nil
}

// parseQueries accepts either the structured {"queries": [...]} object or a
// plain JSON list of strings.
func parseQueries(text string) ([]Query, error) {
	text = stripFences(text)

	var structured struct {
		Queries []Query `json:"queries"`
	}
	if err := json.Unmarshal([]byte(text), &structured); err == nil && len(structured.Queries) > 0 {
		return validQueries(structured.Queries)
	}

	var plain []string
	if err := json.Unmarshal([]byte(text), &plain); err == nil && len(plain) > 0 {
		queries := make([]Query, 0, len(plain))
		for _, q := range plain {
			queries = append(queries, Query{Text: q})
		}
		return validQueries(queries)
	}

	return nil, eris.New("queries: unexpected response format")
}

func validQueries(queries []Query) ([]Query, error) {
	for _, q := range queries {
		if strings.TrimSpace(q.Text) == "" {
			return nil, eris.New("queries: empty query in response")
		}
	}
	return queries, nil
}

// fallbackQueries builds a rule-based query set covering the main search
// strategies when LLM output is unusable.
func fallbackQueries(criteria model.Criteria) []Query {
	var queries []Query
	add := func(text, strategy string) {
		queries = append(queries, Query{Text: text, Strategy: strategy})
	}

	locations := criteria.Locations
	if len(locations) > 2 {
		locations = locations[:2]
	}
	for _, loc := range locations {
		add(loc+" activewear manufacturer OEM", "direct")
	}

	if len(criteria.Materials) > 0 && len(criteria.Locations) > 0 {
		add(criteria.Materials[0]+" "+criteria.Locations[0]+" sportswear manufacturer", "material")
	}

	if len(criteria.CertificationsOfInterest) > 0 {
		add(`"`+criteria.CertificationsOfInterest[0]+` certified" activewear manufacturers directory`, "certification")
	}

	if len(criteria.ProductionMethods) > 0 {
		add(criteria.ProductionMethods[0]+" athletic apparel contract manufacturer", "production method")
	}

	if criteria.MOQMin != nil {
		if *criteria.MOQMin < 1000 {
			add("low MOQ activewear manufacturer small batch", "moq")
		} else {
			add(fmt.Sprintf("activewear manufacturer %d minimum order", *criteria.MOQMin), "moq")
		}
	}

	if len(criteria.Locations) > 0 {
		add("activewear manufacturer site:alibaba.com "+criteria.Locations[0], "b2b platform")
	}

	sustainable := []string{"organic", "recycled", "sustainable", "eco"}
	if len(criteria.Materials) > 0 {
		joined := strings.ToLower(strings.Join(criteria.Materials, " "))
		for _, kw := range sustainable {
			if strings.Contains(joined, kw) {
				add("sustainable activewear manufacturer eco-friendly", "sustainability")
				break
			}
		}
	}

	if len(queries) == 0 {
		add("activewear manufacturer private label", "direct")
		add("athletic apparel contract manufacturer", "direct")
		add("sportswear OEM manufacturers directory", "directory")
	}

	// Drop duplicates, keeping first occurrence.
	seen := make(map[string]bool, len(queries))
	var unique []Query
	for _, q := range queries {
		if seen[q.Text] {
			continue
		}
		seen[q.Text] = true
		unique = append(unique, q)
	}
	return unique
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return strings.TrimSpace(text)
}
