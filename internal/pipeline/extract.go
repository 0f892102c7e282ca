package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// extractContentCap limits page text sent to the LLM.
const extractContentCap = 8000

const extractSystemPrompt = `You are an expert at extracting manufacturer information from website content.

Extract the following information from the provided text:
- Company name
- Location (city, country)
- Contact email
- Contact phone
- Physical address
- Materials they work with (list)
- Production methods/capabilities (list)
- Minimum Order Quantity (MOQ) as an integer, plus any textual MOQ description
- Certifications (list)
- Website credibility signals (booleans): testimonials, portfolio, factory_photos, awards, sustainability_focus, transparent_supply_chain, social_responsibility, environmental_initiatives, recent_updates, export_experience, international_clients, trade_shows
- Years in business as an integer if stated

Return ONLY a JSON object with these fields. If information is not found, use null for strings/integers or empty arrays for lists.

Example output:
{
  "name": "ABC Manufacturing",
  "location": "Los Angeles, USA",
  "email": "info@abc.com",
  "phone": "+1-555-0100",
  "address": "123 Main St, LA, CA 90001",
  "materials": ["recycled polyester", "organic cotton"],
  "production_methods": ["sublimation printing", "screen printing"],
  "moq": 500,
  "moq_description": "500 units per design",
  "certifications": ["OEKO-TEX", "GOTS"],
  "website_signals": {"testimonials": true, "factory_photos": false},
  "years_in_business": 12
}`

// Extractor pulls structured manufacturer records out of page text with the
// LLM. A page that yields unparseable output still produces a minimal
// low-confidence record rather than an error.
type Extractor struct {
	client anthropic.Client
	model  string
	titler cases.Caser
}

func NewExtractor(client anthropic.Client, llmModel string) *Extractor {
	return &Extractor{
		client: client,
		model:  llmModel,
		titler: cases.Title(language.English),
	}
}

// extractPayload mirrors the JSON shape the prompt requests. MOQ is decoded
// as float64 because the LLM occasionally returns it with a decimal point.
type extractPayload struct {
	Name              any                   `json:"name"`
	Location          any                   `json:"location"`
	Email             any                   `json:"email"`
	Phone             any                   `json:"phone"`
	Address           any                   `json:"address"`
	Materials         any                   `json:"materials"`
	ProductionMethods any                   `json:"production_methods"`
	MOQ               *float64              `json:"moq"`
	MOQDescription    any                   `json:"moq_description"`
	Certifications    any                   `json:"certifications"`
	Signals           *model.WebsiteSignals `json:"website_signals"`
	YearsInBusiness   *float64              `json:"years_in_business"`
}

func (e *Extractor) Extract(ctx context.Context, sourceURL, content string) (*model.Candidate, error) {
	capped := model.TruncateRunes(content, extractContentCap)

	prompt := fmt.Sprintf(`Extract manufacturer information from this website content:

URL: %s

Content:
%s

Return ONLY valid JSON, no markdown or explanation.`, sourceURL, capped)

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   2000,
		System:      []anthropic.SystemBlock{{Text: extractSystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: create message for %s", sourceURL)
	}

	var payload extractPayload
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &payload); err != nil {
		zap.L().Warn("extract: json parsing failed, building minimal record",
			zap.String("url", sourceURL),
			zap.Error(err),
		)
		return &model.Candidate{
			SourceURL:  sourceURL,
			Name:       nameFallback(content, sourceURL, e.titler),
			Website:    sourceURL,
			Confidence: model.ConfidenceLow,
			ScrapedAt:  time.Now().UTC(),
		}, nil
	}

	name := asString(payload.Name)
	if strings.TrimSpace(name) == "" {
		name = nameFallback(content, sourceURL, e.titler)
	}

	cand := &model.Candidate{
		SourceURL: sourceURL,
		Name:      name,
		Website:   sourceURL,
		Location:  asString(payload.Location),
		Contact: model.Contact{
			Email:   asString(payload.Email),
			Phone:   asString(payload.Phone),
			Address: asString(payload.Address),
		},
		Materials:         asStringList(payload.Materials),
		ProductionMethods: asStringList(payload.ProductionMethods),
		Certifications:    asStringList(payload.Certifications),
		MOQDescription:    asString(payload.MOQDescription),
		Signals:           payload.Signals,
		Confidence:        model.ConfidenceMedium,
		ScrapedAt:         time.Now().UTC(),
	}
	if payload.MOQ != nil {
		moq := int(*payload.MOQ)
		cand.MOQ = &moq
	}
	if payload.YearsInBusiness != nil {
		if cand.Signals == nil {
			cand.Signals = &model.WebsiteSignals{}
		}
		cand.Signals.YearsInBusiness = int(*payload.YearsInBusiness)
	}
	return cand, nil
}

// asString tolerates the LLM returning non-string values for string fields.
func asString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func asStringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// nameFallback guesses a company name from the first sensible content line,
// falling back to the title-cased domain.
func nameFallback(content, sourceURL string, titler cases.Caser) string {
	lines := strings.Split(content, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 5 && len(trimmed) < 100 {
			return trimmed
		}
	}

	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Host == "" {
		return sourceURL
	}
	domain := strings.TrimPrefix(parsed.Host, "www.")
	return titler.String(strings.Split(domain, ".")[0])
}
