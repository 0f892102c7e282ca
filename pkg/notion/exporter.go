package notion

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// richTextLimit is Notion's per-block content cap.
const richTextLimit = 2000

// Exporter pushes candidates into a Notion database, one page per
// manufacturer, deduplicated on the Source URL property.
type Exporter struct {
	client Client
	dbID   string
	now    func() time.Time
}

func NewExporter(client Client, dbID string) *Exporter {
	return &Exporter{client: client, dbID: dbID, now: time.Now}
}

// Sync creates a page for every candidate not already in the database and
// returns how many were added. Per-page failures are logged and skipped so
// one bad record does not abort the sync.
func (e *Exporter) Sync(ctx context.Context, cands []model.Candidate) (int, error) {
	existing, err := e.existingSourceURLs(ctx)
	if err != nil {
		return 0, err
	}
	zap.L().Info("notion: existing manufacturers", zap.Int("count", len(existing)))

	added := 0
	for _, c := range cands {
		if existing[c.SourceURL] {
			continue
		}
		if _, createErr := e.client.CreatePage(ctx, e.pageRequest(c)); createErr != nil {
			zap.L().Warn("notion: failed to add manufacturer",
				zap.String("name", c.Name),
				zap.Error(createErr),
			)
			continue
		}
		existing[c.SourceURL] = true
		added++
	}

	zap.L().Info("notion: sync complete", zap.Int("added", added))
	return added, nil
}

// existingSourceURLs pages through the database collecting every Source URL.
func (e *Exporter) existingSourceURLs(ctx context.Context) (map[string]bool, error) {
	urls := make(map[string]bool)

	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	for {
		resp, err := e.client.QueryDatabase(ctx, e.dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: list existing pages")
		}
		for _, page := range resp.Results {
			if prop, ok := page.Properties["Source URL"].(*notionapi.URLProperty); ok && prop.URL != "" {
				urls[prop.URL] = true
			}
		}
		if !resp.HasMore {
			return urls, nil
		}
		req = &notionapi.DatabaseQueryRequest{PageSize: 100, StartCursor: resp.NextCursor}
	}
}

func (e *Exporter) pageRequest(c model.Candidate) *notionapi.PageCreateRequest {
	name := c.Name
	if name == "" {
		name = "Unknown"
	}
	dateAdded := notionapi.Date(e.now())

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: name}}},
		},
		"Match Score": notionapi.NumberProperty{
			Number: c.MatchScore,
		},
		"Location":           richText(c.Location),
		"MOQ":                richText(moqText(c)),
		"Confidence":         richText(string(c.Confidence)),
		"Materials":          richText(strings.Join(c.Materials, ", ")),
		"Certifications":     richText(strings.Join(c.Certifications, ", ")),
		"Production Methods": richText(strings.Join(c.ProductionMethods, ", ")),
		"Address":            richText(c.Contact.Address),
		"Notes":              richText(c.Rationale),
		"Source URL": notionapi.URLProperty{
			URL: c.SourceURL,
		},
		"Date Added": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &dateAdded},
		},
	}
	if c.Website != "" {
		props["Website"] = notionapi.URLProperty{URL: c.Website}
	}
	if c.Contact.Email != "" {
		props["Email"] = notionapi.EmailProperty{Email: c.Contact.Email}
	}
	if c.Contact.Phone != "" {
		props["Phone"] = notionapi.PhoneNumberProperty{PhoneNumber: c.Contact.Phone}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(e.dbID),
		},
		Properties: props,
	}
}

func richText(content string) notionapi.RichTextProperty {
	if len(content) > richTextLimit {
		content = content[:richTextLimit]
	}
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: content}}},
	}
}

func moqText(c model.Candidate) string {
	if c.MOQ != nil {
		return strconv.Itoa(*c.MOQ)
	}
	return c.MOQDescription
}
