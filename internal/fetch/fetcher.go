// Package fetch retrieves manufacturer websites and reduces them to
// plaintext suitable for LLM extraction.
package fetch

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const truncationMarker = "\n\n[Content truncated...]"

// Browser-like headers keep manufacturer sites from serving bot walls.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// The retry attempt presents a different browser fingerprint.
const altUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls fetching behavior.
type Config struct {
	// Timeout bounds a single request. Default: 15s.
	Timeout time.Duration

	// Delay is the minimum spacing between requests. Default: 1s.
	Delay time.Duration

	// MaxContentLen truncates extracted text beyond this many bytes.
	// Default: 10000.
	MaxContentLen int

	// Retries is the number of additional attempts after a failure.
	// Default: 1.
	Retries int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.MaxContentLen <= 0 {
		c.MaxContentLen = 10000
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return c
}

// Fetcher downloads pages politely: one request at a time per Fetcher, paced
// by the configured delay.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
	}
}

// Fetch retrieves a URL and returns its visible text. A failed attempt is
// retried after a short pause with an alternate user agent, which gets past
// sites that block on the first fingerprint.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "fetch: rate limit wait")
	}

	text, err := f.fetchOnce(ctx, targetURL, defaultHeaders["User-Agent"])
	if err == nil {
		return text, nil
	}

	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		zap.L().Debug("retrying fetch with alternate user agent",
			zap.String("url", targetURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(2 * time.Second):
		}

		text, err = f.fetchOnce(ctx, targetURL, altUserAgent)
		if err == nil {
			return text, nil
		}
	}

	return "", err
}

func (f *Fetcher) fetchOnce(ctx context.Context, targetURL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create request")
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: get %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("fetch: %s returned status %d", targetURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse %s", targetURL)
	}

	text := ExtractText(doc)
	if text == "" {
		return "", eris.Errorf("fetch: %s yielded no text content", targetURL)
	}

	return f.truncate(text), nil
}

// ExtractText strips boilerplate elements and returns the document's visible
// text, one trimmed line per text node line, blank lines removed.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header").Remove()

	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (f *Fetcher) truncate(text string) string {
	if len(text) <= f.cfg.MaxContentLen {
		return text
	}
	// Back up to a rune boundary so multi-byte characters are never split.
	cut := f.cfg.MaxContentLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}
