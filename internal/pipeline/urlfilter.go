package pipeline

import (
	"net/url"
	"strings"
)

// b2bPlatforms host many suppliers on one domain, so deduplication for
// these keeps the full path. Standalone sites dedupe on domain alone.
var b2bPlatforms = []string{"alibaba", "indiamart", "made-in-china", "globalsources"}

// skipDomains are never manufacturer sites.
var skipDomains = []string{
	"google",
	"facebook",
	"linkedin",
	"instagram",
	"twitter",
	"youtube",
	"pinterest",
	"reddit",
	"wikipedia",
}

// CleanAndFilter drops non-manufacturer domains, normalizes URLs and
// deduplicates them. Input order is preserved.
func CleanAndFilter(urls []string) []string {
	var cleaned []string
	seenDomains := make(map[string]bool)
	seenURLs := make(map[string]bool)

	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			continue
		}
		domain := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

		if containsAnySubstring(domain, skipDomains) {
			continue
		}

		cleanURL := parsed.Scheme + "://" + parsed.Host
		if parsed.Path != "" && parsed.Path != "/" {
			cleanURL += parsed.Path
		}

		if containsAnySubstring(domain, b2bPlatforms) {
			if seenURLs[cleanURL] {
				continue
			}
			seenURLs[cleanURL] = true
		} else {
			if seenDomains[domain] {
				continue
			}
			seenDomains[domain] = true
		}

		cleaned = append(cleaned, cleanURL)
	}
	return cleaned
}

func containsAnySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
