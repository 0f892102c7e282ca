package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAndFilterSkipsNonManufacturerDomains(t *testing.T) {
	got := CleanAndFilter([]string{
		"https://www.google.com/search?q=activewear",
		"https://www.facebook.com/somefactory",
		"https://en.wikipedia.org/wiki/Textile",
		"https://alpha-textiles.example.com/about",
	})
	assert.Equal(t, []string{"https://alpha-textiles.example.com/about"}, got)
}

func TestCleanAndFilterDedupesStandaloneSitesByDomain(t *testing.T) {
	got := CleanAndFilter([]string{
		"https://alpha.example.com/home",
		"https://www.alpha.example.com/contact",
		"https://alpha.example.com/about",
	})
	// One URL per standalone domain, first occurrence wins.
	assert.Equal(t, []string{"https://alpha.example.com/home"}, got)
}

func TestCleanAndFilterDedupesB2BByPath(t *testing.T) {
	got := CleanAndFilter([]string{
		"https://www.alibaba.com/supplier/alpha",
		"https://www.alibaba.com/supplier/beta",
		"https://www.alibaba.com/supplier/alpha",
	})
	assert.Equal(t, []string{
		"https://www.alibaba.com/supplier/alpha",
		"https://www.alibaba.com/supplier/beta",
	}, got)
}

func TestCleanAndFilterStripsQueryAndFragment(t *testing.T) {
	got := CleanAndFilter([]string{
		"https://alpha.example.com/about?utm_source=brave#team",
	})
	assert.Equal(t, []string{"https://alpha.example.com/about"}, got)
}

func TestCleanAndFilterDropsRootPathSlash(t *testing.T) {
	got := CleanAndFilter([]string{"https://alpha.example.com/"})
	assert.Equal(t, []string{"https://alpha.example.com"}, got)
}

func TestCleanAndFilterIgnoresMalformed(t *testing.T) {
	got := CleanAndFilter([]string{"not a url", "://missing-scheme", ""})
	assert.Empty(t, got)
}

func TestFilterSeen(t *testing.T) {
	seen := map[string]bool{"https://old.example.com": true}
	urls := []string{"https://old.example.com", "https://new.example.com"}

	got := FilterSeen(urls, seen)
	assert.Equal(t, []string{"https://new.example.com"}, got)

	// Applying the same filter again changes nothing.
	assert.Equal(t, got, FilterSeen(got, seen))
}

func TestFilterSeenEmptyHistory(t *testing.T) {
	urls := []string{"https://a.example.com", "https://b.example.com"}
	assert.Equal(t, urls, FilterSeen(urls, map[string]bool{}))
	assert.Equal(t, urls, FilterSeen(urls, nil))
}
