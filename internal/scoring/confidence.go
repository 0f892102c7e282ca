package scoring

import (
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

var (
	b2bPlatforms     = []string{"alibaba.com", "indiamart.com", "makersrow.com", "thomasnet.com"}
	directoryMarkers = []string{"directory", "listing", "yellowpages"}
)

// assessConfidence classifies data trustworthiness from completeness, source
// quality, and verification signals. B2B platforms carry structured but
// self-reported data; a manufacturer's own site counts for more, a generic
// directory for less.
func (e *Engine) assessConfidence(cand model.Candidate) model.Confidence {
	completeness := cand.CompletenessPct()

	src := strings.ToLower(cand.SourceURL)
	mult := 1.2
	switch {
	case containsAny(src, b2bPlatforms):
		mult = 1.0
	case containsAny(src, directoryMarkers):
		mult = 0.8
	}

	bonus := 0.0
	if s := cand.Signals; s != nil {
		if s.MultipleSources {
			bonus += 10
		}
		if s.RecentUpdates {
			bonus += 5
		}
	}

	score := completeness*mult + bonus
	switch {
	case score >= 75:
		return model.ConfidenceHigh
	case score >= 50:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
