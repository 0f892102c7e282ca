package model

import (
	"time"
	"unicode/utf8"
)

// Phase identifies where a sourcing run is in its lifecycle. Phases advance
// forward only; Error and Complete are terminal.
type Phase string

const (
	PhaseInit               Phase = "init"
	PhaseCollectingCriteria Phase = "collecting_criteria"
	PhaseGeneratingQueries  Phase = "generating_queries"
	PhaseSearching          Phase = "searching"
	PhaseScraping           Phase = "scraping"
	PhaseEvaluating         Phase = "evaluating"
	PhaseOutputting         Phase = "outputting"
	PhaseComplete           Phase = "complete"
	PhaseError              Phase = "error"
)

// phaseOrder defines the forward progression. Error is reachable from any
// non-terminal phase and is not part of the linear order.
var phaseOrder = map[Phase]int{
	PhaseInit:               0,
	PhaseCollectingCriteria: 1,
	PhaseGeneratingQueries:  2,
	PhaseSearching:          3,
	PhaseScraping:           4,
	PhaseEvaluating:         5,
	PhaseOutputting:         6,
	PhaseComplete:           7,
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// CanAdvanceTo reports whether transitioning from p to next is legal:
// forward through the linear order, or to Error from any non-terminal phase.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseError {
		return true
	}
	cur, ok := phaseOrder[p]
	if !ok {
		return false
	}
	nxt, ok := phaseOrder[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// FailureRecord notes one URL that could not be carried through the pipeline,
// with the phase it failed in and a short reason. Failures are reported
// alongside results, never hidden.
type FailureRecord struct {
	URL    string `json:"url"`
	Phase  Phase  `json:"phase"`
	Reason string `json:"reason"`
}

// RunState is a point-in-time snapshot of a run's progress. CurrentStep names
// the work in flight, Detail carries a human-readable status line, and
// ErrorMessage holds the failure message (truncated to 500 characters) when
// the run ends in error. CompletedAt is nil until the run reaches a terminal
// phase.
type RunState struct {
	RunID        string     `json:"run_id"`
	Phase        Phase      `json:"phase"`
	ProgressPct  int        `json:"progress_pct"`
	CurrentStep  string     `json:"current_step,omitempty"`
	Detail       string     `json:"detail,omitempty"`
	TotalFound   int        `json:"total_found"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Run pairs the criteria a search was started with and its latest state.
type Run struct {
	ID        string    `json:"id"`
	Criteria  Criteria  `json:"criteria"`
	State     RunState  `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is the final outcome of a completed run.
type Result struct {
	RunID      string          `json:"run_id"`
	Criteria   Criteria        `json:"criteria"`
	Candidates []Candidate     `json:"candidates"`
	Failures   []FailureRecord `json:"failures,omitempty"`
	TotalFound int             `json:"total_found"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// TruncateDetail shortens an error or status message for storage in a
// RunState. Messages longer than 500 bytes are cut at a rune boundary.
func TruncateDetail(s string) string {
	const max = 500
	return TruncateRunes(s, max)
}

// TruncateRunes cuts s to at most max bytes without splitting a multi-byte
// rune, backing up to the nearest rune start.
func TruncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
