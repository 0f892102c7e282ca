package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/scoring"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// Query is a single search query with the strategy that produced it.
type Query struct {
	Text     string `json:"query"`
	Strategy string `json:"strategy,omitempty"`
}

// QueryGenerator turns criteria into a set of diverse search queries.
type QueryGenerator interface {
	Generate(ctx context.Context, criteria model.Criteria) ([]Query, error)
}

// URLResolver executes one search query and returns result URLs.
type URLResolver interface {
	Resolve(ctx context.Context, query string) ([]string, error)
}

// ContentFetcher retrieves the readable text of a page.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FactExtractor pulls structured manufacturer data out of page text.
type FactExtractor interface {
	Extract(ctx context.Context, url, content string) (*model.Candidate, error)
}

// Pipeline orchestrates a sourcing run from criteria to ranked candidates.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	queries QueryGenerator
	search  URLResolver
	fetch   ContentFetcher
	extract FactExtractor
	engine  *scoring.Engine
	sink    ProgressSink
}

// New creates a Pipeline with all collaborators wired in. A nil sink
// disables progress reporting.
func New(
	cfg *config.Config,
	st store.Store,
	queries QueryGenerator,
	search URLResolver,
	fetch ContentFetcher,
	extract FactExtractor,
	engine *scoring.Engine,
	sink ProgressSink,
) *Pipeline {
	if engine == nil {
		engine = scoring.NewEngine(nil)
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		queries: queries,
		search:  search,
		fetch:   fetch,
		extract: extract,
		engine:  engine,
		sink:    sink,
	}
}

type fetched struct {
	url     string
	content string
}

// Run creates a run record and executes the full sourcing pipeline for one
// set of criteria.
func (p *Pipeline) Run(ctx context.Context, criteria model.Criteria) (*model.Result, error) {
	zap.L().Info("pipeline: starting run", zap.String("criteria", criteria.Summary()))
	run, err := p.store.CreateRun(ctx, criteria)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return p.Execute(ctx, run)
}

// Execute drives an already-created run through every phase. Callers that
// need the run ID before completion create the run themselves and hand it
// here.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) (*model.Result, error) {
	started := time.Now().UTC()
	criteria := run.Criteria
	log := zap.L().With(zap.String("run_id", run.ID))

	result := &model.Result{
		RunID:     run.ID,
		Criteria:  criteria,
		StartedAt: started,
	}

	state := run.State
	state.RunID = run.ID
	state.StartedAt = started

	advance := func(phase model.Phase, pct int, step, detail string) {
		if phase != state.Phase && !state.Phase.CanAdvanceTo(phase) {
			log.Warn("pipeline: illegal phase transition skipped",
				zap.String("from", string(state.Phase)),
				zap.String("to", string(phase)),
			)
			return
		}
		state.Phase = phase
		state.ProgressPct = pct
		state.CurrentStep = step
		state.Detail = model.TruncateDetail(detail)
		state.TotalFound = result.TotalFound
		state.UpdatedAt = time.Now().UTC()
		if saveErr := p.store.SaveState(ctx, state); saveErr != nil {
			log.Warn("pipeline: failed to save state", zap.Error(saveErr))
		}
		p.sink.Update(state)
	}

	fail := func(cause error, detail string) (*model.Result, error) {
		now := time.Now().UTC()
		state.ErrorMessage = model.TruncateDetail(detail)
		state.CompletedAt = &now
		// Progress stays where the run stopped; only the phase flips to error.
		advance(model.PhaseError, state.ProgressPct, "run failed", detail)
		result.FinishedAt = now
		return result, cause
	}

	finish := func(detail string) (*model.Result, error) {
		advance(model.PhaseOutputting, 95, "saving results", "")
		if len(result.Failures) > 0 {
			if recErr := p.store.RecordFailures(ctx, run.ID, result.Failures); recErr != nil {
				log.Warn("pipeline: failed to record failures", zap.Error(recErr))
			}
		}
		now := time.Now().UTC()
		state.CompletedAt = &now
		advance(model.PhaseComplete, 100, "done", detail)
		result.FinishedAt = now
		log.Info("pipeline: run complete",
			zap.Int("candidates", len(result.Candidates)),
			zap.Int("failures", len(result.Failures)),
		)
		return result, nil
	}

	// Query generation. A generation failure ends the run with zero results,
	// recorded in the failure manifest, rather than aborting it.
	advance(model.PhaseGeneratingQueries, 10, "generating search queries", "")
	queries, err := p.queries.Generate(ctx, criteria)
	if err != nil {
		log.Warn("pipeline: query generation failed", zap.Error(err))
		result.Failures = append(result.Failures, model.FailureRecord{
			URL:    criteria.Summary(),
			Phase:  model.PhaseGeneratingQueries,
			Reason: err.Error(),
		})
		return finish("no search queries produced")
	}
	advance(model.PhaseGeneratingQueries, 20, "search queries ready", "")
	if len(queries) == 0 {
		log.Warn("pipeline: no queries generated")
		return finish("no search queries produced")
	}

	// Search.
	advance(model.PhaseSearching, 30, "executing search queries", "")
	var rawURLs []string
	for _, q := range queries {
		urls, searchErr := p.search.Resolve(ctx, q.Text)
		if searchErr != nil {
			log.Warn("pipeline: search query failed",
				zap.String("query", q.Text),
				zap.Error(searchErr),
			)
			result.Failures = append(result.Failures, model.FailureRecord{
				URL:    q.Text,
				Phase:  model.PhaseSearching,
				Reason: searchErr.Error(),
			})
			continue
		}
		rawURLs = append(rawURLs, urls...)
		if len(rawURLs) >= p.cfg.Pipeline.MaxResults*2 {
			break
		}
	}

	urls := CleanAndFilter(rawURLs)

	// URL history is an optimization. When it cannot be loaded the run
	// proceeds without cross-run dedup instead of aborting.
	seen, err := p.store.SeenSourceURLs(ctx)
	if err != nil {
		log.Warn("pipeline: url history unavailable, skipping cross-run dedup", zap.Error(err))
		seen = map[string]bool{}
	}
	urls = FilterSeen(urls, seen)
	if len(urls) > p.cfg.Pipeline.MaxResults {
		urls = urls[:p.cfg.Pipeline.MaxResults]
	}
	result.TotalFound = len(urls)

	advance(model.PhaseSearching, 40, "search complete", fmt.Sprintf("%d new urls", len(urls)))
	if len(urls) == 0 {
		log.Info("pipeline: no new urls to process")
		return finish("no new manufacturer urls found")
	}

	// Scrape, bounded by max_concurrency. Per-URL failures never abort the
	// run; they go into the failure manifest.
	advance(model.PhaseScraping, 50, "scraping manufacturer pages", "")

	var mu sync.Mutex
	var pages []fetched

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.MaxConcurrency)
	for _, u := range urls {
		g.Go(func() error {
			content, fetchErr := p.fetch.Fetch(gCtx, u)
			mu.Lock()
			defer mu.Unlock()
			if fetchErr != nil {
				result.Failures = append(result.Failures, model.FailureRecord{
					URL:    u,
					Phase:  model.PhaseScraping,
					Reason: fetchErr.Error(),
				})
				return nil
			}
			pages = append(pages, fetched{url: u, content: content})
			return nil
		})
	}
	_ = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fail(eris.Wrap(ctxErr, "pipeline: scrape"), ctxErr.Error())
	}

	// Keep page order stable regardless of fetch completion order.
	pos := make(map[string]int, len(urls))
	for i, u := range urls {
		pos[u] = i
	}
	sort.Slice(pages, func(i, j int) bool { return pos[pages[i].url] < pos[pages[j].url] })

	advance(model.PhaseScraping, 65, "scraping complete", fmt.Sprintf("%d pages fetched", len(pages)))
	if len(pages) == 0 {
		log.Warn("pipeline: all page fetches failed")
		return finish("no pages could be scraped")
	}

	// Extract.
	advance(model.PhaseEvaluating, 70, "extracting manufacturer data", "")
	var candidates []model.Candidate
	for _, pg := range pages {
		cand, extractErr := p.extract.Extract(ctx, pg.url, pg.content)
		if extractErr != nil {
			log.Warn("pipeline: extraction failed",
				zap.String("url", pg.url),
				zap.Error(extractErr),
			)
			result.Failures = append(result.Failures, model.FailureRecord{
				URL:    pg.url,
				Phase:  model.PhaseEvaluating,
				Reason: extractErr.Error(),
			})
			continue
		}
		candidates = append(candidates, *cand)
	}

	// Score and rank. Stable sort keeps insertion order for equal scores.
	advance(model.PhaseEvaluating, 85, "scoring candidates", "")
	for i := range candidates {
		p.engine.Apply(&candidates[i], criteria)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})
	result.Candidates = candidates

	// Persist. Unlike per-URL failures, a storage failure is fatal.
	advance(model.PhaseOutputting, 95, "saving results", "")
	added, err := p.store.AppendCandidates(ctx, run.ID, candidates)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: persist candidates"), err.Error())
	}
	log.Info("pipeline: candidates persisted",
		zap.Int("extracted", len(candidates)),
		zap.Int("added", added),
	)
	if len(result.Failures) > 0 {
		if recErr := p.store.RecordFailures(ctx, run.ID, result.Failures); recErr != nil {
			log.Warn("pipeline: failed to record failures", zap.Error(recErr))
		}
	}

	now := time.Now().UTC()
	state.CompletedAt = &now
	advance(model.PhaseComplete, 100, "done", "run complete")
	result.FinishedAt = now
	log.Info("pipeline: run complete",
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// Rescore re-runs the scoring engine over stored candidates using the given
// criteria and persists the updated scores. An empty runID rescores all
// stored candidates.
func (p *Pipeline) Rescore(ctx context.Context, runID string, criteria model.Criteria) ([]model.Candidate, error) {
	cands, err := p.store.ListCandidates(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list candidates")
	}
	for i := range cands {
		p.engine.Apply(&cands[i], criteria)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].MatchScore > cands[j].MatchScore
	})
	if err := p.store.UpdateScores(ctx, cands); err != nil {
		return nil, eris.Wrap(err, "pipeline: update scores")
	}
	zap.L().Info("pipeline: rescore complete", zap.Int("candidates", len(cands)))
	return cands, nil
}
