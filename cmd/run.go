package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/fetch"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/sheet"
	"github.com/sells-group/sourcing-cli/internal/store"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
	"github.com/sells-group/sourcing-cli/pkg/brave"
)

var (
	runCriteriaPath string
	runMaxResults   int
	runFailurePath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full sourcing search",
	Long: `Run generates queries from the criteria file, searches, scrapes,
extracts, scores, and appends new manufacturers to the results workbook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		criteria, err := loadCriteria(runCriteriaPath)
		if err != nil {
			return err
		}
		if runMaxResults > 0 {
			if runMaxResults > 50 {
				return eris.Errorf("--max must be between 1 and 50, got %d", runMaxResults)
			}
			cfg.Pipeline.MaxResults = runMaxResults
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p, meter := buildPipeline(cfg, st, pipeline.LogSink{})
		result, err := p.Run(ctx, criteria)
		logSpend(meter)
		if err != nil {
			return err
		}

		added, err := writeWorkbook(cfg, result)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s complete: %d found, %d scored, %d new rows, %d failures\n",
			result.RunID, result.TotalFound, len(result.Candidates), added, len(result.Failures))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runCriteriaPath, "criteria", "c", "criteria.yaml", "path to the sourcing criteria YAML file")
	runCmd.Flags().IntVar(&runMaxResults, "max", 0, "override pipeline.max_results")
	runCmd.Flags().StringVar(&runFailurePath, "failures", "failed_urls.xlsx", "path for the failed URL workbook")
	rootCmd.AddCommand(runCmd)
}

// loadCriteria reads a Criteria YAML file and stamps CreatedAt if unset.
func loadCriteria(path string) (model.Criteria, error) {
	var criteria model.Criteria
	data, err := os.ReadFile(path)
	if err != nil {
		return criteria, eris.Wrapf(err, "read criteria file %s", path)
	}
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return criteria, eris.Wrapf(err, "parse criteria file %s", path)
	}
	if criteria.CreatedAt.IsZero() {
		criteria.CreatedAt = time.Now().UTC()
	}
	return criteria, nil
}

// buildPipeline wires the LLM, search, and fetch clients into a Pipeline.
// The returned meter accumulates Claude spend across every pipeline call.
func buildPipeline(cfg *config.Config, st store.Store, sink pipeline.ProgressSink) (*pipeline.Pipeline, *cost.Meter) {
	llm := cost.NewMeter(anthropic.NewClient(cfg.Anthropic.Key), nil)
	searcher := brave.NewClient(cfg.Brave.Key, brave.WithBaseURL(cfg.Brave.BaseURL))
	fetcher := fetch.New(fetch.Config{
		Timeout:       time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
		Delay:         time.Duration(cfg.Scrape.DelayMs) * time.Millisecond,
		MaxContentLen: cfg.Scrape.MaxContentLen,
		Retries:       cfg.Scrape.Retries,
	})

	p := pipeline.New(
		cfg,
		st,
		pipeline.NewGenerator(llm, cfg.Anthropic.Model, 0),
		pipeline.NewBraveResolver(searcher, cfg.Brave.ResultsPerPage),
		fetcher,
		pipeline.NewExtractor(llm, cfg.Anthropic.Model),
		nil,
		sink,
	)
	return p, llm
}

// logSpend reports accumulated Claude usage.
func logSpend(meter *cost.Meter) {
	totals := meter.Totals()
	if totals.Calls == 0 {
		return
	}
	zap.L().Info("claude usage",
		zap.Int("calls", totals.Calls),
		zap.Int64("input_tokens", totals.InputTokens),
		zap.Int64("output_tokens", totals.OutputTokens),
		zap.Float64("usd", totals.USD),
	)
}

// writeWorkbook appends the run's candidates to the cumulative workbook and
// writes the failure manifest alongside it.
func writeWorkbook(cfg *config.Config, result *model.Result) (int, error) {
	w := sheet.NewWriter(cfg.Sheet.Path)
	added, err := w.Append(result.Candidates)
	if err != nil {
		return 0, err
	}
	if len(result.Failures) > 0 {
		if err := sheet.WriteFailures(runFailurePath, result.Failures); err != nil {
			zap.L().Warn("write failure workbook", zap.Error(err))
		}
	}
	return added, nil
}
