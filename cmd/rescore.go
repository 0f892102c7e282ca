package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/sheet"
)

var (
	rescoreCriteriaPath string
	rescoreRunID        string
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Re-score stored manufacturers against new criteria",
	Long: `Rescore re-runs the scoring engine over manufacturers already in the
database, without searching or scraping, and rewrites the results workbook.
Original Date Added values are preserved with a rescored annotation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rescore"); err != nil {
			return err
		}
		criteria, err := loadCriteria(rescoreCriteriaPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p := pipeline.New(cfg, st, nil, nil, nil, nil, nil, pipeline.LogSink{})
		cands, err := p.Rescore(ctx, rescoreRunID, criteria)
		if err != nil {
			return err
		}

		w := sheet.NewWriter(cfg.Sheet.Path)
		if err := w.Rewrite(cands); err != nil {
			return err
		}

		fmt.Printf("Rescored %d manufacturers\n", len(cands))
		return nil
	},
}

func init() {
	rescoreCmd.Flags().StringVarP(&rescoreCriteriaPath, "criteria", "c", "criteria.yaml", "path to the sourcing criteria YAML file")
	rescoreCmd.Flags().StringVar(&rescoreRunID, "run", "", "limit rescoring to a single run ID (default: all)")
	rootCmd.AddCommand(rescoreCmd)
}
