package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent search runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rescore"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPHASE\tPROGRESS\tCREATED\tCRITERIA")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n",
				r.ID, r.State.Phase, r.State.ProgressPct,
				r.CreatedAt.Format("2006-01-02 15:04"), r.Criteria.Summary())
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
