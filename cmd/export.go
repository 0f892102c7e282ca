package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/pkg/notion"
)

var exportRunID string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Sync scored manufacturers to Notion",
	Long: `Export uploads stored manufacturers to the configured Notion database.
Manufacturers whose Source URL already exists in the database are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cands, err := st.ListCandidates(ctx, exportRunID)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Println("Nothing to export")
			return nil
		}

		client := notion.NewClient(cfg.Notion.Token)
		exporter := notion.NewExporter(client, cfg.Notion.ManufacturerDB)
		created, err := exporter.Sync(ctx, cands)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d of %d manufacturers to Notion\n", created, len(cands))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "limit export to a single run ID (default: all)")
	rootCmd.AddCommand(exportCmd)
}
