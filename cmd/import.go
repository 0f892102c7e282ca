package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/sheet"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import manufacturers from an existing workbook or CSV",
	Long: `Import loads manufacturers from a results workbook (.xlsx) or a CSV of
URLs into the database. Imported source URLs join the search history, so
future runs skip them, and imported rows can be rescored and exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rescore"); err != nil {
			return err
		}

		var (
			cands []model.Candidate
			err   error
		)
		switch strings.ToLower(filepath.Ext(importFile)) {
		case ".xlsx":
			cands, err = sheet.NewWriter(importFile).Read()
		case ".csv":
			cands, err = readURLCSV(importFile)
		default:
			return eris.Errorf("unsupported import format: %s", importFile)
		}
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Println("Nothing to import")
			return nil
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.CreateRun(ctx, model.Criteria{
			Notes:     fmt.Sprintf("imported from %s", filepath.Base(importFile)),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		added, err := st.AppendCandidates(ctx, run.ID, cands)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d of %d manufacturers (run %s)\n", added, len(cands), run.ID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "workbook or CSV to import")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// readURLCSV reads minimal candidates from a CSV of URLs. The URL column is
// located by header when one is present; otherwise the first column is used.
func readURLCSV(path string) ([]model.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open csv %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	urlCol := 0
	first := true
	var cands []model.Candidate
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read csv %s", path)
		}
		if len(record) == 0 {
			continue
		}

		if first {
			first = false
			if col, ok := findURLColumn(record); ok {
				urlCol = col
				continue
			}
		}
		if urlCol >= len(record) {
			continue
		}
		u := strings.TrimSpace(record[urlCol])
		if u == "" || !strings.Contains(u, "://") {
			continue
		}
		cands = append(cands, model.Candidate{
			SourceURL:  u,
			Website:    u,
			Confidence: model.ConfidenceLow,
			ScrapedAt:  time.Now().UTC(),
		})
	}
	return cands, nil
}

func findURLColumn(header []string) (int, bool) {
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "url", "source url", "source_url", "website":
			return i, true
		}
	}
	return 0, false
}
