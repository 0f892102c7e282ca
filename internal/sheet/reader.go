package sheet

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Read parses candidate rows back out of a results workbook. Rows without a
// source URL are skipped. List columns are split on the same separator
// Append joins them with.
func (w *Writer) Read() ([]model.Candidate, error) {
	f, err := xlsx.OpenFile(w.path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open workbook %s", w.path)
	}

	sh, ok := f.Sheet[candidateSheet]
	if !ok {
		return nil, eris.Errorf("sheet: workbook %s has no %q sheet", w.path, candidateSheet)
	}

	var cands []model.Candidate
	for i, row := range sh.Rows {
		if i == 0 || len(row.Cells) <= colSourceURL {
			continue
		}
		sourceURL := row.Cells[colSourceURL].String()
		if sourceURL == "" {
			continue
		}

		c := model.Candidate{
			SourceURL: sourceURL,
			Name:      cellAt(row, 1),
			Location:  cellAt(row, 2),
			Website:   cellAt(row, 3),
			Contact: model.Contact{
				Email:   cellAt(row, 10),
				Phone:   cellAt(row, 11),
				Address: cellAt(row, 12),
			},
			Materials:         splitList(cellAt(row, 7)),
			Certifications:    splitList(cellAt(row, 8)),
			ProductionMethods: splitList(cellAt(row, 9)),
			Confidence:        model.Confidence(strings.ToLower(cellAt(row, 6))),
			Rationale:         cellAt(row, 13),
		}

		if score, err := strconv.ParseFloat(cellAt(row, 5), 64); err == nil {
			c.MatchScore = score
		}
		if moqRaw := cellAt(row, 4); moqRaw != "" {
			if moq, err := strconv.Atoi(moqRaw); err == nil {
				c.MOQ = &moq
			} else {
				c.MOQDescription = moqRaw
			}
		}

		cands = append(cands, c)
	}
	return cands, nil
}

func cellAt(row *xlsx.Row, idx int) string {
	if idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].String())
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
