// Package sheet maintains the cumulative manufacturer workbook.
package sheet

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sourcing-cli/internal/model"
)

const (
	candidateSheet = "Manufacturers"
	failureSheet   = "Failed URLs"

	dateAddedFormat = "2006-01-02 15:04 MST"
)

// Column layout of the candidate sheet. Source URL position matters: it is
// the dedup key when appending to an existing workbook.
var candidateHeaders = []string{
	"Rank",
	"Name",
	"Location",
	"Website",
	"MOQ",
	"Match Score",
	"Confidence",
	"Materials",
	"Certifications",
	"Production Methods",
	"Email",
	"Phone",
	"Address",
	"Notes",
	"Source URL",
	"Date Added",
}

const (
	colSourceURL = 14
	colDateAdded = 15
)

// Writer appends candidates to a cumulative workbook on disk. The workbook
// survives across runs; rows are only ever added, keyed by source URL.
type Writer struct {
	path string
	loc  *time.Location
	now  func() time.Time
}

func NewWriter(path string) *Writer {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		loc = time.UTC
	}
	return &Writer{path: path, loc: loc, now: time.Now}
}

// ExistingURLs reads the source URLs already present in the workbook. A
// missing file yields an empty set.
func (w *Writer) ExistingURLs() (map[string]bool, error) {
	seen := make(map[string]bool)

	f, err := xlsx.OpenFile(w.path)
	if err != nil {
		if _, statErr := os.Stat(w.path); os.IsNotExist(statErr) {
			return seen, nil
		}
		return nil, eris.Wrap(err, "sheet: open workbook")
	}

	sh, ok := f.Sheet[candidateSheet]
	if !ok {
		return seen, nil
	}
	for i, row := range sh.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) > colSourceURL {
			if u := row.Cells[colSourceURL].String(); u != "" {
				seen[u] = true
			}
		}
	}
	return seen, nil
}

// Append adds candidates not yet present in the workbook and reports how
// many rows were written. Candidates should arrive sorted by score; rank is
// assigned from row position.
func (w *Writer) Append(cands []model.Candidate) (int, error) {
	f, sh, err := w.openOrCreate()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	for i, row := range sh.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) > colSourceURL {
			seen[row.Cells[colSourceURL].String()] = true
		}
	}

	dateAdded := w.now().In(w.loc).Format(dateAddedFormat)
	added := 0
	for _, c := range cands {
		if seen[c.SourceURL] {
			continue
		}
		seen[c.SourceURL] = true
		rank := len(sh.Rows) // header occupies row 0
		w.writeCandidateRow(sh.AddRow(), rank, c, dateAdded)
		added++
	}

	if added == 0 && len(sh.Rows) > 1 {
		return 0, nil
	}
	if err := w.save(f); err != nil {
		return 0, err
	}
	return added, nil
}

// Rewrite replaces every candidate row with rescored data, preserving each
// row's original Date Added value where the URL was present before.
func (w *Writer) Rewrite(cands []model.Candidate) error {
	dates := make(map[string]string)
	if existing, err := xlsx.OpenFile(w.path); err == nil {
		if sh, ok := existing.Sheet[candidateSheet]; ok {
			for i, row := range sh.Rows {
				if i == 0 || len(row.Cells) <= colDateAdded {
					continue
				}
				dates[row.Cells[colSourceURL].String()] = row.Cells[colDateAdded].String()
			}
		}
	}

	f := xlsx.NewFile()
	sh, err := f.AddSheet(candidateSheet)
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}
	writeHeader(sh, candidateHeaders)

	stamp := w.now().In(w.loc).Format(dateAddedFormat)
	for i, c := range cands {
		dateValue := "Rescored " + stamp
		if orig := dates[c.SourceURL]; orig != "" {
			dateValue = fmt.Sprintf("%s (rescored %s)", orig, stamp)
		}
		w.writeCandidateRow(sh.AddRow(), i+1, c, dateValue)
	}
	return w.save(f)
}

// WriteFailures writes the failure manifest to its own workbook next to the
// main one. No file is written when there are no failures.
func WriteFailures(path string, failures []model.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}

	f := xlsx.NewFile()
	sh, err := f.AddSheet(failureSheet)
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}
	writeHeader(sh, []string{"#", "URL", "Phase", "Error Reason"})

	for i, fr := range failures {
		row := sh.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(sanitize(fr.URL))
		row.AddCell().SetString(string(fr.Phase))
		row.AddCell().SetString(sanitize(fr.Reason))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "sheet: save failures workbook")
	}
	return nil
}

func (w *Writer) openOrCreate() (*xlsx.File, *xlsx.Sheet, error) {
	if _, err := os.Stat(w.path); err == nil {
		f, openErr := xlsx.OpenFile(w.path)
		if openErr != nil {
			return nil, nil, eris.Wrap(openErr, "sheet: open workbook")
		}
		if sh, ok := f.Sheet[candidateSheet]; ok {
			return f, sh, nil
		}
		sh, addErr := f.AddSheet(candidateSheet)
		if addErr != nil {
			return nil, nil, eris.Wrap(addErr, "sheet: add sheet")
		}
		writeHeader(sh, candidateHeaders)
		return f, sh, nil
	}

	f := xlsx.NewFile()
	sh, err := f.AddSheet(candidateSheet)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sheet: add sheet")
	}
	writeHeader(sh, candidateHeaders)
	return f, sh, nil
}

// save writes through a temp file so a crash mid-save never corrupts the
// cumulative workbook.
func (w *Writer) save(f *xlsx.File) error {
	tmp := w.path + ".tmp"
	if err := f.Save(tmp); err != nil {
		return eris.Wrap(err, "sheet: save workbook")
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return eris.Wrap(err, "sheet: replace workbook")
	}
	return nil
}

func (w *Writer) writeCandidateRow(row *xlsx.Row, rank int, c model.Candidate, dateAdded string) {
	row.AddCell().SetInt(rank)
	row.AddCell().SetString(sanitize(c.Name))
	row.AddCell().SetString(sanitize(c.Location))
	row.AddCell().SetString(sanitize(c.Website))
	row.AddCell().SetString(moqCell(c))
	row.AddCell().SetFloatWithFormat(c.MatchScore, "0.0")
	row.AddCell().SetString(string(c.Confidence))
	row.AddCell().SetString(sanitize(strings.Join(c.Materials, ", ")))
	row.AddCell().SetString(sanitize(strings.Join(c.Certifications, ", ")))
	row.AddCell().SetString(sanitize(strings.Join(c.ProductionMethods, ", ")))
	row.AddCell().SetString(sanitize(c.Contact.Email))
	row.AddCell().SetString(sanitize(c.Contact.Phone))
	row.AddCell().SetString(sanitize(c.Contact.Address))
	row.AddCell().SetString(sanitize(c.Rationale))
	row.AddCell().SetString(sanitize(c.SourceURL))
	row.AddCell().SetString(dateAdded)
}

func writeHeader(sh *xlsx.Sheet, headers []string) {
	row := sh.AddRow()
	style := xlsx.NewStyle()
	style.Font.Bold = true
	for _, h := range headers {
		cell := row.AddCell()
		cell.SetString(h)
		cell.SetStyle(style)
	}
}

func moqCell(c model.Candidate) string {
	if c.MOQ != nil {
		return strconv.Itoa(*c.MOQ)
	}
	return sanitize(c.MOQDescription)
}

// sanitize strips control characters spreadsheet software cannot store.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || (r >= 0x7F && r <= 0x9F):
			return -1
		}
		return r
	}, s)
}
