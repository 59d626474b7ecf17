package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// JournalHeader is the header of a journal rows file.
var JournalHeader = []string{"reference", "date", "description", "account", "debit", "credit"}

const (
	dateFormat    = "2006-01-02"
	rowsNumFields = 6
	rowsColRef    = 0
	rowsColDate   = 1
	rowsColDesc   = 2
	rowsColAcct   = 3
	rowsColDebit  = 4
	rowsColCredit = 5
)

// JournalParser reads journal rows files: one line per journal item,
// grouped into journals by reference.
type JournalParser struct{}

// Format returns the parser name.
func (p *JournalParser) Format() string { return "journal" }

// Parse reads a journal rows CSV. The header must match JournalHeader.
func (p *JournalParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = rowsNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}
	for i, want := range JournalHeader {
		if got := strings.ToLower(strings.TrimSpace(records[0][i])); got != want {
			return nil, fmt.Errorf("header column %d: expected %q, got %q", i+1, want, got)
		}
	}

	var rows []Row
	for i, rec := range records[1:] {
		rows = append(rows, Row{
			Line:        i + 2,
			Reference:   strings.TrimSpace(rec[rowsColRef]),
			Date:        strings.TrimSpace(rec[rowsColDate]),
			Description: rec[rowsColDesc],
			Account:     strings.TrimSpace(rec[rowsColAcct]),
			Debit:       rec[rowsColDebit],
			Credit:      rec[rowsColCredit],
		})
	}
	return rows, nil
}
