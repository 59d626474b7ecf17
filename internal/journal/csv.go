package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header for a journal items export.
var Header = []string{"reference", "date", "status", "description", "line", "account", "debit", "credit"}

const (
	numFields  = 8
	dateFormat = "2006-01-02"
	colRef     = 0
	colDate    = 1
	colStatus  = 2
	colDesc    = 3
	colLine    = 4
	colAccount = 5
	colDebit   = 6
	colCredit  = 7
)

// WriteItems writes one row per journal item. codeOf maps an account ID to
// the code printed in the account column.
func WriteItems(w io.Writer, journals []model.Journal, codeOf func(accountID string) string, precision int32) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, j := range journals {
		for _, it := range j.Items {
			if err := cw.Write(MarshalItem(j, it, codeOf(it.AccountID), precision)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalItem converts a journal item to a CSV row.
func MarshalItem(j model.Journal, it model.JournalItem, accountCode string, precision int32) []string {
	rec := make([]string, numFields)
	rec[colRef] = j.Reference
	rec[colDate] = j.Date.Format(dateFormat)
	rec[colStatus] = string(j.Status)
	rec[colDesc] = j.Description
	rec[colLine] = strconv.Itoa(it.Line)
	rec[colAccount] = accountCode

	if !it.Debit.IsZero() {
		rec[colDebit] = it.Debit.StringFixed(precision)
	}
	if !it.Credit.IsZero() {
		rec[colCredit] = it.Credit.StringFixed(precision)
	}
	return rec
}
