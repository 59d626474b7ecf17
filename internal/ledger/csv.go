package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Header is the CSV header for a trial balance export.
var Header = []string{"code", "name", "type", "debit", "credit", "balance"}

// WriteTrialBalance writes tb as CSV followed by a totals row.
func WriteTrialBalance(w io.Writer, tb TrialBalance, precision int32) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range tb.Rows {
		rec := []string{
			row.Account.Code,
			row.Account.Name,
			string(row.Account.Type),
			row.Debit.StringFixed(precision),
			row.Credit.StringFixed(precision),
			row.Balance.StringFixed(precision),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	totals := []string{"", "Total", "", tb.TotalDebit.StringFixed(precision), tb.TotalCredit.StringFixed(precision), ""}
	if err := cw.Write(totals); err != nil {
		return fmt.Errorf("writing totals: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
