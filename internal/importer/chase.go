package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser parses Chase bank checking CSV exports. Each bank
// transaction becomes a two-line journal between the bank account and a
// suspense account awaiting categorization.
type ChaseParser struct {
	Name         string // registry name; defaults to "chase"
	AccountCode  string
	SuspenseCode string
}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// bankTransaction is a parsed bank CSV row.
type bankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = money out, positive = money in
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, etc.)
}

// Format returns the parser name.
func (p *ChaseParser) Format() string {
	if p.Name != "" {
		return p.Name
	}
	return "chase"
}

// Parse reads a Chase CSV and returns two rows per transaction.
func (p *ChaseParser) Parse(r io.Reader) ([]Row, error) {
	txns, err := p.transactions(r)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for i, txn := range txns {
		line := i + 2
		amount := txn.Amount.Abs().StringFixed(2)
		bank := Row{Line: line, Reference: txn.Reference, Date: txn.Date.Format(dateFormat), Description: txn.Description, Account: p.AccountCode}
		suspense := bank
		suspense.Account = p.SuspenseCode
		if txn.Amount.IsNegative() {
			suspense.Debit = amount
			bank.Credit = amount
			rows = append(rows, suspense, bank)
		} else {
			bank.Debit = amount
			suspense.Credit = amount
			rows = append(rows, bank, suspense)
		}
	}
	return rows, nil
}

func (p *ChaseParser) transactions(r io.Reader) ([]bankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	seen := make(map[string]int)
	var txns []bankTransaction
	for i, rec := range records[1:] {
		txn, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		// Same-day transactions with the same description need distinct references.
		seen[txn.Reference]++
		if n := seen[txn.Reference]; n > 1 {
			txn.Reference = fmt.Sprintf("%s_%d", txn.Reference, n)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseChaseRow(rec []string) (bankTransaction, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return bankTransaction{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return bankTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}
	if amount.IsZero() {
		return bankTransaction{}, fmt.Errorf("zero amount")
	}

	desc := rec[chaseColDesc]
	return bankTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Reference:   makeChaseRef(date, desc),
		Type:        rec[chaseColType],
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
