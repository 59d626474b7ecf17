// Package ledger computes balances from committed journals.
//
// Every query reads a fresh snapshot of the journal store, so results
// reflect the state at the time of the call and nothing is cached.
package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Accounts is the part of the account directory queries read.
type Accounts interface {
	Get(id string) (model.Account, error)
	Descendants(id string) ([]model.Account, error)
}

// Journals supplies the journal snapshot.
type Journals interface {
	List() []model.Journal
}

// Engine answers balance queries.
type Engine struct {
	accounts Accounts
	journals Journals
}

// NewEngine creates an Engine.
func NewEngine(accounts Accounts, journals Journals) *Engine {
	return &Engine{accounts: accounts, journals: journals}
}

// Counts reports whether a journal contributes to balances as of asOf.
// With a zero asOf only currently posted journals count. Otherwise a
// journal counts when it is dated on or before asOf and was posted, or
// was voided on a later day than asOf.
func Counts(j model.Journal, asOf time.Time) bool {
	if asOf.IsZero() {
		return j.Status == model.StatusPosted
	}
	day := model.Day(asOf)
	if j.Date.After(day) {
		return false
	}
	switch j.Status {
	case model.StatusPosted:
		return true
	case model.StatusVoided:
		return model.Day(j.VoidedAt).After(day)
	}
	return false
}

// Signed converts a raw debit-minus-credit amount to a balance on t's
// normal side.
func Signed(t model.AccountType, net decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == model.SideCredit {
		return net.Neg()
	}
	return net
}

// AccountBalance returns the balance of one account on its normal side.
// A zero asOf means the current balance. Retired accounts still report
// their history.
func (e *Engine) AccountBalance(accountID string, asOf time.Time) (decimal.Decimal, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	net := e.totals(asOf)[accountID].net()
	return Signed(acct.Type, net), nil
}

// SubtreeBalance returns the balance of an account plus the subtree
// balance of each child, depth-first. Every account contributes on its own
// normal side.
func (e *Engine) SubtreeBalance(accountID string, asOf time.Time) (decimal.Decimal, error) {
	root, err := e.accounts.Get(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	desc, err := e.accounts.Descendants(accountID)
	if err != nil {
		return decimal.Zero, err
	}

	totals := e.totals(asOf)
	sum := Signed(root.Type, totals[root.ID].net())
	for _, a := range desc {
		sum = sum.Add(Signed(a.Type, totals[a.ID].net()))
	}
	return sum, nil
}

// TrialBalanceRow is one account's line in a trial balance. Debit and
// Credit hold the account's net balance in the column it falls on.
type TrialBalanceRow struct {
	Account model.Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Balance decimal.Decimal // on the account's normal side
}

// TrialBalance lists every account with activity. TotalDebit always
// equals TotalCredit when every counted journal is balanced.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether the debit and credit columns agree.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// TrialBalance builds the trial balance as of asOf, ordered by account
// code. A zero asOf means the current state.
func (e *Engine) TrialBalance(asOf time.Time) (TrialBalance, error) {
	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}

	for id, t := range e.totals(asOf) {
		acct, err := e.accounts.Get(id)
		if err != nil {
			return TrialBalance{}, err
		}
		net := t.net()
		row := TrialBalanceRow{Account: acct, Debit: decimal.Zero, Credit: decimal.Zero, Balance: Signed(acct.Type, net)}
		if net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Neg()
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}

	slices.SortFunc(tb.Rows, func(a, b TrialBalanceRow) int {
		return strings.Compare(a.Account.Code, b.Account.Code)
	})
	return tb, nil
}

type total struct {
	debit, credit decimal.Decimal
}

func (t total) net() decimal.Decimal {
	return t.debit.Sub(t.credit)
}

// totals sums debits and credits per account over counted journals.
func (e *Engine) totals(asOf time.Time) map[string]total {
	out := make(map[string]total)
	for _, j := range e.journals.List() {
		if !Counts(j, asOf) {
			continue
		}
		for _, it := range j.Items {
			t, ok := out[it.AccountID]
			if !ok {
				t = total{debit: decimal.Zero, credit: decimal.Zero}
			}
			t.debit = t.debit.Add(it.Debit)
			t.credit = t.credit.Add(it.Credit)
			out[it.AccountID] = t
		}
	}
	return out
}
