package journal

import (
	"fmt"

	"github.com/cleared-dev/ledger/internal/model"
)

// AccountChecker reports whether an account may carry journal items.
type AccountChecker interface {
	Active(id string) bool
	Get(id string) (model.Account, error)
}

// Validate checks a journal before posting. The checks run in order and
// the first violation is returned:
//
//  1. the journal has at least one item
//  2. every item references an active account
//  3. total debits equal total credits
//  4. every item has exactly one strictly positive side within precision
//
// Validate never modifies j.
func Validate(j model.Journal, accounts AccountChecker, precision int32) error {
	if len(j.Items) == 0 {
		return &model.Error{Kind: model.ErrEmptyJournal, Reference: j.Reference}
	}

	for _, it := range j.Items {
		if !accounts.Active(it.AccountID) {
			// Retired accounts still have a code; unknown ids report the id.
			code := it.AccountID
			if a, err := accounts.Get(it.AccountID); err == nil {
				code = a.Code
			}
			return &model.Error{
				Kind:        model.ErrUnknownAccount,
				Reference:   j.Reference,
				AccountCode: code,
				Detail:      fmt.Sprintf("line %d", it.Line),
			}
		}
	}

	debit, credit := j.Totals()
	if !debit.Equal(credit) {
		return &model.Error{
			Kind:      model.ErrUnbalancedEntry,
			Reference: j.Reference,
			Detail:    fmt.Sprintf("debits %s != credits %s", debit.StringFixed(precision), credit.StringFixed(precision)),
		}
	}

	for _, it := range j.Items {
		if err := model.CheckAmounts(it.Debit, it.Credit, precision); err != nil {
			return &model.Error{
				Kind:      model.ErrInvalidAmount,
				Reference: j.Reference,
				Detail:    fmt.Sprintf("line %d: %v", it.Line, err),
			}
		}
	}
	return nil
}
