package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of minor-unit places carried by amounts.
const DefaultPrecision int32 = 2

// ParseAmount parses a decimal amount. Blank input is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// FitsPrecision reports whether d carries no more than places decimal places.
func FitsPrecision(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// CheckAmounts verifies a debit/credit pair: neither negative, exactly one
// strictly positive and both within the minor-unit precision.
func CheckAmounts(debit, credit decimal.Decimal, places int32) error {
	switch {
	case debit.IsNegative() || credit.IsNegative():
		return fmt.Errorf("negative amount (debit %s, credit %s)", debit, credit)
	case debit.IsPositive() == credit.IsPositive():
		return fmt.Errorf("exactly one of debit or credit must be positive (debit %s, credit %s)", debit, credit)
	case !FitsPrecision(debit, places) || !FitsPrecision(credit, places):
		return fmt.Errorf("amount has more than %d decimal places (debit %s, credit %s)", places, debit, credit)
	}
	return nil
}
