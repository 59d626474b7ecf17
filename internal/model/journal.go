package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalStatus represents the lifecycle state of a journal.
type JournalStatus string

const (
	StatusDraft  JournalStatus = "draft"
	StatusPosted JournalStatus = "posted"
	StatusVoided JournalStatus = "voided"
)

// Valid reports whether s is a known status.
func (s JournalStatus) Valid() bool {
	return s == StatusDraft || s == StatusPosted || s == StatusVoided
}

// Journal is a header grouping balanced debit and credit items.
type Journal struct {
	ID          string
	Reference   string
	Date        time.Time // calendar day, UTC midnight
	Description string
	Status      JournalStatus
	CreatedAt   time.Time
	PostedAt    time.Time
	PostedBy    string
	VoidedAt    time.Time
	VoidedBy    string
	Items       []JournalItem
}

// JournalItem is one debit or credit line of a journal.
type JournalItem struct {
	ID        string
	JournalID string
	AccountID string
	Line      int
	Debit     decimal.Decimal // zero if credit side
	Credit    decimal.Decimal // zero if debit side
}

// Net returns debit minus credit.
func (i JournalItem) Net() decimal.Decimal {
	return i.Debit.Sub(i.Credit)
}

// Totals sums the debit and credit columns of the journal's items.
func (j Journal) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, it := range j.Items {
		debit = debit.Add(it.Debit)
		credit = credit.Add(it.Credit)
	}
	return debit, credit
}

// Clone returns a copy whose item slice is not shared with j.
func (j Journal) Clone() Journal {
	if j.Items != nil {
		items := make([]JournalItem, len(j.Items))
		copy(items, j.Items)
		j.Items = items
	}
	return j
}

// Today returns the calendar day of now in now's own location, as a UTC
// midnight. time.Now is local, so this is the user's date, not UTC's.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
