package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Operations return *Error values that unwrap to one of
// these, so callers match with errors.Is.
var (
	ErrDuplicateCode      = errors.New("duplicate account code")
	ErrInvalidParent      = errors.New("invalid parent account")
	ErrCycleDetected      = errors.New("account hierarchy cycle")
	ErrNotFound           = errors.New("not found")
	ErrAccountInUse       = errors.New("account in use")
	ErrInvalidType        = errors.New("invalid account type")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrDuplicateReference = errors.New("duplicate journal reference")
	ErrJournalNotDraft    = errors.New("journal is not a draft")
	ErrUnknownAccount     = errors.New("unknown or retired account")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyJournal       = errors.New("journal has no items")
	ErrUnbalancedEntry    = errors.New("debits do not equal credits")
	ErrNotPosted          = errors.New("journal is not posted")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrDuplicateCode, "DuplicateCode"},
	{ErrInvalidParent, "InvalidParent"},
	{ErrCycleDetected, "CycleDetected"},
	{ErrNotFound, "NotFound"},
	{ErrAccountInUse, "AccountInUse"},
	{ErrInvalidType, "InvalidType"},
	{ErrInvalidAccount, "InvalidAccount"},
	{ErrDuplicateReference, "DuplicateReference"},
	{ErrJournalNotDraft, "JournalNotDraft"},
	{ErrUnknownAccount, "UnknownAccount"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrEmptyJournal, "EmptyJournal"},
	{ErrUnbalancedEntry, "UnbalancedEntry"},
	{ErrNotPosted, "NotPosted"},
}

// Error carries the kind of a ledger failure plus the identifiers a caller
// needs to report it.
type Error struct {
	Kind        error
	Reference   string // journal reference
	AccountCode string
	Detail      string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reference != "" {
		fmt.Fprintf(&b, ": journal %s", e.Reference)
	}
	if e.AccountCode != "" {
		fmt.Fprintf(&b, ": account %s", e.AccountCode)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindOf returns the keyword for err's kind ("UnbalancedEntry"), or "" when
// err is not a ledger error.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
