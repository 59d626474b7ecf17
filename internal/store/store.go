// Package store persists the chart of accounts and journals.
//
// Two implementations share the Repository contract: Memory for tests and
// dry runs, and SQL for SQLite or PostgreSQL through sqlx. Writes are
// single-row and run in their own transaction; the in-memory directory and
// journal store are the authority for ledger rules and only call the
// repository once a change has been validated.
package store

import (
	"context"

	"github.com/cleared-dev/ledger/internal/model"
)

// Repository is the full persistence contract.
type Repository interface {
	InsertAccount(ctx context.Context, a model.Account) error
	UpdateAccount(ctx context.Context, a model.Account) error
	ListAccounts(ctx context.Context) ([]model.Account, error)

	InsertJournal(ctx context.Context, j model.Journal) error
	UpdateJournal(ctx context.Context, j model.Journal) error
	DeleteJournal(ctx context.Context, id string) error
	InsertItem(ctx context.Context, it model.JournalItem) error
	DeleteItem(ctx context.Context, id string) error
	// ListJournals returns every journal with its items ordered by line.
	ListJournals(ctx context.Context) ([]model.Journal, error)

	Close() error
}
