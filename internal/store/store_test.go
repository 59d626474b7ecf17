package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cleared-dev/ledger/internal/model"
)

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "gl.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// repositories runs fn against every Repository implementation.
func repositories(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func seed(t *testing.T, repo Repository) (model.Account, model.Account, model.Journal) {
	t.Helper()
	ctx := context.Background()

	parent := model.Account{ID: "acct-1", Code: "1000", Name: "Assets", Type: model.AccountTypeAsset}
	cash := model.Account{ID: "acct-2", Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentID: "acct-1", Description: "till"}
	require.NoError(t, repo.InsertAccount(ctx, parent))
	require.NoError(t, repo.InsertAccount(ctx, cash))

	j := model.Journal{
		ID:          "jnl-1",
		Reference:   "J-0001",
		Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "Opening",
		Status:      model.StatusDraft,
		CreatedAt:   time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.InsertJournal(ctx, j))
	return parent, cash, j
}

func TestAccounts(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, cash, _ := seed(t, repo)

		cash.Retired = true
		cash.Name = "Petty Cash"
		require.NoError(t, repo.UpdateAccount(ctx, cash))

		got, err := repo.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "1000", got[0].Code)
		assert.Equal(t, "", got[0].ParentID)
		assert.Equal(t, cash, got[1])
	})
}

func TestAccounts_DuplicateCode(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		seed(t, repo)
		err := repo.InsertAccount(context.Background(), model.Account{ID: "acct-9", Code: "1010", Name: "Dup", Type: model.AccountTypeAsset})
		assert.ErrorIs(t, err, model.ErrDuplicateCode)
	})
}

func TestAccounts_UpdateMissing(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		err := repo.UpdateAccount(context.Background(), model.Account{ID: "nope", Code: "9", Name: "X", Type: model.AccountTypeAsset})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestJournals(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		parent, cash, j := seed(t, repo)

		require.NoError(t, repo.InsertItem(ctx, model.JournalItem{ID: "it-2", JournalID: j.ID, AccountID: parent.ID, Line: 2, Debit: decimal.Zero, Credit: decimal.RequireFromString("100.00")}))
		require.NoError(t, repo.InsertItem(ctx, model.JournalItem{ID: "it-1", JournalID: j.ID, AccountID: cash.ID, Line: 1, Debit: decimal.RequireFromString("100.00"), Credit: decimal.Zero}))

		j.Status = model.StatusPosted
		j.PostedAt = time.Date(2025, 1, 16, 8, 0, 0, 0, time.UTC)
		j.PostedBy = "alice"
		require.NoError(t, repo.UpdateJournal(ctx, j))

		got, err := repo.ListJournals(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)

		g := got[0]
		assert.Equal(t, "J-0001", g.Reference)
		assert.True(t, j.Date.Equal(g.Date))
		assert.True(t, j.CreatedAt.Equal(g.CreatedAt))
		assert.True(t, j.PostedAt.Equal(g.PostedAt))
		assert.True(t, g.VoidedAt.IsZero())
		assert.Equal(t, model.StatusPosted, g.Status)
		assert.Equal(t, "alice", g.PostedBy)

		require.Len(t, g.Items, 2)
		assert.Equal(t, "it-1", g.Items[0].ID)
		assert.Equal(t, "100.00", g.Items[0].Debit.StringFixed(2))
		assert.True(t, g.Items[1].Credit.Equal(decimal.NewFromInt(100)))
	})
}

func TestJournals_DuplicateReference(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		seed(t, repo)
		err := repo.InsertJournal(context.Background(), model.Journal{
			ID: "jnl-2", Reference: "J-0001", Date: time.Now(), Status: model.StatusDraft, CreatedAt: time.Now(),
		})
		assert.ErrorIs(t, err, model.ErrDuplicateReference)
	})
}

func TestJournals_Delete(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, cash, j := seed(t, repo)
		require.NoError(t, repo.InsertItem(ctx, model.JournalItem{ID: "it-1", JournalID: j.ID, AccountID: cash.ID, Line: 1, Debit: decimal.NewFromInt(5), Credit: decimal.Zero}))
		require.NoError(t, repo.InsertItem(ctx, model.JournalItem{ID: "it-2", JournalID: j.ID, AccountID: cash.ID, Line: 2, Debit: decimal.Zero, Credit: decimal.NewFromInt(5)}))

		require.NoError(t, repo.DeleteItem(ctx, "it-2"))
		got, err := repo.ListJournals(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Items, 1)

		require.NoError(t, repo.DeleteJournal(ctx, j.ID))
		got, err = repo.ListJournals(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSQL_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gl.db")

	s, err := Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	defer s.Close()

	accts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accts, 2)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "gl.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("gl.db"))
	assert.Equal(t, "file:gl.db?cache=shared&_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("file:gl.db?cache=shared"))
}
