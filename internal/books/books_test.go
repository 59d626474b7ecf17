package books

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cleared-dev/ledger/internal/activity"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func postSale(t *testing.T, b *Books) model.Journal {
	t.Helper()
	ctx := context.Background()
	cash, err := b.Accounts.ByCode("1010")
	require.NoError(t, err)
	sales, err := b.Accounts.ByCode("4010")
	require.NoError(t, err)

	j, err := b.Journals.CreateDraft(ctx, "", model.Day(mustDate(t, "2025-01-10")), "Cash sale")
	require.NoError(t, err)
	_, err = b.Journals.AddItem(ctx, j.ID, cash.ID, decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	_, err = b.Journals.AddItem(ctx, j.ID, sales.ID, decimal.Zero, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, b.Journals.Post(ctx, "alice", j.ID))
	return j
}

func TestInit_CreatesBooks(t *testing.T) {
	root := t.TempDir()
	b, err := Init(context.Background(), root, InitOptions{Name: "Test Biz"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	for _, d := range Dirs {
		info, err := os.Stat(filepath.Join(root, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Test Biz", cfg.Business.Name)
	assert.Equal(t, "small_business", cfg.Business.Chart)

	_, err = os.Stat(filepath.Join(root, "gl.db"))
	assert.NoError(t, err)

	assert.NotEmpty(t, b.Accounts.All())
	cash, err := b.Accounts.ByCode("1010")
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeAsset, cash.Type)
	assert.NotNil(t, b.Parsers.Get("chase"))
}

func TestInit_Twice(t *testing.T) {
	root := t.TempDir()
	b, err := Init(context.Background(), root, InitOptions{Name: "Test Biz"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = Init(context.Background(), root, InitOptions{Name: "Again"}, nil)
	assert.ErrorContains(t, err, "already exists")
}

func TestLoad_RestoresState(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	b, err := Init(ctx, root, InitOptions{Name: "Test Biz"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	j := postSale(t, b)
	require.NoError(t, b.Close())

	b, err = Load(ctx, root, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Journals.ByReference(j.Reference)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPosted, got.Status)
	assert.Equal(t, "alice", got.PostedBy)

	cash, err := b.Accounts.ByCode("1010")
	require.NoError(t, err)
	bal, err := b.Ledger.AccountBalance(cash.ID, model.Day(mustDate(t, "2025-01-31")))
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.StringFixed(2))

	// Restored items still hold the account.
	assert.ErrorIs(t, b.Accounts.Retire(ctx, cash.ID), model.ErrAccountInUse)

	next, err := b.Journals.CreateDraft(ctx, "", mustDate(t, "2025-01-11"), "")
	require.NoError(t, err)
	assert.Equal(t, "J-0002", next.Reference)
}

func TestClose_FlushesActivity(t *testing.T) {
	root := t.TempDir()
	b, err := Init(context.Background(), root, InitOptions{Name: "Test Biz"}, nil)
	require.NoError(t, err)
	j := postSale(t, b)
	require.NoError(t, b.Close())

	entries, err := activity.Read(filepath.Join(root, "logs", "activity.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionPosted, entries[0].Action)
	assert.Equal(t, j.Reference, entries[0].Reference)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestOpenWith_Memory(t *testing.T) {
	cfg := config.Default("Mem")
	cfg.BankAccounts = nil
	b, err := OpenWith(context.Background(), t.TempDir(), cfg, store.NewMemory(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	assert.Empty(t, b.Accounts.All())
	assert.Empty(t, b.Journals.List())
	assert.Equal(t, []string{"journal"}, b.Parsers.Formats())
}

func TestSnapshot_WithoutGit(t *testing.T) {
	root := t.TempDir()
	b, err := Init(context.Background(), root, InitOptions{Name: "Test Biz"}, nil)
	require.NoError(t, err)
	defer b.Close()
	postSale(t, b)

	res, err := b.Snapshot(context.Background(), "snapshot")
	require.NoError(t, err)
	assert.Empty(t, res.Commit)
	require.Len(t, res.Files, 3)

	trial, err := os.ReadFile(filepath.Join(root, SnapshotDir, TrialFile))
	require.NoError(t, err)
	assert.Contains(t, string(trial), ",Total,,100.00,100.00,")

	items, err := os.ReadFile(filepath.Join(root, SnapshotDir, JournalsFile))
	require.NoError(t, err)
	assert.Contains(t, string(items), "J-0001,2025-01-10,posted,Cash sale,1,1010,100.00,")

	entries, err := os.ReadDir(filepath.Join(root, SnapshotDir))
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestInit_Git(t *testing.T) {
	if !gitops.Available() {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	root := t.TempDir()
	b, err := Init(ctx, root, InitOptions{Name: "Test Biz", Git: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, gitops.IsRepo(root))
	assert.True(t, b.Config.Git.Enabled)
	gi, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gi), "gl.db")

	changed, err := gitops.Changed(ctx, root)
	require.NoError(t, err)
	assert.False(t, changed, "init commits everything it writes")

	// Unchanged books produce no commit.
	res, err := b.Snapshot(ctx, "snapshot: nothing new")
	require.NoError(t, err)
	assert.Empty(t, res.Commit)

	postSale(t, b)
	res, err = b.Snapshot(ctx, "snapshot: cash sale")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Commit)
}

func TestLoad_MissingConfig(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), nil)
	assert.ErrorContains(t, err, "reading config")
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
