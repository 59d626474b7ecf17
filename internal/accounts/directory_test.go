package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cleared-dev/ledger/internal/model"
)

// fakeRepo records writes and can be told to fail.
type fakeRepo struct {
	mu      sync.Mutex
	fail    error
	inserts int
	updates []model.Account
}

func (r *fakeRepo) InsertAccount(_ context.Context, _ model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.inserts++
	return nil
}

func (r *fakeRepo) UpdateAccount(_ context.Context, a model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.updates = append(r.updates, a)
	return nil
}

func newDirectory(t *testing.T) (*Directory, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{}
	return NewDirectory(repo, zaptest.NewLogger(t)), repo
}

func mustCreate(t *testing.T, d *Directory, code string, typ model.AccountType, parentID string) model.Account {
	t.Helper()
	a, err := d.Create(context.Background(), NewAccount{Code: code, Name: "Account " + code, Type: typ, ParentID: parentID})
	require.NoError(t, err)
	return a
}

func TestCreate(t *testing.T) {
	d, repo := newDirectory(t)
	assets := mustCreate(t, d, "1000", model.AccountTypeAsset, "")
	cash := mustCreate(t, d, "1010", model.AccountTypeAsset, assets.ID)

	assert.NotEmpty(t, cash.ID)
	assert.Equal(t, assets.ID, cash.ParentID)
	assert.Equal(t, 2, repo.inserts)

	got, err := d.ByCode("1010")
	require.NoError(t, err)
	assert.Equal(t, cash, got)

	kids, err := d.Children(assets.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "1010", kids[0].Code)
}

func TestCreate_Errors(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	parent := mustCreate(t, d, "1000", model.AccountTypeAsset, "")
	retired := mustCreate(t, d, "1999", model.AccountTypeAsset, "")
	require.NoError(t, d.Retire(ctx, retired.ID))

	tests := []struct {
		name string
		in   NewAccount
		want error
	}{
		{"duplicate code", NewAccount{Code: "1000", Name: "Again", Type: model.AccountTypeAsset}, model.ErrDuplicateCode},
		{"unknown parent", NewAccount{Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentID: "nope"}, model.ErrInvalidParent},
		{"retired parent", NewAccount{Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentID: retired.ID}, model.ErrInvalidParent},
		{"bad type", NewAccount{Code: "1010", Name: "Cash", Type: "cash", ParentID: parent.ID}, model.ErrInvalidType},
		{"blank code", NewAccount{Code: " ", Name: "Cash", Type: model.AccountTypeAsset}, model.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_RepositoryFailureLeavesTreeUntouched(t *testing.T) {
	d, repo := newDirectory(t)
	repo.fail = errors.New("disk full")

	_, err := d.Create(context.Background(), NewAccount{Code: "1000", Name: "Assets", Type: model.AccountTypeAsset})
	require.ErrorContains(t, err, "disk full")

	_, err = d.ByCode("1000")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, d.All())
}

func TestReparent(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	a := mustCreate(t, d, "1000", model.AccountTypeAsset, "")
	b := mustCreate(t, d, "1100", model.AccountTypeAsset, "")
	c := mustCreate(t, d, "1110", model.AccountTypeAsset, b.ID)

	require.NoError(t, d.Reparent(ctx, b.ID, a.ID))

	anc, err := d.Ancestors(c.ID)
	require.NoError(t, err)
	require.Len(t, anc, 2)
	assert.Equal(t, "1000", anc[0].Code)
	assert.Equal(t, "1100", anc[1].Code)

	roots := d.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "1000", roots[0].Code)

	// Back to the top level.
	require.NoError(t, d.Reparent(ctx, b.ID, ""))
	assert.Len(t, d.Roots(), 2)
}

func TestReparent_CycleAtEveryDepth(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)

	const depth = 6
	chain := []model.Account{mustCreate(t, d, "A0", model.AccountTypeAsset, "")}
	for i := 1; i <= depth; i++ {
		chain = append(chain, mustCreate(t, d, fmt.Sprintf("A%d", i), model.AccountTypeAsset, chain[i-1].ID))
	}

	root := chain[0]
	for i := 1; i <= depth; i++ {
		err := d.Reparent(ctx, root.ID, chain[i].ID)
		assert.ErrorIs(t, err, model.ErrCycleDetected, "descendant at depth %d", i)
	}
	assert.ErrorIs(t, d.Reparent(ctx, root.ID, root.ID), model.ErrCycleDetected)

	// The tree is unchanged.
	got, err := d.Get(root.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRoot())
}

func TestReparent_Errors(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	a := mustCreate(t, d, "1000", model.AccountTypeAsset, "")
	old := mustCreate(t, d, "1999", model.AccountTypeAsset, "")
	require.NoError(t, d.Retire(ctx, old.ID))

	assert.ErrorIs(t, d.Reparent(ctx, "missing", a.ID), model.ErrNotFound)
	assert.ErrorIs(t, d.Reparent(ctx, a.ID, "missing"), model.ErrNotFound)
	assert.ErrorIs(t, d.Reparent(ctx, a.ID, old.ID), model.ErrInvalidParent)
}

func TestReparent_OntoRetiredDescendantIsCycle(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	top := mustCreate(t, d, "1000", model.AccountTypeAsset, "")
	child := mustCreate(t, d, "1010", model.AccountTypeAsset, top.ID)
	require.NoError(t, d.Retire(ctx, child.ID))

	assert.ErrorIs(t, d.Reparent(ctx, top.ID, child.ID), model.ErrCycleDetected)
}

func TestMaxDepth(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)

	chain := []model.Account{mustCreate(t, d, "D000", model.AccountTypeAsset, "")}
	for i := 1; i <= MaxDepth; i++ {
		chain = append(chain, mustCreate(t, d, fmt.Sprintf("D%03d", i), model.AccountTypeAsset, chain[i-1].ID))
	}
	deepest := chain[MaxDepth]

	_, err := d.Create(ctx, NewAccount{Code: "TOO-DEEP", Name: "Too deep", Type: model.AccountTypeAsset, ParentID: deepest.ID})
	assert.ErrorIs(t, err, model.ErrInvalidParent)

	// Moving a two-level subtree under the second-deepest account would push
	// its leaf past the limit.
	top := mustCreate(t, d, "E000", model.AccountTypeAsset, "")
	mustCreate(t, d, "E001", model.AccountTypeAsset, top.ID)
	assert.ErrorIs(t, d.Reparent(ctx, top.ID, chain[MaxDepth-1].ID), model.ErrInvalidParent)
	require.NoError(t, d.Reparent(ctx, top.ID, chain[MaxDepth-2].ID))

	ancestors, err := d.Ancestors(deepest.ID)
	require.NoError(t, err)
	assert.Len(t, ancestors, MaxDepth)

	// Everything the API built restores.
	restored := NewDirectory(&fakeRepo{}, zaptest.NewLogger(t))
	require.NoError(t, restored.Restore(d.All()))
}

func TestRetire(t *testing.T) {
	ctx := context.Background()
	d, repo := newDirectory(t)
	cash := mustCreate(t, d, "1010", model.AccountTypeAsset, "")

	_, err := d.Acquire(cash.ID)
	require.NoError(t, err)

	err = d.Retire(ctx, cash.ID)
	assert.ErrorIs(t, err, model.ErrAccountInUse)

	d.Release(cash.ID)
	require.NoError(t, d.Retire(ctx, cash.ID))

	got, err := d.Get(cash.ID)
	require.NoError(t, err)
	assert.True(t, got.Retired)
	assert.False(t, d.Active(cash.ID))
	require.Len(t, repo.updates, 1)
	assert.True(t, repo.updates[0].Retired)

	_, err = d.Acquire(cash.ID)
	assert.ErrorIs(t, err, model.ErrUnknownAccount)

	assert.ErrorIs(t, d.Retire(ctx, "missing"), model.ErrNotFound)
}

func TestRenameReclassify(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	a := mustCreate(t, d, "4010", model.AccountTypeRevenue, "")

	require.NoError(t, d.Rename(ctx, a.ID, "Consulting"))
	require.NoError(t, d.Reclassify(ctx, a.ID, model.AccountTypeLiability))

	got, err := d.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Consulting", got.Name)
	assert.Equal(t, model.AccountTypeLiability, got.Type)

	_, err = d.Acquire(a.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Reclassify(ctx, a.ID, model.AccountTypeRevenue), model.ErrAccountInUse)
	assert.ErrorIs(t, d.Reclassify(ctx, a.ID, "bogus"), model.ErrInvalidType)
	assert.ErrorIs(t, d.Rename(ctx, a.ID, ""), model.ErrInvalidAccount)
}

func TestDescendants(t *testing.T) {
	d, _ := newDirectory(t)
	root := mustCreate(t, d, "5000", model.AccountTypeExpense, "")
	b := mustCreate(t, d, "5020", model.AccountTypeExpense, root.ID)
	mustCreate(t, d, "5010", model.AccountTypeExpense, root.ID)
	mustCreate(t, d, "5021", model.AccountTypeExpense, b.ID)

	desc, err := d.Descendants(root.ID)
	require.NoError(t, err)

	var codes []string
	for _, a := range desc {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"5010", "5020", "5021"}, codes)
}

func TestRestore(t *testing.T) {
	d, repo := newDirectory(t)
	err := d.Restore([]model.Account{
		{ID: "c", Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentID: "p"},
		{ID: "p", Code: "1000", Name: "Assets", Type: model.AccountTypeAsset},
	})
	require.NoError(t, err)
	assert.Zero(t, repo.inserts, "restore must not write back")

	kids, err := d.Children("p")
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "1010", kids[0].Code)

	a, err := d.Resolve("c")
	require.NoError(t, err)
	assert.Equal(t, "1010", a.Code)
}

func TestRestore_RejectsCycle(t *testing.T) {
	d, _ := newDirectory(t)
	err := d.Restore([]model.Account{
		{ID: "a", Code: "1", Name: "A", Type: model.AccountTypeAsset, ParentID: "b"},
		{ID: "b", Code: "2", Name: "B", Type: model.AccountTypeAsset, ParentID: "a"},
	})
	assert.ErrorIs(t, err, model.ErrCycleDetected)
}

func TestRetireVersusAcquire(t *testing.T) {
	ctx := context.Background()
	for n := 0; n < 50; n++ {
		d, _ := newDirectory(t)
		a := mustCreate(t, d, "1010", model.AccountTypeAsset, "")

		var wg sync.WaitGroup
		var acquireErr, retireErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acquireErr = d.Acquire(a.ID)
		}()
		go func() {
			defer wg.Done()
			retireErr = d.Retire(ctx, a.ID)
		}()
		wg.Wait()

		// Exactly one side wins.
		if acquireErr == nil {
			require.ErrorIs(t, retireErr, model.ErrAccountInUse)
			assert.Equal(t, 1, d.Usage(a.ID))
		} else {
			require.NoError(t, retireErr)
			assert.ErrorIs(t, acquireErr, model.ErrUnknownAccount)
			assert.Zero(t, d.Usage(a.ID))
		}
	}
}
