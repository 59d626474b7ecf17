package accounts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/model"
)

// MaxDepth is the most ancestors an account may have. Create and Reparent
// refuse deeper hierarchies, so a longer parent walk can only be a cycle.
const MaxDepth = 256

// Repository persists account changes. The directory writes through it
// before changing its in-memory tree.
type Repository interface {
	InsertAccount(ctx context.Context, a model.Account) error
	UpdateAccount(ctx context.Context, a model.Account) error
}

// NewAccount holds parameters for creating an account.
type NewAccount struct {
	Code        string
	Name        string
	Type        model.AccountType
	ParentID    string
	Description string
}

type node struct {
	acct     model.Account
	children []string
	// usage counts journal items on non-voided journals that reference the account.
	usage int
}

// Directory is the chart of accounts: an in-memory tree over a Repository.
// It is safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	repo   Repository
	log    *zap.Logger
	byID   map[string]*node
	byCode map[string]string
	roots  []string
}

// NewDirectory creates an empty Directory. A nil logger discards output.
func NewDirectory(repo Repository, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		repo:   repo,
		log:    log,
		byID:   make(map[string]*node),
		byCode: make(map[string]string),
	}
}

// Restore loads persisted accounts into an empty directory without writing
// them back. Parents may appear after their children.
func (d *Directory) Restore(accts []model.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, a := range accts {
		if _, ok := d.byCode[a.Code]; ok {
			return &model.Error{Kind: model.ErrDuplicateCode, AccountCode: a.Code}
		}
		d.byID[a.ID] = &node{acct: a}
		d.byCode[a.Code] = a.ID
	}
	for _, a := range accts {
		if a.ParentID == "" {
			d.roots = append(d.roots, a.ID)
			continue
		}
		p, ok := d.byID[a.ParentID]
		if !ok {
			return &model.Error{Kind: model.ErrInvalidParent, AccountCode: a.Code, Detail: "parent " + a.ParentID + " not found"}
		}
		p.children = append(p.children, a.ID)
	}
	for _, a := range accts {
		if _, err := d.depth(a.ID); err != nil {
			return err
		}
	}
	return nil
}

// Create adds an account under parentID, or at the top level when
// parentID is empty.
func (d *Directory) Create(ctx context.Context, p NewAccount) (model.Account, error) {
	code := strings.TrimSpace(p.Code)
	name := strings.TrimSpace(p.Name)
	if code == "" || name == "" {
		return model.Account{}, &model.Error{Kind: model.ErrInvalidAccount, AccountCode: code, Detail: "code and name are required"}
	}
	if !p.Type.Valid() {
		return model.Account{}, &model.Error{Kind: model.ErrInvalidType, AccountCode: code, Detail: fmt.Sprintf("%q", p.Type)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byCode[code]; ok {
		return model.Account{}, &model.Error{Kind: model.ErrDuplicateCode, AccountCode: code}
	}
	if p.ParentID != "" {
		parent, ok := d.byID[p.ParentID]
		if !ok || parent.acct.Retired {
			return model.Account{}, &model.Error{Kind: model.ErrInvalidParent, AccountCode: code, Detail: "parent " + p.ParentID}
		}
		depth, err := d.depth(p.ParentID)
		if err != nil {
			return model.Account{}, err
		}
		if depth+1 > MaxDepth {
			return model.Account{}, &model.Error{Kind: model.ErrInvalidParent, AccountCode: code, Detail: fmt.Sprintf("hierarchy deeper than %d", MaxDepth)}
		}
	}

	acct := model.Account{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        name,
		Type:        p.Type,
		ParentID:    p.ParentID,
		Description: p.Description,
	}
	if err := d.repo.InsertAccount(ctx, acct); err != nil {
		return model.Account{}, fmt.Errorf("inserting account %s: %w", code, err)
	}

	d.byID[acct.ID] = &node{acct: acct}
	d.byCode[code] = acct.ID
	d.link(acct.ID, acct.ParentID)

	d.log.Info("account created",
		zap.String("code", code),
		zap.String("type", string(acct.Type)),
		zap.String("parent_id", acct.ParentID))
	return acct, nil
}

// Reparent moves an account under newParentID, or to the top level when
// newParentID is empty.
func (d *Directory) Reparent(ctx context.Context, id, newParentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	code := n.acct.Code
	if newParentID != "" {
		parent, ok := d.byID[newParentID]
		if !ok {
			return &model.Error{Kind: model.ErrNotFound, AccountCode: code, Detail: "parent " + newParentID}
		}
		if newParentID == id {
			return &model.Error{Kind: model.ErrCycleDetected, AccountCode: code, Detail: "account cannot be its own parent"}
		}
		// Walk up from the proposed parent; meeting id means it is a descendant.
		steps := 0
		for cur := newParentID; cur != ""; cur = d.byID[cur].acct.ParentID {
			if cur == id {
				return &model.Error{Kind: model.ErrCycleDetected, AccountCode: code, Detail: parent.acct.Code + " is a descendant"}
			}
			steps++
			if steps > MaxDepth {
				return &model.Error{Kind: model.ErrCycleDetected, AccountCode: code, Detail: fmt.Sprintf("hierarchy deeper than %d", MaxDepth)}
			}
		}
		if parent.acct.Retired {
			return &model.Error{Kind: model.ErrInvalidParent, AccountCode: code, Detail: "parent " + parent.acct.Code + " is retired"}
		}
		// steps is the depth the account lands at; its deepest descendant
		// sits height levels further down.
		if steps+d.height(id) > MaxDepth {
			return &model.Error{Kind: model.ErrInvalidParent, AccountCode: code, Detail: fmt.Sprintf("hierarchy deeper than %d", MaxDepth)}
		}
	}
	if n.acct.ParentID == newParentID {
		return nil
	}

	updated := n.acct
	updated.ParentID = newParentID
	if err := d.repo.UpdateAccount(ctx, updated); err != nil {
		return fmt.Errorf("updating account %s: %w", code, err)
	}

	d.unlink(id, n.acct.ParentID)
	n.acct = updated
	d.link(id, newParentID)

	d.log.Info("account reparented", zap.String("code", code), zap.String("parent_id", newParentID))
	return nil
}

// Retire marks an account retired. Accounts referenced by items of
// non-voided journals cannot be retired.
func (d *Directory) Retire(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	if n.usage > 0 {
		return &model.Error{Kind: model.ErrAccountInUse, AccountCode: n.acct.Code, Detail: fmt.Sprintf("%d open journal items", n.usage)}
	}
	if n.acct.Retired {
		return nil
	}

	updated := n.acct
	updated.Retired = true
	if err := d.repo.UpdateAccount(ctx, updated); err != nil {
		return fmt.Errorf("retiring account %s: %w", n.acct.Code, err)
	}
	n.acct = updated

	d.log.Info("account retired", zap.String("code", n.acct.Code))
	return nil
}

// Rename changes an account's display name.
func (d *Directory) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &model.Error{Kind: model.ErrInvalidAccount, Detail: "name is required"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	updated := n.acct
	updated.Name = name
	if err := d.repo.UpdateAccount(ctx, updated); err != nil {
		return fmt.Errorf("renaming account %s: %w", n.acct.Code, err)
	}
	n.acct = updated
	return nil
}

// Reclassify changes an account's type. An account in use keeps its type so
// existing balances do not change sign.
func (d *Directory) Reclassify(ctx context.Context, id string, t model.AccountType) error {
	if !t.Valid() {
		return &model.Error{Kind: model.ErrInvalidType, Detail: fmt.Sprintf("%q", t)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	if n.usage > 0 {
		return &model.Error{Kind: model.ErrAccountInUse, AccountCode: n.acct.Code, Detail: fmt.Sprintf("%d open journal items", n.usage)}
	}
	if n.acct.Type == t {
		return nil
	}
	updated := n.acct
	updated.Type = t
	if err := d.repo.UpdateAccount(ctx, updated); err != nil {
		return fmt.Errorf("reclassifying account %s: %w", n.acct.Code, err)
	}
	n.acct = updated

	d.log.Info("account reclassified", zap.String("code", n.acct.Code), zap.String("type", string(t)))
	return nil
}

// Acquire records a new journal item against an account. It fails with
// ErrUnknownAccount when the account is missing or retired.
func (d *Directory) Acquire(id string) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return model.Account{}, &model.Error{Kind: model.ErrUnknownAccount, Detail: "account " + id}
	}
	if n.acct.Retired {
		return model.Account{}, &model.Error{Kind: model.ErrUnknownAccount, AccountCode: n.acct.Code, Detail: "account is retired"}
	}
	n.usage++
	return n.acct, nil
}

// Release undoes one Acquire or Track.
func (d *Directory) Release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.byID[id]; ok && n.usage > 0 {
		n.usage--
	}
}

// Track counts a persisted item against an account regardless of its
// retired flag. It is used while restoring journals.
func (d *Directory) Track(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return &model.Error{Kind: model.ErrUnknownAccount, Detail: "account " + id}
	}
	n.usage++
	return nil
}

// Usage returns how many non-voided journal items reference the account.
func (d *Directory) Usage(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n, ok := d.byID[id]; ok {
		return n.usage
	}
	return 0
}

// Active reports whether id names an existing account that is not retired.
func (d *Directory) Active(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.byID[id]
	return ok && !n.acct.Retired
}

// Get returns an account by ID.
func (d *Directory) Get(id string) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.byID[id]
	if !ok {
		return model.Account{}, &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	return n.acct, nil
}

// ByCode returns an account by its code.
func (d *Directory) ByCode(code string) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byCode[code]
	if !ok {
		return model.Account{}, &model.Error{Kind: model.ErrNotFound, AccountCode: code}
	}
	return d.byID[id].acct, nil
}

// Resolve looks an account up by code, then by ID.
func (d *Directory) Resolve(ref string) (model.Account, error) {
	ref = strings.TrimSpace(ref)
	if a, err := d.ByCode(ref); err == nil {
		return a, nil
	}
	return d.Get(ref)
}

// Children returns the direct children of an account ordered by code.
func (d *Directory) Children(id string) ([]model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.byID[id]
	if !ok {
		return nil, &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	return d.accounts(n.children), nil
}

// Roots returns the top-level accounts ordered by code.
func (d *Directory) Roots() []model.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.accounts(d.roots)
}

// Ancestors returns the chain from the top-level account down to the
// account's parent. Top-level accounts have no ancestors.
func (d *Directory) Ancestors(id string) ([]model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.byID[id]
	if !ok {
		return nil, &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}
	var chain []model.Account
	for cur := n.acct.ParentID; cur != ""; cur = d.byID[cur].acct.ParentID {
		chain = append(chain, d.byID[cur].acct)
		if len(chain) > MaxDepth {
			return nil, &model.Error{Kind: model.ErrCycleDetected, AccountCode: n.acct.Code}
		}
	}
	slices.Reverse(chain)
	return chain, nil
}

// Descendants returns every account below id in depth-first order,
// siblings ordered by code.
func (d *Directory) Descendants(id string) ([]model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.byID[id]
	if !ok {
		return nil, &model.Error{Kind: model.ErrNotFound, Detail: "account " + id}
	}

	var out []model.Account
	stack := reversed(d.accounts(n.children))
	for len(stack) > 0 {
		a := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, a)
		stack = append(stack, reversed(d.accounts(d.byID[a.ID].children))...)
	}
	return out, nil
}

// All returns every account ordered by code.
func (d *Directory) All() []model.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.Account, 0, len(d.byID))
	for _, n := range d.byID {
		out = append(out, n.acct)
	}
	sortByCode(out)
	return out
}

func (d *Directory) accounts(ids []string) []model.Account {
	out := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.byID[id].acct)
	}
	sortByCode(out)
	return out
}

func (d *Directory) link(id, parentID string) {
	if parentID == "" {
		d.roots = append(d.roots, id)
		return
	}
	p := d.byID[parentID]
	p.children = append(p.children, id)
}

func (d *Directory) unlink(id, parentID string) {
	if parentID == "" {
		d.roots = slices.DeleteFunc(d.roots, func(s string) bool { return s == id })
		return
	}
	p := d.byID[parentID]
	p.children = slices.DeleteFunc(p.children, func(s string) bool { return s == id })
}

// depth walks up from id and fails if the walk exceeds MaxDepth.
func (d *Directory) depth(id string) (int, error) {
	steps := 0
	for cur := d.byID[id].acct.ParentID; cur != ""; cur = d.byID[cur].acct.ParentID {
		steps++
		if steps > MaxDepth {
			return 0, &model.Error{Kind: model.ErrCycleDetected, AccountCode: d.byID[id].acct.Code}
		}
	}
	return steps, nil
}

// height is the number of levels below id; a leaf has height 0.
func (d *Directory) height(id string) int {
	h := 0
	for _, c := range d.byID[id].children {
		h = max(h, d.height(c)+1)
	}
	return h
}

func sortByCode(accts []model.Account) {
	slices.SortFunc(accts, func(a, b model.Account) int {
		return strings.Compare(a.Code, b.Code)
	})
}

func reversed(accts []model.Account) []model.Account {
	slices.Reverse(accts)
	return accts
}
