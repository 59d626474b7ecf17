package journal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/activity"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
)

// Repository persists journal changes. The store writes through it before
// changing its in-memory state.
type Repository interface {
	InsertJournal(ctx context.Context, j model.Journal) error
	UpdateJournal(ctx context.Context, j model.Journal) error
	DeleteJournal(ctx context.Context, id string) error
	InsertItem(ctx context.Context, it model.JournalItem) error
	DeleteItem(ctx context.Context, id string) error
}

// Accounts is the part of the account directory the store depends on.
// Acquire and Release keep the directory's count of live items per account
// so an account cannot be retired while a non-voided journal uses it.
type Accounts interface {
	AccountChecker
	Acquire(id string) (model.Account, error)
	Release(id string)
	Track(id string) error
}

// Options configures a Store. Zero values get defaults.
type Options struct {
	Precision       int32
	ReferencePrefix string
	Notifier        activity.Notifier
	Logger          *zap.Logger
	Clock           func() time.Time
}

// entry guards one journal. Its mutex serializes every mutation of the
// journal, so validation and the status change in Post happen atomically.
type entry struct {
	mu      sync.Mutex
	journal model.Journal
	deleted bool
}

// Store holds journals and their items. It is safe for concurrent use;
// operations on different journals do not block each other.
type Store struct {
	repo      Repository
	accounts  Accounts
	notify    activity.Notifier
	log       *zap.Logger
	now       func() time.Time
	precision int32

	mu        sync.RWMutex
	entries   map[string]*entry // by journal ID
	byRef     map[string]string // reference -> journal ID
	itemOwner map[string]string // item ID -> journal ID
	seq       *id.Sequencer
}

// NewStore creates an empty Store.
func NewStore(repo Repository, accounts Accounts, opts Options) *Store {
	s := &Store{
		repo:      repo,
		accounts:  accounts,
		notify:    opts.Notifier,
		log:       opts.Logger,
		now:       opts.Clock,
		precision: opts.Precision,
		entries:   make(map[string]*entry),
		byRef:     make(map[string]string),
		itemOwner: make(map[string]string),
		seq:       id.NewSequencer(opts.ReferencePrefix),
	}
	if s.notify == nil {
		s.notify = activity.Discard{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.precision <= 0 {
		s.precision = model.DefaultPrecision
	}
	return s
}

// Precision returns the number of minor-unit places amounts may carry.
func (s *Store) Precision() int32 {
	return s.precision
}

// Restore loads persisted journals without writing them back. Items of
// non-voided journals are counted against their accounts.
func (s *Store) Restore(journals []model.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range journals {
		if _, ok := s.byRef[j.Reference]; ok {
			return &model.Error{Kind: model.ErrDuplicateReference, Reference: j.Reference}
		}
		j = j.Clone()
		s.entries[j.ID] = &entry{journal: j}
		s.byRef[j.Reference] = j.ID
		s.seq.Observe(j.Reference)
		for _, it := range j.Items {
			s.itemOwner[it.ID] = j.ID
			if j.Status == model.StatusVoided {
				continue
			}
			if err := s.accounts.Track(it.AccountID); err != nil {
				return fmt.Errorf("journal %s line %d: %w", j.Reference, it.Line, err)
			}
		}
	}
	return nil
}

// CreateDraft opens a new draft journal. A blank reference is replaced with
// the next generated one and a zero date with today.
func (s *Store) CreateDraft(ctx context.Context, reference string, date time.Time, description string) (model.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = s.seq.Next()
		for s.byRef[reference] != "" {
			reference = s.seq.Next()
		}
	}
	if _, ok := s.byRef[reference]; ok {
		return model.Journal{}, &model.Error{Kind: model.ErrDuplicateReference, Reference: reference}
	}

	day := model.Day(date)
	if date.IsZero() {
		day = model.Today(s.now())
	}
	j := model.Journal{
		ID:          uuid.NewString(),
		Reference:   reference,
		Date:        day,
		Description: description,
		Status:      model.StatusDraft,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.InsertJournal(ctx, j); err != nil {
		return model.Journal{}, fmt.Errorf("inserting journal %s: %w", reference, err)
	}

	s.entries[j.ID] = &entry{journal: j}
	s.byRef[reference] = j.ID
	s.seq.Observe(reference)

	s.log.Debug("draft created", zap.String("reference", reference))
	return j.Clone(), nil
}

// AddItem appends a debit or credit line to a draft journal.
func (s *Store) AddItem(ctx context.Context, journalID, accountID string, debit, credit decimal.Decimal) (model.JournalItem, error) {
	e, err := s.lookup(journalID)
	if err != nil {
		return model.JournalItem{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.draft(); err != nil {
		return model.JournalItem{}, err
	}
	ref := e.journal.Reference

	acct, err := s.accounts.Acquire(accountID)
	if err != nil {
		return model.JournalItem{}, withReference(err, ref)
	}
	if err := model.CheckAmounts(debit, credit, s.precision); err != nil {
		s.accounts.Release(accountID)
		return model.JournalItem{}, &model.Error{Kind: model.ErrInvalidAmount, Reference: ref, AccountCode: acct.Code, Detail: err.Error()}
	}

	line := 1
	if n := len(e.journal.Items); n > 0 {
		line = e.journal.Items[n-1].Line + 1
	}
	it := model.JournalItem{
		ID:        uuid.NewString(),
		JournalID: journalID,
		AccountID: accountID,
		Line:      line,
		Debit:     debit,
		Credit:    credit,
	}
	if err := s.repo.InsertItem(ctx, it); err != nil {
		s.accounts.Release(accountID)
		return model.JournalItem{}, fmt.Errorf("inserting item on %s: %w", ref, err)
	}

	e.journal.Items = append(e.journal.Items, it)
	s.mu.Lock()
	s.itemOwner[it.ID] = journalID
	s.mu.Unlock()
	return it, nil
}

// RemoveItem deletes a line from a draft journal.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.RLock()
	journalID, ok := s.itemOwner[itemID]
	s.mu.RUnlock()
	if !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "item " + itemID}
	}
	e, err := s.lookup(journalID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.draft(); err != nil {
		return err
	}
	i := slices.IndexFunc(e.journal.Items, func(it model.JournalItem) bool { return it.ID == itemID })
	if i < 0 {
		return &model.Error{Kind: model.ErrNotFound, Reference: e.journal.Reference, Detail: "item " + itemID}
	}
	it := e.journal.Items[i]
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("deleting item on %s: %w", e.journal.Reference, err)
	}

	e.journal.Items = slices.Delete(e.journal.Items, i, i+1)
	s.accounts.Release(it.AccountID)
	s.mu.Lock()
	delete(s.itemOwner, itemID)
	s.mu.Unlock()
	return nil
}

// DeleteDraft discards a draft journal and its items.
func (s *Store) DeleteDraft(ctx context.Context, journalID string) error {
	e, err := s.lookup(journalID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.draft(); err != nil {
		return err
	}
	if err := s.repo.DeleteJournal(ctx, journalID); err != nil {
		return fmt.Errorf("deleting journal %s: %w", e.journal.Reference, err)
	}

	e.deleted = true
	for _, it := range e.journal.Items {
		s.accounts.Release(it.AccountID)
	}

	s.mu.Lock()
	delete(s.entries, journalID)
	delete(s.byRef, e.journal.Reference)
	for _, it := range e.journal.Items {
		delete(s.itemOwner, it.ID)
	}
	s.mu.Unlock()

	s.log.Debug("draft deleted", zap.String("reference", e.journal.Reference))
	return nil
}

// Post validates a draft and moves it to Posted. On failure the journal
// stays a draft and the first violation is returned.
func (s *Store) Post(ctx context.Context, actor, journalID string) error {
	e, err := s.lookup(journalID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.draft(); err != nil {
		return err
	}
	if err := Validate(e.journal, s.accounts, s.precision); err != nil {
		return err
	}

	updated := e.journal.Clone()
	updated.Status = model.StatusPosted
	updated.PostedAt = s.now().UTC()
	updated.PostedBy = actor
	if err := s.repo.UpdateJournal(ctx, updated); err != nil {
		return fmt.Errorf("posting journal %s: %w", updated.Reference, err)
	}
	e.journal = updated

	debit, _ := updated.Totals()
	s.log.Info("journal posted",
		zap.String("reference", updated.Reference),
		zap.String("actor", actor),
		zap.String("amount", debit.StringFixed(s.precision)))
	s.notify.Notify(activity.Entry{
		Timestamp:   updated.PostedAt,
		Actor:       actor,
		Action:      activity.ActionPosted,
		Reference:   updated.Reference,
		Description: fmt.Sprintf("%s (%d items, %s)", updated.Description, len(updated.Items), debit.StringFixed(s.precision)),
	})
	return nil
}

// Void moves a posted journal to Voided. Items are kept for audit but no
// longer count towards balances from the void date on.
func (s *Store) Void(ctx context.Context, actor, journalID string) error {
	e, err := s.lookup(journalID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.journal.Status != model.StatusPosted {
		return &model.Error{Kind: model.ErrNotPosted, Reference: e.journal.Reference, Detail: "status " + string(e.journal.Status)}
	}

	updated := e.journal.Clone()
	updated.Status = model.StatusVoided
	updated.VoidedAt = s.now().UTC()
	updated.VoidedBy = actor
	if err := s.repo.UpdateJournal(ctx, updated); err != nil {
		return fmt.Errorf("voiding journal %s: %w", updated.Reference, err)
	}
	e.journal = updated
	for _, it := range updated.Items {
		s.accounts.Release(it.AccountID)
	}

	s.log.Info("journal voided", zap.String("reference", updated.Reference), zap.String("actor", actor))
	s.notify.Notify(activity.Entry{
		Timestamp:   updated.VoidedAt,
		Actor:       actor,
		Action:      activity.ActionVoided,
		Reference:   updated.Reference,
		Description: updated.Description,
	})
	return nil
}

// Get returns a copy of a journal with its items.
func (s *Store) Get(journalID string) (model.Journal, error) {
	e, err := s.lookup(journalID)
	if err != nil {
		return model.Journal{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return model.Journal{}, &model.Error{Kind: model.ErrNotFound, Detail: "journal " + journalID}
	}
	return e.journal.Clone(), nil
}

// ByReference returns a copy of the journal with the given reference.
func (s *Store) ByReference(reference string) (model.Journal, error) {
	s.mu.RLock()
	journalID, ok := s.byRef[reference]
	s.mu.RUnlock()
	if !ok {
		return model.Journal{}, &model.Error{Kind: model.ErrNotFound, Reference: reference}
	}
	return s.Get(journalID)
}

// List returns copies of every journal ordered by date, then reference.
func (s *Store) List() []model.Journal {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]model.Journal, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.journal.Clone())
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b model.Journal) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Reference, b.Reference)
	})
	return out
}

func (s *Store) lookup(journalID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[journalID]
	s.mu.RUnlock()
	if !ok {
		return nil, &model.Error{Kind: model.ErrNotFound, Detail: "journal " + journalID}
	}
	return e, nil
}

// draft reports whether the journal can still change. Callers hold e.mu.
func (e *entry) draft() error {
	if e.deleted {
		return &model.Error{Kind: model.ErrNotFound, Reference: e.journal.Reference}
	}
	if e.journal.Status != model.StatusDraft {
		return &model.Error{Kind: model.ErrJournalNotDraft, Reference: e.journal.Reference, Detail: "status " + string(e.journal.Status)}
	}
	return nil
}

// withReference fills in the journal reference on a ledger error.
func withReference(err error, ref string) error {
	var me *model.Error
	if errors.As(err, &me) && me.Reference == "" {
		cp := *me
		cp.Reference = ref
		return &cp
	}
	return err
}
