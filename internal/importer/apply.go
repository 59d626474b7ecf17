package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/model"
)

// Journals is the part of the journal store the importer writes through.
type Journals interface {
	CreateDraft(ctx context.Context, reference string, date time.Time, description string) (model.Journal, error)
	AddItem(ctx context.Context, journalID, accountID string, debit, credit decimal.Decimal) (model.JournalItem, error)
	ByReference(reference string) (model.Journal, error)
	Post(ctx context.Context, actor, journalID string) error
}

// Accounts resolves account codes or IDs.
type Accounts interface {
	Resolve(ref string) (model.Account, error)
}

// Options controls Apply.
type Options struct {
	Post  bool // post each journal whose rows all applied
	Actor string
}

// RowResult is the outcome of one imported row.
type RowResult struct {
	Line      int
	Reference string
	ItemID    string
	Err       error
}

// JournalResult is the outcome for one reference group.
type JournalResult struct {
	Reference string
	JournalID string
	Created   bool
	Posted    bool
	Err       error
}

// Result collects per-row and per-journal outcomes of an import.
type Result struct {
	Rows     []RowResult
	Journals []JournalResult
}

// Failed returns the number of rows and journals that did not apply.
func (r Result) Failed() int {
	n := 0
	for _, row := range r.Rows {
		if row.Err != nil {
			n++
		}
	}
	for _, j := range r.Journals {
		if j.Err != nil {
			n++
		}
	}
	return n
}

// Importer applies parsed rows to the journal store.
type Importer struct {
	journals Journals
	accounts Accounts
	log      *zap.Logger
}

// New creates an Importer.
func New(journals Journals, accounts Accounts, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{journals: journals, accounts: accounts, log: log}
}

type group struct {
	reference string
	rows      []Row
}

// groupRows groups rows by reference in order of first appearance.
func groupRows(rows []Row) []*group {
	var groups []*group
	byRef := make(map[string]*group)
	for _, r := range rows {
		ref := strings.TrimSpace(r.Reference)
		g, ok := byRef[ref]
		if !ok {
			g = &group{reference: ref}
			byRef[ref] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups
}

// Apply writes rows into journals. Rows sharing a reference land in the
// same journal: an existing draft is appended to, otherwise a new draft is
// created from the group's first row. A failing row does not stop the
// rest; with opts.Post a journal is posted only if all its rows applied.
func (im *Importer) Apply(ctx context.Context, rows []Row, opts Options) Result {
	var res Result
	for _, g := range groupRows(rows) {
		if err := ctx.Err(); err != nil {
			res.Journals = append(res.Journals, JournalResult{Reference: g.reference, Err: err})
			continue
		}
		jr, rowResults := im.applyGroup(ctx, g, opts)
		res.Rows = append(res.Rows, rowResults...)
		res.Journals = append(res.Journals, jr)
	}
	im.log.Info("import applied",
		zap.Int("rows", len(res.Rows)),
		zap.Int("journals", len(res.Journals)),
		zap.Int("failed", res.Failed()),
	)
	return res
}

func (im *Importer) applyGroup(ctx context.Context, g *group, opts Options) (JournalResult, []RowResult) {
	jr := JournalResult{Reference: g.reference}
	results := make([]RowResult, len(g.rows))
	for i, r := range g.rows {
		results[i] = RowResult{Line: r.Line, Reference: g.reference}
	}
	failAll := func(err error) (JournalResult, []RowResult) {
		jr.Err = err
		for i := range results {
			results[i].Err = err
		}
		return jr, results
	}

	j, created, err := im.target(ctx, g)
	if err != nil {
		return failAll(err)
	}
	jr.JournalID = j.ID
	jr.Reference = j.Reference
	jr.Created = created

	ok := true
	for i, r := range g.rows {
		results[i].Reference = j.Reference
		it, err := im.applyRow(ctx, j, r)
		if err != nil {
			results[i].Err = err
			ok = false
			im.log.Warn("import row failed", zap.Int("line", r.Line), zap.String("reference", j.Reference), zap.Error(err))
			continue
		}
		results[i].ItemID = it.ID
	}

	if opts.Post && ok {
		if err := im.journals.Post(ctx, opts.Actor, j.ID); err != nil {
			jr.Err = err
			return jr, results
		}
		jr.Posted = true
	}
	return jr, results
}

// target returns the draft a group writes into, creating it if the
// reference is blank or unknown.
func (im *Importer) target(ctx context.Context, g *group) (model.Journal, bool, error) {
	if g.reference != "" {
		j, err := im.journals.ByReference(g.reference)
		if err == nil {
			if j.Status != model.StatusDraft {
				return model.Journal{}, false, &model.Error{Kind: model.ErrJournalNotDraft, Reference: j.Reference, Detail: "status " + string(j.Status)}
			}
			return j, false, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.Journal{}, false, err
		}
	}

	first := g.rows[0]
	var date time.Time
	if s := strings.TrimSpace(first.Date); s != "" {
		d, err := time.Parse(dateFormat, s)
		if err != nil {
			return model.Journal{}, false, fmt.Errorf("line %d: parsing date %q: %w", first.Line, s, err)
		}
		date = d
	}
	j, err := im.journals.CreateDraft(ctx, g.reference, date, strings.TrimSpace(first.Description))
	if err != nil {
		return model.Journal{}, false, err
	}
	return j, true, nil
}

func (im *Importer) applyRow(ctx context.Context, j model.Journal, r Row) (model.JournalItem, error) {
	acct, err := im.accounts.Resolve(r.Account)
	if err != nil {
		return model.JournalItem{}, &model.Error{Kind: model.ErrUnknownAccount, Reference: j.Reference, AccountCode: r.Account}
	}
	debit, err := model.ParseAmount(r.Debit)
	if err != nil {
		return model.JournalItem{}, &model.Error{Kind: model.ErrInvalidAmount, Reference: j.Reference, AccountCode: acct.Code, Detail: err.Error()}
	}
	credit, err := model.ParseAmount(r.Credit)
	if err != nil {
		return model.JournalItem{}, &model.Error{Kind: model.ErrInvalidAmount, Reference: j.Reference, AccountCode: acct.Code, Detail: err.Error()}
	}
	return im.journals.AddItem(ctx, j.ID, acct.ID, debit, credit)
}
