package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cleared-dev/ledger/internal/model"
)

// Memory is an in-memory Repository. Nothing survives Close.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	journals map[string]model.Journal
	items    map[string]model.JournalItem
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]model.Account),
		journals: make(map[string]model.Journal),
		items:    make(map[string]model.JournalItem),
	}
}

func (m *Memory) InsertAccount(_ context.Context, a model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Code == a.Code {
			return &model.Error{Kind: model.ErrDuplicateCode, AccountCode: a.Code}
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) UpdateAccount(_ context.Context, a model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; !ok {
		return &model.Error{Kind: model.ErrNotFound, AccountCode: a.Code}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Account) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (m *Memory) InsertJournal(_ context.Context, j model.Journal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.journals {
		if existing.Reference == j.Reference {
			return &model.Error{Kind: model.ErrDuplicateReference, Reference: j.Reference}
		}
	}
	j.Items = nil
	m.journals[j.ID] = j
	return nil
}

func (m *Memory) UpdateJournal(_ context.Context, j model.Journal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.journals[j.ID]; !ok {
		return &model.Error{Kind: model.ErrNotFound, Reference: j.Reference}
	}
	j.Items = nil
	m.journals[j.ID] = j
	return nil
}

func (m *Memory) DeleteJournal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for itemID, it := range m.items {
		if it.JournalID == id {
			delete(m.items, itemID)
		}
	}
	delete(m.journals, id)
	return nil
}

func (m *Memory) InsertItem(_ context.Context, it model.JournalItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.journals[it.JournalID]; !ok {
		return &model.Error{Kind: model.ErrNotFound, Detail: "journal " + it.JournalID}
	}
	if _, ok := m.accounts[it.AccountID]; !ok {
		return &model.Error{Kind: model.ErrUnknownAccount, Detail: "account " + it.AccountID}
	}
	m.items[it.ID] = it
	return nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, id)
	return nil
}

func (m *Memory) ListJournals(_ context.Context) ([]model.Journal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byJournal := make(map[string][]model.JournalItem)
	for _, it := range m.items {
		byJournal[it.JournalID] = append(byJournal[it.JournalID], it)
	}

	out := make([]model.Journal, 0, len(m.journals))
	for _, j := range m.journals {
		items := byJournal[j.ID]
		slices.SortFunc(items, func(a, b model.JournalItem) int { return a.Line - b.Line })
		j.Items = items
		out = append(out, j)
	}
	sortJournals(out)
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

// sortJournals orders journals by date, then reference.
func sortJournals(js []model.Journal) {
	slices.SortFunc(js, func(a, b model.Journal) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Reference, b.Reference)
	})
}
