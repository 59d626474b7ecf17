// Package books opens a books directory: its gl.yaml, its database and
// the services built on top of them.
package books

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/activity"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/store"
)

// Dirs are created under the books directory by Init.
var Dirs = []string{
	"logs",
	"import",
	filepath.Join("import", "processed"),
}

// Books is an open set of books.
type Books struct {
	Root     string
	Config   *config.Config
	Accounts *accounts.Directory
	Journals *journal.Store
	Ledger   *ledger.Engine
	Importer *importer.Importer
	Parsers  *importer.Registry

	repo     store.Repository
	activity *activity.Log
	log      *zap.Logger
}

// Load reads gl.yaml from root and opens the books it describes.
func Load(ctx context.Context, root string, log *zap.Logger) (*Books, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	return Open(ctx, root, cfg, log)
}

// Open connects to the configured database and restores the books.
func Open(ctx context.Context, root string, cfg *config.Config, log *zap.Logger) (*Books, error) {
	repo, err := store.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(root), log)
	if err != nil {
		return nil, err
	}
	b, err := OpenWith(ctx, root, cfg, repo, log)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return b, nil
}

// OpenWith restores the books from repo. Closing the books closes repo.
func OpenWith(ctx context.Context, root string, cfg *config.Config, repo store.Repository, log *zap.Logger) (*Books, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := accounts.NewDirectory(repo, log.Named("accounts"))
	accts, err := repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	if err := dir.Restore(accts); err != nil {
		return nil, fmt.Errorf("restoring accounts: %w", err)
	}

	act := activity.NewLog(cfg.ActivityPath(root), cfg.Activity.QueueSize, log.Named("activity"))
	js := journal.NewStore(repo, dir, journal.Options{
		Precision:       cfg.Ledger.Precision,
		ReferencePrefix: cfg.Ledger.ReferencePrefix,
		Notifier:        act,
		Logger:          log.Named("journal"),
	})
	journals, err := repo.ListJournals(ctx)
	if err != nil {
		act.Close()
		return nil, fmt.Errorf("loading journals: %w", err)
	}
	if err := js.Restore(journals); err != nil {
		act.Close()
		return nil, fmt.Errorf("restoring journals: %w", err)
	}

	feeds := make([]importer.BankFeed, 0, len(cfg.BankAccounts))
	for _, ba := range cfg.BankAccounts {
		feeds = append(feeds, importer.BankFeed{Name: ba.Name, Format: ba.Format, AccountCode: ba.AccountCode, SuspenseCode: ba.SuspenseCode})
	}

	log.Debug("books opened",
		zap.String("root", root),
		zap.Int("accounts", len(accts)),
		zap.Int("journals", len(journals)),
	)

	return &Books{
		Root:     root,
		Config:   cfg,
		Accounts: dir,
		Journals: js,
		Ledger:   ledger.NewEngine(dir, js),
		Importer: importer.New(js, dir, log.Named("importer")),
		Parsers:  importer.DefaultRegistry(feeds...),
		repo:     repo,
		activity: act,
		log:      log,
	}, nil
}

// InitOptions configures a new books directory.
type InitOptions struct {
	Name  string // business name
	Chart string // starter chart; blank uses the default
	Git   bool   // keep the directory under git
}

// gitignore keeps the database and raw imports out of git; snapshots carry
// the reviewable state.
const gitignore = "gl.db\ngl.db-*\nimport/\n"

// Init creates a new books directory at root with a default gl.yaml and
// the starter chart. It fails if root already holds books.
func Init(ctx context.Context, root string, opts InitOptions, log *zap.Logger) (*Books, error) {
	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return nil, fmt.Errorf("%s already exists", cfgPath)
	}

	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(opts.Name)
	if opts.Chart != "" {
		cfg.Business.Chart = opts.Chart
	}
	cfg.Git.Enabled = opts.Git
	if err := config.Save(cfgPath, cfg); err != nil {
		return nil, err
	}

	if opts.Git {
		if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(gitignore), 0o644); err != nil {
			return nil, fmt.Errorf("writing .gitignore: %w", err)
		}
		if err := gitops.Init(ctx, root); err != nil {
			return nil, err
		}
	}

	b, err := Open(ctx, root, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := b.Accounts.Import(ctx, accounts.DefaultChart(cfg.Business.Chart)); err != nil {
		b.Close()
		return nil, fmt.Errorf("seeding chart of accounts: %w", err)
	}
	if opts.Git {
		if _, err := b.Snapshot(ctx, "init: Initialize "+opts.Name); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

// Close flushes the activity log and closes the database.
func (b *Books) Close() error {
	return errors.Join(b.activity.Close(), b.repo.Close())
}
