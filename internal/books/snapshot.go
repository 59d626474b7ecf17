package books

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/ledger"
)

// SnapshotDir holds the CSV exports written by Snapshot.
const SnapshotDir = "exports"

// Snapshot file names under SnapshotDir.
const (
	ChartFile    = "chart-of-accounts.csv"
	JournalsFile = "journals.csv"
	TrialFile    = "trial-balance.csv"
)

// SnapshotResult lists what a snapshot wrote and committed.
type SnapshotResult struct {
	Files  []string
	Commit string // short hash; empty when git is off or nothing changed
}

// Snapshot exports the chart, every journal item and the current trial
// balance to SnapshotDir. With git enabled the books directory is then
// committed with message.
func (b *Books) Snapshot(ctx context.Context, message string) (SnapshotResult, error) {
	dir := filepath.Join(b.Root, SnapshotDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SnapshotResult{}, fmt.Errorf("creating %s: %w", SnapshotDir, err)
	}

	places := b.Journals.Precision()
	tb, err := b.Ledger.TrialBalance(time.Time{})
	if err != nil {
		return SnapshotResult{}, err
	}
	codeOf := func(id string) string {
		if a, err := b.Accounts.Get(id); err == nil {
			return a.Code
		}
		return id
	}

	writers := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{ChartFile, func(w io.Writer) error { return accounts.WriteChart(w, b.Accounts.Export()) }},
		{JournalsFile, func(w io.Writer) error { return journal.WriteItems(w, b.Journals.List(), codeOf, places) }},
		{TrialFile, func(w io.Writer) error { return ledger.WriteTrialBalance(w, tb, places) }},
	}

	var res SnapshotResult
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		if err := writeFile(path, wr.write); err != nil {
			return SnapshotResult{}, err
		}
		res.Files = append(res.Files, path)
	}

	if !b.Config.Git.Enabled {
		return res, nil
	}
	changed, err := gitops.Changed(ctx, b.Root)
	if err != nil {
		return SnapshotResult{}, err
	}
	if !changed {
		return res, nil
	}
	author := gitops.Author{Name: b.Config.Git.AuthorName, Email: b.Config.Git.AuthorEmail}
	res.Commit, err = gitops.CommitAll(ctx, b.Root, message, author)
	if err != nil {
		return SnapshotResult{}, err
	}
	b.log.Info("snapshot committed", zap.String("commit", res.Commit), zap.String("message", message))
	return res, nil
}

// writeFile writes through a temp file so a failed export never leaves a
// truncated snapshot.
func writeFile(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
