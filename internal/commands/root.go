package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/buildinfo"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05Z07:00"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	repo  string
	actor string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "gl",
		Short:   "Double-entry general ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "books directory")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor(), "name recorded on posts and voids")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newAccountCommand(opts),
		newJournalCommand(opts),
		newReportCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newSnapshotCommand(opts),
	)

	return rootCmd
}

// FormatError renders a command error for the terminal, leading with the
// ledger error kind when there is one.
func FormatError(err error) string {
	if kind := model.KindOf(err); kind != "" {
		return fmt.Sprintf("error: %s: %v", kind, err)
	}
	return fmt.Sprintf("error: %v", err)
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "gl"
}

// open loads the books at --repo.
func (o *options) open(cmd *cobra.Command) (*books.Books, error) {
	root, err := filepath.Abs(o.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return books.Open(cmd.Context(), root, cfg, log)
}

// run opens the books, calls fn and closes them again.
func (o *options) run(cmd *cobra.Command, fn func(b *books.Books) error) (err error) {
	b, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, b.Close())
	}()
	return fn(b)
}

// parseDate parses a YYYY-MM-DD flag value. Blank is the zero time.
func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, s)
	}
	return t, nil
}

// amount prints a non-zero amount at the ledger precision, blank otherwise.
func amount(d decimal.Decimal, places int32) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(places)
}

// account resolves a code or ID argument.
func account(b *books.Books, ref string) (model.Account, error) {
	a, err := b.Accounts.Resolve(ref)
	if err != nil {
		return model.Account{}, &model.Error{Kind: model.ErrNotFound, AccountCode: ref}
	}
	return a, nil
}
