package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/logging"
)

func newInitCommand(opts *options) *cobra.Command {
	var name string
	var chart string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new set of books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.repo
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			log, err := logging.New("production")
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			b, err := books.Init(cmd.Context(), absDir, books.InitOptions{Name: name, Chart: chart, Git: useGit}, log)
			if err != nil {
				return err
			}
			n := len(b.Accounts.All())
			if err := b.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized books for %s at %s (%d accounts)\n", name, absDir, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&chart, "chart", "small_business", "starter chart of accounts")
	cmd.Flags().BoolVar(&useGit, "git", false, "keep the books directory under git")

	return cmd
}
