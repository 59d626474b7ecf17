package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/ledger"
)

func newExportCommand(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write ledger data as CSV",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	var asOf string
	trial := &cobra.Command{
		Use:   "trial",
		Short: "Export the trial balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseDate("as-of", asOf)
			if err != nil {
				return err
			}
			return opts.export(cmd, output, func(b *books.Books, w io.Writer) error {
				tb, err := b.Ledger.TrialBalance(on)
				if err != nil {
					return err
				}
				return ledger.WriteTrialBalance(w, tb, b.Journals.Precision())
			})
		},
	}
	trial.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default current)")

	journals := &cobra.Command{
		Use:   "journals",
		Short: "Export every journal item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.export(cmd, output, func(b *books.Books, w io.Writer) error {
				codeOf := func(id string) string {
					if a, err := b.Accounts.Get(id); err == nil {
						return a.Code
					}
					return id
				}
				return journal.WriteItems(w, b.Journals.List(), codeOf, b.Journals.Precision())
			})
		},
	}

	chart := &cobra.Command{
		Use:   "chart",
		Short: "Export the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.export(cmd, output, func(b *books.Books, w io.Writer) error {
				return accounts.WriteChart(w, b.Accounts.Export())
			})
		},
	}

	cmd.AddCommand(trial, journals, chart)
	return cmd
}

// export runs fn against the output file, or stdout when output is blank.
func (o *options) export(cmd *cobra.Command, output string, fn func(b *books.Books, w io.Writer) error) error {
	return o.run(cmd, func(b *books.Books) error {
		if output == "" {
			return fn(b, cmd.OutOrStdout())
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		if err := fn(b, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", output, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
		return nil
	})
}
