package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/model"
)

func newReportCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Balances and the trial balance",
	}
	cmd.AddCommand(
		newBalanceCommand(opts, "balance", "Balance of one account", func(b *books.Books, id string, asOf time.Time) (decimal.Decimal, error) {
			return b.Ledger.AccountBalance(id, asOf)
		}),
		newBalanceCommand(opts, "subtree", "Balance of an account and all its descendants", func(b *books.Books, id string, asOf time.Time) (decimal.Decimal, error) {
			return b.Ledger.SubtreeBalance(id, asOf)
		}),
		newTrialCommand(opts),
	)
	return cmd
}

func newBalanceCommand(opts *options, use, short string, query func(b *books.Books, id string, asOf time.Time) (decimal.Decimal, error)) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   use + " <account>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseDate("as-of", asOf)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(b *books.Books) error {
				a, err := account(b, args[0])
				if err != nil {
					return err
				}
				bal, err := query(b, a.ID, on)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s %s\n", a.Code, a.Name, bal.StringFixed(b.Journals.Precision()), b.Config.Ledger.Currency)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default current)")
	return cmd
}

func newTrialCommand(opts *options) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Trial balance of every account with activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseDate("as-of", asOf)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(b *books.Books) error {
				tb, err := b.Ledger.TrialBalance(on)
				if err != nil {
					return err
				}
				places := b.Journals.Precision()

				out := cmd.OutOrStdout()
				if on.IsZero() {
					fmt.Fprintln(out, "Trial balance (current)")
				} else {
					fmt.Fprintf(out, "Trial balance as of %s\n", on.Format(dateLayout))
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT\t")
				for _, r := range tb.Rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Account.Code, r.Account.Name, amount(r.Debit, places), amount(r.Credit, places))
				}
				fmt.Fprintf(tw, "\tTotal\t%s\t%s\t\n", tb.TotalDebit.StringFixed(places), tb.TotalCredit.StringFixed(places))
				if err := tw.Flush(); err != nil {
					return err
				}
				if !tb.Balanced() {
					return &model.Error{Kind: model.ErrUnbalancedEntry, Detail: "trial balance totals differ"}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default current)")
	return cmd
}
