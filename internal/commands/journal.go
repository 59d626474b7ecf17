package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/model"
)

func newJournalCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Create, post and void journal entries",
	}
	cmd.AddCommand(
		newJournalNewCommand(opts),
		newJournalAddCommand(opts),
		newJournalRemoveCommand(opts),
		newJournalDeleteCommand(opts),
		newJournalPostCommand(opts),
		newJournalVoidCommand(opts),
		newJournalShowCommand(opts),
		newJournalListCommand(opts),
	)
	return cmd
}

func newJournalNewCommand(opts *options) *cobra.Command {
	var ref, date, description string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Open a draft journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseDate("date", date)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(b *books.Books) error {
				j, err := b.Journals.CreateDraft(cmd.Context(), ref, on, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created draft %s dated %s\n", j.Reference, j.Date.Format(dateLayout))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "journal reference (generated when blank)")
	cmd.Flags().StringVar(&date, "date", "", "entry date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "journal description")
	return cmd
}

func newJournalAddCommand(opts *options) *cobra.Command {
	var debit, credit string

	cmd := &cobra.Command{
		Use:   "add <reference> <account>",
		Short: "Add a debit or credit line to a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				j, err := b.Journals.ByReference(args[0])
				if err != nil {
					return err
				}
				a, err := b.Accounts.Resolve(args[1])
				if err != nil {
					return &model.Error{Kind: model.ErrUnknownAccount, Reference: j.Reference, AccountCode: args[1]}
				}
				d, err := model.ParseAmount(debit)
				if err != nil {
					return &model.Error{Kind: model.ErrInvalidAmount, Reference: j.Reference, AccountCode: a.Code, Detail: err.Error()}
				}
				c, err := model.ParseAmount(credit)
				if err != nil {
					return &model.Error{Kind: model.ErrInvalidAmount, Reference: j.Reference, AccountCode: a.Code, Detail: err.Error()}
				}

				it, err := b.Journals.AddItem(cmd.Context(), j.ID, a.ID, d, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added line %d to %s (item %s)\n", it.Line, j.Reference, it.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&debit, "debit", "", "debit amount")
	cmd.Flags().StringVar(&credit, "credit", "", "credit amount")
	return cmd
}

func newJournalRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <item-id>",
		Short: "Remove a line from a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				if err := b.Journals.RemoveItem(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed item %s\n", args[0])
				return nil
			})
		},
	}
}

// journalAction runs one of the reference-only lifecycle commands.
func journalAction(opts *options, use, short, done string, fn func(b *books.Books, cmd *cobra.Command, j model.Journal) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <reference>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				j, err := b.Journals.ByReference(args[0])
				if err != nil {
					return err
				}
				if err := fn(b, cmd, j); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, j.Reference)
				return nil
			})
		},
	}
}

func newJournalDeleteCommand(opts *options) *cobra.Command {
	return journalAction(opts, "delete", "Delete a draft and its lines", "Deleted",
		func(b *books.Books, cmd *cobra.Command, j model.Journal) error {
			return b.Journals.DeleteDraft(cmd.Context(), j.ID)
		})
}

func newJournalPostCommand(opts *options) *cobra.Command {
	return journalAction(opts, "post", "Validate and post a draft", "Posted",
		func(b *books.Books, cmd *cobra.Command, j model.Journal) error {
			return b.Journals.Post(cmd.Context(), opts.actor, j.ID)
		})
}

func newJournalVoidCommand(opts *options) *cobra.Command {
	return journalAction(opts, "void", "Void a posted journal", "Voided",
		func(b *books.Books, cmd *cobra.Command, j model.Journal) error {
			return b.Journals.Void(cmd.Context(), opts.actor, j.ID)
		})
}

func newJournalShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reference>",
		Short: "Print a journal and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				j, err := b.Journals.ByReference(args[0])
				if err != nil {
					return err
				}
				places := b.Journals.Precision()

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s  %s\n", j.Reference, j.Date.Format(dateLayout), j.Status)
				if j.Description != "" {
					fmt.Fprintln(out, j.Description)
				}
				switch j.Status {
				case model.StatusPosted:
					fmt.Fprintf(out, "posted by %s at %s\n", j.PostedBy, j.PostedAt.Format(timeLayout))
				case model.StatusVoided:
					fmt.Fprintf(out, "voided by %s at %s\n", j.VoidedBy, j.VoidedAt.Format(timeLayout))
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(tw, "LINE\tACCOUNT\tDEBIT\tCREDIT\tITEM\t")
				for _, it := range j.Items {
					code := it.AccountID
					if a, err := b.Accounts.Get(it.AccountID); err == nil {
						code = a.Code
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", it.Line, code, amount(it.Debit, places), amount(it.Credit, places), it.ID)
				}
				debit, credit := j.Totals()
				fmt.Fprintf(tw, "\tTotal\t%s\t%s\t\t\n", debit.StringFixed(places), credit.StringFixed(places))
				return tw.Flush()
			})
		},
	}
}

func newJournalListCommand(opts *options) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journals by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status = strings.ToLower(strings.TrimSpace(status))
			switch model.JournalStatus(status) {
			case "", model.StatusDraft, model.StatusPosted, model.StatusVoided:
			default:
				return fmt.Errorf("--status must be draft, posted or voided, got %q", status)
			}
			return opts.run(cmd, func(b *books.Books) error {
				places := b.Journals.Precision()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "REFERENCE\tDATE\tSTATUS\tAMOUNT\tDESCRIPTION")
				for _, j := range b.Journals.List() {
					if status != "" && string(j.Status) != status {
						continue
					}
					debit, _ := j.Totals()
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.Reference, j.Date.Format(dateLayout), j.Status, debit.StringFixed(places), j.Description)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only journals with this status")
	return cmd
}
