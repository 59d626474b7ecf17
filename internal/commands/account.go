package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/model"
)

func newAccountCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountAddCommand(opts),
		newAccountMoveCommand(opts),
		newAccountRetireCommand(opts),
		newAccountRenameCommand(opts),
		newAccountReclassifyCommand(opts),
		newAccountListCommand(opts),
	)
	return cmd
}

func newAccountAddCommand(opts *options) *cobra.Command {
	var typ, parent, description string

	cmd := &cobra.Command{
		Use:   "add <code> <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseAccountType(typ)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(b *books.Books) error {
				p := accounts.NewAccount{Code: args[0], Name: args[1], Type: t, Description: description}
				if parent != "" {
					pa, err := account(b, parent)
					if err != nil {
						return &model.Error{Kind: model.ErrInvalidParent, AccountCode: parent}
					}
					p.ParentID = pa.ID
				}
				a, err := b.Accounts.Create(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s (%s)\n", a.Code, a.Name, a.Type)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "asset, liability, equity, revenue or expense (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account code")
	cmd.Flags().StringVar(&description, "description", "", "account description")
	return cmd
}

func newAccountMoveCommand(opts *options) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "move <code>",
		Short: "Move an account under a new parent, or to the top level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				a, err := account(b, args[0])
				if err != nil {
					return err
				}
				parentID := ""
				if parent != "" {
					pa, err := account(b, parent)
					if err != nil {
						return err
					}
					parentID = pa.ID
				}
				if err := b.Accounts.Reparent(cmd.Context(), a.ID, parentID); err != nil {
					return err
				}
				if parent == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to the top level\n", a.Code)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Moved %s under %s\n", a.Code, parent)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "new parent account code (blank for top level)")
	return cmd
}

func newAccountRetireCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retire <code>",
		Short: "Retire an account so it accepts no new items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				a, err := account(b, args[0])
				if err != nil {
					return err
				}
				if err := b.Accounts.Retire(cmd.Context(), a.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retired %s %s\n", a.Code, a.Name)
				return nil
			})
		},
	}
}

func newAccountRenameCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <code> <name>",
		Short: "Rename an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				a, err := account(b, args[0])
				if err != nil {
					return err
				}
				if err := b.Accounts.Rename(cmd.Context(), a.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", a.Code, args[1])
				return nil
			})
		},
	}
}

func newAccountReclassifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify <code> <type>",
		Short: "Change the type of an account with no journal items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseAccountType(args[1])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(b *books.Books) error {
				a, err := account(b, args[0])
				if err != nil {
					return err
				}
				if err := b.Accounts.Reclassify(cmd.Context(), a.ID, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclassified %s as %s\n", a.Code, t)
				return nil
			})
		},
	}
}

func newAccountListCommand(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the chart of accounts as a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tSTATUS\tITEMS")
				for _, root := range b.Accounts.Roots() {
					if err := printTree(tw, b.Accounts, root, 0, all); err != nil {
						return err
					}
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include retired accounts")
	return cmd
}

func printTree(w io.Writer, dir *accounts.Directory, a model.Account, depth int, all bool) error {
	if a.Retired && !all {
		return nil
	}
	status := "active"
	if a.Retired {
		status = "retired"
	}
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%d\n", strings.Repeat("  ", depth), a.Code, a.Name, a.Type, status, dir.Usage(a.ID))

	children, err := dir.Children(a.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := printTree(w, dir, c, depth+1, all); err != nil {
			return err
		}
	}
	return nil
}
