package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
)

func newSnapshotCommand(opts *options) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export the books to exports/ and commit them when git is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				msg := message
				if msg == "" {
					msg = fmt.Sprintf("snapshot: %s by %s", time.Now().Format(dateLayout), opts.actor)
				}
				res, err := b.Snapshot(cmd.Context(), msg)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, f := range res.Files {
					rel, err := filepath.Rel(b.Root, f)
					if err != nil {
						rel = f
					}
					fmt.Fprintf(out, "Wrote %s\n", rel)
				}
				switch {
				case res.Commit != "":
					fmt.Fprintf(out, "Committed %s\n", res.Commit)
				case b.Config.Git.Enabled:
					fmt.Fprintln(out, "No changes to commit")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
