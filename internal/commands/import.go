package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/books"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/model"
)

func newImportCommand(opts *options) *cobra.Command {
	var format string
	var post bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import journal rows or a bank export",
		Long: `Import rows from a CSV file. Rows sharing a reference become one journal;
an existing draft with that reference is appended to.

Without a file, every CSV in import/ is imported and moved to
import/processed/ once all of its rows apply. A file whose name starts with
a registered format (chase_jan.csv) uses that format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(b *books.Books) error {
				in := importer.Options{Post: post, Actor: opts.actor}
				if len(args) == 1 {
					return importFile(cmd, b, args[0], format, in)
				}
				return importDir(cmd, b, format, in)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "parser: journal or a configured bank feed name")
	cmd.Flags().BoolVar(&post, "post", false, "post each journal whose rows all applied")
	return cmd
}

func importDir(cmd *cobra.Command, b *books.Books, format string, in importer.Options) error {
	files, err := importer.Scan(b.Root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import")
		return nil
	}

	var failed []string
	for _, f := range files {
		if err := importFile(cmd, b, f.Path, formatFor(b.Parsers, f.Name, format), in); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), FormatError(err))
			failed = append(failed, f.Name)
			continue
		}
		if err := importer.MarkProcessed(b.Root, f.Name); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files left in import/: %s", len(failed), len(files), strings.Join(failed, ", "))
	}
	return nil
}

// formatFor picks the parser for a scanned file: an explicit --format
// wins, then a registered format prefixing the file name, then journal.
func formatFor(reg *importer.Registry, name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	for _, f := range reg.Formats() {
		if base == f || strings.HasPrefix(base, f+"_") || strings.HasPrefix(base, f+"-") {
			return f
		}
	}
	return "journal"
}

func importFile(cmd *cobra.Command, b *books.Books, path, format string, in importer.Options) error {
	if format == "" {
		format = "journal"
	}
	p := b.Parsers.Get(format)
	if p == nil {
		return fmt.Errorf("unknown import format %q (have %s)", format, strings.Join(b.Parsers.Formats(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := p.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	res := b.Importer.Apply(cmd.Context(), rows, in)
	printResult(cmd.OutOrStdout(), filepath.Base(path), res)
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%s: %d failures", filepath.Base(path), n)
	}
	return nil
}

func printResult(w io.Writer, name string, res importer.Result) {
	for _, r := range res.Rows {
		if r.Err != nil {
			fmt.Fprintf(w, "%s:%d: %s: %s: %v\n", name, r.Line, r.Reference, kindOr(r.Err), r.Err)
		}
	}
	for _, j := range res.Journals {
		switch {
		case j.Err != nil:
			fmt.Fprintf(w, "%s: %s: %s: %v\n", name, j.Reference, kindOr(j.Err), j.Err)
		case j.Posted:
			fmt.Fprintf(w, "%s: %s posted\n", name, j.Reference)
		case j.Created:
			fmt.Fprintf(w, "%s: %s drafted\n", name, j.Reference)
		default:
			fmt.Fprintf(w, "%s: %s updated\n", name, j.Reference)
		}
	}
	fmt.Fprintf(w, "%s: %d rows, %d journals, %d failures\n", name, len(res.Rows), len(res.Journals), res.Failed())
}

func kindOr(err error) string {
	if k := model.KindOf(err); k != "" {
		return k
	}
	return "error"
}
