package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pagefold/epub"
)

type checkFlags struct {
	strict bool
}

func newCheckCmd() *cobra.Command {
	f := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check BOOK...",
		Short: "Validate books and list their defects",
		Long: `Open each book in lenient mode and report the defects recorded
while parsing. Unreadable books always count as failures; --strict also
fails books that opened with warnings.

Examples:
  # Survey a library
  epubinfo check library/*.epub

  # Gate a publishing pipeline on clean books
  epubinfo check --strict build/book.epub`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), f, args)
		},
	}

	cmd.Flags().BoolVar(&f.strict, "strict", false, "treat warnings as failures")
	return cmd
}

func runCheck(out io.Writer, f *checkFlags, paths []string) error {
	failures := 0
	for _, path := range paths {
		warnings, err := checkBook(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failures++
			continue
		}
		if len(warnings) == 0 {
			fmt.Fprintf(out, "%s: ok\n", path)
			continue
		}
		fmt.Fprintf(out, "%s: %d warning(s)\n", path, len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
		if f.strict {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d books failed", failures, len(paths))
	}
	return nil
}

func checkBook(path string) ([]string, error) {
	book, err := epub.Open(path, epub.WithLenient())
	if err != nil {
		return nil, err
	}
	defer book.Close()
	return book.Warnings(), nil
}
