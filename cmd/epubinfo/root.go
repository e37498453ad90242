package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagefold/epub"
)

// rootFlags carries the persistent flags shared by every subcommand.
type rootFlags struct {
	lenient bool
}

// open opens a book honoring the persistent mode flags.
func (f *rootFlags) open(path string, opts ...epub.Option) (*epub.Book, error) {
	if f.lenient {
		opts = append(opts, epub.WithLenient())
	}
	book, err := epub.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return book, nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "epubinfo",
		Short: "Inspect EPUB publications",
		Long: `epubinfo reads EPUB 2 and EPUB 3 publications and prints their
package metadata, navigation structures, chapter content and cover image.

Books open in strict mode by default: malformed packages fail with a
categorized error. Pass --lenient to downgrade recoverable defects to
warnings and salvage what is readable.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&flags.lenient, "lenient", false,
		"downgrade recoverable parse failures to warnings")

	cmd.AddCommand(
		newInfoCmd(flags),
		newTocCmd(flags),
		newReadCmd(flags),
		newCoverCmd(flags),
		newCheckCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
