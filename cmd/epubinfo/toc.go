package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagefold/epub"
)

type tocFlags struct {
	kind string
	all  bool
}

func newTocCmd(g *rootFlags) *cobra.Command {
	f := &tocFlags{}

	cmd := &cobra.Command{
		Use:   "toc BOOK",
		Short: "Print a navigation tree",
		Long: `Print one navigation tree of the book, indented by depth. The kind
selects between the table of contents, the landmarks and the page list;
--all prints every parsed group including retained legacy variants.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToc(cmd.OutOrStdout(), g, f, args[0])
		},
	}

	cmd.Flags().StringVar(&f.kind, "kind", "toc", "tree to print: toc, landmarks, page-list")
	cmd.Flags().BoolVar(&f.all, "all", false, "print every parsed navigation group")
	return cmd
}

func runToc(out io.Writer, g *rootFlags, f *tocFlags, path string) error {
	var opts []epub.Option
	if f.all {
		opts = append(opts, epub.WithAllTocVariants())
	}
	book, err := g.open(path, opts...)
	if err != nil {
		return err
	}
	defer book.Close()

	if f.all {
		for i, grp := range book.Toc().Groups() {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "== %s (EPUB %s) ==\n", grp.Kind, grp.Version)
			printTree(out, grp.Root)
		}
		return nil
	}

	kind, err := parseTocKind(f.kind)
	if err != nil {
		return err
	}
	root := book.Toc().Group(kind)
	if root == nil {
		return fmt.Errorf("%s: no %s group", path, kind)
	}
	printTree(out, root)
	return nil
}

func parseTocKind(s string) (epub.TocKind, error) {
	switch s {
	case "toc":
		return epub.TocKindToc, nil
	case "landmarks":
		return epub.TocKindLandmarks, nil
	case "page-list":
		return epub.TocKindPageList, nil
	}
	return "", fmt.Errorf("unknown kind %q (want toc, landmarks or page-list)", s)
}

func printTree(out io.Writer, root *epub.TocEntry) {
	if root.Label != "" {
		fmt.Fprintln(out, root.Label)
	}
	for _, entry := range root.Flatten() {
		indent := strings.Repeat("  ", entry.Depth)
		if entry.Href != "" {
			fmt.Fprintf(out, "%s%s → %s\n", indent, entry.Label, entry.Href)
		} else {
			fmt.Fprintf(out, "%s%s\n", indent, entry.Label)
		}
	}
}
