package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagefold/epub"
)

func newInfoCmd(g *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info BOOK",
		Short: "Print package metadata and structure counts",
		Long: `Print the package identity (version, title, creators, identifiers),
the manifest, spine and chapter counts, the parsed navigation groups, and
any warnings recorded while opening.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), g, args[0])
		},
	}
}

func runInfo(out io.Writer, g *rootFlags, path string) error {
	book, err := g.open(path)
	if err != nil {
		return err
	}
	defer book.Close()

	md := book.Metadata()

	printField(out, "Version", md.VersionString())
	if t := md.Title(); t != nil {
		printField(out, "Title", t.Value)
	}
	for _, c := range md.Creators() {
		printField(out, "Creator", entryWithRole(c))
	}
	for _, c := range md.Contributors() {
		printField(out, "Contributor", entryWithRole(c))
	}
	if l := md.Language(); l != nil {
		printField(out, "Language", l.Value)
	}
	if id := md.UniqueIdentifier(); id != nil {
		printField(out, "Identifier", id.Value)
	}
	if p := md.Publisher(); p != nil {
		printField(out, "Publisher", p.Value)
	}
	if d := md.Date(); d != nil {
		printField(out, "Date", d.Value)
	}
	if m := md.Modified(); m != nil {
		printField(out, "Modified", m.Value)
	}
	if subjects := md.Subjects(); len(subjects) > 0 {
		values := make([]string, len(subjects))
		for i, s := range subjects {
			values[i] = s.Value
		}
		printField(out, "Subjects", strings.Join(values, ", "))
	}
	if d := md.Description(); d != nil {
		printField(out, "Description", d.Value)
	}

	printField(out, "Package", book.PackagePath())
	printField(out, "Manifest", fmt.Sprintf("%d entries", book.Manifest().Len()))
	printField(out, "Spine", fmt.Sprintf("%d entries (%d linear)",
		book.Spine().Len(), countLinear(book.Spine())))
	printField(out, "Chapters", fmt.Sprintf("%d", len(book.Chapters())))

	if groups := book.Toc().Groups(); len(groups) > 0 {
		labels := make([]string, len(groups))
		for i, grp := range groups {
			labels[i] = fmt.Sprintf("%s %s", grp.Kind, grp.Version)
		}
		printField(out, "Toc groups", strings.Join(labels, ", "))
	}

	if warnings := book.Warnings(); len(warnings) > 0 {
		printField(out, "Warnings", fmt.Sprintf("%d", len(warnings)))
		for _, w := range warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
	}
	return nil
}

func printField(out io.Writer, name, value string) {
	fmt.Fprintf(out, "%-12s %s\n", name+":", value)
}

// entryWithRole renders a creator or contributor with its role
// refinement, e.g. "B. Marlowe (aut)".
func entryWithRole(e *epub.MetaEntry) string {
	if r := e.Refinement("role"); r != nil && r.Value != "" {
		return fmt.Sprintf("%s (%s)", e.Value, r.Value)
	}
	return e.Value
}

func countLinear(s *epub.Spine) int {
	n := 0
	for _, e := range s.Entries() {
		if e.Linear {
			n++
		}
	}
	return n
}
