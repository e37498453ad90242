package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

type readFlags struct {
	chapter  int
	href     string
	html     bool
	selector string
}

func newReadCmd(g *rootFlags) *cobra.Command {
	f := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read BOOK",
		Short: "Print chapter content",
		Long: `Print the content of one chapter. The default output is the
consolidated plain text; --html prints the sanitized body markup instead,
and --selector prints the outer HTML of every node matching a CSS
selector. --href bypasses chapters and dumps a raw resource by its path
inside the book.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd.OutOrStdout(), g, f, args[0])
		},
	}

	cmd.Flags().IntVar(&f.chapter, "chapter", 0, "chapter index, in reading order")
	cmd.Flags().StringVar(&f.href, "href", "", "read a raw resource by href instead of a chapter")
	cmd.Flags().BoolVar(&f.html, "html", false, "print sanitized body HTML instead of plain text")
	cmd.Flags().StringVar(&f.selector, "selector", "", "print outer HTML of nodes matching a CSS selector")
	return cmd
}

func runRead(out io.Writer, g *rootFlags, f *readFlags, path string) error {
	book, err := g.open(path)
	if err != nil {
		return err
	}
	defer book.Close()

	if f.href != "" {
		data, err := book.ReadResource(f.href)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.href, err)
		}
		_, err = out.Write(data)
		return err
	}

	chapters := book.Chapters()
	if f.chapter < 0 || f.chapter >= len(chapters) {
		return fmt.Errorf("chapter %d out of range: book has %d chapters", f.chapter, len(chapters))
	}
	ch := chapters[f.chapter]

	if f.selector != "" {
		html, err := ch.BodyHTML()
		if err != nil {
			return err
		}
		return printSelection(out, html, f.selector)
	}

	if f.html {
		html, err := ch.BodyHTML()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, html)
		return nil
	}

	text, err := ch.TextContent()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	return nil
}

// printSelection prints the outer HTML of every node matching the CSS
// selector, one per line.
func printSelection(out io.Writer, html, selector string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse chapter html: %w", err)
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return fmt.Errorf("selector %q matched nothing", selector)
	}
	for i := 0; i < sel.Length(); i++ {
		frag, err := goquery.OuterHtml(sel.Eq(i))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.TrimSpace(frag))
	}
	return nil
}
