package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/pagefold/epub"
)

type coverFlags struct {
	output  string
	width   int
	quality int
}

func newCoverCmd(g *rootFlags) *cobra.Command {
	f := &coverFlags{}

	cmd := &cobra.Command{
		Use:   "cover BOOK",
		Short: "Extract the cover image",
		Long: `Resolve the cover image through the detection cascade (manifest
property, legacy meta, guide reference, filename heuristic, first spine
document) and write it to a file. With --width the image is decoded,
downscaled to the given width preserving aspect ratio, and re-encoded in
the format implied by the output extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCover(cmd.OutOrStdout(), g, f, args[0])
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default cover.<ext> from the image type)")
	cmd.Flags().IntVar(&f.width, "width", 0, "downscale to this width, keeping aspect ratio")
	cmd.Flags().IntVar(&f.quality, "quality", 85, "JPEG quality when re-encoding")
	return cmd
}

func runCover(out io.Writer, g *rootFlags, f *coverFlags, bookPath string) error {
	book, err := g.open(bookPath)
	if err != nil {
		return err
	}
	defer book.Close()

	item, err := book.Cover()
	if err != nil {
		return fmt.Errorf("%s: %w", bookPath, err)
	}
	data, err := book.CoverData()
	if err != nil {
		return fmt.Errorf("read cover %s: %w", item.Href, err)
	}

	output := f.output
	if output == "" {
		output = "cover" + coverExt(item)
	}

	if f.width > 0 {
		src, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode cover %s: %w", item.Href, err)
		}
		if src.Bounds().Dx() > f.width {
			src = imaging.Resize(src, f.width, 0, imaging.Lanczos)
		}
		format, err := imaging.FormatFromFilename(output)
		if err != nil {
			return fmt.Errorf("%s: %w", output, err)
		}
		buf := new(bytes.Buffer)
		if err := imaging.Encode(buf, src, format, imaging.JPEGQuality(f.quality)); err != nil {
			return fmt.Errorf("encode cover: %w", err)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%s, %d bytes)\n", output, item.MediaType, len(data))
	return nil
}

// coverExt picks a file extension for the cover, preferring the declared
// media type over the href.
func coverExt(item *epub.ManifestEntry) string {
	switch item.MediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	if ext := path.Ext(item.Href); ext != "" {
		return ext
	}
	return ".img"
}
