package epub

// Chapter is one linear reading-order document. The handle is cheap;
// content is read from the archive on each call.
type Chapter struct {
	// ID is the manifest item id backing this chapter.
	ID string

	// Href is the absolute archive location of the document.
	Href string

	// Title is the label of the first toc entry targeting the document,
	// falling back to the manifest id.
	Title string

	// Order is the position among the linear spine entries.
	Order int

	book *Book
}

// buildChapters derives chapter handles from the linear spine entries.
// Itemrefs pointing at missing manifest items are skipped.
func (b *Book) buildChapters() []*Chapter {
	titles := b.tocTitles()

	var chapters []*Chapter
	for _, entry := range b.spine.Entries() {
		if !entry.Linear {
			continue
		}
		item := b.manifest.ByID(entry.IDRef)
		if item == nil {
			continue
		}
		path, _ := splitHrefSuffix(item.Href)
		title := titles[path]
		if title == "" {
			title = item.ID
		}
		chapters = append(chapters, &Chapter{
			ID:    item.ID,
			Href:  item.Href,
			Title: title,
			Order: len(chapters),
			book:  b,
		})
	}
	return chapters
}

// tocTitles maps main-toc target paths to labels. The first entry naming
// a path wins.
func (b *Book) tocTitles() map[string]string {
	titles := make(map[string]string)
	contents := b.toc.Contents()
	if contents == nil {
		return titles
	}
	for _, entry := range contents.Flatten() {
		if entry.Href == "" || entry.Label == "" {
			continue
		}
		path, _ := splitHrefSuffix(entry.Href)
		if _, ok := titles[path]; !ok {
			titles[path] = entry.Label
		}
	}
	return titles
}

// RawContent reads the chapter document, stripping a UTF-8 BOM.
func (c *Chapter) RawContent() ([]byte, error) {
	if c.book == nil {
		return nil, ErrInvalidChapter
	}
	data, err := c.book.readHref(c.Href)
	if err != nil {
		return nil, err
	}
	return stripBOM(data), nil
}

// TextContent extracts the chapter's plain text. Block-level elements
// produce line breaks; script and style content is skipped.
func (c *Chapter) TextContent() (string, error) {
	data, err := c.RawContent()
	if err != nil {
		return "", err
	}
	return extractText(data)
}

// BodyHTML extracts the inner HTML of the body element. Scripts and
// event-handler attributes are stripped; image paths are resolved to
// absolute book hrefs and passed through the configured rewriter.
func (c *Chapter) BodyHTML() (string, error) {
	data, err := c.RawContent()
	if err != nil {
		return "", err
	}
	data = rewriteImagePaths(data, c.Href, c.book.imageRewriter)
	return extractBodyHTML(data)
}
