// Package epub reads EPUB 2 and EPUB 3 publications into an immutable
// in-memory model.
//
// A book is opened from a zip archive or an unpacked directory, its
// container and package documents parsed, and its navigation documents
// (NCX, EPUB 3 nav, legacy guide) unified into one table-of-contents
// model. Metadata refinements are resolved into a hierarchy, so a title
// entry carries its own display sequence and type refinements. Books
// protected by DRM are rejected with [ErrDRMProtected].
//
// # Opening a book
//
// Use [Open] for a file or directory path, [OpenReader] for an
// [io.ReaderAt], or [OpenArchive] to supply a custom [Archive]:
//
//	book, err := epub.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer book.Close()
//
// Parsing is strict unless [WithLenient] is given: malformed input fails
// fast with a categorized error naming the offending identifier. In
// lenient mode recoverable problems are downgraded to warnings, readable
// from [Book.Warnings].
//
// # Metadata
//
// [Book.Metadata] exposes grouped Dublin Core and meta entries with
// their refinements attached:
//
//	md := book.Metadata()
//	fmt.Println(md.Title().Value)
//	for _, creator := range md.Creators() {
//	    fmt.Println(creator.Value, creator.Refinement("role"))
//	}
//
// # Table of contents
//
// [Book.Toc] holds every parsed navigation tree, keyed by kind and
// format version. [Toc.Contents], [Toc.Landmarks] and [Toc.PageList]
// return the tree of the preferred version with fallback:
//
//	for _, entry := range book.Toc().Contents().Flatten() {
//	    fmt.Println(entry.Label, entry.Href)
//	}
//
// # Chapters
//
// [Book.Chapters] returns the linear reading order. Content is loaded
// lazily; [Chapter.RawContent] reads the document, [Chapter.TextContent]
// extracts plain text, and [Chapter.BodyHTML] returns sanitized body
// markup with image paths rewritten to book hrefs:
//
//	for _, ch := range book.Chapters() {
//	    text, _ := ch.TextContent()
//	    fmt.Println(ch.Title, len(text))
//	}
//
// # Cover image
//
// [Book.Cover] tries several strategies (cover-image property, legacy
// meta, landmarks, filename heuristic, first spine document) to locate
// the cover, and [Book.CoverData] reads its bytes:
//
//	if data, err := book.CoverData(); err == nil {
//	    os.WriteFile("cover.jpg", data, 0o644)
//	}
//
// # Errors
//
// Failures wrap sentinel errors, so callers branch with [errors.Is]:
//   - [ErrDRMProtected]: the book is DRM encrypted
//   - [ErrMalformedXML]: a document could not be tokenized
//   - [ErrResourceNotFound]: a requested resource is not in the archive
//   - [ErrNoCover]: no cover image could be detected
//   - [ErrClosed]: a read after [Book.Close]
package epub
