package epub

import "errors"

// Sentinel errors returned by the epub package. Errors carrying context
// (the offending id, href or attribute location) wrap one of these, so
// callers should match with errors.Is.
var (
	// ErrNoOPFReference indicates META-INF/container.xml has no rootfile
	// entry pointing at a package document.
	ErrNoOPFReference = errors.New("epub: no package document referenced by container")

	// ErrNoPackageFound indicates the package document has no <package>
	// root element.
	ErrNoPackageFound = errors.New("epub: no package element found")

	// ErrInvalidVersion indicates the package version attribute is not a
	// number in the range [2,4).
	ErrInvalidVersion = errors.New("epub: invalid package version")

	// ErrNoMetadataFound indicates the package document has no <metadata>
	// section.
	ErrNoMetadataFound = errors.New("epub: no metadata section found")

	// ErrNoManifestFound indicates the package document has no <manifest>
	// section.
	ErrNoManifestFound = errors.New("epub: no manifest section found")

	// ErrNoSpineFound indicates the package document has no <spine>
	// section.
	ErrNoSpineFound = errors.New("epub: no spine section found")

	// ErrNoTocFound indicates a navigation document yielded no root of the
	// primary contents kind.
	ErrNoTocFound = errors.New("epub: no table of contents found")

	// ErrMissingAttribute indicates a required attribute is absent
	// (e.g., "manifest > item[*href]").
	ErrMissingAttribute = errors.New("epub: missing required attribute")

	// ErrMissingValue indicates a metadata element carries no value
	// (e.g., a self-closing <dc:title/>).
	ErrMissingValue = errors.New("epub: missing element value")

	// ErrMissingTitle indicates the metadata has no dc:title entry.
	ErrMissingTitle = errors.New("epub: missing dc:title")

	// ErrMissingLanguage indicates the metadata has no dc:language entry.
	ErrMissingLanguage = errors.New("epub: missing dc:language")

	// ErrInvalidUniqueIdentifier indicates no dc:identifier entry matches
	// the package unique-identifier attribute.
	ErrInvalidUniqueIdentifier = errors.New("epub: unique-identifier matches no dc:identifier")

	// ErrInvalidPrefix indicates a malformed token in the package prefix
	// attribute.
	ErrInvalidPrefix = errors.New("epub: invalid prefix declaration")

	// ErrCyclicRefinement indicates metadata refinements form a cycle
	// (e.g., a refines b while b refines a).
	ErrCyclicRefinement = errors.New("epub: cyclic metadata refinement")

	// ErrInvalidRefinement indicates a refinement targets an id that does
	// not exist at any reachable level.
	ErrInvalidRefinement = errors.New("epub: refinement target not found")

	// ErrDuplicateItemID indicates two manifest items share an id.
	ErrDuplicateItemID = errors.New("epub: duplicate manifest item id")

	// ErrInvalidIDRef indicates a spine itemref references an id missing
	// from the manifest.
	ErrInvalidIDRef = errors.New("epub: spine idref not in manifest")

	// ErrNoNCXReference indicates an EPUB 2 spine has no toc attribute.
	ErrNoNCXReference = errors.New("epub: spine has no ncx reference")

	// ErrInvalidNCXReference indicates the spine toc attribute references
	// an id missing from the manifest.
	ErrInvalidNCXReference = errors.New("epub: spine ncx reference not in manifest")

	// ErrNoNavReference indicates an EPUB 3 manifest has no item with the
	// nav property and no legacy ncx fallback.
	ErrNoNavReference = errors.New("epub: no navigation document in manifest")

	// ErrUnencodedHref indicates an href contains characters that should
	// be percent-encoded (strict mode only; lenient mode encodes them).
	ErrUnencodedHref = errors.New("epub: href not percent-encoded")

	// ErrMalformedXML indicates a document could not be parsed as XML.
	ErrMalformedXML = errors.New("epub: malformed xml")

	// ErrResourceNotFound indicates the requested resource does not exist
	// in the archive.
	ErrResourceNotFound = errors.New("epub: resource not found in archive")

	// ErrUnreadableArchive indicates the archive or one of its entries
	// could not be read (e.g., corrupt zip data, decompression cap hit).
	ErrUnreadableArchive = errors.New("epub: unreadable archive")

	// ErrDRMProtected indicates the file is protected by DRM
	// (e.g., Adobe ADEPT, Apple FairPlay, Readium LCP) and cannot be read.
	ErrDRMProtected = errors.New("epub: file is DRM protected")

	// ErrNoCover indicates no cover image could be detected using any of
	// the supported strategies.
	ErrNoCover = errors.New("epub: no cover image found")

	// ErrClosed indicates the Book has been closed.
	ErrClosed = errors.New("epub: book is closed")

	// ErrInvalidChapter indicates a Chapter handle is invalid
	// (for example, a zero-value Chapter without an associated Book).
	ErrInvalidChapter = errors.New("epub: invalid chapter handle")
)
