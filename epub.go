package epub

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// mimetypeValue is the required content of the "mimetype" archive entry.
const mimetypeValue = "application/epub+zip"

// Book is an opened publication. The parsed model is immutable once Open
// returns; resource reads go through the backing archive until Close.
type Book struct {
	archive Archive
	closed  atomic.Bool

	packagePath string
	packageDir  string

	metadata *Metadata
	manifest *Manifest
	spine    *Spine
	toc      *Toc

	chapters []*Chapter
	warnings []string

	imageRewriter ImageRewriter
}

// Open opens the EPUB at path. A directory is read as an unpacked
// archive, anything else as a zip file. The caller must call Close when
// done.
func Open(path string, opts ...Option) (*Book, error) {
	o := applyOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", path, err)
	}
	var a Archive
	if info.IsDir() {
		a = openDirArchive(path)
	} else {
		a, err = openZipArchive(path, o.maxDecompressedSize)
		if err != nil {
			return nil, err
		}
	}

	b, err := assemble(a, o)
	if err != nil {
		a.Close()
		return nil, err
	}
	return b, nil
}

// OpenReader opens an EPUB from an in-memory or otherwise seekable zip.
// The caller keeps ownership of r; Close only releases internal state.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*Book, error) {
	o := applyOptions(opts)

	a, err := zipArchiveFromReader(r, size, o.maxDecompressedSize)
	if err != nil {
		return nil, err
	}
	return assemble(a, o)
}

// OpenArchive opens an EPUB from a custom resource store. The archive
// stays owned by the caller if opening fails; on success the Book closes
// it.
func OpenArchive(a Archive, opts ...Option) (*Book, error) {
	return assemble(a, applyOptions(opts))
}

// assemble runs the parse pipeline: mimetype check, container, DRM
// check, package document, toc documents, chapter handles.
func assemble(a Archive, o options) (*Book, error) {
	ctx := &parseContext{opts: o}

	ctx.validateMimetype(a)

	containerData, err := a.ReadResource(containerPath)
	if err != nil {
		return nil, err
	}
	packagePath, err := ctx.parseContainer(containerData)
	if err != nil {
		return nil, err
	}

	if err := ctx.checkDRM(a); err != nil {
		return nil, err
	}

	packageData, err := readArchiveHref(a, packagePath)
	if err != nil {
		return nil, err
	}
	doc, err := ctx.parsePackage(packageData, packagePath)
	if err != nil {
		return nil, err
	}

	toc, err := ctx.parseTocs(a, doc)
	if err != nil {
		if ctx.strict() {
			return nil, err
		}
		// Keep the book readable without navigation; the guide
		// parsed with the package survives.
		ctx.warnf("toc parsing failed: %v", err)
		toc = newToc()
		if doc.guide != nil {
			toc.insert(EPUB2, doc.guide)
		}
		toc.resolvePreferences(o)
	}

	b := &Book{
		archive:       a,
		packagePath:   packagePath,
		packageDir:    parentDir(packagePath),
		metadata:      doc.metadata,
		manifest:      doc.manifest,
		spine:         doc.spine,
		toc:           toc,
		warnings:      ctx.warnings,
		imageRewriter: o.imageRewriter,
	}
	b.chapters = b.buildChapters()
	return b, nil
}

// validateMimetype records a warning when the mimetype entry is missing
// or carries the wrong content. Never fatal.
func (p *parseContext) validateMimetype(a Archive) {
	data, err := a.ReadResource("mimetype")
	if err != nil {
		p.warnf("mimetype entry missing")
		return
	}
	if string(data) != mimetypeValue {
		p.warnf("unexpected mimetype %q", string(data))
	}
}

// Close releases the backing archive. Close is idempotent; resource
// reads after the first call fail with ErrClosed.
func (b *Book) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.archive.Close()
}

// ReadResource reads a resource by href. Percent-escapes are decoded;
// hrefs with a leading slash address the archive root while relative
// ones resolve against the package directory.
func (b *Book) ReadResource(href string) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	name := percentDecode(href)
	if strings.HasPrefix(name, "/") {
		name = normalizePath(name)
	} else {
		name = resolveHref(b.packageDir, name)
	}
	return b.archive.ReadResource(archiveKey(name))
}

// readHref reads an already resolved book href, as stored in manifest and
// toc entries.
func (b *Book) readHref(href string) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return readArchiveHref(b.archive, href)
}

// Version returns the package format version.
func (b *Book) Version() Version { return b.metadata.Version() }

// PackagePath returns the absolute href of the package document.
func (b *Book) PackagePath() string { return b.packagePath }

// PackageDir returns the directory of the package document; relative
// hrefs in the package resolve against it.
func (b *Book) PackageDir() string { return b.packageDir }

// Metadata returns the package metadata.
func (b *Book) Metadata() *Metadata { return b.metadata }

// Manifest returns the package manifest.
func (b *Book) Manifest() *Manifest { return b.manifest }

// Spine returns the package spine.
func (b *Book) Spine() *Spine { return b.spine }

// Toc returns the assembled navigation trees.
func (b *Book) Toc() *Toc { return b.toc }

// Chapters returns the reading-order chapter handles.
func (b *Book) Chapters() []*Chapter { return b.chapters }

// Warnings returns the non-fatal defects recorded while opening.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}
