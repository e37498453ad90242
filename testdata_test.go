package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildZipBytes builds an in-memory zip archive from a path → content
// map. The mimetype entry, when present, is written first.
func buildZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	write := func(name, content string) {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("buildZipBytes: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("buildZipBytes: write %s: %v", name, err)
		}
	}
	if mt, ok := files["mimetype"]; ok {
		write("mimetype", mt)
	}
	for name, content := range files {
		if name == "mimetype" {
			continue
		}
		write(name, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildZipBytes: close writer: %v", err)
	}
	return buf.Bytes()
}

// buildArchive wraps the files map in a zip-backed Archive.
func buildArchive(t *testing.T, files map[string]string) Archive {
	t.Helper()
	data := buildZipBytes(t, files)
	a, err := zipArchiveFromReader(bytes.NewReader(data), int64(len(data)), defaultMaxDecompressedSize)
	if err != nil {
		t.Fatalf("buildArchive: %v", err)
	}
	return a
}

// buildBookFile writes the files map as a zip to a temporary .epub file
// and returns its path. Used by tests exercising Open.
func buildBookFile(t testing.TB, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.epub")
	if err := os.WriteFile(fp, buildZipBytes(t, files), 0o644); err != nil {
		t.Fatalf("buildBookFile: %v", err)
	}
	return fp
}

// openTestBook opens the files map as a Book and closes it when the test
// finishes.
func openTestBook(t *testing.T, files map[string]string, opts ...Option) *Book {
	t.Helper()
	data := buildZipBytes(t, files)
	book, err := OpenReader(bytes.NewReader(data), int64(len(data)), opts...)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	t.Cleanup(func() { book.Close() })
	return book
}

// parseTestPackage parses a package document rooted at /OPS/package.opf.
func parseTestPackage(t *testing.T, doc string, opts ...Option) (*packageDocument, *parseContext) {
	t.Helper()
	ctx := &parseContext{opts: applyOptions(opts)}
	pkg, err := ctx.parsePackage([]byte(doc), "/OPS/package.opf")
	if err != nil {
		t.Fatalf("parsePackage() error = %v", err)
	}
	return pkg, ctx
}

const testBookUUID = "550e8400-e29b-41d4-a716-446655440000"

// validBookFiles returns a complete EPUB 3 book with an NCX fallback.
// The map is freshly built on every call so tests may mutate it.
func validBookFiles() map[string]string {
	return map[string]string{
		"mimetype": "application/epub+zip",

		"META-INF/container.xml": `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/package.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,

		"OEBPS/package.opf": `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id" xml:lang="en">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="pub-id">urn:uuid:` + testBookUUID + `</dc:identifier>
    <dc:title id="title">Voyages Out</dc:title>
    <meta refines="#title" property="title-type">main</meta>
    <dc:language>en</dc:language>
    <dc:creator id="creator">B. Marlowe</dc:creator>
    <meta refines="#creator" property="role" scheme="marc:relators">aut</meta>
    <meta property="dcterms:modified">2024-01-15T10:00:00Z</meta>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="notes.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="notes" linear="no"/>
  </spine>
</package>`,

		"OEBPS/nav.xhtml": `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Navigation</title></head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Contents</h1>
    <ol>
      <li><a href="ch1.xhtml">Chapter One</a></li>
      <li><a href="ch2.xhtml#start">Chapter Two</a></li>
    </ol>
  </nav>
  <nav epub:type="landmarks">
    <h2>Guide</h2>
    <ol>
      <li><a epub:type="bodymatter" href="ch1.xhtml">Start of Content</a></li>
    </ol>
  </nav>
</body>
</html>`,

		"OEBPS/toc.ncx": `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:` + testBookUUID + `"/></head>
  <docTitle><text>Voyages Out</text></docTitle>
  <navMap>
    <navPoint id="np-1" playOrder="1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="ch1.xhtml"/>
    </navPoint>
    <navPoint id="np-2" playOrder="2">
      <navLabel><text>Chapter Two</text></navLabel>
      <content src="ch2.xhtml#start"/>
    </navPoint>
  </navMap>
</ncx>`,

		"OEBPS/ch1.xhtml": `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter One</title></head>
<body>
  <h1>Chapter One</h1>
  <p>The harbor lay <em>silent</em> under the fog.</p>
  <img src="images/cover.jpg" alt="cover"/>
</body>
</html>`,

		"OEBPS/ch2.xhtml": `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter Two</title></head>
<body>
  <h1 id="start">Chapter Two</h1>
  <p>By morning the tide had turned.</p>
</body>
</html>`,

		"OEBPS/notes.xhtml": `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Notes</title></head>
<body>
  <p>Endnotes.</p>
</body>
</html>`,

		"OEBPS/images/cover.jpg": "\xff\xd8\xff\xe0fake-jpeg-data",
	}
}
