package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// defaultMaxDecompressedSize caps the decompressed size of a single
// archive entry. This guards against zip bomb attacks.
const defaultMaxDecompressedSize int64 = 256 * 1024 * 1024

// Archive is a read-only store of book resources. Names are forward-slash
// paths relative to the archive root; a leading "/" is ignored.
//
// Implementations used by Open and OpenReader are safe for concurrent use.
// Custom implementations passed to OpenArchive must provide their own
// synchronization if the Book is shared between goroutines.
type Archive interface {
	// ReadResource returns the full contents of the named resource.
	// A missing resource fails with ErrResourceNotFound; an entry that
	// cannot be read fails with ErrUnreadableArchive.
	ReadResource(name string) ([]byte, error)

	// Close releases resources held by the archive.
	Close() error
}

// archiveKey normalizes a resource name for lookup.
func archiveKey(name string) string {
	return strings.TrimPrefix(name, "/")
}

// readArchiveHref reads a resolved book href from the archive: the query
// or fragment suffix is dropped and percent-escapes are decoded back to
// the stored entry name.
func readArchiveHref(a Archive, href string) ([]byte, error) {
	path, _ := splitHrefSuffix(href)
	return a.ReadResource(archiveKey(percentDecode(path)))
}

// zipArchive reads resources out of a ZIP file. The central directory is
// indexed up front: an exact-match map plus a lowercase map for
// case-insensitive fallback. Reads are serialized by a mutex since entry
// readers share the underlying io.ReaderAt window.
type zipArchive struct {
	mu     sync.Mutex
	reader *zip.Reader
	exact  map[string]*zip.File
	lower  map[string]*zip.File
	closer io.Closer // non-nil only when the archive owns the file handle
	limit  int64
}

func newZipArchive(zr *zip.Reader, closer io.Closer, limit int64) *zipArchive {
	a := &zipArchive{
		reader: zr,
		exact:  make(map[string]*zip.File, len(zr.File)),
		lower:  make(map[string]*zip.File, len(zr.File)),
		closer: closer,
		limit:  limit,
	}
	for _, f := range zr.File {
		if !isSafeArchivePath(f.Name) {
			continue
		}
		a.exact[f.Name] = f
		key := strings.ToLower(f.Name)
		if _, ok := a.lower[key]; !ok {
			a.lower[key] = f
		}
	}
	return a
}

// openZipArchive opens the ZIP file at the given path. The returned
// archive owns the file handle.
func openZipArchive(path string, limit int64) (*zipArchive, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, ErrUnreadableArchive)
	}
	return newZipArchive(&zrc.Reader, zrc, limit), nil
}

// zipArchiveFromReader wraps an io.ReaderAt holding ZIP data. The caller
// keeps ownership of r.
func zipArchiveFromReader(r io.ReaderAt, size int64, limit int64) (*zipArchive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %v: %w", err, ErrUnreadableArchive)
	}
	return newZipArchive(zr, nil, limit), nil
}

func (a *zipArchive) find(name string) *zip.File {
	if f, ok := a.exact[name]; ok {
		return f
	}
	return a.lower[strings.ToLower(name)]
}

func (a *zipArchive) ReadResource(name string) ([]byte, error) {
	key := archiveKey(name)
	f := a.find(key)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrResourceNotFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return readZipEntry(f, a.limit)
}

func (a *zipArchive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// readZipEntry decompresses one ZIP entry, enforcing limit. Reading up to
// limit+1 bytes catches entries whose declared size is forged.
func readZipEntry(f *zip.File, limit int64) ([]byte, error) {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry %s: %d bytes exceeds %d byte cap: %w",
			f.Name, f.UncompressedSize64, limit, ErrUnreadableArchive)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("entry %s: %v: %w", f.Name, err, ErrUnreadableArchive)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %v: %w", f.Name, err, ErrUnreadableArchive)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("entry %s exceeds %d byte cap: %w", f.Name, limit, ErrUnreadableArchive)
	}
	return data, nil
}

// dirArchive reads resources out of an unpacked directory. Reads open
// independent file handles, so no synchronization is needed.
type dirArchive struct {
	root string
}

func openDirArchive(root string) *dirArchive {
	return &dirArchive{root: root}
}

func (a *dirArchive) ReadResource(name string) ([]byte, error) {
	key := path.Clean(archiveKey(name))
	if !isSafeArchivePath(key) {
		return nil, fmt.Errorf("%s escapes the archive root: %w", name, ErrResourceNotFound)
	}
	data, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%s: %v: %w", name, err, ErrUnreadableArchive)
	}
	return data, nil
}

func (a *dirArchive) Close() error { return nil }

// isSafeArchivePath reports whether p stays inside the archive root once
// cleaned (no absolute paths, no traversal through "..").
func isSafeArchivePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}
