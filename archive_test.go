package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestZipArchiveReadResource(t *testing.T) {
	a := buildArchive(t, map[string]string{
		"OEBPS/content.opf": "package data",
		"OEBPS/ch1.xhtml":   "chapter data",
	})

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"exact", "OEBPS/content.opf", "package data"},
		{"leading slash stripped", "/OEBPS/ch1.xhtml", "chapter data"},
		{"case-insensitive fallback", "oebps/Content.OPF", "package data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := a.ReadResource(tt.key)
			if err != nil {
				t.Fatalf("ReadResource(%q) error = %v", tt.key, err)
			}
			if string(data) != tt.want {
				t.Errorf("ReadResource(%q) = %q, want %q", tt.key, data, tt.want)
			}
		})
	}
}

func TestZipArchiveMissingResource(t *testing.T) {
	a := buildArchive(t, map[string]string{"a.txt": "x"})

	_, err := a.ReadResource("b.txt")
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("ReadResource() error = %v, want ErrResourceNotFound", err)
	}
	if !strings.Contains(err.Error(), "b.txt") {
		t.Errorf("error %q does not name the resource", err)
	}
}

func TestZipArchiveExactBeforeFallback(t *testing.T) {
	// Entry order is significant: the lowercase index keeps the first
	// entry seen for each folded name.
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range []struct{ name, content string }{
		{"Cover.jpg", "first"},
		{"cover.jpg", "second"},
	} {
		fw, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	a, err := zipArchiveFromReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), defaultMaxDecompressedSize)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"Cover.jpg", "first"},
		{"cover.jpg", "second"},
		{"COVER.JPG", "first"},
	}
	for _, tt := range tests {
		data, err := a.ReadResource(tt.key)
		if err != nil {
			t.Fatalf("ReadResource(%q) error = %v", tt.key, err)
		}
		if string(data) != tt.want {
			t.Errorf("ReadResource(%q) = %q, want %q", tt.key, data, tt.want)
		}
	}
}

func TestZipArchiveSkipsUnsafeEntries(t *testing.T) {
	a := buildArchive(t, map[string]string{
		"../escape.txt": "outside",
		"/rooted.txt":   "outside",
		"safe.txt":      "inside",
	})

	if _, err := a.ReadResource("../escape.txt"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("ReadResource(traversal) error = %v, want ErrResourceNotFound", err)
	}
	if _, err := a.ReadResource("safe.txt"); err != nil {
		t.Errorf("ReadResource(safe) error = %v", err)
	}
}

func TestZipArchiveDecompressionCap(t *testing.T) {
	files := map[string]string{"big.txt": strings.Repeat("a", 100)}
	data := buildZipBytes(t, files)

	a, err := zipArchiveFromReader(bytes.NewReader(data), int64(len(data)), 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ReadResource("big.txt"); !errors.Is(err, ErrUnreadableArchive) {
		t.Errorf("ReadResource() error = %v, want ErrUnreadableArchive", err)
	}

	// Zero removes the cap.
	a, err = zipArchiveFromReader(bytes.NewReader(data), int64(len(data)), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ReadResource("big.txt"); err != nil {
		t.Errorf("ReadResource() without cap error = %v", err)
	}
}

func TestOpenDecompressionCap(t *testing.T) {
	data := buildZipBytes(t, validBookFiles())
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)), WithMaxDecompressedSize(16))
	if !errors.Is(err, ErrUnreadableArchive) {
		t.Errorf("OpenReader() error = %v, want ErrUnreadableArchive", err)
	}
}

func TestDirArchiveReadResource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("dir data"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := openDirArchive(root)

	for _, key := range []string{"sub/f.txt", "/sub/f.txt"} {
		data, err := a.ReadResource(key)
		if err != nil {
			t.Fatalf("ReadResource(%q) error = %v", key, err)
		}
		if string(data) != "dir data" {
			t.Errorf("ReadResource(%q) = %q, want %q", key, data, "dir data")
		}
	}

	if _, err := a.ReadResource("sub/missing.txt"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("ReadResource(missing) error = %v, want ErrResourceNotFound", err)
	}
}

func TestDirArchiveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	// The sibling file exists; the archive must still refuse to leave root.
	if err := os.WriteFile(filepath.Join(filepath.Dir(root), "outside.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := openDirArchive(root)

	for _, key := range []string{"../outside.txt", "sub/../../outside.txt"} {
		_, err := a.ReadResource(key)
		if !errors.Is(err, ErrResourceNotFound) {
			t.Fatalf("ReadResource(%q) error = %v, want ErrResourceNotFound", key, err)
		}
		if !strings.Contains(err.Error(), "escapes the archive root") {
			t.Errorf("ReadResource(%q) error = %q, want traversal message", key, err)
		}
	}
}

func TestIsSafeArchivePath(t *testing.T) {
	tests := []struct {
		p    string
		want bool
	}{
		{"a/b.txt", true},
		{"./a.txt", true},
		{"a/../b.txt", true},
		{"a/..", true},
		{"", true},
		{"/a.txt", false},
		{"/", false},
		{"..", false},
		{"../a.txt", false},
		{"a/../../b.txt", false},
	}
	for _, tt := range tests {
		if got := isSafeArchivePath(tt.p); got != tt.want {
			t.Errorf("isSafeArchivePath(%q) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestReadArchiveHref(t *testing.T) {
	a := buildArchive(t, map[string]string{"OPS/my chapter.xhtml": "body"})

	tests := []string{
		"/OPS/my%20chapter.xhtml",
		"/OPS/my%20chapter.xhtml#sec-1",
		"/OPS/my%20chapter.xhtml?q=1",
	}
	for _, href := range tests {
		data, err := readArchiveHref(a, href)
		if err != nil {
			t.Fatalf("readArchiveHref(%q) error = %v", href, err)
		}
		if string(data) != "body" {
			t.Errorf("readArchiveHref(%q) = %q, want %q", href, data, "body")
		}
	}
}
