package epub

import "testing"

func TestResolveHref(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		href    string
		want    string
	}{
		{"sibling", "OPS/content", "c1.xhtml", "OPS/content/c1.xhtml"},
		{"parent", "OPS/content/toc", "../c1.xhtml", "OPS/content/c1.xhtml"},
		{"deep climb", "OPS/a/b/c/d/e", "../../../../toc.ncx", "OPS/a/toc.ncx"},
		{"absolute passthrough", "OPS/content", "/c3.xhtml", "/c3.xhtml"},
		{"scheme passthrough", "OPS/content", "https://example.com/c1.xhtml", "https://example.com/c1.xhtml"},
		{"short scheme passthrough", "OPS", "a:link", "a:link"},
		{"dot and slash noise", "", "./././././////./toc.xhtml", "/toc.xhtml"},
		{"query preserved", "OPS/content/toc", "../../c1.xhtml?q=1", "OPS/c1.xhtml?q=1"},
		{"fragment preserved", "OPS/content", "c1.xhtml#part-1", "OPS/content/c1.xhtml#part-1"},
		{"query and fragment", "OPS/content/toc", "../c1.xhtml?q=1#part-1", "OPS/content/c1.xhtml?q=1#part-1"},
		{"over-pop clamps at start", "OPS", "../../../c1.xhtml", "c1.xhtml"},
		{"rooted base keeps root", "/OPS", "../../c1.xhtml", "/c1.xhtml"},
		{"current dir", "OPS", "./c1.xhtml", "OPS/c1.xhtml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveHref(tt.baseDir, tt.href); got != tt.want {
				t.Errorf("resolveHref(%q, %q) = %q, want %q", tt.baseDir, tt.href, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OPS/content/c1.xhtml", "OPS/content/c1.xhtml"},
		{"/OPS/content/c1.xhtml", "/OPS/content/c1.xhtml"},
		{"OPS/./content//c1.xhtml", "OPS/content/c1.xhtml"},
		{"OPS/content/../c1.xhtml", "OPS/c1.xhtml"},
		{"/a/../../b", "/b"},
		{"../x", "x"},
		{"", ""},
		{"/", "/"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OPS/content/c1.xhtml", "OPS/content"},
		{"c1.xhtml", ""},
		{"/c1.xhtml", "/"},
		{"/OPS/package.opf", "/OPS"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parentDir(tt.in); got != tt.want {
			t.Errorf("parentDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasURIScheme(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"mailto:a@b.c", true},
		{"a:link", true},
		{"x-custom+v1.0:thing", true},
		{"not a scheme:thing", false},
		{":missing", false},
		{"../relative", false},
		{"c1.xhtml", false},
		{"1http:x", false},
	}
	for _, tt := range tests {
		if got := hasURIScheme(tt.in); got != tt.want {
			t.Errorf("hasURIScheme(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeHref(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/EPUB/c1.xhtml", "/EPUB/c1.xhtml"},
		{"/EPUB/c 1.xhtml", "/EPUB/c%201.xhtml"},
		{"/EPUB/c%201.xhtml", "/EPUB/c%201.xhtml"},
		{"café.xhtml", "caf%C3%A9.xhtml"},
		{"a?b=c&d=e#f", "a?b=c&d=e#f"},
		{"~tilde_и-dash", "~tilde_%D0%B8-dash"},
		{"brackets[1].xhtml", "brackets%5B1%5D.xhtml"},
	}
	for _, tt := range tests {
		if got := percentEncodeHref(tt.in); got != tt.want {
			t.Errorf("percentEncodeHref(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentDecode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/EPUB/c%201.xhtml", "/EPUB/c 1.xhtml"},
		{"caf%C3%A9.xhtml", "café.xhtml"},
		{"no escapes", "no escapes"},
		{"%zz passes through", "%zz passes through"},
		{"dangling %", "dangling %"},
		{"%4", "%4"},
		{"%C3", "�"},
	}
	for _, tt := range tests {
		if got := percentDecode(tt.in); got != tt.want {
			t.Errorf("percentDecode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	hrefs := []string{
		"/EPUB/chapters/c 1.xhtml",
		"/EPUB/café/menu.xhtml",
		"plain.xhtml",
	}
	for _, href := range hrefs {
		if got := percentDecode(percentEncodeHref(href)); got != href {
			t.Errorf("decode(encode(%q)) = %q, want unchanged", href, got)
		}
	}
}
