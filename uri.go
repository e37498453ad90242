package epub

import "strings"

// Href handling for archive-relative locations. Hrefs are plain
// forward-slash paths with an optional ?query/#fragment suffix; they are
// manipulated as raw strings so that the stored encoded form and the raw
// authored form stay byte-stable.

const upperhex = "0123456789ABCDEF"

// Bytes that stay verbatim in an encoded href, besides ASCII alphanumerics.
const hrefSafeBytes = "%./:#?-_~=&"

// splitHrefSuffix splits an href at the first '?' or '#'. The suffix, when
// present, keeps its leading delimiter.
func splitHrefSuffix(href string) (path, suffix string) {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i], href[i:]
	}
	return href, ""
}

// resolveHref resolves a relative href against a base directory.
// Absolute paths and scheme-qualified URIs pass through unchanged.
// The query/fragment suffix is preserved.
func resolveHref(baseDir, href string) string {
	path, suffix := splitHrefSuffix(href)
	if strings.HasPrefix(path, "/") || hasURIScheme(path) {
		return href
	}
	return normalizePath(baseDir + "/" + path + suffix)
}

// normalizePath removes empty, "." and ".." segments. ".." pops the
// previous segment; popping past the start is a no-op. A leading "/" is
// preserved.
func normalizePath(p string) string {
	if pathIsNormal(p) {
		return p
	}
	segments := strings.Split(p, "/")
	stack := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	normalized := strings.Join(stack, "/")
	if strings.HasPrefix(p, "/") {
		normalized = "/" + normalized
	}
	return normalized
}

// pathIsNormal reports whether p contains no segments that normalization
// would touch, allowing the common already-clean case to skip allocation.
func pathIsNormal(p string) bool {
	rest := strings.TrimPrefix(p, "/")
	if rest == "" {
		return p == ""
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// parentDir returns the directory portion of a path: "" when there is no
// slash, "/" when the only slash is leading.
func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	switch {
	case i < 0:
		return ""
	case i == 0:
		return "/"
	default:
		return p[:i]
	}
}

// intoAbsolute prefixes "/" when missing.
func intoAbsolute(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// hasURIScheme reports whether s starts with an RFC 3986 scheme followed
// by a colon: an ASCII letter, then letters, digits, '+', '.' or '-'.
func hasURIScheme(s string) bool {
	colon := strings.IndexByte(s, ':')
	if colon < 1 || !isASCIIAlpha(s[0]) {
		return false
	}
	for i := 1; i < colon; i++ {
		c := s[i]
		if !isASCIIAlphanumeric(c) && c != '+' && c != '.' && c != '-' {
			return false
		}
	}
	return true
}

// percentEncodeHref encodes every byte that is not ASCII alphanumeric and
// not in hrefSafeBytes, using uppercase hex. Already-encoded input passes
// through unchanged since '%' itself is safe.
func percentEncodeHref(s string) string {
	i := 0
	for i < len(s) && !hrefByteNeedsEscape(s[i]) {
		i++
	}
	if i == len(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for ; i < len(s); i++ {
		c := s[i]
		if hrefByteNeedsEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xF])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hrefByteNeedsEscape(c byte) bool {
	if c >= 0x80 {
		return true
	}
	if isASCIIAlphanumeric(c) {
		return false
	}
	return strings.IndexByte(hrefSafeBytes, c) < 0
}

// percentDecode decodes %XX escapes. Malformed escapes pass through
// verbatim; byte sequences that are not valid UTF-8 are replaced.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			b = append(b, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		b = append(b, c)
	}
	return strings.ToValidUTF8(string(b), "�")
}

func isASCIIAlpha(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isASCIIAlphanumeric(c byte) bool {
	return isASCIIAlpha(c) || '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}
