package epub

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF) from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// blockTags is the set of tags that should insert a newline when encountered
// during text extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipTags is the set of tags whose content should be skipped during text extraction.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

var selfClosingSkipTagPattern = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

func normalizeSelfClosingSkipTags(htmlData []byte) []byte {
	if !selfClosingSkipTagPattern.Match(htmlData) {
		return htmlData
	}
	return selfClosingSkipTagPattern.ReplaceAll(htmlData, []byte(`<$1$2></$1>`))
}

// extractText extracts the plain text content from HTML data.
// Block-level elements (<p>, <br>, <div>, <h1>-<h6>, <li>, <tr>) produce line
// breaks. Content inside <script> and <style> tags is skipped.
func extractText(htmlData []byte) (string, error) {
	htmlData = normalizeSelfClosingSkipTags(htmlData)
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))

	var buf strings.Builder
	skipDepth := 0 // depth inside a skip tag
	lastWasNewline := true

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				return strings.TrimSpace(buf.String()), nil
			}
			return "", err

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] {
				skipDepth++
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if blockTags[a] {
				if buf.Len() > 0 && !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			}

		case html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipDepth > 0 {
				continue
			}
			if blockTags[a] {
				if buf.Len() > 0 && !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			raw := string(tokenizer.Text())
			// Collapse internal whitespace runs to single spaces, but preserve
			// non-empty content so that inline elements keep their spacing.
			text := collapseWhitespace(raw)
			if text != "" {
				buf.WriteString(text)
				lastWasNewline = strings.HasSuffix(text, "\n")
			}
		}
	}
}

// collapseWhitespace replaces runs of whitespace characters (spaces, tabs,
// newlines) with a single space. Returns empty string if the input is all whitespace.
// Leading and trailing whitespace is preserved as a single space so that
// inter-element spacing (e.g., between inline tags) is maintained.
func collapseWhitespace(s string) string {
	var buf strings.Builder
	inSpace := false
	hasNonSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
		} else {
			if inSpace && buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteRune(r)
			inSpace = false
			hasNonSpace = true
		}
	}
	if !hasNonSpace {
		return ""
	}
	result := buf.String()
	// Preserve leading whitespace as a single space.
	if len(s) > 0 && isWhitespace(rune(s[0])) {
		result = " " + result
	}
	// Preserve trailing whitespace as a single space.
	if inSpace {
		result = result + " "
	}
	return result
}

// isWhitespace returns true if r is a whitespace character.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// extractBodyHTML parses HTML data, finds the <body> element, and renders its
// children back to an HTML string. Elements <script>, <style> are removed.
// Event handler attributes (onclick, onload, etc.) are stripped.
func extractBodyHTML(htmlData []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(htmlData))
	if err != nil {
		return "", err
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		// No body found; return empty string.
		return "", nil
	}

	// Clean the body subtree.
	cleanNode(body)

	// Render children of body.
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

// findElement performs a depth-first search for a node with the given atom tag.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, a); result != nil {
			return result
		}
	}
	return nil
}

// cleanNode recursively removes <script> and <style> elements and strips
// event handler attributes from the subtree rooted at n.
func cleanNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style) {
			n.RemoveChild(c)
			continue
		}
		if c.Type == html.ElementNode {
			stripEventAttributes(c)
		}
		cleanNode(c)
	}
}

// stripEventAttributes removes all event handler attributes (on*) from the node.
func stripEventAttributes(n *html.Node) {
	cleaned := n.Attr[:0]
	for _, attr := range n.Attr {
		keyLower := strings.ToLower(attr.Key)
		if strings.HasPrefix(keyLower, "on") {
			continue
		}
		if isURIAttribute(attr) && !isSafeURI(attr.Val) {
			continue
		}
		cleaned = append(cleaned, attr)
	}
	n.Attr = cleaned
}

// isURIAttribute reports whether attr is an HTML attribute that may contain
// a URL and should be protocol-sanitized.
func isURIAttribute(attr html.Attribute) bool {
	if attr.Key == "href" || attr.Key == "src" {
		return true
	}
	if attr.Namespace == "xlink" && attr.Key == "href" {
		return true
	}
	if attr.Key == "xlink:href" {
		return true
	}
	return false
}

// isSafeURI validates URI values for href/src-like attributes.
// Allowed values:
//   - relative paths and fragments
//   - schemes: http, https, mailto
//   - data:image/*
func isSafeURI(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "#") || strings.HasPrefix(v, "/") || strings.HasPrefix(v, "./") || strings.HasPrefix(v, "../") || strings.HasPrefix(v, "?") {
		return true
	}

	u, err := url.Parse(v)
	if err != nil {
		return false
	}

	if u.Scheme == "" {
		return true
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https", "mailto":
		return true
	case "data":
		lower := strings.ToLower(v)
		return strings.HasPrefix(lower, "data:image/")
	default:
		return false
	}
}

// rewriteImagePaths rewrites relative image paths in HTML data to absolute
// book hrefs, resolving against the directory of chapterHref. When a
// rewriter is configured it maps each resolved path to its final form.
// It handles <img src="..."> and <image xlink:href="...">.
func rewriteImagePaths(htmlData []byte, chapterHref string, rewrite ImageRewriter) []byte {
	doc, err := html.Parse(bytes.NewReader(htmlData))
	if err != nil {
		// If parsing fails, return the input unchanged.
		return htmlData
	}

	rewriteImageNode(doc, parentDir(chapterHref), rewrite)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return htmlData
	}
	return buf.Bytes()
}

// rewriteImageNode recursively walks the DOM tree, rewriting image paths.
func rewriteImageNode(n *html.Node, baseDir string, rewrite ImageRewriter) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Img:
			rewriteAttr(n, "", "src", baseDir, rewrite)
		case atom.Image:
			// SVG <image> uses xlink:href or href
			rewriteAttr(n, "xlink", "href", baseDir, rewrite)
			rewriteAttr(n, "", "href", baseDir, rewrite)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteImageNode(c, baseDir, rewrite)
	}
}

// rewriteAttr rewrites a specific attribute from a relative path to an
// absolute book href. namespace is the XML namespace prefix (empty for no
// namespace).
func rewriteAttr(n *html.Node, namespace, key, baseDir string, rewrite ImageRewriter) {
	for i, attr := range n.Attr {
		if !matchAttr(attr, namespace, key) {
			continue
		}
		val := attr.Val
		if val == "" || strings.HasPrefix(val, "data:") || hasURIScheme(val) {
			continue
		}
		resolved := resolveHref(baseDir, val)
		if rewrite != nil {
			resolved = rewrite(resolved)
		}
		n.Attr[i].Val = resolved
	}
}

// matchAttr checks if an html.Attribute matches the given namespace and key.
func matchAttr(attr html.Attribute, namespace, key string) bool {
	if namespace == "" {
		return attr.Key == key && attr.Namespace == ""
	}
	// For namespaced attributes, x/net/html may store them in different ways.
	// Check both namespace field and prefixed key.
	if attr.Namespace == namespace && attr.Key == key {
		return true
	}
	if attr.Key == namespace+":"+key {
		return true
	}
	return false
}
