package epub

import (
	"slices"
	"strings"
)

// TocEntry is one node of a navigation tree. The root of each tree is a
// group root (depth 0); its descendants are numbered in document order.
type TocEntry struct {
	ID    string
	Label string

	// Href is the absolute, percent-encoded target location; HrefRaw
	// keeps the source attribute as written. Both are empty for entries
	// that only group others.
	Href    string
	HrefRaw string

	Kind TocKind

	// Order counts entries in document order within the group (0 = the
	// root). Depth is the distance from the root.
	Order int
	Depth int

	Attrs    Attrs
	Children []*TocEntry
}

// IsRoot reports whether the entry is a group root.
func (e *TocEntry) IsRoot() bool { return e.Depth == 0 }

// Flatten returns all descendants in depth-first pre-order. The receiver
// itself is not included.
func (e *TocEntry) Flatten() []*TocEntry {
	var flat []*TocEntry
	var walk func(entries []*TocEntry)
	walk = func(entries []*TocEntry) {
		for _, child := range entries {
			flat = append(flat, child)
			walk(child.Children)
		}
	}
	walk(e.Children)
	return flat
}

// tocGroupKey identifies one navigation tree: its kind plus the dialect
// major version it was parsed from.
type tocGroupKey struct {
	kind    TocKind
	version Version
}

// TocGroup pairs a navigation tree with its key for iteration.
type TocGroup struct {
	Kind    TocKind
	Version Version
	Root    *TocEntry
}

// Toc holds every parsed navigation tree, keyed by kind and major
// version. An EPUB 3 publication with legacy fallbacks may carry both an
// ncx and a navigation document; which one the kind accessors return is
// resolved once from the preferred versions in the open options.
type Toc struct {
	order  []tocGroupKey
	groups map[tocGroupKey]*TocEntry

	// Resolved preferred version per well-known kind; zero = absent.
	resolvedToc       Version
	resolvedLandmarks Version
	resolvedPageList  Version
}

func newToc() *Toc {
	return &Toc{groups: make(map[tocGroupKey]*TocEntry)}
}

// insert stores a group root. Reinserting a key replaces the tree but
// keeps the original iteration position.
func (t *Toc) insert(version Version, root *TocEntry) {
	key := tocGroupKey{kind: root.Kind, version: version.asMajor()}
	if _, ok := t.groups[key]; !ok {
		t.order = append(t.order, key)
	}
	t.groups[key] = root
}

func (t *Toc) merge(other *Toc) {
	for _, key := range other.order {
		root := other.groups[key]
		if _, ok := t.groups[key]; !ok {
			t.order = append(t.order, key)
		}
		t.groups[key] = root
	}
}

// Contents returns the main table of contents in the resolved preferred
// version, or nil.
func (t *Toc) Contents() *TocEntry { return t.preferred(TocKindToc, t.resolvedToc) }

// Landmarks returns the landmarks (or legacy guide) tree in the resolved
// preferred version, or nil.
func (t *Toc) Landmarks() *TocEntry { return t.preferred(TocKindLandmarks, t.resolvedLandmarks) }

// PageList returns the page list tree in the resolved preferred version,
// or nil.
func (t *Toc) PageList() *TocEntry { return t.preferred(TocKindPageList, t.resolvedPageList) }

// Group returns the root for a well-known kind in its resolved preferred
// version. Kinds other than toc, landmarks and page-list have no
// preference resolution; look those up with GroupVersion.
func (t *Toc) Group(kind TocKind) *TocEntry {
	switch kind {
	case TocKindToc:
		return t.Contents()
	case TocKindLandmarks:
		return t.Landmarks()
	case TocKindPageList:
		return t.PageList()
	}
	return nil
}

// GroupVersion returns the root for an exact kind and version, or nil.
// The version is reduced to its major component.
func (t *Toc) GroupVersion(kind TocKind, version Version) *TocEntry {
	return t.groups[tocGroupKey{kind: kind, version: version.asMajor()}]
}

// Groups returns every navigation tree in insertion order.
func (t *Toc) Groups() []TocGroup {
	groups := make([]TocGroup, 0, len(t.order))
	for _, key := range t.order {
		groups = append(groups, TocGroup{Kind: key.kind, Version: key.version, Root: t.groups[key]})
	}
	return groups
}

func (t *Toc) preferred(kind TocKind, version Version) *TocEntry {
	if version == (Version{}) {
		return nil
	}
	return t.groups[tocGroupKey{kind: kind, version: version}]
}

// resolvePreferences fixes the version each kind accessor serves: the
// preferred version when that tree exists, otherwise the other one.
func (t *Toc) resolvePreferences(opts options) {
	t.resolvedToc = t.availableVersion(TocKindToc, opts.preferredToc)
	t.resolvedLandmarks = t.availableVersion(TocKindLandmarks, opts.preferredLandmarks)
	t.resolvedPageList = t.availableVersion(TocKindPageList, opts.preferredPageList)
}

func (t *Toc) availableVersion(kind TocKind, preferred Version) Version {
	candidates := [2]Version{EPUB3, EPUB2}
	if preferred.IsEPUB2() {
		candidates = [2]Version{EPUB2, EPUB3}
	}
	for _, v := range candidates {
		if _, ok := t.groups[tocGroupKey{kind: kind, version: v}]; ok {
			return v
		}
	}
	return Version{}
}

// elideRedundantGuide drops the eagerly parsed legacy guide when an EPUB 3
// landmarks tree is present and preferred, so callers are not confronted
// with two renditions of the same information.
func (t *Toc) elideRedundantGuide(opts options) {
	if opts.retainTocVariants || opts.preferredLandmarks.IsEPUB2() {
		return
	}
	legacy := tocGroupKey{kind: TocKindLandmarks, version: EPUB2}
	modern := tocGroupKey{kind: TocKindLandmarks, version: EPUB3}
	if _, ok := t.groups[legacy]; !ok {
		return
	}
	if _, ok := t.groups[modern]; !ok {
		return
	}
	delete(t.groups, legacy)
	t.order = slices.DeleteFunc(t.order, func(k tocGroupKey) bool { return k == legacy })
}

// parseTocs assembles the Toc: the package guide first, then every
// selected toc document read from the archive.
func (p *parseContext) parseTocs(a Archive, doc *packageDocument) (*Toc, error) {
	toc := newToc()
	if doc.guide != nil {
		toc.insert(EPUB2, doc.guide)
	}

	for _, loc := range doc.tocs {
		data, err := readArchiveHref(a, loc.location)
		if err != nil {
			return nil, err
		}
		parsed, err := p.parseTocDocument(data, loc)
		if err != nil {
			return nil, err
		}
		toc.merge(parsed)
	}

	toc.elideRedundantGuide(p.opts)
	toc.resolvePreferences(p.opts)
	return toc, nil
}

// parseTocDocument parses one toc document in the dialect its location
// version announced.
func (p *parseContext) parseTocDocument(data []byte, loc tocLocation) (*Toc, error) {
	tp := &tocParser{
		ctx:     p,
		sc:      newXMLScanner(data, p.strict()),
		baseDir: parentDir(loc.location),
		toc:     newToc(),
	}

	var err error
	if loc.version.IsEPUB2() {
		err = tp.parseNCX()
	} else {
		err = tp.parseNav()
	}
	if err != nil {
		return nil, err
	}

	if p.strict() && tp.toc.GroupVersion(TocKindToc, loc.version) == nil {
		return nil, ErrNoTocFound
	}
	return tp.toc, nil
}

// tocParser builds navigation trees with an explicit stack: entries are
// pushed as their element opens and attached to their parent (or
// registered as a group root) as it closes.
type tocParser struct {
	ctx     *parseContext
	sc      *xmlScanner
	baseDir string

	stack []*TocEntry
	order int
	toc   *Toc
}

func (tp *tocParser) top() *TocEntry {
	if len(tp.stack) == 0 {
		return nil
	}
	return tp.stack[len(tp.stack)-1]
}

// push numbers the entry and puts it on the stack. The counter restarts
// with each root so orders stay group-local.
func (tp *tocParser) push(entry *TocEntry) {
	if len(tp.stack) == 0 {
		tp.order = 0
	}
	entry.Order = tp.order
	tp.order++
	entry.Depth = len(tp.stack)
	tp.stack = append(tp.stack, entry)
}

// pop closes the top entry, attaching it to the new top or, when the
// stack empties, registering it as a group root under the given version.
func (tp *tocParser) pop(version Version) {
	n := len(tp.stack)
	if n == 0 {
		return
	}
	entry := tp.stack[n-1]
	tp.stack = tp.stack[:n-1]
	if n > 1 {
		parent := tp.stack[n-2]
		parent.Children = append(parent.Children, entry)
		return
	}
	tp.toc.insert(version, entry)
}

// parseNCX handles the legacy ncx outline: navMap and pageList trees made
// of navPoint/pageTarget entries.
func (tp *tocParser) parseNCX() error {
	var docTitle string

	for {
		ev, err := tp.sc.next()
		if err != nil {
			return err
		}
		if ev == nil {
			break
		}
		switch t := ev.(type) {
		case *startEl:
			switch t.name.Local {
			case "docTitle":
				if docTitle, err = tp.sc.elementText(t); err != nil {
					return err
				}
			case "navMap", "pageList":
				tp.pushNCXRoot(t)
				if t.selfClosing {
					tp.pop(EPUB2)
				}
			case "navPoint", "pageTarget":
				if err := tp.pushNCXChild(t); err != nil {
					return err
				}
				if t.selfClosing {
					tp.pop(EPUB2)
				}
			case "navLabel":
				if top := tp.top(); top != nil {
					if top.Label, err = tp.sc.elementText(t); err != nil {
						return err
					}
				}
			case "content":
				if err := tp.handleNCXSrc(t); err != nil {
					return err
				}
			}
		case endEl:
			switch t.name.Local {
			case "navMap", "pageList", "navPoint", "pageTarget":
				tp.pop(EPUB2)
			}
		}
	}

	// The document title labels the main outline.
	if root := tp.toc.GroupVersion(TocKindToc, EPUB2); root != nil {
		root.Label = docTitle
	}
	return nil
}

func (tp *tocParser) pushNCXRoot(el *startEl) {
	attrs := newAttrSet(el)
	entry := &TocEntry{}
	entry.ID, _ = attrs.take("id")
	if el.isLocal("navMap") {
		entry.Kind = TocKindToc
	} else {
		entry.Kind = TocKindPageList
	}
	entry.Attrs = attrs.rest()
	tp.push(entry)
}

func (tp *tocParser) pushNCXChild(el *startEl) error {
	attrs := newAttrSet(el)
	entry := &TocEntry{}
	entry.ID, _ = attrs.take("id")

	// Page targets carry a front/normal/special classification.
	if el.isLocal("pageTarget") {
		raw, ok := attrs.take("type")
		kind, err := tp.ctx.requireAttr(raw, ok, "pageTarget[*type]")
		if err != nil {
			return err
		}
		entry.Kind = parseTocKind(kind)
	}

	attrs.take("playOrder")
	entry.Attrs = attrs.rest()
	tp.push(entry)
	return nil
}

func (tp *tocParser) handleNCXSrc(el *startEl) error {
	top := tp.top()
	if top == nil {
		return nil
	}
	raw, ok := el.attrValue("src")
	hrefRaw, err := tp.ctx.requireAttr(raw, ok, "content[*src]")
	if err != nil {
		return err
	}
	href, err := tp.ctx.requireHref(resolveHref(tp.baseDir, hrefRaw))
	if err != nil {
		return err
	}
	top.Href = href
	top.HrefRaw = hrefRaw
	return nil
}

// parseNav handles the EPUB 3 navigation document: nav trees made of
// nested list items.
func (tp *tocParser) parseNav() error {
	for {
		ev, err := tp.sc.next()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		switch t := ev.(type) {
		case *startEl:
			switch t.name.Local {
			case "nav":
				if err := tp.pushNavRoot(t); err != nil {
					return err
				}
				if t.selfClosing {
					tp.pop(EPUB3)
				}
			case "li":
				if err := tp.pushNavChild(t); err != nil {
					return err
				}
				if t.selfClosing {
					tp.pop(EPUB3)
				}
			case "a":
				if err := tp.handleNavAnchor(t); err != nil {
					return err
				}
			}
		case endEl:
			switch t.name.Local {
			case "nav", "li":
				tp.pop(EPUB3)
			}
		}
	}
}

func (tp *tocParser) pushNavRoot(el *startEl) error {
	attrs := newAttrSet(el)
	entry := &TocEntry{}
	entry.ID, _ = attrs.take("id")

	raw, ok := attrs.take("type", "epub", nsOPS)
	epubType, err := tp.ctx.requireAttr(raw, ok, "nav[*epub:type]")
	if err != nil {
		return err
	}
	// epub:type may list several properties; the first names the tree.
	if i := strings.IndexByte(epubType, ' '); i >= 0 {
		epubType = epubType[:i]
	}
	entry.Kind = parseTocKind(epubType)

	if !el.selfClosing {
		// Whatever precedes the list, typically a heading, titles the tree.
		label, err := tp.sc.textUntil("nav", "ol")
		if err != nil {
			return err
		}
		entry.Label = label
	}
	entry.Attrs = attrs.rest()
	tp.push(entry)
	return nil
}

func (tp *tocParser) pushNavChild(el *startEl) error {
	attrs := newAttrSet(el)
	entry := &TocEntry{}
	entry.ID, _ = attrs.take("id")

	if !el.selfClosing {
		// A list item without an anchor is a grouping header; this label
		// stands unless an anchor replaces it.
		label, err := tp.sc.textUntil("li", "a", "ol")
		if err != nil {
			return err
		}
		entry.Label = label
	}
	entry.Attrs = attrs.rest()
	tp.push(entry)
	return nil
}

func (tp *tocParser) handleNavAnchor(el *startEl) error {
	top := tp.top()
	if top == nil {
		return nil
	}

	raw, ok := el.attrValue("href")
	hrefRaw, err := tp.ctx.requireAttr(raw, ok, "a[*href]")
	if err != nil {
		return err
	}
	href, err := tp.ctx.requireHref(resolveHref(tp.baseDir, hrefRaw))
	if err != nil {
		return err
	}

	top.ID, _ = el.attrValue("id")
	top.Href = href
	top.HrefRaw = hrefRaw
	if top.Label, err = tp.sc.elementText(el); err != nil {
		return err
	}
	if kind, ok := el.attrValue("type", "epub", nsOPS); ok {
		top.Kind = parseTocKind(kind)
	}
	return nil
}

// parseGuide turns the legacy package guide into a (landmarks, EPUB 2)
// tree. References resolve against the package directory; unlike manifest
// hrefs they are not encoding-checked.
func (pp *packageParser) parseGuide(el *startEl) (*TocEntry, error) {
	root := &TocEntry{Kind: TocKindLandmarks, Attrs: newAttrSet(el).rest()}
	if el.selfClosing {
		return root, nil
	}

	for {
		ref, err := pp.nextChild("guide", "reference")
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return root, nil
		}
		entry, err := pp.parseGuideReference(ref, len(root.Children)+1)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, entry)
	}
}

func (pp *packageParser) parseGuideReference(el *startEl, order int) (*TocEntry, error) {
	attrs := newAttrSet(el)
	entry := &TocEntry{Order: order, Depth: 1}

	rawHref, ok := attrs.take("href")
	hrefRaw, err := pp.ctx.requireAttr(rawHref, ok, "guide > reference[*href]")
	if err != nil {
		return nil, err
	}
	entry.HrefRaw = hrefRaw
	entry.Href = resolveHref(pp.baseDir, hrefRaw)

	rawTitle, ok := attrs.take("title")
	if entry.Label, err = pp.ctx.requireAttr(rawTitle, ok, "guide > reference[*title]"); err != nil {
		return nil, err
	}

	rawType, ok := attrs.take("type")
	kind, err := pp.ctx.requireAttr(rawType, ok, "guide > reference[*type]")
	if err != nil {
		return nil, err
	}
	entry.Kind = parseTocKind(kind)

	entry.ID, _ = attrs.take("id")
	entry.Attrs = attrs.rest()
	return entry, nil
}
