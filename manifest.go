package epub

import (
	"fmt"
	"slices"
	"strings"
)

// ManifestEntry is one package resource declaration.
type ManifestEntry struct {
	ID string

	// Href is the absolute, percent-encoded archive location; HrefRaw
	// keeps the attribute as written.
	Href    string
	HrefRaw string

	// MediaType is stored lower-cased for uniform comparison.
	MediaType string

	Fallback     string
	MediaOverlay string

	// Properties is the whitespace-split properties attribute.
	Properties []string

	Attrs       Attrs
	Refinements []*MetaEntry
}

// HasProperty reports whether the properties attribute contains p.
func (e *ManifestEntry) HasProperty(p string) bool {
	return slices.Contains(e.Properties, p)
}

// IsImage reports whether the media type declares image content.
func (e *ManifestEntry) IsImage() bool {
	return strings.HasPrefix(e.MediaType, "image/")
}

// Manifest holds the package resources in document order with id lookup.
type Manifest struct {
	entries []*ManifestEntry
	index   map[string]int
}

func newEmptyManifest() *Manifest {
	return &Manifest{index: make(map[string]int)}
}

// Entries returns all entries in document order.
func (m *Manifest) Entries() []*ManifestEntry { return m.entries }

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// ByID returns the entry with the given id, or nil.
func (m *Manifest) ByID(id string) *ManifestEntry {
	if i, ok := m.index[id]; ok {
		return m.entries[i]
	}
	return nil
}

// ByHref returns the entry whose href matches, ignoring any query or
// fragment suffix on either side, or nil.
func (m *Manifest) ByHref(href string) *ManifestEntry {
	want, _ := splitHrefSuffix(href)
	for _, e := range m.entries {
		path, _ := splitHrefSuffix(e.Href)
		if path == want {
			return e
		}
	}
	return nil
}

// ByMediaType returns all entries with the given media type. The match is
// case-insensitive.
func (m *Manifest) ByMediaType(mediaType string) []*ManifestEntry {
	var matches []*ManifestEntry
	for _, e := range m.entries {
		if strings.EqualFold(e.MediaType, mediaType) {
			matches = append(matches, e)
		}
	}
	return matches
}

// ByProperty returns all entries whose properties attribute contains p.
func (m *Manifest) ByProperty(p string) []*ManifestEntry {
	var matches []*ManifestEntry
	for _, e := range m.entries {
		if e.HasProperty(p) {
			matches = append(matches, e)
		}
	}
	return matches
}

// Nav returns the first entry marked with the nav property; that entry is
// the EPUB 3 navigation document. Returns nil when absent.
func (m *Manifest) Nav() *ManifestEntry {
	for _, e := range m.entries {
		if e.HasProperty("nav") {
			return e
		}
	}
	return nil
}

// CoverImage returns the first entry marked with the cover-image
// property, or nil.
func (m *Manifest) CoverImage() *ManifestEntry {
	for _, e := range m.entries {
		if e.HasProperty("cover-image") {
			return e
		}
	}
	return nil
}

// Images returns all entries declaring an image media type.
func (m *Manifest) Images() []*ManifestEntry {
	var images []*ManifestEntry
	for _, e := range m.entries {
		if e.IsImage() {
			images = append(images, e)
		}
	}
	return images
}

// insert appends the entry. A duplicate id replaces the earlier entry in
// place, keeping its original document position.
func (m *Manifest) insert(e *ManifestEntry) {
	if i, ok := m.index[e.ID]; ok {
		m.entries[i] = e
		return
	}
	m.index[e.ID] = len(m.entries)
	m.entries = append(m.entries, e)
}

func (pp *packageParser) parseManifest(section *startEl) (*Manifest, error) {
	m := newEmptyManifest()
	if section.selfClosing {
		return m, nil
	}
	for {
		el, err := pp.nextChild("manifest", "item")
		if err != nil {
			return nil, err
		}
		if el == nil {
			return m, nil
		}
		entry, err := pp.parseItem(el, m)
		if err != nil {
			return nil, err
		}
		m.insert(entry)
	}
}

func (pp *packageParser) parseItem(el *startEl, m *Manifest) (*ManifestEntry, error) {
	attrs := newAttrSet(el)

	rawID, ok := attrs.take("id")
	id, err := pp.ctx.requireAttr(rawID, ok, "manifest > item[*id]")
	if err != nil {
		return nil, err
	}
	if pp.ctx.strict() {
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("%q: %w", id, ErrDuplicateItemID)
		}
	}

	rawHref, ok := attrs.take("href")
	hrefRaw, err := pp.ctx.requireAttr(rawHref, ok, "manifest > item[*href]")
	if err != nil {
		return nil, err
	}
	href, err := pp.ctx.requireHref(resolveHref(pp.baseDir, hrefRaw))
	if err != nil {
		return nil, err
	}

	rawType, ok := attrs.take("media-type")
	mediaType, err := pp.ctx.requireAttr(rawType, ok, "manifest > item[*media-type]")
	if err != nil {
		return nil, err
	}

	entry := &ManifestEntry{
		ID:        id,
		Href:      href,
		HrefRaw:   hrefRaw,
		MediaType: strings.ToLower(mediaType),
	}
	entry.Fallback, _ = attrs.take("fallback")
	entry.MediaOverlay, _ = attrs.take("media-overlay")
	if props, ok := attrs.take("properties"); ok {
		entry.Properties = strings.Fields(props)
	}
	entry.Refinements = pp.pending.take(id)
	entry.Attrs = attrs.rest()
	return entry, nil
}
