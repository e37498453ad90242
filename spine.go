package epub

import (
	"fmt"
	"strings"
)

// SpineEntry is one itemref in the reading order.
type SpineEntry struct {
	// IDRef names the manifest item this entry renders.
	IDRef string

	// ID is the itemref's own optional id; metadata refinements may
	// target it.
	ID string

	// Linear reports whether the entry belongs to the main reading
	// order. Only the literal value "no" turns it off.
	Linear bool

	Properties  []string
	Attrs       Attrs
	Refinements []*MetaEntry

	// Order is the 0-based document position within the spine.
	Order int
}

// HasProperty reports whether the properties attribute contains p.
func (e *SpineEntry) HasProperty(p string) bool {
	for _, prop := range e.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// Spine is the ordered reading sequence of the publication.
type Spine struct {
	entries         []*SpineEntry
	pageProgression PageProgression

	// tocID is the legacy toc attribute: the manifest id of the ncx
	// document.
	tocID string
}

func newEmptySpine() *Spine {
	return &Spine{}
}

// Entries returns all itemrefs in document order.
func (s *Spine) Entries() []*SpineEntry { return s.entries }

// Len returns the number of itemrefs.
func (s *Spine) Len() int { return len(s.entries) }

// At returns the itemref at the given position, or nil when out of range.
func (s *Spine) At(i int) *SpineEntry {
	if i < 0 || i >= len(s.entries) {
		return nil
	}
	return s.entries[i]
}

// PageProgression returns the global page flow direction.
func (s *Spine) PageProgression() PageProgression { return s.pageProgression }

// TocID returns the manifest id of the legacy ncx document, or "".
func (s *Spine) TocID() string { return s.tocID }

func (pp *packageParser) parseSpine(el *startEl) (*Spine, error) {
	attrs := newAttrSet(el)
	s := newEmptySpine()

	raw, _ := attrs.take("page-progression-direction")
	s.pageProgression = parsePageProgression(raw)

	tocID, ok := attrs.take("toc")
	tocID, err := pp.requireSpineToc(tocID, ok)
	if err != nil {
		return nil, err
	}
	s.tocID = tocID

	if el.selfClosing {
		return s, nil
	}
	for {
		itemref, err := pp.nextChild("spine", "itemref")
		if err != nil {
			return nil, err
		}
		if itemref == nil {
			return s, nil
		}
		entry, err := pp.parseItemref(itemref, len(s.entries))
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, entry)
	}
}

// requireSpineToc validates the spine toc attribute. EPUB 2 requires it
// in strict mode; when present it must name a manifest item.
func (pp *packageParser) requireSpineToc(tocID string, ok bool) (string, error) {
	if !ok {
		if pp.ctx.strict() && pp.version().IsEPUB2() {
			return "", ErrNoNCXReference
		}
		return "", nil
	}
	m, err := pp.manifestForChecks()
	if err != nil {
		return "", err
	}
	if m != nil && m.ByID(tocID) == nil {
		return "", fmt.Errorf("%q: %w", tocID, ErrInvalidNCXReference)
	}
	return tocID, nil
}

func (pp *packageParser) parseItemref(el *startEl, order int) (*SpineEntry, error) {
	attrs := newAttrSet(el)
	entry := &SpineEntry{Order: order, Linear: true}

	rawIDRef, ok := attrs.take("idref")
	idref, err := pp.ctx.requireAttr(rawIDRef, ok, "spine > itemref[*idref]")
	if err != nil {
		return nil, err
	}
	m, err := pp.manifestForChecks()
	if err != nil {
		return nil, err
	}
	if m != nil && m.ByID(idref) == nil {
		return nil, fmt.Errorf("%q: %w", idref, ErrInvalidIDRef)
	}
	entry.IDRef = idref

	entry.ID, _ = attrs.take("id")
	if props, ok := attrs.take("properties"); ok {
		entry.Properties = strings.Fields(props)
	}
	if linear, ok := attrs.take("linear"); ok {
		entry.Linear = linear != "no"
	}
	if entry.ID != "" {
		entry.Refinements = pp.pending.take(entry.ID)
	}
	entry.Attrs = attrs.rest()
	return entry, nil
}
