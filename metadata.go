package epub

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Property keys used by the metadata accessors. Dublin Core elements are
// keyed by their canonical qualified name regardless of the prefix the
// document declared.
const (
	propTitle       = "dc:title"
	propLanguage    = "dc:language"
	propIdentifier  = "dc:identifier"
	propCreator     = "dc:creator"
	propContributor = "dc:contributor"
	propDate        = "dc:date"
	propDescription = "dc:description"
	propPublisher   = "dc:publisher"
	propSubject     = "dc:subject"
	propModified    = "dcterms:modified"

	propTitleType  = "title-type"
	propDisplaySeq = "display-seq"

	mainTitleType = "main"
)

// MetaEntry is one metadata entry: a Dublin Core element, a legacy or
// modern meta element, or a link element. Entries refining another entry
// hang off their target's Refinements list instead of appearing at the
// top level.
//
// The Property field is mapped per element form:
//
//	<dc:title>...</dc:title>                 element name ("dc:title")
//	<meta name="cover" content="..."/>       name attribute
//	<meta property="media:duration">...      property attribute
//	<link rel="..." href="..."/>             empty
type MetaEntry struct {
	Property string
	Value    string

	// ID is the entry's id attribute; other entries may refine it.
	ID string
	// Refines is the id of the refined entry, leading "#" stripped.
	Refines string

	Lang string
	Dir  TextDirection
	Kind MetaKind

	// Order is the 0-based position among all metadata entries in
	// document order, refinements included.
	Order int

	// Attrs holds the attributes left over after the well-known ones are
	// extracted. For link entries this includes rel and href.
	Attrs Attrs

	// Refinements lists the entries refining this one, display-ordered.
	Refinements []*MetaEntry

	displaySeq int // 1-based display-seq refinement value; 0 = unset
}

// Refinement returns the first refinement with the given property, or nil.
func (e *MetaEntry) Refinement(property string) *MetaEntry {
	for _, r := range e.Refinements {
		if r.Property == property {
			return r
		}
	}
	return nil
}

// Attr returns the named leftover attribute value.
func (e *MetaEntry) Attr(name string) (string, bool) {
	return e.Attrs.Get(name)
}

// UUID parses the entry value as a UUID. Plain and urn:uuid forms are
// both accepted.
func (e *MetaEntry) UUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(e.Value))
	return id, err == nil
}

// Metadata is the package metadata: top-level entries grouped by property
// in document order of first appearance, plus identity parsed from the
// package element. Values returned by its methods point into the parsed
// model and must not be mutated.
type Metadata struct {
	versionRaw  string
	version     Version
	uniqueIDRef string
	lang        string
	dir         TextDirection
	prefixes    []Prefix
	attrs       Attrs

	order  []string
	groups map[string][]*MetaEntry
	all    []*MetaEntry
}

// Version is the parsed package format version.
func (m *Metadata) Version() Version { return m.version }

// VersionString is the package version attribute as authored.
func (m *Metadata) VersionString() string { return m.versionRaw }

// Lang is the package element's xml:lang attribute.
func (m *Metadata) Lang() string { return m.lang }

// Dir is the package element's dir attribute.
func (m *Metadata) Dir() TextDirection { return m.dir }

// Prefixes lists the vocabulary prefixes declared on the package element.
func (m *Metadata) Prefixes() []Prefix { return m.prefixes }

// Attrs returns the package element's leftover attributes.
func (m *Metadata) Attrs() Attrs { return m.attrs }

// ByProperty returns the top-level entries with the given property, in
// display order.
func (m *Metadata) ByProperty(property string) []*MetaEntry {
	return m.groups[property]
}

// First returns the first entry with the given property, or nil.
func (m *Metadata) First(property string) *MetaEntry {
	if entries := m.groups[property]; len(entries) > 0 {
		return entries[0]
	}
	return nil
}

// Properties lists the distinct top-level properties in document order of
// first appearance.
func (m *Metadata) Properties() []string { return m.order }

// All returns every top-level entry in document order.
func (m *Metadata) All() []*MetaEntry { return m.all }

// Title returns the main title: the first dc:title carrying a title-type
// refinement of "main", else the first dc:title. Nil when there is none.
func (m *Metadata) Title() *MetaEntry {
	titles := m.groups[propTitle]
	for _, t := range titles {
		if r := t.Refinement(propTitleType); r != nil && r.Value == mainTitleType {
			return t
		}
	}
	if len(titles) > 0 {
		return titles[0]
	}
	return nil
}

// Titles returns all dc:title entries in display order.
func (m *Metadata) Titles() []*MetaEntry { return m.groups[propTitle] }

// Language returns the first dc:language entry, or nil.
func (m *Metadata) Language() *MetaEntry { return m.First(propLanguage) }

// Languages returns all dc:language entries.
func (m *Metadata) Languages() []*MetaEntry { return m.groups[propLanguage] }

// LanguageTag parses the first dc:language as a BCP 47 tag. Without a
// language entry it fails with ErrMissingLanguage.
func (m *Metadata) LanguageTag() (language.Tag, error) {
	lang := m.Language()
	if lang == nil || strings.TrimSpace(lang.Value) == "" {
		return language.Und, ErrMissingLanguage
	}
	tag, err := language.Parse(strings.TrimSpace(lang.Value))
	if err != nil {
		return language.Und, fmt.Errorf("language %q: %w", lang.Value, err)
	}
	return tag, nil
}

// Identifiers returns all dc:identifier entries.
func (m *Metadata) Identifiers() []*MetaEntry { return m.groups[propIdentifier] }

// UniqueIdentifier returns the dc:identifier entry whose id matches the
// package unique-identifier attribute, or nil.
func (m *Metadata) UniqueIdentifier() *MetaEntry {
	if m.uniqueIDRef == "" {
		return nil
	}
	for _, id := range m.groups[propIdentifier] {
		if id.ID == m.uniqueIDRef {
			return id
		}
	}
	return nil
}

// Creators returns all dc:creator entries.
func (m *Metadata) Creators() []*MetaEntry { return m.groups[propCreator] }

// Contributors returns all dc:contributor entries.
func (m *Metadata) Contributors() []*MetaEntry { return m.groups[propContributor] }

// Publisher returns the first dc:publisher entry, or nil.
func (m *Metadata) Publisher() *MetaEntry { return m.First(propPublisher) }

// Description returns the first dc:description entry, or nil.
func (m *Metadata) Description() *MetaEntry { return m.First(propDescription) }

// Subjects returns all dc:subject entries.
func (m *Metadata) Subjects() []*MetaEntry { return m.groups[propSubject] }

// Date returns the first dc:date entry (the publication date), or nil.
func (m *Metadata) Date() *MetaEntry { return m.First(propDate) }

// Modified returns the first dcterms:modified entry, or nil.
func (m *Metadata) Modified() *MetaEntry { return m.First(propModified) }

// newEmptyMetadata builds the metadata stand-in used when the section is
// skipped or leniently absent. Package identity is stamped on afterwards.
func newEmptyMetadata() *Metadata {
	return &Metadata{groups: make(map[string][]*MetaEntry)}
}

// pendingRefinements holds refining entries whose target id was not found
// among the metadata entries; the target may instead be a manifest item
// or spine itemref. Each id's refinements can be taken once.
type pendingRefinements map[string][]*MetaEntry

func (p pendingRefinements) add(e *MetaEntry) {
	p[e.Refines] = append(p[e.Refines], e)
}

// take removes and returns the refinements awaiting the given id,
// display-ordered. Later takes for the same id return nil.
func (p pendingRefinements) take(id string) []*MetaEntry {
	if id == "" {
		return nil
	}
	entries, ok := p[id]
	if !ok {
		return nil
	}
	delete(p, id)
	orderByDisplaySeq(entries)
	return entries
}

// metadataParser consumes a metadata section and resolves its refinement
// hierarchy.
type metadataParser struct {
	ctx     *parseContext
	sc      *xmlScanner
	pending pendingRefinements

	// uniqueIDRef is the package unique-identifier attribute, checked
	// against dc:identifier ids in strict mode.
	uniqueIDRef string
}

// parseMetadata scans entries up to the metadata end tag, resolves
// refinements and groups the surviving top-level entries.
func (mp *metadataParser) parseMetadata(section *startEl) (*Metadata, error) {
	// Entries split three ways: id-bearing (refinable; duplicate ids keep
	// the last occurrence), refining without an id, and plain roots.
	byID := make(map[string]*MetaEntry)
	var refining, plain []*MetaEntry
	order := 0

	// A self-closing section has no entries to scan.
	for !section.selfClosing {
		kind, el, err := mp.nextEntry()
		if err != nil {
			return nil, err
		}
		if el == nil {
			break
		}
		id, entry, err := mp.parseEntry(kind, el)
		if err != nil {
			return nil, err
		}
		entry.Order = order
		order++

		switch {
		case id != "":
			entry.ID = id
			byID[id] = entry
		case entry.Refines != "":
			refining = append(refining, entry)
		default:
			plain = append(plain, entry)
		}
	}

	md, err := mp.organize(byID, refining, plain)
	if err != nil {
		return nil, err
	}
	if mp.ctx.strict() {
		if err := mp.assertRequired(md); err != nil {
			return nil, err
		}
	}
	return md, nil
}

// nextEntry advances to the next metadata entry element. It returns a nil
// element at the metadata end tag. Unknown elements are ignored.
func (mp *metadataParser) nextEntry() (MetaKind, *startEl, error) {
	for {
		ev, err := mp.sc.next()
		if err != nil {
			return 0, nil, err
		}
		switch t := ev.(type) {
		case nil:
			return 0, nil, nil
		case endEl:
			if t.name.Local == "metadata" {
				return 0, nil, nil
			}
		case *startEl:
			switch {
			case t.isDC():
				return MetaDublinCore, t, nil
			case t.isLocal("meta"):
				if _, ok := t.attrValue("property"); ok {
					return MetaModern, t, nil
				}
				return MetaLegacy, t, nil
			case t.isLocal("link"):
				return MetaLink, t, nil
			}
		}
	}
}

// parseEntry builds one entry. The id is returned separately since it
// decides which resolution bucket the entry lands in.
func (mp *metadataParser) parseEntry(kind MetaKind, el *startEl) (string, *MetaEntry, error) {
	attrs := newAttrSet(el)
	entry := &MetaEntry{Kind: kind}

	var err error
	switch kind {
	case MetaDublinCore:
		err = mp.parseDublinCore(el, entry)
	case MetaLegacy, MetaModern:
		err = mp.parseMeta(kind, el, attrs, entry)
	case MetaLink:
		// rel and href stay in the leftover attributes.
	}
	if err != nil {
		return "", nil, err
	}

	id, _ := attrs.take("id")
	entry.Lang, _ = attrs.take("lang", "xml", nsXML)
	if refines, ok := attrs.take("refines"); ok {
		entry.Refines = strings.TrimPrefix(refines, "#")
	}
	dir, _ := attrs.take("dir")
	entry.Dir = parseTextDirection(dir)
	entry.Attrs = attrs.rest()

	return id, entry, nil
}

// parseDublinCore handles <dc:*> elements. The property is the canonical
// qualified name; the value is the element text.
func (mp *metadataParser) parseDublinCore(el *startEl, entry *MetaEntry) error {
	entry.Property = "dc:" + el.name.Local

	if el.selfClosing {
		// Dublin Core elements should not be self-closing; <dc:title/>
		// carries no value.
		if mp.ctx.strict() {
			return fmt.Errorf("%s: %w", entry.Property, ErrMissingValue)
		}
		mp.ctx.warnf("metadata element %s is empty", entry.Property)
		return nil
	}
	value, err := mp.sc.elementText(el)
	if err != nil {
		return err
	}
	entry.Value = value
	return nil
}

// parseMeta handles both meta forms. The legacy form keys on the name
// attribute with the value in content; the modern form keys on property
// with the value in the element text.
func (mp *metadataParser) parseMeta(kind MetaKind, el *startEl, attrs *attrSet, entry *MetaEntry) error {
	if kind == MetaLegacy {
		name, ok := attrs.take("name")
		property, err := mp.ctx.requireAttr(name, ok, "metadata > meta[*name]")
		if err != nil {
			return err
		}
		content, ok := attrs.take("content")
		value, err := mp.ctx.requireAttr(content, ok, "metadata > meta[*content]")
		if err != nil {
			return err
		}
		entry.Property = property
		entry.Value = value
		return nil
	}

	property, _ := attrs.take("property")
	entry.Property = property

	switch {
	case !el.selfClosing:
		value, err := mp.sc.elementText(el)
		if err != nil {
			return err
		}
		entry.Value = value
	case mp.ctx.strict():
		return fmt.Errorf("%s: %w", property, ErrMissingValue)
	default:
		// Non-standard but seen in the wild: a self-closing meta with the
		// value in a content attribute.
		entry.Value, _ = attrs.take("content")
		if entry.Value == "" {
			mp.ctx.warnf("metadata element %s is empty", property)
		}
	}
	return nil
}

// Refinement chains deeper than this only arise from malformed
// self-referential metadata and are treated as cycles.
const maxRefineDepth = 250

const (
	depthUnset      = -1
	depthInProgress = -2
)

// organize resolves the refinement hierarchy: depths are computed per
// id-bearing entry, children attach to parents deepest first, and the
// remaining roots are grouped by property.
func (mp *metadataParser) organize(byID map[string]*MetaEntry, refining, plain []*MetaEntry) (*Metadata, error) {
	depths, maxDepth, err := computeDepths(byID)
	if err != nil {
		return nil, err
	}

	// Bucket entries by depth. The extra slot holds no-id refiners of the
	// deepest id-bearing entries. Buckets are kept in document order so
	// later association and display ordering are deterministic.
	buckets := make([][]*MetaEntry, maxDepth+2)
	for _, e := range refining {
		depth := 1
		if parent, ok := byID[e.Refines]; ok {
			depth = depths[parent.ID] + 1
		}
		buckets[depth] = append(buckets[depth], e)
	}
	for id, e := range byID {
		buckets[depths[id]] = append(buckets[depths[id]], e)
	}
	for _, bucket := range buckets {
		slices.SortFunc(bucket, func(a, b *MetaEntry) int {
			return cmp.Compare(a.Order, b.Order)
		})
	}

	roots, err := mp.associate(buckets)
	if err != nil {
		return nil, err
	}
	return groupMetadata(append(plain, roots...)), nil
}

// computeDepths assigns a refinement depth to every id-bearing entry:
// 0 for non-refining entries, 1 + the target's depth otherwise. A target
// missing from the set contributes depth 0. Each chain is walked
// iteratively and memoized; re-entering an in-flight entry is a cycle.
func computeDepths(byID map[string]*MetaEntry) (map[string]int, int, error) {
	depths := make(map[string]int, len(byID))
	for id := range byID {
		depths[id] = depthUnset
	}

	maxDepth := 0
	chain := make([]string, 0, 8)
	for id := range byID {
		if depths[id] != depthUnset {
			continue
		}

		// Walk the refines chain until a terminal: a non-refining entry, a
		// missing target, or an already-computed depth.
		chain = chain[:0]
		base := 0
		cur := id
		for {
			depths[cur] = depthInProgress
			chain = append(chain, cur)

			target := byID[cur].Refines
			if target == "" {
				base = -1
				break
			}
			next, ok := byID[target]
			if !ok {
				base = 0
				break
			}
			switch depths[target] {
			case depthInProgress:
				return nil, 0, fmt.Errorf("meta %q: %w", target, ErrCyclicRefinement)
			case depthUnset:
				cur = next.ID
				continue
			}
			base = depths[target]
			break
		}

		// Assign depths back up the chain.
		depth := base
		for i := len(chain) - 1; i >= 0; i-- {
			depth++
			if depth > maxRefineDepth {
				return nil, 0, fmt.Errorf("meta %q: refinement chain exceeds depth %d: %w",
					chain[i], maxRefineDepth, ErrCyclicRefinement)
			}
			depths[chain[i]] = depth
		}
		maxDepth = max(maxDepth, depths[id])
	}
	return depths, maxDepth, nil
}

// associate attaches children to parents one depth at a time, deepest
// first, so that multi-level chains keep their nesting. Depth-1 orphans
// become pending: their parent may be a manifest item or spine itemref.
// Deeper orphans are malformed.
func (mp *metadataParser) associate(buckets [][]*MetaEntry) ([]*MetaEntry, error) {
	for depth := len(buckets) - 1; depth >= 1; depth-- {
		parents := buckets[depth-1]
		for _, child := range buckets[depth] {
			parent := parentByID(parents, child.Refines)
			switch {
			case parent != nil:
				// A display-seq refinement orders its parent among its
				// siblings, besides being a refinement like any other.
				if child.Property == propDisplaySeq {
					parent.displaySeq = parseDisplaySeq(child.Value)
				}
				parent.Refinements = append(parent.Refinements, child)
			case depth == 1:
				mp.pending.add(child)
			case mp.ctx.strict():
				return nil, fmt.Errorf("meta refines %q: %w", child.Refines, ErrInvalidRefinement)
			default:
				mp.ctx.warnf("metadata refinement targets missing id %q; dropped", child.Refines)
			}
		}
	}
	return buckets[0], nil
}

// parentByID scans candidates linearly; refinement fan-in per depth is
// small enough that a map would not pay off.
func parentByID(candidates []*MetaEntry, id string) *MetaEntry {
	for _, c := range candidates {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// groupMetadata orders the roots by document position, groups them by
// property and applies display ordering within each group.
func groupMetadata(roots []*MetaEntry) *Metadata {
	slices.SortFunc(roots, func(a, b *MetaEntry) int {
		return cmp.Compare(a.Order, b.Order)
	})

	md := &Metadata{groups: make(map[string][]*MetaEntry)}
	md.all = roots
	for _, e := range roots {
		if _, ok := md.groups[e.Property]; !ok {
			md.order = append(md.order, e.Property)
		}
		md.groups[e.Property] = append(md.groups[e.Property], e)
	}
	for _, group := range md.groups {
		orderByDisplaySeq(group)
	}
	return md
}

// orderByDisplaySeq reorders entries in place by slot assignment: an
// explicit 1-based display-seq claims the slot seq-1, colliding claims
// move up to the next free slot, and unsequenced entries fill the lowest
// free slots in their current order. Refinement lists are ordered the
// same way, recursively.
func orderByDisplaySeq(entries []*MetaEntry) {
	sequenced := false
	for _, e := range entries {
		orderByDisplaySeq(e.Refinements)
		if e.displaySeq > 0 {
			sequenced = true
		}
	}
	if !sequenced {
		return
	}

	slots := make(map[int]*MetaEntry, len(entries))
	for _, e := range entries {
		if e.displaySeq < 1 {
			continue
		}
		slot := e.displaySeq - 1
		for slots[slot] != nil {
			slot++
		}
		slots[slot] = e
	}
	free := 0
	for _, e := range entries {
		if e.displaySeq >= 1 {
			continue
		}
		for slots[free] != nil {
			free++
		}
		slots[free] = e
		free++
	}

	idx := make([]int, 0, len(slots))
	for slot := range slots {
		idx = append(idx, slot)
	}
	slices.Sort(idx)
	for i, slot := range idx {
		entries[i] = slots[slot]
	}
}

// parseDisplaySeq parses a display-seq refinement value. Sequences start
// at 1; anything else reads as unset.
func parseDisplaySeq(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// assertRequired enforces the entries every package must carry: a title,
// a language, and a dc:identifier matching the package unique-identifier.
func (mp *metadataParser) assertRequired(md *Metadata) error {
	if len(md.groups[propTitle]) == 0 {
		return ErrMissingTitle
	}
	if len(md.groups[propLanguage]) == 0 {
		return ErrMissingLanguage
	}
	for _, id := range md.groups[propIdentifier] {
		if id.ID == mp.uniqueIDRef {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", mp.uniqueIDRef, ErrInvalidUniqueIdentifier)
}
