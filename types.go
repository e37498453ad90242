package epub

// Attr is a leftover XML attribute preserved on a parsed element after the
// well-known attributes have been extracted. Names keep their qualified
// form (e.g., "opf:role", "xmlns:dc") where a prefix applies.
type Attr struct {
	Name  string
	Value string
}

// Attrs is an ordered attribute collection.
type Attrs []Attr

// Get returns the value of the named attribute and whether it exists.
func (a Attrs) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// TextDirection is the base text direction of an element ("dir" attribute).
type TextDirection string

// Text directions.
const (
	DirAuto TextDirection = "auto"
	DirLTR  TextDirection = "ltr"
	DirRTL  TextDirection = "rtl"
)

func parseTextDirection(raw string) TextDirection {
	switch raw {
	case "ltr":
		return DirLTR
	case "rtl":
		return DirRTL
	default:
		return DirAuto
	}
}

// PageProgression is the global flow direction of spine content
// ("page-progression-direction" attribute).
type PageProgression string

// Page progression directions. The zero value means "default": the
// reading system chooses.
const (
	PageProgressionDefault PageProgression = ""
	PageProgressionLTR     PageProgression = "ltr"
	PageProgressionRTL     PageProgression = "rtl"
)

func parsePageProgression(raw string) PageProgression {
	switch raw {
	case "ltr":
		return PageProgressionLTR
	case "rtl":
		return PageProgressionRTL
	default:
		return PageProgressionDefault
	}
}

// Prefix is one entry of the package prefix attribute, mapping a vocabulary
// prefix to its URI.
type Prefix struct {
	Name string
	URI  string
}

// MetaKind describes which element form produced a MetaEntry.
type MetaKind uint8

const (
	// MetaDublinCore is a <dc:*> element (e.g., dc:title).
	MetaDublinCore MetaKind = iota

	// MetaLegacy is an EPUB 2 <meta name="..." content="..."/> element.
	MetaLegacy

	// MetaModern is an EPUB 3 <meta property="...">value</meta> element.
	MetaModern

	// MetaLink is a <link rel="..." href="..."/> element.
	MetaLink
)

func (k MetaKind) String() string {
	switch k {
	case MetaDublinCore:
		return "dublin-core"
	case MetaLegacy:
		return "meta-legacy"
	case MetaModern:
		return "meta"
	case MetaLink:
		return "link"
	default:
		return "invalid"
	}
}

// TocKind is the semantic kind of a table-of-contents entry. Root kinds
// come from the nav epub:type attribute (EPUB 3) or the element name
// (EPUB 2 NCX); entry kinds come from epub:type on anchors or, for NCX
// page targets, the type attribute.
//
// The constants cover the EPUB structural semantics vocabulary; any other
// value is carried through as-is.
type TocKind string

// Structural semantics vocabulary.
const (
	TocKindAcknowledgments TocKind = "acknowledgments"
	TocKindAfterword       TocKind = "afterword"
	TocKindAppendix        TocKind = "appendix"
	TocKindBackMatter      TocKind = "backmatter"
	TocKindBibliography    TocKind = "bibliography"
	TocKindBodyMatter      TocKind = "bodymatter"
	TocKindChapter         TocKind = "chapter"
	TocKindColophon        TocKind = "colophon"
	TocKindConclusion      TocKind = "conclusion"
	TocKindContributors    TocKind = "contributors"
	TocKindCopyrightPage   TocKind = "copyright-page"
	TocKindCover           TocKind = "cover"
	TocKindDedication      TocKind = "dedication"
	TocKindEndnotes        TocKind = "endnotes"
	TocKindEpigraph        TocKind = "epigraph"
	TocKindEpilogue        TocKind = "epilogue"
	TocKindErrata          TocKind = "errata"
	TocKindFootnotes       TocKind = "footnotes"
	TocKindForeword        TocKind = "foreword"
	TocKindFrontMatter     TocKind = "frontmatter"
	TocKindGlossary        TocKind = "glossary"
	TocKindImprint         TocKind = "imprint"
	TocKindIndex           TocKind = "index"
	TocKindIntroduction    TocKind = "introduction"
	TocKindLandmarks       TocKind = "landmarks"
	TocKindPageList        TocKind = "page-list"
	TocKindPart            TocKind = "part"
	TocKindPreamble        TocKind = "preamble"
	TocKindPreface         TocKind = "preface"
	TocKindPrologue        TocKind = "prologue"
	TocKindQna             TocKind = "qna"
	TocKindTitlePage       TocKind = "titlepage"
	TocKindToc             TocKind = "toc"
	TocKindVolume          TocKind = "volume"

	// TocKindUnknown marks an entry whose kind could not be determined
	// (e.g., a nav element with an empty epub:type).
	TocKindUnknown TocKind = "unknown"
)

func parseTocKind(raw string) TocKind {
	if raw == "" {
		return TocKindUnknown
	}
	return TocKind(raw)
}
