package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Namespaces recognized when matching qualified element and attribute
// names. Documents that leave a prefix undeclared surface the literal
// prefix instead of a URI, so both forms are accepted.
const (
	nsDC        = "http://purl.org/dc/elements/1.1/"
	nsOPF       = "http://www.idpf.org/2007/opf"
	nsOPS       = "http://www.idpf.org/2007/ops"
	nsXML       = "http://www.w3.org/XML/1998/namespace"
	nsXHTML     = "http://www.w3.org/1999/xhtml"
	nsNCX       = "http://www.daisy.org/z3986/2005/ncx/"
	nsContainer = "urn:oasis:names:tc:opendocument:xmlns:container"
)

// xmlScanner is a forward-only event reader over one XML document. It
// merges start/empty elements (empty ones flagged self-closing), exposes
// consolidated text extraction, and replays at most one pushed-back event
// before continuing the stream.
type xmlScanner struct {
	dec    *xml.Decoder
	strict bool

	// pendingEvent replays one converted event pushed back by a caller.
	pendingEvent any
	// pendingTok holds one raw token read ahead by self-closing detection.
	pendingTok xml.Token
}

// startEl is a start element event. endEl and textEl are the other two
// event kinds delivered by next.
type startEl struct {
	name        xml.Name
	attr        []xml.Attr
	selfClosing bool
}

type endEl struct{ name xml.Name }

type textEl []byte

func newXMLScanner(data []byte, strict bool) *xmlScanner {
	dec := xml.NewDecoder(bytes.NewReader(toUTF8(data)))
	dec.Strict = strict
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader
	return &xmlScanner{dec: dec, strict: strict}
}

// toUTF8 strips a UTF-8 BOM and transcodes UTF-16 input (detected by BOM)
// so the XML decoder always sees UTF-8.
func toUTF8(data []byte) []byte {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:]
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}), bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return data
		}
		return out
	}
	return data
}

// charsetReader resolves encodings declared in the XML prolog.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// next returns the next event: *startEl, endEl or textEl. It returns
// (nil, nil) at end of document. Comments, directives and processing
// instructions are skipped.
func (s *xmlScanner) next() (any, error) {
	if s.pendingEvent != nil {
		ev := s.pendingEvent
		s.pendingEvent = nil
		return ev, nil
	}
	for {
		tok, err := s.token()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return s.makeStart(t)
		case xml.EndElement:
			return endEl{name: t.Name}, nil
		case xml.CharData:
			return textEl(bytes.Clone(t)), nil
		}
	}
}

// pushBack stores one event for re-delivery by the next call to next.
func (s *xmlScanner) pushBack(ev any) {
	s.pendingEvent = ev
}

func (s *xmlScanner) token() (xml.Token, error) {
	if s.pendingTok != nil {
		tok := s.pendingTok
		s.pendingTok = nil
		return tok, nil
	}
	tok, err := s.dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedXML)
	}
	return tok, nil
}

// makeStart wraps a start element, probing one token ahead: the decoder
// synthesizes the end element of <x/> without consuming input, so an end
// tag arriving at an unchanged offset marks the start self-closing and is
// swallowed.
func (s *xmlScanner) makeStart(t xml.StartElement) (*startEl, error) {
	start := &startEl{name: t.Name, attr: t.Attr}
	offset := s.dec.InputOffset()

	probe, err := s.token()
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return start, nil
	}
	if end, ok := probe.(xml.EndElement); ok && end.Name == t.Name && s.dec.InputOffset() == offset {
		start.selfClosing = true
		return start, nil
	}
	s.pendingTok = probe
	return start, nil
}

// consolidateText collapses internal whitespace runs and trims the ends.
// Element text in package and toc documents is routinely pretty-printed;
// the padding is never meaningful.
func consolidateText(raw string) string {
	return strings.TrimSpace(collapseWhitespace(raw))
}

// elementText consumes events up to the matching end tag and returns the
// whitespace-consolidated text content.
func (s *xmlScanner) elementText(start *startEl) (string, error) {
	if start.selfClosing {
		return "", nil
	}
	var raw strings.Builder
	for {
		tok, err := s.next()
		if err != nil {
			return "", err
		}
		if tok == nil {
			break
		}
		switch t := tok.(type) {
		case textEl:
			raw.Write(t)
		case endEl:
			if t.name == start.name {
				return consolidateText(raw.String()), nil
			}
		}
	}
	return consolidateText(raw.String()), nil
}

// textUntil consumes text until a start or end tag whose local name is in
// stops. The stopping event is pushed back for the caller to re-read.
func (s *xmlScanner) textUntil(stops ...string) (string, error) {
	var raw strings.Builder
	for {
		tok, err := s.next()
		if err != nil {
			return "", err
		}
		if tok == nil {
			break
		}
		switch t := tok.(type) {
		case textEl:
			raw.Write(t)
		case *startEl:
			if slices.Contains(stops, t.name.Local) {
				s.pushBack(t)
				return consolidateText(raw.String()), nil
			}
		case endEl:
			if slices.Contains(stops, t.name.Local) {
				s.pushBack(t)
				return consolidateText(raw.String()), nil
			}
		}
	}
	return consolidateText(raw.String()), nil
}

func (e *startEl) isLocal(name string) bool {
	return e.name.Local == name
}

// isDC reports whether the element is Dublin Core qualified.
func (e *startEl) isDC() bool {
	return e.name.Space == "dc" || e.name.Space == nsDC
}

// attrValue reads an attribute without consuming it. With no spaces given
// only unqualified attributes match.
func (e *startEl) attrValue(local string, spaces ...string) (string, bool) {
	if len(spaces) == 0 {
		spaces = []string{""}
	}
	for _, a := range e.attr {
		if a.Name.Local != local {
			continue
		}
		if slices.Contains(spaces, a.Name.Space) {
			return a.Value, true
		}
	}
	return "", false
}

// attrSet supports destructive attribute extraction: well-known attributes
// are taken one by one and whatever remains becomes the element's leftover
// attribute list.
type attrSet struct {
	attrs []xml.Attr
}

func newAttrSet(e *startEl) *attrSet {
	return &attrSet{attrs: slices.Clone(e.attr)}
}

// take removes and returns the first matching attribute. With no spaces
// given only unqualified attributes match.
func (s *attrSet) take(local string, spaces ...string) (string, bool) {
	if len(spaces) == 0 {
		spaces = []string{""}
	}
	for i, a := range s.attrs {
		if a.Name.Local != local || !slices.Contains(spaces, a.Name.Space) {
			continue
		}
		s.attrs = slices.Delete(s.attrs, i, i+1)
		return a.Value, true
	}
	return "", false
}

// rest returns the remaining attributes with reconstructed qualified names.
func (s *attrSet) rest() Attrs {
	if len(s.attrs) == 0 {
		return nil
	}
	out := make(Attrs, 0, len(s.attrs))
	for _, a := range s.attrs {
		out = append(out, Attr{Name: qualifiedName(a.Name), Value: a.Value})
	}
	return out
}

var namespacePrefixes = map[string]string{
	nsDC:        "dc",
	nsOPF:       "opf",
	nsOPS:       "epub",
	nsXML:       "xml",
	nsXHTML:     "",
	nsNCX:       "",
	nsContainer: "",
}

// qualifiedName rebuilds a human-readable attribute name. Standard EPUB
// namespaces map to their canonical prefixes; an undeclared prefix comes
// through from the decoder verbatim in Space and is kept.
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	if n.Space == "xmlns" {
		return "xmlns:" + n.Local
	}
	if prefix, ok := namespacePrefixes[n.Space]; ok {
		if prefix == "" {
			return n.Local
		}
		return prefix + ":" + n.Local
	}
	return n.Space + ":" + n.Local
}
