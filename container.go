package epub

// containerPath is the fixed location of the OCF container document.
const containerPath = "META-INF/container.xml"

// packageMediaType marks a rootfile entry that points at a package document.
const packageMediaType = "application/oebps-package+xml"

// parseContainer scans META-INF/container.xml and returns the location of
// the package document. Multiple rootfile entries may exist; the first one
// with the package media-type and a full-path attribute wins. The returned
// location is absolute (leading "/") and percent-encoded.
func (p *parseContext) parseContainer(data []byte) (string, error) {
	sc := newXMLScanner(data, p.strict())
	for {
		ev, err := sc.next()
		if err != nil {
			return "", err
		}
		if ev == nil {
			break
		}
		el, ok := ev.(*startEl)
		if !ok || !el.isLocal("rootfile") {
			continue
		}
		mediaType, _ := el.attrValue("media-type")
		fullPath, _ := el.attrValue("full-path")
		if mediaType != packageMediaType || fullPath == "" {
			continue
		}
		return p.requireHref(intoAbsolute(fullPath))
	}
	return "", ErrNoOPFReference
}
