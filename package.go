package epub

import (
	"fmt"
	"slices"
	"strings"
)

// parseContext carries the parse options and the warnings accumulated
// across one open. Strict mode turns recoverable defects into errors;
// lenient mode records them here and keeps going.
type parseContext struct {
	opts     options
	warnings []string
}

func (p *parseContext) strict() bool { return p.opts.strict }

func (p *parseContext) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// requireAttr gates a required attribute. The location names the element
// path and attribute, e.g. "manifest > item[*href]". Lenient mode settles
// for the empty string with a warning.
func (p *parseContext) requireAttr(value string, ok bool, location string) (string, error) {
	if ok {
		return value, nil
	}
	if p.strict() {
		return "", fmt.Errorf("%s: %w", location, ErrMissingAttribute)
	}
	p.warnf("%s: missing required attribute", location)
	return "", nil
}

// requireHref enforces percent-encoding on a resolved href. Strict mode
// rejects hrefs the encoder would change; lenient mode auto-encodes.
func (p *parseContext) requireHref(href string) (string, error) {
	encoded := percentEncodeHref(href)
	if p.strict() && encoded != href {
		return "", fmt.Errorf("%q: %w", href, ErrUnencodedHref)
	}
	return encoded, nil
}

// packageInfo is the identity parsed from the package element. It is
// stamped onto the Metadata during finalization so identity survives even
// a skipped metadata section.
type packageInfo struct {
	versionRaw  string
	version     Version
	uniqueIDRef string
	lang        string
	dir         TextDirection
	prefixes    []Prefix
	attrs       Attrs
}

// tocLocation is one toc document selected from the manifest: an absolute
// archive href plus the dialect version expected at that location.
type tocLocation struct {
	location string
	version  Version
}

// packageDocument is the parsed package: the three sections, the eagerly
// parsed legacy guide, and the selected toc document locations.
type packageDocument struct {
	info     *packageInfo
	metadata *Metadata
	manifest *Manifest
	spine    *Spine
	guide    *TocEntry
	tocs     []tocLocation
}

// packageParser performs one forward scan over the package document,
// dispatching section starts to the dedicated parsers. Later occurrences
// of a section replace earlier ones.
type packageParser struct {
	ctx     *parseContext
	sc      *xmlScanner
	baseDir string
	pending pendingRefinements

	info     *packageInfo
	metadata *Metadata
	manifest *Manifest
	spine    *Spine
	guide    *TocEntry
}

// parsePackage parses the package document read from packagePath, an
// absolute archive href.
func (p *parseContext) parsePackage(data []byte, packagePath string) (*packageDocument, error) {
	pp := &packageParser{
		ctx:     p,
		sc:      newXMLScanner(data, p.strict()),
		baseDir: parentDir(packagePath),
		pending: make(pendingRefinements),
	}
	if err := pp.scan(); err != nil {
		return nil, err
	}
	return pp.finalize()
}

func (pp *packageParser) scan() error {
	for {
		ev, err := pp.sc.next()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		el, ok := ev.(*startEl)
		if !ok {
			continue
		}

		switch el.name.Local {
		case "package":
			if err := pp.parsePackageElement(el); err != nil {
				return err
			}
		case "metadata":
			if pp.ctx.opts.skipMetadata {
				continue
			}
			// Metadata assertions need the package identity.
			if pp.info == nil {
				return ErrNoPackageFound
			}
			mp := &metadataParser{
				ctx:         pp.ctx,
				sc:          pp.sc,
				pending:     pp.pending,
				uniqueIDRef: pp.info.uniqueIDRef,
			}
			md, err := mp.parseMetadata(el)
			if err != nil {
				return err
			}
			pp.metadata = md
		case "manifest":
			if pp.ctx.opts.skipManifest {
				continue
			}
			mf, err := pp.parseManifest(el)
			if err != nil {
				return err
			}
			pp.manifest = mf
		case "spine":
			if pp.ctx.opts.skipSpine {
				continue
			}
			sp, err := pp.parseSpine(el)
			if err != nil {
				return err
			}
			pp.spine = sp
		case "guide":
			// Guide content is navigational, so the toc switch governs it.
			if pp.ctx.opts.skipToc {
				continue
			}
			g, err := pp.parseGuide(el)
			if err != nil {
				return err
			}
			pp.guide = g
		}
	}
}

func (pp *packageParser) parsePackageElement(el *startEl) error {
	attrs := newAttrSet(el)

	rawVersion, ok := attrs.take("version")
	versionRaw, err := pp.ctx.requireAttr(rawVersion, ok, "package[*version]")
	if err != nil {
		return err
	}
	rawUnique, ok := attrs.take("unique-identifier")
	uniqueIDRef, err := pp.ctx.requireAttr(rawUnique, ok, "package[*unique-identifier]")
	if err != nil {
		return err
	}

	version, ok := parseVersion(versionRaw)
	if !ok {
		if pp.ctx.strict() {
			return fmt.Errorf("%q: %w", versionRaw, ErrInvalidVersion)
		}
		pp.ctx.warnf("package version %q not recognized; treating as 3.0", versionRaw)
		version = EPUB3
	}

	info := &packageInfo{
		versionRaw:  versionRaw,
		version:     version,
		uniqueIDRef: uniqueIDRef,
	}
	info.lang, _ = attrs.take("lang", "xml", nsXML)
	dir, _ := attrs.take("dir")
	info.dir = parseTextDirection(dir)
	if prefix, ok := attrs.take("prefix"); ok {
		prefixes, err := pp.parsePrefixes(prefix)
		if err != nil {
			return err
		}
		info.prefixes = prefixes
	}
	info.attrs = attrs.rest()

	pp.info = info
	return nil
}

// parsePrefixes tokenizes the package prefix attribute. Each mapping is a
// "name:" token and a URI, either glued together or separated by
// whitespace.
func (pp *packageParser) parsePrefixes(raw string) ([]Prefix, error) {
	fields := strings.Fields(raw)
	var prefixes []Prefix

	for i := 0; i < len(fields); i++ {
		token := fields[i]
		name, uri, found := strings.Cut(token, ":")
		if !found {
			if pp.ctx.strict() {
				return nil, fmt.Errorf("%q: %w", token, ErrInvalidPrefix)
			}
			pp.ctx.warnf("prefix token %q has no colon; skipped", token)
			continue
		}
		if uri == "" {
			// The token ended at the colon; the URI is the next token.
			if i+1 >= len(fields) {
				if pp.ctx.strict() {
					return nil, fmt.Errorf("%q: %w", token, ErrInvalidPrefix)
				}
				pp.ctx.warnf("prefix %q has no URI; skipped", token)
				continue
			}
			i++
			uri = fields[i]
		}
		if name == "" {
			if pp.ctx.strict() {
				return nil, fmt.Errorf("%q: %w", token, ErrInvalidPrefix)
			}
			pp.ctx.warnf("prefix token %q has an empty name", token)
		}
		prefixes = append(prefixes, Prefix{Name: name, URI: uri})
	}
	return prefixes, nil
}

// nextChild advances to the next child start tag inside a section,
// reporting nil at the section end tag.
func (pp *packageParser) nextChild(parent, child string) (*startEl, error) {
	for {
		ev, err := pp.sc.next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, nil
		}
		switch t := ev.(type) {
		case *startEl:
			if t.isLocal(child) {
				return t, nil
			}
		case endEl:
			if t.name.Local == parent {
				return nil, nil
			}
		}
	}
}

func (pp *packageParser) version() Version {
	if pp.info == nil {
		return Version{}
	}
	return pp.info.version
}

// manifestForChecks returns the manifest for strict cross-reference
// checks. The checks are off in lenient mode and when manifest parsing is
// disabled; strict mode demands the manifest to already be parsed.
func (pp *packageParser) manifestForChecks() (*Manifest, error) {
	if !pp.ctx.strict() || pp.ctx.opts.skipManifest {
		return nil, nil
	}
	if pp.manifest == nil {
		return nil, ErrNoManifestFound
	}
	return pp.manifest, nil
}

// tocLocations selects the toc documents to parse. The ncx candidate
// comes from the spine toc id, the nav candidate from the first manifest
// item carrying the nav property.
func (pp *packageParser) tocLocations() ([]tocLocation, error) {
	if pp.ctx.opts.skipToc || pp.manifest == nil {
		return nil, nil
	}

	version := pp.version().asMajor()
	preferred := pp.ctx.opts.preferredToc
	if version.IsEPUB2() {
		// An EPUB 2 package cannot carry a navigation document.
		preferred = EPUB2
	}

	var ncx *tocLocation
	if pp.spine != nil && pp.spine.tocID != "" {
		if item := pp.manifest.ByID(pp.spine.tocID); item != nil {
			ncx = &tocLocation{location: item.Href, version: EPUB2}
		}
	}

	var nav *tocLocation
	if pp.ctx.opts.retainTocVariants || preferred.IsEPUB3() || ncx == nil {
		if item := pp.manifest.Nav(); item != nil {
			nav = &tocLocation{location: item.Href, version: EPUB3}
		}
	}

	var locations []tocLocation
	switch {
	case pp.ctx.opts.retainTocVariants:
		if ncx != nil {
			locations = append(locations, *ncx)
		}
		if nav != nil {
			locations = append(locations, *nav)
		}
	case preferred.IsEPUB3():
		if nav != nil {
			locations = append(locations, *nav)
		} else if ncx != nil {
			locations = append(locations, *ncx)
		}
	default:
		if ncx != nil {
			locations = append(locations, *ncx)
		} else if nav != nil {
			locations = append(locations, *nav)
		}
	}

	if pp.ctx.strict() && version.IsEPUB3() && len(locations) == 0 {
		return nil, ErrNoNavReference
	}
	return locations, nil
}

// finalize settles section defaults, stamps the package identity onto the
// metadata and reports refinements that never found their target.
func (pp *packageParser) finalize() (*packageDocument, error) {
	if pp.info == nil {
		return nil, ErrNoPackageFound
	}

	// Location selection reads the manifest and spine, so it runs before
	// the sections collapse to defaults.
	tocs, err := pp.tocLocations()
	if err != nil {
		return nil, err
	}

	md := pp.metadata
	if md == nil {
		if !pp.ctx.opts.skipMetadata {
			if pp.ctx.strict() {
				return nil, ErrNoMetadataFound
			}
			pp.ctx.warnf("package has no metadata section")
		}
		md = newEmptyMetadata()
	}
	md.versionRaw = pp.info.versionRaw
	md.version = pp.info.version
	md.uniqueIDRef = pp.info.uniqueIDRef
	md.lang = pp.info.lang
	md.dir = pp.info.dir
	md.prefixes = pp.info.prefixes
	md.attrs = pp.info.attrs

	mf := pp.manifest
	if mf == nil {
		if !pp.ctx.opts.skipManifest {
			if pp.ctx.strict() {
				return nil, ErrNoManifestFound
			}
			pp.ctx.warnf("package has no manifest section")
		}
		mf = newEmptyManifest()
	}

	sp := pp.spine
	if sp == nil {
		if !pp.ctx.opts.skipSpine {
			if pp.ctx.strict() {
				return nil, ErrNoSpineFound
			}
			pp.ctx.warnf("package has no spine section")
		}
		sp = newEmptySpine()
	}

	if len(pp.pending) > 0 {
		ids := make([]string, 0, len(pp.pending))
		for id := range pp.pending {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			pp.ctx.warnf("metadata refinements target unknown id %q; dropped", id)
		}
	}

	return &packageDocument{
		info:     pp.info,
		metadata: md,
		manifest: mf,
		spine:    sp,
		guide:    pp.guide,
		tocs:     tocs,
	}, nil
}
