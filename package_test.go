package epub

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const testPackageXML = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id"
         xml:lang="fr" dir="rtl" prefix="foaf: http://xmlns.com/foaf/spec/" id="pkg">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="pub-id">urn:isbn:9781566199094</dc:identifier>
    <dc:title>Nord Perdu</dc:title>
    <dc:language>fr</dc:language>
  </metadata>
  <manifest>
    <item id="c1" href="c1.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
  </spine>
</package>`

func TestParsePackage(t *testing.T) {
	ctx := &parseContext{opts: defaultOptions()}
	doc, err := ctx.parsePackage([]byte(testPackageXML), "/OEBPS/package.opf")
	if err != nil {
		t.Fatalf("parsePackage() error = %v", err)
	}

	md := doc.metadata
	if md.Version() != EPUB3 {
		t.Errorf("Version() = %v, want %v", md.Version(), EPUB3)
	}
	if md.VersionString() != "3.0" {
		t.Errorf("VersionString() = %q, want %q", md.VersionString(), "3.0")
	}
	if md.Lang() != "fr" {
		t.Errorf("Lang() = %q, want %q", md.Lang(), "fr")
	}
	if md.Dir() != DirRTL {
		t.Errorf("Dir() = %v, want %v", md.Dir(), DirRTL)
	}
	if len(md.Prefixes()) != 1 || md.Prefixes()[0] != (Prefix{Name: "foaf", URI: "http://xmlns.com/foaf/spec/"}) {
		t.Errorf("Prefixes() = %v, want the foaf mapping", md.Prefixes())
	}
	if id, _ := md.Attrs().Get("id"); id != "pkg" {
		t.Errorf("package attrs id = %q, want %q", id, "pkg")
	}

	if doc.manifest.Len() != 2 {
		t.Errorf("manifest Len() = %d, want 2", doc.manifest.Len())
	}
	if item := doc.manifest.ByID("c1"); item == nil || item.Href != "/OEBPS/c1.xhtml" {
		t.Errorf("ByID(c1) = %+v, want href /OEBPS/c1.xhtml", item)
	}
	if doc.spine.Len() != 1 {
		t.Errorf("spine Len() = %d, want 1", doc.spine.Len())
	}

	want := []tocLocation{{location: "/OEBPS/nav.xhtml", version: EPUB3}}
	if len(doc.tocs) != 1 || doc.tocs[0] != want[0] {
		t.Errorf("tocs = %v, want %v", doc.tocs, want)
	}
	if len(ctx.warnings) != 0 {
		t.Errorf("warnings = %v, want none", ctx.warnings)
	}
}

func TestParsePackageNoPackageElement(t *testing.T) {
	ctx := &parseContext{opts: defaultOptions()}
	if _, err := ctx.parsePackage([]byte(`<html xmlns="x"><body/></html>`), "/p.opf"); !errors.Is(err, ErrNoPackageFound) {
		t.Errorf("error = %v, want ErrNoPackageFound", err)
	}
}

func TestParsePackageMetadataBeforePackage(t *testing.T) {
	// A metadata section outside a package element has no identity to
	// check against.
	const doc = `<root><metadata><dc:title>T</dc:title></metadata></root>`
	ctx := &parseContext{opts: defaultOptions()}
	if _, err := ctx.parsePackage([]byte(doc), "/p.opf"); !errors.Is(err, ErrNoPackageFound) {
		t.Errorf("error = %v, want ErrNoPackageFound", err)
	}
}

func TestParsePackageInvalidVersion(t *testing.T) {
	const doc = `<package version="5.0" unique-identifier="id"><metadata/></package>`

	ctx := &parseContext{opts: defaultOptions()}
	if _, err := ctx.parsePackage([]byte(doc), "/p.opf"); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("strict error = %v, want ErrInvalidVersion", err)
	}

	lenient := &parseContext{opts: applyOptions([]Option{WithLenient()})}
	got, err := lenient.parsePackage([]byte(doc), "/p.opf")
	if err != nil {
		t.Fatalf("lenient parsePackage() error = %v", err)
	}
	if got.metadata.Version() != EPUB3 {
		t.Errorf("lenient Version() = %v, want %v", got.metadata.Version(), EPUB3)
	}
	if got.metadata.VersionString() != "5.0" {
		t.Errorf("lenient VersionString() = %q, want %q", got.metadata.VersionString(), "5.0")
	}
	if !hasWarning(lenient.warnings, "5.0") {
		t.Errorf("warnings = %v, want a version warning", lenient.warnings)
	}
}

func TestParsePackageMissingVersionAttribute(t *testing.T) {
	const doc = `<package unique-identifier="id"/>`

	ctx := &parseContext{opts: defaultOptions()}
	if _, err := ctx.parsePackage([]byte(doc), "/p.opf"); !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("strict error = %v, want ErrMissingAttribute", err)
	}

	lenient := &parseContext{opts: applyOptions([]Option{WithLenient()})}
	got, err := lenient.parsePackage([]byte(doc), "/p.opf")
	if err != nil {
		t.Fatalf("lenient parsePackage() error = %v", err)
	}
	if got.metadata.Version() != EPUB3 {
		t.Errorf("lenient Version() = %v, want %v", got.metadata.Version(), EPUB3)
	}
}

func TestParsePackageMissingSections(t *testing.T) {
	const doc = `<package version="3.0" unique-identifier="id"/>`

	strict := []struct {
		name string
		opts []Option
		want error
	}{
		{"metadata", nil, ErrNoMetadataFound},
		{"manifest", []Option{WithoutMetadata()}, ErrNoManifestFound},
		{"spine", []Option{WithoutMetadata(), WithoutManifest()}, ErrNoSpineFound},
	}
	for _, tt := range strict {
		ctx := &parseContext{opts: applyOptions(tt.opts)}
		if _, err := ctx.parsePackage([]byte(doc), "/p.opf"); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}

	lenient := &parseContext{opts: applyOptions([]Option{WithLenient()})}
	got, err := lenient.parsePackage([]byte(doc), "/p.opf")
	if err != nil {
		t.Fatalf("lenient parsePackage() error = %v", err)
	}
	if got.metadata == nil || got.manifest == nil || got.spine == nil {
		t.Fatal("lenient sections should default to empty, not nil")
	}
	if got.manifest.Len() != 0 || got.spine.Len() != 0 {
		t.Errorf("lenient defaults should be empty, got manifest %d, spine %d",
			got.manifest.Len(), got.spine.Len())
	}
	if len(lenient.warnings) != 3 {
		t.Errorf("warnings = %v, want one per missing section", lenient.warnings)
	}
}

func TestParsePackageSkippedSections(t *testing.T) {
	ctx := &parseContext{opts: applyOptions([]Option{
		WithoutMetadata(), WithoutManifest(), WithoutSpine(), WithoutToc(),
	})}
	doc, err := ctx.parsePackage([]byte(testPackageXML), "/OEBPS/package.opf")
	if err != nil {
		t.Fatalf("parsePackage() error = %v", err)
	}

	// Package identity is stamped even when the metadata section is
	// skipped.
	if doc.metadata.Version() != EPUB3 {
		t.Errorf("Version() = %v, want %v", doc.metadata.Version(), EPUB3)
	}
	if doc.metadata.Title() != nil {
		t.Error("skipped metadata should carry no entries")
	}
	if doc.manifest.Len() != 0 {
		t.Errorf("skipped manifest Len() = %d, want 0", doc.manifest.Len())
	}
	if doc.spine.Len() != 0 {
		t.Errorf("skipped spine Len() = %d, want 0", doc.spine.Len())
	}
	if doc.tocs != nil {
		t.Errorf("tocs = %v, want none", doc.tocs)
	}
	if len(ctx.warnings) != 0 {
		t.Errorf("warnings = %v, want none for skipped sections", ctx.warnings)
	}
}

func TestParsePackageLaterSectionReplaces(t *testing.T) {
	const doc = `<package version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">one</dc:identifier>
    <dc:title>First</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <manifest>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine><itemref idref="b"/></spine>
</package>`

	ctx := &parseContext{opts: defaultOptions()}
	got, err := ctx.parsePackage([]byte(doc), "/p.opf")
	if err != nil {
		t.Fatalf("parsePackage() error = %v", err)
	}
	if got.manifest.ByID("a") != nil {
		t.Error("earlier manifest section should be replaced")
	}
	if got.manifest.ByID("b") == nil {
		t.Error("later manifest section should win")
	}
}

func TestParsePackageLeftoverRefinements(t *testing.T) {
	const doc = `<package version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">one</dc:identifier>
    <dc:title>T</dc:title>
    <dc:language>en</dc:language>
    <meta refines="#ghost" property="display-seq">1</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine><itemref idref="nav"/></spine>
</package>`

	ctx := &parseContext{opts: defaultOptions()}
	if _, err := ctx.parsePackage([]byte(doc), "/p.opf"); err != nil {
		t.Fatalf("parsePackage() error = %v", err)
	}
	if !hasWarning(ctx.warnings, `unknown id "ghost"`) {
		t.Errorf("warnings = %v, want a dropped-refinement warning", ctx.warnings)
	}
}

func TestParsePackageSelfClosingSections(t *testing.T) {
	// A self-closing section never delivers an end tag; it must not
	// swallow the sections that follow it.
	const doc = `<package version="3.0" unique-identifier="id">
  <metadata/>
  <guide/>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine>
    <itemref idref="nav"/>
  </spine>
</package>`

	pkg, ctx := parseTestPackage(t, doc, WithLenient())
	if pkg.manifest.Len() != 1 {
		t.Errorf("manifest Len() = %d, want 1", pkg.manifest.Len())
	}
	if pkg.spine.Len() != 1 {
		t.Errorf("spine Len() = %d, want 1", pkg.spine.Len())
	}
	if pkg.guide == nil || len(pkg.guide.Children) != 0 {
		t.Errorf("guide = %+v, want an empty landmarks root", pkg.guide)
	}
	if len(ctx.warnings) != 0 {
		t.Errorf("warnings = %v, want none", ctx.warnings)
	}

	// An empty metadata section still fails the strict entry assertions.
	strict := &parseContext{opts: defaultOptions()}
	if _, err := strict.parsePackage([]byte(doc), "/p.opf"); !errors.Is(err, ErrMissingTitle) {
		t.Errorf("strict error = %v, want ErrMissingTitle", err)
	}
}

func TestParsePrefixes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Prefix
	}{
		{"separated", "foaf: http://xmlns.com/foaf/spec/",
			[]Prefix{{"foaf", "http://xmlns.com/foaf/spec/"}}},
		{"glued", "dcterms:http://purl.org/dc/terms/",
			[]Prefix{{"dcterms", "http://purl.org/dc/terms/"}}},
		{"multiple", "foaf: http://xmlns.com/foaf/spec/ dcterms: http://purl.org/dc/terms/",
			[]Prefix{{"foaf", "http://xmlns.com/foaf/spec/"}, {"dcterms", "http://purl.org/dc/terms/"}}},
		{"newline separated", "foaf: http://xmlns.com/foaf/spec/\n\t\tdcterms: http://purl.org/dc/terms/",
			[]Prefix{{"foaf", "http://xmlns.com/foaf/spec/"}, {"dcterms", "http://purl.org/dc/terms/"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := &packageParser{ctx: &parseContext{opts: defaultOptions()}}
			got, err := pp.parsePrefixes(tt.raw)
			if err != nil {
				t.Fatalf("parsePrefixes(%q) error = %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePrefixes(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("prefix[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParsePrefixesMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no colon", "foaf http://xmlns.com/foaf/spec/"},
		{"trailing name", "foaf:"},
		{"empty name", ": http://xmlns.com/foaf/spec/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := &packageParser{ctx: &parseContext{opts: defaultOptions()}}
			if _, err := pp.parsePrefixes(tt.raw); !errors.Is(err, ErrInvalidPrefix) {
				t.Errorf("strict error = %v, want ErrInvalidPrefix", err)
			}

			lp := &packageParser{ctx: &parseContext{opts: applyOptions([]Option{WithLenient()})}}
			if _, err := lp.parsePrefixes(tt.raw); err != nil {
				t.Errorf("lenient error = %v, want nil", err)
			}
			if len(lp.ctx.warnings) == 0 {
				t.Error("lenient parse should record a warning")
			}
		})
	}
}

func TestParsePrefixesEmptyNameKept(t *testing.T) {
	// Lenient mode records the defect but keeps the mapping.
	pp := &packageParser{ctx: &parseContext{opts: applyOptions([]Option{WithLenient()})}}
	got, err := pp.parsePrefixes(": http://example.com/ns/")
	if err != nil {
		t.Fatalf("parsePrefixes() error = %v", err)
	}
	if len(got) != 1 || got[0] != (Prefix{Name: "", URI: "http://example.com/ns/"}) {
		t.Errorf("prefixes = %v, want the empty-name mapping kept", got)
	}
}

func TestParsePackageDeterministic(t *testing.T) {
	// Two parses of the same bytes must produce equal models, leftover
	// attribute order and refinement ordering included.
	doc := validBookFiles()["OEBPS/package.opf"]

	first, _ := parseTestPackage(t, doc)
	second, _ := parseTestPackage(t, doc)

	if !reflect.DeepEqual(first.metadata, second.metadata) {
		t.Error("metadata differs between parses of the same bytes")
	}
	if !reflect.DeepEqual(first.manifest, second.manifest) {
		t.Error("manifest differs between parses of the same bytes")
	}
	if !reflect.DeepEqual(first.spine, second.spine) {
		t.Error("spine differs between parses of the same bytes")
	}
	if !reflect.DeepEqual(first.guide, second.guide) {
		t.Error("guide differs between parses of the same bytes")
	}
	if !reflect.DeepEqual(first.tocs, second.tocs) {
		t.Error("toc locations differ between parses of the same bytes")
	}
}

// hasWarning reports whether any recorded warning contains the substring.
func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
