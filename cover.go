package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cover locates the cover image. Strategies are tried in priority order:
//
//  1. manifest item carrying the cover-image property
//  2. legacy meta name="cover"; content names an item id, else an href
//  3. cover reference in the landmarks trees; a document target is
//     scanned for its first image
//  4. manifest image whose id or href contains "cover"
//  5. first image of the first spine document
//
// Returns ErrNoCover when every strategy comes up empty.
func (b *Book) Cover() (*ManifestEntry, error) {
	if item := b.manifest.CoverImage(); item != nil {
		return item, nil
	}
	if item := b.coverFromMeta(); item != nil {
		return item, nil
	}
	if item := b.coverFromLandmarks(); item != nil {
		return item, nil
	}
	if item := b.coverFromFilename(); item != nil {
		return item, nil
	}
	if item := b.coverFromFirstSpine(); item != nil {
		return item, nil
	}
	return nil, ErrNoCover
}

// CoverData reads the cover image bytes from the archive.
func (b *Book) CoverData() ([]byte, error) {
	item, err := b.Cover()
	if err != nil {
		return nil, err
	}
	return b.readHref(item.Href)
}

// coverFromMeta resolves the legacy <meta name="cover" content="..."/>
// element. The content value names a manifest id; ill-formed books store
// an href there instead. A non-image target is treated as a cover page
// and scanned for its first image.
func (b *Book) coverFromMeta() *ManifestEntry {
	for _, meta := range b.metadata.ByProperty("cover") {
		if meta.Kind != MetaLegacy || meta.Value == "" {
			continue
		}
		item := b.manifest.ByID(meta.Value)
		if item == nil {
			item = b.imageByHref(resolveHref(b.packageDir, meta.Value))
		}
		if item == nil {
			continue
		}
		if item.IsImage() {
			return item
		}
		if img := b.firstImageIn(item.Href); img != nil {
			return img
		}
	}
	return nil
}

// coverFromLandmarks searches every landmarks tree for a cover reference.
func (b *Book) coverFromLandmarks() *ManifestEntry {
	for _, group := range b.toc.Groups() {
		if group.Kind != TocKindLandmarks || group.Root == nil {
			continue
		}
		for _, ref := range group.Root.Flatten() {
			if ref.Kind != TocKindCover || ref.Href == "" {
				continue
			}
			if item := b.imageByHref(ref.Href); item != nil {
				return item
			}
			if img := b.firstImageIn(ref.Href); img != nil {
				return img
			}
		}
	}
	return nil
}

// coverFromFilename searches the manifest in document order for an image
// whose id or href contains "cover".
func (b *Book) coverFromFilename() *ManifestEntry {
	for _, item := range b.manifest.Entries() {
		if !item.IsImage() {
			continue
		}
		if containsFold(item.ID, "cover") || containsFold(item.Href, "cover") {
			return item
		}
	}
	return nil
}

// coverFromFirstSpine scans the first spine document for its first image.
func (b *Book) coverFromFirstSpine() *ManifestEntry {
	first := b.spine.At(0)
	if first == nil {
		return nil
	}
	item := b.manifest.ByID(first.IDRef)
	if item == nil {
		return nil
	}
	return b.firstImageIn(item.Href)
}

// firstImageIn reads a document from the archive and resolves its first
// book-local image reference against the manifest.
func (b *Book) firstImageIn(docHref string) *ManifestEntry {
	data, err := b.readHref(docHref)
	if err != nil {
		return nil
	}
	src := firstImageRef(data)
	if src == "" {
		return nil
	}
	return b.imageByHref(resolveHref(parentDir(docHref), src))
}

// imageByHref looks up an image manifest entry by resolved href, falling
// back to a case-insensitive path comparison.
func (b *Book) imageByHref(href string) *ManifestEntry {
	if item := b.manifest.ByHref(href); item != nil && item.IsImage() {
		return item
	}
	path, _ := splitHrefSuffix(href)
	for _, item := range b.manifest.Entries() {
		if !item.IsImage() {
			continue
		}
		itemPath, _ := splitHrefSuffix(item.Href)
		if strings.EqualFold(itemPath, path) {
			return item
		}
	}
	return nil
}

// firstImageRef scans HTML for the first <img> src, or SVG <image> href,
// that names a book-local resource. Data URIs and absolute URLs are
// skipped.
func firstImageRef(htmlData []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if !hasAttr {
				continue
			}
			a := atom.Lookup(tn)
			if a != atom.Img && a != atom.Image {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				k, v := string(key), string(val)
				match := k == "src"
				if a == atom.Image {
					match = k == "href" || k == "xlink:href"
				}
				if match && v != "" && !strings.HasPrefix(v, "data:") && !hasURIScheme(v) {
					return v
				}
				if !more {
					break
				}
			}
		}
	}
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
