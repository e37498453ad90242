package epub

// ImageRewriter maps a book-absolute image path to the URL written into
// the src attribute by Chapter.BodyHTML. Returning the path unchanged
// keeps the default behavior.
type ImageRewriter func(path string) string

// Option configures how a Book is opened and parsed.
type Option func(*options)

type options struct {
	strict bool

	skipMetadata bool
	skipManifest bool
	skipSpine    bool
	skipToc      bool

	retainTocVariants  bool
	preferredToc       Version
	preferredLandmarks Version
	preferredPageList  Version

	maxDecompressedSize int64
	imageRewriter       ImageRewriter
}

func defaultOptions() options {
	return options{
		strict:              true,
		preferredToc:        EPUB3,
		preferredLandmarks:  EPUB3,
		preferredPageList:   EPUB3,
		maxDecompressedSize: defaultMaxDecompressedSize,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLenient downgrades recoverable parse failures to warnings instead of
// returning an error. Malformed XML, missing archive entries and cyclic
// metadata refinements still fail.
func WithLenient() Option {
	return func(o *options) { o.strict = false }
}

// WithoutMetadata skips parsing the package metadata section.
func WithoutMetadata() Option {
	return func(o *options) { o.skipMetadata = true }
}

// WithoutManifest skips parsing the package manifest section. Spine and
// table-of-contents lookups that need the manifest degrade accordingly.
func WithoutManifest() Option {
	return func(o *options) { o.skipManifest = true }
}

// WithoutSpine skips parsing the package spine section.
func WithoutSpine() Option {
	return func(o *options) { o.skipSpine = true }
}

// WithoutToc skips locating and parsing navigation documents, including
// the legacy guide section.
func WithoutToc() Option {
	return func(o *options) { o.skipToc = true }
}

// WithAllTocVariants retains both the EPUB 2 and EPUB 3 variant of every
// table-of-contents group instead of resolving each kind to a single
// preferred version.
func WithAllTocVariants() Option {
	return func(o *options) { o.retainTocVariants = true }
}

// WithPreferredToc selects which version of the contents group Toc.Contents
// returns when both were parsed. The default is EPUB3.
func WithPreferredToc(v Version) Option {
	return func(o *options) { o.preferredToc = v }
}

// WithPreferredLandmarks selects which version of the landmarks group
// Toc.Landmarks returns when both were parsed. The default is EPUB3.
func WithPreferredLandmarks(v Version) Option {
	return func(o *options) { o.preferredLandmarks = v }
}

// WithPreferredPageList selects which version of the page-list group
// Toc.PageList returns when both were parsed. The default is EPUB3.
func WithPreferredPageList(v Version) Option {
	return func(o *options) { o.preferredPageList = v }
}

// WithMaxDecompressedSize caps the decompressed size of a single archive
// entry. Reads past the cap fail with ErrUnreadableArchive. The default is
// 256 MiB; zero or negative removes the cap.
func WithMaxDecompressedSize(n int64) Option {
	return func(o *options) { o.maxDecompressedSize = n }
}

// WithImageRewriter installs a hook applied to every img src (and SVG
// image href) emitted by Chapter.BodyHTML.
func WithImageRewriter(fn ImageRewriter) Option {
	return func(o *options) { o.imageRewriter = fn }
}
