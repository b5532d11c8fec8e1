// Package fb2 parses FictionBook 2 documents into a typed tree. The parser
// keeps exactly what the catalog and the EPUB/MOBI converters need: title
// metadata, body sections with inline runs, base64 binaries, and the
// coverpage reference.
package fb2

import (
	"strings"
	"time"
)

// Document is a parsed FB2 file.
type Document struct {
	Title      string
	Authors    []string
	Genres     []string
	Sequence   string
	SequenceNo int
	Lang       string
	Date       time.Time
	Annotation string

	// Bodies in document order. The first body without a name attribute (or
	// named "main") is the main text; a body named "notes" carries footnotes.
	Bodies []*Body

	// Binaries in document order.
	Binaries []*Binary

	coverHref string
	binIndex  map[string]*Binary
}

// Body is one <body> element.
type Body struct {
	Name     string
	Title    string
	Sections []*Section
}

// Section is one <section>: an optional flattened title, content items, and
// child sections. Sections with children act as containers; their own items
// are usually empty.
type Section struct {
	ID       string
	Title    string
	Items    []Item
	Sections []*Section
}

// Item is one block-level content variant inside a section.
type Item interface {
	item()
}

// Paragraph is a <p> block.
type Paragraph struct {
	Spans []Span
}

// Subtitle is a <subtitle> block.
type Subtitle struct {
	Spans []Span
}

// EmptyLine is an <empty-line/> block.
type EmptyLine struct{}

// Poem is a <poem>: stanzas of verse lines plus an optional title.
type Poem struct {
	Title   string
	Stanzas []Stanza
}

// Stanza is one <stanza> of verse paragraphs.
type Stanza struct {
	Lines []Paragraph
}

// Cite is a <cite> block quote with an optional attribution.
type Cite struct {
	Items   []Item
	Authors []Paragraph
}

// Epigraph is an <epigraph> block.
type Epigraph struct {
	Items   []Item
	Authors []Paragraph
}

// ImageRef is a block-level <image> reference to a binary by href ("#id").
type ImageRef struct {
	Href string
}

// TextAuthor is a <text-author> attribution line.
type TextAuthor struct {
	Spans []Span
}

func (*Paragraph) item()  {}
func (*Subtitle) item()   {}
func (*EmptyLine) item()  {}
func (*Poem) item()       {}
func (*Cite) item()       {}
func (*Epigraph) item()   {}
func (*ImageRef) item()   {}
func (*TextAuthor) item() {}

// SpanKind discriminates inline run variants.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanStrong
	SpanEmphasis
	SpanStyle
	SpanLink
	SpanStrike
	SpanSub
	SpanSup
	SpanCode
	SpanImage
)

// Span is one inline run. Text carries the payload for SpanText, Href the
// target for SpanLink and SpanImage, and Children the nested runs for
// container kinds.
type Span struct {
	Kind     SpanKind
	Text     string
	Href     string
	NoteRef  bool
	Children []Span
}

// Binary is one <binary> element with its payload already base64-decoded.
type Binary struct {
	ID          string
	ContentType string
	Data        []byte
}

// Binary returns the binary with the given id, accepting both "#id" and
// bare "id" forms. Returns nil when absent.
func (d *Document) Binary(id string) *Binary {
	id = strings.TrimPrefix(id, "#")
	return d.binIndex[id]
}

// MainBody returns the body holding the primary text: the first body with no
// name attribute, else one named "main", else the first body. Returns nil
// for a document with no bodies.
func (d *Document) MainBody() *Body {
	for _, b := range d.Bodies {
		if b.Name == "" {
			return b
		}
	}
	for _, b := range d.Bodies {
		if b.Name == "main" {
			return b
		}
	}
	if len(d.Bodies) > 0 {
		return d.Bodies[0]
	}
	return nil
}

// Notes returns the footnote body (name="notes"), or nil.
func (d *Document) Notes() *Body {
	for _, b := range d.Bodies {
		if b.Name == "notes" {
			return b
		}
	}
	return nil
}

// Language returns the document language, defaulting to "en".
func (d *Document) Language() string {
	if d.Lang == "" {
		return "en"
	}
	return d.Lang
}

// CoverRef describes the cover image declared on the coverpage.
type CoverRef struct {
	FileName  string
	Mime      string
	Extension string
}

// Cover resolves the coverpage reference against the binaries. It returns
// nil when the document declares no coverpage or the referenced binary does
// not exist.
func (d *Document) Cover() *CoverRef {
	if d.coverHref == "" {
		return nil
	}
	bin := d.Binary(d.coverHref)
	if bin == nil {
		return nil
	}
	ext := ExtensionForContentType(bin.ContentType)
	return &CoverRef{
		FileName:  ImageFileName(bin.ID, bin.ContentType),
		Mime:      MimeForContentType(bin.ContentType),
		Extension: ext,
	}
}

// CoverBinary returns the binary behind the coverpage reference, or nil.
func (d *Document) CoverBinary() *Binary {
	if d.coverHref == "" {
		return nil
	}
	return d.Binary(d.coverHref)
}

// imageExtensions are the file extensions recognised as already valid on a
// binary id.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp"}

// ImageFileName converts a binary id into an archive file name, appending an
// extension derived from the content type when the id has none.
func ImageFileName(id, contentType string) string {
	lower := strings.ToLower(id)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return id
		}
	}
	return id + "." + ExtensionForContentType(contentType)
}

// ExtensionForContentType maps a declared content type to an image file
// extension. Anything that is not recognisably PNG or GIF is treated as JPEG,
// which matches what readers actually ship inside FB2 files.
func ExtensionForContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "gif"):
		return "gif"
	default:
		return "jpg"
	}
}

// MimeForContentType maps a declared content type to the MIME type emitted
// in EPUB manifests.
func MimeForContentType(contentType string) string {
	switch ExtensionForContentType(contentType) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
