package fb2

import (
	"bytes"
	"strings"
)

// Renderer converts the parsed tree into XHTML fragments. Both the EPUB and
// the MOBI writers drive it; NoteRefClass is the only divergence between the
// two flavours (MOBI decorates footnote links so readers pop them up).
type Renderer struct {
	doc *Document

	// NoteRefClass, when set, is emitted as the class attribute of links
	// parsed from <a type="note">.
	NoteRefClass string

	// ImageTag, when set, produces the whole img element for a resolved
	// binary. The default emits <img src="{fileName}" alt=""/>.
	ImageTag func(bin *Binary) string
}

// NewRenderer returns a renderer over doc.
func NewRenderer(doc *Document) *Renderer {
	return &Renderer{doc: doc}
}

// escaper covers the five characters that must not appear raw in XHTML text
// or attribute values.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeText escapes s for insertion as XHTML text. Fragments assembled from
// already-escaped pieces must not pass through it again.
func EscapeText(s string) string {
	return escaper.Replace(s)
}

// Items renders a sequence of block items into buf.
func (r *Renderer) Items(buf *bytes.Buffer, items []Item) {
	for _, item := range items {
		r.Item(buf, item)
	}
}

// Item renders one block item into buf.
func (r *Renderer) Item(buf *bytes.Buffer, item Item) {
	switch it := item.(type) {
	case *Paragraph:
		buf.WriteString("<p>")
		r.Spans(buf, it.Spans)
		buf.WriteString("</p>\n")
	case *Subtitle:
		buf.WriteString("<h3>")
		r.Spans(buf, it.Spans)
		buf.WriteString("</h3>\n")
	case *EmptyLine:
		buf.WriteString("<br/>\n")
	case *Poem:
		buf.WriteString(`<div class="poem">` + "\n")
		if it.Title != "" {
			buf.WriteString("<h3>" + EscapeText(it.Title) + "</h3>\n")
		}
		for _, stanza := range it.Stanzas {
			buf.WriteString(`<div class="stanza">` + "\n")
			for _, line := range stanza.Lines {
				buf.WriteString(`<p class="verse">`)
				r.Spans(buf, line.Spans)
				buf.WriteString("</p>\n")
			}
			buf.WriteString("</div>\n")
		}
		buf.WriteString("</div>\n")
	case *Cite:
		buf.WriteString("<blockquote>\n")
		r.Items(buf, it.Items)
		for _, author := range it.Authors {
			buf.WriteString("<cite>")
			r.Spans(buf, author.Spans)
			buf.WriteString("</cite>\n")
		}
		buf.WriteString("</blockquote>\n")
	case *Epigraph:
		buf.WriteString(`<div class="epigraph">` + "\n")
		r.Items(buf, it.Items)
		for _, author := range it.Authors {
			buf.WriteString("<cite>")
			r.Spans(buf, author.Spans)
			buf.WriteString("</cite>\n")
		}
		buf.WriteString("</div>\n")
	case *ImageRef:
		r.image(buf, it.Href)
	case *TextAuthor:
		buf.WriteString("<cite>")
		r.Spans(buf, it.Spans)
		buf.WriteString("</cite>\n")
	}
}

// Spans renders an inline run sequence into buf.
func (r *Renderer) Spans(buf *bytes.Buffer, spans []Span) {
	for i := range spans {
		r.span(buf, &spans[i])
	}
}

func (r *Renderer) span(buf *bytes.Buffer, s *Span) {
	switch s.Kind {
	case SpanText:
		buf.WriteString(EscapeText(s.Text))
	case SpanStrong:
		r.wrap(buf, "strong", s.Children)
	case SpanEmphasis:
		r.wrap(buf, "em", s.Children)
	case SpanStyle:
		r.wrap(buf, "span", s.Children)
	case SpanStrike:
		r.wrap(buf, "s", s.Children)
	case SpanSub:
		r.wrap(buf, "sub", s.Children)
	case SpanSup:
		r.wrap(buf, "sup", s.Children)
	case SpanCode:
		r.wrap(buf, "code", s.Children)
	case SpanLink:
		buf.WriteString("<a")
		if s.NoteRef && r.NoteRefClass != "" {
			buf.WriteString(` class="` + r.NoteRefClass + `"`)
		}
		buf.WriteString(` href="` + EscapeText(s.Href) + `">`)
		r.Spans(buf, s.Children)
		buf.WriteString("</a>")
	case SpanImage:
		r.image(buf, s.Href)
	}
}

func (r *Renderer) wrap(buf *bytes.Buffer, tag string, children []Span) {
	buf.WriteString("<" + tag + ">")
	r.Spans(buf, children)
	buf.WriteString("</" + tag + ">")
}

// image emits an img tag when the referenced binary exists; dangling
// references are dropped silently.
func (r *Renderer) image(buf *bytes.Buffer, href string) {
	bin := r.doc.Binary(href)
	if bin == nil {
		return
	}
	if r.ImageTag != nil {
		buf.WriteString(r.ImageTag(bin))
		return
	}
	name := ImageFileName(bin.ID, bin.ContentType)
	buf.WriteString(`<img src="` + EscapeText(name) + `" alt=""/>` + "\n")
}
