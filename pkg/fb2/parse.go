package fb2

import (
	"encoding/base64"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// Parse reads an FB2 document. Non-UTF-8 encodings declared in the XML
// prolog (windows-1251 is common in the wild) are handled transparently.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	doc := &Document{binIndex: map[string]*Binary{}}
	seenRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 token")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "FictionBook":
			seenRoot = true
		case "description":
			if err := parseDescription(dec, &start, doc); err != nil {
				return nil, err
			}
		case "body":
			body, err := parseBody(dec, &start)
			if err != nil {
				return nil, err
			}
			doc.Bodies = append(doc.Bodies, body)
		case "binary":
			bin, err := parseBinary(dec, &start)
			if err != nil {
				return nil, err
			}
			if bin.ID != "" {
				doc.Binaries = append(doc.Binaries, bin)
				doc.binIndex[bin.ID] = bin
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, errors.Wrap(err, "skip fb2 element")
			}
		}
	}

	if !seenRoot {
		return nil, errors.New("not an FB2 document: no FictionBook root element")
	}
	return doc, nil
}

// descriptionXML is the subset of <description> the catalog cares about.
type descriptionXML struct {
	TitleInfo struct {
		Genres     []string      `xml:"genre"`
		Authors    []personXML   `xml:"author"`
		BookTitle  string        `xml:"book-title"`
		Annotation annotationXML `xml:"annotation"`
		Date       dateXML       `xml:"date"`
		Lang       string        `xml:"lang"`
		Coverpage  struct {
			Images []imageXML `xml:"image"`
		} `xml:"coverpage"`
		Sequences []struct {
			Name   string `xml:"name,attr"`
			Number string `xml:"number,attr"`
		} `xml:"sequence"`
	} `xml:"title-info"`
}

type personXML struct {
	FirstName  string `xml:"first-name"`
	MiddleName string `xml:"middle-name"`
	LastName   string `xml:"last-name"`
	Nickname   string `xml:"nickname"`
}

// displayName renders the catalog form "Last First Middle", falling back to
// the nickname for pseudonymous authors. Surname-first keeps the author
// index bucketed by surname initial.
func (p personXML) displayName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.LastName, p.FirstName, p.MiddleName} {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.Nickname)
	}
	return strings.Join(parts, " ")
}

// imageXML accepts the href attribute in any namespace: files in the wild
// use xlink:href, l:href, xml:href, and bare href interchangeably.
type imageXML struct {
	Href string
}

func (i *imageXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	i.Href = hrefAttr(start)
	return d.Skip()
}

// annotationXML flattens the annotation's mixed content into plain text.
type annotationXML struct {
	Text string
}

func (a *annotationXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var parts []string
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	a.Text = strings.Join(parts, " ")
	return nil
}

type dateXML struct {
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

// date parses the value attribute (full or partial ISO date) and falls back
// to a bare year in the element text. Absent dates stay at the zero value.
func (d dateXML) date() time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(d.Value)); err == nil {
			return t
		}
	}
	if year, err := strconv.Atoi(strings.TrimSpace(d.Text)); err == nil && year > 1 {
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

func parseDescription(dec *xml.Decoder, start *xml.StartElement, doc *Document) error {
	var desc descriptionXML
	if err := dec.DecodeElement(&desc, start); err != nil {
		return errors.Wrap(err, "decode fb2 description")
	}

	ti := desc.TitleInfo
	doc.Title = strings.TrimSpace(ti.BookTitle)
	doc.Lang = strings.TrimSpace(ti.Lang)
	doc.Date = ti.Date.date()
	doc.Annotation = ti.Annotation.Text
	for _, g := range ti.Genres {
		if g = strings.TrimSpace(g); g != "" {
			doc.Genres = append(doc.Genres, g)
		}
	}
	for _, a := range ti.Authors {
		if name := a.displayName(); name != "" {
			doc.Authors = append(doc.Authors, name)
		}
	}
	if len(ti.Sequences) > 0 {
		doc.Sequence = strings.TrimSpace(ti.Sequences[0].Name)
		if n, err := strconv.Atoi(strings.TrimSpace(ti.Sequences[0].Number)); err == nil {
			doc.SequenceNo = n
		}
	}
	if len(ti.Coverpage.Images) > 0 {
		doc.coverHref = ti.Coverpage.Images[0].Href
	}
	return nil
}

func parseBinary(dec *xml.Decoder, start *xml.StartElement) (*Binary, error) {
	bin := &Binary{}
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			bin.ID = a.Value
		case "content-type":
			bin.ContentType = a.Value
		}
	}

	var raw strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 binary")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			raw.Write(t)
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, raw.String())

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Some generators emit unpadded payloads.
		data, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, errors.Wrapf(err, "decode fb2 binary %q", bin.ID)
		}
	}
	bin.Data = data
	return bin, nil
}

func parseBody(dec *xml.Decoder, start *xml.StartElement) (*Body, error) {
	body := &Body{}
	for _, a := range start.Attr {
		if a.Name.Local == "name" {
			body.Name = a.Value
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 body")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title":
				title, err := flattenTitle(dec)
				if err != nil {
					return nil, err
				}
				body.Title = title
			case "section":
				sec, err := parseSection(dec, &t)
				if err != nil {
					return nil, err
				}
				body.Sections = append(body.Sections, sec)
			default:
				if err := dec.Skip(); err != nil {
					return nil, errors.Wrap(err, "skip fb2 body element")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				return body, nil
			}
		}
	}
}

func parseSection(dec *xml.Decoder, start *xml.StartElement) (*Section, error) {
	sec := &Section{}
	for _, a := range start.Attr {
		if a.Name.Local == "id" {
			sec.ID = a.Value
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 section")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title":
				title, err := flattenTitle(dec)
				if err != nil {
					return nil, err
				}
				sec.Title = title
			case "section":
				child, err := parseSection(dec, &t)
				if err != nil {
					return nil, err
				}
				sec.Sections = append(sec.Sections, child)
			default:
				item, err := parseItem(dec, &t)
				if err != nil {
					return nil, err
				}
				if item != nil {
					sec.Items = append(sec.Items, item)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "section" {
				return sec, nil
			}
		}
	}
}

// parseItem dispatches one block-level element. Unknown elements are
// skipped, not failed: FB2 files in the wild carry vendor extensions.
func parseItem(dec *xml.Decoder, start *xml.StartElement) (Item, error) {
	switch start.Name.Local {
	case "p":
		spans, err := parseSpans(dec, start.Name.Local)
		if err != nil {
			return nil, err
		}
		return &Paragraph{Spans: spans}, nil
	case "subtitle":
		spans, err := parseSpans(dec, start.Name.Local)
		if err != nil {
			return nil, err
		}
		return &Subtitle{Spans: spans}, nil
	case "empty-line":
		if err := dec.Skip(); err != nil {
			return nil, errors.Wrap(err, "skip empty-line")
		}
		return &EmptyLine{}, nil
	case "poem":
		return parsePoem(dec)
	case "cite":
		return parseCite(dec)
	case "epigraph":
		return parseEpigraph(dec)
	case "image":
		href := hrefAttr(*start)
		if err := dec.Skip(); err != nil {
			return nil, errors.Wrap(err, "skip image")
		}
		return &ImageRef{Href: href}, nil
	case "text-author":
		spans, err := parseSpans(dec, start.Name.Local)
		if err != nil {
			return nil, err
		}
		return &TextAuthor{Spans: spans}, nil
	default:
		if err := dec.Skip(); err != nil {
			return nil, errors.Wrapf(err, "skip fb2 element %q", start.Name.Local)
		}
		return nil, nil
	}
}

func parsePoem(dec *xml.Decoder) (*Poem, error) {
	poem := &Poem{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 poem")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title":
				title, err := flattenTitle(dec)
				if err != nil {
					return nil, err
				}
				poem.Title = title
			case "stanza":
				stanza, err := parseStanza(dec)
				if err != nil {
					return nil, err
				}
				poem.Stanzas = append(poem.Stanzas, stanza)
			default:
				if err := dec.Skip(); err != nil {
					return nil, errors.Wrap(err, "skip poem element")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "poem" {
				return poem, nil
			}
		}
	}
}

func parseStanza(dec *xml.Decoder) (Stanza, error) {
	var stanza Stanza
	for {
		tok, err := dec.Token()
		if err != nil {
			return stanza, errors.Wrap(err, "read fb2 stanza")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "v" {
				spans, err := parseSpans(dec, "v")
				if err != nil {
					return stanza, err
				}
				stanza.Lines = append(stanza.Lines, Paragraph{Spans: spans})
			} else if err := dec.Skip(); err != nil {
				return stanza, errors.Wrap(err, "skip stanza element")
			}
		case xml.EndElement:
			if t.Name.Local == "stanza" {
				return stanza, nil
			}
		}
	}
}

func parseCite(dec *xml.Decoder) (*Cite, error) {
	cite := &Cite{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 cite")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text-author" {
				spans, err := parseSpans(dec, "text-author")
				if err != nil {
					return nil, err
				}
				cite.Authors = append(cite.Authors, Paragraph{Spans: spans})
				continue
			}
			item, err := parseItem(dec, &t)
			if err != nil {
				return nil, err
			}
			if item != nil {
				cite.Items = append(cite.Items, item)
			}
		case xml.EndElement:
			if t.Name.Local == "cite" {
				return cite, nil
			}
		}
	}
}

func parseEpigraph(dec *xml.Decoder) (*Epigraph, error) {
	ep := &Epigraph{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read fb2 epigraph")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text-author" {
				spans, err := parseSpans(dec, "text-author")
				if err != nil {
					return nil, err
				}
				ep.Authors = append(ep.Authors, Paragraph{Spans: spans})
				continue
			}
			item, err := parseItem(dec, &t)
			if err != nil {
				return nil, err
			}
			if item != nil {
				ep.Items = append(ep.Items, item)
			}
		case xml.EndElement:
			if t.Name.Local == "epigraph" {
				return ep, nil
			}
		}
	}
}

// parseSpans reads the mixed content of an inline container until its end
// element, producing the inline run tree.
func parseSpans(dec *xml.Decoder, parent string) ([]Span, error) {
	var spans []Span
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrapf(err, "read fb2 %s content", parent)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if s := string(t); s != "" {
				spans = append(spans, Span{Kind: SpanText, Text: s})
			}
		case xml.StartElement:
			span, err := parseInline(dec, &t)
			if err != nil {
				return nil, err
			}
			if span != nil {
				spans = append(spans, *span)
			}
		case xml.EndElement:
			if t.Name.Local == parent {
				return spans, nil
			}
		}
	}
}

func parseInline(dec *xml.Decoder, start *xml.StartElement) (*Span, error) {
	var kind SpanKind
	switch start.Name.Local {
	case "strong":
		kind = SpanStrong
	case "emphasis":
		kind = SpanEmphasis
	case "style":
		kind = SpanStyle
	case "a":
		kind = SpanLink
	case "strikethrough":
		kind = SpanStrike
	case "sub":
		kind = SpanSub
	case "sup":
		kind = SpanSup
	case "code":
		kind = SpanCode
	case "image":
		href := hrefAttr(*start)
		if err := dec.Skip(); err != nil {
			return nil, errors.Wrap(err, "skip inline image")
		}
		return &Span{Kind: SpanImage, Href: href}, nil
	default:
		if err := dec.Skip(); err != nil {
			return nil, errors.Wrapf(err, "skip inline element %q", start.Name.Local)
		}
		return nil, nil
	}

	span := &Span{Kind: kind}
	if kind == SpanLink {
		span.Href = hrefAttr(*start)
		for _, a := range start.Attr {
			if a.Name.Local == "type" && a.Value == "note" {
				span.NoteRef = true
			}
		}
	}

	children, err := parseSpans(dec, start.Name.Local)
	if err != nil {
		return nil, err
	}
	span.Children = children
	return span, nil
}

// flattenTitle concatenates the text descendants of a <title>, space-joined.
// Called with the decoder positioned just after the title start element.
func flattenTitle(dec *xml.Decoder) (string, error) {
	var parts []string
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", errors.Wrap(err, "read fb2 title")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

// hrefAttr returns the href attribute regardless of its namespace.
func hrefAttr(start xml.StartElement) string {
	for _, a := range start.Attr {
		if a.Name.Local == "href" {
			return a.Value
		}
	}
	return ""
}
