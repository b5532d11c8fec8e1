package mobi

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/tinyopds/tinyopds/pkg/fb2"
)

// Flow is the MOBI text document plus everything positional derived while
// building it: the chapter entries with their byte offsets, and the image
// records in emission order.
type Flow struct {
	HTML     []byte
	Entries  []*NCXEntry
	Images   [][]byte
	HasCover bool
}

// BuildFlow renders doc into MOBI-flavoured HTML. Sections end with an
// <mbp:pagebreak/>, footnote links point into a trailing footnotes div, and
// images are referenced by record index relative to the first image record.
func BuildFlow(doc *fb2.Document) *Flow {
	flow := &Flow{}
	imageIndex := map[string]int{}

	if cb := doc.CoverBinary(); cb != nil {
		flow.HasCover = true
		flow.Images = append(flow.Images, cb.Data)
		imageIndex[cb.ID] = 1
	}
	for _, bin := range doc.Binaries {
		if _, ok := imageIndex[bin.ID]; ok {
			continue
		}
		flow.Images = append(flow.Images, bin.Data)
		imageIndex[bin.ID] = len(flow.Images)
	}

	r := fb2.NewRenderer(doc)
	r.NoteRefClass = "footnote-ref"
	r.ImageTag = func(bin *fb2.Binary) string {
		// Kindle resolves images through the record table, 1-based from
		// the first image record.
		return fmt.Sprintf(`<img recindex="%05d"/>`, imageIndex[bin.ID])
	}

	var buf bytes.Buffer
	buf.WriteString("<html>\n<head><title>")
	buf.WriteString(fb2.EscapeText(doc.Title))
	buf.WriteString("</title></head>\n<body>\n")

	if body := doc.MainBody(); body != nil {
		for _, sec := range body.Sections {
			flow.renderSection(&buf, r, sec, 0)
		}
	}
	renderFootnotes(&buf, r, doc)

	buf.WriteString("</body>\n</html>\n")
	flow.HTML = buf.Bytes()
	return flow
}

// renderSection emits one section and its descendants, recording an NCX
// entry at the byte offset where the section begins.
func (f *Flow) renderSection(buf *bytes.Buffer, r *fb2.Renderer, sec *fb2.Section, depth int) {
	title := sec.Title
	if title == "" {
		title = "Chapter " + strconv.Itoa(len(f.Entries)+1)
	}
	f.Entries = append(f.Entries, &NCXEntry{
		Title:  title,
		Offset: buf.Len(),
		Depth:  depth,
	})

	if sec.Title != "" {
		buf.WriteString("<h2>" + fb2.EscapeText(sec.Title) + "</h2>\n")
	}
	r.Items(buf, sec.Items)
	for _, child := range sec.Sections {
		f.renderSection(buf, r, child, depth+1)
	}
	buf.WriteString("<mbp:pagebreak/>\n")
}

// renderFootnotes emits the notes body as a trailing div, notes sorted by
// id so footnote-ref anchors resolve in a stable order.
func renderFootnotes(buf *bytes.Buffer, r *fb2.Renderer, doc *fb2.Document) {
	notes := doc.Notes()
	if notes == nil {
		return
	}

	var sections []*fb2.Section
	var collect func(secs []*fb2.Section)
	collect = func(secs []*fb2.Section) {
		for _, sec := range secs {
			sections = append(sections, sec)
			collect(sec.Sections)
		}
	}
	collect(notes.Sections)
	if len(sections) == 0 {
		return
	}
	sort.SliceStable(sections, func(i, j int) bool {
		a, b := sections[i].ID, sections[j].ID
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	buf.WriteString(`<div class="footnotes">` + "\n")
	for _, sec := range sections {
		buf.WriteString(`<div class="footnote"`)
		if sec.ID != "" {
			buf.WriteString(` id="` + fb2.EscapeText(sec.ID) + `"`)
		}
		buf.WriteString(">\n")
		if sec.Title != "" {
			buf.WriteString("<p><strong>" + fb2.EscapeText(sec.Title) + "</strong></p>\n")
		}
		r.Items(buf, sec.Items)
		buf.WriteString("</div>\n")
	}
	buf.WriteString("</div>\n")
}
