package epub

import (
	"bytes"
	"strconv"

	"github.com/tinyopds/tinyopds/pkg/fb2"
)

// Chapter is one reading unit extracted from the FB2 body.
type Chapter struct {
	Title    string
	FileName string
	HTML     string
}

// ExtractChapters flattens the main body into chapters. Leaf sections become
// chapters; a section with child sections is a container whose children are
// promoted and whose own title is discarded. Untitled chapters are named
// "Chapter N" and an empty body still yields one chapter, so every EPUB has
// at least one spine item.
func ExtractChapters(doc *fb2.Document, r *fb2.Renderer) []Chapter {
	var chapters []Chapter

	var walk func(secs []*fb2.Section)
	walk = func(secs []*fb2.Section) {
		for _, sec := range secs {
			if len(sec.Sections) > 0 {
				walk(sec.Sections)
				continue
			}
			var buf bytes.Buffer
			r.Items(&buf, sec.Items)
			chapters = append(chapters, Chapter{Title: sec.Title, HTML: buf.String()})
		}
	}

	if body := doc.MainBody(); body != nil {
		walk(body.Sections)
	}

	if len(chapters) == 0 {
		chapters = append(chapters, Chapter{})
	}

	for i := range chapters {
		if chapters[i].Title == "" {
			chapters[i].Title = "Chapter " + strconv.Itoa(i+1)
		}
		chapters[i].FileName = "chapter" + strconv.Itoa(i+1) + ".xhtml"
	}

	return chapters
}
