package epub

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/fb2"
)

const (
	containerPath = "META-INF/container.xml"
	opfPath       = "EPUB/package.opf"
	navPath       = "EPUB/nav.xhtml"
	ncxPath       = "EPUB/toc.ncx"
	coverPagePath = "EPUB/cover.xhtml"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="EPUB/package.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// chapterCSS is embedded into every chapter page.
const chapterCSS = `body { font-family: serif; margin: 1em; }
h2, h3 { text-align: center; }
.poem { margin: 1em 2em; }
.verse { margin: 0; }
.epigraph { margin-left: 20%; font-style: italic; }
cite { display: block; text-align: right; }`

// Builder converts parsed FB2 documents into EPUB 3.0 archives. The zero
// value is ready to use; Now and NewID exist so tests can pin the two
// non-deterministic outputs (the dcterms:modified stamp and the fallback
// identifier).
type Builder struct {
	Now   func() time.Time
	NewID func() string
}

// Build writes a complete EPUB for doc to w. bookID becomes the
// urn:uuid dc:identifier; when empty, a fresh UUID is minted.
func (b *Builder) Build(w io.Writer, doc *fb2.Document, bookID string) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewID != nil {
		newID = b.NewID
	}
	if bookID == "" {
		bookID = newID()
	}

	renderer := fb2.NewRenderer(doc)
	chapters := ExtractChapters(doc, renderer)
	cover := doc.Cover()
	images := collectImages(doc)

	arc, err := NewArchive(w)
	if err != nil {
		return err
	}

	if err := arc.Add(containerPath, []byte(containerXML)); err != nil {
		return err
	}
	if err := arc.Add(opfPath, buildOPF(doc, bookID, chapters, cover, images, now().UTC())); err != nil {
		return err
	}
	if err := arc.Add(navPath, buildNav(doc, chapters, cover)); err != nil {
		return err
	}
	if err := arc.Add(ncxPath, buildNCX(doc, bookID, chapters, cover)); err != nil {
		return err
	}
	if cover != nil {
		if err := arc.Add(coverPagePath, buildCoverPage(cover)); err != nil {
			return err
		}
	}
	for i, ch := range chapters {
		if err := arc.Add("EPUB/"+ch.FileName, buildChapterPage(ch)); err != nil {
			return errors.Wrapf(err, "write chapter %d", i+1)
		}
	}
	for _, img := range images {
		if err := arc.Add("EPUB/"+img.FileName, img.Data); err != nil {
			return errors.Wrapf(err, "write image %q", img.FileName)
		}
	}

	return arc.Close()
}

// imagePart is one binary scheduled for the archive.
type imagePart struct {
	FileName string
	Mime     string
	Data     []byte
	IsCover  bool
}

// collectImages orders the document binaries for the archive: cover first,
// then the rest in document order, with duplicate target names dropped.
func collectImages(doc *fb2.Document) []imagePart {
	var parts []imagePart
	seen := map[string]bool{}

	add := func(bin *fb2.Binary, isCover bool) {
		name := fb2.ImageFileName(bin.ID, bin.ContentType)
		if seen[name] {
			return
		}
		seen[name] = true
		parts = append(parts, imagePart{
			FileName: name,
			Mime:     fb2.MimeForContentType(bin.ContentType),
			Data:     bin.Data,
			IsCover:  isCover,
		})
	}

	if cb := doc.CoverBinary(); cb != nil {
		add(cb, true)
	}
	for _, bin := range doc.Binaries {
		if cb := doc.CoverBinary(); cb != nil && bin == cb {
			continue
		}
		add(bin, false)
	}
	return parts
}

func buildOPF(doc *fb2.Document, bookID string, chapters []Chapter, cover *fb2.CoverRef, images []imagePart, modified time.Time) []byte {
	lang := doc.Language()
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id" xml:lang="%s">`+"\n", fb2.EscapeText(lang))

	buf.WriteString(`<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&buf, `<dc:identifier id="book-id">urn:uuid:%s</dc:identifier>`+"\n", fb2.EscapeText(bookID))
	fmt.Fprintf(&buf, `<dc:title>%s</dc:title>`+"\n", fb2.EscapeText(titleOrUntitled(doc)))
	fmt.Fprintf(&buf, `<dc:language>%s</dc:language>`+"\n", fb2.EscapeText(lang))
	fmt.Fprintf(&buf, `<meta property="dcterms:modified">%s</meta>`+"\n", modified.Format("2006-01-02T15:04:05Z"))
	for _, author := range doc.Authors {
		fmt.Fprintf(&buf, `<dc:creator>%s</dc:creator>`+"\n", fb2.EscapeText(author))
	}
	if !doc.Date.IsZero() {
		fmt.Fprintf(&buf, `<dc:date>%d</dc:date>`+"\n", doc.Date.Year())
	}
	if cover != nil {
		buf.WriteString(`<meta name="cover" content="cover-image"/>` + "\n")
	}
	buf.WriteString("</metadata>\n")

	buf.WriteString("<manifest>\n")
	buf.WriteString(`<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
	buf.WriteString(`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	if cover != nil {
		buf.WriteString(`<item id="cover" href="cover.xhtml" media-type="application/xhtml+xml"/>` + "\n")
		fmt.Fprintf(&buf, `<item id="cover-image" href="%s" media-type="%s" properties="cover-image"/>`+"\n", fb2.EscapeText(cover.FileName), cover.Mime)
	}
	for i, ch := range chapters {
		fmt.Fprintf(&buf, `<item id="chapter%d" href="%s" media-type="application/xhtml+xml"/>`+"\n", i+1, ch.FileName)
	}
	for _, img := range images {
		if img.IsCover {
			continue
		}
		fmt.Fprintf(&buf, `<item id="img-%s" href="%s" media-type="%s"/>`+"\n", fb2.EscapeText(img.FileName), fb2.EscapeText(img.FileName), img.Mime)
	}
	buf.WriteString("</manifest>\n")

	buf.WriteString(`<spine toc="ncx">` + "\n")
	if cover != nil {
		buf.WriteString(`<itemref idref="cover" linear="no"/>` + "\n")
	}
	for i := range chapters {
		fmt.Fprintf(&buf, `<itemref idref="chapter%d"/>`+"\n", i+1)
	}
	buf.WriteString("</spine>\n")

	buf.WriteString("<guide>\n")
	if cover != nil {
		buf.WriteString(`<reference type="cover" title="Cover" href="cover.xhtml"/>` + "\n")
	}
	fmt.Fprintf(&buf, `<reference type="text" title="Text" href="%s"/>`+"\n", chapters[0].FileName)
	buf.WriteString("</guide>\n")

	buf.WriteString("</package>\n")
	return buf.Bytes()
}

func buildNav(doc *fb2.Document, chapters []Chapter, cover *fb2.CoverRef) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString("<!DOCTYPE html>\n")
	buf.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&buf, "<head><title>%s</title></head>\n<body>\n", fb2.EscapeText(titleOrUntitled(doc)))
	buf.WriteString(`<nav epub:type="toc" id="toc">` + "\n<ol>\n")
	if cover != nil {
		buf.WriteString(`<li><a href="cover.xhtml">Cover</a></li>` + "\n")
	}
	for _, ch := range chapters {
		fmt.Fprintf(&buf, `<li><a href="%s">%s</a></li>`+"\n", ch.FileName, fb2.EscapeText(ch.Title))
	}
	buf.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return buf.Bytes()
}

func buildNCX(doc *fb2.Document, bookID string, chapters []Chapter, cover *fb2.CoverRef) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	buf.WriteString("<head>\n")
	fmt.Fprintf(&buf, `<meta name="dtb:uid" content="urn:uuid:%s"/>`+"\n", fb2.EscapeText(bookID))
	buf.WriteString(`<meta name="dtb:depth" content="1"/>` + "\n")
	buf.WriteString(`<meta name="dtb:totalPageCount" content="0"/>` + "\n")
	buf.WriteString(`<meta name="dtb:maxPageNumber" content="0"/>` + "\n")
	buf.WriteString("</head>\n")
	fmt.Fprintf(&buf, "<docTitle><text>%s</text></docTitle>\n", fb2.EscapeText(titleOrUntitled(doc)))
	buf.WriteString("<navMap>\n")

	order := 1
	if cover != nil {
		fmt.Fprintf(&buf, `<navPoint id="navpoint-cover" playOrder="%d"><navLabel><text>Cover</text></navLabel><content src="cover.xhtml"/></navPoint>`+"\n", order)
		order++
	}
	for i, ch := range chapters {
		fmt.Fprintf(&buf, `<navPoint id="navpoint-%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="%s"/></navPoint>`+"\n",
			i+1, order, fb2.EscapeText(ch.Title), ch.FileName)
		order++
	}

	buf.WriteString("</navMap>\n</ncx>\n")
	return buf.Bytes()
}

func buildCoverPage(cover *fb2.CoverRef) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString("<!DOCTYPE html>\n")
	buf.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	buf.WriteString("<head><title>Cover</title></head>\n<body>\n")
	fmt.Fprintf(&buf, `<div id="cover-image"><img src="%s" alt="Cover"/></div>`+"\n", fb2.EscapeText(cover.FileName))
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}

func buildChapterPage(ch Chapter) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString("<!DOCTYPE html>\n")
	buf.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	buf.WriteString("<head>\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", fb2.EscapeText(ch.Title))
	buf.WriteString(`<style type="text/css">` + "\n" + chapterCSS + "\n</style>\n")
	buf.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&buf, "<h2>%s</h2>\n", fb2.EscapeText(ch.Title))
	buf.WriteString(ch.HTML)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}

func titleOrUntitled(doc *fb2.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return "Untitled"
}
