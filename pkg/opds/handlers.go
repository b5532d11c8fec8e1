package opds

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/covers"
	"github.com/tinyopds/tinyopds/pkg/epub"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/fb2"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/mobi"
	"github.com/tinyopds/tinyopds/pkg/stats"
)

// webModeKey marks requests that arrived through the browser prefix and are
// answered with HTML instead of Atom.
const webModeKey = "opds.web"

const mimeTypeICO = "image/x-icon"

// fb2Clients are user agent substrings of readers that consume FB2
// natively. They get the source archive without the converted formats.
var fb2Clients = []string{"FBReader", "AlReader", "CoolReader", "PocketBook"}

type handler struct {
	cfg    *config.Config
	svc    *Service
	store  library.Store
	covers *covers.Service
	stats  *stats.Stats
}

func webMode(c echo.Context) bool {
	on, _ := c.Get(webModeKey).(bool)
	return on
}

// pageSize returns the page length for the current client mode.
func (h *handler) pageSize(c echo.Context) int {
	n := h.cfg.ItemsPerOPDSPage
	if webMode(c) {
		n = h.cfg.ItemsPerWebPage
	}
	if n <= 0 {
		n = 50
	}
	return n
}

// baseURL returns the link prefix for the current client mode, absolute
// when the catalog is configured to hand out full URLs.
func (h *handler) baseURL(c echo.Context) string {
	prefix := h.cfg.RootPrefix
	if webMode(c) {
		prefix = h.cfg.HttpPrefix
	}
	host := ""
	if h.cfg.UseAbsoluteUri {
		host = c.Request().Host
	}
	return BaseURL(host, prefix, h.cfg.UseAbsoluteUri)
}

func (h *handler) requireSection(section string) error {
	if !h.svc.Structure().Enabled(section) {
		return errcodes.NotFound("Section")
	}
	return nil
}

func pageFromPath(c echo.Context) (int, error) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 0 {
		return 0, errcodes.MalformedRequest("page number")
	}
	return page, nil
}

func (h *handler) pageFromQuery(c echo.Context) (int, error) {
	var q PageQuery
	if err := c.Bind(&q); err != nil {
		return 0, err
	}
	return q.PageNumber, nil
}

func pathName(c echo.Context, param, resource string) (string, error) {
	name, err := url.PathUnescape(c.Param(param))
	if err != nil || name == "" {
		return "", errcodes.NotFound(resource)
	}
	return name, nil
}

// root handles the catalog menu.
func (h *handler) root(c echo.Context) error {
	return h.respondFeed(c, h.svc.BuildRootFeed())
}

// newByDate handles the new-arrivals feed ordered by arrival date.
func (h *handler) newByDate(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionNewDate); err != nil {
		return err
	}
	page, err := pageFromPath(c)
	if err != nil {
		return err
	}

	feed, err := h.svc.BuildNewByDateFeed(ctx, page, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// newByTitle handles the new-arrivals feed ordered by title.
func (h *handler) newByTitle(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionNewTitle); err != nil {
		return err
	}
	page, err := pageFromPath(c)
	if err != nil {
		return err
	}

	feed, err := h.svc.BuildNewByTitleFeed(ctx, page, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// authorsIndex handles the alphabetic author index, with or without a
// prefix segment.
func (h *handler) authorsIndex(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionAuthorsIndex); err != nil {
		return err
	}
	prefix, err := url.PathUnescape(c.Param("prefix"))
	if err != nil {
		return errcodes.NotFound("Author")
	}

	feed, err := h.svc.BuildAuthorsIndexFeed(ctx, prefix, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// authorDetails handles the per-author menu.
func (h *handler) authorDetails(c echo.Context) error {
	if err := h.requireSection(SectionAuthorDetails); err != nil {
		return err
	}
	author, err := pathName(c, "name", "Author")
	if err != nil {
		return err
	}
	return h.respondFeed(c, h.svc.BuildAuthorDetailsFeed(author))
}

// authorSeries handles the list of series an author contributed to.
func (h *handler) authorSeries(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionAuthorSeries); err != nil {
		return err
	}
	author, err := pathName(c, "name", "Author")
	if err != nil {
		return err
	}

	feed, err := h.svc.BuildAuthorSeriesFeed(ctx, author)
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// authorNoSeries handles an author's books outside any series.
func (h *handler) authorNoSeries(c echo.Context) error {
	return h.authorBooks(c, SectionAuthorNoSeries, h.svc.BuildAuthorNoSeriesFeed)
}

// authorAlphabetic handles an author's books ordered by title.
func (h *handler) authorAlphabetic(c echo.Context) error {
	return h.authorBooks(c, SectionAuthorAlphabetic, h.svc.BuildAuthorAlphabeticFeed)
}

// authorByDate handles an author's books ordered by publication date.
func (h *handler) authorByDate(c echo.Context) error {
	return h.authorBooks(c, SectionAuthorByDate, h.svc.BuildAuthorByDateFeed)
}

func (h *handler) authorBooks(c echo.Context, section string, build func(context.Context, string, int, int) (*Feed, error)) error {
	ctx := c.Request().Context()
	if err := h.requireSection(section); err != nil {
		return err
	}
	author, err := pathName(c, "name", "Author")
	if err != nil {
		return err
	}
	page, err := h.pageFromQuery(c)
	if err != nil {
		return err
	}

	feed, err := build(ctx, author, page, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// sequencesIndex handles the alphabetic series index, with or without a
// prefix segment.
func (h *handler) sequencesIndex(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionSequencesIndex); err != nil {
		return err
	}
	prefix, err := url.PathUnescape(c.Param("prefix"))
	if err != nil {
		return errcodes.NotFound("Series")
	}

	feed, err := h.svc.BuildSequencesIndexFeed(ctx, prefix, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// sequence handles the books of one series.
func (h *handler) sequence(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionSequencesIndex); err != nil {
		return err
	}
	name, err := pathName(c, "name", "Series")
	if err != nil {
		return err
	}
	page, err := h.pageFromQuery(c)
	if err != nil {
		return err
	}

	feed, err := h.svc.BuildSequenceFeed(ctx, name, page, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// genres handles the genre tree, one level per request.
func (h *handler) genres(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionGenres); err != nil {
		return err
	}
	section, err := url.PathUnescape(c.Param("section"))
	if err != nil {
		return errcodes.NotFound("Genre")
	}

	feed, err := h.svc.BuildGenresFeed(ctx, section)
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// genre handles the books of one genre code.
func (h *handler) genre(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.requireSection(SectionGenres); err != nil {
		return err
	}
	code, err := pathName(c, "id", "Genre")
	if err != nil {
		return err
	}
	page, err := h.pageFromQuery(c)
	if err != nil {
		return err
	}

	feed, err := h.svc.BuildGenreFeed(ctx, code, page, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// search handles both the plain and the typed search templates.
func (h *handler) search(c echo.Context) error {
	ctx := c.Request().Context()

	var q SearchQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	// Clients that cannot fill OpenSearch templates request the template
	// literally; treat that as an empty search.
	if q.SearchTerm == "{searchTerms}" {
		q.SearchTerm = ""
	}

	feed, err := h.svc.BuildSearchFeed(ctx, q.SearchTerm, q.SearchType, q.PageNumber, h.pageSize(c))
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondFeed(c, feed)
}

// openSearch handles the OpenSearch descriptor. Legacy readers expect it
// with the Atom content type, so it goes through respondXML too.
func (h *handler) openSearch(c echo.Context) error {
	desc := h.svc.OpenSearch()
	RewriteOpenSearch(desc, h.baseURL(c))
	return respondXML(c, desc)
}

// cover serves the full-size cover page of a book.
func (h *handler) cover(c echo.Context) error {
	return h.image(c, false)
}

// thumbnail serves the downscaled cover of a book.
func (h *handler) thumbnail(c echo.Context) error {
	return h.image(c, true)
}

func (h *handler) image(c echo.Context, thumb bool) error {
	ctx := c.Request().Context()
	id := strings.TrimSuffix(strings.TrimSuffix(c.Param("id"), ".jpeg"), ".jpg")

	book, err := h.store.GetBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	var data []byte
	if thumb {
		data, err = h.covers.Thumbnail(book)
	} else {
		data, err = h.covers.Cover(book)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	h.stats.ImageSent()
	return c.Blob(http.StatusOK, MimeTypeJPEG, data)
}

// favicon serves the embedded icon for any *.ico request.
func (h *handler) favicon(c echo.Context) error {
	if !strings.HasSuffix(c.Param("id"), ".ico") {
		return errcodes.NotFound("File")
	}
	return c.Blob(http.StatusOK, mimeTypeICO, faviconICO)
}

// download serves a book in the requested format. FB2 books can be fetched
// as the source archive or converted to EPUB or MOBI on the fly; EPUB
// books are served as stored.
func (h *handler) download(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	book, err := h.store.GetBook(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}
	filename, err := url.PathUnescape(c.Param("filename"))
	if err != nil {
		return errcodes.NotFound("File")
	}

	name := DownloadName(book)
	switch {
	case strings.HasSuffix(filename, ".fb2.zip"):
		if book.BookType != library.BookTypeFB2 {
			return errcodes.NotFound("File")
		}
		raw, err := library.ReadBook(h.cfg.LibraryPath, book)
		if err != nil {
			return errors.WithStack(err)
		}
		data, err := packFB2Zip(raw, name)
		if err != nil {
			return err
		}
		h.stats.BookSent()
		setAttachment(c, name+".fb2.zip")
		return c.Blob(http.StatusOK, MimeTypeFB2, data)

	case strings.HasSuffix(filename, ".epub"):
		raw, err := library.ReadBook(h.cfg.LibraryPath, book)
		if err != nil {
			return errors.WithStack(err)
		}
		data := raw
		if book.BookType != library.BookTypeEPUB {
			data, err = buildEPUB(raw, book.ID)
			if err != nil {
				log.Error("epub conversion failed", logger.Data{
					"book_id": book.ID,
					"error":   err.Error(),
				})
				return errcodes.ConverterFailure()
			}
		}
		h.stats.BookSent()
		setAttachment(c, name+".epub")
		return c.Blob(http.StatusOK, MimeTypeEPUB, data)

	case strings.HasSuffix(filename, ".mobi"):
		if book.BookType != library.BookTypeFB2 {
			return errcodes.NotFound("File")
		}
		raw, err := library.ReadBook(h.cfg.LibraryPath, book)
		if err != nil {
			return errors.WithStack(err)
		}
		data, err := h.buildMobi(ctx, raw, name)
		if err != nil {
			log.Error("mobi conversion failed", logger.Data{
				"book_id": book.ID,
				"error":   err.Error(),
			})
			return errcodes.ConverterFailure()
		}
		h.stats.BookSent()
		setAttachment(c, name+".mobi")
		return c.Blob(http.StatusOK, MimeTypeMOBI, data)
	}

	return errcodes.NotFound("File")
}

// packFB2Zip wraps raw FB2 bytes in a fresh single-entry ZIP so the
// download name matches the link even for books stored in shared archives.
func packFB2Zip(raw []byte, base string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(base + ".fb2")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func buildEPUB(raw []byte, bookID string) ([]byte, error) {
	doc, err := fb2.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	b := epub.Builder{}
	if err := b.Build(&buf, doc, bookID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildMobi prefers the external converter when one is configured and
// falls back to the built-in writer otherwise.
func (h *handler) buildMobi(ctx context.Context, raw []byte, base string) ([]byte, error) {
	if h.cfg.ConvertorPath != "" {
		return h.convertExternal(ctx, raw, base)
	}
	doc, err := fb2.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := mobi.Convert(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// convertExternal runs the configured converter binary as
// "convertor input.fb2 output.mobi" in a scratch directory.
func (h *handler) convertExternal(ctx context.Context, raw []byte, base string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "tinyopds-convert-")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, base+".fb2")
	out := filepath.Join(dir, base+".mobi")
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return nil, errors.WithStack(err)
	}
	cmd := exec.CommandContext(ctx, h.cfg.ConvertorPath, in, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "convertor: %s", strings.TrimSpace(string(output)))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func setAttachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
}

// respondFeed finishes a feed for the client that asked for it: FB2-native
// readers lose the converted formats, hrefs get the route prefix, and
// browser requests come back as HTML.
func (h *handler) respondFeed(c echo.Context, feed *Feed) error {
	if !webMode(c) && fb2Native(c.Request().UserAgent()) {
		preferFB2(feed)
	}
	RewriteLinks(feed, h.baseURL(c))
	if webMode(c) {
		return h.respondHTML(c, feed)
	}
	return respondXML(c, feed)
}

func fb2Native(userAgent string) bool {
	for _, client := range fb2Clients {
		if strings.Contains(userAgent, client) {
			return true
		}
	}
	return false
}

// preferFB2 strips the converted formats from entries that carry a native
// FB2 archive.
func preferFB2(feed *Feed) {
	for i := range feed.Entries {
		entry := &feed.Entries[i]
		hasFB2 := false
		for _, l := range entry.Links {
			if l.Rel == RelAcquisition && l.Type == MimeTypeFB2 {
				hasFB2 = true
				break
			}
		}
		if !hasFB2 {
			continue
		}
		links := entry.Links[:0]
		for _, l := range entry.Links {
			if l.Rel == RelAcquisition && l.Type != MimeTypeFB2 {
				continue
			}
			links = append(links, l)
		}
		entry.Links = links
	}
}

// respondXML sends an XML response with the Atom content type.
func respondXML(c echo.Context, data interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, MimeTypeAtom+"; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)

	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return errors.WithStack(err)
	}

	encoder := xml.NewEncoder(c.Response())
	encoder.Indent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
