package opds

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyopds/tinyopds/pkg/binder"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/stats"
)

// testCatalog assembles the echo stack the way the server does, backed by
// a memory store and a scratch library directory.
type testCatalog struct {
	e     *echo.Echo
	cfg   *config.Config
	store *library.MemoryStore
	stats *stats.Stats
}

func newTestCatalog(t *testing.T, overrides func(*config.Config)) *testCatalog {
	t.Helper()

	cfg := config.NewForTest()
	cfg.LibraryPath = t.TempDir()
	if overrides != nil {
		overrides(cfg)
	}

	store := library.NewMemoryStore(cfg.CyrillicFirst)
	st := stats.New()

	b, err := binder.New()
	require.NoError(t, err)

	e := echo.New()
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	e.Pre(NormalizeMiddleware(cfg))
	RegisterRoutes(e, cfg, store, st)

	return &testCatalog{e: e, cfg: cfg, store: store, stats: st}
}

func (tc *testCatalog) fetch(target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	tc.e.ServeHTTP(rec, req)
	return rec
}

// addFB2 writes a parseable FictionBook into a fresh ZIP container under
// the library root and registers the matching record.
func (tc *testCatalog) addFB2(t *testing.T, id, title, lastName, firstName string, cover []byte) *library.Book {
	t.Helper()

	doc := fb2Book(title, firstName, lastName, cover)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(id + ".fb2")
	require.NoError(t, err)
	_, err = w.Write(doc)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(tc.cfg.LibraryPath, id+".zip"), buf.Bytes(), 0o644))

	book := &library.Book{
		ID:       id,
		Title:    title,
		Language: "ru",
		FilePath: id + ".zip" + library.PathSeparator + id + ".fb2",
		BookType: library.BookTypeFB2,
		FileSize: int64(len(doc)),
		Authors:  []*library.Author{{Name: lastName + " " + firstName}},
		Genres:   []*library.BookGenre{{Code: "sf"}},
	}
	tc.store.Add(book)
	return book
}

// addEPUB stores raw bytes as an EPUB file. Stored EPUBs are served as is,
// so the payload does not have to be a real archive.
func (tc *testCatalog) addEPUB(t *testing.T, id, title string, data []byte) *library.Book {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(tc.cfg.LibraryPath, id+".epub"), data, 0o644))

	book := &library.Book{
		ID:       id,
		Title:    title,
		Language: "en",
		FilePath: id + ".epub",
		BookType: library.BookTypeEPUB,
		FileSize: int64(len(data)),
		Authors:  []*library.Author{{Name: "Herbert Frank"}},
		Genres:   []*library.BookGenre{{Code: "sf"}},
	}
	tc.store.Add(book)
	return book
}

func fb2Book(title, firstName, lastName string, cover []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<FictionBook xmlns=\"http://www.gribuser.ru/xml/fictionbook/2.0\" xmlns:l=\"http://www.w3.org/1999/xlink\">\n")
	b.WriteString("<description><title-info>\n<genre>sf</genre>\n")
	fmt.Fprintf(&b, "<author><first-name>%s</first-name><last-name>%s</last-name></author>\n", firstName, lastName)
	fmt.Fprintf(&b, "<book-title>%s</book-title>\n", title)
	if cover != nil {
		b.WriteString("<coverpage><image l:href=\"#cover.jpg\"/></coverpage>\n")
	}
	b.WriteString("<lang>ru</lang>\n")
	b.WriteString("</title-info></description>\n")
	fmt.Fprintf(&b, "<body><title><p>%s</p></title><section><title><p>Глава первая</p></title><p>Первый абзац.</p><p>Второй абзац.</p></section></body>\n", title)
	if cover != nil {
		fmt.Fprintf(&b, "<binary id=\"cover.jpg\" content-type=\"image/jpeg\">%s</binary>\n", base64.StdEncoding.EncodeToString(cover))
	}
	b.WriteString("</FictionBook>\n")
	return b.Bytes()
}

func coverJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 60, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 2), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestRootFeedAcrossPrefixes(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	for _, target := range []string{"/", "/opds", "/opds/"} {
		rec := tc.fetch(target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, MimeTypeAtom+"; charset=utf-8", rec.Header().Get(echo.HeaderContentType), target)

		body := rec.Body.String()
		assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`, target)
		assert.Contains(t, body, `href="/opds/newdate/0"`, target)
		assert.Contains(t, body, `href="/opds/authorsindex"`, target)
		// The descriptor lives at the site root even behind the prefix.
		assert.Contains(t, body, `href="/opds-opensearch.xml"`, target)
		assert.NotContains(t, body, `href="/opds/opds-opensearch.xml"`, target)
	}
}

func TestRootFeedSectionGating(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, func(cfg *config.Config) {
		cfg.OPDSStructure = "newdate:0"
	})

	rec := tc.fetch("/opds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/newdate/")

	rec = tc.fetch("/opds/newdate/0", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len(), "error responses carry no body")
}

func TestNewByDateEndToEnd(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/newdate/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Час Быка")
	assert.Contains(t, body, "Ефремов Иван")
	assert.Contains(t, body, `href="/opds/bull/`)
	assert.Contains(t, body, MimeTypeFB2)
	assert.Contains(t, body, MimeTypeEPUB)
	assert.Contains(t, body, MimeTypeMOBI)
}

func TestSloppyPathsNormalized(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	rec := tc.fetch("/opds//newdate///0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPageNumberRejected(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	rec := tc.fetch("/opds/newdate/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestOverlongURLRejected(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	rec := tc.fetch("/opds/search?searchTerm="+strings.Repeat("a", 3000), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestSearchEndToEnd(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	// Unknown query keys from feed readers are dropped, not rejected.
	rec := tc.fetch("/opds/search?searchTerm="+url.QueryEscape("Быка")+"&utm_source=reader", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Час Быка")

	// Clients that cannot fill templates send the placeholder verbatim.
	rec = tc.fetch("/opds/search?searchTerm=%7BsearchTerms%7D", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<entry")
}

func TestOpenSearchDescriptor(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	rec := tc.fetch("/opds-opensearch.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeAtom+"; charset=utf-8", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.Contains(t, body, "<OpenSearchDescription")
	assert.Contains(t, body, "/opds/search?searchTerm={searchTerms}")
	assert.Contains(t, body, "searchType={searchType}")
}

func TestDownloadFB2Zip(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	book := tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)
	name := DownloadName(book)

	rec := tc.fetch("/opds/"+book.ID+"/"+name+".fb2.zip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeFB2, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), name+".fb2.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, name+".fb2", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	payload, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Contains(t, string(payload), "<FictionBook")

	assert.Equal(t, int64(1), tc.stats.Snapshot().BooksSent)
}

func TestDownloadConvertsEPUB(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	book := tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", coverJPEG(t))

	rec := tc.fetch("/opds/"+book.ID+"/"+DownloadName(book)+".epub", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeEPUB, rec.Header().Get(echo.HeaderContentType))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "EPUB/package.opf")
}

func TestDownloadConvertsMOBI(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	book := tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/"+book.ID+"/"+DownloadName(book)+".mobi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeMOBI, rec.Header().Get(echo.HeaderContentType))

	out := rec.Body.Bytes()
	require.Greater(t, len(out), 68)
	assert.Equal(t, "BOOKMOBI", string(out[60:68]))
}

func TestDownloadStoredEPUB(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	raw := []byte("stored epub bytes")
	book := tc.addEPUB(t, "dune", "Dune", raw)

	rec := tc.fetch("/opds/dune/"+DownloadName(book)+".epub", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, raw, rec.Body.Bytes())
}

func TestDownloadRejectsUnknown(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addEPUB(t, "dune", "Dune", []byte("raw"))

	for _, target := range []string{
		"/opds/ghost/Ghost.fb2.zip",
		"/opds/dune/Dune.fb2.zip",
		"/opds/dune/Dune.mobi",
		"/opds/dune/Dune.txt",
	} {
		rec := tc.fetch(target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestCoverAndThumbnail(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", coverJPEG(t))
	tc.addFB2(t, "plain", "Без обложки", "Автор", "Безвестный", nil)

	rec := tc.fetch("/cover/bull.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeJPEG, rec.Header().Get(echo.HeaderContentType))
	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())

	rec = tc.fetch("/thumbnail/bull.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, int64(2), tc.stats.Snapshot().ImagesSent)

	rec = tc.fetch("/cover/plain.jpeg", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFaviconRoute(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	rec := tc.fetch("/favicon.ico", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeICO, rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = tc.fetch("/robots.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrowserCatalogHTML(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/web/newdate/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "Час Быка")
	assert.Contains(t, body, "1 book")
	assert.Contains(t, body, `action="/web/search"`)
	assert.Contains(t, body, `href="/web/bull/`)
	assert.NotContains(t, body, "<entry")
}

func TestAbsoluteLinks(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, func(cfg *config.Config) {
		cfg.UseAbsoluteUri = true
	})

	rec := tc.fetch("http://books.example.com:8085/opds", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `href="http://books.example.com:8085/opds/newdate/0"`)
	assert.Contains(t, body, `href="http://books.example.com:8085/opds-opensearch.xml"`)
}

func TestFB2NativeClientLinks(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/newdate/0", map[string]string{
		"User-Agent": "FBReader/3.1 (Android 11)",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MimeTypeFB2)
	assert.NotContains(t, body, MimeTypeEPUB)
	assert.NotContains(t, body, MimeTypeMOBI)

	rec = tc.fetch("/opds/newdate/0", map[string]string{
		"User-Agent": "Mozilla/5.0 (X11; Linux x86_64)",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, MimeTypeEPUB)
	assert.Contains(t, body, MimeTypeMOBI)
}

func TestAuthorNavigationFlow(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/authorsindex", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ефремов Иван")

	escaped := url.PathEscape("Ефремов Иван")
	rec = tc.fetch("/opds/author-details/"+escaped, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/opds/author-alphabetic/")

	rec = tc.fetch("/opds/author-alphabetic/"+escaped, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Час Быка")
}

func TestAuthorDetailsDisabled(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, func(cfg *config.Config) {
		cfg.OPDSStructure = "author-details:0"
	})
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/author-details/"+url.PathEscape("Ефремов Иван"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenreBrowsing(t *testing.T) {
	t.Parallel()

	tc := newTestCatalog(t, nil)
	tc.addFB2(t, "bull", "Час Быка", "Ефремов", "Иван", nil)

	rec := tc.fetch("/opds/genres", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/opds/genres/sf"`)

	rec = tc.fetch("/opds/genre/sf?pageNumber=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Час Быка")
}
