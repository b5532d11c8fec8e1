package opds

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/localize"
	"github.com/tinyopds/tinyopds/pkg/translit"
)

// Service builds the catalog feeds. Every builder returns a feed with
// root-relative hrefs; the handler rewrites them for the route that served
// the request.
type Service struct {
	cfg       *config.Config
	store     library.Store
	loc       *localize.Localizer
	structure Structure
}

// NewService creates a new OPDS service on top of a book store.
func NewService(cfg *config.Config, store library.Store) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		loc:       localize.New(cfg.Language),
		structure: ParseStructure(cfg.OPDSStructure),
	}
}

// Structure returns the parsed menu visibility switches.
func (svc *Service) Structure() Structure {
	return svc.structure
}

// BuildRootFeed builds the root navigation menu. Hidden sections are left
// out entirely.
func (svc *Service) BuildRootFeed() *Feed {
	feed := NewFeed("tag:root", svc.cfg.ServerName)
	feed.AddLink(RelSelf, "/", MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelSearch, "/search?searchTerm={searchTerms}", MimeTypeAtom)
	feed.AddLink(RelSearch, OpenSearchPath, MimeTypeOpenSearch)

	add := func(section, titleKey, descKey, href, mime string) {
		if !svc.structure.Enabled(section) {
			return
		}
		entry := NewEntry("tag:root:"+section, svc.loc.Text(titleKey))
		entry.Content = &Content{Type: "text", Value: svc.loc.Text(descKey)}
		entry.AddLink(RelSubsection, href, mime)
		feed.AddEntry(entry)
	}
	add(SectionNewDate, "catalog.newdate", "catalog.newdate.desc", "/newdate/0", MimeTypeAcquisition)
	add(SectionNewTitle, "catalog.newtitle", "catalog.newtitle.desc", "/newtitle/0", MimeTypeAcquisition)
	add(SectionAuthorsIndex, "catalog.authors", "catalog.authors.desc", "/authorsindex", MimeTypeNavigation)
	add(SectionSequencesIndex, "catalog.series", "catalog.series.desc", "/sequencesindex", MimeTypeNavigation)
	add(SectionGenres, "catalog.genres", "catalog.genres.desc", "/genres", MimeTypeNavigation)
	return feed
}

// BuildNewByDateFeed builds the newest-first listing of books added within
// the configured window.
func (svc *Service) BuildNewByDateFeed(ctx context.Context, page, pageSize int) (*Feed, error) {
	return svc.newBooksFeed(ctx, "newdate", "catalog.newdate", false, page, pageSize)
}

// BuildNewByTitleFeed builds the title-ordered listing of books added
// within the configured window.
func (svc *Service) BuildNewByTitleFeed(ctx context.Context, page, pageSize int) (*Feed, error) {
	return svc.newBooksFeed(ctx, "newtitle", "catalog.newtitle", true, page, pageSize)
}

func (svc *Service) newBooksFeed(ctx context.Context, path, titleKey string, byTitle bool, page, pageSize int) (*Feed, error) {
	opts := library.NewBooksOptions{
		ByTitle: byTitle,
		Limit:   pageSize,
		Offset:  page * pageSize,
	}
	if days := svc.cfg.NewBooksPeriodDays; days > 0 {
		opts.Since = time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	}
	books, total, err := svc.store.NewBooks(ctx, opts)
	if err != nil {
		return nil, err
	}

	hrefFor := func(p int) string { return "/" + path + "/" + strconv.Itoa(p) }
	feed := NewFeed("tag:"+path+":"+strconv.Itoa(page), svc.loc.Text(titleKey))
	feed.AddLink(RelSelf, hrefFor(page), MimeTypeAcquisition)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, "/", MimeTypeNavigation)
	addPageLinks(feed, hrefFor, page, pageSize, total)
	for _, b := range books {
		feed.AddEntry(svc.bookEntry(b))
	}
	return feed, nil
}

// BuildAuthorsIndexFeed builds the alphabetic author index for one prefix.
// When more authors share the prefix than fit a page, they are grouped into
// buckets by the next letter; otherwise the authors are listed directly.
func (svc *Service) BuildAuthorsIndexFeed(ctx context.Context, prefix string, threshold int) (*Feed, error) {
	authors, err := svc.store.AuthorsByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	feed := NewFeed("tag:authorsindex:"+prefix, svc.indexTitle("catalog.authors", "authors.in.bucket", prefix))
	feed.AddLink(RelSelf, indexHref("/authorsindex", prefix), MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, indexUpHref("/authorsindex", prefix), MimeTypeNavigation)

	if len(authors) > threshold {
		buckets, exact := bucketNames(authors, prefix)
		for _, nc := range exact {
			feed.AddEntry(svc.authorEntry(nc))
		}
		for _, b := range buckets {
			entry := NewEntry("tag:authorsindex:"+b.key, b.label)
			entry.Content = &Content{Type: "text", Value: svc.loc.AuthorCount(b.count)}
			entry.AddLink(RelSubsection, "/authorsindex/"+url.PathEscape(b.key), MimeTypeNavigation)
			feed.AddEntry(entry)
		}
		return feed, nil
	}

	for _, nc := range authors {
		feed.AddEntry(svc.authorEntry(nc))
	}
	return feed, nil
}

// BuildAuthorDetailsFeed builds the per-author menu of listing flavours.
func (svc *Service) BuildAuthorDetailsFeed(author string) *Feed {
	escaped := url.PathEscape(author)
	feed := NewFeed("tag:author:"+author, fmt.Sprintf("%s %s", svc.loc.Text("author.details"), author))
	feed.AddLink(RelSelf, "/author-details/"+escaped, MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, "/authorsindex", MimeTypeNavigation)

	add := func(section, titleKey, path, mime string) {
		if !svc.structure.Enabled(section) {
			return
		}
		entry := NewEntry("tag:author:"+section+":"+author, svc.loc.Text(titleKey))
		entry.AddLink(RelSubsection, "/"+path+"/"+escaped, mime)
		feed.AddEntry(entry)
	}
	add(SectionAuthorSeries, "author.series", "author-series", MimeTypeNavigation)
	add(SectionAuthorNoSeries, "author.noseries", "author-no-series", MimeTypeAcquisition)
	add(SectionAuthorAlphabetic, "author.alphabetic", "author-alphabetic", MimeTypeAcquisition)
	add(SectionAuthorByDate, "author.bydate", "author-by-date", MimeTypeAcquisition)
	return feed
}

// BuildAuthorSeriesFeed lists the series an author contributed to.
func (svc *Service) BuildAuthorSeriesFeed(ctx context.Context, author string) (*Feed, error) {
	counts, err := svc.store.AuthorSeries(ctx, author)
	if err != nil {
		return nil, err
	}

	escaped := url.PathEscape(author)
	feed := NewFeed("tag:author:series:"+author, fmt.Sprintf("%s - %s", author, svc.loc.Text("author.series")))
	feed.AddLink(RelSelf, "/author-series/"+escaped, MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, svc.authorUpHref(escaped), MimeTypeNavigation)
	for _, nc := range counts {
		feed.AddEntry(svc.seriesEntry(nc))
	}
	return feed, nil
}

// BuildAuthorNoSeriesFeed lists an author's books outside any series.
func (svc *Service) BuildAuthorNoSeriesFeed(ctx context.Context, author string, page, pageSize int) (*Feed, error) {
	return svc.authorBooksFeed(ctx, author, "author-no-series", "author.noseries",
		library.AuthorBooksOptions{NoSeries: true}, page, pageSize)
}

// BuildAuthorAlphabeticFeed lists all of an author's books by title.
func (svc *Service) BuildAuthorAlphabeticFeed(ctx context.Context, author string, page, pageSize int) (*Feed, error) {
	return svc.authorBooksFeed(ctx, author, "author-alphabetic", "author.alphabetic",
		library.AuthorBooksOptions{}, page, pageSize)
}

// BuildAuthorByDateFeed lists all of an author's books newest first.
func (svc *Service) BuildAuthorByDateFeed(ctx context.Context, author string, page, pageSize int) (*Feed, error) {
	return svc.authorBooksFeed(ctx, author, "author-by-date", "author.bydate",
		library.AuthorBooksOptions{ByDate: true}, page, pageSize)
}

func (svc *Service) authorBooksFeed(ctx context.Context, author, path, titleKey string, opts library.AuthorBooksOptions, page, pageSize int) (*Feed, error) {
	opts.Author = author
	opts.Limit = pageSize
	opts.Offset = page * pageSize
	books, total, err := svc.store.AuthorBooks(ctx, opts)
	if err != nil {
		return nil, err
	}

	escaped := url.PathEscape(author)
	hrefFor := func(p int) string { return "/" + path + "/" + escaped + "?pageNumber=" + strconv.Itoa(p) }
	feed := NewFeed("tag:"+path+":"+author, fmt.Sprintf("%s - %s", author, svc.loc.Text(titleKey)))
	feed.AddLink(RelSelf, hrefFor(page), MimeTypeAcquisition)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, svc.authorUpHref(escaped), MimeTypeNavigation)
	addPageLinks(feed, hrefFor, page, pageSize, total)
	for _, b := range books {
		feed.AddEntry(svc.bookEntry(b))
	}
	return feed, nil
}

// BuildSequencesIndexFeed builds the series index for one prefix, bucketed
// by the next letter when the listing is too long.
func (svc *Service) BuildSequencesIndexFeed(ctx context.Context, prefix string, threshold int) (*Feed, error) {
	series, err := svc.store.SeriesByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	feed := NewFeed("tag:sequencesindex:"+prefix, svc.indexTitle("catalog.series", "series.in.bucket", prefix))
	feed.AddLink(RelSelf, indexHref("/sequencesindex", prefix), MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, indexUpHref("/sequencesindex", prefix), MimeTypeNavigation)

	if len(series) > threshold {
		buckets, exact := bucketNames(series, prefix)
		for _, nc := range exact {
			feed.AddEntry(svc.seriesEntry(nc))
		}
		for _, b := range buckets {
			entry := NewEntry("tag:sequencesindex:"+b.key, b.label)
			entry.Content = &Content{Type: "text", Value: svc.loc.SeriesCount(b.count)}
			entry.AddLink(RelSubsection, "/sequencesindex/"+url.PathEscape(b.key), MimeTypeNavigation)
			feed.AddEntry(entry)
		}
		return feed, nil
	}

	for _, nc := range series {
		feed.AddEntry(svc.seriesEntry(nc))
	}
	return feed, nil
}

// BuildSequenceFeed lists the books of one series in series order.
func (svc *Service) BuildSequenceFeed(ctx context.Context, name string, page, pageSize int) (*Feed, error) {
	books, total, err := svc.store.SeriesBooks(ctx, name, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}

	escaped := url.PathEscape(name)
	hrefFor := func(p int) string { return "/sequence/" + escaped + "?pageNumber=" + strconv.Itoa(p) }
	feed := NewFeed("tag:sequence:"+name, fmt.Sprintf("%s %s", svc.loc.Text("books.in.series"), name))
	feed.AddLink(RelSelf, hrefFor(page), MimeTypeAcquisition)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, "/sequencesindex", MimeTypeNavigation)
	addPageLinks(feed, hrefFor, page, pageSize, total)
	for _, b := range books {
		feed.AddEntry(svc.bookEntry(b))
	}
	return feed, nil
}

// BuildGenresFeed builds the genre tree: the top-level sections when
// section is empty, otherwise the genres of that section. Sections and
// genres without any books are hidden.
func (svc *Service) BuildGenresFeed(ctx context.Context, section string) (*Feed, error) {
	counts, err := svc.store.GenreCounts(ctx)
	if err != nil {
		return nil, err
	}

	if section == "" {
		feed := NewFeed("tag:genres", svc.loc.Text("catalog.genres"))
		feed.AddLink(RelSelf, "/genres", MimeTypeNavigation)
		feed.AddLink(RelStart, "/", MimeTypeNavigation)
		feed.AddLink(RelUp, "/", MimeTypeNavigation)
		for _, sec := range library.GenreTree() {
			total := 0
			for _, g := range sec.Genres {
				total += counts[g.Code]
			}
			if total == 0 {
				continue
			}
			entry := NewEntry("tag:genres:"+sec.ID, svc.sectionName(sec))
			entry.Content = &Content{Type: "text", Value: svc.loc.BookCount(total)}
			entry.AddLink(RelSubsection, "/genres/"+sec.ID, MimeTypeNavigation)
			feed.AddEntry(entry)
		}
		return feed, nil
	}

	sec := library.GenreSectionByID(section)
	if sec == nil {
		return nil, errcodes.NotFound("Genre")
	}
	feed := NewFeed("tag:genres:"+sec.ID, svc.sectionName(*sec))
	feed.AddLink(RelSelf, "/genres/"+sec.ID, MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, "/genres", MimeTypeNavigation)
	for _, g := range sec.Genres {
		n := counts[g.Code]
		if n == 0 {
			continue
		}
		entry := NewEntry("tag:genre:"+g.Code, library.GenreName(g.Code, svc.loc.Lang()))
		entry.Content = &Content{Type: "text", Value: svc.loc.BookCount(n)}
		entry.AddLink(RelSubsection, "/genre/"+g.Code, MimeTypeAcquisition)
		feed.AddEntry(entry)
	}
	return feed, nil
}

// BuildGenreFeed lists the books carrying one genre code.
func (svc *Service) BuildGenreFeed(ctx context.Context, code string, page, pageSize int) (*Feed, error) {
	books, total, err := svc.store.GenreBooks(ctx, code, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}

	hrefFor := func(p int) string { return "/genre/" + url.PathEscape(code) + "?pageNumber=" + strconv.Itoa(p) }
	title := fmt.Sprintf("%s %s", svc.loc.Text("books.in.genre"), library.GenreName(code, svc.loc.Lang()))
	feed := NewFeed("tag:genre:"+code, title)
	feed.AddLink(RelSelf, hrefFor(page), MimeTypeAcquisition)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	feed.AddLink(RelUp, "/genres", MimeTypeNavigation)
	addPageLinks(feed, hrefFor, page, pageSize, total)
	for _, b := range books {
		feed.AddEntry(svc.bookEntry(b))
	}
	return feed, nil
}

// BuildSearchFeed answers a search request. Without an explicit type it
// offers a menu of the categories that matched the term, or goes straight
// to the single matching category.
func (svc *Service) BuildSearchFeed(ctx context.Context, term, searchType string, page, pageSize int) (*Feed, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		feed := NewFeed("tag:search", svc.loc.Text("search.title"))
		feed.AddLink(RelSelf, "/search", MimeTypeNavigation)
		feed.AddLink(RelStart, "/", MimeTypeNavigation)
		return feed, nil
	}

	switch searchType {
	case "author":
		return svc.searchAuthorsFeed(ctx, term)
	case "series":
		return svc.searchSeriesFeed(ctx, term)
	case "book":
		return svc.searchBooksFeed(ctx, term, page, pageSize)
	}

	authors, err := svc.store.SearchAuthors(ctx, term)
	if err != nil {
		return nil, err
	}
	series, err := svc.store.SearchSeries(ctx, term)
	if err != nil {
		return nil, err
	}
	_, bookTotal, err := svc.store.SearchBooks(ctx, term, 1, 0)
	if err != nil {
		return nil, err
	}

	matched := 0
	for _, n := range []int{len(authors), len(series), bookTotal} {
		if n > 0 {
			matched++
		}
	}
	if matched == 1 {
		switch {
		case len(authors) > 0:
			return svc.searchAuthorsFeed(ctx, term)
		case len(series) > 0:
			return svc.searchSeriesFeed(ctx, term)
		default:
			return svc.searchBooksFeed(ctx, term, page, pageSize)
		}
	}

	escaped := url.QueryEscape(term)
	feed := NewFeed("tag:search:"+term, svc.loc.Text("search.title"))
	feed.AddLink(RelSelf, "/search?searchTerm="+escaped, MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	if len(authors) > 0 {
		entry := NewEntry("tag:search:author:"+term, svc.loc.Text("search.authors"))
		entry.Content = &Content{Type: "text", Value: svc.loc.AuthorCount(len(authors))}
		entry.AddLink(RelSubsection, "/search?searchType=author&searchTerm="+escaped, MimeTypeNavigation)
		feed.AddEntry(entry)
	}
	if bookTotal > 0 {
		entry := NewEntry("tag:search:book:"+term, svc.loc.Text("search.books"))
		entry.Content = &Content{Type: "text", Value: svc.loc.BookCount(bookTotal)}
		entry.AddLink(RelSubsection, "/search?searchType=book&searchTerm="+escaped, MimeTypeAcquisition)
		feed.AddEntry(entry)
	}
	if len(series) > 0 {
		entry := NewEntry("tag:search:series:"+term, svc.loc.Text("catalog.series"))
		entry.Content = &Content{Type: "text", Value: svc.loc.SeriesCount(len(series))}
		entry.AddLink(RelSubsection, "/search?searchType=series&searchTerm="+escaped, MimeTypeNavigation)
		feed.AddEntry(entry)
	}
	return feed, nil
}

func (svc *Service) searchAuthorsFeed(ctx context.Context, term string) (*Feed, error) {
	authors, err := svc.store.SearchAuthors(ctx, term)
	if err != nil {
		return nil, err
	}

	feed := NewFeed("tag:search:author:"+term, svc.loc.Text("search.authors"))
	feed.AddLink(RelSelf, "/search?searchType=author&searchTerm="+url.QueryEscape(term), MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	for _, nc := range authors {
		feed.AddEntry(svc.authorEntry(nc))
	}
	return feed, nil
}

func (svc *Service) searchSeriesFeed(ctx context.Context, term string) (*Feed, error) {
	series, err := svc.store.SearchSeries(ctx, term)
	if err != nil {
		return nil, err
	}

	feed := NewFeed("tag:search:series:"+term, svc.loc.Text("catalog.series"))
	feed.AddLink(RelSelf, "/search?searchType=series&searchTerm="+url.QueryEscape(term), MimeTypeNavigation)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	for _, nc := range series {
		feed.AddEntry(svc.seriesEntry(nc))
	}
	return feed, nil
}

func (svc *Service) searchBooksFeed(ctx context.Context, term string, page, pageSize int) (*Feed, error) {
	books, total, err := svc.store.SearchBooks(ctx, term, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}

	escaped := url.QueryEscape(term)
	hrefFor := func(p int) string {
		return "/search?searchType=book&searchTerm=" + escaped + "&pageNumber=" + strconv.Itoa(p)
	}
	feed := NewFeed("tag:search:book:"+term, svc.loc.Text("search.books"))
	feed.AddLink(RelSelf, hrefFor(page), MimeTypeAcquisition)
	feed.AddLink(RelStart, "/", MimeTypeNavigation)
	addPageLinks(feed, hrefFor, page, pageSize, total)
	for _, b := range books {
		feed.AddEntry(svc.bookEntry(b))
	}
	return feed, nil
}

// OpenSearch builds the search descriptor with the plain and the typed
// search templates.
func (svc *Service) OpenSearch() *OpenSearchDescription {
	return NewOpenSearchDescription(
		svc.cfg.ServerName,
		svc.loc.Text("search.placeholder"),
		"/search?searchTerm={searchTerms}",
		"/search?searchType={searchType}&searchTerm={searchTerms}",
	)
}

// bookEntry converts a catalog book into an acquisition entry. FB2 books
// advertise the source archive plus the EPUB and MOBI conversions; EPUB
// books are served as stored.
func (svc *Service) bookEntry(book *library.Book) Entry {
	entry := NewEntry("tag:book:"+book.ID, book.Title)
	if !book.UpdatedAt.IsZero() {
		entry.Updated = book.UpdatedAt.UTC()
	}
	for _, name := range book.AuthorNames() {
		entry.Authors = append(entry.Authors, Author{Name: name})
	}
	entry.Language = book.Language
	if book.HasDate() {
		entry.Issued = strconv.Itoa(book.BookDate.Year())
	}
	entry.Format = book.BookType
	entry.FileSize = book.FileSize
	if book.Sequence != nil {
		if book.SequenceNo != nil {
			entry.Summary = fmt.Sprintf("%s #%d", *book.Sequence, *book.SequenceNo)
		} else {
			entry.Summary = *book.Sequence
		}
	}
	if book.Annotation != nil && *book.Annotation != "" {
		entry.Content = &Content{Type: "text", Value: *book.Annotation}
	}

	entry.AddImageLink("/cover/"+book.ID+".jpeg", MimeTypeJPEG)
	entry.AddThumbnailLink("/thumbnail/"+book.ID+".jpeg", MimeTypeJPEG)

	name := url.PathEscape(DownloadName(book))
	if book.BookType == library.BookTypeFB2 {
		entry.AddAcquisitionLink("/"+book.ID+"/"+name+".fb2.zip", MimeTypeFB2)
		entry.AddAcquisitionLink("/"+book.ID+"/"+name+".epub", MimeTypeEPUB)
		entry.AddAcquisitionLink("/"+book.ID+"/"+name+".mobi", MimeTypeMOBI)
	} else {
		entry.AddAcquisitionLink("/"+book.ID+"/"+name+".epub", MimeTypeEPUB)
	}
	return entry
}

// authorEntry converts an author listing row into a navigation entry. When
// the author-details menu is hidden the link goes straight to the
// alphabetic listing.
func (svc *Service) authorEntry(nc library.NameCount) Entry {
	entry := NewEntry("tag:author:"+nc.Name, nc.Name)
	entry.Content = &Content{Type: "text", Value: svc.loc.BookCount(nc.Count)}
	path := "/author-alphabetic/"
	if svc.structure.Enabled(SectionAuthorDetails) {
		path = "/author-details/"
	}
	entry.AddLink(RelSubsection, path+url.PathEscape(nc.Name), MimeTypeNavigation)
	return entry
}

func (svc *Service) seriesEntry(nc library.NameCount) Entry {
	entry := NewEntry("tag:sequence:"+nc.Name, nc.Name)
	entry.Content = &Content{Type: "text", Value: svc.loc.BookCount(nc.Count)}
	entry.AddLink(RelSubsection, "/sequence/"+url.PathEscape(nc.Name), MimeTypeAcquisition)
	return entry
}

func (svc *Service) authorUpHref(escapedAuthor string) string {
	if svc.structure.Enabled(SectionAuthorDetails) {
		return "/author-details/" + escapedAuthor
	}
	return "/authorsindex"
}

func (svc *Service) sectionName(sec library.GenreSection) string {
	if svc.loc.Lang() == "ru" && sec.NameRu != "" {
		return sec.NameRu
	}
	return sec.NameEn
}

func (svc *Service) indexTitle(rootKey, bucketKey, prefix string) string {
	if prefix == "" {
		return svc.loc.Text(rootKey)
	}
	return fmt.Sprintf("%s '%s'", svc.loc.Text(bucketKey), strings.ToUpper(prefix))
}

func indexHref(base, prefix string) string {
	if prefix == "" {
		return base
	}
	return base + "/" + url.PathEscape(prefix)
}

// indexUpHref points a bucket page at the next shorter prefix.
func indexUpHref(base, prefix string) string {
	runes := []rune(prefix)
	if len(runes) <= 1 {
		return base
	}
	return base + "/" + url.PathEscape(string(runes[:len(runes)-1]))
}

// DownloadName returns the transliterated "{author}_{title}" base name used
// in download links, ZIP entries and Content-Disposition headers.
func DownloadName(book *library.Book) string {
	title := translit.FileName(book.Title)
	author := ""
	if len(book.Authors) > 0 {
		author = translit.FileName(book.Authors[0].Name)
	}
	switch {
	case author == "" && title == "":
		return book.ID
	case author == "":
		return title
	case title == "":
		return author
	}
	return author + "_" + title
}

type bucket struct {
	key   string // lowercased prefix for the next index level
	label string // uppercased display form
	count int
}

// bucketNames groups names sharing a prefix by their next character. Names
// no longer than the prefix cannot be split further and are returned
// separately so the caller lists them directly. Order follows the first
// appearance in items, which the store already collated.
func bucketNames(items []library.NameCount, prefix string) ([]bucket, []library.NameCount) {
	prefixLen := utf8.RuneCountInString(prefix)
	lower := strings.ToLower(prefix)

	var buckets []bucket
	var exact []library.NameCount
	index := map[string]int{}
	for _, nc := range items {
		runes := []rune(nc.Name)
		if len(runes) <= prefixLen {
			exact = append(exact, nc)
			continue
		}
		key := lower + string(unicode.ToLower(runes[prefixLen]))
		if i, ok := index[key]; ok {
			buckets[i].count++
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, bucket{key: key, label: strings.ToUpper(key), count: 1})
	}
	return buckets, exact
}

// addPageLinks appends rel=next and rel=previous links when the listing
// extends beyond the current page.
func addPageLinks(feed *Feed, hrefFor func(page int) string, page, pageSize, total int) {
	if page > 0 {
		feed.AddLink(RelPrevious, hrefFor(page-1), MimeTypeAcquisition)
	}
	if pageSize > 0 && (page+1)*pageSize < total {
		feed.AddLink(RelNext, hrefFor(page+1), MimeTypeAcquisition)
	}
}
