package opds

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/localize"
	"github.com/tinyopds/tinyopds/pkg/version"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>
    body { font-family: sans-serif; margin: 8px; max-width: 720px; }
    a { color: #000; }
    .header { padding: 8px 0; border-bottom: 2px solid #000; }
    .header .version { color: #666; font-size: 0.8em; }
    .header .count { color: #666; font-size: 0.9em; }
    .feed-title { font-size: 1.2em; font-weight: bold; margin: 12px 0; }
    a.item { display: block; padding: 12px 0; border-bottom: 1px solid #ccc; text-decoration: none; }
    .item-title { font-size: 1.1em; font-weight: bold; text-decoration: underline; }
    .item-meta { font-size: 0.9em; color: #666; }
    .book { padding: 12px 0; border-bottom: 1px solid #ccc; overflow: hidden; }
    .book img { float: left; margin-right: 12px; width: 48px; }
    .book-title { font-size: 1.1em; font-weight: bold; }
    .book-meta { font-size: 0.9em; color: #666; }
    .book-links { margin-top: 6px; }
    .btn { display: inline-block; padding: 8px 12px; margin: 2px; border: 1px solid #000; text-decoration: none; }
    .nav { margin: 16px 0; }
    form { margin: 12px 0; }
    input[type=text] { font-size: 16px; padding: 8px; border: 1px solid #000; width: 60%%; }
    input[type=submit] { font-size: 16px; padding: 8px 12px; border: 1px solid #000; background: #eee; }
  </style>
</head>
<body>
%s
</body>
</html>`

// respondHTML renders an already rewritten feed as the browser catalog
// page. The feed model is the same one Atom clients get; only the skin
// differs.
func (h *handler) respondHTML(c echo.Context, feed *Feed) error {
	total, err := h.store.CountBooks(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	base := h.baseURL(c)
	loc := h.svc.loc

	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<div class="header"><b>%s</b> <span class="version">%s</span><div class="count">%s</div></div>`,
		html.EscapeString(h.cfg.ServerName), html.EscapeString(version.Version), html.EscapeString(loc.BookCount(total))))
	b.WriteString("\n")
	b.WriteString(searchForm(base+"/search", loc.Text("label.search")))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf(`<div class="feed-title">%s</div>`, html.EscapeString(feed.Title)))
	b.WriteString("\n")
	for i := range feed.Entries {
		b.WriteString(entryHTML(&feed.Entries[i], loc))
		b.WriteString("\n")
	}
	b.WriteString(pageNav(feed, base, loc))

	title := h.cfg.ServerName
	if feed.Title != "" && feed.Title != h.cfg.ServerName {
		title += " - " + feed.Title
	}
	return c.HTML(http.StatusOK, fmt.Sprintf(pageTemplate, html.EscapeString(title), b.String()))
}

func searchForm(actionURL, label string) string {
	return fmt.Sprintf(`<form action="%s" method="get">
  <input type="text" name="searchTerm" value="">
  <input type="submit" value="%s">
</form>`, html.EscapeString(actionURL), html.EscapeString(label))
}

// entryHTML renders one feed entry: a tappable row for navigation entries,
// a detail block with download buttons for books.
func entryHTML(entry *Entry, loc *localize.Localizer) string {
	var acq []Link
	nav := ""
	thumb := ""
	for _, l := range entry.Links {
		switch l.Rel {
		case RelAcquisition:
			acq = append(acq, l)
		case RelThumbnail:
			thumb = l.Href
		case RelSubsection:
			if nav == "" {
				nav = l.Href
			}
		}
	}

	if len(acq) == 0 {
		meta := ""
		if entry.Content != nil {
			meta = entry.Content.Value
		}
		return fmt.Sprintf(`<a href="%s" class="item">
  <div class="item-title">%s</div>
  <div class="item-meta">%s</div>
</a>`, html.EscapeString(nav), html.EscapeString(entry.Title), html.EscapeString(meta))
	}

	var b strings.Builder
	b.WriteString(`<div class="book">`)
	if thumb != "" {
		b.WriteString(fmt.Sprintf(`<img src="%s" alt="">`, html.EscapeString(thumb)))
	}
	b.WriteString(fmt.Sprintf(`<div class="book-title">%s</div>`, html.EscapeString(entry.Title)))
	if len(entry.Authors) > 0 {
		names := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			names = append(names, a.Name)
		}
		b.WriteString(fmt.Sprintf(`<div class="book-meta">%s</div>`, html.EscapeString(strings.Join(names, ", "))))
	}
	if entry.Summary != "" {
		b.WriteString(fmt.Sprintf(`<div class="book-meta">%s</div>`, html.EscapeString(entry.Summary)))
	}
	var details []string
	if entry.Format != "" {
		details = append(details, loc.Text("label.format")+": "+strings.ToUpper(entry.Format))
	}
	if entry.FileSize > 0 {
		details = append(details, loc.Text("label.size")+": "+humanSize(entry.FileSize))
	}
	if entry.Issued != "" {
		details = append(details, loc.Text("label.year")+": "+entry.Issued)
	}
	if len(details) > 0 {
		b.WriteString(fmt.Sprintf(`<div class="book-meta">%s</div>`, html.EscapeString(strings.Join(details, ", "))))
	}
	b.WriteString(`<div class="book-links">`)
	for _, l := range acq {
		b.WriteString(fmt.Sprintf(`<a href="%s" class="btn">%s</a>`, html.EscapeString(l.Href), formatLabel(l.Type, loc)))
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func formatLabel(mimeType string, loc *localize.Localizer) string {
	switch mimeType {
	case MimeTypeFB2:
		return "FB2"
	case MimeTypeEPUB:
		return "EPUB"
	case MimeTypeMOBI:
		return "MOBI"
	}
	return html.EscapeString(loc.Text("label.download"))
}

func pageNav(feed *Feed, base string, loc *localize.Localizer) string {
	parts := []string{fmt.Sprintf(`<a href="%s" class="btn">%s</a>`,
		html.EscapeString(base+"/"), html.EscapeString(loc.Text("catalog.root")))}
	for _, l := range feed.Links {
		switch l.Rel {
		case RelPrevious:
			parts = append(parts, fmt.Sprintf(`<a href="%s" class="btn">%s</a>`,
				html.EscapeString(l.Href), html.EscapeString(loc.Text("label.prev"))))
		case RelNext:
			parts = append(parts, fmt.Sprintf(`<a href="%s" class="btn">%s</a>`,
				html.EscapeString(l.Href), html.EscapeString(loc.Text("label.next"))))
		}
	}
	return fmt.Sprintf(`<div class="nav">%s</div>`, strings.Join(parts, " "))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	case n > 0:
		return strconv.FormatInt(n, 10) + " B"
	}
	return ""
}
