package opds

import "strings"

// OpenSearchPath is served at the site root regardless of the catalog
// prefix, so readers that resolve the descriptor against the host still
// find it.
const OpenSearchPath = "/opds-opensearch.xml"

// NormalizePath brings a request path into canonical catalog form: decode
// the %7B/%7D escapes left by clients that request OpenSearch templates
// literally, collapse duplicate slashes, and ensure a leading slash.
// Applying it twice is a no-op.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "%7B", "{")
	p = strings.ReplaceAll(p, "%7b", "{")
	p = strings.ReplaceAll(p, "%7D", "}")
	p = strings.ReplaceAll(p, "%7d", "}")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// BaseURL returns the href prefix for feed links: "/opds" style when
// relative, "http://host/opds" when absolute URIs are configured. The
// original server speaks plain HTTP, so absolute links always use the http
// scheme.
func BaseURL(host, prefix string, absolute bool) string {
	base := ""
	if prefix != "" {
		base = "/" + strings.Trim(prefix, "/")
	}
	if absolute && host != "" {
		base = "http://" + host + base
	}
	return base
}

// RewriteLinks prefixes every relative link in the feed with base. Feeds
// are built with root-relative hrefs and rewritten once per response, after
// the route that served them is known.
func RewriteLinks(feed *Feed, base string) {
	for i := range feed.Links {
		feed.Links[i].Href = rewriteHref(feed.Links[i].Href, base)
	}
	for i := range feed.Entries {
		links := feed.Entries[i].Links
		for j := range links {
			links[j].Href = rewriteHref(links[j].Href, base)
		}
	}
}

// RewriteOpenSearch prefixes the descriptor's search templates with base.
func RewriteOpenSearch(desc *OpenSearchDescription, base string) {
	for i := range desc.URLs {
		desc.URLs[i].Template = rewriteHref(desc.URLs[i].Template, base)
	}
}

func rewriteHref(href, base string) string {
	if base == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, OpenSearchPath) {
		// The descriptor stays at the root: strip the catalog prefix from
		// base but keep the host when links are absolute.
		if i := strings.Index(base, "://"); i >= 0 {
			hostAndPath := base[i+3:]
			if j := strings.Index(hostAndPath, "/"); j >= 0 {
				return base[:i+3+j] + href
			}
			return base + href
		}
		return href
	}
	return base + href
}
