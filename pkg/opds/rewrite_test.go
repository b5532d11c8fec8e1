package opds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"newdate/0", "/newdate/0"},
		{"//newdate///0", "/newdate/0"},
		{"////", "/"},
		{"/search/%7BsearchTerms%7D", "/search/{searchTerms}"},
		{"/search/%7bsearchTerms%7d", "/search/{searchTerms}"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizePath(tc.in), tc.in)
		assert.Equal(t, tc.want, NormalizePath(NormalizePath(tc.in)), "not idempotent: %s", tc.in)
	}
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/opds", BaseURL("", "opds", false))
	assert.Equal(t, "/web", BaseURL("", "/web/", false))
	assert.Equal(t, "", BaseURL("", "", false))
	assert.Equal(t, "http://example.com:8085/opds", BaseURL("example.com:8085", "opds", true))
	assert.Equal(t, "http://example.com", BaseURL("example.com", "", true))
	// No host to build on, stay relative.
	assert.Equal(t, "/opds", BaseURL("", "opds", true))
}

func TestRewriteLinks(t *testing.T) {
	t.Parallel()

	build := func() *Feed {
		feed := NewFeed("tag:root", "root")
		feed.AddLink(RelSelf, "/", MimeTypeNavigation)
		feed.AddLink(RelSearch, OpenSearchPath, MimeTypeOpenSearch)
		feed.AddLink(RelSearch, "http://mirror.example/search", MimeTypeAtom)
		entry := NewEntry("tag:book:1", "book")
		entry.AddAcquisitionLink("/1/book.epub", MimeTypeEPUB)
		feed.AddEntry(entry)
		return feed
	}

	feed := build()
	RewriteLinks(feed, "/opds")
	assert.Equal(t, "/opds/", feed.Links[0].Href)
	assert.Equal(t, "/opds-opensearch.xml", feed.Links[1].Href, "descriptor stays at the root")
	assert.Equal(t, "http://mirror.example/search", feed.Links[2].Href, "absolute hrefs untouched")
	assert.Equal(t, "/opds/1/book.epub", feed.Entries[0].Links[0].Href)

	feed = build()
	RewriteLinks(feed, "http://example.com:8085/opds")
	assert.Equal(t, "http://example.com:8085/opds/", feed.Links[0].Href)
	assert.Equal(t, "http://example.com:8085/opds-opensearch.xml", feed.Links[1].Href)
	assert.Equal(t, "http://example.com:8085/opds/1/book.epub", feed.Entries[0].Links[0].Href)

	feed = build()
	RewriteLinks(feed, "")
	assert.Equal(t, "/", feed.Links[0].Href)
	assert.Equal(t, "/opds-opensearch.xml", feed.Links[1].Href)
}

func TestRewriteOpenSearch(t *testing.T) {
	t.Parallel()

	desc := NewOpenSearchDescription("catalog", "search",
		"/search?searchTerm={searchTerms}",
		"/search?searchType={searchType}&searchTerm={searchTerms}")
	require.Len(t, desc.URLs, 2)

	RewriteOpenSearch(desc, "http://example.com/opds")
	assert.Equal(t, "http://example.com/opds/search?searchTerm={searchTerms}", desc.URLs[0].Template)
	assert.Equal(t, "http://example.com/opds/search?searchType={searchType}&searchTerm={searchTerms}", desc.URLs[1].Template)
}
