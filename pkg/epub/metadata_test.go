package epub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPF_MainTitle(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="title-main">The Way of Kings</dc:title>
    <dc:title id="title-sub">Book One of the Stormlight Archive</dc:title>
    <meta refines="#title-main" property="title-type">main</meta>
    <meta refines="#title-sub" property="title-type">subtitle</meta>
  </metadata>
</package>`

	meta, err := ParseOPF("test.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "The Way of Kings", meta.Title)
}

func TestParseOPF_AuthorsAndGenres(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:creator opf:role="aut">Jane Author</dc:creator>
    <dc:creator opf:role="ill">Joe Illustrator</dc:creator>
    <dc:creator>Sam Untagged</dc:creator>
    <dc:subject>Science Fiction</dc:subject>
    <dc:subject>Adventure</dc:subject>
    <dc:language>en</dc:language>
    <dc:date>2008-05-12</dc:date>
  </metadata>
</package>`

	meta, err := ParseOPF("test.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, []string{"Jane Author", "Sam Untagged"}, meta.Authors)
	assert.Equal(t, []string{"Science Fiction", "Adventure"}, meta.Genres)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, 2008, meta.Year)
}

func TestParseOPF_CoverMetaContent(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Covered</dc:title>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
</package>`

	meta, err := ParseOPF("OEBPS/content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "OEBPS/images/cover.jpg", meta.CoverPath)
	assert.Equal(t, "image/jpeg", meta.CoverMime)
}

func TestParseOPF_CoverImageProperty(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Covered</dc:title>
  </metadata>
  <manifest>
    <item id="ci" href="cover.png" media-type="image/png" properties="cover-image"/>
  </manifest>
</package>`

	meta, err := ParseOPF("package.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "cover.png", meta.CoverPath)
	assert.Equal(t, "image/png", meta.CoverMime)
}

func TestParseOPF_Series(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Book Three</dc:title>
    <meta name="calibre:series" content="The Long Saga"/>
    <meta name="calibre:series_index" content="3.0"/>
  </metadata>
</package>`

	meta, err := ParseOPF("test.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "The Long Saga", meta.Series)
	require.NotNil(t, meta.SeriesNumber)
	assert.Equal(t, 3.0, *meta.SeriesNumber)
}

func TestDateYear(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int
	}{
		{"2008", 2008},
		{"2008-05-12", 2008},
		{"2008-05-12T00:00:00Z", 2008},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dateYear(tt.in), "input %q", tt.in)
	}
}
