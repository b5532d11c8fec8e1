package fb2

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
<description>
  <title-info>
    <genre>sf</genre>
    <genre>prose_classic</genre>
    <author>
      <first-name>Лев</first-name>
      <middle-name>Николаевич</middle-name>
      <last-name>Толстой</last-name>
    </author>
    <author>
      <nickname>Аноним</nickname>
    </author>
    <book-title>Война и мир</book-title>
    <annotation><p>Роман-эпопея.</p><p>Том первый.</p></annotation>
    <date value="1869-01-01">1869</date>
    <coverpage><image l:href="#cover"/></coverpage>
    <lang>ru</lang>
    <sequence name="Собрание сочинений" number="4"/>
  </title-info>
</description>
<body>
  <title><p>Война и мир</p></title>
  <section>
    <title><p>Том 1</p><p>Часть 1</p></title>
    <section id="ch1">
      <title><p>Глава 1</p></title>
      <p>Eh bien, mon prince. <strong>Генуа</strong> и <emphasis>Лукка</emphasis>.</p>
      <empty-line/>
      <p>Сноска<a l:href="#note1" type="note">[1]</a>.</p>
      <image l:href="#pic1.png"/>
    </section>
    <section>
      <p>Глава без названия.</p>
    </section>
  </section>
</body>
<body name="notes">
  <section id="note1">
    <title><p>1</p></title>
    <p>Текст сноски.</p>
  </section>
</body>
<binary id="cover" content-type="image/jpeg">/9j/4AAQSkZJRg==</binary>
<binary id="pic1.png" content-type="image/png">iVBORw0KGgo=</binary>
</FictionBook>`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleFB2))
	require.NoError(t, err)

	assert.Equal(t, "Война и мир", doc.Title)
	assert.Equal(t, []string{"Толстой Лев Николаевич", "Аноним"}, doc.Authors)
	assert.Equal(t, []string{"sf", "prose_classic"}, doc.Genres)
	assert.Equal(t, "ru", doc.Lang)
	assert.Equal(t, "ru", doc.Language())
	assert.Equal(t, "Собрание сочинений", doc.Sequence)
	assert.Equal(t, 4, doc.SequenceNo)
	assert.Equal(t, 1869, doc.Date.Year())
	assert.Equal(t, "Роман-эпопея. Том первый.", doc.Annotation)
}

func TestParseBodies(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleFB2))
	require.NoError(t, err)
	require.Len(t, doc.Bodies, 2)

	main := doc.MainBody()
	require.NotNil(t, main)
	assert.Equal(t, "", main.Name)
	assert.Equal(t, "Война и мир", main.Title)
	require.Len(t, main.Sections, 1)

	top := main.Sections[0]
	assert.Equal(t, "Том 1 Часть 1", top.Title)
	require.Len(t, top.Sections, 2)

	ch1 := top.Sections[0]
	assert.Equal(t, "ch1", ch1.ID)
	assert.Equal(t, "Глава 1", ch1.Title)
	require.Len(t, ch1.Items, 4)

	p, ok := ch1.Items[0].(*Paragraph)
	require.True(t, ok)
	// Text, strong, text, emphasis, text.
	require.Len(t, p.Spans, 5)
	assert.Equal(t, SpanStrong, p.Spans[1].Kind)
	assert.Equal(t, "Генуа", p.Spans[1].Children[0].Text)
	assert.Equal(t, SpanEmphasis, p.Spans[3].Kind)

	_, ok = ch1.Items[1].(*EmptyLine)
	assert.True(t, ok)

	note, ok := ch1.Items[2].(*Paragraph)
	require.True(t, ok)
	var link *Span
	for i := range note.Spans {
		if note.Spans[i].Kind == SpanLink {
			link = &note.Spans[i]
		}
	}
	require.NotNil(t, link)
	assert.Equal(t, "#note1", link.Href)
	assert.True(t, link.NoteRef)

	img, ok := ch1.Items[3].(*ImageRef)
	require.True(t, ok)
	assert.Equal(t, "#pic1.png", img.Href)

	notes := doc.Notes()
	require.NotNil(t, notes)
	require.Len(t, notes.Sections, 1)
	assert.Equal(t, "note1", notes.Sections[0].ID)
}

func TestParseBinaries(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleFB2))
	require.NoError(t, err)
	require.Len(t, doc.Binaries, 2)

	cover := doc.Binary("#cover")
	require.NotNil(t, cover)
	assert.Equal(t, "image/jpeg", cover.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46, 0x49, 0x46}, cover.Data)

	// Bare id works too.
	assert.Same(t, cover, doc.Binary("cover"))
	assert.Nil(t, doc.Binary("missing"))
}

func TestCover(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleFB2))
	require.NoError(t, err)

	ref := doc.Cover()
	require.NotNil(t, ref)
	assert.Equal(t, "cover.jpg", ref.FileName)
	assert.Equal(t, "image/jpeg", ref.Mime)
	assert.Equal(t, "jpg", ref.Extension)

	bin := doc.CoverBinary()
	require.NotNil(t, bin)
	assert.Equal(t, "cover", bin.ID)
}

func TestCoverMissingBinary(t *testing.T) {
	src := strings.Replace(sampleFB2, `l:href="#cover"`, `l:href="#nope"`, 1)
	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Nil(t, doc.Cover())
	assert.Nil(t, doc.CoverBinary())
}

func TestParseWindows1251(t *testing.T) {
	// "Тест" in windows-1251 bytes inside the book title.
	head := `<?xml version="1.0" encoding="windows-1251"?><FictionBook><description><title-info><book-title>`
	tail := `</book-title></title-info></description><body><section><p>x</p></section></body></FictionBook>`
	raw := append([]byte(head), 0xD2, 0xE5, 0xF1, 0xF2)
	raw = append(raw, []byte(tail)...)

	doc, err := Parse(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "Тест", doc.Title)
}

func TestParseNotFB2(t *testing.T) {
	_, err := Parse(strings.NewReader(`<?xml version="1.0"?><html><body/></html>`))
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	src := `<FictionBook><body><section><p>text</p></section></body></FictionBook>`
	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "en", doc.Language())
	assert.True(t, doc.Date.IsZero())
	assert.Nil(t, doc.Cover())
	require.NotNil(t, doc.MainBody())
}

func TestImageFileName(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		contentType string
		expected    string
	}{
		{
			name:        "id already has extension",
			id:          "pic1.png",
			contentType: "image/png",
			expected:    "pic1.png",
		},
		{
			name:        "extension appended from content type",
			id:          "cover",
			contentType: "image/jpeg",
			expected:    "cover.jpg",
		},
		{
			name:        "png content type",
			id:          "img42",
			contentType: "image/png",
			expected:    "img42.png",
		},
		{
			name:        "gif content type",
			id:          "anim",
			contentType: "image/gif",
			expected:    "anim.gif",
		},
		{
			name:        "unknown content type falls back to jpg",
			id:          "blob",
			contentType: "application/octet-stream",
			expected:    "blob.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ImageFileName(tt.id, tt.contentType))
		})
	}
}

func TestDateParsing(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		text     string
		expected time.Time
	}{
		{
			name:     "full date value",
			value:    "1869-01-01",
			expected: time.Date(1869, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "year only value",
			value:    "1869",
			expected: time.Date(1869, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "year in text",
			text:     "1920",
			expected: time.Date(1920, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "absent",
		},
		{
			name: "year below two is absent",
			text: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dateXML{Value: tt.value, Text: tt.text}
			assert.Equal(t, tt.expected, d.date())
		})
	}
}
