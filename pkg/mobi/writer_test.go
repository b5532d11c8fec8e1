package mobi

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyopds/tinyopds/pkg/fb2"
)

func newTestWriter() *Writer {
	uid := uint32(0xDEADBEEF)
	return &Writer{
		Title:    "Test Book",
		Author:   "Test Author",
		HTML:     bytes.Repeat([]byte("x"), 5000),
		Images:   [][]byte{bytes.Repeat([]byte{0xFF}, 100), bytes.Repeat([]byte{0xAA}, 200)},
		HasCover: true,
		Entries:  chapterEntries(),
		UniqueID: &uid,
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func writeToBuffer(t *testing.T, w *Writer) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

// extractRecord returns the data of the nth record via the PDB record
// table.
func extractRecord(t *testing.T, data []byte, index int) []byte {
	t.Helper()
	numRecords := int(binary.BigEndian.Uint16(data[76:78]))
	require.Less(t, index, numRecords)

	start := binary.BigEndian.Uint32(data[78+index*8:])
	end := uint32(len(data))
	if index+1 < numRecords {
		end = binary.BigEndian.Uint32(data[78+(index+1)*8:])
	}
	return data[start:end]
}

// exthValues scans the EXTH block of rec0 into type → payload.
func exthValues(t *testing.T, rec0 []byte) map[uint32][]byte {
	t.Helper()
	require.Equal(t, "EXTH", string(rec0[264:268]))
	count := int(binary.BigEndian.Uint32(rec0[272:276]))

	values := map[uint32][]byte{}
	off := 276
	for i := 0; i < count; i++ {
		typ := binary.BigEndian.Uint32(rec0[off:])
		size := int(binary.BigEndian.Uint32(rec0[off+4:]))
		values[typ] = rec0[off+8 : off+size]
		off += size
	}
	return values
}

func TestWriterRecordLayout(t *testing.T) {
	t.Parallel()
	data := writeToBuffer(t, newTestWriter())

	// Record 0, two 4096-byte text records for 5000 bytes, two images,
	// three NCX records, FLIS, FCIS, EOF.
	assert.Equal(t, uint16(11), binary.BigEndian.Uint16(data[76:78]))
	assert.Equal(t, "BOOK", string(data[60:64]))
	assert.Equal(t, "MOBI", string(data[64:68]))
	assert.Equal(t, "Test Book", string(bytes.TrimRight(data[0:32], "\x00")))

	// First record starts after the table and the two gap bytes.
	first := binary.BigEndian.Uint32(data[78:])
	assert.Equal(t, uint32(78+11*8+2), first)

	for i := 1; i < 11; i++ {
		prev := binary.BigEndian.Uint32(data[78+(i-1)*8:])
		cur := binary.BigEndian.Uint32(data[78+i*8:])
		assert.Greater(t, cur, prev, "record %d", i)
	}
}

func TestWriterRecord0(t *testing.T) {
	t.Parallel()
	data := writeToBuffer(t, newTestWriter())
	rec0 := extractRecord(t, data, 0)

	// PalmDOC header.
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(rec0[0:2]))
	assert.Equal(t, uint32(5000), binary.BigEndian.Uint32(rec0[4:8]))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(rec0[8:10]))
	assert.Equal(t, uint16(4096), binary.BigEndian.Uint16(rec0[10:12]))

	assert.Equal(t, "MOBI", string(rec0[16:20]))
	assert.Equal(t, uint32(264), binary.BigEndian.Uint32(rec0[20:24]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(rec0[24:28]))
	assert.Equal(t, uint32(65001), binary.BigEndian.Uint32(rec0[28:32]))
	assert.Equal(t, uint32(0xDEADBEEF), binary.BigEndian.Uint32(rec0[32:36]))
	assert.Equal(t, uint32(6), binary.BigEndian.Uint32(rec0[36:40]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.BigEndian.Uint32(rec0[40:44]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.BigEndian.Uint32(rec0[76:80]))

	// Records: 0 header, 1-2 text, 3-4 images, 5-7 NCX, 8 FLIS, 9 FCIS,
	// 10 EOF.
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(rec0[80:84]))
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(rec0[108:112]))
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(rec0[200:204]))
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(rec0[208:212]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(rec0[244:248]))

	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(rec0[92:96]))
	assert.Equal(t, uint32(6), binary.BigEndian.Uint32(rec0[104:108]))
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(rec0[192:194]))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(rec0[194:196]))

	// EXTH flags: 0x40 set, 0x10 clear.
	flags := binary.BigEndian.Uint32(rec0[128:132])
	assert.NotZero(t, flags&0x40)
	assert.Zero(t, flags&0x10)

	// Full name sits after the padded EXTH block.
	nameOff := binary.BigEndian.Uint32(rec0[84:88])
	nameLen := binary.BigEndian.Uint32(rec0[88:92])
	assert.Equal(t, "Test Book", string(rec0[nameOff:nameOff+nameLen]))
}

func TestWriterEXTH(t *testing.T) {
	t.Parallel()
	data := writeToBuffer(t, newTestWriter())
	values := exthValues(t, extractRecord(t, data, 0))

	assert.Equal(t, "Test Author", string(values[100]))
	assert.Equal(t, "Test Book", string(values[503]))
	assert.Equal(t, "EBOK", string(values[501]))
	assert.Equal(t, uint32(201), binary.BigEndian.Uint32(values[204]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(values[205]))
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(values[206]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(values[207]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(values[201]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(values[203]))
}

func TestWriterTrailingRecords(t *testing.T) {
	t.Parallel()
	data := writeToBuffer(t, newTestWriter())

	flis := extractRecord(t, data, 8)
	require.Len(t, flis, 36)
	assert.Equal(t, "FLIS", string(flis[0:4]))
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(flis[4:8]))
	assert.Equal(t, uint16(0x41), binary.BigEndian.Uint16(flis[8:10]))

	fcis := extractRecord(t, data, 9)
	require.Len(t, fcis, 44)
	assert.Equal(t, "FCIS", string(fcis[0:4]))
	assert.Equal(t, uint32(20), binary.BigEndian.Uint32(fcis[4:8]))
	assert.Equal(t, uint32(5000), binary.BigEndian.Uint32(fcis[20:24]))

	eof := extractRecord(t, data, 10)
	assert.Equal(t, []byte{0xE9, 0x8E, 0x0D, 0x0A}, eof)
}

func TestWriterTextRoundTrip(t *testing.T) {
	t.Parallel()
	w := newTestWriter()
	data := writeToBuffer(t, w)

	var text []byte
	text = append(text, extractRecord(t, data, 1)...)
	text = append(text, extractRecord(t, data, 2)...)
	assert.Equal(t, w.HTML, text)
	assert.Len(t, extractRecord(t, data, 1), 4096)
}

func TestWriterImageRecords(t *testing.T) {
	t.Parallel()
	w := newTestWriter()
	data := writeToBuffer(t, w)

	assert.Equal(t, w.Images[0], extractRecord(t, data, 3))
	assert.Equal(t, w.Images[1], extractRecord(t, data, 4))
}

func TestWriterNoImagesNoNCX(t *testing.T) {
	t.Parallel()
	uid := uint32(1)
	w := &Writer{
		Title:    "Bare",
		HTML:     []byte("<html><body><p>hi</p></body></html>"),
		UniqueID: &uid,
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	data := writeToBuffer(t, w)

	// Record 0, one text record, FLIS, FCIS, EOF.
	assert.Equal(t, uint16(5), binary.BigEndian.Uint16(data[76:78]))

	rec0 := extractRecord(t, data, 0)
	assert.Equal(t, uint32(0xFFFFFFFF), binary.BigEndian.Uint32(rec0[108:112]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.BigEndian.Uint32(rec0[244:248]))
}

const converterFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
<description>
<title-info>
<genre>sf</genre>
<author><first-name>Иван</first-name><last-name>Ефремов</last-name></author>
<book-title>Туманность</book-title>
<coverpage><image l:href="#cover.jpg"/></coverpage>
<lang>ru</lang>
</title-info>
</description>
<body>
<section><title><p>Глава 1</p></title><p>Текст<a l:href="#n1" type="note">[1]</a> и <image l:href="#pic.png"/></p></section>
<section><title><p>Глава 2</p></title><p>Ещё текст.</p></section>
</body>
<body name="notes">
<section id="n1"><title><p>1</p></title><p>Примечание.</p></section>
</body>
<binary id="cover.jpg" content-type="image/jpeg">/9j/4AAQSkZJRg==</binary>
<binary id="pic.png" content-type="image/png">iVBORw0KGgo=</binary>
</FictionBook>`

func TestBuildFlow(t *testing.T) {
	t.Parallel()
	doc, err := fb2.Parse(strings.NewReader(converterFB2))
	require.NoError(t, err)

	flow := BuildFlow(doc)
	html := string(flow.HTML)

	assert.True(t, flow.HasCover)
	require.Len(t, flow.Images, 2)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, flow.Images[0][:3], "cover first")

	assert.Contains(t, html, "<mbp:pagebreak/>")
	assert.Contains(t, html, `<a class="footnote-ref" href="#n1">`)
	assert.Contains(t, html, `<img recindex="00002"/>`)
	assert.Contains(t, html, `<div class="footnote" id="n1">`)
	assert.NotContains(t, html, "src=")

	require.Len(t, flow.Entries, 2)
	assert.Equal(t, "Глава 1", flow.Entries[0].Title)
	assert.Equal(t, 0, flow.Entries[0].Depth)
	assert.Equal(t, "<h2>", html[flow.Entries[0].Offset:flow.Entries[0].Offset+4])
	assert.Equal(t, "<h2>", html[flow.Entries[1].Offset:flow.Entries[1].Offset+4])
}

func TestConvert(t *testing.T) {
	t.Parallel()
	doc, err := fb2.Parse(strings.NewReader(converterFB2))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Convert(doc, &buf))
	data := buf.Bytes()

	// Record 0, one text record, two images, three NCX records, FLIS,
	// FCIS, EOF.
	numRecords := binary.BigEndian.Uint16(data[76:78])
	assert.Equal(t, uint16(10), numRecords)

	rec0 := extractRecord(t, data, 0)
	assert.Equal(t, uint32(264), binary.BigEndian.Uint32(rec0[20:24]))
	assert.Equal(t, byte(0x40), rec0[131])

	values := exthValues(t, rec0)
	assert.Equal(t, "Ефремов Иван", string(values[100]))
	assert.Equal(t, "Туманность", string(values[503]))

	cover := extractRecord(t, data, 2)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, cover[:3])

	ncxMaster := extractRecord(t, data, 4)
	assert.Equal(t, "INDX", string(ncxMaster[0:4]))
}
