package mobi

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"io"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/fb2"
)

const (
	textRecordSize = 4096

	// Seconds between the Palm epoch (1904-01-01) and the Unix epoch.
	palmEpochDelta = 2082844800
)

// Writer assembles a complete MOBI 6 PalmDB. UniqueID and Now exist so
// tests can pin the two non-deterministic outputs (the Record 0 unique id
// and the database timestamps).
type Writer struct {
	Title    string
	Author   string
	HTML     []byte
	Images   [][]byte
	HasCover bool
	Entries  []*NCXEntry

	UniqueID *uint32
	Now      func() time.Time
}

// Convert renders doc and writes a complete MOBI file to out.
func Convert(doc *fb2.Document, out io.Writer) error {
	flow := BuildFlow(doc)

	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	author := ""
	if len(doc.Authors) > 0 {
		author = doc.Authors[0]
	}

	w := &Writer{
		Title:    title,
		Author:   author,
		HTML:     flow.HTML,
		Images:   flow.Images,
		HasCover: flow.HasCover,
		Entries:  flow.Entries,
	}
	_, err := w.WriteTo(out)
	return err
}

// WriteTo writes the PalmDB to out: header, record table, Record 0, text
// records, image records, NCX records, FLIS, FCIS and the EOF marker.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if len(w.HTML) == 0 {
		return 0, errors.New("mobi: empty text")
	}

	textRecords := splitRecords(w.HTML, textRecordSize)
	textCount := len(textRecords)

	next := 1 + textCount
	firstImage := uint32(0xFFFFFFFF)
	if len(w.Images) > 0 {
		firstImage = uint32(next)
	}
	next += len(w.Images)

	ncxIndex := uint32(0xFFFFFFFF)
	var ncxRecords [][]byte
	if len(w.Entries) > 0 {
		ncxRecords = BuildNCXRecords(w.Entries, len(w.HTML))
		ncxIndex = uint32(next)
		next += len(ncxRecords)
	}

	flisIndex := uint32(next)
	next++
	fcisIndex := uint32(next)
	next++
	next++ // EOF
	total := next

	uniqueID := uint32(0)
	if w.UniqueID != nil {
		uniqueID = *w.UniqueID
	} else {
		var b [4]byte
		if _, err := crand.Read(b[:]); err != nil {
			return 0, errors.WithStack(err)
		}
		uniqueID = binary.BigEndian.Uint32(b[:])
	}

	records := make([][]byte, 0, total)
	records = append(records, w.record0(textCount, firstImage, ncxIndex, flisIndex, fcisIndex, uniqueID))
	records = append(records, textRecords...)
	records = append(records, w.Images...)
	records = append(records, ncxRecords...)
	records = append(records, flisRecord(), fcisRecord(uint32(len(w.HTML))), eofRecord())

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	stamp := uint32(now().Unix() + palmEpochDelta)

	header := make([]byte, 78)
	copy(header, palmName(w.Title))
	binary.BigEndian.PutUint32(header[36:], stamp) // created
	binary.BigEndian.PutUint32(header[40:], stamp) // modified
	copy(header[60:], "BOOK")
	copy(header[64:], "MOBI")
	binary.BigEndian.PutUint16(header[76:], uint16(total))

	// Record info list: offset plus a 3-byte unique id per record, then two
	// gap bytes before the first record's data.
	table := make([]byte, 8*total+2)
	offset := uint32(len(header) + len(table))
	for i, rec := range records {
		binary.BigEndian.PutUint32(table[i*8:], offset)
		table[i*8+5] = byte(i >> 16)
		table[i*8+6] = byte(i >> 8)
		table[i*8+7] = byte(i)
		offset += uint32(len(rec))
	}

	var written int64
	writeAll := func(b []byte) error {
		n, err := out.Write(b)
		written += int64(n)
		return errors.WithStack(err)
	}

	if err := writeAll(header); err != nil {
		return written, err
	}
	if err := writeAll(table); err != nil {
		return written, err
	}
	for _, rec := range records {
		if err := writeAll(rec); err != nil {
			return written, err
		}
	}
	return written, nil
}

// record0 lays out the PalmDOC, MOBI and EXTH headers followed by the full
// book name. Every offset below is fixed; readers hard-code them.
func (w *Writer) record0(textCount int, firstImage, ncxIndex, flisIndex, fcisIndex, uniqueID uint32) []byte {
	title := []byte(w.Title)
	exth := w.buildEXTH()

	h := make([]byte, 264)

	// PalmDOC header.
	binary.BigEndian.PutUint16(h[0:], 1) // no compression
	binary.BigEndian.PutUint32(h[4:], uint32(len(w.HTML)))
	binary.BigEndian.PutUint16(h[8:], uint16(textCount))
	binary.BigEndian.PutUint16(h[10:], textRecordSize)

	copy(h[16:], "MOBI")
	binary.BigEndian.PutUint32(h[20:], 264) // extended header, needed for "Go To"
	binary.BigEndian.PutUint32(h[24:], 2)   // book
	binary.BigEndian.PutUint32(h[28:], 65001)
	binary.BigEndian.PutUint32(h[32:], uniqueID)
	binary.BigEndian.PutUint32(h[36:], 6)
	for off := 40; off < 80; off += 4 {
		binary.BigEndian.PutUint32(h[off:], 0xFFFFFFFF)
	}
	binary.BigEndian.PutUint32(h[80:], uint32(1+textCount))
	binary.BigEndian.PutUint32(h[84:], uint32(264+len(exth)))
	binary.BigEndian.PutUint32(h[88:], uint32(len(title)))
	binary.BigEndian.PutUint32(h[92:], 9) // locale
	binary.BigEndian.PutUint32(h[104:], 6)
	binary.BigEndian.PutUint32(h[108:], firstImage)
	// EXTH flags. 0x40 only: adding 0x10 breaks popup footnotes on older
	// Kindle firmware.
	binary.BigEndian.PutUint32(h[128:], 0x40)
	binary.BigEndian.PutUint32(h[164:], 0xFFFFFFFF) // DRM offset
	binary.BigEndian.PutUint32(h[168:], 0xFFFFFFFF) // DRM count
	binary.BigEndian.PutUint16(h[192:], 1)          // FDST flow count
	binary.BigEndian.PutUint16(h[194:], uint16(textCount))
	binary.BigEndian.PutUint32(h[200:], fcisIndex)
	binary.BigEndian.PutUint32(h[204:], 1)
	binary.BigEndian.PutUint32(h[208:], flisIndex)
	binary.BigEndian.PutUint32(h[212:], 1)
	binary.BigEndian.PutUint32(h[224:], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(h[236:], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(h[244:], ncxIndex)
	binary.BigEndian.PutUint32(h[248:], 0xFFFFFFFF) // fragment
	binary.BigEndian.PutUint32(h[252:], 0xFFFFFFFF) // skeleton
	binary.BigEndian.PutUint32(h[256:], 0xFFFFFFFF) // DATP
	binary.BigEndian.PutUint32(h[260:], 0xFFFFFFFF) // guide

	var rec bytes.Buffer
	rec.Write(h)
	rec.Write(exth)
	rec.Write(title)
	for rec.Len()%4 != 0 {
		rec.WriteByte(0)
	}
	rec.Write([]byte{0, 0, 0, 0})
	return rec.Bytes()
}

// buildEXTH serialises the EXTH block: header, records, padding to a
// 4-byte multiple. The declared size excludes the padding.
func (w *Writer) buildEXTH() []byte {
	var records bytes.Buffer
	count := 0

	addString := func(typ uint32, s string) {
		data := []byte(s)
		var u [4]byte
		binary.BigEndian.PutUint32(u[:], typ)
		records.Write(u[:])
		binary.BigEndian.PutUint32(u[:], uint32(8+len(data)))
		records.Write(u[:])
		records.Write(data)
		count++
	}
	addUint32 := func(typ, v uint32) {
		var u [4]byte
		binary.BigEndian.PutUint32(u[:], typ)
		records.Write(u[:])
		binary.BigEndian.PutUint32(u[:], 12)
		records.Write(u[:])
		binary.BigEndian.PutUint32(u[:], v)
		records.Write(u[:])
		count++
	}

	if w.Author != "" {
		addString(100, w.Author)
	}
	addString(503, w.Title)
	addString(501, "EBOK")
	addUint32(204, 201)
	addUint32(205, 2)
	addUint32(206, 9)
	addUint32(207, 0)
	if w.HasCover {
		addUint32(201, 0) // cover is the first image record
		addUint32(203, 0)
	}

	size := 12 + records.Len()

	var buf bytes.Buffer
	buf.WriteString("EXTH")
	var u [4]byte
	binary.BigEndian.PutUint32(u[:], uint32(size))
	buf.Write(u[:])
	binary.BigEndian.PutUint32(u[:], uint32(count))
	buf.Write(u[:])
	buf.Write(records.Bytes())
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func splitRecords(data []byte, size int) [][]byte {
	var records [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		records = append(records, data[i:end])
	}
	return records
}

// palmName truncates the title to the 32-byte NUL-padded database name
// field without splitting a rune.
func palmName(title string) []byte {
	name := make([]byte, 32)
	b := []byte(title)
	if len(b) > 31 {
		b = b[:31]
		for len(b) > 0 && !utf8.Valid(b) {
			b = b[:len(b)-1]
		}
	}
	copy(name, b)
	return name
}

func flisRecord() []byte {
	data := make([]byte, 36)
	copy(data, "FLIS")
	binary.BigEndian.PutUint32(data[4:], 8)
	binary.BigEndian.PutUint16(data[8:], 0x41)
	binary.BigEndian.PutUint32(data[16:], 0xFFFFFFFF)
	binary.BigEndian.PutUint16(data[20:], 1)
	binary.BigEndian.PutUint16(data[22:], 3)
	binary.BigEndian.PutUint32(data[24:], 3)
	binary.BigEndian.PutUint32(data[28:], 1)
	binary.BigEndian.PutUint32(data[32:], 0xFFFFFFFF)
	return data
}

func fcisRecord(textLen uint32) []byte {
	data := make([]byte, 44)
	copy(data, "FCIS")
	binary.BigEndian.PutUint32(data[4:], 20)
	binary.BigEndian.PutUint32(data[8:], 16)
	binary.BigEndian.PutUint32(data[12:], 1)
	binary.BigEndian.PutUint32(data[20:], textLen)
	binary.BigEndian.PutUint32(data[28:], 32)
	binary.BigEndian.PutUint32(data[32:], 8)
	binary.BigEndian.PutUint16(data[36:], 1)
	binary.BigEndian.PutUint16(data[38:], 1)
	return data
}

func eofRecord() []byte {
	return []byte{0xE9, 0x8E, 0x0D, 0x0A}
}
