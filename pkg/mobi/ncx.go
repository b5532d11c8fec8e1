package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

const indxHeaderSize = 192

// NCXEntry is one chapter of the logical table of contents. Title, Offset
// and Depth come from the flow builder; the remaining index fields are
// filled in by the build steps and hold -1 when absent.
type NCXEntry struct {
	Title  string
	Offset int
	Depth  int

	Length     int
	Parent     int
	FirstChild int
	LastChild  int

	originalIndex int
}

// CalculateLengths sets each entry's length to the distance to the next
// entry at the same or a shallower depth, defaulting to the end of the text
// and never dropping below 1.
func CalculateLengths(entries []*NCXEntry, textLength int) {
	for i, e := range entries {
		next := textLength
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Depth <= e.Depth {
				next = entries[j].Offset
				break
			}
		}
		e.Length = next - e.Offset
		if e.Length < 1 {
			e.Length = 1
		}
	}
}

// CalculateHierarchy resolves parent, firstChild and lastChild for each
// entry. The parent is the last prior entry with a strictly smaller depth;
// children are the direct (depth+1) descendants before the next entry at
// the same or a shallower depth.
func CalculateHierarchy(entries []*NCXEntry) {
	for i, e := range entries {
		e.Parent = -1
		for j := i - 1; j >= 0; j-- {
			if entries[j].Depth < e.Depth {
				e.Parent = j
				break
			}
		}

		e.FirstChild, e.LastChild = -1, -1
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Depth <= e.Depth {
				break
			}
			if entries[j].Depth == e.Depth+1 {
				if e.FirstChild < 0 {
					e.FirstChild = j
				}
				e.LastChild = j
			}
		}
	}
}

// ReorderBreadthFirst returns the entries sorted by (depth, document
// order), which is the ordering Kindle's "Go To" menu requires, with every
// parent/firstChild/lastChild index rewritten to the new positions. A
// parent always lands before its children.
func ReorderBreadthFirst(entries []*NCXEntry) []*NCXEntry {
	for i, e := range entries {
		e.originalIndex = i
	}

	out := make([]*NCXEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Depth < out[b].Depth })

	remap := make([]int, len(entries))
	for newIndex, e := range out {
		remap[e.originalIndex] = newIndex
	}
	for _, e := range out {
		if e.Parent >= 0 {
			e.Parent = remap[e.Parent]
		}
		if e.FirstChild >= 0 {
			e.FirstChild = remap[e.FirstChild]
		}
		if e.LastChild >= 0 {
			e.LastChild = remap[e.LastChild]
		}
	}
	return out
}

// BuildNCXRecords runs the full pipeline over entries given in document
// order and returns the three index records: INDX master, INDX data, CNCX.
func BuildNCXRecords(entries []*NCXEntry, textLength int) [][]byte {
	CalculateLengths(entries, textLength)
	CalculateHierarchy(entries)
	ordered := ReorderBreadthFirst(entries)

	cncx, cncxOffsets := buildCNCX(ordered)
	data := buildIndexData(ordered, cncxOffsets)
	master := buildIndexMaster(len(ordered))
	return [][]byte{master, data, cncx}
}

// buildCNCX packs the entry titles into one blob of [vwiLength][utf8Title]
// and returns the blob plus each entry's offset into it.
func buildCNCX(entries []*NCXEntry) ([]byte, []int) {
	var buf bytes.Buffer
	offsets := make([]int, len(entries))
	for i, e := range entries {
		offsets[i] = buf.Len()
		title := []byte(e.Title)
		buf.Write(EncodeVWI(len(title)))
		buf.Write(title)
	}
	pad4(&buf)
	return buf.Bytes(), offsets
}

// entryLabel is the ascii ordinal used both in the data entries and the
// master record's geometry entry.
func entryLabel(i int) string {
	return fmt.Sprintf("%03d", i)
}

// buildIndexData emits the INDX data record: a 192-byte header, one tagged
// entry per NCX entry, and an IDXT section listing the entry offsets.
func buildIndexData(entries []*NCXEntry, cncxOffsets []int) []byte {
	var body bytes.Buffer
	entryOffsets := make([]int, len(entries))
	for i, e := range entries {
		entryOffsets[i] = indxHeaderSize + body.Len()

		label := entryLabel(i)
		body.WriteByte(byte(len(label)))
		body.WriteString(label)

		// Offset, length, label and depth are always present; the three
		// hierarchy tags are flagged in when resolved.
		control := byte(0x0F)
		if e.Parent >= 0 {
			control |= 0x10
		}
		if e.FirstChild >= 0 {
			control |= 0x20
		}
		if e.LastChild >= 0 {
			control |= 0x40
		}
		body.WriteByte(control)

		body.Write(EncodeVWI(e.Offset))
		body.Write(EncodeVWI(e.Length))
		body.Write(EncodeVWI(cncxOffsets[i]))
		body.Write(EncodeVWI(e.Depth))
		if e.Parent >= 0 {
			body.Write(EncodeVWI(e.Parent))
		}
		if e.FirstChild >= 0 {
			body.Write(EncodeVWI(e.FirstChild))
		}
		if e.LastChild >= 0 {
			body.Write(EncodeVWI(e.LastChild))
		}
	}

	idxtOffset := indxHeaderSize + body.Len()

	var rec bytes.Buffer
	header := make([]byte, indxHeaderSize)
	copy(header, "INDX")
	binary.BigEndian.PutUint32(header[4:8], indxHeaderSize)
	binary.BigEndian.PutUint32(header[20:24], uint32(idxtOffset))
	binary.BigEndian.PutUint32(header[24:28], uint32(len(entries)))
	rec.Write(header)
	rec.Write(body.Bytes())

	rec.WriteString("IDXT")
	for _, off := range entryOffsets {
		var u [2]byte
		binary.BigEndian.PutUint16(u[:], uint16(off))
		rec.Write(u[:])
	}
	pad4(&rec)
	return rec.Bytes()
}

// buildIndexMaster emits the INDX master record: a 192-byte header, the
// 44-byte TAGX table, a geometry entry naming the last entry and the total
// count, and an IDXT pointing at that entry.
func buildIndexMaster(entryCount int) []byte {
	var geo bytes.Buffer
	label := entryLabel(entryCount - 1)
	geo.WriteByte(byte(len(label)))
	geo.WriteString(label)
	var cnt [2]byte
	binary.BigEndian.PutUint16(cnt[:], uint16(entryCount))
	geo.Write(cnt[:])

	tagx := tagxBlock()
	geoOffset := indxHeaderSize + len(tagx)
	idxtOffset := geoOffset + geo.Len()

	header := make([]byte, indxHeaderSize)
	copy(header, "INDX")
	binary.BigEndian.PutUint32(header[4:8], indxHeaderSize)
	binary.BigEndian.PutUint32(header[20:24], uint32(idxtOffset))
	binary.BigEndian.PutUint32(header[24:28], 1) // one data record follows
	binary.BigEndian.PutUint32(header[28:32], 65001)
	binary.BigEndian.PutUint32(header[32:36], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(header[36:40], uint32(entryCount))
	binary.BigEndian.PutUint32(header[52:56], 1) // one CNCX record

	var rec bytes.Buffer
	rec.Write(header)
	rec.Write(tagx)
	rec.Write(geo.Bytes())
	rec.WriteString("IDXT")
	var off [2]byte
	binary.BigEndian.PutUint16(off[:], uint16(geoOffset))
	rec.Write(off[:])
	pad4(&rec)
	return rec.Bytes()
}

// tagxBlock declares the seven NCX tags plus the end sentinel. Each entry
// is (tag id, values per entry, bitmask, end flag).
func tagxBlock() []byte {
	var buf bytes.Buffer
	buf.WriteString("TAGX")
	var u [4]byte
	binary.BigEndian.PutUint32(u[:], 44)
	buf.Write(u[:])
	binary.BigEndian.PutUint32(u[:], 1) // control byte count
	buf.Write(u[:])
	for _, tag := range [][4]byte{
		{1, 1, 0x01, 0},  // offset
		{2, 1, 0x02, 0},  // length
		{3, 1, 0x04, 0},  // label (CNCX offset)
		{4, 1, 0x08, 0},  // depth
		{21, 1, 0x10, 0}, // parent
		{22, 1, 0x20, 0}, // first child
		{23, 1, 0x40, 0}, // last child
		{0, 0, 0, 1},
	} {
		buf.Write(tag[:])
	}
	return buf.Bytes()
}

func pad4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}
