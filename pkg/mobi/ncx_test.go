package mobi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapterEntries() []*NCXEntry {
	return []*NCXEntry{
		{Title: "A", Offset: 0, Depth: 0},
		{Title: "A.1", Offset: 10, Depth: 1},
		{Title: "A.2", Offset: 20, Depth: 1},
		{Title: "B", Offset: 30, Depth: 0},
		{Title: "B.1", Offset: 40, Depth: 1},
	}
}

func TestCalculateLengths(t *testing.T) {
	t.Parallel()
	entries := chapterEntries()
	CalculateLengths(entries, 50)

	assert.Equal(t, 30, entries[0].Length) // A runs until B
	assert.Equal(t, 10, entries[1].Length) // A.1 until A.2
	assert.Equal(t, 10, entries[2].Length) // A.2 until B
	assert.Equal(t, 20, entries[3].Length) // B until end
	assert.Equal(t, 10, entries[4].Length) // B.1 until end
}

func TestCalculateLengthsMinimumOne(t *testing.T) {
	t.Parallel()
	entries := []*NCXEntry{
		{Title: "X", Offset: 10, Depth: 0},
		{Title: "Y", Offset: 10, Depth: 0},
	}
	CalculateLengths(entries, 10)
	assert.Equal(t, 1, entries[0].Length)
	assert.Equal(t, 1, entries[1].Length)
}

func TestCalculateHierarchy(t *testing.T) {
	t.Parallel()
	entries := chapterEntries()
	CalculateHierarchy(entries)

	assert.Equal(t, -1, entries[0].Parent)
	assert.Equal(t, 1, entries[0].FirstChild)
	assert.Equal(t, 2, entries[0].LastChild)

	assert.Equal(t, 0, entries[1].Parent)
	assert.Equal(t, -1, entries[1].FirstChild)

	assert.Equal(t, 0, entries[2].Parent)

	assert.Equal(t, -1, entries[3].Parent)
	assert.Equal(t, 4, entries[3].FirstChild)
	assert.Equal(t, 4, entries[3].LastChild)

	assert.Equal(t, 3, entries[4].Parent)
}

// The "Go To" menu requires all depth-0 entries before any deeper entry,
// document order preserved within a depth, and every parent index smaller
// than its child's index.
func TestReorderBreadthFirst(t *testing.T) {
	t.Parallel()
	entries := chapterEntries()
	CalculateLengths(entries, 50)
	CalculateHierarchy(entries)
	ordered := ReorderBreadthFirst(entries)

	titles := make([]string, len(ordered))
	for i, e := range ordered {
		titles[i] = e.Title
	}
	assert.Equal(t, []string{"A", "B", "A.1", "A.2", "B.1"}, titles)

	// A at 0: children now at 2 and 3.
	assert.Equal(t, 2, ordered[0].FirstChild)
	assert.Equal(t, 3, ordered[0].LastChild)
	// B at 1: child now at 4.
	assert.Equal(t, 4, ordered[1].FirstChild)
	assert.Equal(t, 4, ordered[1].LastChild)
	// Children point back at the reordered parents.
	assert.Equal(t, 0, ordered[2].Parent)
	assert.Equal(t, 0, ordered[3].Parent)
	assert.Equal(t, 1, ordered[4].Parent)

	for i := 1; i < len(ordered); i++ {
		assert.GreaterOrEqual(t, ordered[i].Depth, ordered[i-1].Depth)
	}
	for i, e := range ordered {
		if e.Parent >= 0 {
			assert.Less(t, e.Parent, i, "parent of %q", e.Title)
		}
	}
}

func TestBuildNCXRecords(t *testing.T) {
	t.Parallel()
	records := BuildNCXRecords(chapterEntries(), 50)
	require.Len(t, records, 3)

	master, data, cncx := records[0], records[1], records[2]

	// Master header.
	assert.Equal(t, "INDX", string(master[0:4]))
	assert.Equal(t, uint32(192), binary.BigEndian.Uint32(master[4:8]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(master[24:28]))
	assert.Equal(t, uint32(65001), binary.BigEndian.Uint32(master[28:32]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.BigEndian.Uint32(master[32:36]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(master[36:40]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(master[52:56]))

	// TAGX block directly after the header.
	tagx := master[192:236]
	assert.Equal(t, "TAGX", string(tagx[0:4]))
	assert.Equal(t, uint32(44), binary.BigEndian.Uint32(tagx[4:8]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(tagx[8:12]))
	assert.Equal(t, []byte{1, 1, 0x01, 0}, tagx[12:16])
	assert.Equal(t, []byte{23, 1, 0x40, 0}, tagx[36:40])
	assert.Equal(t, []byte{0, 0, 0, 1}, tagx[40:44])

	// Geometry entry: last entry label plus total count.
	geo := master[236:]
	assert.Equal(t, byte(3), geo[0])
	assert.Equal(t, "004", string(geo[1:4]))
	assert.Equal(t, uint16(5), binary.BigEndian.Uint16(geo[4:6]))

	// Data record lists every entry through IDXT.
	assert.Equal(t, "INDX", string(data[0:4]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(data[24:28]))
	idxt := int(binary.BigEndian.Uint32(data[20:24]))
	assert.Equal(t, "IDXT", string(data[idxt:idxt+4]))

	// First entry after reorder is A: label "000", no parent, both child
	// tags present.
	first := int(binary.BigEndian.Uint16(data[idxt+4 : idxt+6]))
	assert.Equal(t, byte(3), data[first])
	assert.Equal(t, "000", string(data[first+1:first+4]))
	control := data[first+4]
	assert.Equal(t, byte(0x0F|0x20|0x40), control)

	// Its VWIs decode to offset 0, length 30, cncx offset 0, depth 0.
	p := first + 5
	for _, want := range []int{0, 30, 0, 0, 2, 3} {
		v, n := DecodeVWI(data[p:])
		require.NotZero(t, n)
		assert.Equal(t, want, v)
		p += n
	}

	// CNCX starts with A's title.
	v, n := DecodeVWI(cncx)
	require.NotZero(t, n)
	assert.Equal(t, 1, v)
	assert.Equal(t, "A", string(cncx[n:n+1]))
	assert.Zero(t, len(cncx)%4)
}
