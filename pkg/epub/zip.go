package epub

import (
	"archive/zip"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Mimetype is the exact payload of the first archive entry.
const Mimetype = "application/epub+zip"

// Archive writes the EPUB container: the first entry is an uncompressed
// `mimetype` whose local header carries the real CRC and sizes (no data
// descriptor, no extra field), and every later entry is DEFLATE. Readers
// sniff the first bytes of the file for that stored entry, so its layout is
// load-bearing.
type Archive struct {
	zw *zip.Writer
}

// NewArchive starts an EPUB container on w and writes the mimetype entry.
func NewArchive(w io.Writer) (*Archive, error) {
	zw := zip.NewWriter(w)

	data := []byte(Mimetype)
	hdr := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
		CRC32:  crc32.ChecksumIEEE(data),
	}
	hdr.CompressedSize64 = uint64(len(data))
	hdr.UncompressedSize64 = uint64(len(data))

	// CreateRaw writes the header verbatim with the sizes above. CreateHeader
	// would flag a trailing data descriptor and append a timestamp extra
	// field, both of which break the fixed first-entry layout.
	fw, err := zw.CreateRaw(hdr)
	if err != nil {
		return nil, errors.Wrap(err, "write mimetype header")
	}
	if _, err := fw.Write(data); err != nil {
		return nil, errors.Wrap(err, "write mimetype data")
	}

	return &Archive{zw: zw}, nil
}

// Add writes one DEFLATE entry. Entries appear in the archive in call order.
func (a *Archive) Add(name string, data []byte) error {
	fw, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return errors.Wrapf(err, "create zip entry %q", name)
	}
	if _, err := fw.Write(data); err != nil {
		return errors.Wrapf(err, "write zip entry %q", name)
	}
	return nil
}

// Close finishes the central directory. The underlying writer is not closed.
func (a *Archive) Close() error {
	return errors.Wrap(a.zw.Close(), "close epub archive")
}
