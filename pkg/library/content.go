package library

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// maxBookSize caps how much of a single archived book is read into memory
// (256 MB). This prevents decompression bombs from consuming excessive
// memory.
const maxBookSize = 256 * 1024 * 1024

// ReadBook returns the raw bytes of the stored book file. root is the
// library root; container paths are resolved into their archive.
func ReadBook(root string, book *Book) ([]byte, error) {
	container, entry, ok := book.InContainer()
	if !ok {
		b, err := os.ReadFile(filepath.Join(root, book.FilePath))
		return b, errors.WithStack(err)
	}

	zr, err := zip.OpenReader(filepath.Join(root, container))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name != entry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer rc.Close()
		b, err := io.ReadAll(io.LimitReader(rc, maxBookSize))
		return b, errors.WithStack(err)
	}
	return nil, errors.Errorf("entry %q not found in %s", entry, container)
}
