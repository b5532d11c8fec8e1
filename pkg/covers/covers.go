package covers

import (
	"bytes"

	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/epub"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/fb2"
	"github.com/tinyopds/tinyopds/pkg/library"
)

// Service renders cover images for catalog books and keeps the encoded
// JPEGs in a byte-capped in-memory cache.
type Service struct {
	libraryPath string
	cache       *Cache
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		libraryPath: cfg.LibraryPath,
		cache:       NewCache(cfg.CoverCacheMB),
	}
}

// Cover returns the full-size cover JPEG for book.
func (svc *Service) Cover(book *library.Book) ([]byte, error) {
	return svc.render(book, KindCover, coverHeight)
}

// Thumbnail returns the thumbnail JPEG for book.
func (svc *Service) Thumbnail(book *library.Book) ([]byte, error) {
	return svc.render(book, KindThumbnail, thumbnailHeight)
}

func (svc *Service) render(book *library.Book, kind string, maxHeight int) ([]byte, error) {
	if data, ok := svc.cache.Get(book.ID, kind); ok {
		return data, nil
	}

	raw, err := svc.extract(book)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errcodes.NotFound("Cover")
	}

	data, err := renderJPEG(raw, maxHeight)
	if err != nil {
		return nil, err
	}
	svc.cache.Add(book.ID, kind, data)
	return data, nil
}

// extract pulls the raw embedded cover image out of the book file.
func (svc *Service) extract(book *library.Book) ([]byte, error) {
	raw, err := library.ReadBook(svc.libraryPath, book)
	if err != nil {
		return nil, err
	}

	switch book.BookType {
	case library.BookTypeFB2:
		doc, err := fb2.Parse(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		bin := doc.CoverBinary()
		if bin == nil {
			return nil, nil
		}
		return bin.Data, nil
	case library.BookTypeEPUB:
		meta, err := epub.Parse(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return nil, err
		}
		return meta.CoverData, nil
	}
	return nil, errcodes.NotFound("Cover")
}
