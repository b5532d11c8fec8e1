package library

import (
	"context"
	"time"
)

// NameCount is one entry of a grouped listing (an author or series name
// with its book count).
type NameCount struct {
	Name  string
	Count int
}

type NewBooksOptions struct {
	// Since filters to books added at or after the given time. Zero means
	// no window.
	Since time.Time

	// ByTitle orders by the title sort key instead of newest-first.
	ByTitle bool

	Limit  int
	Offset int
}

type AuthorBooksOptions struct {
	Author string

	// NoSeries restricts to books outside any series.
	NoSeries bool

	// ByDate orders newest-first instead of by title sort key.
	ByDate bool

	Limit  int
	Offset int
}

// Store is the read side consumed by the catalog: every feed endpoint maps
// onto one of these calls. Listing methods return the total match count
// alongside the page so the caller can emit pagination links.
type Store interface {
	GetBook(ctx context.Context, id string) (*Book, error)
	CountBooks(ctx context.Context) (int, error)

	NewBooks(ctx context.Context, opts NewBooksOptions) ([]*Book, int, error)

	AuthorsByPrefix(ctx context.Context, prefix string) ([]NameCount, error)
	SearchAuthors(ctx context.Context, term string) ([]NameCount, error)
	AuthorBooks(ctx context.Context, opts AuthorBooksOptions) ([]*Book, int, error)
	AuthorSeries(ctx context.Context, author string) ([]NameCount, error)

	SeriesByPrefix(ctx context.Context, prefix string) ([]NameCount, error)
	SearchSeries(ctx context.Context, term string) ([]NameCount, error)
	SeriesBooks(ctx context.Context, series string, limit, offset int) ([]*Book, int, error)

	GenreCounts(ctx context.Context) (map[string]int, error)
	GenreBooks(ctx context.Context, code string, limit, offset int) ([]*Book, int, error)

	SearchBooks(ctx context.Context, term string, limit, offset int) ([]*Book, int, error)
}
