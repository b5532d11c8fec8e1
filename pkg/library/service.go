package library

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/sortname"
	"github.com/tinyopds/tinyopds/pkg/soundex"
	"github.com/uptrace/bun"
)

// Service is the SQL-backed Store plus the write operations the scanner
// needs.
type Service struct {
	db            *bun.DB
	cyrillicFirst bool
}

func NewService(db *bun.DB, cyrillicFirst bool) *Service {
	return &Service{db: db, cyrillicFirst: cyrillicFirst}
}

var _ Store = (*Service)(nil)

func (svc *Service) selectBooks(model interface{}) *bun.SelectQuery {
	return svc.db.
		NewSelect().
		Model(model).
		Relation("Authors", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("a.sequence ASC")
		}).
		Relation("Genres")
}

func (svc *Service) GetBook(ctx context.Context, id string) (*Book, error) {
	book := &Book{}
	err := svc.selectBooks(book).Where("b.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// BookByPath returns the book stored for path, or nil when the path has not
// been scanned yet.
func (svc *Service) BookByPath(ctx context.Context, path string) (*Book, error) {
	book := &Book{}
	err := svc.selectBooks(book).Where("b.file_path = ?", path).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// BookPaths returns every stored file path. The scanner uses it to skip
// files already in the catalog.
func (svc *Service) BookPaths(ctx context.Context) (map[string]bool, error) {
	var paths []string
	err := svc.db.
		NewSelect().
		Model((*Book)(nil)).
		Column("b.file_path").
		Scan(ctx, &paths)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set, nil
}

func (svc *Service) CountBooks(ctx context.Context) (int, error) {
	count, err := svc.db.NewSelect().Model((*Book)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

func (svc *Service) NewBooks(ctx context.Context, opts NewBooksOptions) ([]*Book, int, error) {
	books := []*Book{}

	q := svc.selectBooks(&books)
	if !opts.Since.IsZero() {
		q = q.Where("b.created_at >= ?", opts.Since)
	}
	if opts.ByTitle {
		q = q.Order("b.sort_title ASC")
	} else {
		q = q.Order("b.created_at DESC").Order("b.sort_title ASC")
	}
	q = applyPage(q, opts.Limit, opts.Offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, total, nil
}

func (svc *Service) AuthorsByPrefix(ctx context.Context, prefix string) ([]NameCount, error) {
	q := svc.db.
		NewSelect().
		Model((*Author)(nil)).
		ColumnExpr("a.name AS name").
		ColumnExpr("COUNT(DISTINCT a.book_id) AS count").
		GroupExpr("a.name").
		OrderExpr("MIN(a.sort_key)")
	if prefix != "" {
		q = q.Where("a.sort_name LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
	}

	counts := []NameCount{}
	if err := q.Scan(ctx, &counts); err != nil {
		return nil, errors.WithStack(err)
	}
	return counts, nil
}

func (svc *Service) SearchAuthors(ctx context.Context, term string) ([]NameCount, error) {
	counts := []NameCount{}
	err := svc.db.
		NewSelect().
		Model((*Author)(nil)).
		ColumnExpr("a.name AS name").
		ColumnExpr("COUNT(DISTINCT a.book_id) AS count").
		Where("a.sort_name LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(term))+"%").
		GroupExpr("a.name").
		OrderExpr("MIN(a.sort_key)").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(counts) > 0 {
		return counts, nil
	}

	// Nothing matched literally; fall back to the phonetic code so
	// misspelled names ("Tolstoj") still find their author.
	code := soundex.Code(term)
	if code == "" {
		return counts, nil
	}
	err = svc.db.
		NewSelect().
		Model((*Author)(nil)).
		ColumnExpr("a.name AS name").
		ColumnExpr("COUNT(DISTINCT a.book_id) AS count").
		Where("a.soundex = ?", code).
		GroupExpr("a.name").
		OrderExpr("MIN(a.sort_key)").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return counts, nil
}

func (svc *Service) AuthorBooks(ctx context.Context, opts AuthorBooksOptions) ([]*Book, int, error) {
	books := []*Book{}

	q := svc.selectBooks(&books).
		Where("b.id IN (SELECT book_id FROM authors WHERE name = ?)", opts.Author)
	if opts.NoSeries {
		q = q.Where("b.sequence IS NULL")
	}
	if opts.ByDate {
		q = q.Order("b.created_at DESC").Order("b.sort_title ASC")
	} else {
		q = q.Order("b.sort_title ASC")
	}
	q = applyPage(q, opts.Limit, opts.Offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, total, nil
}

func (svc *Service) AuthorSeries(ctx context.Context, author string) ([]NameCount, error) {
	counts := []NameCount{}
	err := svc.db.
		NewSelect().
		Model((*Book)(nil)).
		ColumnExpr("b.sequence AS name").
		ColumnExpr("COUNT(*) AS count").
		Where("b.sequence IS NOT NULL").
		Where("b.id IN (SELECT book_id FROM authors WHERE name = ?)", author).
		GroupExpr("b.sequence").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	svc.sortNames(counts)
	return counts, nil
}

// allSeries returns every series with its book count. Series are plain
// strings on books, so prefix and search filtering happen in Go where
// lower-casing works beyond ASCII.
func (svc *Service) allSeries(ctx context.Context) ([]NameCount, error) {
	counts := []NameCount{}
	err := svc.db.
		NewSelect().
		Model((*Book)(nil)).
		ColumnExpr("b.sequence AS name").
		ColumnExpr("COUNT(*) AS count").
		Where("b.sequence IS NOT NULL").
		GroupExpr("b.sequence").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return counts, nil
}

func (svc *Service) SeriesByPrefix(ctx context.Context, prefix string) ([]NameCount, error) {
	all, err := svc.allSeries(ctx)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	counts := all[:0]
	for _, nc := range all {
		if strings.HasPrefix(strings.ToLower(nc.Name), prefix) {
			counts = append(counts, nc)
		}
	}
	svc.sortNames(counts)
	return counts, nil
}

func (svc *Service) SearchSeries(ctx context.Context, term string) ([]NameCount, error) {
	all, err := svc.allSeries(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	counts := []NameCount{}
	for _, nc := range all {
		if strings.Contains(strings.ToLower(nc.Name), term) {
			counts = append(counts, nc)
		}
	}
	if len(counts) == 0 {
		if code := soundex.Code(term); code != "" {
			for _, nc := range all {
				if soundex.Code(nc.Name) == code {
					counts = append(counts, nc)
				}
			}
		}
	}
	svc.sortNames(counts)
	return counts, nil
}

func (svc *Service) SeriesBooks(ctx context.Context, series string, limit, offset int) ([]*Book, int, error) {
	books := []*Book{}

	q := svc.selectBooks(&books).
		Where("b.sequence = ?", series).
		OrderExpr("b.sequence_no IS NULL, b.sequence_no ASC, b.sort_title ASC")
	q = applyPage(q, limit, offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, total, nil
}

func (svc *Service) GenreCounts(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Code  string
		Count int
	}{}
	err := svc.db.
		NewSelect().
		Model((*BookGenre)(nil)).
		ColumnExpr("bg.code AS code").
		ColumnExpr("COUNT(DISTINCT bg.book_id) AS count").
		GroupExpr("bg.code").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Code] = row.Count
	}
	return counts, nil
}

func (svc *Service) GenreBooks(ctx context.Context, code string, limit, offset int) ([]*Book, int, error) {
	books := []*Book{}

	q := svc.selectBooks(&books).
		Where("b.id IN (SELECT book_id FROM book_genres WHERE code = ?)", code).
		Order("b.sort_title ASC")
	q = applyPage(q, limit, offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, total, nil
}

func (svc *Service) SearchBooks(ctx context.Context, term string, limit, offset int) ([]*Book, int, error) {
	books := []*Book{}

	q := svc.selectBooks(&books).
		Where("b.search_title LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(term))+"%").
		Order("b.sort_title ASC")
	q = applyPage(q, limit, offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if total > 0 {
		return books, total, nil
	}

	code := soundex.Code(term)
	if code == "" {
		return books, total, nil
	}
	q = svc.selectBooks(&books).
		Where("b.soundex = ?", code).
		Order("b.sort_title ASC")
	q = applyPage(q, limit, offset)

	total, err = q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, total, nil
}

// CreateBook inserts a book with its author and genre rows in one
// transaction. Derived sort columns are filled from the display values when
// the caller has not set them.
func (svc *Service) CreateBook(ctx context.Context, book *Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	if book.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		book.ID = id.String()
	}
	if book.SortTitle == "" {
		book.DeriveSortFields(svc.cyrillicFirst)
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(book).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for i, author := range book.Authors {
			author.BookID = book.ID
			if author.Sequence == 0 {
				author.Sequence = i + 1
			}
			if author.SortKey == "" {
				derived := NewAuthor(book.ID, author.Name, svc.cyrillicFirst)
				author.SortName = derived.SortName
				author.SortKey = derived.SortKey
				author.Soundex = derived.Soundex
			}
		}
		if len(book.Authors) > 0 {
			_, err := tx.
				NewInsert().
				Model(&book.Authors).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		for _, genre := range book.Genres {
			genre.BookID = book.ID
		}
		if len(book.Genres) > 0 {
			_, err := tx.
				NewInsert().
				Model(&book.Genres).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	return errors.WithStack(err)
}

// DeleteBook removes a book and its author and genre rows.
func (svc *Service) DeleteBook(ctx context.Context, id string) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*Author)(nil)).
			Where("book_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.
			NewDelete().
			Model((*BookGenre)(nil)).
			Where("book_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.
			NewDelete().
			Model((*Book)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}

func (svc *Service) sortNames(counts []NameCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return sortname.Less(counts[i].Name, counts[j].Name, svc.cyrillicFirst)
	})
}

func applyPage(q *bun.SelectQuery, limit, offset int) *bun.SelectQuery {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// escapeLike escapes the LIKE wildcards and the escape character itself so
// user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
