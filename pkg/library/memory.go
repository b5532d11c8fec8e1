package library

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/sortname"
	"github.com/tinyopds/tinyopds/pkg/soundex"
)

// MemoryStore keeps the whole catalog in a slice. It mirrors the Service
// query semantics so feed code can be exercised without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	books         []*Book
	cyrillicFirst bool
}

func NewMemoryStore(cyrillicFirst bool) *MemoryStore {
	return &MemoryStore{cyrillicFirst: cyrillicFirst}
}

var _ Store = (*MemoryStore)(nil)

// Add inserts a book, filling the id, timestamps and derived sort columns
// the same way the SQL service does on create.
func (st *MemoryStore) Add(book *Book) {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	if book.SortTitle == "" {
		book.DeriveSortFields(st.cyrillicFirst)
	}
	for i, author := range book.Authors {
		author.BookID = book.ID
		if author.Sequence == 0 {
			author.Sequence = i + 1
		}
		if author.SortKey == "" {
			derived := NewAuthor(book.ID, author.Name, st.cyrillicFirst)
			author.SortName = derived.SortName
			author.SortKey = derived.SortKey
			author.Soundex = derived.Soundex
		}
	}
	for _, genre := range book.Genres {
		genre.BookID = book.ID
	}

	st.mu.Lock()
	st.books = append(st.books, book)
	st.mu.Unlock()
}

func (st *MemoryStore) GetBook(_ context.Context, id string) (*Book, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, b := range st.books {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, errcodes.NotFound("Book")
}

func (st *MemoryStore) CountBooks(_ context.Context) (int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.books), nil
}

func (st *MemoryStore) NewBooks(_ context.Context, opts NewBooksOptions) ([]*Book, int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	matched := st.filter(func(b *Book) bool {
		return opts.Since.IsZero() || !b.CreatedAt.Before(opts.Since)
	})
	if opts.ByTitle {
		sortByTitle(matched)
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].SortTitle < matched[j].SortTitle
		})
	}
	page, total := paginate(matched, opts.Limit, opts.Offset)
	return page, total, nil
}

func (st *MemoryStore) AuthorsByPrefix(_ context.Context, prefix string) ([]NameCount, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	return st.groupAuthors(func(a *Author) bool {
		return strings.HasPrefix(a.SortName, prefix)
	}), nil
}

func (st *MemoryStore) SearchAuthors(_ context.Context, term string) ([]NameCount, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	lower := strings.ToLower(term)
	counts := st.groupAuthors(func(a *Author) bool {
		return strings.Contains(a.SortName, lower)
	})
	if len(counts) > 0 {
		return counts, nil
	}

	code := soundex.Code(term)
	if code == "" {
		return counts, nil
	}
	return st.groupAuthors(func(a *Author) bool {
		return a.Soundex == code
	}), nil
}

func (st *MemoryStore) AuthorBooks(_ context.Context, opts AuthorBooksOptions) ([]*Book, int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	matched := st.filter(func(b *Book) bool {
		if opts.NoSeries && b.Sequence != nil {
			return false
		}
		for _, a := range b.Authors {
			if a.Name == opts.Author {
				return true
			}
		}
		return false
	})
	if opts.ByDate {
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].SortTitle < matched[j].SortTitle
		})
	} else {
		sortByTitle(matched)
	}
	page, total := paginate(matched, opts.Limit, opts.Offset)
	return page, total, nil
}

func (st *MemoryStore) AuthorSeries(_ context.Context, author string) ([]NameCount, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	counts := st.groupSeries(func(b *Book) bool {
		for _, a := range b.Authors {
			if a.Name == author {
				return true
			}
		}
		return false
	})
	st.sortNames(counts)
	return counts, nil
}

func (st *MemoryStore) SeriesByPrefix(_ context.Context, prefix string) ([]NameCount, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	counts := st.groupSeries(func(b *Book) bool {
		return strings.HasPrefix(strings.ToLower(*b.Sequence), prefix)
	})
	st.sortNames(counts)
	return counts, nil
}

func (st *MemoryStore) SearchSeries(_ context.Context, term string) ([]NameCount, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	lower := strings.ToLower(term)
	counts := st.groupSeries(func(b *Book) bool {
		return strings.Contains(strings.ToLower(*b.Sequence), lower)
	})
	if len(counts) == 0 {
		if code := soundex.Code(term); code != "" {
			counts = st.groupSeries(func(b *Book) bool {
				return soundex.Code(*b.Sequence) == code
			})
		}
	}
	st.sortNames(counts)
	return counts, nil
}

func (st *MemoryStore) SeriesBooks(_ context.Context, series string, limit, offset int) ([]*Book, int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	matched := st.filter(func(b *Book) bool {
		return b.Sequence != nil && *b.Sequence == series
	})
	sort.SliceStable(matched, func(i, j int) bool {
		ni, nj := matched[i].SequenceNo, matched[j].SequenceNo
		switch {
		case ni == nil && nj == nil:
			return matched[i].SortTitle < matched[j].SortTitle
		case ni == nil:
			return false
		case nj == nil:
			return true
		case *ni != *nj:
			return *ni < *nj
		default:
			return matched[i].SortTitle < matched[j].SortTitle
		}
	})
	page, total := paginate(matched, limit, offset)
	return page, total, nil
}

func (st *MemoryStore) GenreCounts(_ context.Context) (map[string]int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	counts := map[string]int{}
	for _, b := range st.books {
		seen := map[string]bool{}
		for _, g := range b.Genres {
			if !seen[g.Code] {
				counts[g.Code]++
				seen[g.Code] = true
			}
		}
	}
	return counts, nil
}

func (st *MemoryStore) GenreBooks(_ context.Context, code string, limit, offset int) ([]*Book, int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	matched := st.filter(func(b *Book) bool {
		for _, g := range b.Genres {
			if g.Code == code {
				return true
			}
		}
		return false
	})
	sortByTitle(matched)
	page, total := paginate(matched, limit, offset)
	return page, total, nil
}

func (st *MemoryStore) SearchBooks(_ context.Context, term string, limit, offset int) ([]*Book, int, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	lower := strings.ToLower(term)
	matched := st.filter(func(b *Book) bool {
		return strings.Contains(b.SearchTitle, lower)
	})
	if len(matched) == 0 {
		if code := soundex.Code(term); code != "" {
			matched = st.filter(func(b *Book) bool {
				return b.Soundex == code
			})
		}
	}
	sortByTitle(matched)
	page, total := paginate(matched, limit, offset)
	return page, total, nil
}

func (st *MemoryStore) filter(keep func(*Book) bool) []*Book {
	matched := []*Book{}
	for _, b := range st.books {
		if keep(b) {
			matched = append(matched, b)
		}
	}
	return matched
}

// groupAuthors returns distinct author names matching keep, counted by book
// and ordered by sort key.
func (st *MemoryStore) groupAuthors(keep func(*Author) bool) []NameCount {
	index := map[string]int{}
	keys := map[string]string{}
	counts := []NameCount{}
	for _, b := range st.books {
		for _, a := range b.Authors {
			if !keep(a) {
				continue
			}
			i, ok := index[a.Name]
			if !ok {
				i = len(counts)
				index[a.Name] = i
				keys[a.Name] = a.SortKey
				counts = append(counts, NameCount{Name: a.Name})
			}
			counts[i].Count++
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return keys[counts[i].Name] < keys[counts[j].Name]
	})
	return counts
}

func (st *MemoryStore) groupSeries(keep func(*Book) bool) []NameCount {
	index := map[string]int{}
	counts := []NameCount{}
	for _, b := range st.books {
		if b.Sequence == nil || !keep(b) {
			continue
		}
		i, ok := index[*b.Sequence]
		if !ok {
			i = len(counts)
			index[*b.Sequence] = i
			counts = append(counts, NameCount{Name: *b.Sequence})
		}
		counts[i].Count++
	}
	return counts
}

func (st *MemoryStore) sortNames(counts []NameCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return sortname.Less(counts[i].Name, counts[j].Name, st.cyrillicFirst)
	})
}

func sortByTitle(books []*Book) {
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].SortTitle < books[j].SortTitle
	})
}

func paginate(books []*Book, limit, offset int) ([]*Book, int) {
	total := len(books)
	if offset > 0 {
		if offset >= total {
			return []*Book{}, total
		}
		books = books[offset:]
	}
	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}
	return books, total
}
