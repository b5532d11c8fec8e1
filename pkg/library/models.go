package library

import (
	"strings"
	"time"

	"github.com/tinyopds/tinyopds/pkg/sortname"
	"github.com/tinyopds/tinyopds/pkg/soundex"
	"github.com/uptrace/bun"
)

const (
	BookTypeFB2  = "fb2"
	BookTypeEPUB = "epub"
)

// PathSeparator splits a container path from an inner entry name in
// Book.FilePath ("books.zip@author/title.fb2").
const PathSeparator = "@"

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        string    `bun:",pk,nullzero"`
	CreatedAt time.Time `bun:",nullzero"`
	UpdatedAt time.Time `bun:",nullzero"`

	Title       string `bun:",nullzero"`
	SortTitle   string `bun:",nullzero"`
	SearchTitle string `bun:",nullzero"`
	Soundex     string `bun:",nullzero"`

	Language   string    `bun:",nullzero"`
	BookDate   time.Time `bun:",nullzero"`
	Sequence   *string
	SequenceNo *int
	Annotation *string

	FilePath string `bun:",nullzero"`
	BookType string `bun:",nullzero"`
	FileSize int64

	Authors []*Author    `bun:"rel:has-many,join:id=book_id"`
	Genres  []*BookGenre `bun:"rel:has-many,join:id=book_id"`
}

// DeriveSortFields fills the computed columns from Title. cyrillicFirst
// selects which alphabet leads the collation order.
func (b *Book) DeriveSortFields(cyrillicFirst bool) {
	b.SortTitle = sortname.Key(b.Title, cyrillicFirst)
	b.SearchTitle = strings.ToLower(strings.TrimSpace(b.Title))
	b.Soundex = soundex.Code(b.Title)
}

// HasDate reports whether the book carries a real publication date. Years
// at or below 1 mean the source document had none.
func (b *Book) HasDate() bool {
	return b.BookDate.Year() > 1
}

// AuthorNames returns the display names in author order.
func (b *Book) AuthorNames() []string {
	names := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		names = append(names, a.Name)
	}
	return names
}

// GenreCodes returns the FB2 genre codes attached to the book.
func (b *Book) GenreCodes() []string {
	codes := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		codes = append(codes, g.Code)
	}
	return codes
}

// InContainer reports whether FilePath points inside a ZIP container, and
// if so returns the container path and the entry name.
func (b *Book) InContainer() (container, entry string, ok bool) {
	i := strings.Index(b.FilePath, PathSeparator)
	if i < 0 {
		return "", "", false
	}
	return b.FilePath[:i], b.FilePath[i+1:], true
}

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID     int64  `bun:",pk,autoincrement"`
	BookID string `bun:",nullzero"`

	Name     string `bun:",nullzero"`
	SortName string `bun:",nullzero"`
	SortKey  string `bun:",nullzero"`
	Soundex  string `bun:",nullzero"`
	Sequence int
}

// NewAuthor builds an author row for one book with the derived columns
// filled in.
func NewAuthor(bookID, name string, cyrillicFirst bool) *Author {
	name = strings.TrimSpace(name)
	return &Author{
		BookID:   bookID,
		Name:     name,
		SortName: strings.ToLower(name),
		SortKey:  sortname.Key(name, cyrillicFirst),
		Soundex:  soundex.Code(name),
	}
}

type BookGenre struct {
	bun.BaseModel `bun:"table:book_genres,alias:bg"`

	ID     int64  `bun:",pk,autoincrement"`
	BookID string `bun:",nullzero"`
	Code   string `bun:",nullzero"`
}

type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	Token      string    `bun:",pk,nullzero"`
	IPAddress  string    `bun:",nullzero"`
	Username   string    `bun:",nullzero"`
	CreatedAt  time.Time `bun:",nullzero"`
	LastAccess time.Time `bun:",nullzero"`
}

type AuthorizedClient struct {
	bun.BaseModel `bun:"table:authorized_clients,alias:ac"`

	Fingerprint string    `bun:",pk,nullzero"`
	Username    string    `bun:",nullzero"`
	CreatedAt   time.Time `bun:",nullzero"`
}
