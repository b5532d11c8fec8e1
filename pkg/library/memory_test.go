package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	st := NewMemoryStore(true)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	st.Add(&Book{
		ID:        "war-and-peace",
		Title:     "Война и мир",
		FilePath:  "/lib/tolstoy/war.fb2",
		BookType:  BookTypeFB2,
		CreatedAt: base,
		Authors:   []*Author{{Name: "Толстой Лев Николаевич"}},
		Genres:    []*BookGenre{{Code: "prose_rus_classic"}},
	})
	st.Add(&Book{
		ID:         "andromeda",
		Title:      "Туманность Андромеды",
		Sequence:   strptr("Великое кольцо"),
		SequenceNo: intptr(1),
		FilePath:   "books.zip@efremov/andromeda.fb2",
		BookType:   BookTypeFB2,
		CreatedAt:  base.AddDate(0, 0, 1),
		Authors:    []*Author{{Name: "Ефремов Иван Антонович"}},
		Genres:     []*BookGenre{{Code: "sf"}},
	})
	st.Add(&Book{
		ID:         "hour-of-the-bull",
		Title:      "Час Быка",
		Sequence:   strptr("Великое кольцо"),
		SequenceNo: intptr(2),
		FilePath:   "books.zip@efremov/bull.fb2",
		BookType:   BookTypeFB2,
		CreatedAt:  base.AddDate(0, 0, 2),
		Authors:    []*Author{{Name: "Ефремов Иван Антонович"}},
		Genres:     []*BookGenre{{Code: "sf"}, {Code: "sf_social"}},
	})
	return st
}

func TestMemoryStoreMatchesServiceSemantics(t *testing.T) {
	t.Parallel()
	st := seedMemory(t)
	ctx := context.Background()

	count, err := st.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	books, total, err := st.NewBooks(ctx, NewBooksOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"Час Быка", "Туманность Андромеды", "Война и мир"}, titles(books))

	books, _, err = st.NewBooks(ctx, NewBooksOptions{ByTitle: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Война и мир", "Туманность Андромеды"}, titles(books))

	_, err = st.GetBook(ctx, "nope")
	require.Error(t, err)
}

func TestMemoryStoreAuthors(t *testing.T) {
	t.Parallel()
	st := seedMemory(t)
	ctx := context.Background()

	counts, err := st.AuthorsByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ефремов Иван Антонович", "Толстой Лев Николаевич"}, names(counts))
	assert.Equal(t, 2, counts[0].Count)

	counts, err = st.SearchAuthors(ctx, "Талстой")
	require.NoError(t, err)
	assert.Equal(t, []string{"Толстой Лев Николаевич"}, names(counts))

	books, total, err := st.AuthorBooks(ctx, AuthorBooksOptions{Author: "Ефремов Иван Антонович"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"Туманность Андромеды", "Час Быка"}, titles(books))
}

func TestMemoryStoreSeriesAndGenres(t *testing.T) {
	t.Parallel()
	st := seedMemory(t)
	ctx := context.Background()

	counts, err := st.SeriesByPrefix(ctx, "вел")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "Великое кольцо", counts[0].Name)
	assert.Equal(t, 2, counts[0].Count)

	books, _, err := st.SeriesBooks(ctx, "Великое кольцо", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Туманность Андромеды", "Час Быка"}, titles(books))

	genreCounts, err := st.GenreCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, genreCounts["sf"])

	books, total, err := st.SearchBooks(ctx, "час", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"Час Быка"}, titles(books))
}
