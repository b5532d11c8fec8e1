package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenreTreeCodesAreUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, sec := range GenreTree() {
		require.NotEmpty(t, sec.ID)
		require.NotEmpty(t, sec.Genres, sec.ID)
		for _, g := range sec.Genres {
			assert.False(t, seen[g.Code], "duplicate code %s", g.Code)
			seen[g.Code] = true
		}
	}
	assert.True(t, seen["sf_fantasy"])
	assert.True(t, seen["det_classic"])
}

func TestGenreSectionByID(t *testing.T) {
	t.Parallel()

	sec := GenreSectionByID("sf")
	require.NotNil(t, sec)
	assert.Equal(t, "Science Fiction", sec.NameEn)
	assert.Equal(t, "Фантастика", sec.NameRu)

	assert.Nil(t, GenreSectionByID("nope"))
}

func TestGenreName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Киберпанк", GenreName("sf_cyberpunk", "ru"))
	assert.Equal(t, "Cyberpunk", GenreName("sf_cyberpunk", "en"))
	assert.Equal(t, "Cyberpunk", GenreName("sf_cyberpunk", "de"))
	assert.Equal(t, "weird_code", GenreName("weird_code", "ru"))

	assert.True(t, KnownGenre("humor_anecdote"))
	assert.False(t, KnownGenre("weird_code"))
}
