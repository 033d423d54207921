package users

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"":        "%%",
		"Ada":     "%ada%",
		"_":       `%\_%`,
		"100%":    `%100\%%`,
		`back\sl`: `%back\\sl%`,
		"a_b%c":   `%a\_b\%c%`,
	}
	for in, want := range cases {
		assert.Equal(t, want, likePattern(in), in)
	}
}

func TestListFilterClampsPage(t *testing.T) {
	f := ListFilter{Page: math.MaxInt, PerPage: math.MaxInt}.normalized()
	assert.Equal(t, maxPage, f.Page)
	assert.Equal(t, maxPerPage, f.PerPage)
	assert.Positive(t, f.offset())

	f = ListFilter{Page: -3}.normalized()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 0, f.offset())
}
