package textutil

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

func TestShorten(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		width       int
		placeholder string
		want        string
	}{
		{"fits", "hello world", 20, Ellipsis, "hello world"},
		{"collapses whitespace", "  hello \n\t world  ", 20, Ellipsis, "hello world"},
		{"exact width", "hello", 5, Ellipsis, "hello"},
		{"cut with ellipsis", "hello world", 8, Ellipsis, "hello w…"},
		{"trims before placeholder", "hello world", 7, Ellipsis, "hello…"},
		{"bracket placeholder", "a long quoted message", 12, "[…]", "a long qu[…]"},
		{"wide runes", "日本語のテキスト", 7, Ellipsis, "日本語…"},
		{"placeholder wider than width", "hello world", 2, "[…]", "[…"},
		{"zero width", "hello", 0, Ellipsis, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shorten(tt.text, tt.width, tt.placeholder)
			require.Equal(t, tt.want, got)
			require.LessOrEqual(t, runewidth.StringWidth(got), max(tt.width, 0))
		})
	}
}

func TestBadgeAndTitle(t *testing.T) {
	require.Equal(t, "0", Badge(0))
	require.Equal(t, "998", Badge(998))
	require.Equal(t, "+999", Badge(999))
	require.Equal(t, "+999", Badge(12000))

	require.Equal(t, "curseddelta", Title("curseddelta", 0))
	require.Equal(t, "(3) curseddelta", Title("curseddelta", 3))
	require.Equal(t, "(+999) curseddelta", Title("curseddelta", 5000))
}

func TestWrap(t *testing.T) {
	got := Wrap("the quick brown fox", 10)
	require.Equal(t, "the quick\nbrown fox", got)

	long := Wrap(strings.Repeat("x", 25), 10)
	for _, line := range strings.Split(long, "\n") {
		require.LessOrEqual(t, len(line), 10)
	}
	require.Equal(t, "unchanged", Wrap("unchanged", 0))
}

func TestPad(t *testing.T) {
	require.Equal(t, "ab   ", Pad("ab", 5))
	require.Equal(t, "abc", Pad("abcdef", 3))
	require.Equal(t, "", Pad("abc", 0))
}
