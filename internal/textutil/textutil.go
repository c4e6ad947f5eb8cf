// Package textutil formats text for fixed-width terminal cells.
package textutil

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// Ellipsis is the default placeholder appended by Shorten.
const Ellipsis = "…"

const badgeCap = 999

// Shorten collapses runs of whitespace and, when the result is wider than
// width cells, cuts it so that it ends with placeholder and fits in width.
func Shorten(text string, width int, placeholder string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(text) <= width {
		return text
	}
	room := width - runewidth.StringWidth(placeholder)
	if room <= 0 {
		return runewidth.Truncate(placeholder, max(width, 0), "")
	}
	return strings.TrimSpace(runewidth.Truncate(text, room, "")) + placeholder
}

// Badge renders an unread counter, capped at +999.
func Badge(n int) string {
	if n < badgeCap {
		return strconv.Itoa(n)
	}
	return "+" + strconv.Itoa(badgeCap)
}

// Title is the terminal window title for name with n unread messages.
func Title(name string, n int) string {
	if n <= 0 {
		return name
	}
	return "(" + Badge(n) + ") " + name
}

// Wrap word-wraps text to width cells, breaking words that do not fit on a
// line of their own.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wrap.String(wordwrap.String(text, width), width)
}

// Pad right-pads s with spaces to width cells, truncating when wider.
func Pad(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "")
	return runewidth.FillRight(s, width)
}
