// Package textutil holds the text helpers shared by the dashboard and the
// command-line output.
package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var countPrinter = message.NewPrinter(language.English)

// FormatCount formats a count with thousands separators (e.g., "12,345").
func FormatCount(n int64) string {
	return countPrinter.Sprintf("%d", n)
}

// Truncate shortens s to fit within maxWidth terminal cells.
// Newlines, carriage returns and tabs are flattened first so a message body
// cannot break a table layout.
func Truncate(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
