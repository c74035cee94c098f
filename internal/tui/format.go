package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// highlightTerm wraps case-insensitive occurrences of term in text with
// highlightStyle. It works on runes so that case folding that changes byte
// length cannot shift the match offsets.
func highlightTerm(text, term string) string {
	if term == "" || text == "" {
		return text
	}
	textRunes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))
	termRunes := []rune(strings.ToLower(term))
	if len(lowerRunes) != len(textRunes) {
		return text
	}

	var sb strings.Builder
	prev := 0
	for i := 0; i <= len(lowerRunes)-len(termRunes); i++ {
		if string(lowerRunes[i:i+len(termRunes)]) != string(termRunes) {
			continue
		}
		sb.WriteString(string(textRunes[prev:i]))
		sb.WriteString(highlightStyle.Render(string(textRunes[i : i+len(termRunes)])))
		i += len(termRunes) - 1
		prev = i + 1
	}
	if prev == 0 {
		return text
	}
	sb.WriteString(string(textRunes[prev:]))
	return sb.String()
}

// padRight pads a string with spaces to fill width terminal cells.
// Uses lipgloss.Width to correctly handle ANSI codes and full-width characters.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// wrapText wraps text to width cells, breaking at spaces and splitting
// words longer than a line.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}
	wrapped := ansi.Hardwrap(ansi.Wordwrap(text, width, ""), width, false)
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}
