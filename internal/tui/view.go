package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/teledash/teledash/internal/query"
	"github.com/teledash/teledash/internal/textutil"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	inactiveTabStyle = lipgloss.NewStyle().
				Faint(true)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"}).
			Bold(true)
)

// column is one table column. A flex column takes the width left over by
// the fixed ones. Columns with a higher drop rank are hidden first when the
// terminal is too narrow.
type column struct {
	title string
	width int
	flex  bool
	drop  int
}

const (
	columnGap    = 1
	minFlexWidth = 12
)

var processedColumns = []column{
	{title: "Channel", width: 16},
	{title: "Msg ID", width: 8, drop: 3},
	{title: "Date", width: 19, drop: 2},
	{title: "Message", flex: true},
	{title: "Media", width: 14, drop: 4},
	{title: "Emoji", width: 8, drop: 5},
	{title: "YouTube", width: 18, drop: 1},
	{title: "Phone", width: 14, drop: 1},
}

var rawColumns = []column{
	{title: "Channel", width: 16},
	{title: "Msg ID", width: 8, drop: 3},
	{title: "Sender", width: 14, drop: 2},
	{title: "Timestamp", width: 19, drop: 1},
	{title: "Message", flex: true},
	{title: "Media", width: 14, drop: 4},
}

// layoutColumns returns the indexes of the columns that fit in width and the
// width of the flex column.
func layoutColumns(cols []column, width int) ([]int, int) {
	visible := make([]bool, len(cols))
	for i := range visible {
		visible[i] = true
	}
	for {
		used := 0
		n := 0
		for i, c := range cols {
			if !visible[i] {
				continue
			}
			n++
			used += c.width
		}
		flex := width - used - columnGap*(n-1) - 2
		if flex >= minFlexWidth {
			idx := make([]int, 0, n)
			for i := range cols {
				if visible[i] {
					idx = append(idx, i)
				}
			}
			return idx, flex
		}

		// Hide the visible column with the highest drop rank.
		victim, rank := -1, 0
		for i, c := range cols {
			if visible[i] && c.drop > rank {
				victim, rank = i, c.drop
			}
		}
		if victim < 0 {
			idx := make([]int, 0, n)
			for i := range cols {
				if visible[i] {
					idx = append(idx, i)
				}
			}
			return idx, max(flex, minFlexWidth)
		}
		visible[victim] = false
	}
}

// encodedLabel renders a normalized youtube/phone column for a table cell.
func encodedLabel(e query.Encoded, none string) string {
	if e.IsEmpty() {
		return none
	}
	return e.Join(", ")
}

func (m Model) processedCells(i int) []string {
	r := m.state.Processed.Rows[i]
	return []string{
		r.ChannelTitle,
		r.MessageID.String(),
		query.FormatTimestamp(r.MessageDate),
		r.Text,
		r.MediaLabel(),
		r.EmojiLabel(),
		encodedLabel(r.YouTube, query.NoYouTube),
		encodedLabel(r.Phone, query.NoPhone),
	}
}

func (m Model) rawCells(i int) []string {
	r := m.state.Raw.Rows[i]
	return []string{
		r.ChannelName,
		r.MessageID.String(),
		r.Sender,
		query.FormatTimestamp(r.Timestamp),
		r.Text,
		r.MediaLabel(),
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.modal != modalNone {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.modalView())
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.filterView())
	b.WriteString("\n")
	b.WriteString(m.tableView())
	b.WriteString(m.paginationView())
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	parts := []string{"teledash"}
	if m.version != "" {
		parts[0] += " " + m.version
	}
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("[%d] %s (%s)", t+1, t, textutil.FormatCount(m.total(t)))
		if t == m.active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	line := strings.Join(parts, " │ ")
	if m.busy() {
		line += "  " + spinnerStyle.Render(spinnerFrames[m.spinnerFrame])
	}
	return titleBarStyle.Render(padRight(line, max(m.width-2, 0)))
}

func (m Model) filterView() string {
	ts := m.tabs[m.active]
	switch m.input {
	case inputSearch:
		return ts.search.View()
	case inputDate:
		return m.dateInput.View()
	}

	var parts []string
	if ts.desc.ChannelName != "" {
		parts = append(parts, "Channel: "+ts.desc.ChannelName)
	} else if pending := ts.search.Value(); pending != "" {
		parts = append(parts, "Channel: "+pending+" (pending)")
	}
	if !ts.desc.Dates.IsZero() {
		parts = append(parts, "Dates: "+ts.desc.Dates.String())
	}
	if len(parts) == 0 {
		parts = append(parts, "No filters")
	}
	return statsStyle.Render(padRight(strings.Join(parts, "  "), max(m.width-2, 0)))
}

// tableView renders the header, the separator and one line per visible row,
// or the error panel in place of the table. It always fills the table area.
func (m Model) tableView() string {
	rowsHeight := m.visibleRows()
	var lines []string

	cols := processedColumns
	cells := m.processedCells
	if m.active == tabRaw {
		cols = rawColumns
		cells = m.rawCells
	}
	idx, flex := layoutColumns(cols, m.width)

	widthOf := func(i int) int {
		if cols[i].flex {
			return flex
		}
		return cols[i].width
	}
	renderLine := func(values []string, highlight string) string {
		var sb strings.Builder
		sb.WriteString(" ")
		for n, i := range idx {
			if n > 0 {
				sb.WriteString(strings.Repeat(" ", columnGap))
			}
			w := widthOf(i)
			cell := textutil.Truncate(values[i], w)
			if i == 0 && highlight != "" {
				cell = highlightTerm(cell, highlight)
			}
			sb.WriteString(padRight(cell, w))
		}
		return padRight(sb.String(), m.width)
	}

	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.title
	}
	lines = append(lines, tableHeaderStyle.Render(renderLine(titles, "")))
	lines = append(lines, separatorStyle.Render(strings.Repeat("─", m.width)))

	ts := m.tabs[m.active]
	n := m.rowCount(m.active)
	switch {
	case m.errMessage(m.active) != "":
		lines = append(lines, m.errorPanel(rowsHeight)...)
	case n == 0 && m.loading(m.active):
		lines = append(lines, loadingStyle.Render(padRight(" "+spinnerFrames[m.spinnerFrame]+" Loading messages...", m.width)))
	case n == 0:
		lines = append(lines, loadingStyle.Render(padRight(" No messages", m.width)))
	default:
		end := min(ts.scroll+rowsHeight, n)
		for i := ts.scroll; i < end; i++ {
			line := renderLine(cells(i), ts.desc.ChannelName)
			switch {
			case i == ts.cursor:
				line = cursorRowStyle.Render(line)
			case i%2 == 1:
				line = altRowStyle.Render(line)
			default:
				line = normalRowStyle.Render(line)
			}
			lines = append(lines, line)
		}
	}

	for len(lines) < rowsHeight+2 {
		lines = append(lines, normalRowStyle.Render(strings.Repeat(" ", m.width)))
	}
	return strings.Join(lines[:rowsHeight+2], "\n") + "\n"
}

// errorPanel replaces the rows of a table whose last request failed. The
// rows still held are kept for when the error clears.
func (m Model) errorPanel(height int) []string {
	msg := " Error: " + m.errMessage(m.active)
	var lines []string
	for _, l := range wrapText(msg, max(m.width-2, 10)) {
		lines = append(lines, errorStyle.Render(padRight(l, m.width)))
	}
	lines = append(lines, statsStyle.Render(padRight("Press r to retry", max(m.width-2, 0))))
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}

func (m Model) paginationView() string {
	ts := m.tabs[m.active]
	total := m.total(m.active)
	pages := max(query.PageCount(total, ts.desc.PageSize), 1)
	line := fmt.Sprintf("Page %d of %d · %d per page · %s total",
		ts.desc.Page, pages, ts.desc.PageSize, textutil.FormatCount(total))
	if n := m.rowCount(m.active); n > 0 {
		first := ts.desc.Offset() + 1
		line += fmt.Sprintf(" · rows %d-%d", first, first+n-1)
	}
	if m.loading(m.active) {
		line += " · loading"
	}
	if m.exporting {
		line += " · exporting"
	}
	return statsStyle.Render(padRight(line, max(m.width-2, 0)))
}

func (m Model) footerView() string {
	if m.flashMessage != "" {
		return flashStyle.Render(padRight(" "+m.flashMessage, m.width))
	}
	hints := "←/→ page  +/- size  / search  d dates  c clear  r reload"
	if m.active == tabRaw {
		hints += "  f fetch  p process"
	}
	hints += "  e csv  x excel  ? help  q quit"
	return footerStyle.Render(padRight(hints, max(m.width-2, 0)))
}

func (m Model) modalView() string {
	width := max(min(m.width-8, 100), 20)
	var b strings.Builder
	switch m.modal {
	case modalHelp:
		b.WriteString(modalTitleStyle.Render("Keys"))
		b.WriteString("\n\n")
		for _, kv := range helpLines {
			b.WriteString(padRight(kv[0], 14))
			b.WriteString(kv[1])
			b.WriteString("\n")
		}
	case modalDetail:
		b.WriteString(m.detailView(width))
	}
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc to close"))
	return modalStyle.Width(width).Render(b.String())
}

var helpLines = [][2]string{
	{"tab / 1 / 2", "switch table"},
	{"←/→  h/l", "previous / next page"},
	{"+ / -", "page size"},
	{"↑/↓  j/k", "move cursor"},
	{"enter", "message details"},
	{"/", "search channel"},
	{"d", "date range (YYYY-MM-DD..YYYY-MM-DD)"},
	{"c", "clear filters"},
	{"r", "reload"},
	{"f", "fetch recent messages (raw)"},
	{"p", "process raw messages (raw)"},
	{"e / x", "export CSV / Excel"},
	{"q", "quit"},
}

// detailView renders every field of the selected row. YouTube links and
// phone numbers get one terminal hyperlink per element.
func (m Model) detailView(width int) string {
	ts := m.tabs[m.active]
	var fields [][2]string
	var text string

	if m.active == tabRaw {
		if ts.cursor >= len(m.state.Raw.Rows) {
			return ""
		}
		r := m.state.Raw.Rows[ts.cursor]
		fields = [][2]string{
			{"Channel", r.ChannelName},
			{"Message ID", r.MessageID.String()},
			{"Sender", r.Sender},
			{"Timestamp", query.FormatTimestamp(r.Timestamp)},
			{"Media", r.MediaLabel()},
		}
		text = r.Text
	} else {
		if ts.cursor >= len(m.state.Processed.Rows) {
			return ""
		}
		r := m.state.Processed.Rows[ts.cursor]
		fields = [][2]string{
			{"Channel", r.ChannelTitle},
			{"Message ID", r.MessageID.String()},
			{"Date", query.FormatTimestamp(r.MessageDate)},
			{"Media", r.MediaLabel()},
			{"Emoji", r.EmojiLabel()},
			{"YouTube", links(r.YouTube, query.NoYouTube, "")},
			{"Phone", links(r.Phone, query.NoPhone, "tel:")},
		}
		text = r.Text
	}

	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Message"))
	b.WriteString("\n\n")
	for _, f := range fields {
		b.WriteString(padRight(f[0]+":", 12))
		b.WriteString(f[1])
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, l := range wrapText(text, width-4) {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

// links renders each element of e as its own hyperlink, one per line.
func links(e query.Encoded, none, scheme string) string {
	items := e.Items()
	if len(items) == 0 {
		return none
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = ansi.SetHyperlink(scheme+it) + it + ansi.ResetHyperlink()
	}
	return strings.Join(out, "\n"+strings.Repeat(" ", 12))
}
