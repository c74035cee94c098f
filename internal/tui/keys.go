package tui

import (
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teledash/teledash/internal/export"
	"github.com/teledash/teledash/internal/query"
)

// handleKey routes a key press to the modal, the active input or the table.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	switch m.input {
	case inputSearch:
		return m.handleSearchKeys(msg)
	case inputDate:
		return m.handleDateKeys(msg)
	}
	return m.handleTableKeys(msg)
}

func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", "?":
		m.modal = modalNone
	}
	return m, nil
}

func (m Model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ts := &m.tabs[m.active]

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	// Tabs
	case "tab", "shift+tab":
		m.active = (m.active + 1) % tabCount
	case "1":
		m.active = tabProcessed
	case "2":
		m.active = tabRaw

	// Pagination
	case "left", "h", "pgup":
		if ts.desc.Page > 1 {
			cmd := m.setDescriptor(m.active, ts.desc.WithPage(ts.desc.Page-1))
			return m, cmd
		}
	case "right", "l", "pgdown":
		if ts.desc.Page < query.PageCount(m.total(m.active), ts.desc.PageSize) {
			cmd := m.setDescriptor(m.active, ts.desc.WithPage(ts.desc.Page+1))
			return m, cmd
		}
	case "+", "=":
		cmd := m.cyclePageSize(1)
		return m, cmd
	case "-", "_":
		cmd := m.cyclePageSize(-1)
		return m, cmd

	// Row cursor
	case "up", "k":
		ts.cursor--
		m.clampCursor(m.active)
	case "down", "j":
		ts.cursor++
		m.clampCursor(m.active)
	case "home":
		ts.cursor = 0
		m.clampCursor(m.active)
	case "end":
		ts.cursor = m.rowCount(m.active) - 1
		m.clampCursor(m.active)
	case "enter":
		if m.rowCount(m.active) > 0 {
			m.modal = modalDetail
		}
	case "?":
		m.modal = modalHelp

	// Filters
	case "/":
		m.input = inputSearch
		ts.search.CursorEnd()
		cmd := ts.search.Focus()
		return m, cmd
	case "d":
		m.input = inputDate
		m.dateInput.SetValue(ts.desc.Dates.String())
		m.dateInput.CursorEnd()
		cmd := m.dateInput.Focus()
		return m, cmd
	case "c":
		if !ts.desc.HasFilters() && ts.search.Value() == "" {
			return m, nil
		}
		ts.search.SetValue("")
		ts.debounceID++
		next := ts.desc.WithSearch("").WithDateRange(query.DateRange{})
		cmd := m.setDescriptor(m.active, next)
		return m, cmd
	case "r":
		cmd := m.issue(m.active)
		return m, cmd

	// Actions
	case "f":
		if m.active != tabRaw {
			cmd := m.showFlash("Fetch recent works on the Raw tab (press 2)")
			return m, cmd
		}
		cmd := m.run(m.dispatcher.FetchRecent())
		return m, cmd
	case "p":
		if m.active != tabRaw {
			cmd := m.showFlash("Process works on the Raw tab (press 2)")
			return m, cmd
		}
		cmd := m.run(m.dispatcher.ProcessMessages(nil))
		return m, cmd
	case "e":
		cmd := m.exportTable(export.FormatCSV)
		return m, cmd
	case "x":
		cmd := m.exportTable(export.FormatExcel)
		return m, cmd
	}
	return m, nil
}

// cyclePageSize moves to the next (dir > 0) or previous page size option.
// The current page is kept unless it would lie past the last page.
func (m *Model) cyclePageSize(dir int) tea.Cmd {
	ts := &m.tabs[m.active]
	opts := query.PageSizeOptions
	i := slices.Index(opts, ts.desc.PageSize)
	if i >= 0 {
		i = (i + dir + len(opts)) % len(opts)
	} else {
		i = nearestPageSize(opts, ts.desc.PageSize, dir)
	}

	next := ts.desc.WithPageSize(opts[i])
	if pages := query.PageCount(m.total(m.active), next.PageSize); pages > 0 && next.Page > pages {
		next = next.WithPage(pages)
	}
	if next == ts.desc {
		return nil
	}
	return m.setDescriptor(m.active, next)
}

// nearestPageSize returns the index of the closest option past size in
// direction dir, wrapping around when there is none. opts is ascending.
func nearestPageSize(opts []int, size, dir int) int {
	if dir > 0 {
		for i, o := range opts {
			if o > size {
				return i
			}
		}
		return 0
	}
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i] < size {
			return i
		}
	}
	return len(opts) - 1
}

// handleSearchKeys edits the channel search. Every keystroke restarts the
// debounce window; only the last timer applies the term.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.active
	ts := &m.tabs[t]

	switch msg.String() {
	case "esc":
		// Drop the search entirely.
		m.input = inputNone
		ts.search.Blur()
		ts.search.SetValue("")
		ts.debounceID++
		cmd := m.applySearch(t, "")
		return m, cmd
	case "enter":
		// Apply immediately and cancel the pending timer.
		m.input = inputNone
		ts.search.Blur()
		ts.debounceID++
		cmd := m.applySearch(t, ts.search.Value())
		return m, cmd
	}

	before := ts.search.Value()
	var cmd tea.Cmd
	ts.search, cmd = ts.search.Update(msg)
	if ts.search.Value() == before {
		return m, cmd
	}

	ts.debounceID++
	id, term := ts.debounceID, ts.search.Value()
	debounce := tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{tab: t, query: term, debounceID: id}
	})
	return m, tea.Batch(cmd, debounce)
}

// handleDateKeys edits the date range. The range is applied on enter.
func (m Model) handleDateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ts := &m.tabs[m.active]

	switch msg.String() {
	case "esc":
		m.input = inputNone
		m.dateInput.Blur()
		return m, nil
	case "enter":
		m.input = inputNone
		m.dateInput.Blur()
		next := ts.desc.WithDateRange(query.ParseDateRange(m.dateInput.Value()))
		if next == ts.desc {
			return m, nil
		}
		cmd := m.setDescriptor(m.active, next)
		return m, cmd
	}

	var cmd tea.Cmd
	m.dateInput, cmd = m.dateInput.Update(msg)
	return m, cmd
}
