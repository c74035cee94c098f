// Package tui provides the terminal dashboard for browsing processed and raw
// Telegram messages.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/export"
	"github.com/teledash/teledash/internal/query"
	"github.com/teledash/teledash/internal/textutil"
)

const (
	// flashDuration is how long flash notifications stay on screen.
	flashDuration = 4 * time.Second

	// defaultSearchDebounce is the quiescence window before a search term
	// is applied.
	defaultSearchDebounce = 300 * time.Millisecond

	// headerFooterLines is the number of lines used by the title bar, the
	// filter line, the table header and separator, the pagination line and
	// the footer.
	headerFooterLines = 6
)

// spinnerFrames defines the braille dot animation frames.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// tab identifies one of the two tables.
type tab int

const (
	tabProcessed tab = iota
	tabRaw
	tabCount
)

func (t tab) String() string {
	if t == tabRaw {
		return "Raw"
	}
	return "Processed"
}

func (t tab) slice() dataset.Slice {
	if t == tabRaw {
		return dataset.SliceRaw
	}
	return dataset.SliceProcessed
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputDate
)

type modalType int

const (
	modalNone modalType = iota
	modalDetail
	modalHelp
)

// tabState holds the view parameters of one table. desc is the applied
// descriptor; the search input may hold a newer term still waiting for its
// debounce window.
type tabState struct {
	desc       query.Descriptor
	search     textinput.Model
	debounceID uint64
	cursor     int
	scroll     int
}

// Options configures the dashboard.
type Options struct {
	Version        string
	PageSize       int
	SearchDebounce time.Duration
	// Context scopes every request the dashboard issues. Defaults to
	// context.Background().
	Context context.Context
	Logger  *slog.Logger
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	dispatcher *dispatch.Dispatcher
	exporter   *export.Exporter
	ctx        context.Context
	logger     *slog.Logger
	version    string
	debounce   time.Duration

	state     dataset.State
	tabs      [tabCount]tabState
	active    tab
	input     inputMode
	dateInput textinput.Model
	modal     modalType

	exporting bool

	// Flash notification
	flashMessage   string
	flashExpiresAt time.Time

	// Spinner animation
	spinnerFrame  int
	spinnerActive bool

	// initial holds the first loads, pending until Init runs them.
	initial []*dispatch.Call

	width    int
	height   int
	quitting bool
}

// Message types for async operations.
type eventMsg struct {
	ev dataset.Event
}

type searchDebounceMsg struct {
	tab        tab
	query      string
	debounceID uint64
}

type exportDoneMsg struct {
	result *export.Result
	err    error
}

type flashClearMsg struct{}

type spinnerTickMsg struct{}

// New creates a dashboard model. Both tables start on page 1 without filters.
func New(d *dispatch.Dispatcher, e *export.Exporter, opts Options) Model {
	if opts.PageSize <= 0 {
		opts.PageSize = query.DefaultPageSize
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = defaultSearchDebounce
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := Model{
		dispatcher: d,
		exporter:   e,
		ctx:        opts.Context,
		logger:     opts.Logger,
		version:    opts.Version,
		debounce:   opts.SearchDebounce,
		state:      dataset.NewState(),
		width:      100,
		height:     24,
	}
	for i := range m.tabs {
		ti := textinput.New()
		ti.Placeholder = "channel name"
		ti.Prompt = "/"
		ti.CharLimit = 200
		m.tabs[i] = tabState{
			desc:   query.NewDescriptor(1, opts.PageSize),
			search: ti,
		}
	}
	di := textinput.New()
	di.Placeholder = "YYYY-MM-DD..YYYY-MM-DD"
	di.Prompt = "dates: "
	di.CharLimit = 32
	m.dateInput = di

	// Init cannot change the model, so the first loads are marked pending
	// here and only performed there.
	m.initial = []*dispatch.Call{
		d.ListMessages(m.tabs[tabProcessed].desc),
		d.ListRawMessages(m.tabs[tabRaw].desc),
	}
	for _, call := range m.initial {
		m.state = dataset.Reduce(m.state, call.Pending())
	}
	m.spinnerActive = true
	return m
}

// Init loads the first page of both tables.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{spinnerTick()}
	for _, call := range m.initial {
		cmds = append(cmds, m.perform(call))
	}
	return tea.Batch(cmds...)
}

// issue reduces the pending phase of a new list request for t and returns
// the command that performs it. It must be called on the model that Update
// returns so the pending state is kept.
func (m *Model) issue(t tab) tea.Cmd {
	desc := m.tabs[t].desc
	var call *dispatch.Call
	if t == tabRaw {
		call = m.dispatcher.ListRawMessages(desc)
	} else {
		call = m.dispatcher.ListMessages(desc)
	}
	return m.run(call)
}

// run marks call pending and performs it off the update loop.
func (m *Model) run(call *dispatch.Call) tea.Cmd {
	m.state = dataset.Reduce(m.state, call.Pending())
	return tea.Batch(m.perform(call), m.startSpinner())
}

// perform returns the command that executes an already pending call.
func (m Model) perform(call *dispatch.Call) tea.Cmd {
	d, ctx, logger := m.dispatcher, m.ctx, m.logger
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("request panicked", "op", call.Op, "panic", r)
				msg = eventMsg{ev: dataset.Event{
					Op:        call.Op,
					Phase:     dataset.Rejected,
					RequestID: call.ID,
					Err:       fmt.Sprintf("%s failed: %v", call.Op, r),
				}}
			}
		}()
		return eventMsg{ev: d.Run(ctx, call)}
	}
}

// exportTable starts an export of the active table in format f.
func (m *Model) exportTable(f export.Format) tea.Cmd {
	if m.exporting {
		return m.showFlash("Export already in progress")
	}
	req := export.Request{
		Table:  m.active.slice(),
		Format: f,
		View:   m.tabs[m.active].desc,
		Total:  m.total(m.active),
	}
	if m.exporter.Empty(req) {
		// Nothing to load; report it without touching the network.
		return m.showFlash(export.FailureNotice(export.ErrNoData))
	}
	m.exporting = true
	e, ctx, logger := m.exporter, m.ctx, m.logger
	run := func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("export panicked", "panic", r)
				msg = exportDoneMsg{err: fmt.Errorf("%w: %v", export.ErrFetch, r)}
			}
		}()
		res, err := e.Export(ctx, req)
		return exportDoneMsg{result: res, err: err}
	}
	return tea.Batch(run, m.startSpinner())
}

// showFlash displays a transient notification.
func (m *Model) showFlash(msg string) tea.Cmd {
	m.flashMessage = msg
	m.flashExpiresAt = time.Now().Add(flashDuration)
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// startSpinner starts the spinner animation if it isn't already running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	return spinnerTick()
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// busy reports whether anything is worth animating the spinner for.
func (m Model) busy() bool {
	return m.state.Processed.Loading || m.state.Raw.Loading || m.exporting
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 20)
		m.height = max(msg.Height, headerFooterLines+1)
		for i := range m.tabs {
			m.tabs[i].search.Width = max(m.width-4, 10)
			m.clampCursor(tab(i))
		}
		m.dateInput.Width = max(m.width-10, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		return m.handleEvent(msg.ev)

	case searchDebounceMsg:
		// Only the most recent keystroke's timer may apply the term.
		if msg.debounceID != m.tabs[msg.tab].debounceID {
			return m, nil
		}
		cmd := m.applySearch(msg.tab, msg.query)
		return m, cmd

	case exportDoneMsg:
		m.exporting = false
		if msg.err != nil {
			m.logger.Warn("export failed", "error", msg.err)
			cmd := m.showFlash(export.FailureNotice(msg.err))
			return m, cmd
		}
		m.logger.Info("export written", "path", msg.result.Path, "rows", msg.result.Rows)
		cmd := m.showFlash(fmt.Sprintf("%s (%s rows to %s)",
			msg.result.Notice(), textutil.FormatCount(int64(msg.result.Rows)), msg.result.Path))
		return m, cmd

	case flashClearMsg:
		if !m.flashExpiresAt.IsZero() && !time.Now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
			m.flashExpiresAt = time.Time{}
		}
		return m, nil

	case spinnerTickMsg:
		if !m.busy() {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, spinnerTick()
	}

	return m, nil
}

// handleEvent reduces a request outcome and reports action results.
// Superseded outcomes leave the tables alone, but fetch and process ran on
// the server regardless, so their results are always reported.
func (m Model) handleEvent(ev dataset.Event) (tea.Model, tea.Cmd) {
	current := ev.RequestID == m.latestRequest(ev.Op.Target())
	m.state = dataset.Reduce(m.state, ev)
	if current {
		for i := range m.tabs {
			m.clampCursor(tab(i))
		}
	} else {
		m.logger.Debug("superseded outcome", "op", ev.Op, "id", ev.RequestID)
	}

	if ev.Phase == dataset.Rejected {
		m.logger.Warn("request failed", "op", ev.Op, "error", ev.Err, "current", current)
	}
	switch {
	case ev.Phase == dataset.Pending:
	case ev.Op == dataset.OpFetchRecent || ev.Op == dataset.OpProcessMessages:
		cmd := m.showFlash(actionNotice(ev))
		return m, cmd
	}
	return m, nil
}

// actionNotice is the flash text for a settled fetch or process request.
func actionNotice(ev dataset.Event) string {
	switch {
	case ev.Phase == dataset.Rejected:
		return ev.Err
	case ev.Op == dataset.OpFetchRecent:
		return textutil.FormatCount(int64(ev.Result.Count)) + " fetched"
	default:
		return "Messages processed successfully!"
	}
}

func (m Model) latestRequest(s dataset.Slice) uint64 {
	switch s {
	case dataset.SliceProcessed:
		return m.state.Processed.RequestID()
	case dataset.SliceRaw:
		return m.state.Raw.RequestID()
	default:
		return 0
	}
}

// applySearch commits term as the channel filter of t and reloads when it
// changed. A new term sends the table back to page 1.
func (m *Model) applySearch(t tab, term string) tea.Cmd {
	next := m.tabs[t].desc.WithSearch(term)
	if next == m.tabs[t].desc {
		return nil
	}
	return m.setDescriptor(t, next)
}

// setDescriptor replaces the descriptor of t and loads it.
func (m *Model) setDescriptor(t tab, desc query.Descriptor) tea.Cmd {
	m.tabs[t].desc = desc
	m.tabs[t].cursor = 0
	m.tabs[t].scroll = 0
	return m.issue(t)
}

// rowCount returns the number of rows currently held for t.
func (m Model) rowCount(t tab) int {
	if t == tabRaw {
		return len(m.state.Raw.Rows)
	}
	return len(m.state.Processed.Rows)
}

func (m Model) total(t tab) int64 {
	if t == tabRaw {
		return m.state.Raw.Total
	}
	return m.state.Processed.Total
}

func (m Model) loading(t tab) bool {
	if t == tabRaw {
		return m.state.Raw.Loading
	}
	return m.state.Processed.Loading
}

func (m Model) errMessage(t tab) string {
	if t == tabRaw {
		return m.state.Raw.Err
	}
	return m.state.Processed.Err
}

// visibleRows returns how many table rows fit on screen.
func (m Model) visibleRows() int {
	return max(m.height-headerFooterLines, 1)
}

// clampCursor keeps the cursor of t on an existing row and inside the
// scrolled window.
func (m *Model) clampCursor(t tab) {
	ts := &m.tabs[t]
	n := m.rowCount(t)
	if ts.cursor >= n {
		ts.cursor = n - 1
	}
	if ts.cursor < 0 {
		ts.cursor = 0
	}
	visible := m.visibleRows()
	if ts.cursor < ts.scroll {
		ts.scroll = ts.cursor
	}
	if ts.cursor >= ts.scroll+visible {
		ts.scroll = ts.cursor - visible + 1
	}
	if ts.scroll < 0 {
		ts.scroll = 0
	}
}
