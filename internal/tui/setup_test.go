package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/export"
	"github.com/teledash/teledash/internal/query"
)

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// fakeGateway serves pages from in-memory rows and counts calls per
// operation. Func fields override the default behavior.
type fakeGateway struct {
	mu        sync.Mutex
	processed []query.Message
	raw       []query.RawMessage
	lastDesc  map[string]query.Descriptor

	listCalls    atomic.Int32
	rawCalls     atomic.Int32
	recentCalls  atomic.Int32
	processCalls atomic.Int32

	listErr    error
	rawErr     error
	recentFunc func() (*query.Recent, error)
	processErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{lastDesc: make(map[string]query.Descriptor)}
}

// page applies the channel filter the way the API does (case-insensitive
// substring) and slices out the requested page. Date filters are ignored.
func page[T any](rows []T, d query.Descriptor, channel func(T) string) *query.Page[T] {
	var matched []T
	for _, r := range rows {
		if d.ChannelName == "" || strings.Contains(strings.ToLower(channel(r)), strings.ToLower(d.ChannelName)) {
			matched = append(matched, r)
		}
	}
	start := min(d.Offset(), len(matched))
	end := min(start+d.PageSize, len(matched))
	return &query.Page[T]{Rows: matched[start:end], Total: int64(len(matched))}
}

func (g *fakeGateway) ListMessages(_ context.Context, d query.Descriptor) (*query.Page[query.Message], error) {
	g.listCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDesc["processed"] = d
	if g.listErr != nil {
		return nil, g.listErr
	}
	return page(g.processed, d, func(m query.Message) string { return m.ChannelTitle }), nil
}

func (g *fakeGateway) ListRawMessages(_ context.Context, d query.Descriptor) (*query.Page[query.RawMessage], error) {
	g.rawCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDesc["raw"] = d
	if g.rawErr != nil {
		return nil, g.rawErr
	}
	return page(g.raw, d, func(r query.RawMessage) string { return r.ChannelName }), nil
}

func (g *fakeGateway) FetchRecent(context.Context) (*query.Recent, error) {
	g.recentCalls.Add(1)
	if g.recentFunc != nil {
		return g.recentFunc()
	}
	return &query.Recent{}, nil
}

func (g *fakeGateway) ProcessMessages(context.Context, any) (*query.Ack, error) {
	g.processCalls.Add(1)
	if g.processErr != nil {
		return nil, g.processErr
	}
	return &query.Ack{Status: "success", Message: "Messages processed successfully"}, nil
}

func (g *fakeGateway) descriptor(table string) query.Descriptor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDesc[table]
}

func makeMessages(n int) []query.Message {
	rows := make([]query.Message, n)
	for i := range rows {
		rows[i] = query.Message{
			ID:           int64(i + 1),
			ChannelTitle: fmt.Sprintf("channel-%d", i+1),
			MessageID:    query.MessageID(fmt.Sprint(100 + i)),
			Text:         fmt.Sprintf("message %d", i+1),
			MessageDate:  time.Date(2024, 1, 1+i%28, 12, 0, 0, 0, time.UTC),
		}
	}
	return rows
}

func makeRawMessages(n int) []query.RawMessage {
	rows := make([]query.RawMessage, n)
	for i := range rows {
		rows[i] = query.RawMessage{
			ChannelName: fmt.Sprintf("raw-%d", i+1),
			MessageID:   query.MessageID(fmt.Sprint(500 + i)),
			Sender:      "sender",
			Text:        fmt.Sprintf("raw message %d", i+1),
		}
	}
	return rows
}

// newTestModel builds a model over gw with a short debounce window and
// returns it with the export directory.
func newTestModel(t *testing.T, gw *fakeGateway) (Model, string) {
	t.Helper()
	dir := t.TempDir()
	d := dispatch.New(gw)
	m := New(d, export.New(d, export.Options{Dir: dir}), Options{
		Version:        "test123",
		SearchDebounce: 10 * time.Millisecond,
	})
	m.width, m.height = 120, 24
	return m, dir
}

// loadedModel returns a model whose initial loads have completed.
func loadedModel(t *testing.T, gw *fakeGateway) (Model, string) {
	t.Helper()
	m, dir := newTestModel(t, gw)
	return deliver(t, m, m.Init()), dir
}

// cmdWait bounds how long runCmd waits on a single command. Flash timers
// are longer and are dropped.
const cmdWait = 500 * time.Millisecond

// runCmd executes cmd, expanding batches, and returns the messages that
// arrive within cmdWait. Commands run concurrently, so the order of the
// returned messages is unspecified.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(cmdWait):
		return nil
	}

	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	}

	var (
		mu  sync.Mutex
		out []tea.Msg
		wg  sync.WaitGroup
	)
	for _, c := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs := runCmd(c)
			mu.Lock()
			out = append(out, msgs...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// deliver runs cmd and feeds every resulting request outcome and export
// completion back into m. Timer messages are dropped.
func deliver(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range runCmd(cmd) {
		switch msg.(type) {
		case eventMsg, exportDoneMsg:
			m = update(t, m, msg)
		}
	}
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm
}

// press sends k and returns the updated model and command.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

// pressAndSettle sends k and delivers the outcomes it triggers.
func pressAndSettle(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	m, cmd := press(t, m, k)
	return deliver(t, m, cmd)
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func keyEnter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func keyEsc() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyEsc} }
func keyTab() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyTab} }
func keyLeft() tea.KeyMsg  { return tea.KeyMsg{Type: tea.KeyLeft} }
func keyRight() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRight} }
func keyDown() tea.KeyMsg  { return tea.KeyMsg{Type: tea.KeyDown} }

func typeText(t *testing.T, m Model, s string) (Model, []tea.Cmd) {
	t.Helper()
	var cmds []tea.Cmd
	for _, r := range s {
		var cmd tea.Cmd
		m, cmd = press(t, m, key(r))
		cmds = append(cmds, cmd)
	}
	return m, cmds
}
