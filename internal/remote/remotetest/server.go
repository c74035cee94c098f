// Package remotetest provides an in-memory fake of the message API for tests.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ProcessedRow is a row served by GET /messages. YouTube and Phone are
// untyped so tests can exercise every encoding the real API produces.
type ProcessedRow struct {
	ID           int64  `json:"id"`
	ChannelTitle string `json:"channel_title"`
	MessageID    any    `json:"message_id"`
	Message      string `json:"message"`
	MediaPath    string `json:"media_path"`
	Emoji        string `json:"emoji"`
	YouTube      any    `json:"youtube"`
	Phone        any    `json:"phone"`
	MessageDate  string `json:"message_date"`
}

// RawRow is a row served by GET /messages/raw.
type RawRow struct {
	ChannelName string `json:"channel_name"`
	MessageID   any    `json:"message_id"`
	Sender      string `json:"sender"`
	Timestamp   string `json:"timestamp"`
	Message     string `json:"message"`
	Media       string `json:"media"`
}

// Request is a recorded request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	APIKey string
	Body   string
}

type failure struct {
	status int
	body   string
}

// Server is a fake message API backed by in-memory slices.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	processed []ProcessedRow
	raw       []RawRow
	incoming  []RawRow
	nextID    int64
	apiKey    string
	failures  map[string]failure
	delays    map[string]time.Duration
	requests  []Request
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   1,
		failures: make(map[string]failure),
		delays:   make(map[string]time.Duration),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.inject)

	r.Get("/messages", s.handleListMessages)
	r.Get("/messages/raw", s.handleListRaw)
	r.Post("/messages/recent", s.handleFetchRecent)
	r.Post("/messages/process", s.handleProcess)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetProcessed replaces the processed rows. Missing ids are assigned.
func (s *Server) SetProcessed(rows ...ProcessedRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = nil
	for _, row := range rows {
		if row.ID == 0 {
			row.ID = s.nextID
		}
		if row.ID >= s.nextID {
			s.nextID = row.ID + 1
		}
		s.processed = append(s.processed, row)
	}
}

// SetRaw replaces the raw rows.
func (s *Server) SetRaw(rows ...RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append([]RawRow(nil), rows...)
}

// SetIncoming sets the rows the next POST /messages/recent ingests.
func (s *Server) SetIncoming(rows ...RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incoming = append([]RawRow(nil), rows...)
}

// RequireAPIKey makes every request without the given X-API-Key fail with 401.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// Fail makes requests to path answer with status and body until cleared.
func (s *Server) Fail(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// Delay holds requests to path for d before answering.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RawCount returns the number of stored raw rows.
func (s *Server) RawCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.raw)
}

// ProcessedCount returns the number of stored processed rows.
func (s *Server) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body.Close()
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			APIKey: r.Header.Get("X-API-Key"),
			Body:   string(body),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		key := s.apiKey
		fail, failing := s.failures[r.URL.Path]
		delay := s.delays[r.URL.Path]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if key != "" && r.Header.Get("X-API-Key") != key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid API key"})
			return
		}
		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// listParams mirrors the server's defaults: page 1, page_size 10.
type listParams struct {
	page, pageSize int
	channel        string
	start, end     string
}

func parseListParams(r *http.Request) listParams {
	q := r.URL.Query()
	p := listParams{page: 1, pageSize: 10}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		p.pageSize = v
	}
	p.channel = strings.ToLower(q.Get("channel_name"))
	p.start = q.Get("start_date")
	p.end = q.Get("end_date")
	return p
}

// matches applies a case-insensitive substring channel filter and an
// inclusive date range compared on the date part of the timestamp.
func (p listParams) matches(channel, timestamp string) bool {
	if p.channel != "" && !strings.Contains(strings.ToLower(channel), p.channel) {
		return false
	}
	day := timestamp
	if len(day) > 10 {
		day = day[:10]
	}
	if p.start != "" && day < p.start {
		return false
	}
	if p.end != "" && day > p.end {
		return false
	}
	return true
}

func paginate[T any](rows []T, p listParams) []T {
	start := (p.page - 1) * p.pageSize
	if start >= len(rows) {
		return []T{}
	}
	end := min(start+p.pageSize, len(rows))
	return rows[start:end]
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	p := parseListParams(r)
	s.mu.Lock()
	var filtered []ProcessedRow
	for _, row := range s.processed {
		if p.matches(row.ChannelTitle, row.MessageDate) {
			filtered = append(filtered, row)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": paginate(filtered, p),
		"total":    len(filtered),
	})
}

func (s *Server) handleListRaw(w http.ResponseWriter, r *http.Request) {
	p := parseListParams(r)
	s.mu.Lock()
	var filtered []RawRow
	for _, row := range s.raw {
		if p.matches(row.ChannelName, row.Timestamp) {
			filtered = append(filtered, row)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": paginate(filtered, p),
		"total":    len(filtered),
	})
}

// handleFetchRecent ingests the incoming rows. Like the real service it
// reports the ingested rows under both "messages" and "total".
func (s *Server) handleFetchRecent(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ingested := s.incoming
	s.incoming = nil
	s.raw = append(s.raw, ingested...)
	s.mu.Unlock()

	if ingested == nil {
		ingested = []RawRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": ingested,
		"total":    ingested,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	for _, row := range s.raw {
		s.processed = append(s.processed, ProcessedRow{
			ID:           s.nextID,
			ChannelTitle: row.ChannelName,
			MessageID:    row.MessageID,
			Message:      row.Message,
			MediaPath:    row.Media,
			YouTube:      "no youtube",
			Phone:        "no phone",
			MessageDate:  row.Timestamp,
		})
		s.nextID++
	}
	s.raw = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Messages processed successfully",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
