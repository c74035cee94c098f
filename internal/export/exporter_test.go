package export

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/query"
	"github.com/teledash/teledash/internal/remote"
	"github.com/teledash/teledash/internal/remote/remotetest"
)

func newTestExporter(t *testing.T, srv *remotetest.Server, opts Options) *Exporter {
	t.Helper()
	client, err := remote.New(remote.Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("remote.New() error = %v", err)
	}
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	return New(dispatch.New(client), opts)
}

func seedProcessed(srv *remotetest.Server) {
	srv.SetProcessed(
		remotetest.ProcessedRow{ChannelTitle: "DoctorsET", MessageID: 1, Message: "a", YouTube: "no youtube", Phone: "no phone", MessageDate: "2024-01-01T00:00:00"},
		remotetest.ProcessedRow{ChannelTitle: "CheMed123", MessageID: 2, Message: "b", YouTube: "no youtube", Phone: "no phone", MessageDate: "2024-01-02T00:00:00"},
		remotetest.ProcessedRow{ChannelTitle: "DoctorsET", MessageID: 3, Message: "c", YouTube: "no youtube", Phone: "no phone", MessageDate: "2024-01-03T00:00:00"},
	)
}

func TestExport_WritesCSV(t *testing.T) {
	srv := remotetest.New(t)
	seedProcessed(srv)
	e := newTestExporter(t, srv, Options{})

	res, err := e.Export(context.Background(), Request{
		Table:  dataset.SliceProcessed,
		Format: FormatCSV,
		View:   query.NewDescriptor(2, 1),
		Total:  3,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Rows != 3 || filepath.Base(res.Path) != "messages.csv" {
		t.Errorf("result = %+v", res)
	}
	if res.Notice() != "Exported data as CSV" {
		t.Errorf("Notice() = %q", res.Notice())
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) != 4 {
		t.Errorf("lines = %d, want header + 3 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,channel_title,message_id") {
		t.Errorf("header = %q", lines[0])
	}

	reqs := srv.RequestsTo("/messages")
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want exactly one full-dataset load", len(reqs))
	}
	if reqs[0].Query.Get("page") != "1" || reqs[0].Query.Get("page_size") != "3" {
		t.Errorf("query = %v, want page=1 page_size=3", reqs[0].Query)
	}
}

func TestExport_WritesWorkbook(t *testing.T) {
	srv := remotetest.New(t)
	seedProcessed(srv)
	e := newTestExporter(t, srv, Options{})

	res, err := e.Export(context.Background(), Request{Table: dataset.SliceProcessed, Format: FormatExcel, Total: 3})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Base(res.Path) != "messages.xlsx" || res.Notice() != "Exported data as EXCEL" {
		t.Errorf("result = %+v", res)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rows, err := openWorkbook(t, data).GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("rows = %d, want header + 3", len(rows))
	}
}

func TestExport_ZeroTotalShortCircuits(t *testing.T) {
	srv := remotetest.New(t)
	dir := t.TempDir()
	e := newTestExporter(t, srv, Options{Dir: dir})

	_, err := e.Export(context.Background(), Request{Table: dataset.SliceRaw, Format: FormatCSV, Total: 0})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("requests = %d, want none", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("export dir has %d entries, want none", len(entries))
	}
	if FailureNotice(err) != "No data available for export!" {
		t.Errorf("FailureNotice = %q", FailureNotice(err))
	}
}

func TestExport_EmptyResult(t *testing.T) {
	srv := remotetest.New(t)
	e := newTestExporter(t, srv, Options{})

	// The table reported rows that are gone by the time of the export.
	_, err := e.Export(context.Background(), Request{Table: dataset.SliceRaw, Format: FormatCSV, Total: 4})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestExport_FetchFailure(t *testing.T) {
	srv := remotetest.New(t)
	srv.Fail("/messages/raw", http.StatusInternalServerError, `{"message":"db down"}`)
	e := newTestExporter(t, srv, Options{})

	_, err := e.Export(context.Background(), Request{Table: dataset.SliceRaw, Format: FormatExcel, Total: 2})
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
	if !remote.IsServer(err) {
		t.Errorf("err = %v, want gateway error preserved", err)
	}
	if FailureNotice(err) != "Failed to fetch data for export!" {
		t.Errorf("FailureNotice = %q", FailureNotice(err))
	}
}

func TestExport_FilterPolicy(t *testing.T) {
	view := query.NewDescriptor(1, 10).
		WithSearch("doctors").
		WithDateRange(query.DateRange{Start: "2024-01-01", End: "2024-01-31"})

	tests := []struct {
		name        string
		table       dataset.Slice
		honor       bool
		path        string
		wantFilters bool
	}{
		{"processed ignores filters by default", dataset.SliceProcessed, false, "/messages", false},
		{"processed honors filters when enabled", dataset.SliceProcessed, true, "/messages", true},
		{"raw always honors filters", dataset.SliceRaw, false, "/messages/raw", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := remotetest.New(t)
			e := newTestExporter(t, srv, Options{ProcessedHonorsFilters: tt.honor})

			_, _ = e.Export(context.Background(), Request{Table: tt.table, Format: FormatCSV, View: view, Total: 5})

			reqs := srv.RequestsTo(tt.path)
			if len(reqs) == 0 {
				t.Fatalf("no requests to %s", tt.path)
			}
			for _, r := range reqs {
				q := r.Query
				gotFilters := q.Has("channel_name") && q.Has("start_date") && q.Has("end_date")
				if gotFilters != tt.wantFilters {
					t.Errorf("query = %v, want filters=%v", q, tt.wantFilters)
				}
			}
			if tt.wantFilters {
				if len(reqs) != 1 || reqs[0].Query.Get("page_size") != "5" {
					t.Errorf("requests = %v, want one load with page_size=5", reqs)
				}
			}
		})
	}
}

func TestExport_DroppedFiltersCountWholeTable(t *testing.T) {
	srv := remotetest.New(t)
	seedProcessed(srv)
	e := newTestExporter(t, srv, Options{})

	// The dashboard shows one CheMed123 row; the export covers all three.
	view := query.NewDescriptor(1, 10).WithSearch("chemed")
	res, err := e.Export(context.Background(), Request{
		Table:  dataset.SliceProcessed,
		Format: FormatCSV,
		View:   view,
		Total:  1,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Rows != 3 {
		t.Errorf("rows = %d, want the whole table (3)", res.Rows)
	}

	reqs := srv.RequestsTo("/messages")
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want a count and a full load", len(reqs))
	}
	if reqs[0].Query.Get("page_size") != "1" || reqs[1].Query.Get("page_size") != "3" {
		t.Errorf("page sizes = %q, %q, want 1 then 3",
			reqs[0].Query.Get("page_size"), reqs[1].Query.Get("page_size"))
	}
}

func TestExport_DroppedFiltersIgnoreEmptyView(t *testing.T) {
	srv := remotetest.New(t)
	seedProcessed(srv)
	e := newTestExporter(t, srv, Options{})

	req := Request{
		Table:  dataset.SliceProcessed,
		Format: FormatExcel,
		View:   query.NewDescriptor(1, 10).WithSearch("nothing matches"),
		Total:  0,
	}
	if e.Empty(req) {
		t.Fatal("Empty() = true for a filtered view whose filters are dropped")
	}
	res, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Rows != 3 {
		t.Errorf("rows = %d, want 3", res.Rows)
	}

	honoring := newTestExporter(t, srv, Options{ProcessedHonorsFilters: true})
	if !honoring.Empty(req) {
		t.Error("Empty() = false for an empty view whose filters are kept")
	}
}

func TestExport_ReplacesPreviousFile(t *testing.T) {
	srv := remotetest.New(t)
	seedProcessed(srv)
	dir := t.TempDir()
	e := newTestExporter(t, srv, Options{Dir: dir})

	req := Request{Table: dataset.SliceProcessed, Format: FormatCSV, Total: 3}
	first, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	a, _ := os.ReadFile(first.Path)

	second, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	b, _ := os.ReadFile(second.Path)

	if string(a) != string(b) {
		t.Error("exports of unchanged data differ")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("export dir has %d entries, want only messages.csv", len(entries))
	}
}
