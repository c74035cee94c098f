package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/fileutil"
	"github.com/teledash/teledash/internal/query"
)

var (
	// ErrNoData means the export found no rows. Nothing is written.
	ErrNoData = errors.New("No data available for export!")
	// ErrFetch means the full-dataset load failed.
	ErrFetch = errors.New("Failed to fetch data for export!")
)

// Request describes one export.
type Request struct {
	Table  dataset.Slice
	Format Format
	// View is the table's current descriptor; only its filters are used.
	View query.Descriptor
	// Total is the row count of View and sizes the full-dataset load.
	Total int64
}

// Result describes a written export.
type Result struct {
	Path   string
	Rows   int
	Format Format
}

// Notice is the success message shown to the user.
func (r *Result) Notice() string {
	return "Exported data as " + r.Format.Label()
}

// Options configure an Exporter.
type Options struct {
	// Dir receives the exported files. Empty means the working directory.
	Dir string
	// ProcessedHonorsFilters applies the processed table's search and date
	// filters to its export. Raw exports always honor them.
	ProcessedHonorsFilters bool
}

// Exporter loads whole datasets through a dispatcher and writes them to disk.
type Exporter struct {
	dispatcher *dispatch.Dispatcher
	opts       Options
	logger     *slog.Logger
}

// New creates an exporter.
func New(d *dispatch.Dispatcher, opts Options) *Exporter {
	return &Exporter{dispatcher: d, opts: opts, logger: slog.Default()}
}

// WithLogger sets the logger for the exporter.
func (e *Exporter) WithLogger(logger *slog.Logger) *Exporter {
	e.logger = logger
	return e
}

// HonorsFilters reports whether exports of table keep the view's search and
// date filters.
func (e *Exporter) HonorsFilters(table dataset.Slice) bool {
	return table == dataset.SliceRaw || e.opts.ProcessedHonorsFilters
}

// Empty reports whether req is known to cover no rows without asking the
// server. A filtered view whose filters the export drops says nothing about
// the size of the whole table.
func (e *Exporter) Empty(req Request) bool {
	if req.Total > 0 {
		return false
	}
	return e.HonorsFilters(req.Table) || !req.View.HasFilters()
}

func (e *Exporter) call(table dataset.Slice, desc query.Descriptor) (*dispatch.Call, error) {
	switch table {
	case dataset.SliceProcessed:
		return e.dispatcher.ExportMessages(desc), nil
	case dataset.SliceRaw:
		return e.dispatcher.ExportRawMessages(desc), nil
	default:
		return nil, fmt.Errorf("export: unknown table %v", table)
	}
}

// size returns the number of rows the export loads. req.Total counts the
// filtered view, so when the filters are dropped a one-row page is requested
// for the unfiltered total.
func (e *Exporter) size(ctx context.Context, req Request) (int64, error) {
	if e.HonorsFilters(req.Table) || !req.View.HasFilters() {
		return req.Total, nil
	}
	call, err := e.call(req.Table, req.View.ExportDescriptor(1, false))
	if err != nil {
		return 0, err
	}
	res, err := e.dispatcher.Execute(ctx, nil, call)
	if err != nil {
		e.logger.Warn("export count failed", "table", req.Table, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return res.Total, nil
}

// Fetch loads every row of the requested table with one detached request
// (page 1, page size = total). The paginated table state is not touched.
func (e *Exporter) Fetch(ctx context.Context, req Request) ([]query.Record, error) {
	if req.Table != dataset.SliceProcessed && req.Table != dataset.SliceRaw {
		return nil, fmt.Errorf("export: unknown table %v", req.Table)
	}
	total, err := e.size(ctx, req)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, ErrNoData
	}

	call, err := e.call(req.Table, req.View.ExportDescriptor(total, e.HonorsFilters(req.Table)))
	if err != nil {
		return nil, err
	}
	res, err := e.dispatcher.Execute(ctx, nil, call)
	if err != nil {
		e.logger.Warn("export fetch failed", "table", req.Table, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(res.Records) == 0 {
		return nil, ErrNoData
	}
	return res.Records, nil
}

// Encode writes records to w in format f.
func Encode(w io.Writer, f Format, records []query.Record) error {
	if f == FormatExcel {
		return WriteWorkbook(w, records)
	}
	return WriteCSV(w, records)
}

// Export fetches the full dataset and writes it to Dir/messages.csv or
// Dir/messages.xlsx, replacing any previous export atomically.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	records, err := e.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	dir := e.opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := fileutil.SecureMkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, req.Format.Filename())
	err = fileutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		return Encode(w, req.Format, records)
	})
	if err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	e.logger.Info("exported", "table", req.Table, "format", req.Format, "rows", len(records), "path", path)
	return &Result{Path: path, Rows: len(records), Format: req.Format}, nil
}

// FailureNotice maps an export error to the message shown to the user.
func FailureNotice(err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return ErrNoData.Error()
	case errors.Is(err, ErrFetch):
		return ErrFetch.Error()
	default:
		return "Export failed: " + err.Error()
	}
}
