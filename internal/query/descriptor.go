package query

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// PageSizeOptions are the page sizes offered by the dashboard size changer.
var PageSizeOptions = []int{10, 20, 50, 100}

// DateRange is an inclusive date filter. Empty bounds mean "unbounded"; the
// zero DateRange applies no filter. Dates are ISO strings passed through
// unvalidated, the server decides what they mean.
type DateRange struct {
	Start string
	End   string
}

// IsZero reports whether no bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// String renders the range as "start..end".
func (r DateRange) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Start + ".." + r.End
}

// ParseDateRange parses "start..end" where either side may be empty.
// A single date without ".." is treated as the start bound.
func ParseDateRange(s string) DateRange {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateRange{}
	}
	start, end, found := strings.Cut(s, "..")
	if !found {
		return DateRange{Start: s}
	}
	return DateRange{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
}

// Descriptor is the immutable, normalized parameter set of a list request.
// Use the With* methods to derive new descriptors; they enforce the rule that
// a new filter sends pagination back to the first page.
type Descriptor struct {
	Page        int
	PageSize    int
	ChannelName string
	Dates       DateRange
}

// NewDescriptor returns a normalized descriptor without filters.
func NewDescriptor(page, pageSize int) Descriptor {
	return Descriptor{Page: page, PageSize: pageSize}.Normalize()
}

// Normalize clamps page to at least 1 and defaults a non-positive page size.
func (d Descriptor) Normalize() Descriptor {
	if d.Page < 1 {
		d.Page = 1
	}
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	d.ChannelName = strings.TrimSpace(d.ChannelName)
	return d
}

// WithPage moves to another page, keeping filters and page size.
func (d Descriptor) WithPage(page int) Descriptor {
	d.Page = page
	return d.Normalize()
}

// WithPageSize changes the page size without resetting the page.
func (d Descriptor) WithPageSize(size int) Descriptor {
	d.PageSize = size
	return d.Normalize()
}

// WithSearch sets the channel name filter. The page resets to 1 when the
// term differs from the current one.
func (d Descriptor) WithSearch(term string) Descriptor {
	term = strings.TrimSpace(term)
	if term == d.ChannelName {
		return d
	}
	d.ChannelName = term
	d.Page = 1
	return d.Normalize()
}

// WithDateRange sets the date filter, resetting the page when it changes.
func (d Descriptor) WithDateRange(r DateRange) Descriptor {
	if r == d.Dates {
		return d
	}
	d.Dates = r
	d.Page = 1
	return d.Normalize()
}

// HasFilters reports whether a channel or date filter is active.
func (d Descriptor) HasFilters() bool {
	return d.ChannelName != "" || !d.Dates.IsZero()
}

// Offset is the zero-based index of the first row on the page.
func (d Descriptor) Offset() int {
	return (d.Page - 1) * d.PageSize
}

// Values encodes the descriptor as query parameters. Unset filters are
// omitted rather than sent empty.
func (d Descriptor) Values() url.Values {
	d = d.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(d.Page))
	v.Set("page_size", strconv.Itoa(d.PageSize))
	if d.ChannelName != "" {
		v.Set("channel_name", d.ChannelName)
	}
	if d.Dates.Start != "" {
		v.Set("start_date", d.Dates.Start)
	}
	if d.Dates.End != "" {
		v.Set("end_date", d.Dates.End)
	}
	return v
}

// ExportDescriptor returns a descriptor covering every row: page 1 with the
// page size set to total. Filters are carried over only when honorFilters is
// set. total must be positive; callers short-circuit empty datasets.
func (d Descriptor) ExportDescriptor(total int64, honorFilters bool) Descriptor {
	out := Descriptor{Page: 1, PageSize: int(total)}
	if honorFilters {
		out.ChannelName = d.ChannelName
		out.Dates = d.Dates
	}
	return out.Normalize()
}

// PageCount returns the number of pages needed for total rows.
func PageCount(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
