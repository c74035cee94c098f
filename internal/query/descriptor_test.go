package query

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewDescriptor_Normalizes(t *testing.T) {
	tests := []struct {
		name           string
		page, pageSize int
		wantPage       int
		wantSize       int
	}{
		{"valid", 3, 20, 3, 20},
		{"zero page", 0, 20, 1, 20},
		{"negative page", -4, 20, 1, 20},
		{"zero size", 2, 0, 2, DefaultPageSize},
		{"negative size", 2, -1, 2, DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDescriptor(tt.page, tt.pageSize)
			if d.Page != tt.wantPage || d.PageSize != tt.wantSize {
				t.Errorf("NewDescriptor(%d, %d) = {%d, %d}, want {%d, %d}",
					tt.page, tt.pageSize, d.Page, d.PageSize, tt.wantPage, tt.wantSize)
			}
		})
	}
}

func TestDescriptor_PageAndSizeDoNotReset(t *testing.T) {
	d := NewDescriptor(1, 10).WithSearch("doctors").WithPage(4)
	if d.Page != 4 {
		t.Fatalf("Page = %d, want 4", d.Page)
	}
	d = d.WithPageSize(50)
	if d.Page != 4 {
		t.Errorf("WithPageSize reset page to %d, want 4", d.Page)
	}
	if d.ChannelName != "doctors" {
		t.Errorf("ChannelName = %q, want filter kept", d.ChannelName)
	}
}

func TestDescriptor_SearchResetsPage(t *testing.T) {
	d := NewDescriptor(5, 10)

	got := d.WithSearch("chemed")
	if got.Page != 1 {
		t.Errorf("changed search: Page = %d, want 1", got.Page)
	}

	same := got.WithPage(3).WithSearch("chemed")
	if same.Page != 3 {
		t.Errorf("unchanged search: Page = %d, want 3", same.Page)
	}

	cleared := same.WithSearch("")
	if cleared.Page != 1 || cleared.ChannelName != "" {
		t.Errorf("cleared search = %+v, want page 1 and no filter", cleared)
	}
}

func TestDescriptor_DateRangeResetsPage(t *testing.T) {
	d := NewDescriptor(7, 10)
	r := DateRange{Start: "2024-01-01", End: "2024-01-31"}

	got := d.WithDateRange(r)
	if got.Page != 1 {
		t.Errorf("changed range: Page = %d, want 1", got.Page)
	}
	if got.WithPage(2).WithDateRange(r).Page != 2 {
		t.Error("unchanged range should keep page")
	}
	if got.WithPage(2).WithDateRange(DateRange{}).Page != 1 {
		t.Error("clearing range should reset page")
	}
}

func TestDescriptor_Values(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want url.Values
	}{
		{
			name: "no filters",
			d:    NewDescriptor(1, 10),
			want: url.Values{"page": {"1"}, "page_size": {"10"}},
		},
		{
			name: "all filters",
			d: NewDescriptor(2, 25).
				WithSearch("lobelia").
				WithDateRange(DateRange{Start: "2024-02-01", End: "2024-02-29"}).
				WithPage(2),
			want: url.Values{
				"page":         {"2"},
				"page_size":    {"25"},
				"channel_name": {"lobelia"},
				"start_date":   {"2024-02-01"},
				"end_date":     {"2024-02-29"},
			},
		},
		{
			name: "open ended range",
			d:    NewDescriptor(1, 10).WithDateRange(DateRange{End: "2024-03-01"}),
			want: url.Values{"page": {"1"}, "page_size": {"10"}, "end_date": {"2024-03-01"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.d.Values()); diff != "" {
				t.Errorf("Values() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDescriptor_ExportDescriptor(t *testing.T) {
	d := NewDescriptor(3, 10).
		WithSearch("eahci").
		WithDateRange(DateRange{Start: "2024-01-01"}).
		WithPage(3)

	all := d.ExportDescriptor(137, true)
	want := Descriptor{Page: 1, PageSize: 137, ChannelName: "eahci", Dates: DateRange{Start: "2024-01-01"}}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("ExportDescriptor(honor) mismatch (-want +got):\n%s", diff)
	}

	bare := d.ExportDescriptor(137, false)
	if bare.HasFilters() {
		t.Errorf("ExportDescriptor(ignore) kept filters: %+v", bare)
	}
	if d.Page != 3 || d.PageSize != 10 {
		t.Errorf("source descriptor mutated: %+v", d)
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		in   string
		want DateRange
	}{
		{"", DateRange{}},
		{"  ", DateRange{}},
		{"2024-01-01..2024-01-31", DateRange{Start: "2024-01-01", End: "2024-01-31"}},
		{"2024-01-01..", DateRange{Start: "2024-01-01"}},
		{"..2024-01-31", DateRange{End: "2024-01-31"}},
		{"2024-01-01", DateRange{Start: "2024-01-01"}},
		{" 2024-01-01 .. 2024-01-31 ", DateRange{Start: "2024-01-01", End: "2024-01-31"}},
	}
	for _, tt := range tests {
		if got := ParseDateRange(tt.in); got != tt.want {
			t.Errorf("ParseDateRange(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 20, 5},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.pageSize); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
		}
	}
}
