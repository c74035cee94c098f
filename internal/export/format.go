// Package export writes full message datasets to CSV or Excel files.
package export

import (
	"fmt"
	"strings"
)

// Format is an export file format.
type Format int

const (
	FormatCSV Format = iota
	FormatExcel
)

// ParseFormat accepts "csv", "excel" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	default:
		return 0, fmt.Errorf("unknown export format %q (want csv or excel)", s)
	}
}

func (f Format) String() string {
	if f == FormatExcel {
		return "excel"
	}
	return "csv"
}

// Label is the upper-case name used in notices.
func (f Format) Label() string {
	return strings.ToUpper(f.String())
}

// Filename is the fixed name of the exported file.
func (f Format) Filename() string {
	if f == FormatExcel {
		return "messages.xlsx"
	}
	return "messages.csv"
}
