package export

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/teledash/teledash/internal/query"
	"github.com/xuri/excelize/v2"
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestEncodeWorkbook(t *testing.T) {
	records := []query.Record{
		{{Key: "id", Value: num("7")}, {Key: "message", Value: str("hi")}},
		{{Key: "id", Value: num("8")}, {Key: "flag", Value: query.Value{Kind: query.ValueBool, Text: "true"}}},
	}
	data, err := EncodeWorkbook(records)
	if err != nil {
		t.Fatalf("EncodeWorkbook: %v", err)
	}
	f := openWorkbook(t, data)

	if diff := cmp.Diff([]string{SheetName}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{
		{"id", "message", "flag"},
		{"7", "hi"},
		{"8", "", "TRUE"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	typ, err := f.GetCellType(SheetName, "A2")
	if err != nil {
		t.Fatalf("GetCellType: %v", err)
	}
	if typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Errorf("A2 cell type = %v, want numeric", typ)
	}
}

func TestEncodeWorkbook_Empty(t *testing.T) {
	data, err := EncodeWorkbook(nil)
	if err != nil {
		t.Fatalf("EncodeWorkbook(nil): %v", err)
	}
	f := openWorkbook(t, data)
	if f.GetSheetName(0) != SheetName {
		t.Errorf("sheet = %q, want %q", f.GetSheetName(0), SheetName)
	}
}
