package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/teledash/teledash/internal/query"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the single worksheet in exported workbooks.
const SheetName = "Messages"

// WriteWorkbook writes records as an xlsx workbook with one sheet. The header
// row is the union of all record keys in first-seen order. Numbers and
// booleans become typed cells, null leaves the cell blank and nested values
// are written as their JSON text.
func WriteWorkbook(w io.Writer, records []query.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}

	header := query.UnionKeys(records)
	headerRow := make([]any, len(header))
	for i, key := range header {
		headerRow[i] = key
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, rec := range records {
		row := make([]any, len(header))
		for i, key := range header {
			if v, ok := rec.Get(key); ok {
				row[i] = cellValue(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// EncodeWorkbook returns the xlsx encoding of records.
func EncodeWorkbook(records []query.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellValue(v query.Value) any {
	switch v.Kind {
	case query.ValueNull:
		return nil
	case query.ValueNumber:
		if f, ok := v.Float(); ok {
			return f
		}
		return v.Text
	case query.ValueBool:
		return v.Text == "true"
	default:
		return v.Text
	}
}
