package export

import (
	"io"
	"strings"

	"github.com/teledash/teledash/internal/query"
)

// WriteCSV writes records as CSV. The header lists the keys of the first
// record. Every row carries that record's values for the header keys, each
// wrapped in double quotes; a missing key becomes an empty field. Lines are
// separated by "\n" with no trailing newline.
//
// Values are not escaped: a value containing a double quote or a newline
// produces a file that strict CSV readers will split differently.
func WriteCSV(w io.Writer, records []query.Record) error {
	if len(records) == 0 {
		return nil
	}
	header := records[0].Keys()

	if _, err := io.WriteString(w, strings.Join(header, ",")); err != nil {
		return err
	}

	fields := make([]string, len(header))
	for _, rec := range records {
		for i, key := range header {
			v, ok := rec.Get(key)
			if !ok {
				fields[i] = `""`
				continue
			}
			fields[i] = `"` + v.String() + `"`
		}
		if _, err := io.WriteString(w, "\n"+strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCSV returns the CSV encoding of records.
func EncodeCSV(records []query.Record) []byte {
	var sb strings.Builder
	_ = WriteCSV(&sb, records)
	return []byte(sb.String())
}
