package query

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ValueKind is the JSON type of a record value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueJSON // nested array or object, kept as raw JSON text
)

// Value is one record cell. Text holds the literal representation: the
// string itself, the number as sent, "true"/"false", or raw JSON.
type Value struct {
	Kind ValueKind
	Text string
}

// String returns the literal text of the value. Null renders as "null".
func (v Value) String() string {
	if v.Kind == ValueNull {
		return "null"
	}
	return v.Text
}

// Float returns the numeric value for ValueNumber cells.
func (v Value) Float() (float64, bool) {
	if v.Kind != ValueNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Field is a single key/value pair of a record.
type Field struct {
	Key   string
	Value Value
}

// Record is a row of arbitrary shape with keys in the order the server sent them.
type Record []Field

// Keys returns the record keys in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key.
func (r Record) Get(key string) (Value, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the record as an object with keys in record order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		switch f.Value.Kind {
		case ValueNull:
			buf.WriteString("null")
		case ValueString:
			text, err := json.Marshal(f.Value.Text)
			if err != nil {
				return nil, err
			}
			buf.Write(text)
		default:
			// Numbers, booleans and nested JSON keep their literal text.
			buf.WriteString(f.Value.Text)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnionKeys returns every key that appears in records, in first-seen order.
func UnionKeys(records []Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		for _, f := range rec {
			if !seen[f.Key] {
				seen[f.Key] = true
				keys = append(keys, f.Key)
			}
		}
	}
	return keys
}

func stringField(key, s string) Field {
	return Field{Key: key, Value: Value{Kind: ValueString, Text: s}}
}

func numberField(key string, n int64) Field {
	return Field{Key: key, Value: Value{Kind: ValueNumber, Text: strconv.FormatInt(n, 10)}}
}

func idField(key string, id MessageID) Field {
	if id == "" {
		return Field{Key: key, Value: Value{Kind: ValueNull}}
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return Field{Key: key, Value: Value{Kind: ValueNumber, Text: string(id)}}
	}
	return stringField(key, string(id))
}

func timestampField(key string, t time.Time) Field {
	if t.IsZero() {
		return Field{Key: key, Value: Value{Kind: ValueNull}}
	}
	return stringField(key, t.Format("2006-01-02T15:04:05"))
}

// Record rebuilds the row in the column order of GET /messages. Decoded
// youtube and phone columns are written back as comma-separated text.
func (m Message) Record() Record {
	return Record{
		numberField("id", m.ID),
		stringField("channel_title", m.ChannelTitle),
		idField("message_id", m.MessageID),
		stringField("message", m.Text),
		stringField("media_path", m.MediaPath),
		stringField("emoji", m.Emoji),
		stringField("youtube", encodedOr(m.YouTube, YouTubeEncoding.Sentinel)),
		stringField("phone", encodedOr(m.Phone, PhoneEncoding.Sentinel)),
		timestampField("message_date", m.MessageDate),
	}
}

// Record rebuilds the row in the column order of GET /messages/raw.
func (r RawMessage) Record() Record {
	return Record{
		stringField("channel_name", r.ChannelName),
		idField("message_id", r.MessageID),
		stringField("sender", r.Sender),
		timestampField("timestamp", r.Timestamp),
		stringField("message", r.Text),
		stringField("media", r.Media),
	}
}

// MessageRecords returns the Record of every row.
func MessageRecords(rows []Message) []Record {
	return recordsOf(rows, Message.Record)
}

// RawMessageRecords returns the Record of every raw row.
func RawMessageRecords(rows []RawMessage) []Record {
	return recordsOf(rows, RawMessage.Record)
}

func recordsOf[T any](rows []T, record func(T) Record) []Record {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = record(row)
	}
	return out
}

func encodedOr(e Encoded, sentinel string) string {
	if e.IsEmpty() {
		return sentinel
	}
	return e.Join(",")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
