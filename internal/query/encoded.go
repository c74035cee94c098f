package query

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EncodedKind tags the shape of a decoded multi-valued column.
type EncodedKind int

const (
	EncodedEmpty  EncodedKind = iota // no real data (null, "", sentinel, "{}")
	EncodedScalar                    // a single bare value
	EncodedList                      // a serialized or actual collection
)

// String returns the kind name.
func (k EncodedKind) String() string {
	switch k {
	case EncodedScalar:
		return "scalar"
	case EncodedList:
		return "list"
	default:
		return "empty"
	}
}

// Encoded is a decoded youtube/phone column. The processing pipeline stores
// these as Python tuple or Postgres array text, real arrays, bare numbers,
// or sentinel strings; Encoded collapses all of them into one of three shapes.
// An Encoded with Kind EncodedEmpty never carries values.
type Encoded struct {
	Kind   EncodedKind
	Values []string
}

// IsEmpty reports whether the column carries no data.
func (e Encoded) IsEmpty() bool {
	return e.Kind == EncodedEmpty || len(e.Values) == 0
}

// Items returns every value, one per rendered link.
func (e Encoded) Items() []string {
	if e.IsEmpty() {
		return nil
	}
	return e.Values
}

// Join returns the values joined with sep, or empty when there is no data.
func (e Encoded) Join(sep string) string {
	return strings.Join(e.Items(), sep)
}

// Encoding describes how one column spells "no data" and which punctuation
// wraps its serialized collections.
type Encoding struct {
	Sentinel string
	Cutset   string
}

var (
	// YouTubeEncoding matches values like "('https://youtu.be/x',)".
	YouTubeEncoding = Encoding{Sentinel: "no youtube", Cutset: "()'"}
	// PhoneEncoding matches values like "{0911000000,0912000000}".
	PhoneEncoding = Encoding{Sentinel: "no phone", Cutset: "{}"}
)

// emptyObject is the text the processing pipeline writes for an empty set.
const emptyObject = "{}"

// Decode normalizes a raw JSON column value.
func (enc Encoding) Decode(raw json.RawMessage) Encoded {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Encoded{}
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Encoded{}
		}
		return enc.DecodeString(s)
	case '[':
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return Encoded{}
		}
		return enc.decodeItems(items)
	case '{', 't', 'f':
		return Encoded{}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Encoded{}
		}
		return Encoded{Kind: EncodedScalar, Values: []string{n.String()}}
	}
}

// DecodeString normalizes a column that arrived as a JSON string.
func (enc Encoding) DecodeString(s string) Encoded {
	t := strings.TrimSpace(s)
	if enc.isSentinel(t) {
		return Encoded{}
	}
	wrapped := strings.ContainsAny(t, enc.Cutset)
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(enc.Cutset, r) {
			return -1
		}
		return r
	}, t)

	var values []string
	for _, part := range strings.Split(stripped, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if enc.isSentinel(part) {
			continue
		}
		values = append(values, part)
	}
	switch {
	case len(values) == 0:
		return Encoded{}
	case len(values) == 1 && !wrapped:
		return Encoded{Kind: EncodedScalar, Values: values}
	default:
		return Encoded{Kind: EncodedList, Values: values}
	}
}

func (enc Encoding) decodeItems(items []any) Encoded {
	var values []string
	for _, item := range items {
		var v string
		switch x := item.(type) {
		case string:
			v = strings.TrimSpace(x)
		case float64:
			v = formatFloat(x)
		default:
			continue
		}
		if enc.isSentinel(v) {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Encoded{}
	}
	return Encoded{Kind: EncodedList, Values: values}
}

func (enc Encoding) isSentinel(v string) bool {
	return v == "" || v == emptyObject || strings.EqualFold(v, enc.Sentinel)
}
