// Package query holds the data model shared by the gateway, the dataset store,
// the dashboard and the export pipeline: the two message row shapes, ordered
// records for export, and the Descriptor that parameterizes list requests.
package query

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Display labels for fields that carry no data.
const (
	NoMedia      = "no media"
	NoEmoji      = "no emoji"
	NoYouTube    = "No YouTube"
	NoPhone      = "No Phone"
	NotAvailable = "N/A"
)

// MessageID is a Telegram message identifier. The API sends it as a number,
// but raw rows inserted without an id carry a placeholder string instead.
type MessageID string

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = MessageID(n.String())
	return nil
}

func (id MessageID) String() string { return string(id) }

// Message is a processed message row from GET /messages.
type Message struct {
	ID           int64 // server row id, 0 when the server omits it
	ChannelTitle string
	MessageID    MessageID
	Text         string
	MediaPath    string
	Emoji        string
	YouTube      Encoded
	Phone        Encoded
	MessageDate  time.Time
}

type messageWire struct {
	ID           int64           `json:"id"`
	ChannelTitle string          `json:"channel_title"`
	MessageID    MessageID       `json:"message_id"`
	Message      string          `json:"message"`
	MediaPath    string          `json:"media_path"`
	Emoji        string          `json:"emoji"`
	YouTube      json.RawMessage `json:"youtube"`
	Phone        json.RawMessage `json:"phone"`
	MessageDate  string          `json:"message_date"`
}

// UnmarshalJSON decodes a processed row, normalizing the polymorphic youtube
// and phone columns once so renderers never re-parse them.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		ID:           w.ID,
		ChannelTitle: w.ChannelTitle,
		MessageID:    w.MessageID,
		Text:         w.Message,
		MediaPath:    w.MediaPath,
		Emoji:        w.Emoji,
		YouTube:      YouTubeEncoding.Decode(w.YouTube),
		Phone:        PhoneEncoding.Decode(w.Phone),
		MessageDate:  ParseTimestamp(w.MessageDate),
	}
	return nil
}

// HasMedia reports whether MediaPath points at real media.
func (m Message) HasMedia() bool {
	p := strings.TrimSpace(m.MediaPath)
	return p != "" && !strings.EqualFold(p, NoMedia)
}

// MediaLabel returns the media path or the "no media" sentinel.
func (m Message) MediaLabel() string {
	if !m.HasMedia() {
		return NoMedia
	}
	return m.MediaPath
}

// EmojiLabel returns the emoji column or the "no emoji" sentinel.
func (m Message) EmojiLabel() string {
	if m.Emoji == "" {
		return NoEmoji
	}
	return m.Emoji
}

// RawMessage is an unprocessed row from GET /messages/raw or POST /messages/recent.
type RawMessage struct {
	ChannelName string
	MessageID   MessageID
	Sender      string
	Timestamp   time.Time
	Text        string
	Media       string
}

type rawMessageWire struct {
	ChannelName string    `json:"channel_name"`
	MessageID   MessageID `json:"message_id"`
	Sender      string    `json:"sender"`
	Timestamp   string    `json:"timestamp"`
	Message     string    `json:"message"`
	Media       string    `json:"media"`
	MediaPath   string    `json:"media_path"`
}

// UnmarshalJSON decodes a raw row. Some server versions name the media
// column media_path instead of media.
func (r *RawMessage) UnmarshalJSON(data []byte) error {
	var w rawMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	media := w.Media
	if media == "" {
		media = w.MediaPath
	}
	*r = RawMessage{
		ChannelName: w.ChannelName,
		MessageID:   w.MessageID,
		Sender:      w.Sender,
		Timestamp:   ParseTimestamp(w.Timestamp),
		Text:        w.Message,
		Media:       media,
	}
	return nil
}

// MediaLabel returns the media link or N/A.
func (r RawMessage) MediaLabel() string {
	if strings.TrimSpace(r.Media) == "" {
		return NotAvailable
	}
	return r.Media
}

// Page is one page of a list endpoint. Records holds the same rows in their
// original key order for export.
type Page[T any] struct {
	Rows    []T
	Total   int64
	Records []Record
}

// Recent is the result of POST /messages/recent.
type Recent struct {
	Messages []RawMessage
	Count    int
	Records  []Record
}

// Ack is the acknowledgement returned by POST /messages/process.
type Ack struct {
	Status  string
	Message string
}

// timestampLayouts are the layouts the API has been observed to emit.
// FastAPI serializes naive datetimes without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an API timestamp. Unparseable or placeholder values
// ("No timestamp") yield the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

// FormatTimestamp renders a timestamp for tables, or N/A for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format("2006-01-02 15:04:05")
}
