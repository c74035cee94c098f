package query

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessage_UnmarshalJSON(t *testing.T) {
	data := `{
		"id": 7,
		"channel_title": "DoctorsET",
		"message_id": 4512,
		"message": "Clinic opens at 9",
		"media_path": "photos/4512.jpg",
		"emoji": "",
		"youtube": "('https://youtu.be/xyz',)",
		"phone": "{0911223344,0922334455}",
		"message_date": "2024-05-01T08:30:00"
	}`

	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.ID != 7 || m.ChannelTitle != "DoctorsET" || m.MessageID != "4512" {
		t.Errorf("identity fields = %+v", m)
	}
	if m.Text != "Clinic opens at 9" {
		t.Errorf("Text = %q", m.Text)
	}
	if m.YouTube.Kind != EncodedList || len(m.YouTube.Values) != 1 {
		t.Errorf("YouTube = %+v, want one-element list", m.YouTube)
	}
	if len(m.Phone.Items()) != 2 {
		t.Errorf("Phone items = %v, want 2", m.Phone.Items())
	}
	want := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	if !m.MessageDate.Equal(want) {
		t.Errorf("MessageDate = %v, want %v", m.MessageDate, want)
	}
	if m.EmojiLabel() != NoEmoji {
		t.Errorf("EmojiLabel = %q, want %q", m.EmojiLabel(), NoEmoji)
	}
	if m.MediaLabel() != "photos/4512.jpg" {
		t.Errorf("MediaLabel = %q", m.MediaLabel())
	}
}

func TestMessage_MediaSentinel(t *testing.T) {
	for _, path := range []string{"", "  ", "no media", "No Media"} {
		m := Message{MediaPath: path}
		if m.HasMedia() {
			t.Errorf("HasMedia(%q) = true, want false", path)
		}
		if m.MediaLabel() != NoMedia {
			t.Errorf("MediaLabel(%q) = %q, want %q", path, m.MediaLabel(), NoMedia)
		}
	}
}

func TestRawMessage_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantID    MessageID
		wantMedia string
		wantTime  bool
	}{
		{
			name:      "media column",
			data:      `{"channel_name":"CheMed123","message_id":99,"sender":"42","timestamp":"2024-05-02 10:00:00","message":"hi","media":"m.jpg"}`,
			wantID:    "99",
			wantMedia: "m.jpg",
			wantTime:  true,
		},
		{
			name:      "media_path column",
			data:      `{"channel_name":"CheMed123","message_id":"100","media_path":"p.jpg","timestamp":"2024-05-02T10:00:00Z"}`,
			wantID:    "100",
			wantMedia: "p.jpg",
			wantTime:  true,
		},
		{
			name:   "placeholders",
			data:   `{"channel_name":"No channel name","message_id":"no message id","timestamp":"No timestamp","media":null}`,
			wantID: "no message id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RawMessage
			if err := json.Unmarshal([]byte(tt.data), &r); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if r.MessageID != tt.wantID {
				t.Errorf("MessageID = %q, want %q", r.MessageID, tt.wantID)
			}
			if r.Media != tt.wantMedia {
				t.Errorf("Media = %q, want %q", r.Media, tt.wantMedia)
			}
			if r.Timestamp.IsZero() == tt.wantTime {
				t.Errorf("Timestamp = %v, want parsed=%v", r.Timestamp, tt.wantTime)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(time.Time{}); got != NotAvailable {
		t.Errorf("FormatTimestamp(zero) = %q, want %q", got, NotAvailable)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2024-01-02 03:04:05" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
