package models

import (
	"encoding/json"
	"time"
)

// Timestamp normalizes the heterogeneous time encodings found in persisted
// price entries. Entries written by this service carry RFC 3339, but entries
// migrated from the legacy scraper carry RFC-1123 strings ("Mon, 02 Jan 2006
// 15:04:05 GMT"). Decoding happens once here; downstream freshness logic only
// ever sees a time.Time. An unparsable value decodes to the zero time, which
// the cache treats as stale rather than as an error.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	"Mon, 02 Jan 2006 15:04:05 GMT",
	"Mon, 2 Jan 2006 15:04:05 GMT",
}

// UnmarshalJSON accepts any of the known encodings. Null, empty and
// unparsable values all decode to the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON always writes RFC 3339 UTC; the zero time marshals as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
