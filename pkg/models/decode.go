package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an opaque server identifier. Servers send ids as strings or as
// numbers; both decode to the same text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime reads a server timestamp in any of the layouts servers are known
// to send. Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeTime turns a raw JSON timestamp into a time. Missing, null and empty
// values give nil. A value it cannot read also gives nil, and comes back as
// unparsed so the caller can log it.
func DecodeTime(raw json.RawMessage) (t *time.Time, unparsed string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, string(raw)
	}
	if s == "" {
		return nil, ""
	}
	parsed, ok := ParseTime(s)
	if !ok {
		return nil, s
	}
	return &parsed, ""
}
