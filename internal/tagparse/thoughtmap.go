package tagparse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one extracted annotation. Key is the synthetic "{tag}_{i}" name,
// Content the trimmed captured text.
type Entry struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// ThoughtMap is an ordered mapping from synthetic keys to extracted content.
// Slice order is document order; keys are unique by construction. The zero
// value is an empty map.
type ThoughtMap []Entry

// Len returns the number of extracted entries.
func (m ThoughtMap) Len() int { return len(m) }

// Get returns the content stored under key.
func (m ThoughtMap) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Content, true
		}
	}
	return "", false
}

// Keys returns the keys in document order.
func (m ThoughtMap) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// Contents returns the contents in document order.
func (m ThoughtMap) Contents() []string {
	contents := make([]string, len(m))
	for i, e := range m {
		contents[i] = e.Content
	}
	return contents
}

// Equal reports whether both maps hold the same entries in the same order.
func (m ThoughtMap) Equal(other ThoughtMap) bool {
	if len(m) != len(other) {
		return false
	}
	for i, e := range m {
		if other[i] != e {
			return false
		}
	}
	return true
}

// MarshalJSON renders the map as a JSON object with keys in document order.
func (m ThoughtMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		content, err := json.Marshal(e.Content)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(content)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving its key order.
func (m *ThoughtMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("thought map: expected JSON object, got %v", tok)
	}
	var out ThoughtMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("thought map: non-string key %v", keyTok)
		}
		var content string
		if err := dec.Decode(&content); err != nil {
			return fmt.Errorf("thought map: value for %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Content: content})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

var (
	_ json.Marshaler   = ThoughtMap(nil)
	_ json.Unmarshaler = (*ThoughtMap)(nil)
)
