package textchunk

import (
	"sort"
	"strings"
)

// Map holds decoded text keyed by chunk keyword. Keywords keep their original
// case and first-seen order; a repeated keyword has its texts joined with a
// newline in encounter order. The zero value is an empty map ready to use.
type Map struct {
	keys   []string
	values map[string]string
}

// FromStrings builds a Map from a plain map, ordering keywords by name.
func FromStrings(src map[string]string) Map {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var m Map
	for _, k := range keys {
		m.Add(k, src[k])
	}
	return m
}

// Add records text under keyword. Empty keywords are ignored.
func (m *Map) Add(keyword, text string) {
	if keyword == "" {
		return
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if prev, ok := m.values[keyword]; ok {
		m.values[keyword] = prev + "\n" + text
		return
	}
	m.keys = append(m.keys, keyword)
	m.values[keyword] = text
}

// Get returns the text stored under the exact keyword.
func (m Map) Get(keyword string) (string, bool) {
	v, ok := m.values[keyword]
	return v, ok
}

// Lookup finds the first keyword equal to name ignoring case.
func (m Map) Lookup(name string) (string, bool) {
	for _, k := range m.keys {
		if strings.EqualFold(k, name) {
			return m.values[k], true
		}
	}
	return "", false
}

// Keys returns the keywords in first-seen order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keywords.
func (m Map) Len() int {
	return len(m.keys)
}

// Values returns the non-blank texts in keyword order. Blank entries carry no
// metadata and are left out.
func (m Map) Values() []string {
	out := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		if v := m.values[k]; strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// HasContent reports whether any keyword carries non-blank text.
func (m Map) HasContent() bool {
	for _, v := range m.values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// ToStrings returns a plain copy, mainly for diagnostics and JSON output.
func (m Map) ToStrings() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
