package sdmeta

import (
	"encoding/json"
	"strings"

	"github.com/knsan189/imageLabeler/internal/textchunk"
)

// Dialect is one known layout of embedded generation text.
type Dialect struct {
	Name  string
	Parse func(textchunk.Map) (*Metadata, bool)
}

// Dialects is tried in order by Parse; the first accepted record wins.
var Dialects = []Dialect{
	{Name: "standard", Parse: parseStandard},
	{Name: "loose", Parse: parseLoose},
	{Name: "structured", Parse: parseStructured},
	{Name: "freeform", Parse: parseFreeform},
	{Name: "combined", Parse: parseCombined},
}

// looseKeywords are tried in this order by the loose dialect.
var looseKeywords = []string{
	"description",
	"imagedescription",
	"comment",
	"usercomment",
	"pnginfo",
	"software",
}

// Parse recovers canonical metadata from decoded text. It reports false when
// no dialect yields a non-empty positive prompt.
func Parse(m textchunk.Map) (*Metadata, bool) {
	if !m.HasContent() {
		return nil, false
	}
	for _, d := range Dialects {
		md, ok := d.Parse(m)
		if !ok {
			continue
		}
		md.Dialect = d.Name
		md.Raw = m
		return md, true
	}
	return nil, false
}

// ParseText runs Parse over a single anonymous text value.
func ParseText(text string) (*Metadata, bool) {
	var m textchunk.Map
	m.Add("parameters", text)
	return Parse(m)
}

// accept normalizes weights and rejects records without a positive prompt.
func accept(md *Metadata) (*Metadata, bool) {
	if md == nil {
		return nil, false
	}
	md.Positive = strings.TrimSpace(NormalizeWeights(md.Positive))
	md.Negative = strings.TrimSpace(NormalizeWeights(md.Negative))
	if md.Positive == "" {
		return nil, false
	}
	return md, true
}

func parseStandard(m textchunk.Map) (*Metadata, bool) {
	v, ok := m.Lookup("parameters")
	if !ok || strings.TrimSpace(v) == "" || looksStructured(v) {
		return nil, false
	}
	return accept(parseBlock(v, strictBlock))
}

func parseLoose(m textchunk.Map) (*Metadata, bool) {
	for _, k := range looseKeywords {
		v, ok := m.Lookup(k)
		if !ok || strings.TrimSpace(v) == "" || looksStructured(v) {
			continue
		}
		if md, ok := accept(parseBlock(v, looseBlock)); ok {
			return md, true
		}
	}
	return nil, false
}

func parseStructured(m textchunk.Map) (*Metadata, bool) {
	for _, v := range m.Values() {
		t := strings.TrimSpace(v)
		if !strings.HasPrefix(t, "{") && !strings.HasPrefix(t, "[") {
			continue
		}
		if md, ok := accept(parseJSON(t)); ok {
			return md, true
		}
	}
	return nil, false
}

func parseFreeform(m textchunk.Map) (*Metadata, bool) {
	for _, v := range m.Values() {
		if md, ok := freeform(v); ok {
			return md, true
		}
	}
	return nil, false
}

func parseCombined(m textchunk.Map) (*Metadata, bool) {
	vals := m.Values()
	if len(vals) < 2 {
		// A single value was already tried by the freeform dialect.
		return nil, false
	}
	return freeform(strings.Join(vals, "\n"))
}

// looksStructured reports whether v is a JSON document. Block dialects leave
// those to the structured dialect instead of reading them as prompt text.
func looksStructured(v string) bool {
	t := strings.TrimSpace(v)
	if !strings.HasPrefix(t, "{") && !strings.HasPrefix(t, "[") {
		return false
	}
	return json.Valid([]byte(t))
}

func freeform(text string) (*Metadata, bool) {
	if !negativeMarker.MatchString(text) {
		return nil, false
	}
	return accept(parseBlock(text, looseBlock))
}
