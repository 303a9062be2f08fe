package sdmeta

import (
	"regexp"
	"strconv"
	"strings"
)

type blockMode int

const (
	// strictBlock splits the negative prompt from the header at a line break.
	strictBlock blockMode = iota
	// looseBlock locates the header with headerKey instead.
	looseBlock
)

var (
	negativeMarker = regexp.MustCompile(`(?i)negative prompt\s*:`)

	headerKeys = `Steps|Sampler|CFG scale|CFG|Seed|Size|Model hash|Model|Hires[^:,\n]*|Denoising strength|Clip skip|ENSD`

	// headerKey finds the first metadata field anywhere in a block.
	headerKey = regexp.MustCompile(`(?i)\b(?:` + headerKeys + `)\s*:`)

	// headerLine matches a line that begins with a metadata field.
	headerLine = regexp.MustCompile(`(?i)^\s*(?:` + headerKeys + `)\s*:`)

	sizeValue = regexp.MustCompile(`(\d+)\s*[xX×]\s*(\d+)`)
)

// parseBlock reads a "prompt / Negative prompt: / header" text block.
func parseBlock(text string, mode blockMode) *Metadata {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	md := &Metadata{Source: text}

	var header string
	if loc := negativeMarker.FindStringIndex(text); loc != nil {
		md.Positive = text[:loc[0]]
		rest := text[loc[1]:]
		md.Negative, header = splitNegative(rest, mode)
	} else {
		md.Positive, header = splitHeader(text, mode)
	}

	parseHeader(header, md)
	return md
}

// splitNegative divides the text after the negative marker into the negative
// prompt and the header.
func splitNegative(rest string, mode blockMode) (string, string) {
	if mode == looseBlock {
		if loc := headerKey.FindStringIndex(rest); loc != nil {
			return rest[:loc[0]], rest[loc[0]:]
		}
		return rest, ""
	}
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, ""
}

// splitHeader separates a block without a negative marker into prompt and header.
func splitHeader(text string, mode blockMode) (string, string) {
	if mode == looseBlock {
		if loc := headerKey.FindStringIndex(text); loc != nil {
			return text[:loc[0]], text[loc[0]:]
		}
		return text, ""
	}

	trimmed := strings.TrimRight(text, "\n \t")
	i := strings.LastIndexByte(trimmed, '\n')
	if i < 0 {
		return text, ""
	}
	if last := trimmed[i+1:]; headerLine.MatchString(last) {
		return trimmed[:i], last
	}
	return text, ""
}

type field int

const (
	fieldNone field = iota
	fieldSteps
	fieldSampler
	fieldCFG
	fieldSeed
	fieldSize
	fieldModel
)

var exactKeys = map[string]field{
	"steps":     fieldSteps,
	"sampler":   fieldSampler,
	"cfg scale": fieldCFG,
	"cfg":       fieldCFG,
	"seed":      fieldSeed,
	"size":      fieldSize,
	"model":     fieldModel,
}

var prefixKeys = []struct {
	prefix string
	field  field
}{
	{"steps", fieldSteps},
	{"sampler", fieldSampler},
	{"cfg", fieldCFG},
	{"seed", fieldSeed},
	{"size", fieldSize},
	{"model", fieldModel},
}

// classify maps a lowercased header key to a field. Exact keys report true.
func classify(key string) (field, bool) {
	if f, ok := exactKeys[key]; ok {
		return f, true
	}
	for _, p := range prefixKeys {
		if strings.HasPrefix(key, p.prefix) {
			return p.field, false
		}
	}
	return fieldNone, false
}

// parseHeader fills md from "Key: value, Key: value" text. Exact keys override
// earlier values; prefixed keys such as "Model hash" only fill empty fields.
// Values that do not parse are dropped.
func parseHeader(header string, md *Metadata) {
	header = strings.TrimSpace(header)
	if header == "" {
		return
	}

	set := make(map[field]bool)
	for _, seg := range splitFields(header) {
		key, value, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Join(strings.Fields(key), " "))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			continue
		}

		f, exact := classify(key)
		if f == fieldNone || (!exact && set[f]) {
			continue
		}
		if assign(md, f, value) {
			set[f] = true
		}
	}
}

func assign(md *Metadata, f field, value string) bool {
	switch f {
	case fieldSteps:
		n, ok := parseInt(value)
		if !ok {
			return false
		}
		md.Steps = &n
	case fieldSampler:
		md.Sampler = value
	case fieldCFG:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		md.CFG = &v
	case fieldSeed:
		md.Seed = value
	case fieldSize:
		m := sizeValue.FindStringSubmatch(value)
		if m == nil {
			return false
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		md.Size = &Size{Width: w, Height: h}
	case fieldModel:
		md.Model = value
	default:
		return false
	}
	return true
}

// splitFields splits on commas and line breaks outside double quotes.
func splitFields(s string) []string {
	var (
		out     []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ',', '\n':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func parseInt(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
