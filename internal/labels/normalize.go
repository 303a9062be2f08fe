package labels

import (
	"regexp"
	"strings"

	"github.com/knsan189/imageLabeler/internal/sdmeta"
)

// MinLength is the shortest label that is kept.
const MinLength = 2

var (
	weightRemnant = regexp.MustCompile(`:\s*-?\d+(?:\.\d+)?`)
	emphasisGroup = regexp.MustCompile(`\([^()]*:[^()]*\)`)
	modelMarker   = regexp.MustCompile(`(?i)\bModel\s*:\s*([^,\n]+)`)

	bracketStripper = strings.NewReplacer(
		"(", " ", ")", " ",
		"[", " ", "]", " ",
		"{", " ", "}", " ",
		"<", " ", ">", " ",
	)
)

// Normalizer turns prompt text into labels.
type Normalizer struct {
	stopwords  map[string]struct{}
	limit      int
	modelLabel bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStopwords replaces the stopword set.
func WithStopwords(words []string) Option {
	return func(n *Normalizer) {
		n.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			n.addStopword(w)
		}
	}
}

// WithExtraStopwords adds words to the current stopword set.
func WithExtraStopwords(words ...string) Option {
	return func(n *Normalizer) {
		for _, w := range words {
			n.addStopword(w)
		}
	}
}

// WithLimit caps the number of labels Build and FromPrompt return. 0 disables the cap.
func WithLimit(limit int) Option {
	return func(n *Normalizer) {
		if limit < 0 {
			limit = 0
		}
		n.limit = limit
	}
}

// WithModelLabel toggles the model label in Build.
func WithModelLabel(enabled bool) Option {
	return func(n *Normalizer) {
		n.modelLabel = enabled
	}
}

// New returns a Normalizer with the default stopwords, no limit and model
// labels enabled.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{modelLabel: true}
	WithStopwords(DefaultStopwords())(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) addStopword(w string) {
	if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
		n.stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether w is in the stopword set.
func (n *Normalizer) IsStopword(w string) bool {
	_, ok := n.stopwords[strings.ToLower(w)]
	return ok
}

// Limit returns the configured label limit.
func (n *Normalizer) Limit() int {
	return n.limit
}

// Clean applies the token cleaning rules to a single candidate:
// weight remnants, periods, "(x:y)" groups and brackets are removed,
// whitespace is collapsed and the result is lowercased. Stopwords at either
// end of a multi-word token are trimmed.
func (n *Normalizer) Clean(token string) string {
	s := weightRemnant.ReplaceAllString(token, "")
	s = strings.ReplaceAll(s, ".", "")
	s = emphasisGroup.ReplaceAllString(s, "")
	s = bracketStripper.Replace(s)
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))

	words := strings.Fields(s)
	for len(words) > 1 && n.IsStopword(words[0]) {
		words = words[1:]
	}
	for len(words) > 1 && n.IsStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// accepts reports whether a cleaned token is a usable label.
func (n *Normalizer) accepts(label string) bool {
	return len([]rune(label)) >= MinLength && !n.IsStopword(label)
}

// FromPrompt splits prompt on commas and pipes and returns the cleaned,
// deduplicated labels in first-seen order.
func (n *Normalizer) FromPrompt(prompt string) []string {
	set := NewSet(n.limit)
	n.addPrompt(set, prompt)
	return set.Items()
}

func (n *Normalizer) addPrompt(set *Set, prompt string) {
	for _, segment := range strings.Split(prompt, ",") {
		for _, alt := range strings.Split(segment, "|") {
			if set.Full() {
				return
			}
			if label := n.Clean(alt); n.accepts(label) {
				set.Add(label)
			}
		}
	}
}

// ModelLabel extracts the value of a "Model: <value>" marker anywhere in
// source and cleans it like a prompt token.
func (n *Normalizer) ModelLabel(source string) (string, bool) {
	m := modelMarker.FindStringSubmatch(source)
	if m == nil {
		return "", false
	}
	label := n.Clean(m[1])
	if !n.accepts(label) {
		return "", false
	}
	return label, true
}

// Build derives the label list for md: prompt labels followed by the model
// label, all within the limit.
func (n *Normalizer) Build(md *sdmeta.Metadata) []string {
	if md == nil {
		return nil
	}
	set := NewSet(n.limit)
	n.addPrompt(set, md.Positive)

	if n.modelLabel {
		label, ok := n.ModelLabel(md.Source)
		if !ok && md.Model != "" {
			label = n.Clean(md.Model)
			ok = n.accepts(label)
		}
		if ok {
			set.Add(label)
		}
	}
	return set.Items()
}
