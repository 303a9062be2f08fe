package sdmeta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knsan189/imageLabeler/internal/textchunk"
)

// Size is the generation resolution in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Metadata is the canonical field set recovered from embedded generation text.
// It is built once by Parse and not modified afterwards.
type Metadata struct {
	Positive string   `json:"positive"`
	Negative string   `json:"negative,omitempty"`
	Steps    *int     `json:"steps,omitempty"`
	Sampler  string   `json:"sampler,omitempty"`
	CFG      *float64 `json:"cfg,omitempty"`
	// Seed is kept verbatim; seeds routinely exceed float precision.
	Seed  string `json:"seed,omitempty"`
	Size  *Size  `json:"size,omitempty"`
	Model string `json:"model,omitempty"`

	// Dialect names the parser that accepted the record.
	Dialect string `json:"dialect"`
	// Source is the text block the record was parsed from.
	Source string `json:"-"`
	// Raw is the decoded map the parser was given.
	Raw textchunk.Map `json:"-"`
}

// SeedNumber returns the seed as an integer when it is one.
func (m *Metadata) SeedNumber() (int64, bool) {
	if m == nil || m.Seed == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m.Seed, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Summary renders the sampler parameters as a single header-style line,
// e.g. "Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512".
// Fields that were not recovered are omitted.
func (m *Metadata) Summary() string {
	if m == nil {
		return ""
	}
	var parts []string
	if m.Steps != nil {
		parts = append(parts, "Steps: "+strconv.Itoa(*m.Steps))
	}
	if m.Sampler != "" {
		parts = append(parts, "Sampler: "+m.Sampler)
	}
	if m.CFG != nil {
		parts = append(parts, "CFG scale: "+strconv.FormatFloat(*m.CFG, 'f', -1, 64))
	}
	if m.Seed != "" {
		parts = append(parts, "Seed: "+m.Seed)
	}
	if m.Size != nil {
		parts = append(parts, "Size: "+m.Size.String())
	}
	if m.Model != "" {
		parts = append(parts, "Model: "+m.Model)
	}
	return strings.Join(parts, ", ")
}

// WithSize returns a copy carrying size when the record has none.
func (m *Metadata) WithSize(width, height int) *Metadata {
	if m == nil || m.Size != nil || width <= 0 || height <= 0 {
		return m
	}
	c := *m
	c.Size = &Size{Width: width, Height: height}
	return &c
}
