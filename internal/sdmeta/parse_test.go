package sdmeta

import (
	"testing"

	"github.com/knsan189/imageLabeler/internal/textchunk"
)

const standardBlock = "a cat, (tree:1.1)\nNegative prompt: blurry\n" +
	"Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: foo.safetensors"

func TestParseStandardEndToEnd(t *testing.T) {
	md, ok := Parse(textchunk.FromStrings(map[string]string{"parameters": standardBlock}))
	if !ok {
		t.Fatal("expected metadata")
	}

	if md.Positive != "a cat, (tree)" {
		t.Errorf("Positive = %q", md.Positive)
	}
	if md.Negative != "blurry" {
		t.Errorf("Negative = %q", md.Negative)
	}
	if md.Steps == nil || *md.Steps != 20 {
		t.Errorf("Steps = %v", md.Steps)
	}
	if md.Sampler != "Euler a" {
		t.Errorf("Sampler = %q", md.Sampler)
	}
	if md.CFG == nil || *md.CFG != 7 {
		t.Errorf("CFG = %v", md.CFG)
	}
	if n, ok := md.SeedNumber(); !ok || n != 42 {
		t.Errorf("Seed = %q", md.Seed)
	}
	if md.Size == nil || *md.Size != (Size{Width: 512, Height: 512}) {
		t.Errorf("Size = %v", md.Size)
	}
	if md.Model != "foo.safetensors" {
		t.Errorf("Model = %q", md.Model)
	}
	if md.Dialect != "standard" {
		t.Errorf("Dialect = %q", md.Dialect)
	}
	if md.Raw.Len() != 1 {
		t.Errorf("Raw not attached")
	}
}

func TestParseHeaderOrderAndCaseInsensitive(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "canonical", header: "Steps: 30, Sampler: DPM++ 2M, CFG scale: 5.5, Seed: 7, Size: 640x832, Model: sdxl"},
		{name: "reversed", header: "Model: sdxl, Size: 640x832, Seed: 7, CFG scale: 5.5, Sampler: DPM++ 2M, Steps: 30"},
		{name: "lowercase keys", header: "steps: 30, sampler: DPM++ 2M, cfg scale: 5.5, seed: 7, size: 640x832, model: sdxl"},
		{name: "extra fields", header: "Steps: 30, Sampler: DPM++ 2M, Schedule type: Karras, CFG scale: 5.5, Seed: 7, Size: 640x832, Model hash: abc123, Model: sdxl, Version: v1.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "portrait\nNegative prompt: lowres\n" + tt.header
			md, ok := Parse(textchunk.FromStrings(map[string]string{"Parameters": text}))
			if !ok {
				t.Fatal("expected metadata")
			}
			if md.Positive != "portrait" || md.Negative != "lowres" {
				t.Errorf("split = %q / %q", md.Positive, md.Negative)
			}
			if md.Steps == nil || *md.Steps != 30 {
				t.Errorf("Steps = %v", md.Steps)
			}
			if md.Sampler != "DPM++ 2M" {
				t.Errorf("Sampler = %q", md.Sampler)
			}
			if md.CFG == nil || *md.CFG != 5.5 {
				t.Errorf("CFG = %v", md.CFG)
			}
			if md.Seed != "7" {
				t.Errorf("Seed = %q", md.Seed)
			}
			if md.Size == nil || md.Size.Width != 640 || md.Size.Height != 832 {
				t.Errorf("Size = %v", md.Size)
			}
			if md.Model != "sdxl" {
				t.Errorf("Model = %q", md.Model)
			}
		})
	}
}

func TestParseHeaderPartialAndInvalid(t *testing.T) {
	text := "sunset\nNegative prompt: \nSteps: many, CFG scale: 6, Size: big"
	md, ok := Parse(textchunk.FromStrings(map[string]string{"parameters": text}))
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Steps != nil {
		t.Errorf("unparsable steps should be dropped, got %d", *md.Steps)
	}
	if md.Size != nil {
		t.Errorf("unparsable size should be dropped, got %v", md.Size)
	}
	if md.CFG == nil || *md.CFG != 6 {
		t.Errorf("CFG = %v", md.CFG)
	}
	if md.Negative != "" {
		t.Errorf("Negative = %q", md.Negative)
	}
}

func TestParseModelHashDoesNotOverrideModel(t *testing.T) {
	text := "x y\nNegative prompt: z\nModel hash: deadbeef, Model: realistic"
	md, _ := ParseText(text)
	if md == nil || md.Model != "realistic" {
		t.Fatalf("Model = %+v", md)
	}

	md, _ = ParseText("x y\nNegative prompt: z\nModel hash: deadbeef")
	if md == nil || md.Model != "deadbeef" {
		t.Errorf("Model hash should fill an empty model, got %+v", md)
	}
}

func TestParseNegativeWithoutHeader(t *testing.T) {
	md, ok := ParseText("a dog\nNegative prompt: ugly, bad hands")
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Negative != "ugly, bad hands" {
		t.Errorf("Negative = %q", md.Negative)
	}
	if md.Steps != nil || md.Model != "" {
		t.Error("no header fields expected")
	}
}

func TestParseStandardWithoutNegative(t *testing.T) {
	md, ok := ParseText("castle on a hill\nSteps: 12, Seed: 99")
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Positive != "castle on a hill" {
		t.Errorf("Positive = %q", md.Positive)
	}
	if md.Steps == nil || *md.Steps != 12 || md.Seed != "99" {
		t.Errorf("header not parsed: %+v", md)
	}
}

func TestParseQuotedHeaderValues(t *testing.T) {
	text := "x\nNegative prompt: y\nSteps: 10, Lora hashes: \"a: 1, b: 2\", Seed: 5"
	md, _ := ParseText(text)
	if md == nil || md.Seed != "5" || md.Steps == nil {
		t.Fatalf("quoted values broke header parsing: %+v", md)
	}
}

func TestParseLooseDialect(t *testing.T) {
	m := textchunk.FromStrings(map[string]string{
		"Software":    "Some Editor 1.0",
		"Description": "a fox in snow Negative prompt: blur Steps: 25, Sampler: Euler, Seed: 3",
	})
	md, ok := Parse(m)
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Dialect != "loose" {
		t.Errorf("Dialect = %q", md.Dialect)
	}
	if md.Positive != "a fox in snow" || md.Negative != "blur" {
		t.Errorf("split = %q / %q", md.Positive, md.Negative)
	}
	if md.Steps == nil || *md.Steps != 25 || md.Sampler != "Euler" {
		t.Errorf("header = %+v", md)
	}
}

func TestParseLooseHeaderWithoutMarker(t *testing.T) {
	m := textchunk.FromStrings(map[string]string{
		"Comment": "misty forest, river Steps: 8, CFG: 3.5, Hires upscale: 2, Denoising strength: 0.4",
	})
	md, ok := Parse(m)
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Positive != "misty forest, river" {
		t.Errorf("Positive = %q", md.Positive)
	}
	if md.CFG == nil || *md.CFG != 3.5 {
		t.Errorf("CFG = %v", md.CFG)
	}
}

func TestParseStructuredDialect(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T, md *Metadata)
	}{
		{
			name:  "flat object",
			value: `{"prompt": "a robot, (chrome:1.3)", "negative_prompt": "rust", "steps": 28, "sampler_name": "DDIM", "cfg_scale": 6.5, "seed": 12345678901234567890, "width": 768, "height": 512, "model": "m1"}`,
			check: func(t *testing.T, md *Metadata) {
				if md.Positive != "a robot, (chrome)" || md.Negative != "rust" {
					t.Errorf("prompts = %q / %q", md.Positive, md.Negative)
				}
				if md.Steps == nil || *md.Steps != 28 || md.Sampler != "DDIM" {
					t.Errorf("steps/sampler = %v %q", md.Steps, md.Sampler)
				}
				if md.CFG == nil || *md.CFG != 6.5 {
					t.Errorf("CFG = %v", md.CFG)
				}
				if md.Seed != "12345678901234567890" {
					t.Errorf("Seed = %q", md.Seed)
				}
				if md.Size == nil || md.Size.Width != 768 || md.Size.Height != 512 {
					t.Errorf("Size = %v", md.Size)
				}
				if md.Model != "m1" {
					t.Errorf("Model = %q", md.Model)
				}
			},
		},
		{
			name:  "aliases",
			value: `{"caption": "beach", "uc": "people", "cfg": "4", "model_name": "m2"}`,
			check: func(t *testing.T, md *Metadata) {
				if md.Positive != "beach" || md.Negative != "people" || md.Model != "m2" {
					t.Errorf("got %+v", md)
				}
				if md.CFG == nil || *md.CFG != 4 {
					t.Errorf("CFG = %v", md.CFG)
				}
			},
		},
		{
			name:  "nested",
			value: `{"meta": {"job": {"text": "city at night", "steps": "15"}}}`,
			check: func(t *testing.T, md *Metadata) {
				if md.Positive != "city at night" {
					t.Errorf("Positive = %q", md.Positive)
				}
				if md.Steps == nil || *md.Steps != 15 {
					t.Errorf("Steps = %v", md.Steps)
				}
			},
		},
		{
			name:  "array",
			value: `[{"other": 1}, {"positive": "mountains"}]`,
			check: func(t *testing.T, md *Metadata) {
				if md.Positive != "mountains" {
					t.Errorf("Positive = %q", md.Positive)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, ok := Parse(textchunk.FromStrings(map[string]string{"Comment": tt.value}))
			if !ok {
				t.Fatal("expected metadata")
			}
			if md.Dialect != "structured" {
				t.Errorf("Dialect = %q", md.Dialect)
			}
			tt.check(t, md)
		})
	}
}

func TestParseStructuredTooDeep(t *testing.T) {
	value := `{"a": {"b": {"c": {"d": {"e": {"prompt": "hidden"}}}}}}`
	if _, ok := Parse(textchunk.FromStrings(map[string]string{"prompt": value})); ok {
		t.Error("objects beyond the search depth should not be found")
	}
}

func TestParseFreeformDialect(t *testing.T) {
	m := textchunk.FromStrings(map[string]string{
		"XMP": "generated: a lighthouse\nnegative PROMPT: fog\nSteps: 40",
	})
	md, ok := Parse(m)
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Dialect != "freeform" {
		t.Errorf("Dialect = %q", md.Dialect)
	}
	if md.Negative != "fog" {
		t.Errorf("Negative = %q", md.Negative)
	}
	if md.Steps == nil || *md.Steps != 40 {
		t.Errorf("Steps = %v", md.Steps)
	}
}

func TestParseCombinedDialect(t *testing.T) {
	var m textchunk.Map
	m.Add("Title", "red car on a road")
	m.Add("Remark", "Negative prompt: people\nSteps: 9")

	md, ok := Parse(m)
	if !ok {
		t.Fatal("expected metadata")
	}
	if md.Dialect != "combined" {
		t.Errorf("Dialect = %q", md.Dialect)
	}
	if md.Positive != "red car on a road" || md.Negative != "people" {
		t.Errorf("split = %q / %q", md.Positive, md.Negative)
	}
}

func TestParseNotFound(t *testing.T) {
	tests := []struct {
		name string
		m    textchunk.Map
	}{
		{name: "empty map", m: textchunk.Map{}},
		{name: "blank values", m: textchunk.FromStrings(map[string]string{"parameters": "  \n "})},
		{name: "marker only", m: textchunk.FromStrings(map[string]string{"parameters": "Negative prompt: x\nSteps: 2"})},
		{name: "json without prompt", m: textchunk.FromStrings(map[string]string{"workflow": `{"nodes": []}`})},
		{name: "unrelated keyword", m: textchunk.FromStrings(map[string]string{"Author": "me"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if md, ok := Parse(tt.m); ok {
				t.Errorf("expected not found, got %+v", md)
			}
		})
	}
}

func TestParseStandardPreferredOverLoose(t *testing.T) {
	m := textchunk.FromStrings(map[string]string{
		"Description": "from description",
		"parameters":  "from parameters",
	})
	md, ok := Parse(m)
	if !ok || md.Positive != "from parameters" {
		t.Errorf("got %+v", md)
	}
}

func TestSummaryAndWithSize(t *testing.T) {
	md, _ := ParseText(standardBlock)
	want := "Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: foo.safetensors"
	if got := md.Summary(); got != want {
		t.Errorf("Summary = %q", got)
	}

	bare, _ := ParseText("just a prompt")
	if bare.Summary() != "" {
		t.Errorf("Summary = %q, want empty", bare.Summary())
	}
	sized := bare.WithSize(1024, 768)
	if sized.Size == nil || sized.Size.Width != 1024 {
		t.Errorf("WithSize = %v", sized.Size)
	}
	if bare.Size != nil {
		t.Error("WithSize must not modify the receiver")
	}
	if md.WithSize(1, 1).Size.Width != 512 {
		t.Error("WithSize must keep an existing size")
	}
}
