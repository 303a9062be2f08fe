package sdmeta

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

var (
	positiveAliases = []string{"prompt", "positive", "caption", "text"}
	negativeAliases = []string{"negative_prompt", "negative", "uc"}
	samplerAliases  = []string{"sampler", "sampler_name"}
	cfgAliases      = []string{"cfg_scale", "cfg"}
	modelAliases    = []string{"model", "model_name"}
)

// maxObjectDepth limits the search for a prompt-bearing object.
const maxObjectDepth = 4

// parseJSON decodes text as a JSON document and maps the first object that
// carries a positive prompt alias onto Metadata.
func parseJSON(text string) *Metadata {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	obj := findPromptObject(doc, 0)
	if obj == nil {
		return nil
	}

	md := &Metadata{Source: text}
	md.Positive = firstString(obj, positiveAliases)
	md.Negative = firstString(obj, negativeAliases)
	md.Sampler = firstString(obj, samplerAliases)
	md.Model = firstString(obj, modelAliases)

	if s, ok := scalar(obj["steps"]); ok {
		if n, ok := parseInt(s); ok {
			md.Steps = &n
		}
	}
	for _, k := range cfgAliases {
		if s, ok := scalar(obj[k]); ok {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				md.CFG = &v
				break
			}
		}
	}
	if s, ok := scalar(obj["seed"]); ok {
		md.Seed = s
	}

	w, wok := scalar(obj["width"])
	h, hok := scalar(obj["height"])
	if wok && hok {
		wn, ok1 := parseInt(w)
		hn, ok2 := parseInt(h)
		if ok1 && ok2 {
			md.Size = &Size{Width: wn, Height: hn}
		}
	} else if s, ok := obj["size"].(string); ok {
		assign(md, fieldSize, s)
	}
	return md
}

// findPromptObject walks v depth first, visiting object keys in sorted order.
func findPromptObject(v interface{}, depth int) map[string]interface{} {
	if depth > maxObjectDepth {
		return nil
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if firstString(t, positiveAliases) != "" {
			return t
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := findPromptObject(t[k], depth+1); found != nil {
				return found
			}
		}
	case []interface{}:
		for _, item := range t {
			if found := findPromptObject(item, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

func firstString(obj map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// scalar returns numbers and non-empty strings as text.
func scalar(v interface{}) (string, bool) {
	switch t := v.(type) {
	case json.Number:
		return t.String(), true
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	}
	return "", false
}
