package filesystem

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/knsan189/imageLabeler/internal/mediatypes"
)

// Resolution strategies reported in Match.Strategy, in the order they are tried.
const (
	StrategyExact      = "exact"
	StrategyNormalized = "normalized"
	StrategyLoose      = "loose"
	StrategyStem       = "stem"
)

// Match is a local file found for a remote name.
type Match struct {
	Path     string
	Strategy string
}

// Resolve finds the local file in dir that corresponds to name. Remote indexes
// and local filesystems disagree on Unicode normalization (NFC vs NFD),
// percent-encoding and occasionally store a doubled extension, so the lookup
// falls back from an exact match to normalized variants, then a directory scan
// comparing case-folded normalized names, then a scan comparing stems.
func Resolve(dir, name string) (Match, bool) {
	if name == "" {
		return Match{}, false
	}

	if p := filepath.Join(dir, name); isRegularFile(p) {
		return Match{Path: p, Strategy: StrategyExact}, true
	}

	for _, v := range nameVariants(name) {
		if v == name {
			continue
		}
		if p := filepath.Join(dir, v); isRegularFile(p) {
			return Match{Path: p, Strategy: StrategyNormalized}, true
		}
	}

	entries, err := ReadDirWithRetry(dir, DefaultRetryConfig())
	if err != nil {
		return Match{}, false
	}

	want := looseKey(name)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if looseKey(e.Name()) == want {
			return Match{Path: filepath.Join(dir, e.Name()), Strategy: StrategyLoose}, true
		}
	}

	wantStem := stemKey(name)
	if wantStem == "" {
		return Match{}, false
	}
	for _, e := range entries {
		if e.IsDir() || !mediatypes.IsSupportedImage(e.Name()) {
			continue
		}
		if stemKey(e.Name()) == wantStem {
			return Match{Path: filepath.Join(dir, e.Name()), Strategy: StrategyStem}, true
		}
	}

	return Match{}, false
}

// nameVariants returns candidate spellings of name without duplicates.
func nameVariants(name string) []string {
	bases := []string{name}
	if unescaped, err := url.PathUnescape(name); err == nil && unescaped != name {
		bases = append(bases, unescaped)
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok || s == "" {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, b := range bases {
		for _, n := range []string{b, norm.NFC.String(b), norm.NFD.String(b)} {
			add(n)
			add(mediatypes.StripDuplicateExt(n))
		}
	}
	return out
}

// looseKey is the comparison key for the directory scan.
func looseKey(name string) string {
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = mediatypes.StripDuplicateExt(norm.NFC.String(name))
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}

func stemKey(name string) string {
	key := looseKey(name)
	return strings.TrimSpace(strings.TrimSuffix(key, filepath.Ext(key)))
}

func isRegularFile(path string) bool {
	info, err := StatWithRetry(path, DefaultRetryConfig())
	return err == nil && info.Mode().IsRegular()
}
