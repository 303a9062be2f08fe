package sdmeta

import "regexp"

var (
	// (token:1.2) -> (token)
	weightedGroup = regexp.MustCompile(`\(([^():]+?)\s*:\s*-?\d+(?:\.\d+)?\s*\)`)
	// token:0.8 -> token
	bareWeight = regexp.MustCompile(`([^\s,():]+)\s*:\s*-?\d+(?:\.\d+)?`)
)

// NormalizeWeights strips attention weights from prompt text. Parenthesized
// "(token:weight)" groups collapse to "(token)" and bare "token:number" forms
// collapse to "token". The result is a fixed point, so applying it twice
// yields the same string.
func NormalizeWeights(s string) string {
	// Every pass that changes s removes at least one ":number", so the loop
	// ends after at most len(s)/2 passes.
	for {
		next := weightedGroup.ReplaceAllString(s, "($1)")
		next = bareWeight.ReplaceAllString(next, "$1")
		if next == s {
			return s
		}
		s = next
	}
}
