package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcomes writes one "outcome: count" line per outcome, sorted.
func printOutcomes(w io.Writer, indent string, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintf(w, "%s(none)\n", indent)
		return
	}
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(w, "%s%-16s %d\n", indent, k+":", counts[k])
	}
}
