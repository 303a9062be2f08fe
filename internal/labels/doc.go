// Package labels derives tag labels from prompt text.
//
// A prompt is split on commas and on "|" alternations. Each candidate has its
// weight syntax, periods and brackets removed, is lowercased and whitespace
// collapsed, and is dropped when shorter than MinLength or a stopword.
// Duplicates are removed case-insensitively keeping the first occurrence.
// Build also appends a label for the checkpoint named by "Model: <value>".
package labels
