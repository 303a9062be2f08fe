// Package textchunk decodes the text metadata chunks of PNG files.
//
// Supported chunk types:
//   - tEXt: uncompressed latin1 keyword and text
//   - zTXt: latin1 keyword, deflate compressed latin1 text
//   - iTXt: latin1 keyword, optionally compressed UTF-8 text
//
// Decoding is best effort. The result is a Map that preserves keyword case and
// first-seen order; callers look keywords up case-insensitively with Lookup.
package textchunk
