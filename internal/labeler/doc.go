// Package labeler holds the per-candidate task: resolve the photo UID when
// only a local path is known, skip photos that already carry the marker
// label, find the local file, wait until it stops growing, extract and parse
// its generation metadata, and write the derived labels, the marker label and
// the caption back to the photo index.
package labeler
