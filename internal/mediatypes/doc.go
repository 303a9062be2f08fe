// Package mediatypes holds the image extension tables shared by the work
// sources, the reconciliation loop and the file resolver.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles.
//
// # Extension Detection
//
//	if mediatypes.IsSupportedImage(name) {
//	    // candidate for metadata extraction
//	}
//
// StripDuplicateExt handles exports such as "image.png.png" that some
// generation front ends produce.
package mediatypes
