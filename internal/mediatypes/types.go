package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a candidate file.
type FileType string

const (
	// FileTypeImage represents an image that may carry generation metadata.
	FileTypeImage FileType = "image"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
// Only containers that can carry embedded prompt text are listed.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".avif": true,
	".heic": true,
	".tif":  true,
	".tiff": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".png").
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Ext returns the lowercased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsSupportedImage reports whether name ends in a supported image extension.
func IsSupportedImage(name string) bool {
	return GetFileType(Ext(name)) == FileTypeImage
}

// StripDuplicateExt collapses a repeated trailing image extension, so
// "cat.png.png" becomes "cat.png". Names without a repeat are returned as is.
func StripDuplicateExt(name string) string {
	ext := filepath.Ext(name)
	if !ImageExtensions[strings.ToLower(ext)] {
		return name
	}
	base := strings.TrimSuffix(name, ext)
	if strings.EqualFold(filepath.Ext(base), ext) {
		return base
	}
	return name
}
