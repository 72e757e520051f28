package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// RefPrefix marks item image references that name a blob key
const RefPrefix = "blob:"

// Ref returns the image reference for a blob key
func Ref(key string) string { return RefPrefix + key }

// KeyFromRef extracts the blob key from an image reference
func KeyFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, RefPrefix), true
}

// NewKey returns a fresh object key keeping the extension of name
func NewKey(name string) string {
	return "images/" + uuid.NewString() + strings.ToLower(path.Ext(name))
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
