package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsLocal reports whether an image reference names a file on disk
func IsLocal(ref string) bool {
	if ref == "" {
		return false
	}
	for _, p := range []string{RefPrefix, "data:", "http://", "https://"} {
		if strings.HasPrefix(ref, p) {
			return false
		}
	}
	return true
}

// PutFile copies a local file into s under a fresh key and returns its ref
func PutFile(ctx context.Context, s BlobStore, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	key, err := s.Put(ctx, NewKey(filepath.Base(path)), f)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return Ref(key), nil
}
