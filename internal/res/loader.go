package res

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gompdf/examsheet/internal/storage"
)

// BlobPrefix marks image references stored in a blob store
const BlobPrefix = storage.RefPrefix

// ErrNotImage is returned when a reference resolves to non-image content
var ErrNotImage = errors.New("resource is not an image")

// Resource represents a loaded resource
type Resource struct {
	URL      string
	Data     []byte
	MimeType string
}

// IsImage reports whether the resource holds image data
func (r *Resource) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// BlobGetter reads objects from a blob store
type BlobGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Loader resolves image references with an in-memory cache
type Loader struct {
	// Base URL or file path for resolving relative references
	BaseURL string

	cache     map[string]*Resource
	cacheLock sync.RWMutex

	searchPaths []string
	blobs       BlobGetter
	client      *http.Client
}

// NewLoader creates a new resource loader
func NewLoader(baseURL string) *Loader {
	return &Loader{
		BaseURL:     baseURL,
		cache:       make(map[string]*Resource),
		searchPaths: []string{},
		client:      &http.Client{},
	}
}

// AddSearchPath adds a directory to search for local resources
func (l *Loader) AddSearchPath(path string) {
	l.searchPaths = append(l.searchPaths, path)
}

// SetBlobStore enables blob: references
func (l *Loader) SetBlobStore(b BlobGetter) {
	l.blobs = b
}

// Purge drops every cached resource
func (l *Loader) Purge() {
	l.cacheLock.Lock()
	l.cache = make(map[string]*Resource)
	l.cacheLock.Unlock()
}

// Load loads a resource from a blob key, data URL, URL or file path
func (l *Loader) Load(ctx context.Context, ref string) (*Resource, error) {
	l.cacheLock.RLock()
	if res, ok := l.cache[ref]; ok {
		l.cacheLock.RUnlock()
		return res, nil
	}
	l.cacheLock.RUnlock()

	var (
		res *Resource
		err error
	)
	switch {
	case strings.HasPrefix(ref, BlobPrefix):
		key, _ := storage.KeyFromRef(ref)
		res, err = l.loadBlob(ctx, key)
	case strings.HasPrefix(ref, "data:"):
		res, err = parseDataURL(ref)
	default:
		var resolved string
		resolved, err = l.resolveURL(ref)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(resolved, "http://") || strings.HasPrefix(resolved, "https://") {
			res, err = l.loadRemote(ctx, resolved)
		} else {
			res, err = l.loadLocal(resolved)
		}
	}
	if err != nil {
		return nil, err
	}

	l.cacheLock.Lock()
	l.cache[ref] = res
	l.cacheLock.Unlock()
	return res, nil
}

// LoadImage loads an image resource
func (l *Loader) LoadImage(ctx context.Context, ref string) (*Resource, error) {
	res, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !res.IsImage() {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotImage)
	}
	return res, nil
}

// ImageData returns the bytes of an image reference
func (l *Loader) ImageData(ctx context.Context, ref string) ([]byte, error) {
	res, err := l.LoadImage(ctx, ref)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (l *Loader) loadBlob(ctx context.Context, key string) (*Resource, error) {
	if l.blobs == nil {
		return nil, fmt.Errorf("no blob store configured for %s%s", BlobPrefix, key)
	}
	rc, err := l.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return &Resource{URL: BlobPrefix + key, Data: data, MimeType: sniffMimeType(key, data)}, nil
}

// parseDataURL parses a data URL (RFC 2397) and returns a Resource.
// Examples:
//
//	data:image/png;base64,<base64>
//	data:text/plain,Hello%20World
func parseDataURL(u string) (*Resource, error) {
	s := strings.TrimPrefix(u, "data:")
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid data URL")
	}
	meta := parts[0]
	dataPart := parts[1]

	mime := "application/octet-stream"
	isBase64 := false
	if meta != "" {
		comps := strings.Split(meta, ";")
		if comps[0] != "" {
			mime = comps[0]
		}
		for _, c := range comps[1:] {
			if strings.EqualFold(strings.TrimSpace(c), "base64") {
				isBase64 = true
			}
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(dataPart)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data URL: %w", err)
		}
		data = decoded
	} else if d, err := url.QueryUnescape(dataPart); err == nil {
		data = []byte(d)
	} else {
		data = []byte(dataPart)
	}
	return &Resource{URL: u, Data: data, MimeType: mime}, nil
}

// resolveURL resolves a URL relative to the base URL
func (l *Loader) resolveURL(urlStr string) (string, error) {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr, nil
	}
	if filepath.IsAbs(urlStr) {
		return urlStr, nil
	}
	if !strings.HasPrefix(l.BaseURL, "http://") && !strings.HasPrefix(l.BaseURL, "https://") {
		if l.BaseURL == "" {
			return urlStr, nil
		}
		return filepath.Join(filepath.Dir(l.BaseURL), urlStr), nil
	}

	baseURL, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", err
	}
	relURL, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(relURL).String(), nil
}

// loadRemote loads a resource from a remote URL
func (l *Loader) loadRemote(ctx context.Context, urlStr string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = sniffMimeType(urlStr, data)
	}
	return &Resource{URL: urlStr, Data: data, MimeType: mime}, nil
}

// loadLocal loads a resource from a local file
func (l *Loader) loadLocal(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l.loadFromSearchPaths(path)
		}
		return nil, err
	}
	return &Resource{URL: path, Data: data, MimeType: sniffMimeType(path, data)}, nil
}

// loadFromSearchPaths tries to load a resource from the search paths
func (l *Loader) loadFromSearchPaths(filename string) (*Resource, error) {
	baseFilename := filepath.Base(filename)
	for _, searchPath := range l.searchPaths {
		path := filepath.Join(searchPath, baseFilename)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return &Resource{URL: path, Data: data, MimeType: sniffMimeType(path, data)}, nil
	}
	return nil, fmt.Errorf("resource not found: %s", filename)
}

// sniffMimeType prefers the file extension and falls back to content sniffing
func sniffMimeType(path string, data []byte) string {
	if m := determineMimeType(path); m != "application/octet-stream" {
		return m
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}

// determineMimeType determines the MIME type of a file
func determineMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// MimeType exposes the extension-based MIME lookup used by the loader
func MimeType(path string, data []byte) string {
	return sniffMimeType(path, data)
}
