package res

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

type memBlobs map[string][]byte

func (m memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func TestLoadDataURL(t *testing.T) {
	l := NewLoader("")
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngMagic)
	data, err := l.ImageData(context.Background(), ref)
	if err != nil {
		t.Fatalf("ImageData: %v", err)
	}
	if string(data) != string(pngMagic) {
		t.Fatalf("data = %q", data)
	}

	if _, err := l.ImageData(context.Background(), "data:text/plain,Hello%20World"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("text data URL: err = %v", err)
	}
	if _, err := l.Load(context.Background(), "data:nocomma"); err == nil {
		t.Fatal("expected error for malformed data URL")
	}
}

func TestLoadLocalRelativeToBase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "q1.png"), pngMagic, 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(filepath.Join(dir, "exam.yaml"))
	res, err := l.LoadImage(context.Background(), "q1.png")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if res.MimeType != "image/png" {
		t.Fatalf("mime = %q", res.MimeType)
	}
	if !res.IsImage() || len(res.Data) == 0 {
		t.Fatalf("resource = %+v", res)
	}
}

func TestSearchPathsAndPurge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q2.png")
	if err := os.WriteFile(path, pngMagic, 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader("")
	l.AddSearchPath(dir)
	ctx := context.Background()
	if _, err := l.ImageData(ctx, "elsewhere/q2.png"); err != nil {
		t.Fatalf("search path lookup: %v", err)
	}

	// cached until purged
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ImageData(ctx, "elsewhere/q2.png"); err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	l.Purge()
	if _, err := l.ImageData(ctx, "elsewhere/q2.png"); err == nil {
		t.Fatal("expected error after purge")
	}
}

func TestLoadBlob(t *testing.T) {
	l := NewLoader("")
	ctx := context.Background()
	if _, err := l.Load(ctx, BlobPrefix+"images/a.png"); err == nil {
		t.Fatal("expected error without blob store")
	}
	l.SetBlobStore(memBlobs{"images/a.png": pngMagic, "images/raw": pngMagic})
	for _, key := range []string{"images/a.png", "images/raw"} {
		res, err := l.LoadImage(ctx, BlobPrefix+key)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if res.MimeType != "image/png" {
			t.Fatalf("%s: mime = %q", key, res.MimeType)
		}
	}
}

func TestLoadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img/q.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngMagic)
	}))
	defer srv.Close()

	l := NewLoader(srv.URL + "/exam/")
	ctx := context.Background()
	if _, err := l.ImageData(ctx, "../img/q.png"); err != nil {
		t.Fatalf("relative remote: %v", err)
	}
	if _, err := l.ImageData(ctx, srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected HTTP error")
	}
}
