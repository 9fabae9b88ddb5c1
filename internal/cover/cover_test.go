package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
)

type countingFetcher struct {
	data  []byte
	err   error
	calls int
}

func (fetcher *countingFetcher) FetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	fetcher.calls++
	return fetcher.data, fetcher.err
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buffer.Bytes()
}

func TestLoadCachesDownloadedCover(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	fetcher := &countingFetcher{data: pngBytes(t, 4, 6)}
	coverURL := "https://www.gutenberg.org/cache/epub/74/pg74.cover.medium.jpg"

	first, err := cache.Load(context.Background(), fetcher, coverURL)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if first.Width != 4 || first.Height != 6 {
		t.Fatalf("unexpected dimensions: %+v", first)
	}

	second, err := cache.Load(context.Background(), fetcher, coverURL)
	if err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single download, got %d", fetcher.calls)
	}
	if second.FilePath != first.FilePath {
		t.Fatalf("expected same cache file, got %s and %s", first.FilePath, second.FilePath)
	}
}

func TestLoadPropagatesFetchError(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	fetcher := &countingFetcher{err: errors.New("boom")}

	if _, err := cache.Load(context.Background(), fetcher, "https://g.org/c.png"); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestLookupDropsCorruptFile(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	coverURL := "https://g.org/c.png"

	path, err := cache.path(coverURL)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, ok, err := cache.Lookup(coverURL); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected corrupt file to be removed")
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	if _, err := cache.Save("https://g.org/c.png", nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
	if _, err := cache.Save("https://g.org/c.png", []byte("garbage")); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := cache.Save(" ", pngBytes(t, 1, 1)); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestClear(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	if _, err := cache.Save("https://g.org/c.png", pngBytes(t, 2, 2)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(cache.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected cache dir to be gone")
	}
}

func TestRenderKitty(t *testing.T) {
	out, err := RenderKitty("/tmp/c.png", 0, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "\x1b_Ga=T,f=100,t=f,c=20,r=10") {
		t.Fatalf("unexpected escape: %q", out)
	}
	if !strings.Contains(out, base64.StdEncoding.EncodeToString([]byte("/tmp/c.png"))) {
		t.Fatalf("path not encoded: %q", out)
	}
	if _, err := RenderKitty("", 1, 1); err == nil {
		t.Fatalf("expected error for empty path")
	}

	if !SupportsKittyGraphics("xterm-kitty") || SupportsKittyGraphics("xterm-256color") {
		t.Fatalf("unexpected terminal detection")
	}
}
