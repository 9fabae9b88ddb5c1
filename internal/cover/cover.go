package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type Image struct {
	FilePath string
	Width    int
	Height   int
}

// Fetcher downloads raw cover bytes. The books provider satisfies it.
type Fetcher interface {
	FetchCover(ctx context.Context, coverURL string) ([]byte, error)
}

// Cache stores decoded covers as PNG files keyed by a hash of their URL.
type Cache struct {
	Dir string
}

func DefaultCache() (Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return Cache{}, fmt.Errorf("unable to resolve cache dir: %w", err)
	}

	return Cache{Dir: filepath.Join(cacheDir, "gutenberg-browse", "covers")}, nil
}

func (cache Cache) path(coverURL string) (string, error) {
	coverURL = strings.TrimSpace(coverURL)
	if coverURL == "" {
		return "", errors.New("cover url missing")
	}
	if strings.TrimSpace(cache.Dir) == "" {
		return "", errors.New("cover cache dir missing")
	}
	key := strconv.FormatUint(xxhash.Sum64String(coverURL), 16)
	return filepath.Join(cache.Dir, key+".png"), nil
}

// Lookup returns the cached cover for coverURL. A cached file that no longer
// decodes is removed and reported as a miss.
func (cache Cache) Lookup(coverURL string) (Image, bool, error) {
	path, err := cache.path(coverURL)
	if err != nil {
		return Image{}, false, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Image{}, false, nil
		}
		return Image{}, false, err
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		_ = os.Remove(path)
		return Image{}, false, nil
	}

	return Image{FilePath: path, Width: config.Width, Height: config.Height}, true, nil
}

func (cache Cache) Save(coverURL string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, errors.New("empty image data")
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("unable to decode cover image: %w", err)
	}

	path, err := cache.path(coverURL)
	if err != nil {
		return Image{}, err
	}

	if err := os.MkdirAll(cache.Dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("unable to create cover cache: %w", err)
	}

	if err := writePNG(path, decoded); err != nil {
		return Image{}, err
	}

	bounds := decoded.Bounds()
	return Image{FilePath: path, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// Load serves coverURL from the cache, downloading and storing it on a miss.
func (cache Cache) Load(ctx context.Context, fetcher Fetcher, coverURL string) (Image, error) {
	cached, ok, err := cache.Lookup(coverURL)
	if err != nil {
		return Image{}, err
	}
	if ok {
		return cached, nil
	}

	data, err := fetcher.FetchCover(ctx, coverURL)
	if err != nil {
		return Image{}, err
	}
	return cache.Save(coverURL, data)
}

func (cache Cache) Clear() error {
	if err := os.RemoveAll(cache.Dir); err != nil {
		return fmt.Errorf("unable to clear cover cache: %w", err)
	}

	return nil
}

func writePNG(path string, source image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create cover file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, source); err != nil {
		return fmt.Errorf("unable to encode cover png: %w", err)
	}

	return nil
}

// SupportsKittyGraphics reports whether the terminal named by term speaks the
// kitty graphics protocol.
func SupportsKittyGraphics(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(term, "ghostty") || strings.Contains(term, "kitty")
}

// RenderKitty returns the escape sequence that displays a PNG file in a
// cols x rows cell box.
func RenderKitty(filePath string, cols, rows int) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", errors.New("cover file path missing")
	}
	if cols <= 0 {
		cols = 20
	}
	if rows <= 0 {
		rows = 10
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(filePath))
	params := fmt.Sprintf("a=T,f=100,t=f,c=%d,r=%d,q=2,C=1", cols, rows)
	return fmt.Sprintf("\x1b_G%s;%s\x1b\\", params, encoded), nil
}
