// Package imaging normalizes item photos and stores them on disk.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// MaxDimension bounds the stored width and height.
const MaxDimension = 1024

// JPEGQuality is used for every stored image.
const JPEGQuality = 85

// MaxUploadBytes bounds the raw upload.
const MaxUploadBytes = 10 << 20

// URLPrefix is where stored images are served from.
const URLPrefix = "/images/"

var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image is too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Process sniffs the upload, rejects anything but JPEG and PNG, downscales
// it to MaxDimension and re-encodes it as JPEG.
func Process(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fit(img, MaxDimension), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so its longer side is at most maxDim.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	nw, nh := maxDim, maxDim
	if w > h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Store writes processed images under dir/<guild>/.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Save processes r and writes it as a new file for the item. It returns the
// URL the image is served under.
func (s *Store) Save(guildID, itemID int64, r io.Reader) (string, error) {
	data, err := Process(r)
	if err != nil {
		return "", err
	}

	guildDir := filepath.Join(s.dir, fmt.Sprint(guildID))
	if err := os.MkdirAll(guildDir, 0o750); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}

	name := fmt.Sprintf("item-%d-%s.jpg", itemID, uuid.NewString())
	tmp := filepath.Join(guildDir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(guildDir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("moving image into place: %w", err)
	}
	return path.Join(URLPrefix, fmt.Sprint(guildID), name), nil
}

// Handler serves stored images under URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
}
