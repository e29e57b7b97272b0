package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func testPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func decodedBounds(t *testing.T, data []byte) image.Rectangle {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	return img.Bounds()
}

func TestProcessPNGBecomesJPEG(t *testing.T) {
	data, err := Process(bytes.NewReader(testPNG(100, 80)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if b := decodedBounds(t, data); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("small image should keep its size, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestProcessDownscalesKeepingAspect(t *testing.T) {
	data, err := Process(bytes.NewReader(testJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	b := decodedBounds(t, data)
	if b.Dx() != MaxDimension || b.Dy() != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, b.Dx(), b.Dy())
	}
}

func TestProcessRejectsOtherFormats(t *testing.T) {
	for _, in := range []string{"not an image", "GIF89a..."} {
		_, err := Process(strings.NewReader(in))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%q: expected ErrUnsupported, got %v", in, err)
		}
	}
}

func TestProcessRejectsOversizedUpload(t *testing.T) {
	_, err := Process(bytes.NewReader(make([]byte, MaxUploadBytes+1)))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestStoreSaveAndServe(t *testing.T) {
	s := NewStore(t.TempDir())

	url, err := s.Save(1001, 5, bytes.NewReader(testJPEG(10, 10)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(url, "/images/1001/item-5-") || !strings.HasSuffix(url, ".jpg") {
		t.Errorf("unexpected url %q", url)
	}

	file := filepath.Join(s.Dir(), strings.TrimPrefix(url, URLPrefix))
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(URLPrefix, s.Handler())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 serving image, got %d", rec.Code)
	}
}
