package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeReencodesAsJPEG(t *testing.T) {
	data, err := Normalize(bytes.NewReader(pngBytes(t, 100, 60)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 60 {
		t.Errorf("small image should keep its size, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeShrinksLargeImages(t *testing.T) {
	data, err := Normalize(bytes.NewReader(pngBytes(t, 1600, 400)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	img, _ := jpeg.Decode(bytes.NewReader(data))
	b := img.Bounds()
	if b.Dx() != MaxEdge {
		t.Errorf("expected width %d, got %d", MaxEdge, b.Dx())
	}
	if b.Dy() != 200 {
		t.Errorf("expected aspect-preserving height 200, got %d", b.Dy())
	}
}

func TestNormalizeRejectsNonImages(t *testing.T) {
	_, err := Normalize(strings.NewReader("<html>not an image</html>"))
	if err == nil {
		t.Fatal("expected rejection of non-image data")
	}
	if !strings.Contains(err.Error(), "unsupported image format") {
		t.Errorf("unexpected error %v", err)
	}
}
