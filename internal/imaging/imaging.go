package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxEdge is the longest edge allowed for a stored item photo.
const MaxEdge = 800

// Quality is the JPEG compression quality for stored photos.
const Quality = 82

// MaxUploadBytes bounds how much image data a single upload may carry.
const MaxUploadBytes = 10 << 20

var allowed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Normalize validates an uploaded item photo by sniffing its bytes,
// shrinks it to fit MaxEdge, and re-encodes it as JPEG so every stored
// photo has the same format and a bounded size.
func Normalize(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
	}

	// Sniff the real type; client headers lie.
	detected := http.DetectContentType(data)
	if !allowed[detected] {
		return nil, fmt.Errorf("unsupported image format %s (JPEG or PNG only)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = shrink(img, MaxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// shrink scales img down so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already within bounds pass through.
func shrink(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
