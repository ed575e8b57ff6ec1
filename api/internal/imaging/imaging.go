package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/nfnt/resize"
)

var ErrUnsupported = errors.New("unsupported image type")

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
)

// Sniff detects the image type from the leading bytes.
func Sniff(b []byte) (string, bool) {
	switch {
	// JPEG: FF D8 FF
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return MIMEJPEG, true
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A:
		return MIMEPNG, true
	case len(b) >= 6 && (string(b[:6]) == "GIF87a" || string(b[:6]) == "GIF89a"):
		return MIMEGIF, true
	// RIFF....WEBP
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return MIMEWEBP, true
	}
	return "", false
}

// Extension returns the file extension used when uploading a payload of this type.
func Extension(mime string) string {
	switch mime {
	case MIMEJPEG:
		return ".jpg"
	case MIMEPNG:
		return ".png"
	case MIMEGIF:
		return ".gif"
	case MIMEWEBP:
		return ".webp"
	}
	return ".bin"
}

// Fit downscales b so that width*height stays within maxPixels, keeping the
// aspect ratio. Inputs already within budget, maxPixels <= 0 and WEBP (no
// decoder) are returned unchanged. PNG stays PNG, everything else becomes JPEG.
func Fit(b []byte, maxPixels int) ([]byte, string, error) {
	mime, ok := Sniff(b)
	if !ok {
		return nil, "", ErrUnsupported
	}
	if maxPixels <= 0 || mime == MIMEWEBP {
		return b, mime, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decode header: %w", err)
	}
	total := cfg.Width * cfg.Height
	if total <= maxPixels {
		return b, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}

	scale := math.Sqrt(float64(maxPixels) / float64(total))
	newW := max(1, int(float64(cfg.Width)*scale))
	newH := max(1, int(float64(cfg.Height)*scale))
	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)

	var out bytes.Buffer
	if mime == MIMEPNG {
		if err := png.Encode(&out, resized); err != nil {
			return nil, "", err
		}
		return out.Bytes(), MIMEPNG, nil
	}
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}
	return out.Bytes(), MIMEJPEG, nil
}
