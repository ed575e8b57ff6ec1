package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
		ok   bool
	}{
		{"png", pngBytes(t, 2, 2), MIMEPNG, true},
		{"jpeg", jpegBytes(t, 2, 2), MIMEJPEG, true},
		{"gif", []byte("GIF89a\x01\x00"), MIMEGIF, true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), MIMEWEBP, true},
		{"pdf", []byte("%PDF-1.7"), "", false},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		got, ok := Sniff(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s: Sniff = %q,%v want %q,%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFitWithinBudgetIsUnchanged(t *testing.T) {
	in := pngBytes(t, 40, 20)
	out, mime, err := Fit(in, 800)
	if err != nil {
		t.Fatal(err)
	}
	if mime != MIMEPNG || !bytes.Equal(in, out) {
		t.Errorf("expected passthrough, got %s (%d bytes)", mime, len(out))
	}

	out, _, err = Fit(in, 0)
	if err != nil || !bytes.Equal(in, out) {
		t.Errorf("maxPixels=0 must disable resizing")
	}
}

func TestFitDownscalesKeepingAspect(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		mime string
	}{
		{"png", pngBytes(t, 100, 50), MIMEPNG},
		{"jpeg", jpegBytes(t, 100, 50), MIMEJPEG},
	}
	for _, tc := range cases {
		out, mime, err := Fit(tc.in, 1250)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if mime != tc.mime {
			t.Errorf("%s: mime = %s", tc.name, mime)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if cfg.Width != 50 || cfg.Height != 25 {
			t.Errorf("%s: got %dx%d, want 50x25", tc.name, cfg.Width, cfg.Height)
		}
	}
}

func TestFitRejectsNonImages(t *testing.T) {
	if _, _, err := Fit([]byte("hello"), 10); !errors.Is(err, ErrUnsupported) {
		t.Errorf("want ErrUnsupported, got %v", err)
	}
}
