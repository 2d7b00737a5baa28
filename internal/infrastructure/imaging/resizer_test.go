package imaging_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"cdn-server/services/cdn-worker/internal/infrastructure/imaging"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			canvas.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestResizer_Resize_FitsInsideBoundingBox(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		target     int
		wantW      int
		wantH      int
	}{
		{"landscape scales by width", 800, 400, 200, 200, 100},
		{"portrait scales by height", 400, 800, 200, 100, 200},
		{"square", 600, 600, 150, 150, 150},
		{"smaller source is not enlarged", 100, 50, 400, 100, 50},
	}

	resizer := imaging.NewResizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := encodePNG(t, tt.srcW, tt.srcH)
			out, err := resizer.Resize(context.Background(), src, tt.target, "image/png")
			if err != nil {
				t.Fatalf("Resize() error = %v", err)
			}
			if out.Width != tt.wantW || out.Height != tt.wantH {
				t.Errorf("dimensions = %dx%d, want %dx%d", out.Width, out.Height, tt.wantW, tt.wantH)
			}
			if len(out.Data) == 0 {
				t.Error("Resize() produced no data")
			}
		})
	}
}

func TestResizer_Resize_ReencodesAsPNG(t *testing.T) {
	resizer := imaging.NewResizer()
	out, err := resizer.Resize(context.Background(), encodePNG(t, 300, 300), 100, "image/png")
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("output format = %q, want png", format)
	}
	if decoded.Bounds().Dx() != 100 {
		t.Errorf("decoded width = %d, want 100", decoded.Bounds().Dx())
	}
}

func TestResizer_Resize_JPEGDefault(t *testing.T) {
	resizer := imaging.NewResizer()
	out, err := resizer.Resize(context.Background(), encodePNG(t, 300, 300), 100, "image/webp")
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	_, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg fallback", format)
	}
}

func TestResizer_Resize_Invalid(t *testing.T) {
	resizer := imaging.NewResizer()

	if _, err := resizer.Resize(context.Background(), []byte("not an image"), 100, "image/png"); err == nil {
		t.Error("Resize() with garbage input = nil error, want decode failure")
	}
	if _, err := resizer.Resize(context.Background(), encodePNG(t, 10, 10), 0, "image/png"); err == nil {
		t.Error("Resize() with zero target = nil error, want validation failure")
	}
}
