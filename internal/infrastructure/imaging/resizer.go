// Package imaging provides the default image transform used by the
// process_file handler.
package imaging

import (
	"bytes"
	"context"
	"fmt"

	img "github.com/disintegration/imaging"

	"cdn-server/services/cdn-worker/internal/domain/pipeline"
)

const jpegQuality = 88

// Resizer scales images to fit inside a square bounding box without
// enlargement and re-encodes them by mime type.
type Resizer struct{}

func NewResizer() *Resizer {
	return &Resizer{}
}

func (r *Resizer) Resize(ctx context.Context, data []byte, targetSize int, mimeType string) (pipeline.Resized, error) {
	if targetSize <= 0 {
		return pipeline.Resized{}, fmt.Errorf("target size %d is not positive", targetSize)
	}

	source, err := img.Decode(bytes.NewReader(data))
	if err != nil {
		return pipeline.Resized{}, fmt.Errorf("decode image: %w", err)
	}

	// Fit scales down only, preserving aspect ratio.
	resized := img.Fit(source, targetSize, targetSize, img.Lanczos)

	var buf bytes.Buffer
	switch mimeType {
	case "image/png":
		err = img.Encode(&buf, resized, img.PNG)
	case "image/gif":
		err = img.Encode(&buf, resized, img.GIF)
	case "image/bmp":
		err = img.Encode(&buf, resized, img.BMP)
	case "image/tiff":
		err = img.Encode(&buf, resized, img.TIFF)
	default:
		// jpeg, and the fallback for formats without a native encoder
		err = img.Encode(&buf, resized, img.JPEG, img.JPEGQuality(jpegQuality))
	}
	if err != nil {
		return pipeline.Resized{}, fmt.Errorf("encode resized image: %w", err)
	}

	bounds := resized.Bounds()
	return pipeline.Resized{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
