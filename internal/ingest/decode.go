package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	// Registered decoders for the accepted upload formats
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds decoded image size (width * height)
const DefaultMaxPixels = 40_000_000

// DefaultThumbnailSize is the longest edge of display thumbnails
const DefaultThumbnailSize = 800

// ErrEmptyImage is wrapped by DecodeError for zero-length uploads
var ErrEmptyImage = errors.New("image is empty")

// DecodeError is returned when uploaded bytes are not a usable raster image
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Info describes a decoded image
type Info struct {
	Format   string `json:"format"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Decode validates that data is a decodable PNG, JPEG, GIF or WebP image no
// larger than maxPixels. A maxPixels of zero uses DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (*Info, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "no data", Err: ErrEmptyImage}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	// Check dimensions before allocating the full image
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unrecognized or corrupt image data", Err: err}
	}
	mimeType, ok := mimeTypes[format]
	if !ok {
		return nil, &DecodeError{Reason: "unsupported format " + format}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Reason: "image has no pixels"}
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, &DecodeError{Reason: fmt.Sprintf("image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, maxPixels)}
	}

	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, &DecodeError{Reason: "corrupt image data", Err: err}
	}

	return &Info{Format: format, MIMEType: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
}

// Thumbnail scales an image so its longest edge is at most maxEdge and
// encodes it as PNG. Images already small enough are re-encoded unscaled.
func Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultThumbnailSize
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "corrupt image data", Err: err}
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = max(1, h*maxEdge/w)
			w = maxEdge
		} else {
			w = max(1, w*maxEdge/h)
			h = maxEdge
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
