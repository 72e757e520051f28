package layout

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// Dimensions is the pixel size of a decoded image
type Dimensions struct {
	Width  int
	Height int
	// Format is the decoder name reported by image.DecodeConfig
	Format string
}

// Valid reports whether the dimensions can be used for scaling
func (d *Dimensions) Valid() bool {
	return d != nil && d.Width > 0 && d.Height > 0
}

// DecodeDimensions reads only the image header
func DecodeDimensions(data []byte) (*Dimensions, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	d := &Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}
	if !d.Valid() {
		return nil, fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	return d, nil
}

// EncodePNG decodes any registered format and encodes it as 8-bit NRGBA PNG
func EncodePNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
