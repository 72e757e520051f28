package layout

import (
	"context"

	"go.uber.org/zap"
)

// Measurer returns the rendered height of a block at a column width. It never
// fails; content it cannot measure gets a fallback height.
type Measurer interface {
	Measure(ctx context.Context, b Block, ref string, columnWidth float64) float64
}

// ImageSource resolves an image reference to its bytes
type ImageSource interface {
	ImageData(ctx context.Context, ref string) ([]byte, error)
}

// ImageMeasurer measures blocks from their image headers
type ImageMeasurer struct {
	Source ImageSource
	Style  Style
	Log    *zap.Logger
}

// NewImageMeasurer creates a measurer that loads images from src
func NewImageMeasurer(src ImageSource, st Style, log *zap.Logger) *ImageMeasurer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageMeasurer{Source: src, Style: st, Log: log}
}

// Dimensions loads and decodes the header of the referenced image. A nil
// result means the image is missing or not decodable yet.
func (m *ImageMeasurer) Dimensions(ctx context.Context, ref string) *Dimensions {
	if ref == "" || m.Source == nil {
		return nil
	}
	data, err := m.Source.ImageData(ctx, ref)
	if err != nil {
		m.Log.Warn("image not available, using fallback height",
			zap.String("ref", ref), zap.Error(err))
		return nil
	}
	dims, err := DecodeDimensions(data)
	if err != nil {
		m.Log.Warn("image not measurable, using fallback height",
			zap.String("ref", ref), zap.Error(err))
		return nil
	}
	return dims
}

// Metrics measures the image and lays out the block
func (m *ImageMeasurer) Metrics(ctx context.Context, b Block, ref string, columnWidth float64) Metrics {
	return BlockMetrics(b, m.Dimensions(ctx, ref), columnWidth, m.Style)
}

// Measure implements Measurer
func (m *ImageMeasurer) Measure(ctx context.Context, b Block, ref string, columnWidth float64) float64 {
	return m.Metrics(ctx, b, ref, columnWidth).Height
}
