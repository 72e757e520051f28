package pdf

import (
	"bytes"
	"context"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/layout"
)

// embedded is an image registered with the document. An empty name means
// a placeholder is drawn instead, sized from dims when the image decoded.
type embedded struct {
	name string
	typ  string
	dims *layout.Dimensions
}

// image loads, registers and caches the image behind ref
func (r *Renderer) image(ctx context.Context, doc *document, ref string) *embedded {
	if e, ok := doc.images[ref]; ok {
		return e
	}
	e := &embedded{}
	doc.images[ref] = e
	if ref == "" || r.Images == nil {
		return e
	}

	data, err := r.Images.ImageData(ctx, ref)
	if err != nil {
		r.Log.Warn("image not available, drawing placeholder", zap.String("ref", ref), zap.Error(err))
		return e
	}
	dims, err := layout.DecodeDimensions(data)
	if err != nil {
		r.Log.Warn("image not decodable, drawing placeholder", zap.String("ref", ref), zap.Error(err))
		return e
	}
	// a placeholder drawn from here on keeps the measured box
	e.dims = dims

	typ := "JPG"
	if dims.Format != "jpeg" {
		// fpdf reads 8-bit non-interlaced PNGs; everything else goes through a re-encode
		data, err = layout.EncodePNG(data)
		if err != nil {
			r.Log.Warn("image not convertible, drawing placeholder", zap.String("ref", ref), zap.Error(err))
			return e
		}
		typ = "PNG"
	}

	name := fmt.Sprintf("img%d", len(doc.images))
	info := doc.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: typ}, bytes.NewReader(data))
	if info == nil || !doc.pdf.Ok() {
		r.Log.Warn("image rejected by pdf writer", zap.String("ref", ref), zap.Error(doc.pdf.Error()))
		doc.pdf.ClearError()
		return e
	}
	e.name, e.typ = name, typ
	return e
}
