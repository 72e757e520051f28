package layout

import (
	"math"
	"sync"

	"codeberg.org/go-pdf/fpdf"
)

// Singleton PDF instance for text measurement using go-pdf/fpdf metrics
var (
	measureOnce sync.Once
	measurePDF  *fpdf.Fpdf
	measureMu   sync.Mutex
)

func initMeasurePDF() {
	measurePDF = fpdf.New("P", "pt", "A4", "")
	measurePDF.SetFont("Helvetica", "", 12)
}

// TextWidth returns a font-aware width using fpdf metrics
func TextWidth(text, family, fontStyle string, fontSize float64) float64 {
	if text == "" || fontSize <= 0 {
		return 0
	}
	measureOnce.Do(initMeasurePDF)
	measureMu.Lock()
	defer measureMu.Unlock()
	measurePDF.SetFont(family, fontStyle, fontSize)
	return measurePDF.GetStringWidth(text)
}

// FitText shortens text with an ellipsis until it fits width
func FitText(text, family, fontStyle string, fontSize, width float64) string {
	if TextWidth(text, family, fontStyle, fontSize) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if s := string(runes) + "..."; TextWidth(s, family, fontStyle, fontSize) <= width {
			return s
		}
	}
	return ""
}

// Block is the content of one question block as far as layout is concerned
type Block struct {
	// Number is the 1-based position printed before the item
	Number int
	Scale  int
	Score  int
}

// Metrics places a block inside its column. Offsets are relative to the
// column's left edge and the block's top.
type Metrics struct {
	Label      string
	LabelWidth float64

	BoxX     float64
	BoxWidth float64

	ImageX      float64
	ImageWidth  float64
	ImageHeight float64
	// Placeholder is set when the image size was unknown
	Placeholder bool

	ScoreLabel string
	ScoreTop   float64

	LabelHeight float64
	Height      float64
}

// BlockMetrics lays out a block for a column width. dims is nil when the
// image could not be measured, in which case the block takes the style's
// fallback height.
func BlockMetrics(b Block, dims *Dimensions, columnWidth float64, st Style) Metrics {
	m := Metrics{
		Label:       st.NumberLabel(b.Number),
		ScoreLabel:  st.ScoreLabel(b.Score),
		LabelHeight: st.NumberFontSize * st.LineHeight,
	}

	labelWidth := math.Max(
		TextWidth(m.Label, st.FontFamily, "B", st.NumberFontSize),
		TextWidth(st.MinLabel, st.FontFamily, "B", st.NumberFontSize),
	)
	m.LabelWidth = labelWidth + st.NumberGap
	m.BoxX = m.LabelWidth
	m.BoxWidth = math.Max(0, columnWidth-m.LabelWidth)

	scoreHeight := 0.0
	if m.ScoreLabel != "" {
		scoreHeight = st.ScoreGap + st.ScoreFontSize*st.LineHeight
	}

	scale := b.Scale
	if scale <= 0 || scale > 100 {
		scale = 100
	}
	m.ImageWidth = m.BoxWidth * float64(scale) / 100
	m.ImageX = m.BoxX + (m.BoxWidth-m.ImageWidth)/2

	if dims == nil || !dims.Valid() {
		m.Placeholder = true
		m.Height = st.FallbackHeight
		m.ImageHeight = math.Max(0, st.FallbackHeight-scoreHeight)
	} else {
		m.ImageHeight = m.ImageWidth * float64(dims.Height) / float64(dims.Width)
		m.Height = math.Max(m.LabelHeight, m.ImageHeight+scoreHeight)
	}
	m.ScoreTop = m.ImageHeight + st.ScoreGap
	return m
}
