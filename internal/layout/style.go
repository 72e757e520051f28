package layout

import "fmt"

// Style holds the visual constants shared by measurement and both renderers.
// Lengths are in points.
type Style struct {
	FontFamily string
	LineHeight float64

	TitleFontSize float64
	TitleGap      float64
	NameFontSize  float64
	NameLabel     string
	HeaderPadding float64
	RuleHeight    float64
	HeaderMargin  float64

	NumberFontSize float64
	NumberGap      float64
	MinLabel       string

	ScoreFontSize float64
	ScoreGap      float64
	ScoreFormat   string

	AnswerTitle     string
	AnswerHeaders   [3]string
	AnswerFontSize  float64
	AnswerRowHeight float64

	// FallbackHeight is used for items whose image cannot be measured
	FallbackHeight float64
}

// DefaultStyle returns the exam sheet look
func DefaultStyle() Style {
	return Style{
		FontFamily: "Helvetica",
		LineHeight: 1.2,

		TitleFontSize: 24,
		TitleGap:      6,
		NameFontSize:  12,
		NameLabel:     "Name: ________________",
		HeaderPadding: 6,
		RuleHeight:    3,
		HeaderMargin:  18,

		NumberFontSize: 14,
		NumberGap:      6,
		MinLabel:       "00.",

		ScoreFontSize: 10,
		ScoreGap:      5,
		ScoreFormat:   "(%d pts)",

		AnswerTitle:     "Answer Key",
		AnswerHeaders:   [3]string{"No.", "Answer", "Score"},
		AnswerFontSize:  11,
		AnswerRowHeight: 20,

		FallbackHeight: 150,
	}
}

// NumberLabel returns the label printed before an item
func (s Style) NumberLabel(number int) string {
	return fmt.Sprintf("%d.", number)
}

// ScoreLabel returns the score caption, or "" for unscored items
func (s Style) ScoreLabel(score int) string {
	if score <= 0 {
		return ""
	}
	return fmt.Sprintf(s.ScoreFormat, score)
}

// HeaderMetrics positions the first-page header relative to the top margin
type HeaderMetrics struct {
	TitleTop float64
	NameTop  float64
	RuleTop  float64
	Height   float64
}

// Header returns the header layout. Height includes the space below the rule.
func (s Style) Header() HeaderMetrics {
	var h HeaderMetrics
	h.TitleTop = 0
	h.NameTop = s.TitleFontSize*s.LineHeight + s.TitleGap
	h.RuleTop = h.NameTop + s.NameFontSize*s.LineHeight + s.HeaderPadding
	h.Height = h.RuleTop + s.RuleHeight + s.HeaderMargin
	return h
}

// HeaderHeight is the space the header reserves on page one
func (s Style) HeaderHeight() float64 {
	return s.Header().Height
}

// MinTitleFontSize is the smallest size a title shrinks to before it is cut
const MinTitleFontSize = 12

// FitTitle returns the title text and font size that fit on one line of
// width. The title shrinks a point at a time down to MinTitleFontSize and is
// then shortened with an ellipsis.
func (s Style) FitTitle(title string, width float64) (string, float64) {
	size := s.TitleFontSize
	for size > MinTitleFontSize && TextWidth(title, s.FontFamily, "B", size) > width {
		size--
	}
	return FitText(title, s.FontFamily, "B", size, width), size
}
