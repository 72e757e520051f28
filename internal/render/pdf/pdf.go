package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
)

// Renderer handles rendering to PDF
type Renderer struct {
	Style  layout.Style
	Images layout.ImageSource
	Log    *zap.Logger

	// DebugDrawBoxes outlines every block and prints its size
	DebugDrawBoxes bool
	// AnswerKey appends the answer table page
	AnswerKey bool
	// RuleColor is the hex color of header rules and the column divider
	RuleColor string
}

// RenderOptions contains options for rendering
type RenderOptions struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// NewRenderer creates a new PDF renderer
func NewRenderer(images layout.ImageSource, st layout.Style, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		Style:     st,
		Images:    images,
		Log:       log,
		AnswerKey: true,
		RuleColor: "#1e293b",
	}
}

// document carries per-render state
type document struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	plan   *pagination.Plan
	images map[string]*embedded // by image ref
}

// Render writes one PDF page per plan page plus the answer key
func (r *Renderer) Render(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, w io.Writer, options RenderOptions) error {
	doc, err := r.build(ctx, sheet, plan, options)
	if err != nil {
		return err
	}
	if err := doc.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// RenderFile renders to outputPath, creating its directory when needed
func (r *Renderer) RenderFile(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, outputPath string, options RenderOptions) error {
	doc, err := r.build(ctx, sheet, plan, options)
	if err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return doc.pdf.OutputFileAndClose(outputPath)
}

func (r *Renderer) build(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, options RenderOptions) (*document, error) {
	if plan == nil {
		return nil, fmt.Errorf("nothing to render: no layout plan")
	}
	g := plan.Geometry
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: g.PageSize.Width, Ht: g.PageSize.Height},
	})
	pdf.SetMargins(g.Margins.Left, g.Margins.Top, g.Margins.Right)
	pdf.SetAutoPageBreak(false, g.Margins.Bottom)

	title := options.Title
	if title == "" {
		title = sheet.Title
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(options.Author, true)
	pdf.SetSubject(options.Subject, true)
	pdf.SetKeywords(options.Keywords, true)
	pdf.SetCreator(options.Creator, true)
	pdf.SetProducer(options.Producer, true)
	pdf.SetFont(r.Style.FontFamily, "", 12)

	doc := &document{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		plan:   plan,
		images: make(map[string]*embedded),
	}

	r.Log.Debug("rendering pdf", zap.String("title", sheet.Title), zap.Int("pages", len(plan.Pages)))
	for _, page := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if page.Len() == 0 {
			continue
		}
		pdf.AddPage()
		if page.Number == 1 {
			r.renderHeader(doc, sheet.Title)
		}
		if g.Columns > 1 {
			r.renderColumnRule(doc, page.Number)
		}
		for col, indices := range page.Columns {
			x := g.ColumnX(col)
			y := g.ColumnTop(page.Number, col)
			for _, idx := range indices {
				if idx < 0 || idx >= len(sheet.Items) {
					return nil, fmt.Errorf("page %d references item %d of %d", page.Number, idx, len(sheet.Items))
				}
				h := r.renderBlock(ctx, doc, idx, sheet.Items[idx], x, y)
				y += h + plan.Spacing
			}
		}
	}

	if r.AnswerKey && len(sheet.Items) > 0 {
		r.renderAnswerKey(doc, sheet.Items)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return doc, nil
}

// headerWidth is the width the header occupies. Unless the header spans the
// columns it stays inside the first column, where pagination reserved room.
func headerWidth(g pagination.Geometry) float64 {
	if g.Columns > 1 && !g.HeaderSpansColumns {
		return g.ColumnWidth
	}
	return g.PageSize.Width - g.Margins.Left - g.Margins.Right
}

func (r *Renderer) renderHeader(doc *document, title string) {
	pdf, st, g := doc.pdf, r.Style, doc.plan.Geometry
	hm := st.Header()
	x, top, w := g.Margins.Left, g.Margins.Top, headerWidth(g)

	text, size := st.FitTitle(title, w)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(st.FontFamily, "B", size)
	pdf.SetXY(x, top+hm.TitleTop)
	pdf.CellFormat(w, st.TitleFontSize*st.LineHeight, doc.tr(text), "", 0, "CM", false, 0, "")

	pdf.SetFont(st.FontFamily, "B", st.NameFontSize)
	pdf.SetXY(x, top+hm.NameTop)
	pdf.CellFormat(w, st.NameFontSize*st.LineHeight, doc.tr(st.NameLabel), "", 0, "R", false, 0, "")

	// double rule
	c := parseColor(r.RuleColor)
	pdf.SetDrawColor(c[0], c[1], c[2])
	pdf.SetLineWidth(1)
	pdf.Line(x, top+hm.RuleTop, x+w, top+hm.RuleTop)
	pdf.Line(x, top+hm.RuleTop+st.RuleHeight, x+w, top+hm.RuleTop+st.RuleHeight)
}

func (r *Renderer) renderColumnRule(doc *document, pageNumber int) {
	pdf, g := doc.pdf, doc.plan.Geometry
	top := g.Margins.Top
	if pageNumber == 1 && g.HeaderSpansColumns {
		top += g.HeaderHeight
	}
	bottom := g.Margins.Top + g.ContentHeight
	x := g.ColumnX(1) - g.ColumnGap/2

	pdf.SetDrawColor(203, 213, 225)
	pdf.SetLineWidth(0.5)
	pdf.Line(x, top, x, bottom)
}

// renderBlock draws one question block and returns its height
func (r *Renderer) renderBlock(ctx context.Context, doc *document, idx int, item model.QuestionItem, x, y float64) float64 {
	pdf, st := doc.pdf, r.Style
	block := layout.Block{Number: idx + 1, Scale: item.Scale, Score: item.Score}

	img := r.image(ctx, doc, item.ImageRef)
	m := layout.BlockMetrics(block, img.dims, doc.plan.Geometry.ColumnWidth, st)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(st.FontFamily, "B", st.NumberFontSize)
	pdf.SetXY(x, y)
	pdf.CellFormat(m.LabelWidth, m.LabelHeight, m.Label, "", 0, "L", false, 0, "")

	if img.name != "" && !m.Placeholder {
		pdf.ImageOptions(img.name, x+m.ImageX, y, m.ImageWidth, m.ImageHeight, false,
			fpdf.ImageOptions{ImageType: img.typ}, 0, "")
	} else {
		pdf.SetDrawColor(148, 163, 184)
		pdf.SetFillColor(241, 245, 249)
		pdf.SetLineWidth(0.5)
		pdf.Rect(x+m.ImageX, y, m.ImageWidth, m.ImageHeight, "FD")
		pdf.SetFont(st.FontFamily, "", 9)
		pdf.SetTextColor(100, 116, 139)
		pdf.SetXY(x+m.ImageX, y)
		pdf.CellFormat(m.ImageWidth, m.ImageHeight, "image unavailable", "", 0, "CM", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	if m.ScoreLabel != "" {
		pdf.SetFont(st.FontFamily, "", st.ScoreFontSize)
		pdf.SetXY(x+m.BoxX, y+m.ScoreTop)
		pdf.CellFormat(m.BoxWidth, st.ScoreFontSize*st.LineHeight, m.ScoreLabel, "", 0, "R", false, 0, "")
	}

	if r.DebugDrawBoxes {
		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.5)
		pdf.Rect(x, y, doc.plan.Geometry.ColumnWidth, m.Height, "D")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.Text(x+2, y+m.Height-2, fmt.Sprintf("%.0fx%.0f", doc.plan.Geometry.ColumnWidth, m.Height))
		pdf.SetTextColor(0, 0, 0)
	}
	return m.Height
}

func (r *Renderer) renderAnswerKey(doc *document, items []model.QuestionItem) {
	pdf, st, g := doc.pdf, r.Style, doc.plan.Geometry
	width := g.PageSize.Width - g.Margins.Left - g.Margins.Right
	bottom := g.Margins.Top + g.ContentHeight
	// No. / Answer / Score, twice
	widths := []float64{0.1 * width, 0.25 * width, 0.15 * width}

	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(st.FontFamily, "B", st.TitleFontSize*0.75)
	pdf.SetXY(g.Margins.Left, g.Margins.Top)
	pdf.CellFormat(width, st.TitleFontSize*st.LineHeight, doc.tr(st.AnswerTitle), "", 1, "C", false, 0, "")
	pdf.Ln(st.HeaderPadding)

	c := parseColor(r.RuleColor)
	pdf.SetDrawColor(c[0], c[1], c[2])
	pdf.SetLineWidth(0.5)

	headerRow := func() {
		pdf.SetFont(st.FontFamily, "B", st.AnswerFontSize)
		pdf.SetFillColor(240, 240, 240)
		for half := 0; half < 2; half++ {
			for i, label := range st.AnswerHeaders {
				pdf.CellFormat(widths[i], st.AnswerRowHeight, label, "1", 0, "C", true, 0, "")
			}
		}
		pdf.Ln(-1)
		pdf.SetFont(st.FontFamily, "", st.AnswerFontSize)
	}
	cells := func(cell *layout.AnswerCell) {
		vals := [3]string{"", "", ""}
		if cell != nil {
			vals = [3]string{cell.Number, cell.Answer, cell.Score}
		}
		for i, v := range vals {
			text := layout.FitText(v, st.FontFamily, "", st.AnswerFontSize, widths[i]-4)
			pdf.CellFormat(widths[i], st.AnswerRowHeight, doc.tr(text), "1", 0, "C", false, 0, "")
		}
	}

	headerRow()
	for _, row := range layout.AnswerKey(items) {
		if pdf.GetY()+st.AnswerRowHeight > bottom {
			pdf.AddPage()
			headerRow()
		}
		left := row.Left
		cells(&left)
		cells(row.Right)
		pdf.Ln(-1)
	}
}

// parseColor parses a #RRGGBB or #RGB color, defaulting to black
func parseColor(value string) [3]int {
	if r, g, b, ok := parseHexColor(value); ok {
		return [3]int{r, g, b}
	}
	return [3]int{0, 0, 0}
}

// parseHexColor parses #RRGGBB or #RGB into r,g,b
func parseHexColor(s string) (int, int, int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
