package html

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
)

// Renderer builds a self-contained HTML preview whose pages match the
// printed PDF one to one
type Renderer struct {
	Style  layout.Style
	Images layout.ImageSource
	Log    *zap.Logger

	DebugDrawBoxes bool
	AnswerKey      bool
}

func NewRenderer(images layout.ImageSource, st layout.Style, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{Style: st, Images: images, Log: log, AnswerKey: true}
}

type preview struct {
	plan   *pagination.Plan
	images map[string]*inlined
}

type inlined struct {
	src  string
	dims *layout.Dimensions
}

// Render writes the preview document to w
func (r *Renderer) Render(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, w io.Writer) error {
	doc, err := r.Build(ctx, sheet, plan)
	if err != nil {
		return err
	}
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

// Build returns the preview as a document node
func (r *Renderer) Build(ctx context.Context, sheet model.Sheet, plan *pagination.Plan) (*html.Node, error) {
	if plan == nil {
		return nil, fmt.Errorf("nothing to render: no layout plan")
	}
	p := &preview{plan: plan, images: make(map[string]*inlined)}
	g := plan.Geometry

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root := element(atom.Html, "lang", "en")
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	head.AppendChild(withText(element(atom.Title), sheet.Title))
	head.AppendChild(withText(element(atom.Style), stylesheet(g, r.Style)))
	root.AppendChild(head)

	body := element(atom.Body)
	container := element(atom.Main, "class", "preview")
	body.AppendChild(container)
	root.AppendChild(body)

	for _, page := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if page.Len() == 0 {
			continue
		}
		content, section := pageShell(strconv.Itoa(page.Number))
		if page.Number == 1 {
			content.AppendChild(r.header(g, sheet.Title))
		}
		for col, indices := range page.Columns {
			column := element(atom.Div,
				"class", "column",
				"data-column", strconv.Itoa(col),
				"style", styleAttr(
					"left", pt(g.ColumnX(col)-g.Margins.Left),
					"top", pt(g.ColumnTop(page.Number, col)-g.Margins.Top),
					"width", pt(g.ColumnWidth),
				))
			for _, idx := range indices {
				if idx < 0 || idx >= len(sheet.Items) {
					return nil, fmt.Errorf("page %d references item %d of %d", page.Number, idx, len(sheet.Items))
				}
				column.AppendChild(r.block(ctx, p, idx, sheet.Items[idx]))
			}
			content.AppendChild(column)
		}
		if g.Columns > 1 {
			top := 0.0
			if page.Number == 1 && g.HeaderSpansColumns {
				top = g.HeaderHeight
			}
			content.AppendChild(element(atom.Div, "class", "divider", "style", styleAttr(
				"left", pt(g.ColumnX(1)-g.Margins.Left-g.ColumnGap/2),
				"top", pt(top),
				"height", pt(g.ContentHeight-top),
			)))
		}
		container.AppendChild(section)
	}

	if r.AnswerKey && len(sheet.Items) > 0 {
		container.AppendChild(r.answerKey(g, sheet.Items))
	}
	return doc, nil
}

func pageShell(number string) (content, section *html.Node) {
	section = element(atom.Section, "class", "page", "data-page", number)
	content = element(atom.Div, "class", "content")
	section.AppendChild(content)
	return content, section
}

func (r *Renderer) header(g pagination.Geometry, title string) *html.Node {
	st := r.Style
	hm := st.Header()
	width := g.ColumnWidth
	if g.Columns == 1 || g.HeaderSpansColumns {
		width = g.PageSize.Width - g.Margins.Left - g.Margins.Right
	}
	h := element(atom.Header, "class", "sheet-header", "style", styleAttr(
		"width", pt(width),
		"height", pt(hm.Height),
	))
	text, size := st.FitTitle(title, width)
	h.AppendChild(withText(element(atom.H1, "style", styleAttr(
		"top", pt(hm.TitleTop),
		"height", pt(st.TitleFontSize*st.LineHeight),
		"line-height", pt(st.TitleFontSize*st.LineHeight),
		"font-size", pt(size),
	)), text))
	h.AppendChild(withText(element(atom.Div, "class", "name", "style", styleAttr(
		"top", pt(hm.NameTop),
		"font-size", pt(st.NameFontSize),
	)), st.NameLabel))
	h.AppendChild(element(atom.Div, "class", "rule", "style", styleAttr(
		"top", pt(hm.RuleTop),
		"height", pt(st.RuleHeight),
	)))
	return h
}

func (r *Renderer) block(ctx context.Context, p *preview, idx int, item model.QuestionItem) *html.Node {
	st := r.Style
	img := r.image(ctx, p, item.ImageRef)
	m := layout.BlockMetrics(layout.Block{Number: idx + 1, Scale: item.Scale, Score: item.Score},
		img.dims, p.plan.Geometry.ColumnWidth, st)

	class := "question"
	if r.DebugDrawBoxes {
		class += " debug"
	}
	q := element(atom.Div,
		"class", class,
		"data-item", item.ID,
		"style", styleAttr(
			"height", pt(m.Height),
			"margin-bottom", pt(p.plan.Spacing),
		))
	q.AppendChild(withText(element(atom.Span, "class", "number", "style", styleAttr(
		"width", pt(m.LabelWidth),
		"font-size", pt(st.NumberFontSize),
	)), m.Label))

	box := styleAttr(
		"left", pt(m.ImageX),
		"width", pt(m.ImageWidth),
		"height", pt(m.ImageHeight),
	)
	if m.Placeholder || img.src == "" {
		q.AppendChild(withText(element(atom.Div, "class", "placeholder", "style", box), "image unavailable"))
	} else {
		q.AppendChild(element(atom.Img, "src", img.src, "alt", "Q"+strconv.Itoa(idx+1), "style", box))
	}
	if m.ScoreLabel != "" {
		q.AppendChild(withText(element(atom.Div, "class", "score", "style", styleAttr(
			"left", pt(m.BoxX),
			"top", pt(m.ScoreTop),
			"width", pt(m.BoxWidth),
			"font-size", pt(st.ScoreFontSize),
		)), m.ScoreLabel))
	}
	return q
}

// browserFormats are decoder names every browser displays as is
var browserFormats = map[string]bool{"jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true}

func (r *Renderer) image(ctx context.Context, p *preview, ref string) *inlined {
	if img, ok := p.images[ref]; ok {
		return img
	}
	img := &inlined{}
	p.images[ref] = img
	if ref == "" || r.Images == nil {
		return img
	}
	data, err := r.Images.ImageData(ctx, ref)
	if err != nil {
		r.Log.Warn("image not available, drawing placeholder", zap.String("ref", ref), zap.Error(err))
		return img
	}
	dims, err := layout.DecodeDimensions(data)
	if err != nil {
		r.Log.Warn("image not decodable, drawing placeholder", zap.String("ref", ref), zap.Error(err))
		return img
	}
	img.dims = dims
	mime := "image/" + dims.Format
	if !browserFormats[dims.Format] {
		if data, err = layout.EncodePNG(data); err != nil {
			r.Log.Warn("image not convertible, drawing placeholder", zap.String("ref", ref), zap.Error(err))
			return img
		}
		mime = "image/png"
	}
	img.src = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return img
}

func (r *Renderer) answerKey(g pagination.Geometry, items []model.QuestionItem) *html.Node {
	st := r.Style
	content, section := pageShell("answers")
	section.Attr = append(section.Attr, html.Attribute{Key: "data-answer-key", Val: "true"})
	content.AppendChild(withText(element(atom.H2), st.AnswerTitle))

	table := element(atom.Table, "class", "answers", "style", styleAttr("font-size", pt(st.AnswerFontSize)))
	thead := element(atom.Thead)
	headRow := element(atom.Tr)
	for half := 0; half < 2; half++ {
		for _, label := range st.AnswerHeaders {
			headRow.AppendChild(withText(element(atom.Th), label))
		}
	}
	thead.AppendChild(headRow)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, row := range layout.AnswerKey(items) {
		tr := element(atom.Tr, "style", styleAttr("height", pt(st.AnswerRowHeight)))
		left := row.Left
		for _, cell := range []*layout.AnswerCell{&left, row.Right} {
			vals := [3]string{}
			if cell != nil {
				vals = [3]string{cell.Number, cell.Answer, cell.Score}
			}
			for _, v := range vals {
				tr.AppendChild(withText(element(atom.Td), v))
			}
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	content.AppendChild(table)
	return section
}

// element creates an element node from alternating attribute keys and values
func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func pt(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "pt"
}

func styleAttr(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(kv[i])
		b.WriteString(":")
		b.WriteString(kv[i+1])
		b.WriteString(";")
	}
	return b.String()
}
