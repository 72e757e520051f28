package html

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/tiff"
	"golang.org/x/net/html"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
)

type mapSource map[string][]byte

func (s mapSource) ImageData(_ context.Context, ref string) ([]byte, error) {
	if data, ok := s[ref]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && match(cur) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		v, _ := attr(n, "class")
		for _, c := range strings.Fields(v) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func TestPreviewFollowsPlan(t *testing.T) {
	src := mapSource{"tall.png": pngBytes(t, 100, 300)}
	sheet := model.Sheet{Title: "Quiz <1>", Config: model.LayoutConfig{Layout: model.LayoutTwoColumn, Spacing: 10}}
	for i := 0; i < 7; i++ {
		sheet.Items = append(sheet.Items, model.QuestionItem{
			ID: string(rune('a' + i)), ImageRef: "tall.png", Scale: 100, Answer: "ok", Score: 10,
		})
	}
	sheet.Items[6].ImageRef = "missing.png"

	st := layout.DefaultStyle()
	e := pagination.NewEngine()
	opts := e.Options()
	opts.HeaderHeight = st.HeaderHeight()
	e.SetOptions(opts)
	m := layout.NewImageMeasurer(src, st, nil)
	width := e.ColumnWidth(2)
	heights := make([]float64, len(sheet.Items))
	for i, it := range sheet.Items {
		heights[i] = m.Measure(context.Background(), layout.Block{Number: i + 1, Scale: it.Scale, Score: it.Score}, it.ImageRef, width)
	}
	plan := e.Plan(heights, 2, 10)
	if len(plan.Pages) < 2 {
		t.Fatalf("want a multi-page plan, got %d pages", len(plan.Pages))
	}

	var buf bytes.Buffer
	r := NewRenderer(src, st, nil)
	if err := r.Render(context.Background(), sheet, plan, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatalf("missing doctype: %.40q", out)
	}
	if !strings.Contains(out, "@page { size: A4; margin: 28.35pt 28.35pt 28.35pt 28.35pt; }") {
		t.Fatal("missing @page rule")
	}
	if !strings.Contains(out, "Quiz &lt;1&gt;") {
		t.Fatal("title must be escaped")
	}

	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	pages := findAll(doc, func(n *html.Node) bool {
		_, ok := attr(n, "data-page")
		_, key := attr(n, "data-answer-key")
		return ok && !key
	})
	if len(pages) != len(plan.Pages) {
		t.Fatalf("pages = %d, want %d", len(pages), len(plan.Pages))
	}
	for i, page := range pages {
		cols := findAll(page, hasClass("column"))
		if len(cols) != len(plan.Pages[i].Columns) {
			t.Fatalf("page %d: columns = %d, want %d", i+1, len(cols), len(plan.Pages[i].Columns))
		}
		for c, col := range cols {
			qs := findAll(col, hasClass("question"))
			if len(qs) != len(plan.Pages[i].Columns[c]) {
				t.Fatalf("page %d column %d: %d blocks, want %d", i+1, c, len(qs), len(plan.Pages[i].Columns[c]))
			}
			for k, q := range qs {
				id, _ := attr(q, "data-item")
				if want := sheet.Items[plan.Pages[i].Columns[c][k]].ID; id != want {
					t.Fatalf("page %d column %d block %d = %q, want %q", i+1, c, k, id, want)
				}
			}
		}
	}

	imgs := findAll(doc, func(n *html.Node) bool { return n.Data == "img" })
	if len(imgs) != 6 {
		t.Fatalf("images = %d, want 6", len(imgs))
	}
	if src, _ := attr(imgs[0], "src"); !strings.HasPrefix(src, "data:image/png;base64,") {
		t.Fatalf("img src = %.40q", src)
	}
	if got := len(findAll(doc, hasClass("placeholder"))); got != 1 {
		t.Fatalf("placeholders = %d, want 1", got)
	}
	if got := len(findAll(doc, hasClass("divider"))); got != len(plan.Pages) {
		t.Fatalf("dividers = %d, want %d", got, len(plan.Pages))
	}

	rows := findAll(doc, func(n *html.Node) bool { return n.Data == "tr" })
	// header row plus ceil(7/2)
	if len(rows) != 5 {
		t.Fatalf("answer rows = %d, want 5", len(rows))
	}
}

func TestPreviewErrors(t *testing.T) {
	r := NewRenderer(nil, layout.DefaultStyle(), nil)
	if _, err := r.Build(context.Background(), model.Sheet{}, nil); err == nil {
		t.Fatal("expected error for nil plan")
	}
	plan := pagination.NewEngine().Plan([]float64{1}, 1, 0)
	if _, err := r.Build(context.Background(), model.Sheet{}, plan); err == nil {
		t.Fatal("expected error for out of range item")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sheet := model.Sheet{Items: []model.QuestionItem{{ID: "x"}}}
	if _, err := r.Build(ctx, sheet, plan); !errors.Is(err, context.Canceled) {
		t.Fatalf("Build with canceled ctx = %v", err)
	}
}

func singleItemPlan(t *testing.T, sheet model.Sheet, src layout.ImageSource, st layout.Style) *pagination.Plan {
	t.Helper()
	e := pagination.NewEngine()
	opts := e.Options()
	opts.HeaderHeight = st.HeaderHeight()
	e.SetOptions(opts)
	cols := sheet.Config.Columns()
	m := layout.NewImageMeasurer(src, st, nil)
	h := m.Measure(context.Background(), layout.Block{Number: 1, Scale: 100}, sheet.Items[0].ImageRef, e.ColumnWidth(cols))
	return e.Plan([]float64{h}, cols, 0)
}

func TestLongTitleFitsHeader(t *testing.T) {
	st := layout.DefaultStyle()
	src := mapSource{"q.png": pngBytes(t, 40, 40)}
	sheet := model.Sheet{
		Title:  "Grade 9 Science Final Examination",
		Config: model.LayoutConfig{Layout: model.LayoutTwoColumn},
		Items:  []model.QuestionItem{{ID: "a", ImageRef: "q.png", Scale: 100}},
	}
	plan := singleItemPlan(t, sheet, src, st)

	doc, err := NewRenderer(src, st, nil).Build(context.Background(), sheet, plan)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h1 := findAll(doc, func(n *html.Node) bool { return n.Data == "h1" })
	if len(h1) != 1 {
		t.Fatalf("h1 count = %d", len(h1))
	}
	text, size := st.FitTitle(sheet.Title, plan.Geometry.ColumnWidth)
	if size >= st.TitleFontSize {
		t.Fatalf("title size = %v, want it shrunk", size)
	}
	if w := layout.TextWidth(text, st.FontFamily, "B", size); w > plan.Geometry.ColumnWidth {
		t.Fatalf("title width %.1f exceeds %.1f", w, plan.Geometry.ColumnWidth)
	}
	style, _ := attr(h1[0], "style")
	if !strings.Contains(style, "font-size:"+pt(size)) || h1[0].FirstChild.Data != text {
		t.Fatalf("h1 = %q %q", style, h1[0].FirstChild.Data)
	}
}

func TestTIFFInlinedAsPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 30, 20)), nil); err != nil {
		t.Fatal(err)
	}
	st := layout.DefaultStyle()
	src := mapSource{"scan.tif": buf.Bytes()}
	sheet := model.Sheet{
		Title:  "Scan",
		Config: model.LayoutConfig{Layout: model.LayoutOneColumn},
		Items:  []model.QuestionItem{{ID: "a", ImageRef: "scan.tif", Scale: 100}},
	}
	doc, err := NewRenderer(src, st, nil).Build(context.Background(), sheet, singleItemPlan(t, sheet, src, st))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	imgs := findAll(doc, func(n *html.Node) bool { return n.Data == "img" })
	if len(imgs) != 1 {
		t.Fatalf("img count = %d", len(imgs))
	}
	if src, _ := attr(imgs[0], "src"); !strings.HasPrefix(src, "data:image/png;base64,") {
		t.Fatalf("src = %.40q", src)
	}
}
