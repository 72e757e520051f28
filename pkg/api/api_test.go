package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
)

// fixedMeasurer returns one height per ref and records the widths asked for
type fixedMeasurer struct {
	mu     sync.Mutex
	height map[string]float64
	widths []float64
}

func (m *fixedMeasurer) Measure(_ context.Context, _ layout.Block, ref string, width float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widths = append(m.widths, width)
	if h, ok := m.height[ref]; ok {
		return h
	}
	return 150
}

func sheetOf(layoutName model.Layout, refs ...string) model.Sheet {
	s := model.Sheet{Title: "Quiz", Config: model.LayoutConfig{Layout: layoutName, Spacing: 0}}
	for i, ref := range refs {
		s.Items = append(s.Items, model.QuestionItem{ID: string(rune('a' + i)), ImageRef: ref})
	}
	return s
}

func TestLayoutPaginatesMeasuredHeights(t *testing.T) {
	m := &fixedMeasurer{height: map[string]float64{"big": 300}}
	c := New(WithMeasurer(m), WithHeaderSpansColumns(false))

	plan, err := c.Layout(context.Background(), sheetOf(model.LayoutOneColumn, "big", "big", "big", "big"))
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	e := pagination.NewEngine()
	for _, w := range m.widths {
		if w != e.ContentWidth() {
			t.Fatalf("1-column width = %v, want %v", w, e.ContentWidth())
		}
	}
	// content height 785.2, header takes the first column down below 3 items
	got := pagination.Indices(plan.Pages)
	if len(got) != 2 || len(got[0]) != 2 || len(got[1]) != 2 {
		t.Fatalf("pages = %v", got)
	}
	if plan.Geometry.HeaderHeight != layout.DefaultStyle().HeaderHeight() {
		t.Fatalf("header height = %v", plan.Geometry.HeaderHeight)
	}
}

func TestLayoutTwoColumnWidth(t *testing.T) {
	m := &fixedMeasurer{}
	c := New(WithMeasurer(m), WithColumnGap(40))

	plan, err := c.Layout(context.Background(), sheetOf(model.LayoutTwoColumn, "x", "y", "z"))
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	want := (pagination.PageSizeA4.Width - 2*10*pagination.PointsPerMM - 40) / 2
	if len(m.widths) != 3 {
		t.Fatalf("measured %d items", len(m.widths))
	}
	for _, w := range m.widths {
		if w-want > 1e-9 || want-w > 1e-9 {
			t.Fatalf("2-column width = %v, want %v", w, want)
		}
	}
	if plan.Geometry.Columns != 2 || len(plan.Pages) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestLayoutEmptyAndCanceled(t *testing.T) {
	c := New(WithMeasurer(&fixedMeasurer{}))
	plan, err := c.Layout(context.Background(), model.Sheet{Title: "empty"})
	if err != nil || len(plan.Pages) != 0 {
		t.Fatalf("empty layout = %+v, %v", plan, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Layout(ctx, sheetOf(model.LayoutOneColumn, "a")); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled layout err = %v", err)
	}
}

func TestRenderRequiresItems(t *testing.T) {
	c := New(WithMeasurer(&fixedMeasurer{}))
	var buf bytes.Buffer
	if err := c.RenderPDF(context.Background(), model.Sheet{Title: "x"}, &buf); !errors.Is(err, model.ErrNoItems) {
		t.Fatalf("RenderPDF err = %v", err)
	}
	if err := c.RenderHTML(context.Background(), model.Sheet{Title: "x"}, &buf); !errors.Is(err, model.ErrNoItems) {
		t.Fatalf("RenderHTML err = %v", err)
	}
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 80, 40))); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRenderOutputs(t *testing.T) {
	ref := pngDataURL(t)
	sheet := sheetOf(model.LayoutTwoColumn, ref, ref, "missing.png")
	sheet.Items[0].Answer = "3"
	c := New(WithTitle("Midterm"), WithAuthor("Ms. Kim"))

	data, err := c.RenderPDFBytes(context.Background(), sheet)
	if err != nil {
		t.Fatalf("RenderPDFBytes: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a PDF: %q", data[:8])
	}

	out := filepath.Join(t.TempDir(), "preview", "quiz.html")
	if err := c.RenderHTMLFile(context.Background(), sheet, out); err != nil {
		t.Fatalf("RenderHTMLFile: %v", err)
	}
	doc, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "@page { size: A4;") {
		t.Fatal("preview has no @page rule")
	}
	if n := strings.Count(string(doc), "<img"); n != 2 {
		t.Fatalf("preview has %d images, want 2", n)
	}
}

func TestWithOptionCopies(t *testing.T) {
	base := New(WithResourcePath("a"))
	other := base.WithOption(WithResourcePath("b"))
	if len(base.Options().ResourcePaths) != 1 || len(other.Options().ResourcePaths) != 2 {
		t.Fatalf("paths = %v / %v", base.Options().ResourcePaths, other.Options().ResourcePaths)
	}
}

func TestPageSizeByName(t *testing.T) {
	if PageSizeByName("letter") != pagination.PageSizeLetter || PageSizeByName("?") != pagination.PageSizeA4 {
		t.Fatal("unexpected page size mapping")
	}
}
