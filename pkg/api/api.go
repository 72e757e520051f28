package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/render/html"
	"github.com/gompdf/examsheet/internal/render/pdf"
	"github.com/gompdf/examsheet/internal/res"
)

// Composer measures, paginates and renders exam sheets
type Composer struct {
	options  Options
	loader   *res.Loader
	measurer layout.Measurer
	log      *zap.Logger
}

// New creates a composer with default options modified by opts
func New(opts ...Option) *Composer {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return NewWithOptions(o)
}

// NewWithOptions creates a composer with the specified options
func NewWithOptions(options Options) *Composer {
	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loader := res.NewLoader(options.BaseURL)
	for _, path := range options.ResourcePaths {
		loader.AddSearchPath(path)
	}
	if options.Blobs != nil {
		loader.SetBlobStore(options.Blobs)
	}

	measurer := options.Measurer
	if measurer == nil {
		measurer = layout.NewImageMeasurer(loader, options.Style, log)
	}
	return &Composer{options: options, loader: loader, measurer: measurer, log: log}
}

// Options returns the composer's options
func (c *Composer) Options() Options { return c.options }

// Loader returns the image loader; callers purge it when files change
func (c *Composer) Loader() *res.Loader { return c.loader }

func (c *Composer) engine() *pagination.Engine {
	e := pagination.NewEngine()
	e.SetOptions(pagination.Options{
		PageSize:           c.options.PageSize,
		Margins:            pagination.UniformMargins(c.options.MarginMM),
		ColumnGap:          c.options.ColumnGap,
		HeaderHeight:       c.options.Style.HeaderHeight(),
		HeaderSpansColumns: c.options.HeaderSpansColumns,
	})
	return e
}

// prepare normalizes a copy of the sheet the way it will be printed
func prepare(sheet model.Sheet) model.Sheet {
	s := sheet.Clone()
	s.Config = s.Config.Normalized()
	s.Items = model.Normalize(s.Items, s.Config.ImageSize)
	return s
}

// Layout measures every item at its print width and paginates the sheet
func (c *Composer) Layout(ctx context.Context, sheet model.Sheet) (*pagination.Plan, error) {
	sheet = prepare(sheet)
	return c.layout(ctx, sheet)
}

func (c *Composer) layout(ctx context.Context, sheet model.Sheet) (*pagination.Plan, error) {
	e := c.engine()
	columns := sheet.Config.Columns()
	width := e.ColumnWidth(columns)

	heights := make([]float64, len(sheet.Items))
	g, gctx := errgroup.WithContext(ctx)
	if c.options.Concurrency > 0 {
		g.SetLimit(c.options.Concurrency)
	}
	for i, it := range sheet.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			block := layout.Block{Number: i + 1, Scale: it.Scale, Score: it.Score}
			heights[i] = c.measurer.Measure(gctx, block, it.ImageRef, width)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := e.Plan(heights, columns, float64(sheet.Config.Spacing))
	c.log.Debug("sheet paginated",
		zap.String("title", sheet.Title),
		zap.Int("items", len(sheet.Items)),
		zap.Int("columns", columns),
		zap.Int("pages", len(plan.Pages)))
	return plan, nil
}

func (c *Composer) pdfRenderer() *pdf.Renderer {
	r := pdf.NewRenderer(c.loader, c.options.Style, c.log)
	r.DebugDrawBoxes = c.options.DebugDrawBoxes
	r.AnswerKey = c.options.AnswerKey
	return r
}

func (c *Composer) renderOptions(sheet model.Sheet) pdf.RenderOptions {
	title := c.options.Title
	if title == "" {
		title = sheet.Title
	}
	return pdf.RenderOptions{
		Title:    title,
		Author:   c.options.Author,
		Subject:  c.options.Subject,
		Keywords: c.options.Keywords,
		Creator:  "examsheet",
		Producer: "examsheet",
	}
}

func (c *Composer) planned(ctx context.Context, sheet model.Sheet) (model.Sheet, *pagination.Plan, error) {
	sheet = prepare(sheet)
	if len(sheet.Items) == 0 {
		return sheet, nil, model.ErrNoItems
	}
	plan, err := c.layout(ctx, sheet)
	if err != nil {
		return sheet, nil, err
	}
	return sheet, plan, nil
}

// RenderPDF lays out the sheet and writes the PDF to w
func (c *Composer) RenderPDF(ctx context.Context, sheet model.Sheet, w io.Writer) error {
	sheet, plan, err := c.planned(ctx, sheet)
	if err != nil {
		return err
	}
	if err := c.pdfRenderer().Render(ctx, sheet, plan, w, c.renderOptions(sheet)); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

// RenderPDFFile lays out the sheet and writes the PDF to outputPath
func (c *Composer) RenderPDFFile(ctx context.Context, sheet model.Sheet, outputPath string) error {
	sheet, plan, err := c.planned(ctx, sheet)
	if err != nil {
		return err
	}
	if err := c.pdfRenderer().RenderFile(ctx, sheet, plan, outputPath, c.renderOptions(sheet)); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

// RenderHTML lays out the sheet and writes the HTML preview to w
func (c *Composer) RenderHTML(ctx context.Context, sheet model.Sheet, w io.Writer) error {
	sheet, plan, err := c.planned(ctx, sheet)
	if err != nil {
		return err
	}
	return c.RenderHTMLPlan(ctx, sheet, plan, w)
}

// RenderHTMLPlan writes the preview for an existing plan
func (c *Composer) RenderHTMLPlan(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, w io.Writer) error {
	r := html.NewRenderer(c.loader, c.options.Style, c.log)
	r.DebugDrawBoxes = c.options.DebugDrawBoxes
	r.AnswerKey = c.options.AnswerKey
	return r.Render(ctx, prepare(sheet), plan, w)
}

// RenderPDFPlan writes the PDF for an existing plan
func (c *Composer) RenderPDFPlan(ctx context.Context, sheet model.Sheet, plan *pagination.Plan, w io.Writer) error {
	sheet = prepare(sheet)
	return c.pdfRenderer().Render(ctx, sheet, plan, w, c.renderOptions(sheet))
}

// RenderHTMLFile writes the HTML preview to outputPath
func (c *Composer) RenderHTMLFile(ctx context.Context, sheet model.Sheet, outputPath string) error {
	var buf bytes.Buffer
	if err := c.RenderHTML(ctx, sheet, &buf); err != nil {
		return err
	}
	return writeFile(outputPath, buf.Bytes())
}

// RenderPDFBytes renders the sheet to PDF bytes
func (c *Composer) RenderPDFBytes(ctx context.Context, sheet model.Sheet) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.RenderPDF(ctx, sheet, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithOption returns a new composer with the specified option set
func (c *Composer) WithOption(option Option) *Composer {
	newOptions := c.options
	newOptions.ResourcePaths = append([]string(nil), c.options.ResourcePaths...)
	option(&newOptions)
	return NewWithOptions(newOptions)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
