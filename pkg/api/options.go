package api

import (
	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/res"
)

// Options represents configuration options for the exam sheet composer
type Options struct {
	// Page dimensions in points
	PageSize pagination.PageSize
	// MarginMM is applied to every side, in preview and print alike
	MarginMM float64
	// ColumnGap separates the columns of a two column layout, in points
	ColumnGap float64
	// HeaderSpansColumns reserves the header on every first-page column
	HeaderSpansColumns bool

	// Style holds fonts, labels and the fallback block height
	Style layout.Style

	// When true, draw debug box overlays around every block
	DebugDrawBoxes bool
	// When false, the answer key page is left out
	AnswerKey bool

	// Concurrency bounds parallel image measurement
	Concurrency int

	// Resource resolution
	BaseURL       string
	ResourcePaths []string
	Blobs         res.BlobGetter

	// Measurer replaces image based measurement when set
	Measurer layout.Measurer
	Logger   *zap.Logger

	// Document metadata
	Title    string
	Author   string
	Subject  string
	Keywords string
}

// Option is a function that modifies Options
type Option func(*Options)

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		// Default to A4 paper size (595.28 x 841.89 points)
		PageSize:  pagination.PageSizeA4,
		MarginMM:  10,
		ColumnGap: 36,

		Style: layout.DefaultStyle(),

		DebugDrawBoxes: false,
		AnswerKey:      true,
		Concurrency:    4,

		ResourcePaths: []string{},
	}
}

// WithPageSize sets the page size
func WithPageSize(size pagination.PageSize) Option {
	return func(o *Options) {
		o.PageSize = size
	}
}

// WithMargin sets the page margin in millimetres
func WithMargin(mm float64) Option {
	return func(o *Options) {
		o.MarginMM = mm
	}
}

// WithColumnGap sets the gap between columns in points
func WithColumnGap(gap float64) Option {
	return func(o *Options) {
		o.ColumnGap = gap
	}
}

// WithHeaderSpansColumns reserves header space in both first-page columns
func WithHeaderSpansColumns(span bool) Option {
	return func(o *Options) {
		o.HeaderSpansColumns = span
	}
}

// WithFallbackHeight sets the height of blocks whose image cannot be measured
func WithFallbackHeight(h float64) Option {
	return func(o *Options) {
		o.Style.FallbackHeight = h
	}
}

// WithStyle replaces the sheet style
func WithStyle(st layout.Style) Option {
	return func(o *Options) {
		o.Style = st
	}
}

// WithNameLabel sets the name line printed under the title
func WithNameLabel(label string) Option {
	return func(o *Options) {
		o.Style.NameLabel = label
	}
}

// WithScoreFormat sets the score caption format, e.g. "(%d pts)"
func WithScoreFormat(format string) Option {
	return func(o *Options) {
		o.Style.ScoreFormat = format
	}
}

// WithDebug sets the debug overlays
func WithDebug(debug bool) Option {
	return func(o *Options) {
		o.DebugDrawBoxes = debug
	}
}

// WithAnswerKey toggles the answer key page
func WithAnswerKey(on bool) Option {
	return func(o *Options) {
		o.AnswerKey = on
	}
}

// WithConcurrency bounds parallel measurement
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithBaseURL sets the file or URL relative image references resolve against
func WithBaseURL(base string) Option {
	return func(o *Options) {
		o.BaseURL = base
	}
}

// WithResourcePath adds a path to search for images
func WithResourcePath(path string) Option {
	return func(o *Options) {
		o.ResourcePaths = append(o.ResourcePaths, path)
	}
}

// WithBlobStore resolves blob: image references
func WithBlobStore(b res.BlobGetter) Option {
	return func(o *Options) {
		o.Blobs = b
	}
}

// WithMeasurer replaces image based measurement
func WithMeasurer(m layout.Measurer) Option {
	return func(o *Options) {
		o.Measurer = m
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

// WithTitle sets the document title metadata
func WithTitle(title string) Option {
	return func(o *Options) {
		o.Title = title
	}
}

// WithAuthor sets the document author
func WithAuthor(author string) Option {
	return func(o *Options) {
		o.Author = author
	}
}

// WithSubject sets the document subject
func WithSubject(subject string) Option {
	return func(o *Options) {
		o.Subject = subject
	}
}

// WithKeywords sets the document keywords
func WithKeywords(keywords string) Option {
	return func(o *Options) {
		o.Keywords = keywords
	}
}

// PageSizeByName maps a paper name to its size; unknown names give A4
func PageSizeByName(name string) pagination.PageSize {
	switch name {
	case "A3", "a3":
		return pagination.PageSizeA3
	case "A5", "a5":
		return pagination.PageSizeA5
	case "Letter", "letter":
		return pagination.PageSizeLetter
	default:
		return pagination.PageSizeA4
	}
}
