// Package examsheet lays out image-based exam sheets on A4 pages and renders
// them as PDF or as a printable HTML preview.
package examsheet

import (
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/pkg/api"
)

type Composer = api.Composer
type Options = api.Options
type Option = api.Option

type Sheet = model.Sheet
type QuestionItem = model.QuestionItem
type LayoutConfig = model.LayoutConfig
type Plan = pagination.Plan
type Page = pagination.Page

const (
	LayoutOneColumn = model.LayoutOneColumn
	LayoutTwoColumn = model.LayoutTwoColumn
)

func New(opts ...Option) *Composer              { return api.New(opts...) }
func NewWithOptions(options Options) *Composer { return api.NewWithOptions(options) }
func DefaultOptions() Options                  { return api.DefaultOptions() }

var (
	WithPageSize           = api.WithPageSize
	WithMargin             = api.WithMargin
	WithColumnGap          = api.WithColumnGap
	WithHeaderSpansColumns = api.WithHeaderSpansColumns
	WithFallbackHeight     = api.WithFallbackHeight
	WithStyle              = api.WithStyle
	WithNameLabel          = api.WithNameLabel
	WithScoreFormat        = api.WithScoreFormat
	WithDebug              = api.WithDebug
	WithAnswerKey          = api.WithAnswerKey
	WithConcurrency        = api.WithConcurrency
	WithBaseURL            = api.WithBaseURL
	WithResourcePath       = api.WithResourcePath
	WithBlobStore          = api.WithBlobStore
	WithMeasurer           = api.WithMeasurer
	WithLogger             = api.WithLogger
	WithTitle              = api.WithTitle
	WithAuthor             = api.WithAuthor
	WithSubject            = api.WithSubject
	WithKeywords           = api.WithKeywords
)

var (
	PageSizeA4     = pagination.PageSizeA4
	PageSizeA3     = pagination.PageSizeA3
	PageSizeA5     = pagination.PageSizeA5
	PageSizeLetter = pagination.PageSizeLetter
)
