package pagination

// PageSize represents standard page sizes
type PageSize struct {
	Width  float64
	Height float64
	Name   string
}

// Standard page sizes in points (1/72 inch)
var (
	PageSizeA4     = PageSize{Width: 595.28, Height: 841.89, Name: "A4"}
	PageSizeLetter = PageSize{Width: 612.00, Height: 792.00, Name: "Letter"}
	PageSizeA3     = PageSize{Width: 841.89, Height: 1190.55, Name: "A3"}
	PageSizeA5     = PageSize{Width: 419.53, Height: 595.28, Name: "A5"}
)

// PointsPerMM converts millimetres to points
const PointsPerMM = 72 / 25.4

// Margins represents page margins
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargins returns equal margins of mm millimetres on every side
func UniformMargins(mm float64) Margins {
	v := mm * PointsPerMM
	return Margins{Top: v, Right: v, Bottom: v, Left: v}
}

// Options represents options for the pagination engine
type Options struct {
	PageSize PageSize
	Margins  Margins
	// ColumnGap separates adjacent columns
	ColumnGap float64
	// HeaderHeight is reserved on the first page
	HeaderHeight       float64
	HeaderSpansColumns bool
}

// Engine handles the pagination process
type Engine struct {
	options Options
}

// NewEngine creates a new pagination engine for A4 with 10mm margins
func NewEngine() *Engine {
	return &Engine{
		options: Options{
			PageSize:  PageSizeA4,
			Margins:   UniformMargins(10),
			ColumnGap: 36,
		},
	}
}

// SetOptions sets the options for the pagination engine
func (e *Engine) SetOptions(options Options) {
	e.options = options
}

// Options returns the engine's current options
func (e *Engine) Options() Options {
	return e.options
}

// ContentWidth returns the horizontal space between the side margins
func (e *Engine) ContentWidth() float64 {
	return e.options.PageSize.Width - e.options.Margins.Left - e.options.Margins.Right
}

// ContentHeight returns the vertical space between the top and bottom margins
func (e *Engine) ContentHeight() float64 {
	return e.options.PageSize.Height - e.options.Margins.Top - e.options.Margins.Bottom
}

// ColumnWidth returns the width one item occupies with the given column count
func (e *Engine) ColumnWidth(columns int) float64 {
	if columns <= 1 {
		return e.ContentWidth()
	}
	gaps := e.options.ColumnGap * float64(columns-1)
	return (e.ContentWidth() - gaps) / float64(columns)
}

// ColumnX returns the left edge of a column relative to the page
func (e *Engine) ColumnX(columns, column int) float64 {
	return e.options.Margins.Left + float64(column)*(e.ColumnWidth(columns)+e.options.ColumnGap)
}

// Params returns the pagination inputs for a column count and item spacing
func (e *Engine) Params(columns int, spacing float64) Params {
	return Params{
		PageHeight:         e.ContentHeight(),
		HeaderHeight:       e.options.HeaderHeight,
		HeaderSpansColumns: e.options.HeaderSpansColumns,
		Columns:            columns,
		Spacing:            spacing,
	}
}

// Paginate breaks measured items into pages
func (e *Engine) Paginate(heights []float64, columns int, spacing float64) []Page {
	return Paginate(heights, e.Params(columns, spacing))
}

// CalculatePageCount calculates the number of pages needed
func (e *Engine) CalculatePageCount(heights []float64, columns int, spacing float64) int {
	return len(e.Paginate(heights, columns, spacing))
}

// Geometry fixes the page box and column positions for one column count
type Geometry struct {
	PageSize           PageSize
	Margins            Margins
	Columns            int
	ColumnWidth        float64
	ColumnGap          float64
	ContentHeight      float64
	HeaderHeight       float64
	HeaderSpansColumns bool
}

// Geometry returns the layout geometry for a column count
func (e *Engine) Geometry(columns int) Geometry {
	if columns < 1 {
		columns = 1
	}
	return Geometry{
		PageSize:           e.options.PageSize,
		Margins:            e.options.Margins,
		Columns:            columns,
		ColumnWidth:        e.ColumnWidth(columns),
		ColumnGap:          e.options.ColumnGap,
		ContentHeight:      e.ContentHeight(),
		HeaderHeight:       e.options.HeaderHeight,
		HeaderSpansColumns: e.options.HeaderSpansColumns,
	}
}

// ColumnX returns the left edge of a column relative to the page
func (g Geometry) ColumnX(column int) float64 {
	return g.Margins.Left + float64(column)*(g.ColumnWidth+g.ColumnGap)
}

// ColumnTop returns the top edge of a column's content area on a page
func (g Geometry) ColumnTop(page, column int) float64 {
	if page == 1 && (column == 0 || g.HeaderSpansColumns) {
		return g.Margins.Top + g.HeaderHeight
	}
	return g.Margins.Top
}

// Plan is a measured and paginated sheet, ready for rendering
type Plan struct {
	Geometry Geometry
	Spacing  float64
	Heights  []float64
	Pages    []Page
}

// Plan paginates measured heights into a Plan
func (e *Engine) Plan(heights []float64, columns int, spacing float64) *Plan {
	g := e.Geometry(columns)
	return &Plan{
		Geometry: g,
		Spacing:  spacing,
		Heights:  heights,
		Pages:    e.Paginate(heights, g.Columns, spacing),
	}
}
