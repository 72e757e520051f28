package pagination

// Page represents a single printed sheet. Columns holds the item indices placed
// in each column, left to right; a column that received nothing is empty.
type Page struct {
	Number  int
	Columns [][]int
}

// Items returns the indices on the page in reading order
func (p Page) Items() []int {
	var out []int
	for _, col := range p.Columns {
		out = append(out, col...)
	}
	return out
}

// Len returns the number of items on the page
func (p Page) Len() int {
	n := 0
	for _, col := range p.Columns {
		n += len(col)
	}
	return n
}

// Indices flattens pages into one index list per page
func Indices(pages []Page) [][]int {
	out := make([][]int, len(pages))
	for i, p := range pages {
		out[i] = p.Items()
	}
	return out
}

// Params are the inputs of a pagination pass. All lengths share one unit.
type Params struct {
	// PageHeight is the usable height of one column
	PageHeight float64
	// HeaderHeight is reserved at the top of the first page
	HeaderHeight float64
	// HeaderSpansColumns reserves the header in every column of the first
	// page instead of only the first one
	HeaderSpansColumns bool
	// Columns per page; values below 1 mean 1
	Columns int
	// Spacing is added below every item
	Spacing float64
}

// capacity returns the usable height of a column
func (p Params) capacity(page, column int) float64 {
	if page == 0 && (column == 0 || p.HeaderSpansColumns) {
		return p.PageHeight - p.HeaderHeight
	}
	return p.PageHeight
}

// movable reports whether an item that overflows an empty column should move
// to the next column of the same page. That only happens on the first page,
// where the header leaves the column short, and only when the next column can
// hold the item.
func (p Params) movable(page, column, columns int, effective float64) bool {
	return column+1 < columns && effective <= p.capacity(page, column+1)
}

// Paginate assigns items to pages and columns in a single greedy pass. Items
// are never split or reordered: an item that overflows the active column
// starts the next column, or the next page after the last column. An item
// that overflows an empty column stays there unless the next column of the
// same page can hold it, so no page is left without items. No look-ahead or
// balancing is done, so the left column of a page fills before the right one.
func Paginate(heights []float64, p Params) []Page {
	if len(heights) == 0 {
		return []Page{}
	}
	columns := p.Columns
	if columns < 1 {
		columns = 1
	}

	pages := make([]Page, 0)
	newPage := func() Page {
		return Page{Number: len(pages) + 1, Columns: make([][]int, columns)}
	}

	current := newPage()
	column := 0
	fill := 0.0

	for i, h := range heights {
		effective := h + p.Spacing
		occupied := len(current.Columns[column]) > 0
		overflow := fill+effective > p.capacity(len(pages), column)

		if overflow && (occupied || p.movable(len(pages), column, columns, effective)) {
			column++
			if column >= columns {
				pages = append(pages, current)
				current = newPage()
				column = 0
			}
			fill = 0
		}

		current.Columns[column] = append(current.Columns[column], i)
		fill += effective
	}

	if current.Len() > 0 {
		pages = append(pages, current)
	}
	return pages
}

// ColumnFill returns the summed effective height of each column of a page
func ColumnFill(page Page, heights []float64, spacing float64) []float64 {
	out := make([]float64, len(page.Columns))
	for c, col := range page.Columns {
		for _, idx := range col {
			out[c] += heights[idx] + spacing
		}
	}
	return out
}
