package html

import (
	"fmt"

	"github.com/gompdf/examsheet/internal/layout"
	"github.com/gompdf/examsheet/internal/pagination"
)

// stylesheet sizes every page to the print content box. On screen the page
// padding stands in for the @page margin, in print the padding is dropped.
func stylesheet(g pagination.Geometry, st layout.Style) string {
	m := g.Margins
	contentWidth := g.PageSize.Width - m.Left - m.Right
	size := g.PageSize.Name
	if size == "" {
		size = pt(g.PageSize.Width) + " " + pt(g.PageSize.Height)
	}
	margin := fmt.Sprintf("%s %s %s %s", pt(m.Top), pt(m.Right), pt(m.Bottom), pt(m.Left))

	return fmt.Sprintf(`
@page { size: %[1]s; margin: %[2]s; }
* { box-sizing: border-box; }
html, body { margin: 0; padding: 0; background: #e2e8f0; font-family: %[3]s, Arial, sans-serif; color: #000; }
.preview { display: flex; flex-direction: column; align-items: center; gap: 24pt; padding: 24pt 0; }
.page { background: #fff; box-shadow: 0 4pt 16pt rgba(15, 23, 42, 0.25); padding: %[2]s; box-sizing: content-box; width: %[4]s; height: %[5]s; overflow: hidden; }
.content { position: relative; width: %[4]s; height: %[5]s; }
.sheet-header { position: absolute; left: 0; top: 0; }
.sheet-header h1 { position: absolute; left: 0; right: 0; margin: 0; text-align: center; font-weight: bold; white-space: nowrap; overflow: hidden; line-height: %[6]v; }
.sheet-header .name { position: absolute; left: 0; right: 0; text-align: right; font-weight: bold; line-height: %[6]v; }
.sheet-header .rule { position: absolute; left: 0; right: 0; border-top: 1pt solid #1e293b; border-bottom: 1pt solid #1e293b; }
.column { position: absolute; }
.divider { position: absolute; width: 0; border-left: 0.5pt solid #cbd5e1; }
.question { position: relative; break-inside: avoid; }
.question .number { position: absolute; left: 0; top: 0; font-weight: bold; line-height: %[6]v; }
.question img, .question .placeholder { position: absolute; top: 0; display: block; }
.question .placeholder { background: #f1f5f9; border: 0.5pt solid #94a3b8; color: #64748b; font-size: 9pt; display: flex; align-items: center; justify-content: center; }
.question .score { position: absolute; text-align: right; line-height: %[6]v; }
.question.debug { outline: 0.5pt solid #c8c8c8; }
.answers { width: 100%%; border-collapse: collapse; text-align: center; }
.answers th, .answers td { border: 0.5pt solid #1e293b; padding: 0 2pt; }
.answers th { background: #f0f0f0; }
[data-answer-key] h2 { text-align: center; margin: 0 0 %[7]s; }
@media print {
  html, body { background: none; }
  .preview { display: block; padding: 0; }
  .page { box-shadow: none; padding: 0; break-after: page; }
  .page:last-child { break-after: auto; }
}
`, size, margin, st.FontFamily,
		pt(contentWidth), pt(g.ContentHeight), st.LineHeight, pt(st.HeaderPadding))
}
