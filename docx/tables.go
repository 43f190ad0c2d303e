package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Table wraps a w:tbl element.
type Table struct {
	el   *etree.Element
	part *Part
}

// Element returns the underlying w:tbl element.
func (t *Table) Element() *etree.Element {
	return t.el
}

// Rows returns the table rows with grid columns resolved for every cell.
func (t *Table) Rows() []*Row {
	var rows []*Row
	for _, el := range t.el.ChildElements() {
		if !isW(el, "tr") {
			continue
		}
		row := &Row{el: el, part: t.part, Index: len(rows)}
		row.parseCells()
		rows = append(rows, row)
	}
	return rows
}

// CellAt returns the cell of rows[rowIdx] that occupies grid column col, or nil.
func CellAt(rows []*Row, rowIdx, col int) *Cell {
	if rowIdx < 0 || rowIdx >= len(rows) {
		return nil
	}
	for _, c := range rows[rowIdx].cells {
		if col >= c.GridCol && col < c.GridCol+c.ColSpan {
			return c
		}
	}
	return nil
}

// Row wraps a w:tr element.
type Row struct {
	el    *etree.Element
	part  *Part
	cells []*Cell
	Index int
}

// Cells returns the cells of the row in order.
func (r *Row) Cells() []*Cell {
	return r.cells
}

func (r *Row) parseCells() {
	col := 0
	if trPr := childW(r.el, "trPr"); trPr != nil {
		if gb := childW(trPr, "gridBefore"); gb != nil {
			col = atoiDefault(attrW(gb, "val"), 0)
		}
	}
	var visit func(container *etree.Element)
	visit = func(container *etree.Element) {
		for _, el := range container.ChildElements() {
			switch {
			case isW(el, "tc"):
				c := &Cell{el: el, part: r.part, GridCol: col, ColSpan: 1}
				c.parseProps()
				r.cells = append(r.cells, c)
				col += c.ColSpan
			case isW(el, "sdt"):
				if content := childW(el, "sdtContent"); content != nil {
					visit(content)
				}
			case isW(el, "customXml"):
				visit(el)
			}
		}
	}
	visit(r.el)
}

// Cell wraps a w:tc element.
type Cell struct {
	el   *etree.Element
	part *Part

	GridCol int // first grid column occupied by the cell
	ColSpan int // number of grid columns spanned (gridSpan)

	// VMerge is "restart" for the first cell of a vertical merge, "continue"
	// for the cells below it, "" otherwise.
	VMerge  string
	Shading string // background fill (hex)
}

// Element returns the underlying w:tc element.
func (c *Cell) Element() *etree.Element {
	return c.el
}

func (c *Cell) parseProps() {
	tcPr := childW(c.el, "tcPr")
	if tcPr == nil {
		return
	}
	if gs := childW(tcPr, "gridSpan"); gs != nil {
		if n := atoiDefault(attrW(gs, "val"), 1); n > 1 {
			c.ColSpan = n
		}
	}
	if vm := childW(tcPr, "vMerge"); vm != nil {
		if attrW(vm, "val") == "restart" {
			c.VMerge = "restart"
		} else {
			c.VMerge = "continue"
		}
	}
	if shd := childW(tcPr, "shd"); shd != nil {
		if fill := attrW(shd, "fill"); fill != "" && fill != "auto" {
			c.Shading = fill
		}
	}
}

// IsMergedContinuation reports whether the cell continues a vertical merge
// started in a row above.
func (c *Cell) IsMergedContinuation() bool {
	return c.VMerge == "continue"
}

// Blocks returns the cell content in order.
func (c *Cell) Blocks() []Block {
	return collectBlocks(c.el, c.part)
}

// Paragraphs returns the cell's own paragraphs, excluding nested tables.
func (c *Cell) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range c.Blocks() {
		if b.Paragraph != nil {
			out = append(out, b.Paragraph)
		}
	}
	return out
}

// Text returns the cell text with paragraphs joined by newlines.
func (c *Cell) Text() string {
	var parts []string
	for _, p := range c.Paragraphs() {
		parts = append(parts, p.Text())
	}
	return strings.Join(parts, "\n")
}

// FirstParagraph returns the first paragraph of the cell, creating one when
// the cell has none.
func (c *Cell) FirstParagraph() *Paragraph {
	if ps := c.Paragraphs(); len(ps) > 0 {
		return ps[0]
	}
	el := c.el.CreateElement("w:p")
	c.part.touch()
	return &Paragraph{el: el, part: c.part}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
