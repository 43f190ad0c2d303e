package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// XML namespaces used in DOCX files
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
)

// Part is an editable XML part of the package (document, header or footer).
type Part struct {
	Name  string
	doc   *etree.Document
	pkg   *Package
	dirty bool
	added bool
}

// Root returns the root element of the part.
func (p *Part) Root() *etree.Element {
	return p.doc.Root()
}

// Dirty reports whether the part was modified since it was opened.
func (p *Part) Dirty() bool {
	return p.dirty
}

// Package returns the package that owns this part.
func (p *Part) Package() *Package {
	return p.pkg
}

func (p *Part) touch() {
	p.dirty = true
}

// Body returns the element holding the part's block content: w:body for the
// main document, the root element for headers and footers.
func (p *Part) Body() *etree.Element {
	root := p.Root()
	if root == nil {
		return nil
	}
	if isW(root, "document") {
		return childW(root, "body")
	}
	return root
}

// Block is one element of a block container: either a paragraph or a table.
type Block struct {
	Paragraph *Paragraph
	Table     *Table
}

// Blocks returns the blocks of the part body in document order.
func (p *Part) Blocks() []Block {
	body := p.Body()
	if body == nil {
		return nil
	}
	return collectBlocks(body, p)
}

// Paragraphs returns every paragraph of the part in document order,
// including paragraphs nested in table cells.
func (p *Part) Paragraphs() []*Paragraph {
	var out []*Paragraph
	walkBlocks(p.Blocks(), func(para *Paragraph) {
		out = append(out, para)
	})
	return out
}

// AppendParagraph adds an empty paragraph at the end of the body, before the
// trailing section properties if any.
func (p *Part) AppendParagraph() *Paragraph {
	body := p.Body()
	el := etree.NewElement("w:p")
	if sect := childW(body, "sectPr"); sect != nil {
		body.InsertChildAt(sect.Index(), el)
	} else {
		body.AddChild(el)
	}
	p.touch()
	return &Paragraph{el: el, part: p}
}

func walkBlocks(blocks []Block, fn func(*Paragraph)) {
	for _, b := range blocks {
		if b.Paragraph != nil {
			fn(b.Paragraph)
			continue
		}
		for _, row := range b.Table.Rows() {
			for _, cell := range row.Cells() {
				walkBlocks(cell.Blocks(), fn)
			}
		}
	}
}

// collectBlocks returns p and tbl children of a container, looking through
// content controls and custom XML wrappers.
func collectBlocks(container *etree.Element, part *Part) []Block {
	var out []Block
	for _, el := range container.ChildElements() {
		switch {
		case isW(el, "p"):
			out = append(out, Block{Paragraph: &Paragraph{el: el, part: part}})
		case isW(el, "tbl"):
			out = append(out, Block{Table: &Table{el: el, part: part}})
		case isW(el, "sdt"):
			if content := childW(el, "sdtContent"); content != nil {
				out = append(out, collectBlocks(content, part)...)
			}
		case isW(el, "customXml"):
			out = append(out, collectBlocks(el, part)...)
		}
	}
	return out
}

// Paragraph wraps a w:p element.
type Paragraph struct {
	el   *etree.Element
	part *Part
}

// Element returns the underlying w:p element.
func (p *Paragraph) Element() *etree.Element {
	return p.el
}

// Part returns the part the paragraph belongs to.
func (p *Paragraph) Part() *Part {
	return p.part
}

// runContainers are inline wrappers whose runs belong to the paragraph text.
var runContainers = map[string]bool{
	"hyperlink": true,
	"ins":       true,
	"smartTag":  true,
	"fldSimple": true,
	"customXml": true,
	"moveTo":    true,
	"dir":       true,
	"bdo":       true,
}

// Runs returns the text runs of the paragraph in order. Runs inside deleted
// revisions are excluded.
func (p *Paragraph) Runs() []*Run {
	var runs []*Run
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			switch {
			case isW(c, "r"):
				runs = append(runs, &Run{el: c, part: p.part})
			case isW(c, "sdt"):
				if content := childW(c, "sdtContent"); content != nil {
					walk(content)
				}
			case runContainers[c.Tag] && isW(c, c.Tag):
				walk(c)
			}
		}
	}
	walk(p.el)
	return runs
}

// Text returns the concatenated text of the paragraph's runs.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs() {
		sb.WriteString(r.Text())
	}
	return sb.String()
}

// StyleID returns the paragraph style id, or "" when none is set.
func (p *Paragraph) StyleID() string {
	if ppr := childW(p.el, "pPr"); ppr != nil {
		if ps := childW(ppr, "pStyle"); ps != nil {
			return attrW(ps, "val")
		}
	}
	return ""
}

// Alignment returns the effective paragraph justification, falling back to the
// paragraph style when no direct value is present.
func (p *Paragraph) Alignment() string {
	if ppr := childW(p.el, "pPr"); ppr != nil {
		if jc := childW(ppr, "jc"); jc != nil {
			return attrW(jc, "val")
		}
	}
	if p.part != nil && p.part.pkg != nil {
		if id := p.StyleID(); id != "" {
			return p.part.pkg.Styles().Resolve(id).Alignment
		}
	}
	return ""
}

// IsCentered reports whether the paragraph is centre-aligned.
func (p *Paragraph) IsCentered() bool {
	return p.Alignment() == "center"
}

// SetAlignment sets the direct paragraph justification.
func (p *Paragraph) SetAlignment(val string) {
	ppr := ensurePPr(p.el)
	jc := childW(ppr, "jc")
	if jc == nil {
		jc = ppr.CreateElement("w:jc")
	}
	jc.CreateAttr("w:val", val)
	p.part.touch()
}

// IsHeading reports whether the paragraph uses a heading style or carries an
// outline level.
func (p *Paragraph) IsHeading() bool {
	if ppr := childW(p.el, "pPr"); ppr != nil {
		if lvl := childW(ppr, "outlineLvl"); lvl != nil {
			if n := parseOutlineLevel(attrW(lvl, "val")); n >= 0 && n <= 8 {
				return true
			}
		}
	}
	id := p.StyleID()
	if id == "" {
		return false
	}
	if p.part == nil || p.part.pkg == nil {
		ok, _ := detectBuiltInHeading(id)
		return ok
	}
	return p.part.pkg.Styles().Resolve(id).IsHeading
}

// InTOC reports whether the paragraph belongs to a table of contents, either
// through a TOC paragraph style or a TOC content control.
func (p *Paragraph) InTOC() bool {
	if id := p.StyleID(); id != "" {
		if isTOCStyle(id) {
			return true
		}
		if p.part != nil && p.part.pkg != nil && p.part.pkg.Styles().Resolve(id).IsTOC {
			return true
		}
	}
	for el := p.el.Parent(); el != nil; el = el.Parent() {
		if !isW(el, "sdt") {
			continue
		}
		if pr := childW(el, "sdtPr"); pr != nil {
			for _, gal := range pr.FindElements(".//docPartGallery") {
				if strings.Contains(strings.ToLower(attrW(gal, "val")), "table of contents") {
					return true
				}
			}
		}
	}
	return false
}

// InsertParagraphAfter creates an empty paragraph directly after p.
func (p *Paragraph) InsertParagraphAfter() *Paragraph {
	el := etree.NewElement("w:p")
	parent := p.el.Parent()
	parent.InsertChildAt(p.el.Index()+1, el)
	p.part.touch()
	return &Paragraph{el: el, part: p.part}
}

// InsertParagraphBefore creates an empty paragraph directly before p.
func (p *Paragraph) InsertParagraphBefore() *Paragraph {
	el := etree.NewElement("w:p")
	parent := p.el.Parent()
	parent.InsertChildAt(p.el.Index(), el)
	p.part.touch()
	return &Paragraph{el: el, part: p.part}
}

// CopyPropsFrom replaces the paragraph properties of p by a copy of other's.
func (p *Paragraph) CopyPropsFrom(other *Paragraph) {
	if old := childW(p.el, "pPr"); old != nil {
		p.el.RemoveChild(old)
	}
	if ppr := childW(other.el, "pPr"); ppr != nil {
		p.el.InsertChildAt(0, ppr.Copy())
	}
	p.part.touch()
}

// AppendRun adds a run holding text at the end of the paragraph. The run takes
// the paragraph mark's run properties, which is what Word uses for text typed
// into an empty paragraph.
func (p *Paragraph) AppendRun(text string) *Run {
	el := etree.NewElement("w:r")
	if ppr := childW(p.el, "pPr"); ppr != nil {
		if mark := childW(ppr, "rPr"); mark != nil {
			rpr := mark.Copy()
			for _, c := range rpr.ChildElements() {
				if isW(c, "ins") || isW(c, "del") || isW(c, "moveFrom") || isW(c, "moveTo") {
					rpr.RemoveChild(c)
				}
			}
			el.AddChild(rpr)
		}
	}
	p.el.AddChild(el)
	r := &Run{el: el, part: p.part}
	r.SetText(text)
	p.part.touch()
	return r
}

// AppendElement adds an already built run-level element (for example a
// picture run) at the end of the paragraph.
func (p *Paragraph) AppendElement(el *etree.Element) {
	p.el.AddChild(el)
	p.part.touch()
}

// InsertAfterRun inserts el directly after run r. r must belong to p.
func (p *Paragraph) InsertAfterRun(r *Run, el *etree.Element) {
	parent := r.el.Parent()
	parent.InsertChildAt(r.el.Index()+1, el)
	p.part.touch()
}

// InsertBeforeRun inserts el directly before run r. r must belong to p.
func (p *Paragraph) InsertBeforeRun(r *Run, el *etree.Element) {
	parent := r.el.Parent()
	parent.InsertChildAt(r.el.Index(), el)
	p.part.touch()
}

// Remove detaches the paragraph from the document.
func (p *Paragraph) Remove() {
	if parent := p.el.Parent(); parent != nil {
		parent.RemoveChild(p.el)
		p.part.touch()
	}
}

func ensurePPr(p *etree.Element) *etree.Element {
	if ppr := childW(p, "pPr"); ppr != nil {
		return ppr
	}
	ppr := etree.NewElement("w:pPr")
	p.InsertChildAt(0, ppr)
	return ppr
}

// isW reports whether el is the WordprocessingML element with the given local name.
func isW(el *etree.Element, local string) bool {
	if el == nil || el.Tag != local {
		return false
	}
	if el.Space == "w" {
		return true
	}
	return el.NamespaceURI() == nsW
}

// childW returns the first child of el that is the w:local element.
func childW(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if isW(c, local) {
			return c
		}
	}
	return nil
}

// attrW returns the value of a w:-qualified attribute, accepting an
// unqualified attribute of the same name.
func attrW(el *etree.Element, local string) string {
	for _, a := range el.Attr {
		if a.Key == local && (a.Space == "w" || a.Space == "") {
			return a.Value
		}
	}
	return ""
}
