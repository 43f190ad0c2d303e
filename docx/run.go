package docx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Run wraps a w:r element.
type Run struct {
	el   *etree.Element
	part *Part
}

// Element returns the underlying w:r element.
func (r *Run) Element() *etree.Element {
	return r.el
}

// Same reports whether r and other wrap the same element.
func (r *Run) Same(other *Run) bool {
	return other != nil && r.el == other.el
}

// textual reports whether el contributes to the run's logical text.
func textual(el *etree.Element) bool {
	return isW(el, "t") || isW(el, "tab") || isW(el, "br") || isW(el, "cr")
}

// Text returns the logical text of the run. Tabs map to '\t', breaks to '\n'.
// Field instructions, deleted text and drawings contribute nothing.
func (r *Run) Text() string {
	var sb strings.Builder
	for _, c := range r.el.ChildElements() {
		switch {
		case isW(c, "t"):
			sb.WriteString(c.Text())
		case isW(c, "tab"):
			sb.WriteByte('\t')
		case isW(c, "br"), isW(c, "cr"):
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// SetText replaces the run's text content. Non-text children (properties,
// drawings, field characters) keep their position; existing tab and break
// elements are reused in order so their attributes survive.
func (r *Run) SetText(s string) {
	pos := -1
	var tabs, breaks []*etree.Element
	for _, c := range r.el.ChildElements() {
		if !textual(c) {
			continue
		}
		if pos < 0 {
			pos = c.Index()
		}
		switch {
		case isW(c, "tab"):
			tabs = append(tabs, c)
		case isW(c, "br"), isW(c, "cr"):
			breaks = append(breaks, c)
		}
		r.el.RemoveChild(c)
	}
	if pos < 0 {
		pos = len(r.el.Child)
	}

	var seg strings.Builder
	emit := func(el *etree.Element) {
		r.el.InsertChildAt(pos, el)
		pos++
	}
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		t := etree.NewElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(seg.String())
		emit(t)
		seg.Reset()
	}
	for _, ch := range s {
		switch ch {
		case '\t':
			flush()
			if len(tabs) > 0 {
				emit(tabs[0])
				tabs = tabs[1:]
			} else {
				emit(etree.NewElement("w:tab"))
			}
		case '\n':
			flush()
			if len(breaks) > 0 {
				emit(breaks[0])
				breaks = breaks[1:]
			} else {
				emit(etree.NewElement("w:br"))
			}
		default:
			seg.WriteRune(ch)
		}
	}
	flush()
	if r.part != nil {
		r.part.touch()
	}
}

// Split cuts r after offset runes of its text. The text that follows moves
// to a new run inserted directly after r, carrying a copy of r's
// properties. Non-text children stay in r. Split returns the new run, or nil
// when offset does not fall strictly inside the text.
func (r *Run) Split(offset int) *Run {
	text := []rune(r.Text())
	if offset <= 0 || offset >= len(text) {
		return nil
	}
	el := etree.NewElement(r.el.FullTag())
	if rpr := r.Props(); rpr != nil {
		el.AddChild(rpr.Copy())
	}
	r.el.Parent().InsertChildAt(r.el.Index()+1, el)
	rest := &Run{el: el, part: r.part}
	rest.SetText(string(text[offset:]))
	r.SetText(string(text[:offset]))
	return rest
}

// Props returns the run properties element, or nil.
func (r *Run) Props() *etree.Element {
	return childW(r.el, "rPr")
}

// PropsString returns the serialised run properties, "" when there are none.
// Two runs with equal strings are formatted identically.
func (r *Run) PropsString() string {
	rpr := r.Props()
	if rpr == nil {
		return ""
	}
	return ElementString(rpr)
}

// CopyPropsFrom replaces the run's properties with a copy of other's.
func (r *Run) CopyPropsFrom(other *Run) {
	if old := r.Props(); old != nil {
		r.el.RemoveChild(old)
	}
	if src := other.Props(); src != nil {
		r.el.InsertChildAt(0, src.Copy())
	}
	if r.part != nil {
		r.part.touch()
	}
}

// HasDrawing reports whether the run holds a picture or other drawing object.
func (r *Run) HasDrawing() bool {
	return childW(r.el, "drawing") != nil || childW(r.el, "pict") != nil
}

// Format returns the character formatting tuple of the run.
func (r *Run) Format() Format {
	return parseFormat(r.Props())
}

// Format is the character formatting tuple that defines run identity.
type Format struct {
	Style     string
	Font      string
	EastAsia  string
	Size      float64 // points
	Bold      bool
	Italic    bool
	Strike    bool
	Underline string
	Color     string
	Highlight string
}

// Key returns a comparable representation of the format.
func (f Format) Key() string {
	return fmt.Sprintf("%s|%s|%s|%g|%t|%t|%t|%s|%s|%s",
		f.Style, f.Font, f.EastAsia, f.Size, f.Bold, f.Italic, f.Strike, f.Underline, f.Color, f.Highlight)
}

func parseFormat(rpr *etree.Element) Format {
	var f Format
	if rpr == nil {
		return f
	}
	for _, c := range rpr.ChildElements() {
		switch {
		case isW(c, "rStyle"):
			f.Style = attrW(c, "val")
		case isW(c, "rFonts"):
			f.Font = attrW(c, "ascii")
			f.EastAsia = attrW(c, "eastAsia")
		case isW(c, "sz"):
			f.Size = parseHalfPoints(attrW(c, "val"))
		case isW(c, "b"):
			f.Bold = toggleOn(c)
		case isW(c, "i"):
			f.Italic = toggleOn(c)
		case isW(c, "strike"):
			f.Strike = toggleOn(c)
		case isW(c, "u"):
			if v := attrW(c, "val"); v != "none" {
				if v == "" {
					v = "single"
				}
				f.Underline = v
			}
		case isW(c, "color"):
			if v := attrW(c, "val"); v != "auto" {
				f.Color = v
			}
		case isW(c, "highlight"):
			f.Highlight = attrW(c, "val")
		}
	}
	return f
}

// toggleOn evaluates an OOXML on/off property: present means on unless the
// value says otherwise.
func toggleOn(el *etree.Element) bool {
	switch attrW(el, "val") {
	case "0", "false", "off":
		return false
	}
	return true
}

// parseHalfPoints parses a size in half-points to points.
// Word uses half-points for font sizes (e.g., "24" = 12pt).
func parseHalfPoints(s string) float64 {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return val / 2
}

// ElementString serialises an element without an XML declaration.
func ElementString(el *etree.Element) string {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}
