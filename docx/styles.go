package docx

import "encoding/xml"

// stylesXML represents the structure of word/styles.xml. styles.xml is never
// written back, so plain encoding/xml structs are enough here.
type stylesXML struct {
	XMLName xml.Name      `xml:"styles"`
	Styles  []styleDefXML `xml:"style"`
}

// styleDefXML represents a style definition.
type styleDefXML struct {
	XMLName xml.Name          `xml:"style"`
	Type    string            `xml:"type,attr"` // paragraph, character, table, numbering
	StyleID string            `xml:"styleId,attr"`
	Default string            `xml:"default,attr"` // "1" if default style
	Name    valXML            `xml:"name"`
	BasedOn valXML            `xml:"basedOn"`
	PPr     paragraphPropsXML `xml:"pPr"`
}

// paragraphPropsXML represents the paragraph properties a style can carry.
type paragraphPropsXML struct {
	Justification valXML `xml:"jc"`
	OutlineLvl    valXML `xml:"outlineLvl"`
}

// valXML represents any element whose payload is a single w:val attribute.
type valXML struct {
	Val string `xml:"val,attr"`
}
