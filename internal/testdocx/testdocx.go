// Package testdocx builds small .docx fixtures for tests.
package testdocx

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

// Namespaces declared on generated document, header and footer roots.
const Namespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

// Options describes a fixture package.
type Options struct {
	Body    string            // inner XML of w:body
	Styles  string            // inner XML of w:styles; styles.xml is omitted when empty
	Headers map[string]string // part name (e.g. "header1.xml") -> inner XML of w:hdr
	Footers map[string]string // part name -> inner XML of w:ftr
	Extra   map[string][]byte // additional raw entries
}

// Build writes a fixture package into a temporary directory and returns its path.
func Build(t testing.TB, opts Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.docx")
	if err := os.WriteFile(path, Bytes(t, opts), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

// Doc is shorthand for Build with only a body.
func Doc(t testing.TB, body string) string {
	t.Helper()
	return Build(t, Options{Body: body})
}

// Bytes returns the fixture package as a zip byte slice.
func Bytes(t testing.TB, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	add("[Content_Types].xml", contentTypes)
	add("_rels/.rels", packageRels)
	add("word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document `+Namespaces+`><w:body>`+opts.Body+`</w:body></w:document>`)
	add("word/_rels/document.xml.rels", documentRels)
	if opts.Styles != "" {
		add("word/styles.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles `+Namespaces+`>`+opts.Styles+`</w:styles>`)
	}
	for _, name := range sortedKeys(opts.Headers) {
		add("word/"+name, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:hdr `+Namespaces+`>`+opts.Headers[name]+`</w:hdr>`)
	}
	for _, name := range sortedKeys(opts.Footers) {
		add("word/"+name, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:ftr `+Namespaces+`>`+opts.Footers[name]+`</w:ftr>`)
	}
	for _, name := range sortedKeys(opts.Extra) {
		add(name, string(opts.Extra[name]))
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// R returns a run with the given inner rPr XML and text.
func R(rPr, text string) string {
	var sb strings.Builder
	sb.WriteString("<w:r>")
	if rPr != "" {
		sb.WriteString("<w:rPr>" + rPr + "</w:rPr>")
	}
	sb.WriteString(`<w:t xml:space="preserve">` + escape(text) + `</w:t></w:r>`)
	return sb.String()
}

// P returns a paragraph made of the given runs.
func P(runs ...string) string {
	return "<w:p>" + strings.Join(runs, "") + "</w:p>"
}

// PP returns a paragraph with the given inner pPr XML.
func PP(pPr string, runs ...string) string {
	return "<w:p><w:pPr>" + pPr + "</w:pPr>" + strings.Join(runs, "") + "</w:p>"
}

// Text returns a paragraph holding a single unformatted run.
func Text(s string) string {
	return P(R("", s))
}

// Table returns a table whose cells hold one unformatted paragraph each.
// An empty string produces an empty paragraph.
func Table(rows ...[]string) string {
	var sb strings.Builder
	sb.WriteString("<w:tbl>")
	for _, row := range rows {
		sb.WriteString("<w:tr>")
		for _, cell := range row {
			sb.WriteString("<w:tc>")
			if cell == "" {
				sb.WriteString("<w:p/>")
			} else {
				sb.WriteString(Text(cell))
			}
			sb.WriteString("</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// PNG returns an encoded solid-colour PNG of the given size.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a PNG of the given size into dir and returns its path.
func WritePNG(t testing.TB, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, PNG(t, w, h), 0o644); err != nil {
		t.Fatalf("writing image: %v", err)
	}
	return path
}
