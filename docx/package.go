// Package docx provides an editable model of DOCX (Office Open XML) packages.
//
// Document, header and footer parts are held as XML trees so that text can be
// rewritten run by run while every element the engine does not touch is
// written back unchanged. Zip entries that are never modified are copied
// byte for byte.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	contentTypesPart = "[Content_Types].xml"
	mainDocumentPart = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	stylesPart       = "word/styles.xml"
)

// Package is an opened .docx file.
type Package struct {
	path   string
	zr     *zip.ReadCloser
	files  map[string]*zip.File
	order  []string
	parts  map[string]*Part
	media  []mediaFile
	styles *StyleResolver

	nextDocPrID int
}

type mediaFile struct {
	name string
	data []byte
}

// Open opens a DOCX file for editing. The returned package keeps the file open
// until Close is called.
func Open(filename string) (*Package, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, &TemplateError{Path: filename, Detail: "not a zip package", Err: err}
	}

	pkg := &Package{
		path:  filename,
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
		parts: make(map[string]*Part),
	}
	for _, f := range zr.File {
		if _, dup := pkg.files[f.Name]; dup {
			continue
		}
		pkg.files[f.Name] = f
		pkg.order = append(pkg.order, f.Name)
	}

	if err := pkg.validate(); err != nil {
		zr.Close()
		return nil, &TemplateError{Path: filename, Detail: err.Error()}
	}

	if _, err := pkg.Part(mainDocumentPart); err != nil {
		zr.Close()
		return nil, &TemplateError{Path: filename, Detail: "unreadable main document", Err: err}
	}
	if pkg.Document().Body() == nil {
		zr.Close()
		return nil, &TemplateError{Path: filename, Detail: "main document has no body"}
	}

	pkg.parseStyles()
	pkg.nextDocPrID = pkg.maxDocPrID() + 1

	return pkg, nil
}

// Close releases resources associated with the package.
func (pkg *Package) Close() error {
	if pkg.zr != nil {
		err := pkg.zr.Close()
		pkg.zr = nil
		return err
	}
	return nil
}

// Path returns the file the package was opened from.
func (pkg *Package) Path() string {
	return pkg.path
}

// validate checks that required DOCX files exist.
func (pkg *Package) validate() error {
	required := []string{
		contentTypesPart,
		mainDocumentPart,
	}

	for _, name := range required {
		if _, ok := pkg.files[name]; !ok {
			return fmt.Errorf("missing required file: %s", name)
		}
	}

	return nil
}

// getFileContent reads the content of a file from the ZIP archive.
func (pkg *Package) getFileContent(name string) ([]byte, error) {
	f, ok := pkg.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Has reports whether the package contains an entry with the given name.
func (pkg *Package) Has(name string) bool {
	if _, ok := pkg.files[name]; ok {
		return true
	}
	_, ok := pkg.parts[name]
	return ok
}

// Part returns the named XML part, parsing it on first access.
func (pkg *Package) Part(name string) (*Part, error) {
	if p, ok := pkg.parts[name]; ok {
		return p, nil
	}
	data, err := pkg.getFileContent(name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parsing %s: no root element", name)
	}
	p := &Part{Name: name, doc: doc, pkg: pkg}
	pkg.parts[name] = p
	return p, nil
}

// newPart registers an XML part that did not exist in the source package.
func (pkg *Package) newPart(name string, root *etree.Element) *Part {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	doc.SetRoot(root)
	p := &Part{Name: name, doc: doc, pkg: pkg, dirty: true, added: true}
	pkg.parts[name] = p
	return p
}

// Document returns the main document part.
func (pkg *Package) Document() *Part {
	return pkg.parts[mainDocumentPart]
}

// Headers returns the header parts in name order. Unparseable headers are
// reported through the error, the rest are still returned.
func (pkg *Package) Headers() ([]*Part, error) {
	return pkg.partsWithPrefix("word/header")
}

// Footers returns the footer parts in name order.
func (pkg *Package) Footers() ([]*Part, error) {
	return pkg.partsWithPrefix("word/footer")
}

func (pkg *Package) partsWithPrefix(prefix string) ([]*Part, error) {
	var names []string
	for _, name := range pkg.order {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".xml") && !strings.Contains(name[len(prefix):], "/") {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	var parts []*Part
	var firstErr error
	for _, name := range names {
		p, err := pkg.Part(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		parts = append(parts, p)
	}
	return parts, firstErr
}

// Styles returns the style resolver of the package. It is never nil.
func (pkg *Package) Styles() *StyleResolver {
	if pkg.styles == nil {
		pkg.styles = NewStyleResolver(nil)
	}
	return pkg.styles
}

// parseStyles parses the styles definition file. Styles are optional.
func (pkg *Package) parseStyles() {
	data, err := pkg.getFileContent(stylesPart)
	if err != nil {
		pkg.styles = NewStyleResolver(nil)
		return
	}
	styles := &stylesXML{}
	if err := xml.Unmarshal(data, styles); err != nil {
		pkg.styles = NewStyleResolver(nil)
		return
	}
	pkg.styles = NewStyleResolver(styles)
}

// HasStyle reports whether the styles part defines the given style id.
func (pkg *Package) HasStyle(id string) bool {
	_, ok := pkg.Styles().styles[id]
	return ok
}

// Save writes the package to path atomically: the content goes to a
// temporary file in the destination directory which is then renamed over
// path. On failure the temporary file is removed and path is untouched.
func (pkg *Package) Save(path string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tenderfill-*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = pkg.Write(tmp); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Write serialises the package as a zip stream. Entries that were not
// modified are copied without recompression.
func (pkg *Package) Write(w io.Writer) error {
	if pkg.zr == nil {
		return fmt.Errorf("package is closed")
	}
	zw := zip.NewWriter(w)

	for _, name := range pkg.order {
		f := pkg.files[name]
		if p, ok := pkg.parts[name]; ok && p.dirty {
			if err := writePart(zw, p, f.Method, f.Modified); err != nil {
				return err
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copying %s: %w", name, err)
		}
	}

	var added []*Part
	for _, p := range pkg.parts {
		if p.added {
			added = append(added, p)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Name < added[j].Name })
	for _, p := range added {
		if err := writePart(zw, p, zip.Deflate, pkg.files[mainDocumentPart].Modified); err != nil {
			return err
		}
	}

	for _, m := range pkg.media {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     m.name,
			Method:   zip.Deflate,
			Modified: pkg.files[mainDocumentPart].Modified,
		})
		if err != nil {
			return fmt.Errorf("creating %s: %w", m.name, err)
		}
		if _, err := fw.Write(m.data); err != nil {
			return fmt.Errorf("writing %s: %w", m.name, err)
		}
	}

	return zw.Close()
}

func writePart(zw *zip.Writer, p *Part, method uint16, modified time.Time) error {
	data, err := p.doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialising %s: %w", p.Name, err)
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     p.Name,
		Method:   method,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", p.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", p.Name, err)
	}
	return nil
}
