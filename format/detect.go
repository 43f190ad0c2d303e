// Package format identifies template and data files before they are opened.
//
// Templates must be Office Open XML packages. Compound File Binary (OLE2)
// containers are inspected further so that legacy .doc files and
// password-protected documents can be reported precisely.
package format

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
)

// Format represents a recognised file format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// DOCX indicates a WordprocessingML package (.docx, .dotx, .docm).
	DOCX
	// XLSX indicates a SpreadsheetML package.
	XLSX
	// DOC indicates a legacy binary Word document.
	DOC
	// Encrypted indicates a password-protected Office document.
	Encrypted
	// PDF indicates a PDF document.
	PDF
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case DOCX:
		return "DOCX"
	case XLSX:
		return "XLSX"
	case DOC:
		return "DOC"
	case Encrypted:
		return "Encrypted"
	case PDF:
		return "PDF"
	default:
		return "Unknown"
	}
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx", ".dotx", ".docm":
		return DOCX
	case ".xlsx", ".xlsm":
		return XLSX
	case ".doc", ".dot", ".wps":
		return DOC
	case ".pdf":
		return PDF
	default:
		return Unknown
	}
}

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	pdfMagic = []byte("%PDF")
)

// Info describes the content of an inspected file.
type Info struct {
	Format Format
	// Title is the document title found in the OLE property set of a
	// legacy document, if any.
	Title string
	// Streams lists the top-level stream names of a CFB container.
	Streams []string
}

// DetectFile inspects the file at path.
func DetectFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return DetectFromReader(f, st.Size())
}

// DetectFromReader inspects content to determine the format. ZIP archives are
// told apart by their part names, CFB containers by their streams.
func DetectFromReader(r io.ReaderAt, size int64) (*Info, error) {
	magic := make([]byte, 8)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	magic = magic[:n]

	switch {
	case bytes.HasPrefix(magic, zipMagic):
		f, err := detectZIPFormat(r, size)
		if err != nil {
			return nil, err
		}
		return &Info{Format: f}, nil
	case bytes.HasPrefix(magic, cfbMagic):
		return detectCFB(r)
	case bytes.HasPrefix(magic, pdfMagic):
		return &Info{Format: PDF}, nil
	}
	return &Info{Format: Unknown}, nil
}

// detectZIPFormat inspects a ZIP archive to tell DOCX from XLSX.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}

	hasContentTypes := false
	found := Unknown
	for _, f := range zr.File {
		switch {
		case f.Name == "[Content_Types].xml":
			hasContentTypes = true
		case f.Name == "word/document.xml":
			found = DOCX
		case strings.HasPrefix(f.Name, "xl/") && found == Unknown:
			found = XLSX
		}
	}
	if !hasContentTypes {
		return Unknown, nil
	}
	return found, nil
}

// detectCFB walks the directory of a Compound File Binary container.
func detectCFB(r io.ReaderAt) (*Info, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("reading compound file: %w", err)
	}

	info := &Info{Format: Unknown}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) == 0 {
			info.Streams = append(info.Streams, entry.Name)
		}
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			info.Format = Encrypted
		case "WordDocument":
			if info.Format == Unknown {
				info.Format = DOC
			}
		}
		if msoleps.IsMSOLEPS(entry.Initial) && info.Title == "" {
			info.Title = propertyTitle(entry)
		}
	}
	return info, nil
}

// propertyTitle reads the Title property from an OLE property set stream.
func propertyTitle(stream io.Reader) string {
	props := msoleps.New()
	if err := props.Reset(stream); err != nil {
		return ""
	}
	for _, p := range props.Property {
		if p.Name == "Title" {
			return strings.TrimSpace(p.String())
		}
	}
	return ""
}

// Describe returns a human readable reason why info is not an acceptable
// template, or "" when it is.
func (info *Info) Describe() string {
	switch info.Format {
	case DOCX:
		return ""
	case DOC:
		if info.Title != "" {
			return fmt.Sprintf("legacy .doc format (%s); save it as .docx first", info.Title)
		}
		return "legacy .doc format; save it as .docx first"
	case Encrypted:
		return "password protected document"
	case XLSX:
		return "spreadsheet, not a word processing document"
	case PDF:
		return "PDF, not a word processing document"
	default:
		return "not a .docx package"
	}
}
