package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/tenderfill/internal/testdocx"
)

func openFixture(t *testing.T, opts testdocx.Options) *Package {
	t.Helper()
	pkg, err := Open(testdocx.Build(t, opts))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { pkg.Close() })
	return pkg
}

func zipEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer zr.Close()
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = data
	}
	return out
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.docx")
	os.WriteFile(notZip, []byte("plain text"), 0o644)

	noDoc := filepath.Join(dir, "nodoc.docx")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("[Content_Types].xml")
	w.Write([]byte("<Types/>"))
	zw.Close()
	os.WriteFile(noDoc, buf.Bytes(), 0o644)

	badXML := testdocx.Build(t, testdocx.Options{Body: "<w:p>"})

	tests := []struct {
		name string
		path string
	}{
		{"not a zip", notZip},
		{"missing document", noDoc},
		{"malformed xml", badXML},
		{"missing file", filepath.Join(dir, "absent.docx")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			var te *TemplateError
			if !errors.As(err, &te) {
				t.Fatalf("Open error = %v, want *TemplateError", err)
			}
			if te.Path != tt.path {
				t.Errorf("Path = %q, want %q", te.Path, tt.path)
			}
		})
	}
}

func TestPackage_HeadersFooters(t *testing.T) {
	pkg := openFixture(t, testdocx.Options{
		Body:    testdocx.Text("正文"),
		Headers: map[string]string{"header2.xml": testdocx.Text("页眉2"), "header10.xml": testdocx.Text("页眉10"), "header1.xml": testdocx.Text("页眉1")},
		Footers: map[string]string{"footer1.xml": testdocx.Text("页脚")},
	})

	headers, err := pkg.Headers()
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	var names []string
	for _, h := range headers {
		names = append(names, h.Name)
	}
	want := "word/header1.xml,word/header2.xml,word/header10.xml"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("headers = %s, want %s", got, want)
	}
	if got := headers[0].Paragraphs()[0].Text(); got != "页眉1" {
		t.Errorf("header text = %q", got)
	}

	footers, err := pkg.Footers()
	if err != nil || len(footers) != 1 {
		t.Fatalf("Footers = %v, %v", footers, err)
	}
}

func TestSave_CopiesUntouchedEntries(t *testing.T) {
	src := testdocx.Build(t, testdocx.Options{
		Body:    testdocx.Text("供应商名称："),
		Headers: map[string]string{"header1.xml": testdocx.Text("页眉")},
		Extra:   map[string][]byte{"word/media/logo.bin": []byte{0, 1, 2, 3}},
	})
	pkg, err := Open(src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pkg.Close()
	if _, err := pkg.Headers(); err != nil {
		t.Fatalf("Headers: %v", err)
	}

	p := pkg.Document().Paragraphs()[0]
	p.Runs()[0].SetText("供应商名称：智慧足迹")

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := pkg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	before := zipEntries(t, src)
	after := zipEntries(t, out)
	for name, data := range before {
		if name == "word/document.xml" {
			continue
		}
		if !bytes.Equal(after[name], data) {
			t.Errorf("entry %s changed", name)
		}
	}
	if !strings.Contains(string(after["word/document.xml"]), "供应商名称：智慧足迹") {
		t.Errorf("document.xml missing edit: %s", after["word/document.xml"])
	}
	if !strings.Contains(string(after["word/document.xml"]), `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`) {
		t.Error("namespace declaration lost")
	}
}

func TestSave_NoTempFileLeft(t *testing.T) {
	pkg := openFixture(t, testdocx.Options{Body: testdocx.Text("x")})
	dir := t.TempDir()
	out := filepath.Join(dir, "out.docx")
	if err := pkg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "out.docx" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only out.docx", names)
	}
}

func TestSave_WriteError(t *testing.T) {
	pkg := openFixture(t, testdocx.Options{Body: testdocx.Text("x")})
	out := filepath.Join(t.TempDir(), "missing", "out.docx")
	err := pkg.Save(out)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Save error = %v, want *WriteError", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output should not exist after failed save")
	}
}

func TestSave_ClosedPackage(t *testing.T) {
	pkg := openFixture(t, testdocx.Options{Body: testdocx.Text("x")})
	pkg.Close()
	dir := t.TempDir()
	err := pkg.Save(filepath.Join(dir, "out.docx"))
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Save error = %v, want *WriteError", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temporary file left behind: %d entries", len(entries))
	}
}
