package docx

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/tenderfill/internal/testdocx"
)

func TestAddImage(t *testing.T) {
	pkg := openFixture(t, testdocx.Options{Body: testdocx.Text("营业执照附件")})
	data := testdocx.PNG(t, 4, 2)

	id, err := pkg.AddImage(data, ".PNG")
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if id != "rId2" {
		t.Errorf("relationship id = %q, want rId2", id)
	}
	id2, err := pkg.AddImage(data, "jpg")
	if err != nil || id2 != "rId3" {
		t.Fatalf("second AddImage = %q, %v", id2, err)
	}
	if _, err := pkg.AddImage(data, "svg"); err == nil {
		t.Error("svg should be rejected")
	}

	run := pkg.NewPictureRun(Picture{RelID: id, WidthEMU: 2 * EMUPerInch, HeightEMU: EMUPerInch, Description: "营业执照"})
	p := pkg.Document().Paragraphs()[0]
	p.AppendElement(run)

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := pkg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries := zipEntries(t, out)

	if _, ok := entries["word/media/image1.png"]; !ok {
		t.Error("media part image1.png missing")
	}
	if _, ok := entries["word/media/image2.jpg"]; !ok {
		t.Error("media part image2.jpg missing")
	}
	ct := string(entries["[Content_Types].xml"])
	if !strings.Contains(ct, `Extension="png"`) || !strings.Contains(ct, `Extension="jpg"`) {
		t.Errorf("content types missing image defaults: %s", ct)
	}
	rels := string(entries["word/_rels/document.xml.rels"])
	if !strings.Contains(rels, `Target="media/image1.png"`) {
		t.Errorf("relationship missing: %s", rels)
	}
	doc := string(entries["word/document.xml"])
	for _, want := range []string{`r:embed="rId2"`, `cx="1828800"`, `descr="营业执照"`, `xmlns:wp=`} {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %s", want)
		}
	}
}

func TestAddImage_CreatesRelationshipsPart(t *testing.T) {
	data := testdocx.Bytes(t, testdocx.Options{Body: testdocx.Text("x")})
	path := filepath.Join(t.TempDir(), "norels.docx")
	writeWithout(t, data, path, "word/_rels/document.xml.rels")

	pkg, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pkg.Close()
	id, err := pkg.AddImage(testdocx.PNG(t, 1, 1), "png")
	if err != nil || id != "rId1" {
		t.Fatalf("AddImage = %q, %v", id, err)
	}
	out := filepath.Join(t.TempDir(), "out.docx")
	if err := pkg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rels := string(zipEntries(t, out)["word/_rels/document.xml.rels"]); !strings.Contains(rels, "media/image1.png") {
		t.Errorf("new relationships part = %s", rels)
	}
}
