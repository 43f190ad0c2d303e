package tenderfill

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ndocx "github.com/nguyenthenguyen/docx"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/filter"
	"github.com/tsawler/tenderfill/internal/testdocx"
	"github.com/tsawler/tenderfill/placeholder"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/render"
)

const company = "智慧足迹数据科技有限公司"

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	dir := t.TempDir()
	p := profile.New()
	p.Set("company_name", company)
	p.Set("phone", "010-12345678")
	p.Set("email", "x@y.com")
	p.Images[profile.LegalIDFront] = testdocx.WritePNG(t, dir, "front.png", 40, 25)
	p.Images[profile.LegalIDBack] = testdocx.WritePNG(t, dir, "back.png", 40, 25)
	p.Seals = []string{testdocx.WritePNG(t, dir, "seal.png", 30, 30)}
	return p
}

var testProject = &profile.Project{Name: "数据服务采购项目", Number: "64525343"}

// fixture covers every fill shape plus an ID card anchor.
func fixture(t *testing.T) string {
	t.Helper()
	iu := `<w:i/><w:u w:val="single"/>`
	body := testdocx.Text("（供应商名称）") +
		testdocx.P(
			testdocx.R("", "根据……公告"),
			testdocx.R(iu, "（"),
			testdocx.R(iu, "采购编号"),
			testdocx.R(iu, "）"),
			testdocx.R("", "，签字代表"),
			testdocx.R("", "（"),
			testdocx.R("", "姓名、职务"),
			testdocx.R("", "）……"),
		) +
		testdocx.Text("供应商名称："+strings.Repeat(" ", 32)+"（加盖公章）") +
		testdocx.Text("电话"+strings.Repeat(" ", 20)+"电子邮箱") +
		testdocx.Text("采购人地址：中信大厦1204室") +
		testdocx.Text("法定代表人身份证附件")
	return testdocx.Doc(t, body)
}

func paragraphs(t *testing.T, path string) []*docx.Paragraph {
	t.Helper()
	pkg, err := docx.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	t.Cleanup(func() { pkg.Close() })
	return pkg.Document().Paragraphs()
}

func texts(ps []*docx.Paragraph) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Text()
	}
	return out
}

func pictures(p *docx.Paragraph) []string {
	var names []string
	for _, el := range p.Element().FindElements(".//wp:docPr") {
		names = append(names, el.SelectAttrValue("name", ""))
	}
	return names
}

func TestRender(t *testing.T) {
	tmpl := fixture(t)
	before, err := os.ReadFile(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "out.docx")

	stats, err := Render(context.Background(), tmpl, out, testProfile(t), testProject, DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	ps := paragraphs(t, out)
	got := texts(ps)
	want := []string{
		"（" + company + "）",
		"根据……公告（64525343），签字代表（姓名、职务）……",
		"供应商名称：" + company + "  （加盖公章）",
		"电话：010-12345678" + strings.Repeat(" ", 6) + "电子邮箱：x@y.com",
		"采购人地址：中信大厦1204室",
		"法定代表人身份证",
		"",
		"",
	}
	if len(got) != len(want) {
		t.Fatalf("paragraphs = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}

	t.Run("run structure", func(t *testing.T) {
		if n := len(ps[0].Runs()); n != 1 {
			t.Errorf("bracket paragraph runs = %d, want 1", n)
		}
		runs := ps[1].Runs()
		if len(runs) != 8 {
			t.Fatalf("cross-run paragraph runs = %d, want 8", len(runs))
		}
		if f := runs[2].Format(); runs[2].Text() != "64525343" || !f.Italic || f.Underline != "single" {
			t.Errorf("value run = %q %+v", runs[2].Text(), f)
		}
	})

	t.Run("two-field column", func(t *testing.T) {
		text := ps[3].Text()
		if col := placeholder.Width(text[:strings.Index(text, "电子邮箱")], 4); col != 24 {
			t.Errorf("second label at column %d, want 24", col)
		}
	})

	t.Run("id card pair", func(t *testing.T) {
		if names := pictures(ps[6]); len(names) != 1 || names[0] != profile.LegalIDFront {
			t.Errorf("front = %v", names)
		}
		if names := pictures(ps[7]); len(names) != 1 || names[0] != profile.LegalIDBack {
			t.Errorf("back = %v", names)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		if stats.ParagraphsVisited < 6 {
			t.Errorf("visited = %d, want at least 6", stats.ParagraphsVisited)
		}
		if stats.MatchesFilled != 4 {
			t.Errorf("filled = %d, want 4", stats.MatchesFilled)
		}
		if stats.MatchesSkipped[filter.RuleProcurer] != 1 {
			t.Errorf("skipped = %v, want one procurer_context", stats.MatchesSkipped)
		}
		if stats.MatchesSkipped[filter.RuleMissing] != 1 {
			t.Errorf("skipped = %v, want one missing_value", stats.MatchesSkipped)
		}
		if stats.ImagesInserted != 2 {
			t.Errorf("images = %d, want 2", stats.ImagesInserted)
		}
		if stats.PostProcessEdits != 1 {
			t.Errorf("post-process edits = %d, want 1", stats.PostProcessEdits)
		}
	})

	t.Run("template untouched", func(t *testing.T) {
		after, err := os.ReadFile(tmpl)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(before, after) {
			t.Error("template was modified")
		}
	})

	t.Run("readable by other tools", func(t *testing.T) {
		r, err := ndocx.ReadDocxFile(out)
		if err != nil {
			t.Fatalf("ReadDocxFile: %v", err)
		}
		defer r.Close()
		content := r.Editable().GetContent()
		for _, s := range []string{company, "64525343", "x@y.com"} {
			if !strings.Contains(content, s) {
				t.Errorf("document.xml lacks %q", s)
			}
		}
	})
}

func TestRender_Idempotent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.docx")
	second := filepath.Join(dir, "second.docx")
	prof := testProfile(t)

	if _, err := Render(context.Background(), fixture(t), first, prof, testProject, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	stats, err := Render(context.Background(), first, second, prof, testProject, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if stats.MatchesFilled != 0 || stats.ImagesInserted != 0 || stats.PostProcessEdits != 0 {
		t.Errorf("second render changed the document: %s", stats)
	}
	a, b := texts(paragraphs(t, first)), texts(paragraphs(t, second))
	if strings.Join(a, "\n") != strings.Join(b, "\n") {
		t.Errorf("second render text = %q, want %q", b, a)
	}
}

func TestRender_StampSeals(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.docx")
	opts := DefaultOptions()
	opts.IncludeImages = false
	opts.StampSeals = true
	if _, err := Render(context.Background(), fixture(t), out, testProfile(t), testProject, opts); err != nil {
		t.Fatal(err)
	}
	ps := paragraphs(t, out)
	if len(ps) != 6 {
		t.Fatalf("paragraphs = %d, want 6 without images", len(ps))
	}
	if names := pictures(ps[2]); len(names) != 1 || names[0] != "seal" {
		t.Errorf("seal paragraph pictures = %v", names)
	}
	for i, p := range ps {
		if i != 2 && len(pictures(p)) > 0 {
			t.Errorf("paragraph %d has pictures %v", i, pictures(p))
		}
	}
}

func TestRender_StrictMissing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.docx")
	opts := DefaultOptions()
	opts.StrictMissing = true
	_, err := Render(context.Background(), fixture(t), out, testProfile(t), testProject, opts)
	var mf *render.MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("err = %v, want a MissingFieldError", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("a failed render must not leave output")
	}
}

func TestRender_TemplateErrors(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.docx")
	if err := os.WriteFile(plain, []byte("not a package"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		path string
	}{
		{"not a zip", plain},
		{"missing file", filepath.Join(dir, "nope.docx")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.name+".out.docx")
			_, err := Render(context.Background(), tt.path, out, nil, nil, DefaultOptions())
			var te *docx.TemplateError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want a TemplateError", err)
			}
			if te.Path != tt.path {
				t.Errorf("Path = %q, want %q", te.Path, tt.path)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Error("output written for a bad template")
			}
		})
	}
}

func TestRender_Deadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(t.TempDir(), "out.docx")
	_, err := Render(ctx, fixture(t), out, testProfile(t), testProject, DefaultOptions())
	if !render.IsDeadline(err) {
		t.Fatalf("err = %v, want a deadline error", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output written after the deadline")
	}
}

func TestInspect(t *testing.T) {
	tmpl := fixture(t)
	stats, events, err := Inspect(context.Background(), tmpl, testProfile(t), testProject, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if stats.MatchesFilled != 4 {
		t.Errorf("filled = %d, want 4", stats.MatchesFilled)
	}
	if stats.ImagesInserted != 0 {
		t.Errorf("a dry run inserted %d images", stats.ImagesInserted)
	}
	actions := map[string]int{}
	for _, e := range events {
		actions[e.Component+"/"+e.Action]++
	}
	if actions["fill/fill"] != 4 || actions["fill/skip"] < 2 {
		t.Errorf("events = %v", actions)
	}

	ps := paragraphs(t, tmpl)
	if got := ps[0].Text(); got != "（供应商名称）" {
		t.Errorf("template changed by Inspect: %q", got)
	}
}

func TestRenderer(t *testing.T) {
	dir := t.TempDir()
	profPath := filepath.Join(dir, "supplier.yaml")
	projPath := filepath.Join(dir, "project.yaml")
	if err := os.WriteFile(profPath, []byte("company_name: "+company+"\nphone: 010-12345678\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(projPath, []byte("project_number: \"64525343\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := Open(fixture(t)).ProfileFile(profPath).ProjectFile(projPath)
	strict := base.StrictMissing()
	if base.Options().StrictMissing {
		t.Error("StrictMissing modified the receiver")
	}
	if !strict.Options().StrictMissing {
		t.Error("StrictMissing not set on the new renderer")
	}

	out := filepath.Join(dir, "out.docx")
	stats, err := base.WithoutImages().RenderTo(context.Background(), out)
	if err != nil {
		t.Fatalf("RenderTo: %v", err)
	}
	ps := paragraphs(t, out)
	if ps[0].Text() != "（"+company+"）" {
		t.Errorf("first paragraph = %q", ps[0].Text())
	}
	if stats.ImagesInserted != 0 {
		t.Errorf("images = %d with images disabled", stats.ImagesInserted)
	}

	if _, err := Open(fixture(t)).ProfileFile(filepath.Join(dir, "nope.yaml")).RenderTo(context.Background(), out); err == nil {
		t.Error("expected an error for a missing profile file")
	}
}

func TestMust(t *testing.T) {
	if got := Must(42, nil); got != 42 {
		t.Errorf("Must = %d, want 42", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("Must did not panic on error")
		}
	}()
	Must(0, errors.New("boom"))
}
