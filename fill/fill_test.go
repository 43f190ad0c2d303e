package fill

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/filter"
	"github.com/tsawler/tenderfill/internal/testdocx"
	"github.com/tsawler/tenderfill/placeholder"
	"github.com/tsawler/tenderfill/render"
)

const (
	company = "智慧足迹数据科技有限公司"
	iu      = `<w:i/><w:u w:val="single"/>`
)

var profileValues = map[string]string{
	"company_name":   company,
	"phone":          "010-12345678",
	"fax":            "010-87654321",
	"email":          "x@y.com",
	"address":        "北京市朝阳区",
	"project_number": "64525343",
}

func openDoc(t *testing.T, opts testdocx.Options) *docx.Package {
	t.Helper()
	pkg, err := docx.Open(testdocx.Build(t, opts))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { pkg.Close() })
	return pkg
}

func run(t *testing.T, pkg *docx.Package, cfg *config.Config, opts render.Options, values map[string]string) (*render.Context, error) {
	t.Helper()
	rc := render.New(context.Background(), cfg, nil, opts)
	d, err := New(rc, values)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rc, d.Fill(Parts(rc, pkg))
}

func texts(pkg *docx.Package) []string {
	var out []string
	for _, p := range pkg.Document().Paragraphs() {
		out = append(out, p.Text())
	}
	return out
}

func TestFill_Paragraphs(t *testing.T) {
	tests := []struct {
		name       string
		runs       []string
		want       string
		wantFilled int
		wantSkip   string
	}{
		{
			name:       "bracketed hint",
			runs:       []string{testdocx.R("<w:b/>", "（供应商名称）")},
			want:       "（" + company + "）",
			wantFilled: 1,
		},
		{
			name:       "long blank before seal suffix",
			runs:       []string{testdocx.R("", "供应商名称："+strings.Repeat(" ", 32)+"（加盖公章）")},
			want:       "供应商名称：" + company + strings.Repeat(" ", 8) + "（加盖公章）",
			wantFilled: 1,
		},
		{
			name:       "two fields in one row",
			runs:       []string{testdocx.R("", "电话"+strings.Repeat(" ", 20)+"电子邮箱")},
			want:       "电话：010-12345678" + strings.Repeat(" ", 6) + "电子邮箱：x@y.com",
			wantFilled: 1,
		},
		{
			name:       "two underlined blanks right to left",
			runs:       []string{testdocx.R("", "电话：______传真：______")},
			want:       "电话：010-12345678  传真：010-87654321",
			wantFilled: 2,
		},
		{
			name:       "empty after colon",
			runs:       []string{testdocx.R("<w:b/>", "地址"), testdocx.R("", "：")},
			want:       "地址：北京市朝阳区",
			wantFilled: 1,
		},
		{
			name:     "procurer context",
			runs:     []string{testdocx.R("", "采购人地址：中信大厦1204室")},
			want:     "采购人地址：中信大厦1204室",
			wantSkip: filter.RuleProcurer,
		},
		{
			name:     "signature slot",
			runs:     []string{testdocx.R("", "法定代表人签字：________")},
			want:     "法定代表人签字：________",
			wantSkip: filter.RuleSignature,
		},
		{
			name:     "already filled",
			runs:     []string{testdocx.R("", "供应商名称："+company)},
			want:     "供应商名称：" + company,
			wantSkip: filter.RuleIdempotent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := openDoc(t, testdocx.Options{Body: testdocx.P(tt.runs...)})
			rc, err := run(t, pkg, nil, render.Options{}, profileValues)
			if err != nil {
				t.Fatalf("Fill: %v", err)
			}
			if got := texts(pkg)[0]; got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			if rc.Stats.MatchesFilled != tt.wantFilled {
				t.Errorf("filled = %d, want %d", rc.Stats.MatchesFilled, tt.wantFilled)
			}
			if tt.wantSkip != "" && rc.Stats.MatchesSkipped[tt.wantSkip] != 1 {
				t.Errorf("skipped = %v, want one %s", rc.Stats.MatchesSkipped, tt.wantSkip)
			}
			if rc.Stats.ParagraphsVisited != 1 {
				t.Errorf("visited = %d, want 1", rc.Stats.ParagraphsVisited)
			}
		})
	}
}

func TestFill_TwoFieldKeepsColumn(t *testing.T) {
	pkg := openDoc(t, testdocx.Options{Body: testdocx.Text("电话" + strings.Repeat(" ", 20) + "电子邮箱")})
	rc, err := run(t, pkg, nil, render.Options{}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	p := pkg.Document().Paragraphs()[0]
	text := p.Text()
	col := placeholder.Width(text[:strings.Index(text, "电子邮箱")], 4)
	if col != 24 {
		t.Errorf("second label at column %d, want 24", col)
	}
	if !rc.Aligned(p) || !rc.Edited(p) {
		t.Error("two-field row should be marked aligned and edited")
	}
	if rc.Stats.MatchesFound != 1 {
		t.Errorf("found = %d, want 1; re-visits must not recount", rc.Stats.MatchesFound)
	}
}

func TestFill_CrossRunBrackets(t *testing.T) {
	body := testdocx.P(
		testdocx.R("", "根据……公告"),
		testdocx.R(iu, "（"),
		testdocx.R(iu, "采购编号"),
		testdocx.R(iu, "）"),
		testdocx.R("", "，签字代表"),
		testdocx.R("", "（"),
		testdocx.R("", "姓名、职务"),
		testdocx.R("", "）……"),
	)
	pkg := openDoc(t, testdocx.Options{Body: body})
	rc, err := run(t, pkg, nil, render.Options{}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	p := pkg.Document().Paragraphs()[0]
	if got, want := p.Text(), "根据……公告（64525343），签字代表（姓名、职务）……"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	runs := p.Runs()
	if len(runs) != 8 {
		t.Fatalf("run count = %d, want 8", len(runs))
	}
	if runs[2].Text() != "64525343" || !runs[2].Format().Italic || runs[2].Format().Underline != "single" {
		t.Errorf("value run = %q %+v, want italic underlined digits", runs[2].Text(), runs[2].Format())
	}
	if rc.Stats.MatchesSkipped[filter.RuleMissing] != 1 {
		t.Errorf("skipped = %v, want the combined bracket as missing", rc.Stats.MatchesSkipped)
	}
	if len(rc.Stats.Warnings) != 2 {
		t.Errorf("warnings = %v, want one per missing key", rc.Stats.Warnings)
	}
}

func TestFill_Idempotent(t *testing.T) {
	body := testdocx.Text("（供应商名称）") +
		testdocx.Text("电话"+strings.Repeat(" ", 20)+"电子邮箱") +
		testdocx.Text("传真：________")
	pkg := openDoc(t, testdocx.Options{Body: body})
	first, err := run(t, pkg, nil, render.Options{}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	if first.Stats.MatchesFilled != 3 {
		t.Fatalf("first pass filled %d, want 3", first.Stats.MatchesFilled)
	}
	before := texts(pkg)

	second, err := run(t, pkg, nil, render.Options{}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	if second.Stats.MatchesFilled != 0 {
		t.Errorf("second pass filled %d, want 0", second.Stats.MatchesFilled)
	}
	after := texts(pkg)
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("paragraph %d changed on second pass: %q -> %q", i, before[i], after[i])
		}
	}
}

func TestFill_Tables(t *testing.T) {
	body := testdocx.Table(
		[]string{"供应商名称", ""},
		[]string{"备注", "电话：______"},
	)
	pkg := openDoc(t, testdocx.Options{Body: body})
	rc, err := run(t, pkg, nil, render.Options{}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	got := texts(pkg)
	want := []string{"供应商名称", company, "备注", "电话：010-12345678"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("cells = %q, want %q", got, want)
	}
	// The pair cells belong to the table pass; the other two are walked.
	if rc.Stats.ParagraphsVisited != 2 || rc.Stats.MatchesFilled != 2 {
		t.Errorf("stats = %+v", rc.Stats)
	}
}

func TestFill_TableCellPlaceholders(t *testing.T) {
	body := testdocx.Table(
		[]string{"日期", "____年____月____日"},
		[]string{"供应商名称", "________（盖章）"},
	)
	pkg := openDoc(t, testdocx.Options{Body: body})
	values := map[string]string{"company_name": company, "bid_date": "2024年05月06日"}
	rc, err := run(t, pkg, nil, render.Options{}, values)
	if err != nil {
		t.Fatal(err)
	}
	got := texts(pkg)
	want := []string{"日期", "2024年05月06日", "供应商名称", company + "（盖章）"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("cells = %q, want %q", got, want)
	}
	if rc.Stats.ParagraphsVisited != 1 || rc.Stats.MatchesFilled != 2 {
		t.Errorf("stats = %+v", rc.Stats)
	}
}

func TestFill_Scopes(t *testing.T) {
	body := testdocx.Text("法定代表人身份证明") +
		testdocx.Text("姓名：________") +
		testdocx.Table([]string{"职务", ""}) +
		testdocx.Text("授权委托书") +
		testdocx.Text("姓名：________") +
		testdocx.Table([]string{"职务", ""})
	pkg := openDoc(t, testdocx.Options{Body: body})
	values := map[string]string{
		"legal_representative":               "张三",
		"authorized_representative":          "李四",
		"authorized_representative.position": "项目经理",
	}
	rc, err := run(t, pkg, nil, render.Options{}, values)
	if err != nil {
		t.Fatal(err)
	}
	got := texts(pkg)
	want := []string{"法定代表人身份证明", "姓名：张三", "职务", "", "授权委托书", "姓名：李四", "职务", "项目经理"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("paragraphs = %q, want %q", got, want)
	}
	// The legal representative's position is not in the profile.
	if len(rc.Stats.Warnings) != 1 || rc.Stats.Warnings[0].Key != "authorized_representative.position" {
		t.Errorf("warnings = %v", rc.Stats.Warnings)
	}
}

func TestFill_HeadersFooters(t *testing.T) {
	opts := testdocx.Options{
		Body:    testdocx.Text("正文"),
		Headers: map[string]string{"header1.xml": testdocx.Text("（供应商名称）")},
		Footers: map[string]string{"footer1.xml": testdocx.Text("电话：______")},
	}
	tests := []struct {
		name    string
		enabled bool
		filled  int
	}{
		{"enabled", true, 2},
		{"disabled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Parts.FillHeadersFooters = tt.enabled
			pkg := openDoc(t, opts)
			rc, err := run(t, pkg, cfg, render.Options{}, profileValues)
			if err != nil {
				t.Fatal(err)
			}
			if rc.Stats.MatchesFilled != tt.filled {
				t.Errorf("filled = %d, want %d", rc.Stats.MatchesFilled, tt.filled)
			}
			headers, _ := pkg.Headers()
			got := headers[0].Paragraphs()[0].Text()
			if tt.enabled && got != "（"+company+"）" {
				t.Errorf("header = %q", got)
			}
			if !tt.enabled && got != "（供应商名称）" {
				t.Errorf("header changed while disabled: %q", got)
			}
		})
	}
}

func TestFill_StrictMissing(t *testing.T) {
	pkg := openDoc(t, testdocx.Options{Body: testdocx.Text("传真：________")})
	_, err := run(t, pkg, nil, render.Options{StrictMissing: true}, map[string]string{})
	var mf *render.MissingFieldError
	if !errors.As(err, &mf) || mf.Key != "fax" {
		t.Fatalf("error = %v, want MissingFieldError for fax", err)
	}
}

func TestFill_MissingWarns(t *testing.T) {
	pkg := openDoc(t, testdocx.Options{Body: testdocx.Text("传真：________")})
	rc, err := run(t, pkg, nil, render.Options{}, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Stats.MatchesSkipped[filter.RuleMissing] != 1 {
		t.Errorf("skipped = %v", rc.Stats.MatchesSkipped)
	}
	if len(rc.Stats.Warnings) != 1 || rc.Stats.Warnings[0].Kind != render.WarnMissingField {
		t.Errorf("warnings = %v", rc.Stats.Warnings)
	}
	if got := texts(pkg)[0]; got != "传真：________" {
		t.Errorf("text changed: %q", got)
	}
}

func TestFill_Deadline(t *testing.T) {
	pkg := openDoc(t, testdocx.Options{Body: testdocx.Text("（供应商名称）")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := render.New(ctx, nil, nil, render.Options{})
	d, err := New(rc, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Fill(Parts(rc, pkg))
	if !render.IsDeadline(err) {
		t.Fatalf("error = %v, want a deadline error", err)
	}
	if got := texts(pkg)[0]; got != "（供应商名称）" {
		t.Errorf("paragraph edited after the deadline: %q", got)
	}
}

func TestFill_DryRunTrace(t *testing.T) {
	body := testdocx.Text("（供应商名称）") + testdocx.Text("采购人地址：中信大厦1204室")
	pkg := openDoc(t, testdocx.Options{Body: body})
	rc, err := run(t, pkg, nil, render.Options{DryRun: true, Trace: true}, profileValues)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(pkg)[0]; got != "（供应商名称）" {
		t.Errorf("dry run edited the document: %q", got)
	}
	events := rc.Events()
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	if events[0].Action != "fill" || events[0].Pattern != "bracket_hint" || events[0].Part != "word/document.xml" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Action != "skip" || events[1].Rule != filter.RuleProcurer {
		t.Errorf("second event = %+v", events[1])
	}
	if rc.Stats.MatchesFilled != 1 {
		t.Errorf("filled = %d, want 1", rc.Stats.MatchesFilled)
	}
}
