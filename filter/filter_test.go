package filter

import (
	"reflect"
	"testing"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/placeholder"
)

type fakePara struct {
	heading, centered, toc bool
}

func (p fakePara) IsHeading() bool  { return p.heading }
func (p fakePara) IsCentered() bool { return p.centered }
func (p fakePara) InTOC() bool      { return p.toc }

const company = "智慧足迹数据科技有限公司"

func TestEvaluate(t *testing.T) {
	cfg := config.Default()
	cat, err := placeholder.Compile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f := New(cfg)

	full := map[string]string{
		"company_name":              company,
		"address":                   "北京市朝阳区",
		"phone":                     "010-12345678",
		"legal_representative":      "张三",
		"authorized_representative": "李四",
		"project_name":              "数据平台采购",
	}

	tests := []struct {
		name   string
		text   string
		para   Paragraph
		values map[string]string
		rule   string
		detail string
	}{
		{"procurer address", "采购人地址：中信大厦1204室", nil, full, RuleProcurer, "采购人"},
		{"procurer earlier on the line", "招标人：某某单位  供应商名称：________", nil, full, RuleProcurer, "招标人"},
		{"procurer token inside label", "委托代理人：________", nil, full, "", ""},
		{"甲方 before label", "甲方地址：________", nil, full, RuleProcurer, "甲方"},
		{"signature suffix", "法定代表人签字：________", nil, full, RuleSignature, ""},
		{"signature qualifier", "法定代表人（签字）：________", nil, full, RuleSignature, ""},
		{"signature note after blank", "法定代表人：________（签字）", nil, full, RuleSignature, ""},
		{"seal note is not a signature", "供应商名称：________（盖章）", nil, full, "", ""},
		{"already filled", "供应商名称：" + company, nil, full, RuleIdempotent, ""},
		{"centered", "（供应商名称）", fakePara{centered: true}, full, RuleStyle, "centered"},
		{"heading", "（供应商名称）", fakePara{heading: true}, full, RuleStyle, "heading"},
		{"toc", "（供应商名称）", fakePara{toc: true}, full, RuleStyle, "toc"},
		{"prefilled with other text", "供应商名称：旧公司", nil, full, RulePrefilled, ""},
		{"missing", "（供应商名称）", fakePara{}, map[string]string{}, RuleMissing, ""},
		{"combined partly missing", "（项目名称、项目编号）", nil, full, RuleMissing, ""},
		{"two field partly missing", "电话          电子邮箱", nil, full, "", ""},
		{"fill", "（供应商名称）", fakePara{}, full, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, _ := cat.Match(tt.text)
			if len(ms) != 1 {
				t.Fatalf("Match(%q) = %d matches", tt.text, len(ms))
			}
			d := f.Evaluate(tt.para, tt.text, ms[0], tt.values)
			if d.Rule != tt.rule || d.Skip != (tt.rule != "") {
				t.Fatalf("Evaluate = %+v, want rule %q", d, tt.rule)
			}
			if tt.detail != "" && d.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", d.Detail, tt.detail)
			}
		})
	}
}

func TestEvaluate_ProcurerLine(t *testing.T) {
	cfg := config.Default()
	cat, err := placeholder.Compile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f := New(cfg)
	values := map[string]string{"company_name": company, "authorized_representative": "李四"}

	tests := []struct {
		name  string
		text  string
		label string
		rule  string
	}{
		{"token before label", "致：采购人名称    我方供应商名称：________", "供应商名称", RuleProcurer},
		{"token after label", "供应商名称：________  采购人：某某局", "供应商名称", RuleProcurer},
		{"token on previous line", "采购人：某某局\n供应商名称：________", "供应商名称", ""},
		{"supplier label holding a token", "供应商名称：________  委托代理人：________", "供应商名称", ""},
		{"supplier label itself", "供应商名称：________  委托代理人：________", "委托代理人", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := cat.Find(tt.text)
			var found bool
			for _, m := range ms {
				if m.Label != tt.label {
					continue
				}
				found = true
				if d := f.Evaluate(nil, tt.text, m, values); d.Rule != tt.rule {
					t.Errorf("Evaluate(%s) = %+v, want rule %q", m.Label, d, tt.rule)
				}
			}
			if !found {
				t.Fatalf("no match labelled %s in %q: %+v", tt.label, tt.text, ms)
			}
		})
	}
}

func TestEvaluate_MissingKeys(t *testing.T) {
	cfg := config.Default()
	cat, _ := placeholder.Compile(cfg)
	ms, _ := cat.Match("（项目名称、项目编号）")
	d := New(cfg).Evaluate(nil, "（项目名称、项目编号）", ms[0], map[string]string{"project_name": "x"})
	if !reflect.DeepEqual(d.Missing, []string{"project_number"}) {
		t.Errorf("Missing = %v", d.Missing)
	}
}

func TestEvaluate_OverwritePrefilled(t *testing.T) {
	cfg := config.Default()
	cfg.Patterns.OverwritePrefilled = true
	cat, _ := placeholder.Compile(cfg)
	text := "供应商名称：旧公司"
	ms, _ := cat.Match(text)
	d := New(cfg).Evaluate(nil, text, ms[0], map[string]string{"company_name": company})
	if d.Skip {
		t.Errorf("prefilled text should be overwritten, got %+v", d)
	}
}

func TestEvaluate_StyleRulesDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Context.SkipCentered = false
	cat, _ := placeholder.Compile(cfg)
	ms, _ := cat.Match("（供应商名称）")
	d := New(cfg).Evaluate(fakePara{centered: true}, "（供应商名称）", ms[0], map[string]string{"company_name": company})
	if d.Skip {
		t.Errorf("centred paragraphs should be filled when skip_centered is off: %+v", d)
	}
}

func TestClauseStart(t *testing.T) {
	tests := []struct {
		text string
		pos  int
		want int
	}{
		{"采购人地址", 3, 0},
		{"甲方。地址", 3, 3},
		{"甲方\t地址", 3, 3},
		{"甲方  地址", 4, 4},
		{"甲方 地址", 3, 0},
	}
	for _, tt := range tests {
		if got := clauseStart([]rune(tt.text), tt.pos); got != tt.want {
			t.Errorf("clauseStart(%q, %d) = %d, want %d", tt.text, tt.pos, got, tt.want)
		}
	}
}

func TestEvaluateCell(t *testing.T) {
	f := New(config.Default())
	values := map[string]string{"company_name": company, "legal_representative": "张三"}

	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"fill", Cell{Label: "供应商名称", Key: "company_name", Fillable: true}, ""},
		{"procurer", Cell{Label: "采购人名称", Key: "company_name", Fillable: true}, RuleProcurer},
		{"signature", Cell{Label: "法定代表人签字", Key: "legal_representative", Fillable: true}, RuleSignature},
		{"already filled", Cell{Label: "供应商名称", Target: company, Key: "company_name"}, RuleIdempotent},
		{"other text", Cell{Label: "供应商名称", Target: "某公司", Key: "company_name"}, RulePrefilled},
		{"missing", Cell{Label: "传真", Key: "fax", Fillable: true}, RuleMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.EvaluateCell(tt.cell, values)
			if d.Rule != tt.want || d.Skip != (tt.want != "") {
				t.Errorf("EvaluateCell() = %+v, want rule %q", d, tt.want)
			}
		})
	}

	cfg := config.Default()
	cfg.Patterns.OverwritePrefilled = true
	d := New(cfg).EvaluateCell(Cell{Label: "供应商名称", Target: "某公司", Key: "company_name"}, values)
	if d.Skip {
		t.Errorf("overwrite enabled: %+v", d)
	}
}

func TestProcurerContext(t *testing.T) {
	f := New(config.Default())
	tests := []struct {
		text string
		pos  int
		want string
	}{
		{"采购人（盖章）", 3, "采购人"},
		{"供应商（盖章）", 3, ""},
		{"甲方：某单位。供应商（盖章）", 10, ""},
		{"委托代理人（盖章）", 5, ""},
	}
	for _, tt := range tests {
		if got := f.ProcurerContext(tt.text, tt.pos); got != tt.want {
			t.Errorf("ProcurerContext(%q, %d) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}
