package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	f, ok := cfg.Field("company_name")
	if !ok {
		t.Fatal("expected company_name field")
	}
	for _, want := range []string{"供应商名称", "公司名称", "投标人名称", "应答人名称", "供应商全称", "公司全称", "供应商名称（盖章）"} {
		found := false
		for _, l := range f.Labels {
			if l == want {
				found = true
			}
		}
		if !found {
			t.Errorf("company_name is missing label %q", want)
		}
	}

	if f, _ := cfg.Field("bid_date"); f.Format != FormatDate {
		t.Errorf("bid_date format = %q, want date", f.Format)
	}
	if f, _ := cfg.Field("phone"); f.Format != FormatText {
		t.Errorf("phone format = %q, want text default", f.Format)
	}

	prio := map[string]int{}
	for _, p := range cfg.Patterns.Catalogue {
		prio[p.ID] = p.Priority
	}
	wantPrio := map[string]int{
		"bracket_hint":            1,
		"bracket_combined":        1,
		"label_colon_underline":   2,
		"label_colon_empty":       2,
		"label_colon_long_blank":  2,
		"label_colon_short_blank": 3,
		"two_field":               3,
		"date_skeleton":           4,
		"seal_suffix":             5,
	}
	for id, want := range wantPrio {
		if prio[id] != want {
			t.Errorf("priority of %s = %d, want %d", id, prio[id], want)
		}
	}

	if cfg.Blanks.TwoFieldGapMin != 8 || cfg.Blanks.CollapseSpacesTo != 2 {
		t.Errorf("unexpected blanks %+v", cfg.Blanks)
	}
	if !cfg.Parts.FillHeadersFooters {
		t.Error("headers and footers should be filled by default")
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0].Fields["authorized_representative"] != "legal_representative" {
		t.Errorf("scopes = %+v", cfg.Scopes)
	}
	if cfg.Tables.MinConfidence != 0.6 {
		t.Errorf("min_confidence = %v", cfg.Tables.MinConfidence)
	}
}

func TestLabelIndex(t *testing.T) {
	idx := Default().LabelIndex()
	tests := []struct {
		label, want string
	}{
		{"供应商名称", "company_name"},
		{"供应商名称(盖章)", "company_name"},
		{"电子邮箱", "email"},
		{"e-mail", "email"},
		{"采购编号", "project_number"},
	}
	for _, tt := range tests {
		if got := idx[NormalizeLabel(tt.label)]; got != tt.want {
			t.Errorf("index[%q] = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  供应商名称 ", "供应商名称"},
		{"供应商名称（盖章）", "供应商名称(盖章)"},
		{"Ｅｍａｉｌ", "email"},
		{"地址：", "地址:"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	c := cfg.Clone()
	c.Fields[0].Labels[0] = "changed"
	c.Context.ProcurerTokens[0] = "changed"
	c.Images.Kinds[0].Markers[0] = "changed"

	if cfg.Fields[0].Labels[0] == "changed" || cfg.Context.ProcurerTokens[0] == "changed" || cfg.Images.Kinds[0].Markers[0] == "changed" {
		t.Error("Clone shares slices with the original")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no fields", func(c *Config) { c.Fields = nil }, "no fields"},
		{"empty key", func(c *Config) { c.Fields[0].Key = "" }, "empty key"},
		{"duplicate key", func(c *Config) { c.Fields[1].Key = c.Fields[0].Key }, "duplicate key"},
		{"shared label", func(c *Config) { c.Fields[1].Labels = append(c.Fields[1].Labels, "供应商名称") }, "used by both"},
		{"bad format", func(c *Config) { c.Fields[0].Format = "money" }, "unknown format"},
		{"bad shape", func(c *Config) { c.Patterns.Catalogue[0].Shape = "circle" }, "unknown shape"},
		{"bad priority", func(c *Config) { c.Patterns.Catalogue[0].Priority = 0 }, "priority"},
		{"duplicate pattern", func(c *Config) { c.Patterns.Catalogue[1].ID = c.Patterns.Catalogue[0].ID }, "duplicate pattern"},
		{"thresholds", func(c *Config) { c.Blanks.ShortBlankMax = 9 }, "short_blank_max"},
		{"confidence", func(c *Config) { c.Tables.MinConfidence = 2 }, "min_confidence"},
		{"date layout", func(c *Config) { c.Values.DateLayout = "" }, "date_layout"},
		{"scope without markers", func(c *Config) { c.Scopes[0].Markers = nil }, "markers and fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoader(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := NewLoader("").Load()
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if len(cfg.Fields) == 0 {
		t.Fatal("default config has no fields")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tenderfill.yaml")
	data := `
blanks:
  long_blank_min: 6
  short_blank_max: 3
  two_field_gap_min: 10
  min_padding: 2
  tab_width: 4
  collapse_spaces_to: 1
images:
  max_width_in: 5
  dpi: 96
  appendix_title: ${TF_TEST_TITLE}
parts:
  fill_headers_footers: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TF_TEST_TITLE", "附录")
	t.Setenv(EnvConfigPath, path)

	l := NewLoader("")
	if l.ConfigPath() != path {
		t.Fatalf("ConfigPath = %q, want %q", l.ConfigPath(), path)
	}
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Blanks.LongBlankMin != 6 || cfg.Blanks.CollapseSpacesTo != 1 {
		t.Errorf("blanks not overridden: %+v", cfg.Blanks)
	}
	if cfg.Images.AppendixTitle != "附录" {
		t.Errorf("appendix title = %q, want expanded env value", cfg.Images.AppendixTitle)
	}
	if cfg.Parts.FillHeadersFooters {
		t.Error("fill_headers_footers should be overridden to false")
	}
	if len(cfg.Fields) == 0 || len(cfg.Patterns.Catalogue) == 0 {
		t.Error("sections missing from the user file should keep their defaults")
	}
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewLoader(filepath.Join(dir, "missing.yaml")).Load(); err == nil {
		t.Error("expected error for a missing explicit config file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("blanks: [1, 2"), 0o644)
	if _, err := NewLoader(bad).Load(); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("tables:\n  min_confidence: 3\n"), 0o644)
	_, err := NewLoader(invalid).Load()
	if err == nil || !strings.Contains(err.Error(), "invalid.yaml") {
		t.Errorf("error = %v, want it to name the file", err)
	}
}
