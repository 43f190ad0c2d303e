package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/tenderfill/config"
)

// Sheet names of the spreadsheet profile layout.
const (
	BasicSheet         = "基本信息"
	QualificationSheet = "资质"
)

// LoadFile reads a supplier profile. YAML and JSON documents (.yaml, .yml,
// .json) hold a mapping; spreadsheets (.xlsx) hold key/value rows on the
// 基本信息 sheet, or the first visible sheet, and an optional 资质 sheet with
// key, file and hint columns. Relative image paths are resolved against the
// directory of the profile file.
func LoadFile(path string, cfg *config.Config) (*Profile, error) {
	var (
		p   *Profile
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		p, err = loadYAML(path, cfg)
	case ".xlsx", ".xlsm":
		p, err = loadXLSX(path, cfg)
	default:
		return nil, fmt.Errorf("profile %s: unsupported file type", path)
	}
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	p.resolvePaths(filepath.Dir(path))
	return p, nil
}

func loadYAML(path string, cfg *config.Config) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	if m == nil {
		return nil, errors.New("empty profile")
	}
	return FromMap(m, cfg)
}

func loadXLSX(path string, cfg *config.Config) (*Profile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	basic, err := f.GetRows(basicSheet(f))
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	for _, rec := range basic {
		rec = trimRow(rec)
		if len(rec) < 2 || rec[0] == "" || isHeader(rec[0]) {
			continue
		}
		key := rec[0]
		switch strings.ToLower(key) {
		case "seals", "seal", "公章":
			var seals []any
			for _, v := range rec[1:] {
				if v != "" {
					seals = append(seals, v)
				}
			}
			m[key] = seals
		default:
			m[key] = rec[1]
		}
	}

	if idx, err := f.GetSheetIndex(QualificationSheet); err == nil && idx >= 0 {
		qs, err := f.GetRows(QualificationSheet)
		if err != nil {
			return nil, err
		}
		var list []any
		for _, rec := range qs {
			row := make([]string, 3)
			copy(row, trimRow(rec))
			if isHeader(row[0]) || row[1] == "" {
				continue
			}
			list = append(list, map[string]any{"key": row[0], "file_path": row[1], "hint": row[2]})
		}
		m["qualifications"] = list
	}
	return FromMap(m, cfg)
}

// basicSheet returns the 基本信息 sheet, or else the first visible sheet.
func basicSheet(f *excelize.File) string {
	if idx, err := f.GetSheetIndex(BasicSheet); err == nil && idx >= 0 {
		return BasicSheet
	}
	sheets := f.GetSheetList()
	for _, name := range sheets {
		if visible, err := f.GetSheetVisible(name); err == nil && visible {
			return name
		}
	}
	return sheets[0]
}

func trimRow(rec []string) []string {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec
}

// isHeader reports whether a first-column value is a header cell.
func isHeader(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "key", "字段", "字段名", "项目", "键":
		return true
	}
	return false
}

func (p *Profile) resolvePaths(dir string) {
	abs := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(dir, s)
	}
	for k, v := range p.Images {
		p.Images[k] = abs(v)
	}
	for i, s := range p.Seals {
		p.Seals[i] = abs(s)
	}
	for i := range p.Qualifications {
		p.Qualifications[i].FilePath = abs(p.Qualifications[i].FilePath)
	}
}

// LoadProject reads a project context from a YAML or JSON file. Unknown
// top-level keys are kept in Extra.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	var proj Project
	if err := yaml.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("project %s: decoding: %w", path, err)
	}
	var all map[string]any
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("project %s: decoding: %w", path, err)
	}
	for k, v := range all {
		switch k {
		case "project_name", "project_number", "bid_date", "required_qualifications", "extra":
			continue
		}
		if _, isMap := v.(map[string]any); isMap {
			continue
		}
		if _, isList := v.([]any); isList {
			continue
		}
		if proj.Extra == nil {
			proj.Extra = make(map[string]string)
		}
		proj.Extra[k] = scalar(v)
	}
	return &proj, nil
}
