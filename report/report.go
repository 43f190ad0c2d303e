// Package report writes the outcome of a batch of renders to an .xlsx
// workbook: one summary row per document, the skip counts per rule and every
// warning.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tsawler/tenderfill/render"
)

// Sheet names.
const (
	SummarySheet  = "汇总"
	SkipsSheet    = "跳过规则"
	WarningsSheet = "警告"
)

var (
	summaryHeader  = []any{"模板", "资料", "输出", "状态", "段落", "匹配", "填充", "跳过", "图片", "后处理", "警告", "耗时(秒)", "错误"}
	skipsHeader    = []any{"模板", "资料", "规则", "次数"}
	warningsHeader = []any{"模板", "资料", "类型", "字段", "说明", "段落"}
)

// Entry is the outcome of one render.
type Entry struct {
	Template string
	Profile  string
	Output   string
	Stats    *render.Stats // nil when the render failed before filling
	Err      error
	Duration time.Duration
}

// Status returns 成功, 警告 or 失败.
func (e Entry) Status() string {
	switch {
	case e.Err != nil:
		return "失败"
	case e.Stats != nil && len(e.Stats.Warnings) > 0:
		return "警告"
	default:
		return "成功"
	}
}

// Write saves entries as a workbook at path.
func Write(path string, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{SkipsSheet, WarningsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	summary := [][]any{summaryHeader}
	skips := [][]any{skipsHeader}
	warnings := [][]any{warningsHeader}
	for _, e := range entries {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		row := []any{e.Template, e.Profile, e.Output, e.Status()}
		s := e.Stats
		if s == nil {
			s = render.NewStats()
		}
		row = append(row,
			s.ParagraphsVisited, s.MatchesFound, s.MatchesFilled, s.Skipped(),
			s.ImagesInserted, s.PostProcessEdits, len(s.Warnings),
			roundSeconds(e.Duration), msg)
		summary = append(summary, row)

		rules := make([]string, 0, len(s.MatchesSkipped))
		for r := range s.MatchesSkipped {
			rules = append(rules, r)
		}
		sort.Strings(rules)
		for _, r := range rules {
			skips = append(skips, []any{e.Template, e.Profile, r, s.MatchesSkipped[r]})
		}
		for _, w := range s.Warnings {
			warnings = append(warnings, []any{e.Template, e.Profile, w.Kind, w.Key, w.Message, w.Paragraph})
		}
	}

	for _, sh := range []struct {
		name string
		rows [][]any
	}{
		{SummarySheet, summary},
		{SkipsSheet, skips},
		{WarningsSheet, warnings},
	} {
		if err := writeRows(f, sh.name, sh.rows, bold); err != nil {
			return fmt.Errorf("writing sheet %s: %w", sh.name, err)
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "C", 36); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
