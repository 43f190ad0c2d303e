package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tsawler/tenderfill/render"
)

func TestWrite(t *testing.T) {
	ok := render.NewStats()
	ok.ParagraphsVisited = 40
	ok.MatchesFound = 12
	ok.MatchesFilled = 9
	ok.MatchesSkipped["procurer_context"] = 2
	ok.MatchesSkipped["missing_value"] = 1
	ok.ImagesInserted = 3
	ok.Warnings = []render.Warning{{Kind: render.WarnMissingField, Key: "fax", Message: "no value", Paragraph: "传真："}}

	entries := []Entry{
		{Template: "a.docx", Profile: "p.yaml", Output: "out/a.docx", Stats: ok, Duration: 1500 * time.Millisecond},
		{Template: "b.doc", Profile: "p.yaml", Err: errors.New("legacy .doc format")},
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := Write(path, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("summary rows = %d, want 3", len(rows))
	}
	first := rows[1]
	checks := map[int]string{0: "a.docx", 3: "警告", 4: "40", 6: "9", 7: "3", 8: "3", 10: "1", 11: "1.5"}
	for col, want := range checks {
		if first[col] != want {
			t.Errorf("summary row 1 col %d = %q, want %q", col, first[col], want)
		}
	}
	if rows[2][3] != "失败" || rows[2][12] != "legacy .doc format" {
		t.Errorf("failed row = %q", rows[2])
	}

	skips, _ := f.GetRows(SkipsSheet)
	if len(skips) != 3 || skips[1][2] != "missing_value" || skips[2][2] != "procurer_context" {
		t.Errorf("skips = %q", skips)
	}
	warnings, _ := f.GetRows(WarningsSheet)
	if len(warnings) != 2 || warnings[1][3] != "fax" {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestEntry_Status(t *testing.T) {
	tests := []struct {
		e    Entry
		want string
	}{
		{Entry{Stats: render.NewStats()}, "成功"},
		{Entry{Stats: &render.Stats{Warnings: []render.Warning{{Kind: render.WarnImage}}}}, "警告"},
		{Entry{Err: errors.New("x")}, "失败"},
	}
	for _, tt := range tests {
		if got := tt.e.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
	}
}
