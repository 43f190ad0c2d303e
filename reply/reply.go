// Package reply answers point-to-point response tables: tables that list the
// solicitation's requirements in one column and leave the supplier's
// response (应答) to be written in another.
//
// A table qualifies when one of its first rows holds a requirement header
// (需求, 要求 ...) and a response header (应答, 响应 ...). Every following row
// with a requirement and a blank response cell is passed to a Generator, and
// the reply is written into the response cell through the run-level
// replacer. Replies may be plain text or HTML.
package reply

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/replace"
	"github.com/tsawler/tenderfill/tables"
)

// Skip rules counted in render.Stats.MatchesSkipped.
const (
	RuleAnswered = "already_answered"
	RuleNoReply  = "no_reply"
)

// headerRows is how many leading rows are searched for the header.
const headerRows = 3

var (
	numberHeaders      = []string{"序号", "编号", "条款号"}
	responseHeaders    = []string{"应答", "响应", "答复"}
	requirementHeaders = []string{"需求", "要求", "条款", "技术参数", "规格"}
)

// Requirement is one row of a response table.
type Requirement struct {
	Row    int    `json:"row" yaml:"row"`
	Number string `json:"number,omitempty" yaml:"number,omitempty"` // content of the 序号 column
	Text   string `json:"text" yaml:"text"`
}

// Generator produces the reply to a requirement. An empty reply leaves the
// row unanswered.
type Generator interface {
	Reply(ctx context.Context, req Requirement) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Requirement) (string, error)

// Reply calls f.
func (f GeneratorFunc) Reply(ctx context.Context, req Requirement) (string, error) {
	return f(ctx, req)
}

// columns locates the roles of a response table by grid column.
type columns struct {
	header      int
	number      int
	requirement int
	response    int
}

func detect(rows []*docx.Row) (columns, bool) {
	for r := 0; r < len(rows) && r < headerRows; r++ {
		cols := columns{header: r, number: -1, requirement: -1, response: -1}
		for _, c := range rows[r].Cells() {
			text := strings.TrimSpace(c.Text())
			switch {
			case text == "":
			case cols.number < 0 && containsAny(text, numberHeaders):
				cols.number = c.GridCol
			case cols.response < 0 && containsAny(text, responseHeaders):
				cols.response = c.GridCol
			case cols.requirement < 0 && containsAny(text, requirementHeaders):
				cols.requirement = c.GridCol
			}
		}
		if cols.requirement >= 0 && cols.response >= 0 {
			return cols, true
		}
	}
	return columns{}, false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Filler writes generated replies into the response tables of a document.
type Filler struct {
	rc  *render.Context
	gen Generator
	det *tables.Detector
}

// NewFiller creates a filler for one render.
func NewFiller(rc *render.Context, gen Generator) (*Filler, error) {
	det, err := tables.NewDetector(rc.Config)
	if err != nil {
		return nil, err
	}
	return &Filler{rc: rc, gen: gen, det: det}, nil
}

// Fill answers every response table of parts, nested tables included. It
// only fails when the deadline passes; generator and write failures are
// recorded as warnings.
func (f *Filler) Fill(parts []*docx.Part) error {
	for _, part := range parts {
		if err := f.blocks(part.Name, part.Blocks()); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) blocks(part string, blocks []docx.Block) error {
	for _, b := range blocks {
		if b.Table == nil {
			continue
		}
		if err := f.table(part, b.Table); err != nil {
			return err
		}
		for _, row := range b.Table.Rows() {
			for _, c := range row.Cells() {
				if err := f.blocks(part, c.Blocks()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (f *Filler) table(part string, t *docx.Table) error {
	rows := t.Rows()
	cols, ok := detect(rows)
	if !ok {
		return nil
	}
	for r := cols.header + 1; r < len(rows); r++ {
		if err := f.rc.Check(); err != nil {
			return err
		}
		reqCell := docx.CellAt(rows, r, cols.requirement)
		respCell := docx.CellAt(rows, r, cols.response)
		if reqCell == nil || respCell == nil || reqCell.Element() == respCell.Element() {
			continue
		}
		req := Requirement{Row: r, Text: strings.TrimSpace(reqCell.Text())}
		if req.Text == "" {
			continue
		}
		if c := docx.CellAt(rows, r, cols.number); cols.number >= 0 && c != nil {
			req.Number = strings.TrimSpace(c.Text())
		}
		if err := f.answer(part, req, respCell); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) answer(part string, req Requirement, cell *docx.Cell) error {
	f.rc.Stats.MatchesFound++
	event := render.Event{Component: "reply", Part: part, Text: req.Text, Action: "fill"}
	skip := func(rule string) {
		f.rc.Skip(rule)
		event.Action, event.Rule = "skip", rule
		f.rc.Record(event)
	}

	if !f.det.Fillable(cell.Text()) {
		skip(RuleAnswered)
		return nil
	}
	text, err := f.gen.Reply(f.rc.Context(), req)
	if err != nil {
		if cerr := f.rc.Check(); cerr != nil {
			return cerr
		}
		f.fail(event, "reply generation failed: "+err.Error())
		return nil
	}
	paras, err := Paragraphs(text)
	if err != nil {
		f.fail(event, err.Error())
		return nil
	}
	if len(paras) == 0 {
		skip(RuleNoReply)
		return nil
	}

	if !f.rc.Options.DryRun {
		if reason := write(cell, paras); reason != "" {
			f.fail(event, "reply not written: "+reason)
			return nil
		}
		f.rc.MarkEdited(cell.FirstParagraph())
	}
	f.rc.Stats.MatchesFilled++
	f.rc.Record(event)
	return nil
}

func (f *Filler) fail(event render.Event, msg string) {
	event.Action = "fail"
	f.rc.Record(event)
	f.rc.Warn(render.Warning{Kind: render.WarnReply, Message: msg, Paragraph: render.Excerpt(event.Text)})
}

// write replaces the placeholder content of cell by paras. The first
// paragraph keeps its runs; further paragraphs copy its properties and the
// format of its first run. It returns the replacer's reason on failure.
func write(cell *docx.Cell, paras []string) string {
	first := cell.FirstParagraph()
	for _, p := range cell.Paragraphs()[1:] {
		p.Remove()
	}
	n := utf8.RuneCountInString(first.Text())
	res := replace.Apply(first, 0, n, paras[0])
	switch {
	case res.OK:
	case res.Reason == replace.ReasonNoRun:
		first.AppendRun(paras[0])
	default:
		return res.Reason
	}

	var model *docx.Run
	for _, r := range first.Runs() {
		if !r.HasDrawing() {
			model = r
			break
		}
	}
	last := first
	for _, s := range paras[1:] {
		np := last.InsertParagraphAfter()
		np.CopyPropsFrom(first)
		run := np.AppendRun(s)
		if model != nil {
			run.CopyPropsFrom(model)
		}
		last = np
	}
	return ""
}
