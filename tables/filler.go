package tables

import (
	"unicode/utf8"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/filter"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/replace"
)

// Filler writes profile values into the value cells of detected pairs.
type Filler struct {
	rc     *render.Context
	det    *Detector
	filter *filter.Filter
	values map[string]string
}

// NewFiller creates a filler for one render. values holds the formatted
// value of every key that resolves.
func NewFiller(rc *render.Context, values map[string]string) (*Filler, error) {
	det, err := NewDetector(rc.Config)
	if err != nil {
		return nil, err
	}
	return &Filler{rc: rc, det: det, filter: filter.New(rc.Config), values: values}, nil
}

// SetValues replaces the values written by later calls, for a document
// section that rebinds keys.
func (f *Filler) SetValues(values map[string]string) {
	f.values = values
}

// Fill handles every table among blocks, nested tables included. It returns
// a MissingFieldError in strict mode; every other problem is recorded as a
// warning.
func (f *Filler) Fill(blocks []docx.Block) error {
	for _, b := range blocks {
		if b.Table == nil {
			continue
		}
		if err := f.FillTable(b.Table); err != nil {
			return err
		}
	}
	return nil
}

// FillTable handles one table, then the tables nested in its cells.
func (f *Filler) FillTable(t *docx.Table) error {
	for _, p := range f.det.Detect(t) {
		if err := f.fillPair(p); err != nil {
			return err
		}
	}
	for _, row := range t.Rows() {
		for _, c := range row.Cells() {
			if err := f.Fill(c.Blocks()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Filler) fillPair(p Pair) error {
	stats := f.rc.Stats
	stats.MatchesFound++
	for _, para := range p.LabelCell.Paragraphs() {
		f.rc.MarkHandled(para)
	}

	current := p.Target.Text()
	fillable := f.det.Fillable(current)
	blank := -1
	if !fillable && len(p.Target.Paragraphs()) == 1 {
		if n, ok := f.det.BlankBeforeNote(current); ok {
			fillable, blank = true, n
		}
	}
	d := f.filter.EvaluateCell(filter.Cell{
		Label:    p.Label,
		Target:   current,
		Key:      p.Key,
		Fillable: fillable,
	}, f.values)
	// A prefilled target may still hold a paragraph placeholder such as a
	// date skeleton; it is left to the paragraph walker.
	if d.Rule != filter.RulePrefilled {
		for _, para := range p.Target.Paragraphs() {
			f.rc.MarkHandled(para)
		}
	}
	log := f.rc.Logger.With("table_pair", p.String())
	event := render.Event{Component: "tables", Text: p.Label, Keys: []string{p.Key}, Action: "fill"}
	if d.Skip {
		event.Action, event.Rule = "skip", d.Rule
		f.rc.Record(event)
		f.rc.Skip(d.Rule)
		log.Debug("table pair skipped", "rule", d.Rule, "detail", d.Detail)
		if d.Rule == filter.RuleMissing {
			if f.rc.Options.StrictMissing {
				return &render.MissingFieldError{Key: p.Key}
			}
			f.rc.Warn(render.Warning{
				Kind:      render.WarnMissingField,
				Key:       p.Key,
				Message:   "no value for table field",
				Paragraph: render.Excerpt(p.Label),
			})
		}
		return nil
	}

	value := f.values[p.Key]
	if f.rc.Options.DryRun {
		f.rc.Record(event)
		stats.MatchesFilled++
		return nil
	}
	para := p.Target.FirstParagraph()
	end := blank
	if end < 0 {
		end = utf8.RuneCountInString(para.Text())
	}
	res := replace.Apply(para, 0, end, value)
	if !res.OK && res.Reason == replace.ReasonNoRun {
		para.AppendRun(value)
		res = replace.Result{OK: true}
	}
	if !res.OK {
		event.Action, event.Rule = "fail", res.Reason
		f.rc.Record(event)
		f.rc.Warn(render.Warning{
			Kind:      render.WarnReplacerFailure,
			Key:       p.Key,
			Message:   "table cell not written: " + res.Reason,
			Paragraph: render.Excerpt(p.Label),
		})
		return nil
	}
	f.rc.MarkHandled(para)
	f.rc.MarkEdited(para)
	f.rc.Record(event)
	stats.MatchesFilled++
	log.Debug("table pair filled", "key", p.Key)
	return nil
}
