// Package fill walks a document and fills the placeholders it recognises.
//
// A [Dispatcher] visits the parts of a package in order: the main document,
// then the headers and footers. Within a part the tables are handled first by
// the table filler; the paragraph walker then visits every paragraph, table
// cells included, skipping those the table pass already decided on. For each
// paragraph the catalogue selects the matches, the context filter drops
// those that must stay untouched, and the remaining edits are written right
// to left through the run-level replacer so that no edit shifts the offsets
// of another.
package fill

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/filter"
	"github.com/tsawler/tenderfill/placeholder"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/replace"
	"github.com/tsawler/tenderfill/tables"
)

// maxVisits bounds how often one paragraph is re-matched after an edit.
const maxVisits = 4

// Dispatcher fills one document.
type Dispatcher struct {
	rc     *render.Context
	cat    *placeholder.Catalogue
	filter *filter.Filter
	tables *tables.Filler
	base   map[string]string
	// values are those in force for the paragraph being filled; they
	// differ from base inside a configured scope.
	values map[string]string
}

// New creates a dispatcher for one render. values holds the formatted value
// of every key that resolves; keys without a value are absent.
func New(rc *render.Context, values map[string]string) (*Dispatcher, error) {
	cat, err := placeholder.Compile(rc.Config)
	if err != nil {
		return nil, fmt.Errorf("compiling catalogue: %w", err)
	}
	tf, err := tables.NewFiller(rc, values)
	if err != nil {
		return nil, fmt.Errorf("building table detector: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return &Dispatcher{
		rc:     rc,
		cat:    cat,
		filter: filter.New(rc.Config),
		tables: tf,
		base:   values,
		values: values,
	}, nil
}

// Catalogue returns the compiled catalogue, for components that look for
// seal anchors in the same document.
func (d *Dispatcher) Catalogue() *placeholder.Catalogue {
	return d.cat
}

// Parts returns the parts of pkg a render edits: the main document, then the
// headers and footers unless the configuration excludes them. A header or
// footer that cannot be parsed is reported as a warning and left out.
func Parts(rc *render.Context, pkg *docx.Package) []*docx.Part {
	parts := []*docx.Part{pkg.Document()}
	if !rc.Config.Parts.FillHeadersFooters {
		return parts
	}
	for _, list := range []func() ([]*docx.Part, error){pkg.Headers, pkg.Footers} {
		ps, err := list()
		if err != nil {
			rc.Warn(render.Warning{Kind: render.WarnPart, Message: err.Error()})
		}
		parts = append(parts, ps...)
	}
	return parts
}

// Fill fills every part in order. It stops at the first fatal error: a
// MissingFieldError in strict mode or a DeadlineError.
func (d *Dispatcher) Fill(parts []*docx.Part) error {
	for _, part := range parts {
		if err := d.FillPart(part); err != nil {
			return err
		}
	}
	return nil
}

// FillPart runs the table pass over part, then walks its paragraphs in
// document order. Both passes follow the configured scopes. The deadline is
// checked between paragraphs.
func (d *Dispatcher) FillPart(part *docx.Part) error {
	if part == nil {
		return nil
	}
	defer d.tables.SetValues(d.base)
	defer func() { d.values = d.base }()

	sc := newScope(d.rc.Config.Scopes, d.base)
	for _, b := range part.Blocks() {
		switch {
		case b.Paragraph != nil:
			sc.visit(b.Paragraph)
		case b.Table != nil:
			d.tables.SetValues(sc.values)
			if err := d.tables.FillTable(b.Table); err != nil {
				return err
			}
		}
	}

	sc = newScope(d.rc.Config.Scopes, d.base)
	for _, p := range part.Paragraphs() {
		if err := d.rc.Check(); err != nil {
			return err
		}
		prev := sc.name()
		d.values = sc.visit(p)
		if name := sc.name(); name != prev && name != "" {
			d.rc.Logger.Debug("entering scope", "scope", name, "part", part.Name)
		}
		if d.rc.Handled(p) {
			continue
		}
		d.rc.Stats.ParagraphsVisited++
		if err := d.FillParagraph(p); err != nil {
			return err
		}
	}
	return nil
}

// FillParagraph applies the selected matches of p. When a selection left
// overlapping candidates behind, the paragraph is matched again after the
// edits; decisions already counted on an earlier visit are not counted again.
func (d *Dispatcher) FillParagraph(p *docx.Paragraph) error {
	text := p.Text()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for visit := 0; visit < maxVisits; visit++ {
		selected, overlapped := d.cat.Match(text)
		var jobs []placeholder.Match
		for _, m := range selected {
			dec := d.filter.Evaluate(p, text, m, d.values)
			if dec.Skip && visit > 0 {
				continue
			}
			d.rc.Stats.MatchesFound++
			if dec.Skip {
				if err := d.skip(p, text, m, dec); err != nil {
					return err
				}
				continue
			}
			if err := d.partial(p, text, m); err != nil {
				return err
			}
			jobs = append(jobs, m)
		}
		if len(jobs) == 0 {
			return nil
		}
		if d.rc.Options.DryRun {
			for _, m := range jobs {
				d.rc.Record(d.event(p, text, m, "fill", ""))
				d.rc.Stats.MatchesFilled++
			}
			return nil
		}
		if d.apply(p, text, jobs) == 0 || overlapped == 0 {
			return nil
		}
		text = p.Text()
	}
	return nil
}

func (d *Dispatcher) skip(p *docx.Paragraph, text string, m placeholder.Match, dec filter.Decision) error {
	d.rc.Skip(dec.Rule)
	d.rc.Record(d.event(p, text, m, "skip", dec.Rule))
	d.rc.Logger.Debug("match skipped",
		"pattern", m.Pattern, "label", m.Label, "rule", dec.Rule, "detail", dec.Detail)
	if dec.Rule != filter.RuleMissing {
		return nil
	}
	return d.missing(text, dec.Missing)
}

// partial reports the keys of a match that is filled only in part, such as
// a two-field row with one value.
func (d *Dispatcher) partial(p *docx.Paragraph, text string, m placeholder.Match) error {
	var keys []string
	for _, e := range m.Edits {
		keys = append(keys, filter.MissingInEdit(e, d.values)...)
	}
	if len(keys) == 0 {
		return nil
	}
	return d.missing(text, keys)
}

func (d *Dispatcher) missing(text string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if d.rc.Options.StrictMissing {
		return &render.MissingFieldError{Key: keys[0]}
	}
	for _, k := range keys {
		d.rc.Warn(render.Warning{
			Kind:      render.WarnMissingField,
			Key:       k,
			Message:   "no value for field",
			Paragraph: render.Excerpt(text),
		})
	}
	return nil
}

type pending struct {
	placeholder.Edit
	job int
}

// apply writes the edits of jobs right to left and returns the number of
// matches that received at least one edit.
func (d *Dispatcher) apply(p *docx.Paragraph, text string, jobs []placeholder.Match) int {
	var edits []pending
	for i, m := range jobs {
		for _, e := range m.Edits {
			if len(filter.MissingInEdit(e, d.values)) > 0 {
				continue
			}
			edits = append(edits, pending{Edit: e, job: i})
		}
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Start > edits[j].Start })

	blanks := d.rc.Config.Blanks
	written := make([]bool, len(jobs))
	for _, e := range edits {
		vals := make([]string, len(e.Keys))
		for i, k := range e.Keys {
			vals[i] = d.values[k]
		}
		res := replace.Apply(p, e.Start, e.End, e.Render(vals, blanks.MinPadding, blanks.TabWidth))
		if !res.OK {
			m := jobs[e.job]
			d.rc.Record(d.event(p, text, m, "fail", res.Reason))
			d.rc.Warn(render.Warning{
				Kind:      render.WarnReplacerFailure,
				Key:       strings.Join(e.Keys, ","),
				Message:   fmt.Sprintf("%s not written: %s", m.Pattern, res.Reason),
				Paragraph: render.Excerpt(text),
			})
			continue
		}
		written[e.job] = true
		if e.Align {
			d.rc.MarkAligned(p)
		}
	}

	filled := 0
	for i, m := range jobs {
		if !written[i] {
			continue
		}
		filled++
		d.rc.Stats.MatchesFilled++
		d.rc.Record(d.event(p, text, m, "fill", ""))
		d.rc.Logger.Debug("match filled", "pattern", m.Pattern, "label", m.Label, "keys", m.Keys())
	}
	if filled > 0 {
		d.rc.MarkEdited(p)
	}
	return filled
}

func (d *Dispatcher) event(p *docx.Paragraph, text string, m placeholder.Match, action, rule string) render.Event {
	e := render.Event{
		Component: "fill",
		Text:      text,
		Pattern:   m.Pattern,
		Keys:      m.Keys(),
		Action:    action,
		Rule:      rule,
	}
	if part := p.Part(); part != nil {
		e.Part = part.Name
	}
	return e
}
