// Package postprocess tidies the paragraphs of a rendered document.
//
// The rewrites are local and only ever shrink or substitute text through the
// run-level replacer, so no run is created or removed. The colon rules apply
// to every paragraph:
//
//   - three or more consecutive colons become one full-width colon;
//   - an ASCII colon after a Chinese character becomes full-width.
//
// The others apply only to paragraphs the render edited:
//
//   - empty bracket pairs left behind by filled hints are removed;
//   - runs of three or more spaces collapse to blanks.collapse_spaces_to,
//     except in two-field rows whose columns were aligned;
//   - underscores and spaces trailing a value are stripped. A blank that
//     directly follows a colon is an unfilled slot and stays.
package postprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/replace"
)

// maxPasses bounds the re-scans of one rule whose matches overlap.
const maxPasses = 3

// Rule names, as reported in trace events.
const (
	RuleColons   = "colon_run"
	RuleASCII    = "ascii_colon"
	RuleBrackets = "empty_brackets"
	RuleSpaces   = "space_run"
	RuleTrailing = "trailing_blank"
)

type rule struct {
	name    string
	re      *regexp.Regexp
	group   int // submatch rewritten, 0 for the whole match
	rewrite func(old string) string
	aligned bool // also applies to aligned rows
	always  bool // also applies to paragraphs the render did not edit
}

// Processor runs the rewrites of one render.
type Processor struct {
	rc    *render.Context
	rules []rule
}

// New builds the processor for rc.
func New(rc *render.Context) *Processor {
	fullColon := func(string) string { return "：" }
	drop := func(string) string { return "" }
	rules := []rule{
		{name: RuleColons, re: regexp.MustCompile(`[：:]{3,}`), rewrite: fullColon, aligned: true, always: true},
		{name: RuleASCII, re: regexp.MustCompile(`\p{Han}(:)[^\s:：]`), group: 1, rewrite: fullColon, aligned: true, always: true},
		{name: RuleBrackets, re: regexp.MustCompile(`（）|\(\)`), rewrite: drop, aligned: true},
	}
	if n := rc.Config.Blanks.CollapseSpacesTo; n > 0 {
		collapse := func(old string) string {
			if len(old) <= n {
				return old
			}
			return strings.Repeat(" ", n)
		}
		rules = append(rules, rule{name: RuleSpaces, re: regexp.MustCompile(` {3,}`), rewrite: collapse})
	}
	rules = append(rules, rule{
		name:    RuleTrailing,
		re:      regexp.MustCompile(`[^：:\s_\x{3000}]([_\s\x{3000}]+)$`),
		group:   1,
		rewrite: drop,
		aligned: true,
	})
	return &Processor{rc: rc, rules: rules}
}

// Run rewrites the paragraphs of parts: edited paragraphs get every rule,
// the others only the colon rules. It only fails when the deadline passes.
func (pp *Processor) Run(parts []*docx.Part) error {
	for _, part := range parts {
		for _, p := range part.Paragraphs() {
			if err := pp.rc.Check(); err != nil {
				return err
			}
			pp.run(p, !pp.rc.Edited(p))
		}
	}
	return nil
}

// Paragraph applies every rule to p and returns the number of edits made.
func (pp *Processor) Paragraph(p *docx.Paragraph) int {
	return pp.run(p, false)
}

func (pp *Processor) run(p *docx.Paragraph, colonsOnly bool) int {
	n := 0
	aligned := pp.rc.Aligned(p)
	for _, r := range pp.rules {
		if (aligned && !r.aligned) || (colonsOnly && !r.always) {
			continue
		}
		n += pp.apply(p, r)
	}
	return n
}

// apply rewrites the matches of r right to left, so that earlier offsets
// stay valid, and scans again while something changed.
func (pp *Processor) apply(p *docx.Paragraph, r rule) int {
	n := 0
	for pass := 0; pass < maxPasses; pass++ {
		text := p.Text()
		locs := r.re.FindAllStringSubmatchIndex(text, -1)
		changed := false
		for i := len(locs) - 1; i >= 0; i-- {
			s, e := locs[i][2*r.group], locs[i][2*r.group+1]
			old := text[s:e]
			repl := r.rewrite(old)
			if repl == old {
				continue
			}
			start := utf8.RuneCountInString(text[:s])
			end := start + utf8.RuneCountInString(old)
			if res := replace.Apply(p, start, end, repl); !res.OK {
				pp.rc.Warn(render.Warning{
					Kind:      render.WarnReplacerFailure,
					Message:   r.name + ": " + res.Reason,
					Paragraph: render.Excerpt(text),
				})
				return n
			}
			n++
			changed = true
			pp.rc.Stats.PostProcessEdits++
		}
		if !changed {
			break
		}
		pp.rc.Record(render.Event{
			Component: "postprocess",
			Part:      p.Part().Name,
			Text:      text,
			Pattern:   r.name,
			Action:    "fill",
		})
	}
	return n
}
