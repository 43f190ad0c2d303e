// Package filter decides whether a placeholder match belongs to the supplier
// and should be filled, or must be left alone.
package filter

import (
	"sort"
	"strings"
	"unicode"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/placeholder"
)

// Skip rule names, also used as keys of the skip statistics.
const (
	RuleProcurer   = "procurer_context"
	RuleSignature  = "signature_slot"
	RuleIdempotent = "idempotent"
	RuleStyle      = "style"
	RulePrefilled  = "prefilled"
	RuleMissing    = "missing_value"
)

// Paragraph is the view of a paragraph the style rule needs. A nil
// Paragraph skips the style rule.
type Paragraph interface {
	IsHeading() bool
	IsCentered() bool
	InTOC() bool
}

// Decision is the outcome of evaluating one match.
type Decision struct {
	Skip   bool
	Rule   string
	Detail string
	// Missing lists the keys without a value when Rule is RuleMissing.
	Missing []string
}

// Filter evaluates the skip rules in a fixed order: procurer context,
// signature slot, idempotency, paragraph style, prefilled text, missing
// value. The first rule that fires decides.
type Filter struct {
	ctx       config.ContextConfig
	overwrite bool
	// masks are supplier labels that contain a procurer token, such as
	// 委托代理人; they are blanked out before a line is searched.
	masks []string
}

// New creates a filter from cfg.
func New(cfg *config.Config) *Filter {
	f := &Filter{ctx: cfg.Context, overwrite: cfg.Patterns.OverwritePrefilled}
	for _, field := range cfg.Fields {
		for _, l := range field.Labels {
			if f.procurerIn(l) != "" {
				f.masks = append(f.masks, l)
			}
		}
	}
	sort.SliceStable(f.masks, func(i, j int) bool { return len(f.masks[i]) > len(f.masks[j]) })
	return f
}

// Evaluate decides whether m, found in text, should be skipped. values holds
// the resolved value of every key that has one.
func (f *Filter) Evaluate(p Paragraph, text string, m placeholder.Match, values map[string]string) Decision {
	runes := []rune(text)

	if tok := f.procurerToken(runes, m); tok != "" {
		return Decision{Skip: true, Rule: RuleProcurer, Detail: tok}
	}
	if f.isSignatureSlot(runes, m) {
		return Decision{Skip: true, Rule: RuleSignature}
	}
	if f.alreadyFilled(runes, m, values) {
		return Decision{Skip: true, Rule: RuleIdempotent}
	}
	if reason := f.styleReason(p); reason != "" {
		return Decision{Skip: true, Rule: RuleStyle, Detail: reason}
	}
	if m.Shape == config.ShapePrefilled && !f.overwrite {
		return Decision{Skip: true, Rule: RulePrefilled}
	}
	if missing := missingKeys(m, values); missing != nil {
		return Decision{Skip: true, Rule: RuleMissing, Missing: missing}
	}
	return Decision{}
}

// Cell is a label/value pair found in a table.
type Cell struct {
	Label    string // text of the label cell
	Target   string // current text of the value cell
	Key      string
	Fillable bool // the value cell holds only blanks or a fill-in hint
}

// EvaluateCell applies the skip rules to a table pair. The label cell stands
// for the whole clause, so procurer and signature tokens anywhere in it count.
func (f *Filter) EvaluateCell(c Cell, values map[string]string) Decision {
	for _, tok := range f.ctx.ProcurerTokens {
		if tok != "" && strings.Contains(c.Label, tok) {
			return Decision{Skip: true, Rule: RuleProcurer, Detail: tok}
		}
	}
	for _, tok := range f.ctx.SignatureTokens {
		if tok != "" && strings.Contains(c.Label, tok) {
			return Decision{Skip: true, Rule: RuleSignature}
		}
	}
	v, ok := values[c.Key]
	if ok && v != "" && strings.Contains(c.Target, v) {
		return Decision{Skip: true, Rule: RuleIdempotent}
	}
	if !c.Fillable && !f.overwrite {
		return Decision{Skip: true, Rule: RulePrefilled}
	}
	if !ok || v == "" {
		return Decision{Skip: true, Rule: RuleMissing, Missing: []string{c.Key}}
	}
	return Decision{}
}

// ProcurerContext returns the procurer token in the clause that precedes
// rune position pos of text, or "". Seal anchors use the clause rather than
// the line, since a signing line often holds both parties' seals.
func (f *Filter) ProcurerContext(text string, pos int) string {
	runes := []rune(text)
	if pos > len(runes) {
		return ""
	}
	return f.procurerIn(f.mask(string(runes[clauseStart(runes, pos):pos])))
}

// procurerToken returns the procurer token found on the line of the match,
// or "". The label and the placeholder itself do not count, nor do supplier
// labels such as 委托代理人 elsewhere on the line.
func (f *Filter) procurerToken(runes []rune, m placeholder.Match) string {
	start, end := min(m.LabelStart, m.Start), max(m.LabelEnd, m.End)
	if start < 0 || end > len(runes) || start > end {
		return ""
	}
	from, to := lineBounds(runes, start, end)
	before := f.mask(string(runes[from:start]))
	after := f.mask(string(runes[end:to]))
	if tok := f.procurerIn(before); tok != "" {
		return tok
	}
	return f.procurerIn(after)
}

func (f *Filter) procurerIn(s string) string {
	for _, tok := range f.ctx.ProcurerTokens {
		if tok != "" && strings.Contains(s, tok) {
			return tok
		}
	}
	return ""
}

func (f *Filter) mask(s string) string {
	for _, m := range f.masks {
		s = strings.ReplaceAll(s, m, "\x00")
	}
	return s
}

// lineBounds returns the line holding runes[start:end], bounded by line
// breaks.
func lineBounds(runes []rune, start, end int) (int, int) {
	from, to := start, end
	for from > 0 && !isLineBreak(runes[from-1]) {
		from--
	}
	for to < len(runes) && !isLineBreak(runes[to]) {
		to++
	}
	return from, to
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r' || r == '\v'
}

func clauseStart(runes []rune, pos int) int {
	blanks := 0
	for i := pos - 1; i >= 0; i-- {
		r := runes[i]
		switch {
		case r == '\t' || r == '\n' || r == '。' || r == '；' || r == ';':
			return i + 1
		case r == ' ' || r == '\u3000' || r == '\u00a0':
			blanks++
			if blanks >= 2 {
				return i + 2
			}
		default:
			blanks = 0
		}
	}
	return 0
}

// isSignatureSlot reports whether the label is followed by a signature token,
// directly or in brackets, carries a signature qualifier, or the placeholder
// is followed by a bracketed signature note.
func (f *Filter) isSignatureSlot(runes []rune, m placeholder.Match) bool {
	for _, tok := range f.ctx.SignatureTokens {
		if tok != "" && strings.Contains(m.Qualifier, tok) {
			return true
		}
	}
	return f.startsWithSignature(runes, m.LabelEnd, false) || f.startsWithSignature(runes, m.End, true)
}

func (f *Filter) startsWithSignature(runes []rune, pos int, bracketed bool) bool {
	if pos >= len(runes) {
		return false
	}
	rest := strings.TrimLeftFunc(string(runes[pos:]), unicode.IsSpace)
	trimmed := strings.TrimLeft(rest, "（(")
	if bracketed && trimmed == rest {
		return false
	}
	for _, tok := range f.ctx.SignatureTokens {
		if tok != "" && strings.HasPrefix(trimmed, tok) {
			return true
		}
	}
	return false
}

// alreadyFilled reports whether the text of the match already holds the
// value of every edit that has one.
func (f *Filter) alreadyFilled(runes []rune, m placeholder.Match, values map[string]string) bool {
	if m.End > len(runes) || m.Start >= m.End {
		return false
	}
	span := string(runes[m.Start:m.End])
	checked := 0
	for _, e := range m.Edits {
		v, ok := joined(e, values)
		if !ok {
			continue
		}
		if !strings.Contains(span, v) {
			return false
		}
		checked++
	}
	return checked > 0
}

func (f *Filter) styleReason(p Paragraph) string {
	if p == nil {
		return ""
	}
	switch {
	case f.ctx.SkipTOC && p.InTOC():
		return "toc"
	case f.ctx.SkipHeadings && p.IsHeading():
		return "heading"
	case f.ctx.SkipCentered && p.IsCentered():
		return "centered"
	}
	return ""
}

// missingKeys returns nil when at least one edit can be written; otherwise
// the keys without values.
func missingKeys(m placeholder.Match, values map[string]string) []string {
	if len(m.Edits) == 0 {
		return nil
	}
	var missing []string
	for _, e := range m.Edits {
		mk := MissingInEdit(e, values)
		if len(mk) == 0 {
			return nil
		}
		missing = append(missing, mk...)
	}
	return missing
}

// MissingInEdit returns the keys of e without values.
func MissingInEdit(e placeholder.Edit, values map[string]string) []string {
	var out []string
	for _, k := range e.Keys {
		if v, ok := values[k]; !ok || v == "" {
			out = append(out, k)
		}
	}
	return out
}

// joined returns the values of e's keys joined by its separator, and false
// when any of them is missing.
func joined(e placeholder.Edit, values map[string]string) (string, bool) {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		v, ok := values[k]
		if !ok || v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, e.Sep), len(parts) > 0
}
