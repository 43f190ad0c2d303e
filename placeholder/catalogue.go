// Package placeholder recognises the placeholder shapes of tender templates.
//
// The catalogue is compiled from the pattern table in config: every regex
// template is expanded with the label variants, qualifiers, seal suffixes and
// blank thresholds, then run against the full text of a paragraph. Each
// match carries the edits that fill it. Offsets are rune positions.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tsawler/tenderfill/config"
)

// Edit is one replacement of a match: the text in [Start, End) becomes
// Prefix + the values of Keys joined by Sep, padded to PadTo columns when
// PadTo is positive.
type Edit struct {
	Start, End int
	Keys       []string
	Sep        string
	Prefix     string
	PadTo      int
	// Align marks edits whose padding keeps a following field in its
	// column; the post-processor leaves such rows alone.
	Align bool
}

// Render builds the replacement text for values, which must hold one entry
// per key.
func (e Edit) Render(values []string, minPad, tabWidth int) string {
	s := e.Prefix + strings.Join(values, e.Sep)
	if e.PadTo > 0 {
		s = Pad(s, e.PadTo, minPad, tabWidth)
	}
	return s
}

// Match is one recognised placeholder.
type Match struct {
	Pattern  string
	Shape    string
	Priority int

	Start, End int // span of the placeholder, excluding a reused terminator

	Label                string
	LabelStart, LabelEnd int
	Qualifier            string
	After                string // terminator text following the match
	Existing             string // current value of a prefilled field

	Edits []Edit
}

// Keys returns the field keys of all edits in order.
func (m Match) Keys() []string {
	var keys []string
	for _, e := range m.Edits {
		keys = append(keys, e.Keys...)
	}
	return keys
}

// Overlaps reports whether the spans of m and o intersect.
func (m Match) Overlaps(o Match) bool {
	return m.Start < o.End && o.Start < m.End
}

type compiled struct {
	config.Pattern
	re       *regexp.Regexp
	anchored bool
}

// Catalogue is a compiled pattern table.
type Catalogue struct {
	patterns  []compiled
	labelKeys map[string]string
	combSep   *regexp.Regexp
	blanks    config.BlankConfig
}

// Compile expands and compiles the pattern table of cfg.
func Compile(cfg *config.Config) (*Catalogue, error) {
	c := &Catalogue{
		labelKeys: cfg.LabelIndex(),
		combSep:   regexp.MustCompile(`[、，,/／]`),
		blanks:    cfg.Blanks,
	}

	tokens := []string{
		"{{labels}}", alternation(cfg.Labels()),
		"{{hints}}", alternation(cfg.Patterns.Hints),
		"{{qualifiers}}", alternation(cfg.Patterns.Qualifiers),
		"{{seals}}", alternation(cfg.Patterns.Seals),
		"{{ws}}", `[ \t\x{3000}\x{00A0}]`,
		"{{long_blank_min}}", strconv.Itoa(cfg.Blanks.LongBlankMin),
		"{{short_blank_max}}", strconv.Itoa(cfg.Blanks.ShortBlankMax),
		"{{two_field_gap_min}}", strconv.Itoa(cfg.Blanks.TwoFieldGapMin),
	}
	expander := strings.NewReplacer(tokens...)

	for _, p := range cfg.Patterns.Catalogue {
		if p.Disabled {
			continue
		}
		src := expander.Replace(p.Regex)
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.ID, err)
		}
		c.patterns = append(c.patterns, compiled{
			Pattern:  p,
			re:       re,
			anchored: strings.HasPrefix(p.Regex, "^"),
		})
	}
	return c, nil
}

// never matches anything; used for empty alternations.
const never = `[^\x00-\x{10FFFF}]`

// alternation builds a non-capturing alternation of literal phrases, longest
// first. Brackets match in either width.
func alternation(phrases []string) string {
	if len(phrases) == 0 {
		return never
	}
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i]), utf8.RuneCountInString(sorted[j])
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, 0, len(sorted))
	seen := make(map[string]bool)
	for _, p := range sorted {
		q := quoteLabel(p)
		if p == "" || seen[q] {
			continue
		}
		seen[q] = true
		quoted = append(quoted, q)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

func quoteLabel(s string) string {
	q := regexp.QuoteMeta(s)
	r := strings.NewReplacer(
		"（", `[（(]`, `\(`, `[（(]`,
		"）", `[）)]`, `\)`, `[）)]`,
	)
	return r.Replace(q)
}

// KeyFor returns the field key of a label as it appears in a document.
func (c *Catalogue) KeyFor(label string) (string, bool) {
	k, ok := c.labelKeys[config.NormalizeLabel(label)]
	return k, ok
}

// Find returns every fill candidate in text, in pattern order. Seal anchors
// are not candidates; see Anchors.
func (c *Catalogue) Find(text string) []Match {
	var out []Match
	idx := newRuneIndex(text)
	for _, p := range c.patterns {
		if p.Shape == config.ShapeSeal {
			continue
		}
		c.scan(p, text, idx, func(m Match) { out = append(out, m) })
	}
	return out
}

// Anchors returns the seal suffixes found in text.
func (c *Catalogue) Anchors(text string) []Match {
	var out []Match
	idx := newRuneIndex(text)
	for _, p := range c.patterns {
		if p.Shape != config.ShapeSeal {
			continue
		}
		c.scan(p, text, idx, func(m Match) { out = append(out, m) })
	}
	return out
}

// Match finds the candidates of text and selects the set to apply. It also
// returns the number of candidates that lost to an overlapping match.
func (c *Catalogue) Match(text string) (selected []Match, overlapped int) {
	return Select(c.Find(text))
}

// Select keeps the highest-priority non-overlapping matches. Within one
// priority the leftmost match wins, then the longest. The result is ordered
// by start offset.
func Select(candidates []Match) (selected []Match, overlapped int) {
	sorted := append([]Match(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End-a.Start > b.End-b.Start
	})

	for _, m := range sorted {
		clash := false
		for _, s := range selected {
			if m.Overlaps(s) {
				clash = true
				break
			}
		}
		if clash {
			overlapped++
			continue
		}
		selected = append(selected, m)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })
	return selected, overlapped
}

// scan runs one pattern over text. After a match the search resumes at the
// terminator so that a following label can start the next match.
func (c *Catalogue) scan(p compiled, text string, idx runeIndex, emit func(Match)) {
	names := p.re.SubexpNames()
	pos := 0
	for pos <= len(text) {
		loc := p.re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}
		g := groups{text: text, idx: idx, names: names, loc: loc, base: pos}
		if m, ok := c.build(p, g); ok {
			emit(m)
		}

		next := pos + loc[1]
		if as, ae := g.bytes("after"); as >= 0 && ae > as {
			next = as
		}
		if next <= pos+loc[0] {
			_, size := utf8.DecodeRuneInString(text[pos+loc[0]:])
			next = pos + loc[0] + max(size, 1)
		}
		if p.anchored {
			return
		}
		pos = next
	}
}

func (c *Catalogue) build(p compiled, g groups) (Match, bool) {
	m := Match{
		Pattern:  p.ID,
		Shape:    p.Shape,
		Priority: p.Priority,
		Start:    g.runeStart(0),
		End:      g.runeEnd(0),
	}
	if as, _ := g.span("after"); as >= 0 {
		m.End = as
		m.After = g.str("after")
	}
	if ls, le := g.span("label"); ls >= 0 {
		m.Label = g.str("label")
		m.LabelStart, m.LabelEnd = ls, le
	} else {
		m.LabelStart, m.LabelEnd = m.Start, m.Start
	}
	m.Qualifier = g.str("qual")

	key := p.Key
	if key == "" && m.Label != "" && p.Shape != config.ShapeBracketCombined {
		k, ok := c.KeyFor(m.Label)
		if !ok {
			return Match{}, false
		}
		key = k
	}

	tab := c.blanks.TabWidth
	switch p.Shape {
	case config.ShapeBracket:
		s, _ := g.span("open")
		e, _ := g.span("close")
		m.Edits = []Edit{{Start: s + 1, End: e, Keys: []string{key}}}

	case config.ShapeBracketCombined:
		inner := g.str("inner")
		var keys []string
		for _, part := range c.combSep.Split(inner, -1) {
			k, ok := c.KeyFor(part)
			if !ok {
				return Match{}, false
			}
			keys = append(keys, k)
		}
		s, e := g.span("inner")
		m.Label = inner
		m.LabelStart, m.LabelEnd = s, e
		m.Edits = []Edit{{Start: s, End: e, Keys: keys, Sep: "、"}}

	case config.ShapeColonBlank, config.ShapeBareBlank:
		s, e := g.span("blank")
		ed := Edit{Start: s, End: e, Keys: []string{key}}
		if p.Shape == config.ShapeBareBlank {
			ed.Prefix = "："
		}
		if m.After != "" && !isPunct(m.After) {
			ed.PadTo = Width(g.str("blank"), tab)
			_, followedByLabel := c.KeyFor(m.After)
			ed.Align = followedByLabel
		}
		m.Edits = []Edit{ed}

	case config.ShapeTwoField:
		key2, ok := c.KeyFor(g.str("label2"))
		if !ok {
			return Match{}, false
		}
		_, le := g.span("label")
		l2s, l2e := g.span("label2")
		gap := g.runeSlice(le, l2s)
		m.Edits = []Edit{
			{Start: le, End: l2s, Keys: []string{key}, Prefix: "：", PadTo: Width(gap, tab), Align: true},
			{Start: l2e, End: m.End, Keys: []string{key2}, Prefix: "："},
		}

	case config.ShapeDate:
		s, e := g.span("date")
		m.Edits = []Edit{{Start: s, End: e, Keys: []string{key}}}

	case config.ShapeSeal:
		m.Label = g.str("seal")

	case config.ShapePrefilled:
		s, e := g.span("value")
		m.Existing = g.str("value")
		m.Edits = []Edit{{Start: s, End: e, Keys: []string{key}}}

	default:
		return Match{}, false
	}
	return m, true
}

func isPunct(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return strings.ContainsRune("，,。；;、", r)
}

// runeIndex converts byte offsets of a string to rune offsets.
type runeIndex []int

func newRuneIndex(s string) runeIndex {
	idx := make(runeIndex, len(s)+1)
	n := 0
	for i := range s {
		idx[i] = n
		n++
	}
	// Continuation bytes are never group boundaries; only the end needs
	// filling in.
	idx[len(s)] = n
	return idx
}

// groups gives rune-based access to the submatches of one regexp match.
type groups struct {
	text  string
	idx   runeIndex
	names []string
	loc   []int
	base  int
}

func (g groups) bytes(name string) (int, int) {
	for i, n := range g.names {
		if n == name && g.loc[2*i] >= 0 {
			return g.base + g.loc[2*i], g.base + g.loc[2*i+1]
		}
	}
	return -1, -1
}

func (g groups) span(name string) (int, int) {
	s, e := g.bytes(name)
	if s < 0 {
		return -1, -1
	}
	return g.idx[s], g.idx[e]
}

func (g groups) str(name string) string {
	s, e := g.bytes(name)
	if s < 0 {
		return ""
	}
	return g.text[s:e]
}

func (g groups) runeStart(i int) int { return g.idx[g.base+g.loc[2*i]] }
func (g groups) runeEnd(i int) int   { return g.idx[g.base+g.loc[2*i+1]] }

func (g groups) runeSlice(start, end int) string {
	return string([]rune(g.text)[start:end])
}
