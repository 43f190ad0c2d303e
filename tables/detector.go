package tables

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
)

// Method names how a label was recognised.
type Method string

// Recognition methods, strongest first.
const (
	MethodExact   Method = "exact"
	MethodKeyword Method = "keyword"
	MethodRegex   Method = "regex"
)

// Confidence of each method.
const (
	ConfidenceExact   = 1.0
	ConfidenceKeyword = 0.9
	ConfidenceRegex   = 0.7
)

const (
	// maxKeywordLen is the longest stripped cell text, in runes, still
	// considered a label when it merely contains one.
	maxKeywordLen = 16
	// maxRegexLen bounds the cells the field expressions are tried on.
	maxRegexLen = 24
)

// Pair is a label cell and the cell that receives its value.
type Pair struct {
	Row        int // row index of the label cell
	Col        int // grid column of the label cell
	Label      string
	Key        string
	Confidence float64
	Method     Method
	LabelCell  *docx.Cell
	Target     *docx.Cell
	Below      bool // the target is below the label rather than beside it
}

func (p Pair) String() string {
	dir := "right"
	if p.Below {
		dir = "below"
	}
	return fmt.Sprintf("%s→%s (%s %.1f, %s)", p.Label, p.Key, p.Method, p.Confidence, dir)
}

type labelEntry struct {
	text string // stripped, normalised label
	key  string
}

type fieldRegex struct {
	key string
	re  *regexp.Regexp
}

// Detector finds label/value pairs in tables.
type Detector struct {
	exact    map[string]string
	labels   []labelEntry // longest first
	regexes  []fieldRegex
	strip    string
	fillable []string
	notes    []string // bracketed seal and signature notes, longest first
	minConf  float64
}

// NewDetector builds a detector from the field table and table settings of
// cfg.
func NewDetector(cfg *config.Config) (*Detector, error) {
	d := &Detector{
		exact:    make(map[string]string),
		strip:    cfg.Tables.Strip,
		fillable: cfg.Tables.Fillable,
		minConf:  cfg.Tables.MinConfidence,
	}
	for _, n := range append(append([]string(nil), cfg.Patterns.Seals...), cfg.Patterns.Qualifiers...) {
		if (strings.HasPrefix(n, "（") || strings.HasPrefix(n, "(")) && !containsAny(n, cfg.Context.SignatureTokens) {
			d.notes = append(d.notes, n)
		}
	}
	sort.SliceStable(d.notes, func(i, j int) bool { return len(d.notes[i]) > len(d.notes[j]) })
	for _, f := range cfg.Fields {
		for _, l := range f.Labels {
			n := d.normalize(l)
			if n == "" {
				continue
			}
			if _, dup := d.exact[n]; !dup {
				d.exact[n] = f.Key
				d.labels = append(d.labels, labelEntry{text: n, key: f.Key})
			}
		}
		if f.Regex != "" {
			re, err := regexp.Compile(f.Regex)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Key, err)
			}
			d.regexes = append(d.regexes, fieldRegex{key: f.Key, re: re})
		}
	}
	sort.SliceStable(d.labels, func(i, j int) bool {
		return utf8.RuneCountInString(d.labels[i].text) > utf8.RuneCountInString(d.labels[j].text)
	})
	return d, nil
}

// normalize strips decoration from a cell text and folds it for lookup.
func (d *Detector) normalize(s string) string {
	drop := func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) || strings.ContainsRune(d.strip, r) {
				return -1
			}
			return r
		}, s)
	}
	return drop(config.NormalizeLabel(drop(s)))
}

// Classify scores text as a label. It returns an empty key when no method
// recognises it.
func (d *Detector) Classify(text string) (key string, conf float64, method Method) {
	n := d.normalize(text)
	if n == "" {
		return "", 0, ""
	}
	if k, ok := d.exact[n]; ok {
		return k, ConfidenceExact, MethodExact
	}
	size := utf8.RuneCountInString(n)
	if size <= maxKeywordLen {
		var best *labelEntry
		for i := range d.labels {
			e := &d.labels[i]
			if utf8.RuneCountInString(e.text) < 2 || !strings.Contains(n, e.text) {
				continue
			}
			if strings.HasSuffix(n, e.text) {
				best = e
				break
			}
			if best == nil {
				best = e
			}
		}
		if best != nil {
			return best.key, ConfidenceKeyword, MethodKeyword
		}
	}
	if size <= maxRegexLen {
		for _, fr := range d.regexes {
			if fr.re.MatchString(n) {
				return fr.key, ConfidenceRegex, MethodRegex
			}
		}
	}
	return "", 0, ""
}

// IsLabel reports whether text classifies with enough confidence.
func (d *Detector) IsLabel(text string) bool {
	key, conf, _ := d.Classify(text)
	return key != "" && conf >= d.minConf
}

// Fillable reports whether a value cell holds nothing but blanks,
// underscores, empty brackets or a fill-in hint.
func (d *Detector) Fillable(text string) bool {
	for _, hint := range d.fillable {
		if hint != "" {
			text = strings.ReplaceAll(text, hint, "")
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
		case strings.ContainsRune("_＿()（）[]【】", r):
		default:
			return false
		}
	}
	return true
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// BlankBeforeNote reports whether text is a blank followed by a bracketed
// seal note, as in "________（盖章）". It returns the length of
// the blank in runes.
func (d *Detector) BlankBeforeNote(text string) (int, bool) {
	body := strings.TrimRightFunc(text, unicode.IsSpace)
	for _, n := range d.notes {
		if !strings.HasSuffix(body, n) {
			continue
		}
		head := strings.TrimSuffix(body, n)
		if head == "" || strings.Trim(head, " \t\u3000\u00a0_＿") != "" {
			return 0, false
		}
		return utf8.RuneCountInString(head), true
	}
	return 0, false
}

// Detect returns the label/value pairs of t in row order. Nested tables are
// not descended into.
func (d *Detector) Detect(t *docx.Table) []Pair {
	rows := t.Rows()
	used := make(map[*etree.Element]bool)
	var pairs []Pair

	for r, row := range rows {
		for _, c := range row.Cells() {
			if c.IsMergedContinuation() || used[c.Element()] {
				continue
			}
			text := strings.TrimSpace(c.Text())
			if text == "" {
				continue
			}
			key, conf, method := d.Classify(text)
			if key == "" || conf < d.minConf {
				continue
			}

			p := Pair{Row: r, Col: c.GridCol, Label: text, Key: key, Confidence: conf, Method: method, LabelCell: c}
			right := docx.CellAt(rows, r, c.GridCol+c.ColSpan)
			if right != nil && !right.IsMergedContinuation() && !used[right.Element()] && !d.IsLabel(right.Text()) {
				p.Target = right
			} else {
				below := docx.CellAt(rows, r+1, c.GridCol)
				if below != nil && !below.IsMergedContinuation() && !used[below.Element()] && d.Fillable(below.Text()) {
					p.Target = below
					p.Below = true
				}
			}
			if p.Target == nil {
				continue
			}
			used[c.Element()] = true
			used[p.Target.Element()] = true
			pairs = append(pairs, p)
		}
	}
	return pairs
}
