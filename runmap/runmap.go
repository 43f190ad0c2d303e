// Package runmap indexes the logical text of a paragraph against the runs
// that hold it.
//
// Positions are rune offsets into the paragraph text. A Map is a snapshot:
// once any run of the paragraph is edited the map is stale and must be
// rebuilt before it is used for further edits.
package runmap

import (
	"errors"
	"fmt"

	"github.com/tsawler/tenderfill/docx"
)

// ErrOutOfRange is returned for positions outside the paragraph text.
var ErrOutOfRange = errors.New("position out of range")

// Map is the run-map of one paragraph.
type Map struct {
	para   *docx.Paragraph
	runs   []*docx.Run
	texts  []string
	text   []rune
	starts []int // rune offset of each run; starts[len(runs)] == len(text)
	owner  []int // owner[i] is the index of the run holding character i
}

// Build walks the runs of p and indexes their text.
func Build(p *docx.Paragraph) *Map {
	m := &Map{para: p}
	m.runs = p.Runs()
	m.texts = make([]string, len(m.runs))
	m.starts = make([]int, len(m.runs)+1)

	for i, r := range m.runs {
		t := r.Text()
		m.texts[i] = t
		m.starts[i] = len(m.text)
		for _, ch := range t {
			m.text = append(m.text, ch)
			m.owner = append(m.owner, i)
		}
	}
	m.starts[len(m.runs)] = len(m.text)
	return m
}

// Paragraph returns the paragraph the map was built from.
func (m *Map) Paragraph() *docx.Paragraph {
	return m.para
}

// Text returns the logical paragraph text.
func (m *Map) Text() string {
	return string(m.text)
}

// Len returns the text length in runes.
func (m *Map) Len() int {
	return len(m.text)
}

// Runs returns the runs of the paragraph in order.
func (m *Map) Runs() []*docx.Run {
	return m.runs
}

// Run returns run i.
func (m *Map) Run(i int) *docx.Run {
	return m.runs[i]
}

// RunText returns the text of run i as it was when the map was built.
func (m *Map) RunText(i int) string {
	return m.texts[i]
}

// Span returns the [start, end) offsets of run i.
func (m *Map) Span(i int) (start, end int) {
	return m.starts[i], m.starts[i+1]
}

// Owner returns the index of the run holding character pos, or -1.
func (m *Map) Owner(pos int) int {
	if pos < 0 || pos >= len(m.owner) {
		return -1
	}
	return m.owner[pos]
}

// Locate returns the run holding character pos and the offset of pos within
// that run.
func (m *Map) Locate(pos int) (run, offset int, err error) {
	if pos < 0 || pos >= len(m.text) {
		return -1, 0, fmt.Errorf("locate %d in text of length %d: %w", pos, len(m.text), ErrOutOfRange)
	}
	run = m.owner[pos]
	return run, pos - m.starts[run], nil
}

// RunsCovering returns, in order, the indexes of the runs that hold at least
// one character of [start, end). Empty runs never cover anything.
func (m *Map) RunsCovering(start, end int) []int {
	if start < 0 {
		start = 0
	}
	if end > len(m.text) {
		end = len(m.text)
	}
	var out []int
	for i := range m.runs {
		s, e := m.starts[i], m.starts[i+1]
		if max(s, start) < min(e, end) {
			out = append(out, i)
		}
	}
	return out
}

// Slice returns the text in [start, end).
func (m *Map) Slice(start, end int) string {
	return string(m.text[start:end])
}

// Stale reports whether the paragraph changed since the map was built: a run
// was added, removed or reordered, or a run's text differs.
func (m *Map) Stale() bool {
	runs := m.para.Runs()
	if len(runs) != len(m.runs) {
		return true
	}
	for i, r := range runs {
		if !r.Same(m.runs[i]) || r.Text() != m.texts[i] {
			return true
		}
	}
	return false
}
