// Package replace rewrites a span of a paragraph's logical text while
// disturbing the run structure as little as possible.
//
// No run is created or deleted. A span inside one run is a plain slice
// substitution. A span crossing runs is written into a host run: the first
// covered run whose format covers the most characters of the span (ties go
// to the earliest). Covered runs before the host keep only the text that
// precedes the span, runs after it are emptied, and the last covered run
// keeps the text that follows the span. Characters outside the span never
// change run.
package replace

import (
	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/runmap"
)

// Failure reasons.
const (
	ReasonStale       = "stale_runmap"
	ReasonOutOfBounds = "out_of_bounds"
	ReasonNoRun       = "no_run"
)

// Result reports the outcome of a replacement.
type Result struct {
	OK     bool
	Reason string // set when OK is false
	Host   int    // index of the run that received the new text
	Runs   int    // number of runs touched
}

// Replace substitutes text for the characters [start, end) of the paragraph
// indexed by m. A zero-width span inserts text into the run holding the
// character before start. On failure the paragraph is left unchanged.
//
// m is stale afterwards; callers must rebuild it before the next edit.
func Replace(m *runmap.Map, start, end int, text string) Result {
	if m.Stale() {
		return Result{Reason: ReasonStale}
	}
	if start < 0 || end < start || end > m.Len() {
		return Result{Reason: ReasonOutOfBounds}
	}
	if start == end {
		return insert(m, start, text)
	}

	covered := m.RunsCovering(start, end)
	if len(covered) == 0 {
		return Result{Reason: ReasonNoRun}
	}
	if len(covered) == 1 {
		i := covered[0]
		rs, _ := m.Span(i)
		old := []rune(m.RunText(i))
		m.Run(i).SetText(string(old[:start-rs]) + text + string(old[end-rs:]))
		return Result{OK: true, Host: i, Runs: 1}
	}

	first, last := covered[0], covered[len(covered)-1]
	host := dominant(m, covered, start, end)

	fs, _ := m.Span(first)
	prefix := string([]rune(m.RunText(first))[:start-fs])
	ls, _ := m.Span(last)
	suffix := string([]rune(m.RunText(last))[end-ls:])

	for _, i := range covered {
		var s string
		switch {
		case i == host:
			if i == first {
				s = prefix
			}
			s += text
			if i == last {
				s += suffix
			}
		case i == first:
			s = prefix
		case i == last:
			s = suffix
		}
		m.Run(i).SetText(s)
	}
	return Result{OK: true, Host: host, Runs: len(covered)}
}

// insert writes text at a zero-width position.
func insert(m *runmap.Map, pos int, text string) Result {
	owner := -1
	switch {
	case pos > 0:
		owner = m.Owner(pos - 1)
	case m.Len() > 0:
		owner = m.Owner(0)
	}
	if owner < 0 {
		return Result{Reason: ReasonNoRun}
	}
	rs, _ := m.Span(owner)
	old := []rune(m.RunText(owner))
	off := pos - rs
	m.Run(owner).SetText(string(old[:off]) + text + string(old[off:]))
	return Result{OK: true, Host: owner, Runs: 1}
}

// dominant returns the first covered run bearing the format that covers the
// most characters of [start, end).
func dominant(m *runmap.Map, covered []int, start, end int) int {
	weight := make(map[string]int)
	var order []string
	keys := make([]string, len(covered))
	for n, i := range covered {
		rs, re := m.Span(i)
		k := m.Run(i).Format().Key()
		keys[n] = k
		if _, seen := weight[k]; !seen {
			order = append(order, k)
		}
		weight[k] += min(re, end) - max(rs, start)
	}

	best := order[0]
	for _, k := range order[1:] {
		if weight[k] > weight[best] {
			best = k
		}
	}
	for n, k := range keys {
		if k == best {
			return covered[n]
		}
	}
	return covered[0]
}

// Apply builds a fresh run-map of p and replaces [start, end).
func Apply(p *docx.Paragraph, start, end int, text string) Result {
	return Replace(runmap.Build(p), start, end, text)
}
