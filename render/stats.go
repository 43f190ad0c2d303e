package render

import (
	"fmt"
	"sort"
	"strings"
)

// Warning kinds.
const (
	WarnMissingField    = "missing_field"
	WarnImage           = "image"
	WarnReplacerFailure = "replacer_failure"
	WarnPart            = "part"
	WarnReply           = "reply"
)

// Warning is a locally recovered problem.
type Warning struct {
	Kind      string `json:"kind" yaml:"kind"`
	Message   string `json:"message" yaml:"message"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty"`
	Paragraph string `json:"paragraph,omitempty" yaml:"paragraph,omitempty"` // excerpt of the paragraph text
}

func (w Warning) String() string {
	var sb strings.Builder
	sb.WriteString(w.Kind)
	if w.Key != "" {
		sb.WriteString(" [" + w.Key + "]")
	}
	sb.WriteString(": " + w.Message)
	if w.Paragraph != "" {
		sb.WriteString(fmt.Sprintf(" (%q)", w.Paragraph))
	}
	return sb.String()
}

// Stats summarises one render.
type Stats struct {
	ParagraphsVisited int            `json:"paragraphs_visited" yaml:"paragraphs_visited"`
	MatchesFound      int            `json:"matches_found" yaml:"matches_found"`
	MatchesFilled     int            `json:"matches_filled" yaml:"matches_filled"`
	MatchesSkipped    map[string]int `json:"matches_skipped" yaml:"matches_skipped"` // by rule
	ImagesInserted    int            `json:"images_inserted" yaml:"images_inserted"`
	PostProcessEdits  int            `json:"post_process_edits" yaml:"post_process_edits"`
	Warnings          []Warning      `json:"warnings" yaml:"warnings"`
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{MatchesSkipped: make(map[string]int)}
}

// Skipped returns the total number of skipped matches.
func (s *Stats) Skipped() int {
	n := 0
	for _, v := range s.MatchesSkipped {
		n += v
	}
	return n
}

// SkipRules returns the rules that skipped at least one match, sorted.
func (s *Stats) SkipRules() []string {
	var rules []string
	for r, n := range s.MatchesSkipped {
		if n > 0 {
			rules = append(rules, r)
		}
	}
	sort.Strings(rules)
	return rules
}

// String returns a one-line summary.
func (s *Stats) String() string {
	var parts []string
	for _, r := range s.SkipRules() {
		parts = append(parts, fmt.Sprintf("%s=%d", r, s.MatchesSkipped[r]))
	}
	return fmt.Sprintf("paragraphs=%d found=%d filled=%d skipped=%d [%s] images=%d post=%d warnings=%d",
		s.ParagraphsVisited, s.MatchesFound, s.MatchesFilled, s.Skipped(), strings.Join(parts, " "),
		s.ImagesInserted, s.PostProcessEdits, len(s.Warnings))
}
