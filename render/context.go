// Package render carries the state shared by the components of one render:
// the logger, the configuration, the options, the statistics and the set of
// paragraphs edited so far.
package render

import (
	"context"
	"io"
	"log/slog"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
)

// Options are the per-request switches.
type Options struct {
	IncludeImages bool
	StrictMissing bool
	StampSeals    bool
	// DryRun evaluates every match without changing the document.
	DryRun bool
	// Trace keeps an Event for every decision.
	Trace bool
}

// Event is one traced decision.
type Event struct {
	Component string   `json:"component" yaml:"component"`
	Part      string   `json:"part,omitempty" yaml:"part,omitempty"`
	Text      string   `json:"text" yaml:"text"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Keys      []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Action    string   `json:"action" yaml:"action"` // fill, skip or fail
	Rule      string   `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Context is the request state handed to every component. The configuration
// and options are read-only; Stats accumulates.
type Context struct {
	ctx       context.Context
	RequestID string
	Logger    *slog.Logger
	Config    *config.Config
	Options   Options
	Stats     *Stats

	edited  map[*etree.Element]bool
	aligned map[*etree.Element]bool
	handled map[*etree.Element]bool
	events  []Event
}

// New creates the context of one render. A nil logger discards output and a
// nil config uses the built-in default.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	return &Context{
		ctx:       ctx,
		RequestID: id,
		Logger:    logger.With("request_id", id),
		Config:    cfg,
		Options:   opts,
		Stats:     NewStats(),
		edited:    make(map[*etree.Element]bool),
		aligned:   make(map[*etree.Element]bool),
		handled:   make(map[*etree.Element]bool),
	}
}

// Context returns the caller's context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Check returns a DeadlineError once the caller's context is done.
func (c *Context) Check() error {
	if err := c.ctx.Err(); err != nil {
		return &DeadlineError{Visited: c.Stats.ParagraphsVisited, Err: err}
	}
	return nil
}

// Skip counts a match suppressed by rule.
func (c *Context) Skip(rule string) {
	c.Stats.MatchesSkipped[rule]++
}

// Warn records a recovered problem and logs it.
func (c *Context) Warn(w Warning) {
	c.Stats.Warnings = append(c.Stats.Warnings, w)
	c.Logger.Warn(w.Message, "kind", w.Kind, "key", w.Key, "paragraph", w.Paragraph)
}

// MarkEdited records that p was changed by this render.
func (c *Context) MarkEdited(p *docx.Paragraph) {
	c.edited[p.Element()] = true
}

// Edited reports whether p was changed by this render.
func (c *Context) Edited(p *docx.Paragraph) bool {
	return c.edited[p.Element()]
}

// MarkAligned records that p is a row whose columns are kept by padding.
func (c *Context) MarkAligned(p *docx.Paragraph) {
	c.aligned[p.Element()] = true
}

// Aligned reports whether p is a padded row.
func (c *Context) Aligned(p *docx.Paragraph) bool {
	return c.aligned[p.Element()]
}

// MarkHandled records that p belongs to a table cell the table pass has
// already filled or decided on; the paragraph walker leaves it alone.
func (c *Context) MarkHandled(p *docx.Paragraph) {
	c.handled[p.Element()] = true
}

// Handled reports whether the table pass owns p.
func (c *Context) Handled(p *docx.Paragraph) bool {
	return c.handled[p.Element()]
}

// Record keeps e when tracing is enabled.
func (c *Context) Record(e Event) {
	if c.Options.Trace {
		e.Text = Excerpt(e.Text)
		c.events = append(c.events, e)
	}
}

// Events returns the traced decisions in order.
func (c *Context) Events() []Event {
	return c.events
}

// Excerpt shortens paragraph text for warnings and logs.
func Excerpt(s string) string {
	const limit = 40
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
