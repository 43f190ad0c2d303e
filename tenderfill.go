// Package tenderfill fills Chinese tender response templates (.docx) with a
// supplier profile and project context.
//
// Basic usage:
//
//	stats, err := tenderfill.Render(ctx, "template.docx", "out.docx", prof, proj, tenderfill.DefaultOptions())
//	if err != nil {
//	    // handle error
//	}
//	for _, w := range stats.Warnings {
//	    log.Println(w)
//	}
//
// With the fluent API:
//
//	stats, err := tenderfill.Open("template.docx").
//	    ProfileFile("supplier.yaml").
//	    ProjectFile("project.yaml").
//	    StrictMissing().
//	    StampSeals().
//	    RenderTo(ctx, "out.docx")
//
// A render fills placeholders paragraph by paragraph and table by table,
// answers response tables when a reply generator is given, inserts the
// qualification scans, tidies the edited paragraphs and writes the output
// atomically. The template is never modified.
package tenderfill

import (
	"context"
	"errors"
	"time"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/fill"
	"github.com/tsawler/tenderfill/format"
	"github.com/tsawler/tenderfill/images"
	"github.com/tsawler/tenderfill/postprocess"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/reply"
)

// Render fills template with prof and proj and writes the result to output.
//
// Fatal errors (a TemplateError, a MissingFieldError in strict mode, a
// DeadlineError, a WriteError) leave no output. Images that could not be
// inserted do not stop the render: the document is written and the
// ImageErrors are returned joined, along with the statistics.
func Render(ctx context.Context, template, output string, prof *profile.Profile, proj *profile.Project, opts Options) (*render.Stats, error) {
	rc, err := run(ctx, template, output, prof, proj, opts)
	if rc == nil {
		return nil, err
	}
	return rc.Stats, err
}

// Inspect evaluates template without writing anything and returns the
// statistics and the trace of every decision.
func Inspect(ctx context.Context, template string, prof *profile.Profile, proj *profile.Project, opts Options) (*render.Stats, []render.Event, error) {
	opts.DryRun, opts.Trace = true, true
	rc, err := run(ctx, template, "", prof, proj, opts)
	if rc == nil {
		return nil, nil, err
	}
	return rc.Stats, rc.Events(), err
}

// CheckTemplate reports whether path is a .docx package a render can open.
func CheckTemplate(path string) error {
	info, err := format.DetectFile(path)
	if err != nil {
		return &docx.TemplateError{Path: path, Detail: "unreadable", Err: err}
	}
	if reason := info.Describe(); reason != "" {
		return &docx.TemplateError{Path: path, Detail: reason}
	}
	return nil
}

func run(ctx context.Context, template, output string, prof *profile.Profile, proj *profile.Project, opts Options) (*render.Context, error) {
	if err := CheckTemplate(template); err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prof == nil {
		prof = profile.New()
	}

	logger := opts.Logger
	if logger != nil {
		logger = logger.With("template", template)
	}
	rc := render.New(ctx, cfg, logger, opts.render())
	start := time.Now()
	rc.Logger.Info("render started", "output", output, "dry_run", opts.DryRun)

	pkg, err := docx.Open(template)
	if err != nil {
		return rc, err
	}
	defer pkg.Close()

	d, err := fill.New(rc, profile.NewValues(prof, proj, cfg).Map())
	if err != nil {
		return rc, err
	}
	parts := fill.Parts(rc, pkg)
	if err := d.Fill(parts); err != nil {
		return rc, err
	}

	if opts.Replies != nil {
		rf, err := reply.NewFiller(rc, opts.Replies)
		if err != nil {
			return rc, err
		}
		if err := rf.Fill(parts); err != nil {
			return rc, err
		}
	}

	var imageErrs []error
	if !opts.DryRun && (opts.IncludeImages || opts.StampSeals) {
		in := images.New(rc, pkg, d.Catalogue(), prof, proj, opts.Classifier)
		if opts.IncludeImages {
			if err := in.Insert(); err != nil {
				return rc, err
			}
		}
		if opts.StampSeals {
			if err := in.StampSeals(); err != nil {
				return rc, err
			}
		}
		for _, e := range in.Errors() {
			imageErrs = append(imageErrs, e)
		}
	}

	if err := postprocess.New(rc).Run(parts); err != nil {
		return rc, err
	}

	if !opts.DryRun {
		if err := pkg.Save(output); err != nil {
			return rc, err
		}
	}

	s := rc.Stats
	rc.Logger.Info("render finished",
		"duration", time.Since(start),
		"paragraphs", s.ParagraphsVisited,
		"found", s.MatchesFound,
		"filled", s.MatchesFilled,
		"skipped", s.Skipped(),
		"images", s.ImagesInserted,
		"post_process_edits", s.PostProcessEdits,
		"warnings", len(s.Warnings))
	return rc, errors.Join(imageErrs...)
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	prof := tenderfill.Must(profile.LoadFile("supplier.yaml", nil))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
