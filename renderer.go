package tenderfill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/images"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/reply"
)

// Renderer provides a fluent interface for configuring a render.
// Each configuration method returns a new Renderer instance, making it
// safe for concurrent use and allowing method chaining.
type Renderer struct {
	template string

	prof        *profile.Profile
	profilePath string
	proj        *profile.Project
	projectPath string

	options Options
}

// Open returns a Renderer for the template at path. Nothing is read until
// RenderTo or Inspect is called.
//
// Example:
//
//	stats, err := tenderfill.Open("template.docx").Profile(prof).RenderTo(ctx, "out.docx")
func Open(template string) *Renderer {
	return &Renderer{
		template: template,
		options:  defaultOptions(),
	}
}

// clone creates a shallow copy of the Renderer with a copy of options.
func (r *Renderer) clone() *Renderer {
	return &Renderer{
		template:    r.template,
		prof:        r.prof,
		profilePath: r.profilePath,
		proj:        r.proj,
		projectPath: r.projectPath,
		options:     r.options.clone(),
	}
}

// Profile sets the supplier profile.
func (r *Renderer) Profile(p *profile.Profile) *Renderer {
	n := r.clone()
	n.prof, n.profilePath = p, ""
	return n
}

// ProfileFile loads the supplier profile from a .yaml, .json or .xlsx file
// when the render starts.
func (r *Renderer) ProfileFile(path string) *Renderer {
	n := r.clone()
	n.prof, n.profilePath = nil, path
	return n
}

// Project sets the project context.
func (r *Renderer) Project(p *profile.Project) *Renderer {
	n := r.clone()
	n.proj, n.projectPath = p, ""
	return n
}

// ProjectFile loads the project context from a YAML or JSON file when the
// render starts.
func (r *Renderer) ProjectFile(path string) *Renderer {
	n := r.clone()
	n.proj, n.projectPath = nil, path
	return n
}

// Config replaces the built-in configuration.
func (r *Renderer) Config(cfg *config.Config) *Renderer {
	n := r.clone()
	n.options.Config = cfg
	return n
}

// Logger sets the logger.
func (r *Renderer) Logger(l *slog.Logger) *Renderer {
	n := r.clone()
	n.options.Logger = l
	return n
}

// StrictMissing aborts on the first missing value.
func (r *Renderer) StrictMissing() *Renderer {
	n := r.clone()
	n.options.StrictMissing = true
	return n
}

// WithoutImages leaves the qualification scans out.
func (r *Renderer) WithoutImages() *Renderer {
	n := r.clone()
	n.options.IncludeImages = false
	return n
}

// StampSeals places the profile's seal after every seal suffix.
func (r *Renderer) StampSeals() *Renderer {
	n := r.clone()
	n.options.StampSeals = true
	return n
}

// Classifier sets the classifier of unlabelled qualification scans.
func (r *Renderer) Classifier(c images.Classifier) *Renderer {
	n := r.clone()
	n.options.Classifier = c
	return n
}

// Replies sets the generator that answers response tables.
func (r *Renderer) Replies(g reply.Generator) *Renderer {
	n := r.clone()
	n.options.Replies = g
	return n
}

// Trace keeps an event for every decision; see Inspect.
func (r *Renderer) Trace() *Renderer {
	n := r.clone()
	n.options.Trace = true
	return n
}

// Options returns a copy of the options the render will use.
func (r *Renderer) Options() Options {
	return r.options.clone()
}

// RenderTo runs the render and writes the output document.
func (r *Renderer) RenderTo(ctx context.Context, output string) (*render.Stats, error) {
	prof, proj, err := r.load()
	if err != nil {
		return nil, err
	}
	return Render(ctx, r.template, output, prof, proj, r.options)
}

// Inspect evaluates the template without writing; see the package-level
// Inspect.
func (r *Renderer) Inspect(ctx context.Context) (*render.Stats, []render.Event, error) {
	prof, proj, err := r.load()
	if err != nil {
		return nil, nil, err
	}
	return Inspect(ctx, r.template, prof, proj, r.options)
}

func (r *Renderer) load() (*profile.Profile, *profile.Project, error) {
	prof, proj := r.prof, r.proj
	if r.profilePath != "" {
		var err error
		if prof, err = profile.LoadFile(r.profilePath, r.options.Config); err != nil {
			return nil, nil, fmt.Errorf("loading profile: %w", err)
		}
	}
	if r.projectPath != "" {
		var err error
		if proj, err = profile.LoadProject(r.projectPath); err != nil {
			return nil, nil, fmt.Errorf("loading project: %w", err)
		}
	}
	return prof, proj, nil
}
