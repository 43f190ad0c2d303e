package tenderfill

import (
	"log/slog"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/images"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/reply"
)

// Options holds the configuration of a render.
type Options struct {
	// IncludeImages inserts the profile's qualification scans.
	IncludeImages bool
	// StrictMissing aborts with a MissingFieldError on the first
	// placeholder whose value is missing, instead of recording a warning.
	StrictMissing bool
	// StampSeals places the profile's seal after every seal suffix.
	StampSeals bool
	// DryRun evaluates every match and writes nothing.
	DryRun bool
	// Trace keeps an event for every fill, skip and failure.
	Trace bool

	Config     *config.Config    // nil uses the built-in default
	Logger     *slog.Logger      // nil discards log output
	Classifier images.Classifier // names unlabelled qualification scans, may be nil
	Replies    reply.Generator   // answers response tables, nil leaves them alone
}

// DefaultOptions returns the options used by Open: images included, missing
// values recorded as warnings.
func DefaultOptions() Options {
	return defaultOptions()
}

// defaultOptions returns the default render options.
func defaultOptions() Options {
	return Options{
		IncludeImages: true,
		StrictMissing: false,
		StampSeals:    false,
		DryRun:        false,
		Trace:         false,
	}
}

// clone creates a copy of Options. The configuration is read-only during a
// render and is shared.
func (o Options) clone() Options {
	return o
}

func (o Options) render() render.Options {
	return render.Options{
		IncludeImages: o.IncludeImages,
		StrictMissing: o.StrictMissing,
		StampSeals:    o.StampSeals,
		DryRun:        o.DryRun,
		Trace:         o.Trace,
	}
}
