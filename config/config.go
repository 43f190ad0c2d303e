// Package config holds the read-only catalogue data used by the filling
// engine: label variants per field, the placeholder pattern table, context
// tokens, whitespace thresholds, image anchors and value formats.
package config

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Shapes understood by the placeholder catalogue.
const (
	ShapeBracket         = "bracket"
	ShapeBracketCombined = "bracket_combined"
	ShapeColonBlank      = "colon_blank"
	ShapeTwoField        = "two_field"
	ShapeBareBlank       = "bare_blank"
	ShapeDate            = "date"
	ShapeSeal            = "seal"
	ShapePrefilled       = "prefilled"
)

// Value formats a field can declare.
const (
	FormatText     = "text"
	FormatDate     = "date"
	FormatCurrency = "currency"
)

// Config is the complete engine configuration.
type Config struct {
	Fields   []Field       `yaml:"fields"`
	Patterns PatternConfig `yaml:"patterns"`
	Context  ContextConfig `yaml:"context"`
	Blanks   BlankConfig   `yaml:"blanks"`
	Tables   TableConfig   `yaml:"tables"`
	Images   ImageConfig   `yaml:"images"`
	Values   ValueConfig   `yaml:"values"`
	Parts    PartConfig    `yaml:"parts"`
	Scopes   []Scope       `yaml:"scopes"`
}

// Field declares a canonical profile key and the labels that name it.
type Field struct {
	Key    string   `yaml:"key"`
	Labels []string `yaml:"labels"`
	Regex  string   `yaml:"regex,omitempty"`  // loose label match for table cells
	Format string   `yaml:"format,omitempty"` // text, date or currency
}

// PatternConfig is the placeholder catalogue.
type PatternConfig struct {
	OverwritePrefilled bool      `yaml:"overwrite_prefilled"`
	Hints              []string  `yaml:"hints"`
	Qualifiers         []string  `yaml:"qualifiers"`
	Seals              []string  `yaml:"seals"`
	Catalogue          []Pattern `yaml:"catalogue"`
}

// Pattern is one entry of the catalogue. Regex is a template: {{labels}},
// {{hints}}, {{qualifiers}}, {{seals}}, {{ws}} and the blank thresholds are
// substituted when the catalogue is compiled.
type Pattern struct {
	ID       string `yaml:"id"`
	Shape    string `yaml:"shape"`
	Priority int    `yaml:"priority"`
	Key      string `yaml:"key,omitempty"` // fixed field for shapes without a label
	Disabled bool   `yaml:"disabled,omitempty"`
	Regex    string `yaml:"regex"`
}

// ContextConfig drives the skip rules.
type ContextConfig struct {
	ProcurerTokens  []string `yaml:"procurer_tokens"`
	SignatureTokens []string `yaml:"signature_tokens"`
	SkipHeadings    bool     `yaml:"skip_headings"`
	SkipCentered    bool     `yaml:"skip_centered"`
	SkipTOC         bool     `yaml:"skip_toc"`
}

// BlankConfig holds whitespace thresholds, in characters or display columns.
type BlankConfig struct {
	LongBlankMin     int `yaml:"long_blank_min"`
	ShortBlankMax    int `yaml:"short_blank_max"`
	TwoFieldGapMin   int `yaml:"two_field_gap_min"`
	MinPadding       int `yaml:"min_padding"`
	TabWidth         int `yaml:"tab_width"`
	CollapseSpacesTo int `yaml:"collapse_spaces_to"`
}

// TableConfig configures the label/value table filler.
type TableConfig struct {
	MinConfidence float64  `yaml:"min_confidence"`
	Fillable      []string `yaml:"fillable"`
	Strip         string   `yaml:"strip"`
}

// ImageConfig configures anchor discovery and picture sizing.
type ImageConfig struct {
	MaxWidthIn          float64     `yaml:"max_width_in"`
	IDCardWidthIn       float64     `yaml:"id_card_width_in"`
	SealWidthIn         float64     `yaml:"seal_width_in"`
	MaxPixelWidth       int         `yaml:"max_pixel_width"`
	DPI                 float64     `yaml:"dpi"`
	AppendixTitle       string      `yaml:"appendix_title"`
	CaptionFormat       string      `yaml:"caption_format"`
	PlaceholderPrefixes []string    `yaml:"placeholder_prefixes"`
	PlaceholderSuffixes []string    `yaml:"placeholder_suffixes"`
	SectionHeadings     []string    `yaml:"section_headings"`
	Kinds               []ImageKind `yaml:"kinds"`
}

// ImageKind is a family of images recognised by markers and keywords.
type ImageKind struct {
	Key      string      `yaml:"key"`
	Caption  string      `yaml:"caption"`
	Markers  []string    `yaml:"markers"`
	Keywords []string    `yaml:"keywords"`
	Sides    []ImageSide `yaml:"sides,omitempty"`
	All      bool        `yaml:"all,omitempty"` // every remaining required image
}

// ImageSide is one picture of a paired image such as an ID card.
type ImageSide struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// ValueConfig controls how profile values are written.
type ValueConfig struct {
	DateLayout        string  `yaml:"date_layout"`
	CurrencyThreshold float64 `yaml:"currency_threshold"`
	CurrencyUnit      string  `yaml:"currency_unit"`
}

// PartConfig selects the parts that are filled.
type PartConfig struct {
	FillHeadersFooters bool `yaml:"fill_headers_footers"`
}

// Scope rebinds field keys inside one section of a document. The section
// starts at a paragraph holding one of Markers and ends at a heading, at a
// paragraph holding one of Ends or at the start of another scope. Inside
// it, Fields maps a key to the key whose value replaces it; a key whose
// source has no value is treated as missing.
type Scope struct {
	Name    string            `yaml:"name"`
	Markers []string          `yaml:"markers"`
	Ends    []string          `yaml:"ends,omitempty"`
	Fields  map[string]string `yaml:"fields"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", err))
	}
	return cfg
}

// Parse decodes data on top of base (or on top of an empty config when base
// is nil), normalises labels and validates the result. base is not modified.
func Parse(data []byte, base *Config) (*Config, error) {
	var cfg Config
	if base != nil {
		cfg = *base.Clone()
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Fields = make([]Field, len(c.Fields))
	for i, f := range c.Fields {
		f.Labels = cloneStrings(f.Labels)
		out.Fields[i] = f
	}
	out.Patterns.Hints = cloneStrings(c.Patterns.Hints)
	out.Patterns.Qualifiers = cloneStrings(c.Patterns.Qualifiers)
	out.Patterns.Seals = cloneStrings(c.Patterns.Seals)
	out.Patterns.Catalogue = append([]Pattern(nil), c.Patterns.Catalogue...)
	out.Context.ProcurerTokens = cloneStrings(c.Context.ProcurerTokens)
	out.Context.SignatureTokens = cloneStrings(c.Context.SignatureTokens)
	out.Tables.Fillable = cloneStrings(c.Tables.Fillable)
	out.Images.PlaceholderPrefixes = cloneStrings(c.Images.PlaceholderPrefixes)
	out.Images.PlaceholderSuffixes = cloneStrings(c.Images.PlaceholderSuffixes)
	out.Images.SectionHeadings = cloneStrings(c.Images.SectionHeadings)
	out.Scopes = make([]Scope, len(c.Scopes))
	for i, sc := range c.Scopes {
		sc.Markers = cloneStrings(sc.Markers)
		sc.Ends = cloneStrings(sc.Ends)
		fields := make(map[string]string, len(sc.Fields))
		for k, v := range sc.Fields {
			fields[k] = v
		}
		sc.Fields = fields
		out.Scopes[i] = sc
	}
	out.Images.Kinds = make([]ImageKind, len(c.Images.Kinds))
	for i, k := range c.Images.Kinds {
		k.Markers = cloneStrings(k.Markers)
		k.Keywords = cloneStrings(k.Keywords)
		k.Sides = append([]ImageSide(nil), k.Sides...)
		out.Images.Kinds[i] = k
	}
	return &out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func (c *Config) normalize() {
	for i := range c.Fields {
		for j, l := range c.Fields[i].Labels {
			c.Fields[i].Labels[j] = norm.NFC.String(strings.TrimSpace(l))
		}
		if c.Fields[i].Format == "" {
			c.Fields[i].Format = FormatText
		}
	}
}

// Validate reports the first invalid entry of the configuration.
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("invalid config: no fields defined")
	}
	keys := make(map[string]bool)
	labels := make(map[string]string)
	for i, f := range c.Fields {
		if f.Key == "" {
			return fmt.Errorf("invalid config: fields[%d]: empty key", i)
		}
		if keys[f.Key] {
			return fmt.Errorf("invalid config: fields[%d]: duplicate key %q", i, f.Key)
		}
		keys[f.Key] = true
		if len(f.Labels) == 0 {
			return fmt.Errorf("invalid config: field %q: no labels", f.Key)
		}
		switch f.Format {
		case FormatText, FormatDate, FormatCurrency:
		default:
			return fmt.Errorf("invalid config: field %q: unknown format %q", f.Key, f.Format)
		}
		for _, l := range f.Labels {
			if l == "" {
				return fmt.Errorf("invalid config: field %q: empty label", f.Key)
			}
			n := NormalizeLabel(l)
			if other, dup := labels[n]; dup && other != f.Key {
				return fmt.Errorf("invalid config: label %q used by both %q and %q", l, other, f.Key)
			}
			labels[n] = f.Key
		}
	}

	ids := make(map[string]bool)
	for i, p := range c.Patterns.Catalogue {
		if p.ID == "" {
			return fmt.Errorf("invalid config: patterns.catalogue[%d]: empty id", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("invalid config: duplicate pattern id %q", p.ID)
		}
		ids[p.ID] = true
		switch p.Shape {
		case ShapeBracket, ShapeBracketCombined, ShapeColonBlank, ShapeTwoField,
			ShapeBareBlank, ShapeDate, ShapeSeal, ShapePrefilled:
		default:
			return fmt.Errorf("invalid config: pattern %q: unknown shape %q", p.ID, p.Shape)
		}
		if p.Priority < 1 {
			return fmt.Errorf("invalid config: pattern %q: priority must be at least 1", p.ID)
		}
		if p.Regex == "" {
			return fmt.Errorf("invalid config: pattern %q: empty regex", p.ID)
		}
		if p.Shape == ShapeDate && p.Key == "" {
			return fmt.Errorf("invalid config: pattern %q: date patterns need a key", p.ID)
		}
	}

	b := c.Blanks
	if b.LongBlankMin < 1 || b.ShortBlankMax < 1 || b.TwoFieldGapMin < 1 {
		return fmt.Errorf("invalid config: blank thresholds must be positive")
	}
	if b.ShortBlankMax >= b.LongBlankMin {
		return fmt.Errorf("invalid config: short_blank_max (%d) must be below long_blank_min (%d)", b.ShortBlankMax, b.LongBlankMin)
	}
	if b.CollapseSpacesTo < 1 {
		return fmt.Errorf("invalid config: collapse_spaces_to must be positive")
	}
	if c.Tables.MinConfidence < 0 || c.Tables.MinConfidence > 1 {
		return fmt.Errorf("invalid config: tables.min_confidence must be within [0, 1]")
	}
	if c.Images.MaxWidthIn <= 0 || c.Images.DPI <= 0 {
		return fmt.Errorf("invalid config: image width and dpi must be positive")
	}
	for i, k := range c.Images.Kinds {
		if k.Key == "" {
			return fmt.Errorf("invalid config: images.kinds[%d]: empty key", i)
		}
	}
	if c.Values.DateLayout == "" {
		return fmt.Errorf("invalid config: values.date_layout is empty")
	}
	for i, sc := range c.Scopes {
		if len(sc.Markers) == 0 || len(sc.Fields) == 0 {
			return fmt.Errorf("invalid config: scopes[%d] %q: markers and fields are required", i, sc.Name)
		}
	}
	return nil
}

// Field returns the field with the given key.
func (c *Config) Field(key string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// LabelIndex maps every normalised label to its field key.
func (c *Config) LabelIndex() map[string]string {
	idx := make(map[string]string)
	for _, f := range c.Fields {
		for _, l := range f.Labels {
			idx[NormalizeLabel(l)] = f.Key
		}
	}
	return idx
}

// Labels returns every label of every field.
func (c *Config) Labels() []string {
	var out []string
	for _, f := range c.Fields {
		out = append(out, f.Labels...)
	}
	return out
}

// NormalizeLabel folds a label to the form used for lookups: NFC, narrow
// forms of full-width ASCII, lower case and no surrounding blanks.
// Full-width brackets and colons fold to their ASCII forms.
func NormalizeLabel(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, "　", " ")
	return strings.ToLower(strings.TrimSpace(s))
}
