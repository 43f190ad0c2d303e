package profile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tsawler/tenderfill/config"
)

// Values resolves the display value of field keys: project keys from the
// project context, everything else from the profile, formatted according to
// the field's declared format.
type Values struct {
	profile *Profile
	project *Project
	cfg     *config.Config
}

// NewValues returns a resolver over profile and project. Either may be nil.
func NewValues(p *Profile, proj *Project, cfg *config.Config) *Values {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Values{profile: p, project: proj, cfg: cfg}
}

// Lookup returns the formatted value of key. A key with no value reports
// false; callers treat it as missing.
func (v *Values) Lookup(key string) (string, bool) {
	raw, ok := v.raw(key)
	if !ok {
		return "", false
	}
	format := config.FormatText
	if f, ok := v.cfg.Field(key); ok {
		format = f.Format
	}
	switch format {
	case config.FormatDate:
		return FormatDate(raw, v.cfg.Values.DateLayout), true
	case config.FormatCurrency:
		return FormatCurrency(raw, v.cfg.Values.CurrencyThreshold, v.cfg.Values.CurrencyUnit), true
	}
	return raw, true
}

func (v *Values) raw(key string) (string, bool) {
	if projectKeys[key] {
		if s, ok := v.project.Value(key); ok {
			return s, true
		}
		return v.profile.Value(key)
	}
	if s, ok := v.profile.Value(key); ok {
		return s, true
	}
	return v.project.Value(key)
}

// Map returns the formatted value of every configured field that resolves.
func (v *Values) Map() map[string]string {
	out := make(map[string]string, len(v.cfg.Fields))
	for _, f := range v.cfg.Fields {
		if s, ok := v.Lookup(f.Key); ok {
			out[f.Key] = s
		}
	}
	if v.profile != nil {
		for k := range v.profile.Fields {
			if _, done := out[k]; done {
				continue
			}
			if s, ok := v.Lookup(k); ok {
				out[k] = s
			}
		}
	}
	return out
}

// dateLayouts are the input forms a date value is accepted in.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年01月02日",
	"2006年1月2日",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses a date written in any accepted form, including an Excel
// serial day number.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Spreadsheet cells hold dates as serial day numbers.
	if len(s) <= 6 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// FormatDate rewrites a date in layout. Values that do not parse as a date
// are returned unchanged.
func FormatDate(s, layout string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return t.Format(layout)
}

// FormatCurrency renders an amount in yuan as "X.XX <unit>" (ten thousands)
// when it reaches threshold. Smaller amounts and values that are not plain
// numbers are returned unchanged.
func FormatCurrency(s string, threshold float64, unit string) string {
	s = strings.TrimSpace(s)
	num := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "人民币元"), "元"))
	num = strings.ReplaceAll(num, ",", "")
	num = strings.ReplaceAll(num, "，", "")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || threshold <= 0 || f < threshold {
		return s
	}
	return fmt.Sprintf("%.2f %s", f/10000, unit)
}
