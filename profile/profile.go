// Package profile holds the supplier profile and project context a render
// fills into a template, and resolves the display value of every field key.
//
// Profiles arrive from several sources with different key conventions. They
// are canonicalised once, when built: nested sections are flattened to dotted
// keys, legacy and Chinese keys are mapped to the canonical keys of the
// field table, and both ID card naming schemes collapse to
// legal_id_* / auth_id_*. Consumers only ever see canonical keys.
package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/tenderfill/config"
)

// Image keys of the ID card scans.
const (
	LegalIDFront = "legal_id_front"
	LegalIDBack  = "legal_id_back"
	AuthIDFront  = "auth_id_front"
	AuthIDBack   = "auth_id_back"
)

// Qualification is a certificate scan supplied with the profile.
type Qualification struct {
	Key      string `yaml:"key" json:"key"`
	FilePath string `yaml:"file_path" json:"file_path"`
	Hint     string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Name returns the text used to caption the qualification.
func (q Qualification) Name() string {
	if q.Hint != "" {
		return q.Hint
	}
	return q.Key
}

// Profile is a canonicalised supplier profile. It is read-only during a render.
type Profile struct {
	// Fields maps canonical field keys to plain values.
	Fields map[string]string
	// Images maps image keys (legal_id_front, business_license, ...) to files.
	Images map[string]string
	// Seals lists seal image files, the first one is stamped.
	Seals          []string
	Qualifications []Qualification
}

// New returns an empty profile.
func New() *Profile {
	return &Profile{Fields: make(map[string]string), Images: make(map[string]string)}
}

// Value returns the raw value of a field.
func (p *Profile) Value(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.Fields[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Image returns the file of an image key. Qualifications whose key matches
// are consulted after the image table.
func (p *Profile) Image(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	if path := p.Images[key]; path != "" {
		return path, true
	}
	for _, q := range p.Qualifications {
		if q.Key == key && q.FilePath != "" {
			return q.FilePath, true
		}
	}
	return "", false
}

// Keys returns the field keys with a value, sorted.
func (p *Profile) Keys() []string {
	keys := make([]string, 0, len(p.Fields))
	for k, v := range p.Fields {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Project is the context of the solicitation being answered.
type Project struct {
	Name                   string            `yaml:"project_name" json:"project_name"`
	Number                 string            `yaml:"project_number" json:"project_number"`
	BidDate                string            `yaml:"bid_date" json:"bid_date"`
	RequiredQualifications []string          `yaml:"required_qualifications" json:"required_qualifications"`
	Extra                  map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Value returns a project field by its canonical key.
func (p *Project) Value(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	var v string
	switch key {
	case "project_name":
		v = p.Name
	case "project_number":
		v = p.Number
	case "bid_date":
		v = p.BidDate
	default:
		v = p.Extra[key]
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// projectKeys are resolved from the project context before the profile.
var projectKeys = map[string]bool{"project_name": true, "project_number": true, "bid_date": true}

// keyAliases maps legacy keys to canonical ones. Keys are compared after
// flattening, so nested sections appear in dotted form.
var keyAliases = map[string]string{
	"name":                           "company_name",
	"company":                        "company_name",
	"supplier_name":                  "company_name",
	"credit_code":                    "unified_social_credit_code",
	"social_credit_code":             "unified_social_credit_code",
	"uscc":                           "unified_social_credit_code",
	"legal_person":                   "legal_representative",
	"legal_rep":                      "legal_representative",
	"legal_representative_name":      "legal_representative",
	"legal_representative_position":  "legal_representative.position",
	"zip":                            "postal_code",
	"zip_code":                       "postal_code",
	"postcode":                       "postal_code",
	"telephone":                      "phone",
	"tel":                            "phone",
	"mail":                           "email",
	"e-mail":                         "email",
	"contact":                        "contact_person",
	"authorized_person":              "authorized_representative",
	"authorized_representative_name": "authorized_representative",
	"agent":                          "authorized_representative",
	"bank":                           "bank_name",
	"account":                        "bank_account",
	"capital":                        "registered_capital",
	"founded":                        "established_date",
	"established":                    "established_date",

	"id_card_front":                      AuthIDFront,
	"id_card_back":                       AuthIDBack,
	"legal_representative.id_front":      LegalIDFront,
	"legal_representative.id_back":       LegalIDBack,
	"authorized_representative.id_front": AuthIDFront,
	"authorized_representative.id_back":  AuthIDBack,
	"legal_id.front":                     LegalIDFront,
	"legal_id.back":                      LegalIDBack,
	"auth_id.front":                      AuthIDFront,
	"auth_id.back":                       AuthIDBack,
}

// imageKeys are top-level keys whose values are files rather than text.
var imageKeys = map[string]bool{
	LegalIDFront:       true,
	LegalIDBack:        true,
	AuthIDFront:        true,
	AuthIDBack:         true,
	"business_license": true,
}

// FromMap builds a canonical profile from decoded YAML, JSON or sheet data.
// Chinese keys are mapped through the field labels of cfg; a nil cfg uses
// the built-in configuration.
func FromMap(m map[string]any, cfg *config.Config) (*Profile, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	labels := cfg.LabelIndex()

	p := New()
	for _, k := range sortedKeys(m) {
		v := m[k]
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "seals", "seal", "公章":
			seals, err := stringList(v)
			if err != nil {
				return nil, fmt.Errorf("seals: %w", err)
			}
			p.Seals = append(p.Seals, seals...)
			continue
		case "qualifications", "资质":
			qs, err := qualificationList(v)
			if err != nil {
				return nil, fmt.Errorf("qualifications: %w", err)
			}
			p.Qualifications = append(p.Qualifications, qs...)
			continue
		case "images", "图片":
			sub, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("images: want a mapping, got %T", v)
			}
			for ik, iv := range sub {
				p.Images[canonicalKey(ik, labels)] = scalar(iv)
			}
			continue
		}
		flat := make(map[string]string)
		if err := flatten(k, v, flat); err != nil {
			return nil, err
		}
		for fk, fv := range flat {
			p.Set(canonicalKey(fk, labels), fv)
		}
	}
	return p, nil
}

// Set stores a canonical key, routing image keys to the image table.
func (p *Profile) Set(key, value string) {
	value = norm.NFC.String(strings.TrimSpace(value))
	if imageKeys[key] {
		p.Images[key] = value
		return
	}
	if old, ok := p.Fields[key]; ok && old != "" && value == "" {
		return
	}
	p.Fields[key] = value
}

// canonicalKey maps a flattened key to its canonical form.
func canonicalKey(k string, labels map[string]string) string {
	k = strings.TrimSpace(k)
	lower := strings.ToLower(k)
	if a, ok := keyAliases[lower]; ok {
		return a
	}
	if strings.HasSuffix(lower, ".name") {
		base := strings.TrimSuffix(lower, ".name")
		if a, ok := keyAliases[base]; ok {
			return a
		}
		return base
	}
	if key, ok := labels[config.NormalizeLabel(k)]; ok {
		return key
	}
	return lower
}

// flatten writes v under prefix, joining nested mapping keys with dots.
func flatten(prefix string, v any, out map[string]string) error {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if err := flatten(prefix+"."+k, sub, out); err != nil {
				return err
			}
		}
	case []any:
		return fmt.Errorf("%s: lists are only allowed for seals and qualifications", prefix)
	default:
		out[prefix] = scalar(v)
	}
	return nil
}

// scalar renders a decoded scalar the way it was written.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}

func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s := strings.TrimSpace(scalar(e))
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("want a list of strings, got %T", v)
}

func qualificationList(v any) ([]Qualification, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("want a list, got %T", v)
	}
	out := make([]Qualification, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("[%d]: want a mapping, got %T", i, e)
		}
		q := Qualification{
			Key:      strings.TrimSpace(scalar(m["key"])),
			FilePath: strings.TrimSpace(firstNonEmpty(scalar(m["file_path"]), scalar(m["path"]), scalar(m["file"]))),
			Hint:     strings.TrimSpace(firstNonEmpty(scalar(m["hint"]), scalar(m["name"]))),
		}
		if q.FilePath == "" {
			return nil, fmt.Errorf("[%d]: file_path is empty", i)
		}
		out = append(out, q)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
