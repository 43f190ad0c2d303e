package fill

import (
	"strings"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
)

// scope follows the configured sections of one part in document order and
// yields the values in force at each paragraph.
type scope struct {
	scopes []config.Scope
	base   map[string]string
	cur    int // index into scopes, -1 outside every scope
	values map[string]string
}

func newScope(scopes []config.Scope, base map[string]string) *scope {
	return &scope{scopes: scopes, base: base, cur: -1, values: base}
}

// visit moves past p and returns the values to fill p with.
func (s *scope) visit(p *docx.Paragraph) map[string]string {
	if len(s.scopes) == 0 {
		return s.values
	}
	text := p.Text()
	for i, sc := range s.scopes {
		if containsAny(text, sc.Markers) {
			if i != s.cur {
				s.cur, s.values = i, rebind(s.base, sc.Fields)
			}
			return s.values
		}
	}
	if s.cur >= 0 && (p.IsHeading() || containsAny(text, s.scopes[s.cur].Ends)) {
		s.cur, s.values = -1, s.base
	}
	return s.values
}

// name returns the name of the current scope, or "".
func (s *scope) name() string {
	if s.cur < 0 {
		return ""
	}
	return s.scopes[s.cur].Name
}

func rebind(base map[string]string, fields map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, from := range fields {
		if v, ok := base[from]; ok {
			out[k] = v
		} else {
			delete(out, k)
		}
	}
	return out
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}
