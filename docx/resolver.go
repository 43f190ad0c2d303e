package docx

import (
	"strconv"
	"strings"
)

// ResolvedStyle contains the resolved paragraph-level properties of a style.
type ResolvedStyle struct {
	ID   string
	Name string
	Type string // paragraph, character, table

	IsHeading    bool
	HeadingLevel int // 1-9, 0 if not a heading
	IsTOC        bool

	Alignment string // left, center, right, both (justify)
}

// StyleResolver resolves styles with inheritance support.
type StyleResolver struct {
	styles   map[string]*styleDefXML
	resolved map[string]*ResolvedStyle
}

// NewStyleResolver creates a new style resolver from parsed styles.
func NewStyleResolver(styles *stylesXML) *StyleResolver {
	sr := &StyleResolver{
		styles:   make(map[string]*styleDefXML),
		resolved: make(map[string]*ResolvedStyle),
	}
	if styles == nil {
		return sr
	}
	for i := range styles.Styles {
		style := &styles.Styles[i]
		sr.styles[style.StyleID] = style
	}
	return sr
}

// Resolve returns the resolved style for the given style ID.
// If the style doesn't exist, returns a default style.
func (sr *StyleResolver) Resolve(styleID string) *ResolvedStyle {
	if resolved, ok := sr.resolved[styleID]; ok {
		return resolved
	}

	resolved := &ResolvedStyle{ID: styleID, Alignment: "left"}
	styleDef, ok := sr.styles[styleID]
	if !ok {
		// Built-in styles are often referenced without a definition.
		resolved.IsHeading, resolved.HeadingLevel = detectBuiltInHeading(styleID)
		resolved.IsTOC = isTOCStyle(styleID)
		sr.resolved[styleID] = resolved
		return resolved
	}

	resolved.Name = styleDef.Name.Val
	resolved.Type = styleDef.Type

	var outline string
	for _, sid := range sr.buildInheritanceChain(styleID) {
		def, ok := sr.styles[sid]
		if !ok {
			continue
		}
		if v := def.PPr.Justification.Val; v != "" {
			resolved.Alignment = v
		}
		if v := def.PPr.OutlineLvl.Val; v != "" {
			outline = v
		}
	}

	resolved.IsHeading, resolved.HeadingLevel = sr.detectHeading(styleDef, outline)
	resolved.IsTOC = isTOCStyle(styleID) || isTOCStyle(styleDef.Name.Val)

	sr.resolved[styleID] = resolved
	return resolved
}

// buildInheritanceChain returns style IDs from base to derived.
func (sr *StyleResolver) buildInheritanceChain(styleID string) []string {
	var chain []string
	visited := make(map[string]bool)

	current := styleID
	for current != "" && !visited[current] {
		visited[current] = true
		chain = append([]string{current}, chain...)

		if def, ok := sr.styles[current]; ok {
			current = def.BasedOn.Val
		} else {
			break
		}
	}

	return chain
}

// detectHeading determines if a style represents a heading.
func (sr *StyleResolver) detectHeading(def *styleDefXML, outline string) (bool, int) {
	if isHeading, level := detectBuiltInHeading(def.StyleID); isHeading {
		return true, level
	}

	name := strings.ToLower(def.Name.Val)
	if strings.HasPrefix(name, "heading") {
		for i := 1; i <= 9; i++ {
			if strings.Contains(name, strconv.Itoa(i)) {
				return true, i
			}
		}
		return true, 1
	}

	if outline != "" {
		level := parseOutlineLevel(outline)
		if level >= 0 && level <= 8 {
			return true, level + 1 // OutlineLvl is 0-based
		}
	}

	return false, 0
}

// detectBuiltInHeading checks for Word's built-in heading style IDs.
func detectBuiltInHeading(styleID string) (bool, int) {
	id := strings.ToLower(styleID)

	headingMap := map[string]int{
		"heading1": 1, "heading2": 2, "heading3": 3,
		"heading4": 4, "heading5": 5, "heading6": 6,
		"heading7": 7, "heading8": 8, "heading9": 9,
		"title": 1, "subtitle": 2,
	}

	if level, ok := headingMap[id]; ok {
		return true, level
	}

	return false, 0
}

// isTOCStyle matches Word's TOC styles by id ("TOC1") or by name ("toc 1").
func isTOCStyle(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "toc") || strings.HasPrefix(s, "目录")
}

// parseOutlineLevel parses an outline level string to an integer.
func parseOutlineLevel(s string) int {
	if s == "" {
		return -1
	}
	level := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		level = level*10 + int(c-'0')
	}
	if level <= 8 {
		return level
	}
	return -1
}
