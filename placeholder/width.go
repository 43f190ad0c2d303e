package placeholder

import (
	"strings"

	"golang.org/x/text/width"
)

// Width returns the display width of s in columns: wide and full-width
// characters take two columns, a tab takes tabWidth, everything else one.
func Width(s string, tabWidth int) int {
	n := 0
	for _, r := range s {
		switch {
		case r == '\t':
			n += tabWidth
		case r == '\n':
		default:
			switch width.LookupRune(r).Kind() {
			case width.EastAsianWide, width.EastAsianFullwidth:
				n += 2
			default:
				n++
			}
		}
	}
	return n
}

// Pad appends spaces to s until it is target columns wide, with at least
// minPad spaces.
func Pad(s string, target, minPad, tabWidth int) string {
	pad := target - Width(s, tabWidth)
	if pad < minPad {
		pad = minPad
	}
	return s + strings.Repeat(" ", pad)
}
