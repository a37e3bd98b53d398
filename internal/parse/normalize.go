package parse

import (
	"regexp"
	"strings"
)

var clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

// Normalize canonicalizes raw input for the pattern resolver: full-width
// digits, colons and spaces become their half-width equivalents, and
// colon-separated clock times are rewritten into the 時/分 form the matchers
// expect ("18:30" -> "18時30分"). Total and idempotent.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= '０' && r <= '９':
			return r - '０' + '0'
		case r == '：':
			return ':'
		case r == '　':
			return ' '
		}
		return r
	}, text)
	return clockPattern.ReplaceAllString(mapped, "${1}時${2}分")
}
