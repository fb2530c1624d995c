package chat

import (
	"regexp"
	"strings"
)

var specialToken = regexp.MustCompile(`<\|[^|]+\|>`)

var sentinelLiterals = []string{"</s>", "<s>"}

// Sanitize strips model boundary markers (<|...|>, <s>, </s>) and surrounding
// whitespace. Removal runs to a fixed point, so a marker spliced together by an
// earlier removal is removed as well and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	for {
		next := specialToken.ReplaceAllString(text, "")
		for _, lit := range sentinelLiterals {
			next = strings.ReplaceAll(next, lit, "")
		}
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(text)
}
