package copywriter

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	bracketTagRe    = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	bulletRe        = regexp.MustCompile(`^[-*\x{2022}\s]+`)
	numberingRe     = regexp.MustCompile(`^\d+[).\-]\s*`)
	wrapQuoteRe     = regexp.MustCompile(`^['"“”‘’*_]+|['"“”‘’*_]+$`)
	subjectPrefixRe = regexp.MustCompile(`(?i)^subject:\s*`)
	replyPrefixRe   = regexp.MustCompile(`(?i)^((re|fw|fwd)\s*[:\-]\s*)+`)
)

// NormalizeSubject cleans a model-produced subject line: gateway tags like
// [EXTERNAL], bullets, numbering, wrapping quotes or emphasis, a "Subject:" prefix and
// Re:/Fwd: prefixes are removed until none remain.
func NormalizeSubject(text string) string {
	s := collapseSpaces(text)
	for {
		next := normalizeSubjectOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeSubjectOnce(s string) string {
	for bracketTagRe.MatchString(s) {
		s = strings.TrimSpace(bracketTagRe.ReplaceAllString(s, ""))
	}
	s = strings.TrimSpace(bulletRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(numberingRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(wrapQuoteRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(subjectPrefixRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(replyPrefixRe.ReplaceAllString(s, ""))
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
