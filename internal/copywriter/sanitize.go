package copywriter

import (
	"regexp"
	"strings"
)

// signOffWindow is how many trailing lines are searched for a sign-off.
const signOffWindow = 8

var (
	lineBreakTagRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	leadingSubjectRe = regexp.MustCompile(`(?i)^Subject:\s*`)
	separatorRe      = regexp.MustCompile(`^(?:[-_*]{3,}|(?:\*\s*){3,}|(?:—\s*){3,})$`)
	signOffRe        = regexp.MustCompile(`(?i)^(best|all the best|best regards|warm regards|kind regards|regards|warmly|many thanks|thanks|thanks again|thank you|with gratitude|sincerely|yours truly|cheers|respectfully),?$`)
	placeholderRe    = regexp.MustCompile(`(?i)^(?:\[\s*(?:your name|sender name|name)\s*\]|\{\s*(?:your name|sender name|name)\s*\}|your name|sender name|name)$`)
)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// CleanBody removes leaked subject headers, sign-offs, separators and
// placeholder names from an email body. The result is a fixed point:
// CleanBody(CleanBody(s)) == CleanBody(s).
func CleanBody(text string) string {
	s := lineBreakTagRe.ReplaceAllString(normalizeNewlines(text), "\n")
	// each pass only removes text, so this terminates
	for {
		next := StripTrailingSignature(StripLeadingSubject(s))
		if next == s {
			return next
		}
		s = next
	}
}

// StripLeadingSubject drops consecutive "Subject:" lines at the top of a body
// together with the blank lines that follow them.
func StripLeadingSubject(text string) string {
	s := strings.TrimSpace(normalizeNewlines(text))
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	i := 0
	for i < len(lines) && leadingSubjectRe.MatchString(strings.TrimSpace(lines[i])) {
		i++
	}
	if i == 0 {
		return s
	}
	for i < len(lines) && isBlank(lines[i]) {
		i++
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// StripTrailingSignature trims separators, a sign-off block and unfilled
// sender placeholders from the end of a body.
func StripTrailingSignature(text string) string {
	s := normalizeNewlines(text)
	if isBlank(s) {
		return ""
	}
	lines := strings.Split(s, "\n")
	lines = dropTrailingBlank(lines)

	for len(lines) > 0 && separatorRe.MatchString(strings.TrimSpace(lines[len(lines)-1])) {
		lines = dropTrailingBlank(lines[:len(lines)-1])
	}

	start := len(lines) - signOffWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < len(lines); i++ {
		if signOffRe.MatchString(strings.TrimSpace(lines[i])) {
			lines = lines[:i]
			break
		}
	}

	lines = dropTrailingBlank(lines)
	for len(lines) > 0 && placeholderRe.MatchString(strings.TrimSpace(lines[len(lines)-1])) {
		lines = dropTrailingBlank(lines[:len(lines)-1])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func dropTrailingBlank(lines []string) []string {
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// EndsWithSignature reports whether the last line of body is a sign-off or separator.
func EndsWithSignature(body string) bool {
	lines := dropTrailingBlank(strings.Split(normalizeNewlines(body), "\n"))
	if len(lines) == 0 {
		return false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	return signOffRe.MatchString(last) || separatorRe.MatchString(last)
}
