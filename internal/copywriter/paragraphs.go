package copywriter

import (
	"regexp"
	"strings"
	"unicode"
)

// InitialParagraphs is the paragraph count of every initial email body.
const InitialParagraphs = 3

const (
	splitTargetRatio = 0.55
	minSplitSide     = 20
)

var (
	paragraphBreakRe = regexp.MustCompile(`\n\s*\n+`)
	innerBreakRe     = regexp.MustCompile(`\s*\n\s*`)
	blankRunRe       = regexp.MustCompile(`\n\n+`)
	sentenceEndRe    = regexp.MustCompile(`[.!?]\s+`)
	clauseSplitRe    = regexp.MustCompile(`^(.{25,140}?[:;])\s+(.{20,})$`)
	greetingLineRe   = regexp.MustCompile(`(?i)^(hi|hello|hey|dear)\b[^\n]{0,60},$`)
)

// SplitParagraphs splits on blank lines and flows every paragraph onto one line.
func SplitParagraphs(body string) []string {
	s := strings.TrimSpace(lineBreakTagRe.ReplaceAllString(normalizeNewlines(body), "\n"))
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range paragraphBreakRe.Split(s, -1) {
		p = collapseSpaces(innerBreakRe.ReplaceAllString(p, " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MergeParagraphs is SplitParagraphs capped at slots entries; overflow
// paragraphs are joined into the last one.
func MergeParagraphs(body string, slots int) []string {
	return mergeTail(SplitParagraphs(body), slots)
}

// NormalizeLineBreaks turns <br> tags and CR line endings into plain LF.
func NormalizeLineBreaks(s string) string {
	return normalizeNewlines(lineBreakTagRe.ReplaceAllString(s, "\n"))
}

func CountParagraphs(body string) int { return len(SplitParagraphs(body)) }

func CountWords(s string) int { return len(strings.Fields(s)) }

// EnforceBodyParagraphs reshapes body into exactly target paragraphs when the
// text allows it. Extra paragraphs are merged into the last slot; missing ones
// are produced by splitting at sentence or clause boundaries. Text is never
// dropped.
func EnforceBodyParagraphs(body string, target int) string {
	if target <= 0 {
		return strings.TrimSpace(body)
	}
	parts := mergeTail(SplitParagraphs(body), target)
	for len(parts) < target {
		next, ok := splitFirst(parts)
		if !ok {
			break
		}
		parts = next
	}
	return strings.Join(mergeTail(parts, target), "\n\n")
}

// EnforceEmailParagraphs is EnforceBodyParagraphs for a full email: a leading
// greeting line ("Hi Sarah,") is kept verbatim and not counted.
func EnforceEmailParagraphs(email string, target int) string {
	s := strings.TrimSpace(normalizeNewlines(email))
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	greeting := strings.TrimRightFunc(lines[0], unicode.IsSpace)
	if !greetingLineRe.MatchString(strings.TrimSpace(greeting)) {
		return EnforceBodyParagraphs(s, target)
	}
	body := EnforceBodyParagraphs(strings.Join(lines[1:], "\n"), target)
	if body == "" {
		return greeting
	}
	return greeting + "\n\n" + body
}

// FollowUpTargetParagraphs returns the paragraph count for follow-up idx
// (1-based) of a sequence with total follow-ups.
func FollowUpTargetParagraphs(idx, total int) int {
	switch {
	case idx <= 0:
		return 2
	case total <= 0:
		return 0
	case total == 3 && idx == 3:
		return 1
	case total >= 4 && idx == total:
		return 1
	}
	return 2
}

// TrimToWordBudget drops trailing paragraphs while the body has at least limit
// words and more than one paragraph.
func TrimToWordBudget(body string, limit int) string {
	if limit <= 0 || CountWords(body) < limit {
		return body
	}
	parts := blankRunRe.Split(normalizeNewlines(body), -1)
	for len(parts) > 1 && CountWords(strings.Join(parts, "\n\n")) >= limit {
		parts = parts[:len(parts)-1]
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func mergeTail(parts []string, target int) []string {
	if target <= 0 || len(parts) <= target {
		return parts
	}
	out := make([]string, 0, target)
	out = append(out, parts[:target-1]...)
	return append(out, strings.Join(parts[target-1:], " "))
}

// splitFirst splits the first paragraph that has a usable boundary.
func splitFirst(parts []string) ([]string, bool) {
	for i, p := range parts {
		left, right, ok := splitParagraph(p)
		if !ok {
			continue
		}
		out := make([]string, 0, len(parts)+1)
		out = append(out, parts[:i]...)
		out = append(out, left, right)
		return append(out, parts[i+1:]...), true
	}
	return parts, false
}

func splitParagraph(p string) (string, string, bool) {
	n := len(p)
	target := int(float64(n) * splitTargetRatio)
	best, bestDist := -1, 0
	for _, m := range sentenceEndRe.FindAllStringIndex(p, -1) {
		idx := m[0] + 1
		if idx <= minSplitSide || idx >= n-minSplitSide {
			continue
		}
		d := idx - target
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = idx, d
		}
	}
	if best > 0 {
		left, right := strings.TrimSpace(p[:best]), strings.TrimSpace(p[best:])
		if left != "" && right != "" {
			return left, right, true
		}
	}
	if m := clauseSplitRe.FindStringSubmatch(p); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", "", false
}
