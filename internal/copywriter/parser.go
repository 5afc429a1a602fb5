package copywriter

import (
	"fmt"
	"regexp"
	"strings"

	"coldmail-copywriter/internal/domain/model"
)

// Block is one email as found in raw model output. Subject is raw; callers normalize it.
type Block struct {
	Label   string
	Subject string
	Body    string
}

var (
	typedHeaderRe   = regexp.MustCompile(`(?i)^Type:\s*(.+?)\s*\|\s*Subject:\s*(.*)$`)
	subjectHeaderRe = regexp.MustCompile(`(?i)^Subject:\s*(.*)$`)
	typeLineRe      = regexp.MustCompile(`(?i)^Type:\s*`)
	greetingRe      = regexp.MustCompile(`(?i)^Hi(\s+[^,\n]{1,40})?,\s*$`)
)

// parseStrategy splits raw output into blocks. Strategies are tried in order
// and the first accepted result wins.
type parseStrategy interface {
	name() string
	parse(text string, maxEmails int) []Block
	accepts(blocks []Block, expectedFollowUps int) bool
}

var parseStrategies = []parseStrategy{headerStrategy{}, greetingStrategy{}}

// ParseEmails splits model output into an initial email followed by
// follow-ups. It never fails: when nothing is recognised it returns no
// blocks and the caller uses the whole text as the initial body.
func ParseEmails(text string, expectedFollowUps int) []Block {
	blocks, _ := parseWithStrategy(text, expectedFollowUps)
	return blocks
}

func parseWithStrategy(text string, expectedFollowUps int) ([]Block, string) {
	if expectedFollowUps < 0 {
		expectedFollowUps = 0
	}
	var primary []Block
	for i, s := range parseStrategies {
		blocks := s.parse(text, 1+expectedFollowUps)
		if i == 0 {
			primary = blocks
		}
		if s.accepts(blocks, expectedFollowUps) {
			return blocks, s.name()
		}
	}
	if len(primary) == 0 {
		return nil, "raw"
	}
	return primary, parseStrategies[0].name()
}

// headerStrategy reads "Type: <label> | Subject: <text>" and "Subject: <text>" headers.
type headerStrategy struct{}

func (headerStrategy) name() string { return "header" }

func (headerStrategy) accepts(blocks []Block, expectedFollowUps int) bool {
	return len(blocks) >= 2 || (len(blocks) == 1 && expectedFollowUps <= 0)
}

func (headerStrategy) parse(text string, _ int) []Block {
	raw := strings.TrimSpace(normalizeNewlines(text))
	if raw == "" {
		return nil
	}

	var (
		out  []Block
		cur  *Block
		body []string
	)
	push := func() {
		if cur == nil {
			return
		}
		b := Block{
			Label:   strings.TrimSpace(cur.Label),
			Subject: strings.TrimSpace(cur.Subject),
			Body:    strings.TrimSpace(strings.Join(body, "\n")),
		}
		if b.Subject != "" || b.Body != "" {
			out = append(out, b)
		}
		cur, body = nil, nil
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if label, subject, ok := parseHeaderLine(trimmed); ok {
			push()
			cur = &Block{Label: label, Subject: subject}
			continue
		}
		if cur != nil && cur.Label == "" && typeLineRe.MatchString(trimmed) {
			cur.Label = strings.TrimSpace(typeLineRe.ReplaceAllString(trimmed, ""))
			continue
		}
		if cur == nil {
			cur = &Block{}
		}
		body = append(body, line)
	}
	push()
	return out
}

func parseHeaderLine(line string) (label, subject string, ok bool) {
	if line == "" {
		return "", "", false
	}
	if m := typedHeaderRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	if m := subjectHeaderRe.FindStringSubmatch(line); m != nil {
		return "", strings.TrimSpace(m[1]), true
	}
	return "", "", false
}

// greetingStrategy segments output on repeated "Hi <name>," lines.
type greetingStrategy struct{}

func (greetingStrategy) name() string { return "greeting" }

func (greetingStrategy) accepts(blocks []Block, _ int) bool { return len(blocks) >= 2 }

func (greetingStrategy) parse(text string, maxEmails int) []Block {
	segments := splitByGreeting(text, maxEmails)
	if len(segments) < 2 {
		return nil
	}
	out := make([]Block, 0, len(segments))
	for i, seg := range segments {
		pos := model.InitialPosition()
		if i > 0 {
			pos = model.FollowUpPosition(i)
		}
		out = append(out, Block{Label: pos.Label(), Body: seg})
	}
	return out
}

func splitByGreeting(text string, maxEmails int) []string {
	raw := strings.TrimSpace(normalizeNewlines(text))
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	var starts []int
	for i, l := range lines {
		if greetingRe.MatchString(strings.TrimSpace(l)) {
			starts = append(starts, i)
		}
	}
	// a single greeting is one email, not a sequence
	if len(starts) < 2 {
		return nil
	}

	var segments []string
	for s, start := range starts {
		end := len(lines)
		if s+1 < len(starts) {
			end = starts[s+1]
		}
		if seg := strings.TrimSpace(strings.Join(lines[start:end], "\n")); seg != "" {
			segments = append(segments, seg)
		}
	}
	if maxEmails <= 0 || len(segments) <= maxEmails {
		return segments
	}
	head := segments[:maxEmails-1]
	tail := strings.TrimSpace(strings.Join(segments[maxEmails-1:], "\n\n"))
	return append(append([]string{}, head...), tail)
}

// FormatForContext renders emails as a transcript for repair prompts.
func FormatForContext(emails []model.Email) string {
	parts := make([]string, 0, len(emails))
	for _, e := range emails {
		label := e.Position.Label()
		subject := strings.TrimSpace(e.Subject)
		if subject == "" {
			subject = "(missing)"
		}
		parts = append(parts, fmt.Sprintf("%s subject: %s\n%s body:\n%s", label, subject, label, strings.TrimSpace(e.Body)))
	}
	return strings.Join(parts, "\n\n")
}

// FormatSequence renders emails in the "Type: X | Subject: Y" form the single copy flow returns.
func FormatSequence(emails []model.Email) string {
	parts := make([]string, 0, len(emails))
	for _, e := range emails {
		parts = append(parts, fmt.Sprintf("Type: %s | Subject: %s\n\n%s", e.Position.Label(), strings.TrimSpace(e.Subject), strings.TrimSpace(e.Body)))
	}
	return strings.Join(parts, "\n\n")
}
