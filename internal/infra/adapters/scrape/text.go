package scrape

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// compact page text shorter than this is treated as blocked or empty
	minPageChars = 160
	maxHeadings  = 25
)

var (
	blankRunRe   = regexp.MustCompile(`[\t ]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(`\s+`)

	unreachablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(domain\s+expired|this\s+domain\s+has\s+expired|domain\s+is\s+for\s+sale|buy\s+this\s+domain|domain\s+parked|parking\s+page)`),
		regexp.MustCompile(`(?i)(404\s+not\s+found|page\s+not\s+found|site\s+can'?t\s+be\s+reached|dns\s+probe\s+finished|name\s+not\s+resolved)`),
		regexp.MustCompile(`(?i)(access\s+denied|error\s+1020|cloudflare|attention\s+required)`),
	}
)

// Page is what a Fetcher extracts before formatting.
type Page struct {
	Title    string
	Meta     string
	Headings []string
	Body     string
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func capText(s string, maxChars int) string {
	s = cleanText(s)
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	return string([]rune(s)[:maxChars]) + "…"
}

func compact(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// format renders a page as Title/Meta/Headings/Page Text sections.
func format(p Page, maxChars int) string {
	var parts []string
	if t := cleanText(p.Title); t != "" {
		parts = append(parts, "Title: "+t)
	}
	if m := cleanText(p.Meta); m != "" {
		parts = append(parts, "Meta: "+m)
	}
	var hs []string
	for _, h := range p.Headings {
		if h = compact(h); h != "" {
			hs = append(hs, h)
		}
		if len(hs) == maxHeadings {
			break
		}
	}
	if len(hs) > 0 {
		parts = append(parts, "Headings: "+strings.Join(hs, " | "))
	}
	if b := cleanText(p.Body); b != "" {
		parts = append(parts, "Page Text:\n"+b)
	}
	return capText(strings.Join(parts, "\n\n"), maxChars)
}

func thin(text string) bool {
	return utf8.RuneCountInString(compact(text)) < minPageChars
}

// LooksUnreachable flags parked, expired, blocked and error pages.
func LooksUnreachable(text string) bool {
	c := compact(text)
	if utf8.RuneCountInString(c) < 80 {
		return true
	}
	for _, re := range unreachablePatterns {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}
