package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxSessionIDLen = 128

var (
	unsafeSessionRe  = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	sessionSegmentRe = regexp.MustCompile(`(?i)-session-[^-:]+`)

	now = time.Now
)

func sanitizeSessionID(s string) string {
	s = unsafeSessionRe.ReplaceAllString(strings.TrimSpace(s), "_")
	if len(s) > maxSessionIDLen {
		s = s[:maxSessionIDLen]
	}
	return s
}

// BuildSessionID names a sticky proxy session. The ID is stable for one host
// within a rotation window and changes with every retry attempt.
func BuildSessionID(prefix, target string, rotationMinutes, attempt int) string {
	var bucket int64
	if rotationMinutes > 0 {
		bucket = now().UnixMilli() / (int64(rotationMinutes) * int64(time.Minute/time.Millisecond))
	} else {
		bucket = now().UnixMilli()
	}
	parts := []string{}
	for _, p := range []string{prefix, hostOf(target), strconv.FormatInt(bucket, 10)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if attempt > 0 {
		parts = append(parts, "r"+strconv.Itoa(attempt))
	}
	return sanitizeSessionID(strings.Join(parts, "_"))
}

// ProxyURLForSession swaps the -session-<id> segment of the proxy username.
// Usernames without such a segment are left as they are.
func ProxyURLForSession(base, sessionID string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	sid := sanitizeSessionID(sessionID)
	if u.User != nil && sid != "" {
		name := u.User.Username()
		if sessionSegmentRe.MatchString(name) {
			name = sessionSegmentRe.ReplaceAllLiteralString(name, "-session-"+sid)
			if pw, ok := u.User.Password(); ok {
				u.User = url.UserPassword(name, pw)
			} else {
				u.User = url.User(name)
			}
		}
	}
	return u.String()
}
