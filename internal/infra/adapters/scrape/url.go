package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"coldmail-copywriter/internal/domain"
)

var (
	unsupportedSchemeRe = regexp.MustCompile(`(?i)^(mailto:|tel:|javascript:|data:)`)
	httpPrefixRe        = regexp.MustCompile(`(?i)^https?://`)
)

// EnsureHTTPURL validates a user supplied URL without rewriting it.
func EnsureHTTPURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidArgument)
	case unsupportedSchemeRe.MatchString(raw):
		return "", fmt.Errorf("%w: unsupported url scheme", domain.ErrInvalidArgument)
	case !httpPrefixRe.MatchString(raw):
		return "", fmt.Errorf("%w: url must start with http:// or https://", domain.ErrInvalidArgument)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url", domain.ErrInvalidArgument)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url protocol", domain.ErrInvalidArgument)
	}
	return raw, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
