package usecase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"coldmail-copywriter/internal/domain"
)

// csvTable is an uploaded file read into memory. Rows keep every header,
// missing trailing cells become "".
type csvTable struct {
	Headers []string
	Rows    []map[string]string
}

func readCSVFile(path string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file appears to have no header row", domain.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	t := &csvTable{Headers: make([]string, 0, len(head))}
	for i, h := range head {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		t.Headers = append(t.Headers, strings.TrimSpace(h))
	}
	if len(nonEmpty(t.Headers)) == 0 {
		return nil, fmt.Errorf("%w: file appears to have no header row", domain.ErrInvalidArgument)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		row := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	blockedSchemeRe = regexp.MustCompile(`(?i)^(mailto:|tel:|javascript:|data:)`)
	schemeRe        = regexp.MustCompile(`(?i)^https?://`)
)

// normalizeWebsite keeps path and query, adds https:// when no scheme is
// given and drops anything that is not an http(s) URL.
func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || blockedSchemeRe.MatchString(raw) {
		return ""
	}
	if !schemeRe.MatchString(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
