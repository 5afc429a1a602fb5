package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads raw HTML and extracts text with goquery.
// It is the fallback when the browser cannot open a page.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, target, proxyURL string) (Page, error) {
	client := f.client
	if proxyURL != "" {
		pc, err := proxiedClient(proxyURL, f.client.Timeout)
		if err != nil {
			return Page{}, err
		}
		client = pc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return Page{}, fmt.Errorf("http status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return Page{}, err
	}
	return extractDocument(doc), nil
}

func extractDocument(doc *goquery.Document) Page {
	doc.Find("script, style, noscript, template").Remove()

	p := Page{
		Title: doc.Find("title").First().Text(),
		Meta:  doc.Find(`meta[name="description"]`).First().AttrOr("content", ""),
	}
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := compact(s.Text()); t != "" {
			p.Headings = append(p.Headings, t)
		}
		return len(p.Headings) < maxHeadings
	})

	// keep block boundaries visible in the flattened text
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, section, article, h1, h2, h3, h4, h5, h6").AppendHtml("\n\n")
	p.Body = doc.Find("body").Text()
	return p
}
