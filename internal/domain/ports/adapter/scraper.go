package adapter

import "context"

// Scraper fetches readable page text for a URL.
// Failures are reported as *domain.ScrapeError.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// RowDispatcher hands a queued prospect to whatever runs the row state machine.
type RowDispatcher interface {
	Dispatch(ctx context.Context, prospectID string) error
}
