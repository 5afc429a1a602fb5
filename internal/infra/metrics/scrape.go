package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(scrapesTotal, scrapeLatencyMs, singleRateLimitedTotal)
}

var (
	scrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapes_total",
			Help: "Website scrapes by method and result.",
		},
		[]string{"method", "result"}, // method: browser|http; result: ok|failed|unreachable
	)

	scrapeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_latency_ms",
			Help:    "Scrape latency distribution in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		},
		[]string{"method"},
	)

	singleRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "single_rate_limited_total",
			Help: "Single copy requests rejected by the rate limiter.",
		},
	)
)

func ObserveScrape(method, result string, latencyMs int64) {
	scrapesTotal.WithLabelValues(norm(method), norm(result)).Inc()
	scrapeLatencyMs.WithLabelValues(norm(method)).Observe(float64(latencyMs))
}

func IncRateLimitTriggered() {
	singleRateLimitedTotal.Inc()
}
