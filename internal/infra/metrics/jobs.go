package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		prospectsProcessedTotal,
		copyRepairsTotal,
		jobsTotal,
		staleJobsRequeuedTotal,
	)
}

var (
	prospectsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospects_processed_total",
			Help: "Total number of prospect rows processed, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'degraded', 'failed'
	)

	copyRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copy_repairs_total",
			Help: "Follow-up completion calls issued to repair model output.",
		},
		[]string{"kind"}, // 'subjects', 'missing_followups', 'incomplete_followup', 'error'
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_total",
			Help: "Job status transitions.",
		},
		[]string{"status"},
	)

	staleJobsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_jobs_requeued_total",
			Help: "Jobs re-enqueued after the stale worker reset their stuck rows.",
		},
	)
)

func IncProspect(status string) {
	prospectsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func AddCopyRepairs(kind string, n int) {
	if n > 0 {
		copyRepairsTotal.WithLabelValues(norm(kind)).Add(float64(n))
	}
}

func IncJob(status string) {
	jobsTotal.WithLabelValues(norm(status)).Inc()
}

func AddStaleRequeued(n int) {
	staleJobsRequeuedTotal.Add(float64(n))
}
