package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	ReminderJobsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_jobs_claimed_total",
			Help: "Reminder jobs claimed from the delayed queue",
		},
	)

	ReminderEmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_emails_sent_total",
			Help: "Reminder emails sent successfully",
		},
	)

	ReminderSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_send_failures_total",
			Help: "Reminder emails that failed at the mail transport",
		},
	)

	ReminderJobsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_jobs_skipped_total",
			Help: "Reminder jobs that no-opped (deleted, not pending, or lead without email)",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ReminderJobsClaimed)
	prometheus.MustRegister(ReminderEmailsSent)
	prometheus.MustRegister(ReminderSendFailures)
	prometheus.MustRegister(ReminderJobsSkipped)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
