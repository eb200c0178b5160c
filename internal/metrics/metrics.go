package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed send attempts",
		},
	)

	QueueItemsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_queue_items_failed_total",
			Help: "Queue items that exhausted their retry budget",
		},
	)

	SequenceEnrollments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_sequence_enrollments_total",
			Help: "Queue items created by sequence enrollment",
		},
	)

	StaleReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_queue_stale_reaped_total",
			Help: "Items reclaimed from a stale processing state",
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(QueueItemsFailed)
	prometheus.MustRegister(SequenceEnrollments)
	prometheus.MustRegister(StaleReaped)
}
