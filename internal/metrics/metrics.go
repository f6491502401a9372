package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbot_poll_cycles_total",
			Help: "Poll cycles by queue and outcome (ok, suppressed, failed, skipped)",
		},
		[]string{"queue", "outcome"},
	)

	PollItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbot_poll_items_total",
			Help: "Work items dispatched by queue and result",
		},
		[]string{"queue", "result"},
	)

	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketbot_poll_cycle_duration_seconds",
			Help:    "Fetch-and-dispatch duration per queue",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	TicketsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbot_tickets_created_total",
			Help: "Ticket channels created by kind",
		},
		[]string{"kind"},
	)

	DeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbot_delivery_failures_total",
			Help: "Best-effort deliveries that were dropped, by kind",
		},
		[]string{"kind"},
	)

	MemberChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbot_member_checks_total",
			Help: "Membership checks by source (live, cache) and result",
		},
		[]string{"source", "present"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(PollCycles, PollItems, PollDuration, TicketsCreated, DeliveryFailures, MemberChecks)
}
