package feed

import "github.com/prometheus/client_golang/prometheus"

var (
	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscribers",
			Help: "Number of open live feed subscriptions.",
		},
	)
	snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_snapshots_total",
			Help: "Snapshots produced for subscribers, by outcome.",
		},
		[]string{"outcome"}, // delivered | replaced | error
	)
)

func init() {
	prometheus.MustRegister(subscribersGauge, snapshotsTotal)
}
