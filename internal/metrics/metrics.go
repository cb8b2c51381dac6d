// Package metrics holds the Prometheus instruments for live feeds.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for hubs, observers and feeds.
type Metrics struct {
	ActiveSubscriptions prometheus.Gauge
	SnapshotsDelivered  prometheus.Counter
	QueryErrors         prometheus.Counter

	SnapshotsApplied   *prometheus.CounterVec
	StaleSnapshots     prometheus.Counter
	DuplicatesDropped  prometheus.Counter
	SubscriptionErrors prometheus.Counter

	PageLoads   prometheus.Counter
	Submissions *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg creates
// unregistered metrics, which is what tests and embedded uses want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "livefeed_active_subscriptions",
			Help: "Current number of live query subscriptions",
		}),
		SnapshotsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_snapshots_delivered_total",
			Help: "Total number of snapshots delivered to subscribers",
		}),
		QueryErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_query_errors_total",
			Help: "Total number of failed snapshot queries",
		}),
		SnapshotsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livefeed_observer_snapshots_applied_total",
			Help: "Total number of snapshots merged into observer results, by mode",
		}, []string{"mode"}),
		StaleSnapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_observer_stale_snapshots_total",
			Help: "Total number of snapshots dropped because their subscription was superseded",
		}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_observer_duplicates_dropped_total",
			Help: "Total number of snapshot items dropped as duplicates during merge",
		}),
		SubscriptionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_observer_subscription_errors_total",
			Help: "Total number of subscription errors seen by observers",
		}),
		PageLoads: f.NewCounter(prometheus.CounterOpts{
			Name: "livefeed_feed_page_loads_total",
			Help: "Total number of older-page loads committed",
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livefeed_feed_submissions_total",
			Help: "Total number of message submissions, by outcome",
		}, []string{"outcome"}),
	}
}

// Discard returns unregistered metrics.
func Discard() *Metrics {
	return New(nil)
}
