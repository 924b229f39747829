// Package metrics holds the Prometheus metrics of the indexer services
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amplifrens"

// Projection metrics
var (
	// EventsAppliedTotal counts events projected into the store
	EventsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_applied_total",
			Help:      "Events applied to the entity store",
		},
		[]string{"kind"},
	)

	// EventsDuplicateTotal counts redeliveries of already applied events
	EventsDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_duplicate_total",
			Help:      "Redelivered events skipped because they were already applied",
		},
	)

	// EventFailuresTotal counts events whose application failed
	EventFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "event_failures_total",
			Help:      "Events whose application failed",
		},
		[]string{"kind", "reason"}, // reason: decode, invalid, out_of_bounds, unknown_event, apply
	)

	// ApplyDuration measures the time to apply one event including its transaction
	ApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply one event",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"kind"},
	)

	// SelectionChecksTotal counts upkeep consistency checks by outcome
	SelectionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "selection_checks_total",
			Help:      "Recomputed daily winners compared with the on-chain winner",
		},
		[]string{"result"}, // result: matched, mismatched, empty
	)

	// LastAppliedBlock is the block of the last applied event
	LastAppliedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_applied_block",
			Help:      "Block number of the last applied event",
		},
	)

	// CurrentDay is the day bucket of the projection
	CurrentDay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "current_day",
			Help:      "Day bucket new contributions are assigned to",
		},
	)

	// ChainHeadBlock is the chain head seen by the last snapshot
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "chain_head_block",
			Help:      "Chain head block number seen by the last snapshot",
		},
	)

	// LagBlocks is how many blocks the projection trails the chain head
	LagBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "lag_blocks",
			Help:      "Blocks between the chain head and the last applied event",
		},
	)
)

// Dependency metrics
var (
	// ViewCallRetriesTotal counts retried contract view calls
	ViewCallRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "call_retries_total",
			Help:      "Contract view calls retried after a transient failure",
		},
		[]string{"method"},
	)

	// NotificationsTotal counts change notifications by outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Change notifications published",
		},
		[]string{"status"}, // status: success, failed
	)
)

// Emitter metrics
var (
	// EventsPublishedTotal counts events published to the broker
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emitter",
			Name:      "events_published_total",
			Help:      "Events published to the broker",
		},
		[]string{"kind"},
	)

	// PublishDuplicatesTotal counts published events the broker had already stored
	PublishDuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emitter",
			Name:      "publish_duplicates_total",
			Help:      "Published events acknowledged as duplicates by the broker",
		},
		[]string{"kind"},
	)

	// BlockCursor is the last block the emitter persisted
	BlockCursor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "emitter",
			Name:      "block_cursor",
			Help:      "Last fully processed block persisted by the emitter",
		},
		[]string{"chain"},
	)
)

// API metrics
var (
	// HTTPRequestDuration observes REST request latency by route and status code
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "REST request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
