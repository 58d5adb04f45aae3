package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionsTotal counts redemption attempts by terminal state
	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promo",
		Name:      "redemptions_total",
		Help:      "Promo code redemption attempts by outcome.",
	}, []string{"outcome"})

	RedemptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "promo",
		Name:      "redemption_duration_seconds",
		Help:      "Time spent in the redemption transaction, including retries.",
		Buckets:   prometheus.DefBuckets,
	})

	PublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promo",
		Name:      "publish_failures_total",
		Help:      "PromoCodeApplied events that could not be published after commit.",
	})

	// UsageEventsTotal counts materialized events; result is "inserted", "duplicate" or "error"
	UsageEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promo",
		Name:      "usage_events_total",
		Help:      "PromoCodeApplied events handled by the usage materializer.",
	}, []string{"result"})

	// HandleRetriesTotal counts failed handler attempts that were retried
	HandleRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promo",
		Name:      "consumer_handle_retries_total",
		Help:      "PromoCodeApplied handler failures that were retried.",
	})

	// DroppedEventsTotal counts events committed without being handled; reason is
	// "undecodable", "invalid" or "attempts_exhausted"
	DroppedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promo",
		Name:      "consumer_dropped_events_total",
		Help:      "PromoCodeApplied messages skipped by the consumer.",
	}, []string{"reason"})
)
