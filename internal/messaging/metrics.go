package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "outbox_relay",
		Name:      "published_total",
		Help:      "Total number of outbox events published to the broker.",
	})

	relayFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "outbox_relay",
		Name:      "publish_failures_total",
		Help:      "Total number of outbox publish attempts that exhausted retries.",
	})

	consumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "consumer",
		Name:      "processed_total",
		Help:      "Total number of messages processed successfully.",
	}, []string{"routing_key"})

	consumerDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "consumer",
		Name:      "duplicates_skipped_total",
		Help:      "Total number of already-processed messages discarded by the dedup ledger.",
	}, []string{"routing_key"})

	consumerFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "consumer",
		Name:      "failed_total",
		Help:      "Total number of messages whose processing failed.",
	}, []string{"routing_key"})

	consumerDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "consumer",
		Name:      "dead_lettered_total",
		Help:      "Total number of messages routed to a dead-letter topic.",
	}, []string{"routing_key"})

	consumerCommitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "consumer",
		Name:      "commit_errors_total",
		Help:      "Total number of broker offset commit errors.",
	}, []string{"routing_key"})
)
