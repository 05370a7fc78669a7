package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_pipeline_blocks_retired_total",
		Help: "Blocks retired in order through the completion callback.",
	})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_pipeline_validation_failures_total",
		Help: "Blocks whose ruleset evaluation returned an error.",
	})

	deferrals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_pipeline_deferrals_total",
		Help: "Jobs requeued because their prerequisites were not ready.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hornet_pipeline_queue_depth",
		Help: "Jobs waiting for a worker.",
	})

	retireHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hornet_pipeline_retire_height",
		Help: "Height of the most recently retired block.",
	})
)
