package headersync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	headersQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_headersync_headers_queued_total",
		Help: "Headers received from peers and queued for validation.",
	})

	headersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_headersync_headers_accepted_total",
		Help: "Headers that passed validation and extended the timechain.",
	})

	batchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hornet_headersync_batches_rejected_total",
		Help: "Header batches rejected for a consensus failure.",
	})
)
