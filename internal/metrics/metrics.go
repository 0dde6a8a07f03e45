package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_cache_lookups_total",
			Help: "Archive cache lookups by result (hit, miss, forced)",
		},
		[]string{"result"},
	)

	RemoteTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_remote_transfers_total",
			Help: "Remote archive transfers by transport and status",
		},
		[]string{"transport", "status"},
	)

	RemoteBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_remote_bytes_total",
			Help: "Bytes written to the cache from remote transfers",
		},
		[]string{"transport"},
	)

	RemoteTransferLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghcnclimate_remote_transfer_seconds",
			Help:    "Remote archive transfer latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"transport"},
	)

	RowsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_rows_decoded_total",
			Help: "Records decoded from archive files",
		},
		[]string{"kind"},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_rows_skipped_total",
			Help: "Short fixed-width lines skipped during decoding",
		},
		[]string{"kind"},
	)

	DerivedLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghcnclimate_derived_lookups_total",
			Help: "Derived table cache lookups by table and result",
		},
		[]string{"table", "result"},
	)
)
