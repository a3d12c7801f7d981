package customers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_import_rows_total",
			Help: "CSV import rows processed, by outcome.",
		},
		[]string{"result"},
	)

	importDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_import_duration_seconds",
			Help:    "Duration of whole CSV imports.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)
