package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	filesProcessedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_files_processed_total",
			Help: "Number of input files processed, by outcome.",
		},
		[]string{"outcome"},
	)
	recordsInsertedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_records_inserted_total",
			Help: "Number of records inserted, by table.",
		},
		[]string{"table"},
	)
	recordsSkippedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_records_skipped_total",
			Help: "Number of records skipped as already present, by table.",
		},
		[]string{"table"},
	)
	rowErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_row_errors_total",
			Help: "Number of rows that failed to insert and were skipped, by table.",
		},
		[]string{"table"},
	)
	connectAttemptsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_db_connect_attempts_total",
			Help: "Database connection attempts, by result.",
		},
		[]string{"result"},
	)
	relocationFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weightloss_relocation_failures_total",
			Help: "Failed relocation steps, by step (copy|delete).",
		},
		[]string{"step"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weightloss_run_duration_seconds",
			Help:    "Duration of a complete pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(
		filesProcessedCounter,
		recordsInsertedCounter,
		recordsSkippedCounter,
		rowErrorsCounter,
		connectAttemptsCounter,
		relocationFailuresCounter,
		runDuration,
	)
}
