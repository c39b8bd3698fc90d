// Package metrics provides Prometheus metrics for parcel containers.
//
// # Overview
//
// All collectors are registered on the default registry at package init via
// promauto, so any process embedding parcel can expose them on its own
// /metrics handler. One-shot CLI runs dump them with WriteTextfile.
//
// # Basic Usage
//
//	metrics.RowsWritten.WithLabelValues("zstd").Add(float64(n))
//
//	timer := metrics.NewTimer("encode")
//	group, err := enc.Encode(batch)
//	metrics.EncodeDuration.WithLabelValues("zstd").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsWritten counts rows sealed into containers.
	// Labels: compression
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_rows_written_total",
			Help: "Total number of rows written to containers",
		},
		[]string{"compression"},
	)

	// RowsRead counts rows assembled by readers
	RowsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parcel_rows_read_total",
			Help: "Total number of rows read from containers",
		},
	)

	// RowGroupsWritten counts row groups flushed by writers.
	// Labels: compression
	RowGroupsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_row_groups_written_total",
			Help: "Total number of row groups written",
		},
		[]string{"compression"},
	)

	// RowGroupsRead counts row groups decoded by readers
	RowGroupsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parcel_row_groups_read_total",
			Help: "Total number of row groups read",
		},
	)

	// BytesWritten counts container bytes handed to sinks, footer included
	BytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parcel_bytes_written_total",
			Help: "Total number of container bytes written",
		},
	)

	// Errors counts failed operations by error type.
	// Labels: operation (write/read), type
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_errors_total",
			Help: "Total number of failed operations by error type",
		},
		[]string{"operation", "type"},
	)

	// EncodeDuration tracks how long a row group takes to shred and compress.
	// Labels: compression
	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parcel_row_group_encode_seconds",
			Help: "Row group encode latency in seconds",
			Buckets: []float64{
				0.0001, // 100μs - Tiny groups
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - Typical groups
				1,      // 1s - Large groups
				10,
			},
		},
		[]string{"compression"},
	)
)

// Timer measures elapsed time for a named operation
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the operation the timer was created for
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// WriteTextfile dumps the default registry in the node exporter textfile
// format, for runs too short to be scraped
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
