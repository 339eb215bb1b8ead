// Package metricsprom is the Prometheus-backed implementation of
// multipart.Metrics. Calling Register installs it as pkg/multipart's
// metrics implementation; importing the package alone does not. This keeps
// pkg/multipart from importing client_golang directly.
package metricsprom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/soitun/s3fs-fuse/pkg/multipart"
)

type promMetrics struct {
	partsTotal     *prometheus.CounterVec
	partDuration   *prometheus.HistogramVec
	partBytes      *prometheus.CounterVec
	flushTotal     *prometheus.CounterVec
	flushDuration  prometheus.Histogram
	cancelledTotal prometheus.Counter
	activeUploads  prometheus.Gauge
}

// Register installs a Prometheus-backed Metrics implementation against reg
// as pkg/multipart's default. Call it once during process startup.
func Register(reg prometheus.Registerer) {
	m := &promMetrics{
		partsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3fs_multipart_parts_total",
				Help: "Total number of part requests by kind and status",
			},
			[]string{"kind", "status"}, // kind: upload|copy
		),
		partDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3fs_multipart_part_duration_milliseconds",
				Help:    "Duration of part upload/copy requests in milliseconds",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
			},
			[]string{"kind"},
		),
		partBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3fs_multipart_bytes_total",
				Help: "Total bytes transferred by part requests",
			},
			[]string{"kind"},
		),
		flushTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3fs_multipart_flush_total",
				Help: "Total flush operations by status",
			},
			[]string{"status"},
		),
		flushDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "s3fs_multipart_flush_duration_milliseconds",
				Help:    "Duration of whole-file and boundary flush operations in milliseconds",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 30000},
			},
		),
		cancelledTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "s3fs_multipart_cancelled_total",
				Help: "Total number of CancelAll invocations that cancelled outstanding work",
			},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "s3fs_multipart_active_uploads",
				Help: "Number of handles currently holding an open multipart upload id",
			},
		),
	}

	multipart.NewMetricsConstructor = func() multipart.Metrics { return m }
}

func (m *promMetrics) ObservePart(isCopy bool, size int64, duration time.Duration, err error) {
	kind := "upload"
	if isCopy {
		kind = "copy"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.partsTotal.WithLabelValues(kind, status).Inc()
	m.partDuration.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
	if err == nil {
		m.partBytes.WithLabelValues(kind).Add(float64(size))
	}
}

func (m *promMetrics) ObserveFlush(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.flushTotal.WithLabelValues(status).Inc()
	m.flushDuration.Observe(float64(duration.Milliseconds()))
}

func (m *promMetrics) RecordCancelled() {
	m.cancelledTotal.Inc()
}

func (m *promMetrics) RecordActiveUpload(delta int) {
	m.activeUploads.Add(float64(delta))
}
