package multipart

import "time"

// Metrics is the planner/executor's telemetry seam. It is deliberately an
// interface — the concrete Prometheus implementation lives in
// pkg/multipart/metricsprom so that importing this package never pulls in
// client_golang for callers who don't want it, mirroring the teacher's
// metrics-interface-indirection pattern (pkg/metrics/s3.go).
type Metrics interface {
	ObservePart(isCopy bool, size int64, duration time.Duration, err error)
	ObserveFlush(duration time.Duration, err error)
	RecordCancelled()
	RecordActiveUpload(delta int)
}

// noopMetrics satisfies Metrics without recording anything; used when no
// metrics implementation is registered.
type noopMetrics struct{}

func (noopMetrics) ObservePart(bool, int64, time.Duration, error) {}
func (noopMetrics) ObserveFlush(time.Duration, error)             {}
func (noopMetrics) RecordCancelled()                              {}
func (noopMetrics) RecordActiveUpload(int)                        {}

// NewMetricsConstructor, when non-nil, is called by NewMetrics to obtain a
// concrete implementation. pkg/multipart/metricsprom sets it when a caller
// invokes metricsprom.Register, avoiding an import cycle between this
// package and the Prometheus-specific one.
var NewMetricsConstructor func() Metrics

// NewMetrics returns the registered Metrics implementation, or a no-op one
// if none has been registered (metrics disabled).
func NewMetrics() Metrics {
	if NewMetricsConstructor != nil {
		return NewMetricsConstructor()
	}
	return noopMetrics{}
}
