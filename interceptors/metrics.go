package interceptors

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/apierror"
)

const (
	metricNamespace   = "shapeclient"
	metricResultOK    = "ok"
	metricResultError = "error"
)

// Metrics records Prometheus metrics for calls and attempts.
type Metrics struct {
	shapeclient.NopInterceptor

	calls     *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	durations *prometheus.HistogramVec

	starts calls[time.Time]
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "calls_total",
			Help:      "The total number of calls partitioned by service, operation and result",
		}, []string{"service", "operation", "result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "attempts_total",
			Help:      "The total number of transmission attempts partitioned by service and operation",
		}, []string{"service", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "errors_total",
			Help:      "The total number of failed calls partitioned by service, operation and error code",
		}, []string{"service", "operation", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "call_duration_seconds",
			Help:      "Latency of calls including retries, partitioned by service, operation and result",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation", "result"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.attempts, m.errors, m.durations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ReadBeforeExecution(_ context.Context, in *shapeclient.InputContext) error {
	m.starts.start(in, time.Now())
	return nil
}

func (m *Metrics) ReadBeforeTransmit(_ context.Context, rc *shapeclient.RequestContext) error {
	m.attempts.WithLabelValues(rc.Service.Name(), rc.Operation.Name).Inc()
	return nil
}

func (m *Metrics) ReadAfterExecution(_ context.Context, out *shapeclient.OutputContext) error {
	svc, op := out.Service.Name(), out.Operation.Name
	result := metricResultOK
	if out.Err != nil {
		result = metricResultError
		m.errors.WithLabelValues(svc, op, errorCode(out.Err)).Inc()
	}
	m.calls.WithLabelValues(svc, op, result).Inc()
	if start, ok := m.starts.finish(out.InputContext); ok {
		m.durations.WithLabelValues(svc, op, result).Observe(time.Since(start).Seconds())
	}
	return nil
}

// errorCode labels an error by its API error code, or its shapeclient code.
func errorCode(err error) string {
	if apiErr, ok := apierror.As(err); ok && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	var e *shapeclient.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return "unknown"
}
