package esdex

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/engine"
)

const namespace = "esdex"

// indexMetrics holds prometheus metrics for index operations.
type indexMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	documents  *prometheus.CounterVec
}

func newIndexMetrics(reg prometheus.Registerer) (*indexMetrics, error) {
	m := &indexMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Index operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Index operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "bulk_documents_total",
			Help:      "Documents sent in bulk requests by document type and engine result.",
		}, []string{"doc_type", "result"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.documents); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already
// registered under the same descriptor.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("esdex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("esdex: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and measures index operations. A nil observer or one
// without metrics only does what it can.
type observer struct {
	logger  *zap.Logger
	metrics *indexMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newIndexMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// observe records one finished operation on index. fields describe the
// document or type the operation addressed.
func (o *observer) observe(op, index string, start time.Time, err error, fields ...zap.Field) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	fields = append(fields,
		zap.String("op", op),
		zap.String("index", index),
		zap.Duration("duration", dur),
	)
	if err != nil {
		o.logger.Warn("index operation failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Debug("index operation", fields...)
}

// observeBulk counts the per-item outcome of one bulk response. The engine
// reports rejected items with a 2xx overall status, so failures are only
// visible here.
func (o *observer) observeBulk(index, docType string, resp *engine.BulkResponse) {
	if o == nil || resp == nil {
		return
	}
	counts := make(map[string]int)
	var firstErr *engine.BulkResponseItem
	for _, item := range resp.Items {
		for _, res := range item {
			res := res
			result := bulkResult(res)
			counts[result]++
			if result == "failed" && firstErr == nil {
				firstErr = &res
			}
		}
	}

	if o.metrics != nil {
		for result, n := range counts {
			o.metrics.documents.WithLabelValues(docType, result).Add(float64(n))
		}
	}
	if o.logger == nil || firstErr == nil {
		return
	}

	fields := []zap.Field{
		zap.String("index", index),
		zap.String("type", docType),
		zap.Int("failed", counts["failed"]),
		zap.String("first_id", firstErr.ID),
		zap.Int("first_status", firstErr.Status),
	}
	if firstErr.Error != nil {
		fields = append(fields, zap.String("first_error", firstErr.Error.Type+": "+firstErr.Error.Reason))
	}
	o.logger.Warn("bulk items rejected", fields...)
}

func bulkResult(res engine.BulkResponseItem) string {
	switch {
	case res.Status < 200 || res.Status > 299:
		return "failed"
	case res.Result != "":
		return res.Result
	default:
		return "indexed"
	}
}
