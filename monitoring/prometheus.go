package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custanalytics/ml"
)

const namespace = "custanalytics"

// promMetrics Prometheus 指标，与 MetricsCollector 同步更新
type promMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	rows     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newPromMetrics() *promMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &promMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "requests_total",
			Help:      "Total number of prediction requests by task",
		}, []string{"task"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "rows_total",
			Help:      "Total number of rows predicted by task",
		}, []string{"task"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "failures_total",
			Help:      "Total number of failed prediction requests by task and error kind",
		}, []string{"task", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "duration_seconds",
			Help:      "Prediction request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
	}
}

func (pm *promMetrics) record(task ml.Task, rows int, elapsed time.Duration, err error) {
	label := string(task)
	pm.requests.WithLabelValues(label).Inc()
	if err != nil {
		pm.failures.WithLabelValues(label, ml.ErrorKind(err)).Inc()
		return
	}
	pm.rows.WithLabelValues(label).Add(float64(rows))
	pm.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// Handler 返回 /metrics 的 Prometheus 文本格式处理器
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.prom.registry, promhttp.HandlerOpts{})
}
