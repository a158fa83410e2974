package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stress-client/internal/op"
)

const namespace = "stress_client"

// Metrics はクライアント1つ分のPrometheusメトリクス
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationErrors   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	keySetSize        prometheus.Gauge
	pendingWrites     prometheus.Gauge
	backoffs          prometheus.Counter
	windows           prometheus.Counter
}

// NewMetrics は専用のレジストリにメトリクスを登録して返す
func NewMetrics(clientID string) *Metrics {
	labels := prometheus.Labels{"client_id": clientID}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "operations_total",
				Help:        "Operations that completed successfully",
				ConstLabels: labels,
			},
			[]string{"op"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "operation_errors_total",
				Help:        "Operations that failed with a store error",
				ConstLabels: labels,
			},
			[]string{"op"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "operation_duration_seconds",
				Help:        "Operation latency in seconds",
				Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				ConstLabels: labels,
			},
			[]string{"op"},
		),
		keySetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "key_set_size",
			Help:        "Keys currently believed to exist",
			ConstLabels: labels,
		}),
		pendingWrites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pending_writes",
			Help:        "Rows buffered and not yet inserted",
			ConstLabels: labels,
		}),
		backoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "backoffs_total",
			Help:        "Sleeps taken after consecutive store errors",
			ConstLabels: labels,
		}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stats_windows_total",
			Help:        "Stats records written to the output file",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		m.operations,
		m.operationErrors,
		m.operationDuration,
		m.keySetSize,
		m.pendingWrites,
		m.backoffs,
		m.windows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry はメトリクスのレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOperation は操作の結果とレイテンシを記録する
func (m *Metrics) ObserveOperation(k op.Kind, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(k.String()).Observe(d.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(k.String()).Inc()
		return
	}
	m.operations.WithLabelValues(k.String()).Inc()
}

// SetKeySetSize はキー数を設定する
func (m *Metrics) SetKeySetSize(n int) {
	if m == nil {
		return
	}
	m.keySetSize.Set(float64(n))
}

// SetPendingWrites は未送信の書き込み数を設定する
func (m *Metrics) SetPendingWrites(n int) {
	if m == nil {
		return
	}
	m.pendingWrites.Set(float64(n))
}

// IncBackoff はバックオフ回数を加算する
func (m *Metrics) IncBackoff() {
	if m == nil {
		return
	}
	m.backoffs.Inc()
}

// IncWindow は書き出したウィンドウ数を加算する
func (m *Metrics) IncWindow() {
	if m == nil {
		return
	}
	m.windows.Inc()
}
