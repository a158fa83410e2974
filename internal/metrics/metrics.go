package metrics

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stress-client/internal/op"
)

// Config はMetricsの設定
type Config struct {
	MaxLatencySamples int // P99計算用に保持するサンプル数（操作種別ごと）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: 1000}
}

// Metrics は操作ごとの結果とレイテンシを集計する
type Metrics struct {
	success   [op.Count]atomic.Uint64
	failed    [op.Count]atomic.Uint64
	latencyNs [op.Count]atomic.Uint64

	mu                sync.Mutex
	startTime         time.Time
	latencies         [op.Count][]time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	if config.MaxLatencySamples <= 0 {
		config.MaxLatencySamples = DefaultConfig().MaxLatencySamples
	}
	return &Metrics{
		startTime:         time.Now(),
		maxLatencySamples: config.MaxLatencySamples,
	}
}

// Record は操作の結果を記録する
func (m *Metrics) Record(k op.Kind, latency time.Duration, err error) {
	if k < 0 || int(k) >= op.Count {
		return
	}
	m.latencyNs[k].Add(uint64(latency.Nanoseconds()))
	if err != nil {
		m.failed[k].Add(1)
		return
	}
	m.success[k].Add(1)

	m.mu.Lock()
	if len(m.latencies[k]) < m.maxLatencySamples {
		m.latencies[k] = append(m.latencies[k], latency)
	}
	m.mu.Unlock()
}

// OpStats は操作種別ごとの集計値
type OpStats struct {
	Success        uint64
	Failed         uint64
	AverageLatency time.Duration
	P99Latency     time.Duration
}

// Total は成功と失敗の合計を返す
func (s OpStats) Total() uint64 {
	return s.Success + s.Failed
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Ops     [op.Count]OpStats
	Elapsed time.Duration
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Elapsed: time.Since(m.startTime)}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range op.All {
		s := OpStats{
			Success: m.success[k].Load(),
			Failed:  m.failed[k].Load(),
		}
		if total := s.Total(); total > 0 {
			s.AverageLatency = time.Duration(m.latencyNs[k].Load() / total)
		}
		s.P99Latency = p99(m.latencies[k])
		snap.Ops[k] = s
	}
	return snap
}

// p99 はサンプルのP99を返す
func p99(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Total は全操作の合計
func (s Snapshot) Total() OpStats {
	var t OpStats
	var weighted time.Duration
	for _, o := range s.Ops {
		t.Success += o.Success
		t.Failed += o.Failed
		weighted += o.AverageLatency * time.Duration(o.Total())
		t.P99Latency = max(t.P99Latency, o.P99Latency)
	}
	if n := t.Total(); n > 0 {
		t.AverageLatency = weighted / time.Duration(n)
	}
	return t
}

// ErrorRate はエラー率を返す（0.0〜1.0）
func (s Snapshot) ErrorRate() float64 {
	t := s.Total()
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Failed) / float64(t.Total())
}

// OPS は開始からの平均スループットを返す
func (s Snapshot) OPS() float64 {
	secs := s.Elapsed.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.Total().Total()) / secs
}

// Summary は1行の要約を返す
func (s Snapshot) Summary() string {
	var b strings.Builder
	t := s.Total()
	fmt.Fprintf(&b, "ops=%d failed=%d error_rate=%.2f%% ops/s=%.1f",
		t.Total(), t.Failed, s.ErrorRate()*100, s.OPS())
	for _, k := range op.All {
		o := s.Ops[k]
		if o.Total() == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s=%d/%d(avg %v, p99 %v)", k, o.Success, o.Total(), o.AverageLatency, o.P99Latency)
	}
	return b.String()
}
