package memstore

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"stress-client/internal/logger"
)

// Fault は注入する障害の種類を表す
type Fault int

const (
	FaultSuspend Fault = iota
	FaultDelay
	FaultFail
)

func (f Fault) String() string {
	switch f {
	case FaultSuspend:
		return "suspend"
	case FaultDelay:
		return "delay"
	case FaultFail:
		return "fail"
	default:
		return "unknown"
	}
}

// FaultConfig はInjectorの設定
type FaultConfig struct {
	Interval      time.Duration // 注入間隔
	Faults        []Fault       // 有効な障害
	DelayDuration time.Duration // delay障害の遅延時間
	FailCount     int           // fail障害で失敗させる操作数
	RecoverAfter  time.Duration // suspend/delayを自動で戻すまでの時間
}

// DefaultFaultConfig はデフォルト設定を返す
func DefaultFaultConfig() FaultConfig {
	return FaultConfig{
		Interval:      5 * time.Second,
		Faults:        []Fault{FaultSuspend, FaultDelay, FaultFail},
		DelayDuration: 100 * time.Millisecond,
		FailCount:     5,
		RecoverAfter:  2 * time.Second,
	}
}

// Injector はストアに定期的に障害を注入し、一定時間後に回復させる
type Injector struct {
	config FaultConfig
	store  *Store
	rng    *rand.Rand

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	injected  map[Fault]uint64
	degraded  bool
	recoverAt time.Time
}

// NewInjector は新しいInjectorを作成する
func NewInjector(s *Store, config FaultConfig) *Injector {
	if len(config.Faults) == 0 {
		config.Faults = DefaultFaultConfig().Faults
	}
	return &Injector{
		config:   config,
		store:    s,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		injected: make(map[Fault]uint64),
	}
}

// Start は障害注入を開始する
func (in *Injector) Start(ctx context.Context) {
	if in.running.Swap(true) {
		return
	}

	ctx, in.cancel = context.WithCancel(ctx)
	in.wg.Add(1)
	go in.loop(ctx)

	logger.Info(in.store.ID(), "Fault injector started (interval: %v, faults: %v)",
		in.config.Interval, in.config.Faults)
}

// Stop は障害注入を停止し、ストアを回復させる
func (in *Injector) Stop() {
	if !in.running.Swap(false) {
		return
	}

	in.cancel()
	in.wg.Wait()
	in.restore()

	logger.Info(in.store.ID(), "Fault injector stopped (injected: %d)", in.Total())
}

func (in *Injector) loop(ctx context.Context) {
	defer in.wg.Done()

	ticker := time.NewTicker(in.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			in.checkRecover(now)
			in.inject(now)
		}
	}
}

// inject はランダムに選んだ障害を1つ注入する
// 前の障害から回復していない間は何もしない
func (in *Injector) inject(now time.Time) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.degraded {
		return
	}

	f := in.config.Faults[in.rng.IntN(len(in.config.Faults))]
	switch f {
	case FaultSuspend:
		if err := in.store.Suspend(); err != nil {
			logger.Warn(in.store.ID(), "Fault injector: failed to suspend: %v", err)
			return
		}
		in.degraded = true
	case FaultDelay:
		in.store.SetDelay(in.config.DelayDuration)
		logger.Warn(in.store.ID(), "Fault injector: injected %v delay", in.config.DelayDuration)
		in.degraded = true
	case FaultFail:
		in.store.FailNext(in.config.FailCount)
		logger.Warn(in.store.ID(), "Fault injector: next %d operations will fail", in.config.FailCount)
	}
	in.injected[f]++
	if in.degraded {
		in.recoverAt = now.Add(in.config.RecoverAfter)
	}
}

// checkRecover は回復時刻を過ぎていればストアを元に戻す
func (in *Injector) checkRecover(now time.Time) {
	in.mu.Lock()
	due := in.degraded && !now.Before(in.recoverAt)
	in.mu.Unlock()

	if due {
		in.restore()
	}
}

// restore はsuspendと遅延を解除する
func (in *Injector) restore() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.degraded {
		return
	}
	if in.store.Status() == StatusSuspended {
		if err := in.store.Resume(); err != nil {
			logger.Warn(in.store.ID(), "Fault injector: failed to resume: %v", err)
		}
	}
	in.store.SetDelay(0)
	in.degraded = false
	logger.Info(in.store.ID(), "Fault injector: store recovered")
}

// IsRunning は実行中かどうかを返す
func (in *Injector) IsRunning() bool {
	return in.running.Load()
}

// Injected は障害ごとの注入回数を返す
func (in *Injector) Injected() map[string]uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make(map[string]uint64, len(in.injected))
	for f, n := range in.injected {
		out[f.String()] = n
	}
	return out
}

// Total は注入回数の合計を返す
func (in *Injector) Total() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()

	var total uint64
	for _, n := range in.injected {
		total += n
	}
	return total
}
