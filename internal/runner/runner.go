package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"stress-client/internal/config"
	"stress-client/internal/events"
	"stress-client/internal/handshake"
	"stress-client/internal/logger"
	"stress-client/internal/metrics"
	"stress-client/internal/stats"
	"stress-client/internal/store"
	"stress-client/internal/telemetry"
	"stress-client/internal/workload"
)

// ErrAlreadyRun は2回目のRunで返される
var ErrAlreadyRun = errors.New("runner: already run")

// State はライフサイクルの状態
type State int32

const (
	StateInit State = iota
	StateHandshake
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateHandshake:
		return "HANDSHAKE"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Config はRunnerの設定
type Config struct {
	ClientID    string
	Database    string
	Table       string
	Weights     workload.Weights
	BatchSize   int
	Output      string
	DriftPolicy stats.DriftPolicy
	OpTimeout   time.Duration

	MaxConsecutiveErrors int           // この回数続けて失敗したら休む
	ErrorBackoff         time.Duration // 休む時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Database:             "test",
		Table:                "test",
		Weights:              workload.DefaultWeights(),
		BatchSize:            100,
		DriftPolicy:          stats.DriftPreserve,
		OpTimeout:            10 * time.Second,
		MaxConsecutiveErrors: 5,
		ErrorBackoff:         500 * time.Millisecond,
	}
}

// FromConfig はクライアント設定からRunnerの設定を作る
func FromConfig(c config.Config) Config {
	rc := DefaultConfig()
	rc.ClientID = c.ClientID
	rc.Database = c.Database
	rc.Table = c.Table
	rc.Weights = c.Weights
	rc.BatchSize = c.BatchSize
	rc.Output = c.Output
	rc.DriftPolicy = c.DriftPolicy
	rc.OpTimeout = c.OpTimeout
	return rc
}

// Runner は1クライアントの負荷ループ
type Runner struct {
	config Config
	store  store.Client

	clock     Clock
	in        io.Reader
	out       io.Writer
	log       *logger.Logger
	telemetry *telemetry.Metrics
	bus       *events.Bus
	rng       *rand.Rand
	results   *metrics.Metrics

	scheduler *workload.Scheduler
	work      *workload.Context
	window    *stats.Window
	writer    *stats.Writer

	consecutiveErrors int

	// 他のゴルーチンから読まれる値
	state      atomic.Int32
	keySetSize atomic.Int64
	pending    atomic.Int64
	nextWindow atomic.Int64
	started    atomic.Bool
}

// Option はRunnerの設定を変更する
type Option func(*Runner)

// WithClock は時刻と待機の実装を差し替える
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithStdio はハンドシェイクに使う入出力を差し替える
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.in = in
		r.out = out
	}
}

// WithLogger はロガーを設定する
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithTelemetry はPrometheusメトリクスを設定する
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.telemetry = m }
}

// WithEvents はイベントの発行先を設定する
func WithEvents(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithRand は乱数源を設定する
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// New は新しいRunnerを作成する
func New(cfg Config, client store.Client, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, errors.New("runner: store client is required")
	}
	if cfg.Output == "" {
		return nil, &config.ConfigError{Field: "output", Err: errors.New("an output file is required")}
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultConfig().MaxConsecutiveErrors
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultConfig().OpTimeout
	}

	r := &Runner{
		config:  cfg,
		store:   client,
		clock:   SystemClock(),
		in:      os.Stdin,
		out:     os.Stdout,
		log:     logger.Default,
		results: metrics.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		seed := uint64(time.Now().UnixNano())
		r.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}

	scheduler, err := workload.NewScheduler(cfg.Weights, r.rng)
	if err != nil {
		return nil, &config.ConfigError{Field: "weights", Err: err}
	}
	r.scheduler = scheduler
	return r, nil
}

// State は現在の状態を返す
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.log.Debug(r.config.ClientID, "State: %s", s)
	r.bus.Publish(events.NewStateChangedEvent(r.config.ClientID, s.String()))
}

// Status はテレメトリ向けに現在の状態を返す。どのゴルーチンからも呼べる
func (r *Runner) Status() telemetry.Status {
	return telemetry.Status{
		ClientID:      r.config.ClientID,
		State:         r.State().String(),
		KeySetSize:    int(r.keySetSize.Load()),
		PendingWrites: int(r.pending.Load()),
		NextWindow:    r.nextWindow.Load(),
	}
}

// Results は操作の集計を返す
func (r *Runner) Results() metrics.Snapshot {
	return r.results.Snapshot()
}

// Run はctxがキャンセルされるまで負荷をかけ続ける
// 割り込みによる終了ではnilを返す
func (r *Runner) Run(ctx context.Context) error {
	if r.started.Swap(true) {
		return ErrAlreadyRun
	}

	r.setState(StateInit)
	if err := r.setup(ctx); err != nil {
		r.setState(StateTerminated)
		return err
	}

	r.setState(StateHandshake)
	if err := handshake.Await(ctx, r.in, r.out); err != nil {
		if ctx.Err() != nil {
			// 開始前の中断でもゼロ件の最終レコードを1行残す
			r.log.Info(r.config.ClientID, "Interrupted before start")
			r.window = stats.NewWindow(r.clock.Now(), r.config.DriftPolicy)
			return r.shutdown(nil)
		}
		return r.shutdown(fmt.Errorf("handshake failed: %w", err))
	}

	r.setState(StateRunning)
	r.log.Info(r.config.ClientID, "Started (%s, batch size %d)", r.config.Weights, r.config.BatchSize)

	return r.shutdown(r.loop(ctx))
}

// setup は接続と対象の確認を行い、統計ファイルを開く
func (r *Runner) setup(ctx context.Context) error {
	if err := r.store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := store.ValidateTarget(ctx, r.store, r.config.Database, r.config.Table); err != nil {
		_ = r.store.Close()
		return &config.ConfigError{Field: "table", Err: err}
	}

	w, err := stats.Create(r.config.Output)
	if err != nil {
		_ = r.store.Close()
		return &config.ConfigError{Field: "output", Err: err}
	}
	w.SetLogger(r.log)
	r.writer = w

	r.log.Info(r.config.ClientID, "Connected, target %s.%s, stats to %s",
		r.config.Database, r.config.Table, r.config.Output)
	return nil
}

// loop はRUNNINGのメインループ
func (r *Runner) loop(ctx context.Context) error {
	r.window = stats.NewWindow(r.clock.Now(), r.config.DriftPolicy)
	r.work = workload.NewContext(workload.ContextConfig{
		Store:     r.store,
		Database:  r.config.Database,
		Table:     r.config.Table,
		Window:    r.window,
		BatchSize: r.config.BatchSize,
		Rand:      r.rng,
	})
	r.nextWindow.Store(r.window.Next())

	for {
		if ctx.Err() != nil {
			return nil
		}

		if now := r.clock.Now(); r.window.Due(now) {
			if err := r.flush(now); err != nil {
				return err
			}
		}

		if err := r.tick(ctx); err != nil {
			if errors.Is(err, workload.ErrInvariant) {
				r.log.Error(r.config.ClientID, "Invariant violated: %v", err)
				return err
			}
			if r.onStoreError(ctx, err) {
				return nil
			}
			continue
		}
		r.consecutiveErrors = 0
	}
}

// tick は操作を1つ実行する
// 操作は中断のキャンセルから切り離し、タイムアウトだけで打ち切る
func (r *Runner) tick(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.OpTimeout)
	defer cancel()

	start := r.clock.Now()
	k, err := r.scheduler.Tick(opCtx, r.work)
	if errors.Is(err, workload.ErrInvariant) {
		return err
	}
	elapsed := r.clock.Now().Sub(start)

	r.results.Record(k, elapsed, err)
	r.telemetry.ObserveOperation(k, elapsed, err)

	r.keySetSize.Store(int64(r.work.Keys.Len()))
	r.pending.Store(int64(r.work.Pending()))
	r.telemetry.SetKeySetSize(r.work.Keys.Len())
	r.telemetry.SetPendingWrites(r.work.Pending())

	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	return nil
}

// onStoreError は連続エラーを数え、閾値を超えていれば休む
// 休んでいる間に中断された場合はtrueを返す
func (r *Runner) onStoreError(ctx context.Context, err error) bool {
	r.consecutiveErrors++
	r.log.Warn(r.config.ClientID, "Operation failed (%d consecutive): %v", r.consecutiveErrors, err)

	if r.consecutiveErrors < r.config.MaxConsecutiveErrors {
		return false
	}

	r.telemetry.IncBackoff()
	r.bus.Publish(events.NewBackoffEvent(r.config.ClientID, r.consecutiveErrors, r.config.ErrorBackoff, err))
	if err := r.clock.Sleep(ctx, r.config.ErrorBackoff); err != nil {
		return true
	}
	return false
}

// flush は現在のウィンドウを書き出す
func (r *Runner) flush(now time.Time) error {
	rec := r.window.Snapshot()
	if err := r.window.Flush(r.writer, now); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	r.nextWindow.Store(r.window.Next())
	r.telemetry.IncWindow()
	r.bus.Publish(events.NewWindowFlushedEvent(r.config.ClientID, rec))
	return nil
}

// shutdown は最後のウィンドウを書き出してリソースを閉じる
// causeがあればそれを優先して返す
func (r *Runner) shutdown(cause error) error {
	r.setState(StateShuttingDown)

	var result *multierror.Error
	if r.window != nil && !r.writer.Closed() {
		if err := r.flush(r.clock.Now()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if r.work != nil && r.work.Pending() > 0 {
		r.log.Debug(r.config.ClientID, "Discarding %d buffered writes", r.work.Pending())
	}
	if err := r.writer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close stats file: %w", err))
	}
	if err := r.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close store: %w", err))
	}

	r.log.Info(r.config.ClientID, "Stopped: %s", r.results.Snapshot().Summary())
	r.setState(StateTerminated)

	if cause == nil {
		return result.ErrorOrNil()
	}
	if result != nil {
		r.log.Error(r.config.ClientID, "Shutdown errors: %v", result)
	}
	return cause
}
