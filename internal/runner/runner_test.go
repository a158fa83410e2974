package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stress-client/internal/config"
	"stress-client/internal/events"
	"stress-client/internal/handshake"
	"stress-client/internal/logger"
	"stress-client/internal/op"
	"stress-client/internal/stats"
	"stress-client/internal/store"
	"stress-client/internal/store/memstore"
	"stress-client/internal/workload"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock(sec int64) *fakeClock {
	return &fakeClock{now: time.Unix(sec, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// hookStore はInsertごとにフックを呼び、失敗を注入できる
type hookStore struct {
	*memstore.Store

	mu          sync.Mutex
	inserts     int
	failInsert  func(n int) bool
	afterInsert func(n int)
}

func (h *hookStore) Insert(ctx context.Context, db, table string, rows []store.Row) ([]string, error) {
	h.mu.Lock()
	h.inserts++
	n := h.inserts
	h.mu.Unlock()

	if h.afterInsert != nil {
		defer h.afterInsert(n)
	}
	if h.failInsert != nil && h.failInsert(n) {
		return nil, errors.New("insert rejected")
	}
	return h.Store.Insert(ctx, db, table, rows)
}

func newHookStore() *hookStore {
	s := memstore.New("runner-test")
	s.CreateTable("test", "test")
	return &hookStore{Store: s}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ClientID = "test"
	cfg.Weights = workload.Weights{Write: 1}
	cfg.BatchSize = 1
	cfg.Output = filepath.Join(t.TempDir(), "stats.csv")
	return cfg
}

func quietLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelDebug)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestRunWritesFinalWindowOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newHookStore()
	s.afterInsert = func(n int) {
		if n == 10 {
			cancel()
		}
	}
	cfg := testConfig(t)
	var stdout bytes.Buffer

	r, err := New(cfg, s,
		WithClock(newFakeClock(1000)),
		WithStdio(strings.NewReader("go\n"), &stdout),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx))

	assert.Equal(t, "ready\n", stdout.String())
	assert.Equal(t, []string{
		"1000,read,0,write,0,sindex_read,0,delete,0",
		"1001,read,0,write,10,sindex_read,0,delete,0",
	}, readLines(t, cfg.Output))
	assert.Equal(t, StateTerminated, r.State())
	assert.Equal(t, memstore.StatusStopped, s.Status())
	assert.Equal(t, 10, r.Status().KeySetSize)
}

func TestRunStepsWindowsOncePerSecond(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock(1000)
	s := newHookStore()
	s.afterInsert = func(n int) {
		clock.Advance(400 * time.Millisecond)
		if n == 6 {
			cancel()
		}
	}
	cfg := testConfig(t)

	r, err := New(cfg, s,
		WithClock(clock),
		WithStdio(strings.NewReader("go\n"), io.Discard),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, []string{
		"1000,read,0,write,0,sindex_read,0,delete,0",
		"1001,read,0,write,3,sindex_read,0,delete,0",
		"1002,read,0,write,2,sindex_read,0,delete,0",
		"1003,read,0,write,1,sindex_read,0,delete,0",
	}, readLines(t, cfg.Output))
}

func TestRunBatchesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newHookStore()
	s.afterInsert = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	cfg := testConfig(t)
	cfg.BatchSize = 5

	r, err := New(cfg, s,
		WithClock(newFakeClock(1000)),
		WithStdio(strings.NewReader("go\n"), io.Discard),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	lines := readLines(t, cfg.Output)
	require.Len(t, lines, 2)
	assert.Equal(t, "1001,read,0,write,10,sindex_read,0,delete,0", lines[1])
	assert.Equal(t, 10, s.Size("test", "test"))
}

func TestRunBacksOffAfterConsecutiveErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock(1000)
	s := newHookStore()
	s.failInsert = func(int) bool { return true }
	s.afterInsert = func(n int) {
		if n == 8 {
			cancel()
		}
	}
	cfg := testConfig(t)

	r, err := New(cfg, s,
		WithClock(clock),
		WithStdio(strings.NewReader("go\n"), io.Discard),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	// 5回目以降の失敗ごとに0.5秒休む
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, clock.Sleeps())

	for _, line := range readLines(t, cfg.Output) {
		assert.Contains(t, line, ",write,0,", "failed inserts must not be counted")
	}
	assert.Equal(t, uint64(8), r.Results().Ops[op.Write].Failed)
	assert.Zero(t, s.Size("test", "test"))
}

func TestRunSuccessResetsErrorCounter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock(1000)
	s := newHookStore()
	// 5回目の再送が成功すると同じ書き込みで次の行も挿入される
	s.failInsert = func(n int) bool { return n < 5 || n > 6 }
	s.afterInsert = func(n int) {
		if n == 9 {
			cancel()
		}
	}
	cfg := testConfig(t)

	r, err := New(cfg, s,
		WithClock(clock),
		WithStdio(strings.NewReader("go\n"), io.Discard),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 2, s.Size("test", "test"))
}

func TestRunMissingTableIsConfigError(t *testing.T) {
	s := memstore.New("runner-test")
	s.CreateTable("test", "other")
	cfg := testConfig(t)
	var stdout bytes.Buffer

	r, err := New(cfg, s,
		WithStdio(strings.NewReader("go\n"), &stdout),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.ErrorIs(t, err, store.ErrTableNotFound)
	assert.Empty(t, stdout.String(), "no handshake before the target is validated")
	assert.Equal(t, StateTerminated, r.State())
	assert.NoFileExists(t, cfg.Output)
}

func TestRunMissingDatabaseIsConfigError(t *testing.T) {
	s := memstore.New("runner-test")
	s.CreateTable("other", "test")
	cfg := testConfig(t)

	r, err := New(cfg, s, WithStdio(strings.NewReader("go\n"), io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, store.ErrDatabaseNotFound)
}

func TestRunProtocolError(t *testing.T) {
	s := newHookStore()
	cfg := testConfig(t)
	var stdout bytes.Buffer

	r, err := New(cfg, s,
		WithStdio(strings.NewReader("start\n"), &stdout),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, handshake.ErrProtocol)
	assert.Equal(t, "ready\n", stdout.String())
	assert.Empty(t, readLines(t, cfg.Output))
	assert.Equal(t, memstore.StatusStopped, s.Status())
	assert.Equal(t, StateTerminated, r.State())
}

func TestRunInterruptedDuringHandshake(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := newHookStore()
	cfg := testConfig(t)
	r, err := New(cfg, s, WithStdio(pr, io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.State() == StateHandshake }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}

	lines := readLines(t, cfg.Output)
	require.Len(t, lines, 1, "an interrupted client still leaves one final record")
	rec, err := stats.ParseRecord(lines[0])
	require.NoError(t, err)
	assert.Zero(t, rec.Total())
	assert.Positive(t, rec.Timestamp)
	assert.Equal(t, StateTerminated, r.State())
}

func TestInterruptDoesNotAbortInFlightOperation(t *testing.T) {
	s := newHookStore()
	s.SetDelay(20 * time.Millisecond)
	cfg := testConfig(t)

	r, err := New(cfg, s, WithStdio(strings.NewReader("go\n"), io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.State() == StateRunning }, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}

	total := r.Results().Total()
	assert.Zero(t, total.Failed, "interrupt must not fail the operation in flight")
	assert.GreaterOrEqual(t, total.Success, uint64(1))
}

func TestRunTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newHookStore()
	s.afterInsert = func(int) { cancel() }
	cfg := testConfig(t)

	r, err := New(cfg, s, WithClock(newFakeClock(1000)), WithStdio(strings.NewReader("go\n"), io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRun)
}

func TestRunPublishesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newHookStore()
	s.afterInsert = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	bus := events.NewBus()
	ch := bus.Subscribe()
	cfg := testConfig(t)

	r, err := New(cfg, s,
		WithClock(newFakeClock(1000)),
		WithStdio(strings.NewReader("go\n"), io.Discard),
		WithLogger(quietLogger()),
		WithEvents(bus),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))
	bus.Close()

	var states []string
	var windows []int64
	for e := range ch {
		switch e.Type {
		case events.EventStateChanged:
			states = append(states, e.Data.State)
		case events.EventWindowFlushed:
			windows = append(windows, e.Data.Window)
		}
	}
	assert.Equal(t, []string{"INIT", "HANDSHAKE", "RUNNING", "SHUTTING_DOWN", "TERMINATED"}, states)
	assert.Equal(t, []int64{1000, 1001}, windows)
}

func TestNewValidation(t *testing.T) {
	s := newHookStore()

	cfg := testConfig(t)
	cfg.Weights = workload.Weights{}
	_, err := New(cfg, s)
	assert.True(t, config.IsConfigError(err))

	cfg = testConfig(t)
	cfg.Output = ""
	_, err = New(cfg, s)
	assert.True(t, config.IsConfigError(err))

	_, err = New(testConfig(t), nil)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	c := config.DefaultConfig()
	c.ClientID = "c3"
	c.Output = "out.csv"
	c.BatchSize = 7

	rc := FromConfig(c)
	assert.Equal(t, "c3", rc.ClientID)
	assert.Equal(t, "out.csv", rc.Output)
	assert.Equal(t, 7, rc.BatchSize)
	assert.Equal(t, 5, rc.MaxConsecutiveErrors)
	assert.Equal(t, 500*time.Millisecond, rc.ErrorBackoff)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "INIT"},
		{StateHandshake, "HANDSHAKE"},
		{StateRunning, "RUNNING"},
		{StateShuttingDown, "SHUTTING_DOWN"},
		{StateTerminated, "TERMINATED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestSystemClockSleepInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SystemClock().Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
