package workload

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stress-client/internal/op"
	"stress-client/internal/stats"
	"stress-client/internal/store"
	"stress-client/internal/store/memstore"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func newMemContext(t *testing.T, batchSize int) (*Context, *memstore.Store) {
	t.Helper()
	s := memstore.New("test")
	s.CreateTable("test", "test")
	require.NoError(t, s.Connect(context.Background()))
	c := NewContext(ContextConfig{
		Store:     s,
		Database:  "test",
		Table:     "test",
		Window:    stats.NewWindow(time.Unix(1000, 0), stats.DriftPreserve),
		BatchSize: batchSize,
		Rand:      newRand(7),
	})
	return c, s
}

// recordingStore はInsertの呼び出しを記録し、指定回数だけ失敗させる
type recordingStore struct {
	store.Client
	inserts  [][]store.Row
	failures int
}

func (r *recordingStore) Insert(ctx context.Context, db, table string, rows []store.Row) ([]string, error) {
	batch := make([]store.Row, len(rows))
	copy(batch, rows)
	r.inserts = append(r.inserts, batch)
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("insert failed")
	}
	return r.Client.Insert(ctx, db, table, rows)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"default", DefaultWeights(), false},
		{"write only", Weights{Write: 1}, false},
		{"sindex only", Weights{SindexRead: 1}, false},
		{"all zero", Weights{}, true},
		{"negative", Weights{Read: -1, Write: 3}, true},
		{"largest single weight", Weights{Read: math.MaxInt}, false},
		{"sum overflows", Weights{Read: math.MaxInt, Write: math.MaxInt, Delete: 3}, true},
		{"sum overflows by one", Weights{Read: math.MaxInt, Delete: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.ErrorIs(t, Weights{}.Validate(), ErrNoWeight)
}

func TestWeightsTotalAndOf(t *testing.T) {
	w := Weights{Read: 5, Write: 3, SindexRead: 1, Delete: 2}
	assert.Equal(t, 11, w.Total())
	assert.Equal(t, 5, w.Of(op.Read))
	assert.Equal(t, 1, w.Of(op.SindexRead))
	assert.Equal(t, 0, w.Of(op.Kind(9)))
}

func TestNewSchedulerRejectsInvalidWeights(t *testing.T) {
	_, err := NewScheduler(Weights{}, nil)
	assert.ErrorIs(t, err, ErrNoWeight)

	_, err = NewScheduler(Weights{Read: math.MaxInt, Write: math.MaxInt, Delete: 3}, nil)
	assert.Error(t, err)
}

func TestPickEmptyKeySetAlwaysWrites(t *testing.T) {
	s, err := NewScheduler(Weights{Read: 100, Delete: 100}, newRand(1))
	require.NoError(t, err)

	for range 1000 {
		k, err := s.Pick(true)
		require.NoError(t, err)
		assert.Equal(t, op.Write, k)
	}
}

func TestPickRespectsZeroWeights(t *testing.T) {
	s, err := NewScheduler(Weights{Read: 1}, newRand(1))
	require.NoError(t, err)

	for range 1000 {
		k, err := s.Pick(false)
		require.NoError(t, err)
		assert.Equal(t, op.Read, k)
	}
}

func TestPickTieBreakFollowsEnumerationOrder(t *testing.T) {
	// r=1 は最初の正の重みを持つ操作に当たる
	w := Weights{Read: 0, Write: 1, SindexRead: 1, Delete: 1}
	s := &Scheduler{weights: w, total: w.Total(), rng: newRand(3)}

	counts := map[op.Kind]int{}
	for range 3000 {
		k, err := s.Pick(false)
		require.NoError(t, err)
		counts[k]++
	}
	assert.Zero(t, counts[op.Read])
	for _, k := range []op.Kind{op.Write, op.SindexRead, op.Delete} {
		assert.InDelta(t, 1000, counts[k], 150, "kind %s", k)
	}
}

func TestPickWithoutWeightsIsInvariantViolation(t *testing.T) {
	s := &Scheduler{rng: newRand(1)}
	_, err := s.Pick(false)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, err, ErrNoOperation)
}

func TestSindexReadIsNoop(t *testing.T) {
	c, s := newMemContext(t, 1)
	require.NoError(t, SindexReadOp{}.Execute(context.Background(), c))
	assert.Zero(t, c.Window.Count(op.SindexRead))
	assert.Zero(t, s.Size("test", "test"))
}

func TestReadAndDeleteOnEmptySetAreInvariantViolations(t *testing.T) {
	c, _ := newMemContext(t, 1)
	assert.ErrorIs(t, ReadOp{}.Execute(context.Background(), c), ErrInvariant)
	assert.ErrorIs(t, DeleteOp{}.Execute(context.Background(), c), ErrInvariant)
}

func TestWriteBatching(t *testing.T) {
	c, s := newMemContext(t, 4)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, WriteOp{}.Execute(ctx, c))
		assert.Equal(t, i+1, c.Pending())
		assert.Zero(t, c.Window.Count(op.Write), "counter must not move before the batch lands")
		assert.Zero(t, c.Keys.Len())
	}

	require.NoError(t, WriteOp{}.Execute(ctx, c))
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, uint64(4), c.Window.Count(op.Write))
	assert.Equal(t, 4, c.Keys.Len())
	assert.Equal(t, 4, s.Size("test", "test"))

	for _, key := range s.Keys("test", "test") {
		assert.True(t, c.Keys.Contains(key))
	}
}

func TestWriteValuesInRange(t *testing.T) {
	rec := &recordingStore{}
	c, s := newMemContext(t, 50)
	rec.Client = s
	c.Store = rec

	for range 50 {
		require.NoError(t, WriteOp{}.Execute(context.Background(), c))
	}
	require.Len(t, rec.inserts, 1)
	require.Len(t, rec.inserts[0], 50)
	for _, row := range rec.inserts[0] {
		assert.GreaterOrEqual(t, row.Value, 0)
		assert.LessOrEqual(t, row.Value, MaxValue)
	}
}

func TestWriteFailureRetriesSameBatch(t *testing.T) {
	c, s := newMemContext(t, 2)
	rec := &recordingStore{Client: s, failures: 1}
	c.Store = rec
	ctx := context.Background()

	require.NoError(t, WriteOp{}.Execute(ctx, c))
	err := WriteOp{}.Execute(ctx, c)
	require.Error(t, err)
	assert.Equal(t, 2, c.Pending(), "failed batch is kept")
	assert.Zero(t, c.Window.Count(op.Write))
	assert.Zero(t, c.Keys.Len())

	// 次の書き込みは失敗したバッチを先に再送し、自分の行を新しいバッファに積む
	require.NoError(t, WriteOp{}.Execute(ctx, c))
	require.Len(t, rec.inserts, 2)
	assert.Equal(t, rec.inserts[0], rec.inserts[1])
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, uint64(2), c.Window.Count(op.Write))
	assert.Equal(t, 2, c.Keys.Len())
	assert.LessOrEqual(t, c.Pending(), c.BatchSize())
}

func TestDeleteRemovesKeyOnlyAfterSuccess(t *testing.T) {
	c, s := newMemContext(t, 1)
	ctx := context.Background()
	require.NoError(t, WriteOp{}.Execute(ctx, c))
	require.Equal(t, 1, c.Keys.Len())
	key := c.Keys.Keys()[0]

	s.FailNext(1)
	require.Error(t, DeleteOp{}.Execute(ctx, c))
	assert.True(t, c.Keys.Contains(key), "key stays tracked when delete fails")
	assert.Zero(t, c.Window.Count(op.Delete))

	require.NoError(t, DeleteOp{}.Execute(ctx, c))
	assert.False(t, c.Keys.Contains(key))
	assert.Equal(t, uint64(1), c.Window.Count(op.Delete))
	assert.Zero(t, s.Size("test", "test"))
}

func TestDeletedKeyNeverReadAgain(t *testing.T) {
	c, s := newMemContext(t, 1)
	ctx := context.Background()
	for range 20 {
		require.NoError(t, WriteOp{}.Execute(ctx, c))
	}
	for range 10 {
		require.NoError(t, DeleteOp{}.Execute(ctx, c))
	}

	live := map[string]bool{}
	for _, k := range s.Keys("test", "test") {
		live[k] = true
	}
	assert.Len(t, live, 10)
	for range 200 {
		key, err := c.Keys.Sample(c.Rand)
		require.NoError(t, err)
		assert.True(t, live[key], "sampled key %s was deleted", key)
	}
}

func TestReadCountsAndDiscards(t *testing.T) {
	c, _ := newMemContext(t, 1)
	ctx := context.Background()
	require.NoError(t, WriteOp{}.Execute(ctx, c))

	for range 5 {
		require.NoError(t, ReadOp{}.Execute(ctx, c))
	}
	assert.Equal(t, uint64(5), c.Window.Count(op.Read))
}

func TestScenarioTenWritesThenRead(t *testing.T) {
	c, _ := newMemContext(t, 1)
	ctx := context.Background()
	s, err := NewScheduler(Weights{Read: 5, Write: 3, Delete: 2, SindexRead: 0}, newRand(11))
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, WriteOp{}.Execute(ctx, c))
	}
	assert.Equal(t, 10, c.Keys.Len())
	assert.NoError(t, ReadOp{}.Execute(ctx, c))

	for range 100 {
		_, err := s.Tick(ctx, c)
		require.NoError(t, err)
	}
}

func TestTickBootstrapsEmptyTable(t *testing.T) {
	c, s := newMemContext(t, 3)
	sched, err := NewScheduler(Weights{Read: 1}, newRand(5))
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		k, err := sched.Tick(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, op.Write, k)
	}
	assert.Equal(t, 3, s.Size("test", "test"))

	k, err := sched.Tick(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, op.Read, k)
}

func TestForReturnsMatchingKind(t *testing.T) {
	for _, k := range op.All {
		o := For(k)
		require.NotNil(t, o)
		assert.Equal(t, k, o.Kind())
	}
	assert.Nil(t, For(op.Kind(-1)))
	assert.Nil(t, For(op.Kind(op.Count)))
}
