package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"stress-client/internal/op"
)

var (
	// ErrInvariant はプログラム上あり得ない状態を表す。回復不能
	ErrInvariant = errors.New("workload: invariant violation")
	// ErrNoOperation は重み付き抽選で操作が選ばれなかった時に返される
	ErrNoOperation = errors.New("did not choose an operation to run")
)

// Scheduler は重みに従って操作を選ぶ
type Scheduler struct {
	weights Weights
	total   int
	rng     *rand.Rand
}

// NewScheduler は新しいSchedulerを作成する
// rngがnilの場合は現在時刻をシードに使う
func NewScheduler(weights Weights, rng *rand.Rand) (*Scheduler, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &Scheduler{
		weights: weights,
		total:   weights.Total(),
		rng:     rng,
	}, nil
}

// Weights は重みを返す
func (s *Scheduler) Weights() Weights {
	return s.weights
}

// Pick は次に実行する操作を選ぶ
// キーが一つもない場合は重みに関係なく書き込みを選ぶ
func (s *Scheduler) Pick(keysEmpty bool) (op.Kind, error) {
	if keysEmpty {
		return op.Write, nil
	}
	if s.total <= 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvariant, ErrNoOperation)
	}

	r := s.rng.IntN(s.total) + 1
	for _, k := range op.All {
		r -= s.weights.Of(k)
		if r <= 0 {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %w", ErrInvariant, ErrNoOperation)
}

// Tick は操作を1つ選んで実行する
func (s *Scheduler) Tick(ctx context.Context, c *Context) (op.Kind, error) {
	k, err := s.Pick(c.Keys.Empty())
	if err != nil {
		return 0, err
	}
	return k, For(k).Execute(ctx, c)
}
