package workload

import (
	"errors"
	"fmt"
	"math"

	"stress-client/internal/op"
)

// ErrNoWeight は全ての重みが0の時に返される
var ErrNoWeight = errors.New("workload: at least one operation weight must be positive")

// Weights は操作ごとの重み
type Weights struct {
	Read       int `yaml:"reads" json:"reads"`
	Write      int `yaml:"writes" json:"writes"`
	SindexRead int `yaml:"sindex_reads" json:"sindex_reads"`
	Delete     int `yaml:"deletes" json:"deletes"`
}

// DefaultWeights はデフォルトの重みを返す
func DefaultWeights() Weights {
	return Weights{
		Read:       5,
		Write:      3,
		SindexRead: 0,
		Delete:     2,
	}
}

// Of は操作の重みを返す
func (w Weights) Of(k op.Kind) int {
	switch k {
	case op.Read:
		return w.Read
	case op.Write:
		return w.Write
	case op.SindexRead:
		return w.SindexRead
	case op.Delete:
		return w.Delete
	default:
		return 0
	}
}

// Total は重みの合計を返す
func (w Weights) Total() int {
	total := 0
	for _, k := range op.All {
		total += w.Of(k)
	}
	return total
}

// Validate は重みを検証する
func (w Weights) Validate() error {
	total := 0
	for _, k := range op.All {
		n := w.Of(k)
		if n < 0 {
			return fmt.Errorf("weight of %s must be non-negative, got %d", k, n)
		}
		if total > math.MaxInt-n {
			return fmt.Errorf("sum of weights overflows at %s=%d", k, n)
		}
		total += n
	}
	if total == 0 {
		return ErrNoWeight
	}
	return nil
}

func (w Weights) String() string {
	return fmt.Sprintf("read=%d write=%d sindex_read=%d delete=%d",
		w.Read, w.Write, w.SindexRead, w.Delete)
}
