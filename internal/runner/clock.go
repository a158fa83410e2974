package runner

import (
	"context"
	"time"
)

// Clock はRunnerが使う時刻と待機
type Clock interface {
	Now() time.Time
	// Sleep はdだけ待つ。ctxがキャンセルされたら待たずにctx.Err()を返す
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock は実時間のClockを返す
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
