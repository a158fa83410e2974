package stats

import (
	"fmt"
	"strings"
	"time"

	"stress-client/internal/op"
)

// DriftPolicy はウィンドウ境界が実時間から遅れた時の扱い
type DriftPolicy int

const (
	// DriftPreserve は境界を常に1秒ずつ進める
	DriftPreserve DriftPolicy = iota
	// DriftResync は境界が遅れていれば現在時刻の次の秒まで進める
	DriftResync
)

func (p DriftPolicy) String() string {
	switch p {
	case DriftPreserve:
		return "preserve"
	case DriftResync:
		return "resync"
	default:
		return "unknown"
	}
}

// ParseDriftPolicy は名前からDriftPolicyを返す
func ParseDriftPolicy(s string) (DriftPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve":
		return DriftPreserve, nil
	case "resync":
		return DriftResync, nil
	default:
		return DriftPreserve, fmt.Errorf("unknown drift policy: %q", s)
	}
}

// Window は現在のウィンドウの操作数を集計する
type Window struct {
	counts  [op.Count]uint64
	next    int64
	policy  DriftPolicy
	flushes uint64
}

// NewWindow は新しいウィンドウを作成する
// 最初の境界はstartの秒なので、最初のDueは即座にtrueになる
func NewWindow(start time.Time, policy DriftPolicy) *Window {
	return &Window{
		next:   start.Unix(),
		policy: policy,
	}
}

// Add は操作数を加算する
func (w *Window) Add(k op.Kind, n uint64) {
	w.counts[k] += n
}

// Count は現在のウィンドウの操作数を返す
func (w *Window) Count(k op.Kind) uint64 {
	return w.counts[k]
}

// Next は次にフラッシュされる境界の時刻(unix秒)を返す
func (w *Window) Next() int64 {
	return w.next
}

// Flushes はフラッシュ回数を返す
func (w *Window) Flushes() uint64 {
	return w.flushes
}

// Due は境界に達したかどうかを返す
func (w *Window) Due(now time.Time) bool {
	return !now.Before(time.Unix(w.next, 0))
}

// Snapshot は現在のウィンドウをRecordとして返す
func (w *Window) Snapshot() Record {
	return Record{
		Timestamp: w.next,
		Counts:    w.counts,
	}
}

// Flush はレコードを書き出し、カウンタをリセットして境界を進める
// 書き込みに失敗した場合はカウンタも境界もそのまま残る
func (w *Window) Flush(out *Writer, now time.Time) error {
	if err := out.Write(w.Snapshot()); err != nil {
		return err
	}
	w.reset(now)
	return nil
}

// reset はカウンタをリセットして境界を進める
func (w *Window) reset(now time.Time) {
	w.counts = [op.Count]uint64{}
	w.flushes++
	w.next++

	if w.policy == DriftResync && now.Unix() > w.next {
		w.next = now.Unix() + 1
	}
}
