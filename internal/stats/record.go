package stats

import (
	"fmt"
	"strconv"
	"strings"

	"stress-client/internal/op"
)

// Record は1ウィンドウ分の統計
type Record struct {
	Timestamp int64
	Counts    [op.Count]uint64
}

// Count は操作の件数を返す
func (r Record) Count(k op.Kind) uint64 {
	return r.Counts[k]
}

// Total は全操作の合計を返す
func (r Record) Total() uint64 {
	var total uint64
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// String は出力ファイルの1行の形式で返す（改行なし）
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	for _, k := range op.All {
		b.WriteByte(',')
		b.WriteString(k.String())
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(r.Counts[k], 10))
	}
	return b.String()
}

// ParseRecord は出力ファイルの1行をパースする
// 操作名は順不同で受け付ける
func ParseRecord(line string) (Record, error) {
	var rec Record

	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields)%2 != 1 {
		return rec, fmt.Errorf("malformed stats record: %q", line)
	}

	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return rec, fmt.Errorf("invalid timestamp in %q: %w", line, err)
	}
	rec.Timestamp = int64(ts)

	for i := 1; i < len(fields); i += 2 {
		k, err := op.Parse(fields[i])
		if err != nil {
			return rec, fmt.Errorf("invalid stats record %q: %w", line, err)
		}
		n, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return rec, fmt.Errorf("invalid count for %s in %q: %w", k, line, err)
		}
		rec.Counts[k] = n
	}
	return rec, nil
}
