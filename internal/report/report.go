// Package report aggregates the stats files written by stress clients.
//
// Each client writes one record per second. Records of all clients that
// share a timestamp are summed, giving the cluster-wide operation counts per
// second. The first record of every file is the zero-count start marker.
package report

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"stress-client/internal/op"
	"stress-client/internal/stats"
)

// ReadFile は統計ファイルを読み込む。空行は無視する
func ReadFile(path string) ([]stats.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	var records []stats.Record
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := stats.ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// Report は複数クライアントの集計結果
type Report struct {
	Clients int
	Windows []stats.Record // タイムスタンプ順、同じ秒は合算済み
	Totals  [op.Count]uint64
}

// Aggregate はクライアントごとのレコード列を合算する
func Aggregate(perClient ...[]stats.Record) *Report {
	r := &Report{Clients: len(perClient)}

	byTS := make(map[int64]*stats.Record)
	for _, records := range perClient {
		for _, rec := range records {
			w, ok := byTS[rec.Timestamp]
			if !ok {
				w = &stats.Record{Timestamp: rec.Timestamp}
				byTS[rec.Timestamp] = w
			}
			for _, k := range op.All {
				w.Counts[k] += rec.Counts[k]
				r.Totals[k] += rec.Counts[k]
			}
		}
	}

	r.Windows = make([]stats.Record, 0, len(byTS))
	for _, w := range byTS {
		r.Windows = append(r.Windows, *w)
	}
	slices.SortFunc(r.Windows, func(a, b stats.Record) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return r
}

// AggregateFiles はファイルを読み込んで合算する
func AggregateFiles(paths ...string) (*Report, error) {
	perClient := make([][]stats.Record, 0, len(paths))
	for _, p := range paths {
		records, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		perClient = append(perClient, records)
	}
	return Aggregate(perClient...), nil
}

// Seconds は最初と最後のウィンドウの間の秒数を返す
func (r *Report) Seconds() int64 {
	if len(r.Windows) < 2 {
		return 0
	}
	return r.Windows[len(r.Windows)-1].Timestamp - r.Windows[0].Timestamp
}

// Total は全操作の合計を返す
func (r *Report) Total() uint64 {
	var total uint64
	for _, n := range r.Totals {
		total += n
	}
	return total
}

// Rate は1秒あたりの平均件数を返す
func (r *Report) Rate(k op.Kind) float64 {
	secs := r.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(r.Totals[k]) / float64(secs)
}

// Peak は最も件数の多かったウィンドウを返す
func (r *Report) Peak() stats.Record {
	var peak stats.Record
	for _, w := range r.Windows {
		if w.Total() > peak.Total() {
			peak = w
		}
	}
	return peak
}

// String は結果をフォーマットして返す
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                              STRESS REPORT
================================================================================

EXECUTION SUMMARY
-----------------
  Clients:        %d
  Windows:        %d
  Duration:       %ds

OPERATIONS
----------
`, r.Clients, len(r.Windows), r.Seconds())

	for _, k := range op.All {
		fmt.Fprintf(&b, "  %-14s %10d  (%.1f/s)\n", k.String()+":", r.Totals[k], r.Rate(k))
	}
	peak := r.Peak()
	fmt.Fprintf(&b, "  %-14s %10d\n", "total:", r.Total())
	fmt.Fprintf(&b, "  %-14s %10d  (at %d)\n", "peak second:", peak.Total(), peak.Timestamp)

	b.WriteString("\n================================================================================")
	return b.String()
}
