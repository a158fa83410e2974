// Package metrics collects per-operation results and latency for a run.
//
// The runner records every executed operation. At shutdown the snapshot is
// logged as a one-line summary, complementing the per-second counts in the
// stats file with error rates and latency.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	err := doOperation()
//	m.Record(op.Read, time.Since(start), err)
//
//	snap := m.Snapshot()
//	fmt.Println(snap.Summary())
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	m := metrics.NewWithConfig(metrics.Config{MaxLatencySamples: 5000})
//
// # Thread Safety
//
// Counters are atomic and the latency sample buffer is mutex protected, so
// a snapshot may be taken from another goroutine while the runner records.
package metrics
