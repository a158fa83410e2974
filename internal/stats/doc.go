// Package stats aggregates per-second operation counts and writes them to a
// file.
//
// A Window counts completed operations since the last flush and carries the
// nominal unix second of its next boundary. A Writer appends one Record per
// flush to the output file:
//
//	<unix_timestamp>,read,<n>,write,<n>,sindex_read,<n>,delete,<n>
//
// # Basic Usage
//
//	w, err := stats.Create("client-1.stats")
//	if err != nil {
//	    return err
//	}
//	win := stats.NewWindow(time.Now(), stats.DriftPreserve)
//
//	// at the top of every tick
//	if win.Due(time.Now()) {
//	    err = win.Flush(w, time.Now())
//	}
//	win.Add(op.Read, 1)
//
//	// on shutdown
//	err = win.Flush(w, time.Now())
//	err = w.Close()
//
// # Drift
//
// With DriftPreserve every flush advances the boundary by exactly one
// second, so timestamps form a gapless sequence that can fall behind the
// wall clock after a stall. DriftResync jumps the boundary forward when it
// is already behind, keeping timestamps near the wall clock at the cost of
// gaps in the sequence.
//
// # Thread Safety
//
// Window and Writer are owned by the scheduler goroutine and are not safe
// for concurrent use.
package stats
