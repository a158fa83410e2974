// Package workload provides the weighted scheduler and the operations of the
// stress client.
//
// A Context owns all mutable state of one client: the key set, the stats
// window, the pending write buffer and the random source. Each tick the
// Scheduler picks one Op and runs it against the Context.
//
// # Basic Usage
//
//	wc := workload.NewContext(workload.ContextConfig{
//	    Store:     client,
//	    Database:  "test",
//	    Table:     "test",
//	    Window:    window,
//	    BatchSize: 100,
//	})
//	sched, err := workload.NewScheduler(workload.DefaultWeights(), rng)
//	if err != nil {
//	    return err
//	}
//
//	for {
//	    kind, err := sched.Tick(ctx, wc)
//	    ...
//	}
//
// # Selection
//
// While the key set is empty the scheduler always picks a write. Otherwise
// it draws r in [1, total] and walks read, write, sindex_read, delete,
// subtracting each weight until r <= 0.
//
// # Write Batching
//
// Writes are buffered and sent as one insert when the buffer reaches the
// batch size. The write counter in the stats window only moves when a batch
// lands, by the whole batch at once.
package workload
