// Package memstore provides an in-process implementation of store.Client.
//
// A Store holds databases of tables of rows in memory and generates UUID keys
// on insert, the same shape of key a document store hands back. It is used
// by the memory driver and by tests throughout the module.
//
// # Basic Usage
//
//	s := memstore.New("mem")
//	s.CreateTable("test", "test")
//	if err := s.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	keys, err := s.Insert(ctx, "test", "test", []store.Row{{Value: 1}})
//
// # Fault Injection
//
// A Store can be made slow or unavailable to exercise the client's error
// handling:
//   - SetDelay: every operation waits before running
//   - Suspend / Resume: operations fail with ErrSuspended while suspended
//   - FailNext(n): the next n operations fail with ErrInjected
//
// An Injector applies these faults at random on an interval and restores the
// store after FaultConfig.RecoverAfter:
//
//	in := memstore.NewInjector(s, memstore.DefaultFaultConfig())
//	in.Start(ctx)
//	defer in.Stop()
package memstore
