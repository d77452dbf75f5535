// Package storetesting provides a standardised conformance suite and benchmarks for
// backends that satisfy the store.IBackend interface.
//
// Example usage:
//
//	factory := func(t testing.TB) store.IBackend {
//		return mybackend.New(t.TempDir())
//	}
//
//	storetesting.RunStoreTests(t, "MyBackend", factory)
//	storetesting.RunStoreBenchmarks(b, "MyBackend", factory)
package storetesting
