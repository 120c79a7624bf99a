// Package testutil provides testing utilities for tilecache.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic RNG for tile contents and coordinates, and
// StubBand, an in-memory backing store that records writes and injects
// failures.
//
//	stub := testutil.NewStubBand()
//	stub.FailWrite(1, 2, testutil.ErrStub)
//	band, _ := blockcache.NewBandCache(acct, stub, geom)
package testutil
