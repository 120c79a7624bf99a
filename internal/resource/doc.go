// Package resource implements the Controller for process-wide limits that
// sit next to the cache budget.
//
// The Controller manages three resource types:
//
//   - Memory: a hard ceiling on pixel buffers (non-blocking, fail-fast)
//   - Concurrency: a bound on simultaneous write-back calls
//   - IO: a token bucket on write-back bytes so eviction storms do not
//     saturate the backing store
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                       Controller                            │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Memory Limit   │  Write-backs    │  IO Rate Limiter        │
//	│  (fail-fast)    │  (semaphore)    │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  TryAcquire-    │  AcquireWrite-  │  AcquireIO              │
//	│  Memory         │  Back           │                         │
//	│  ReleaseMemory  │  ReleaseWrite-  │                         │
//	│  MemoryUsage    │  Back           │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// The soft cache budget is not enforced here: the block cache accountant
// evicts to honor it and is allowed to overshoot. The memory limit of this
// package is the point where block allocation fails instead.
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
