// Package hashset implements a generic hash set with caller supplied hash,
// equality and free callbacks.
//
// Elements are chained in prime-sized bucket tables. The table grows when
// the average chain length reaches two and shrinks when it falls below one
// half. Rehashing relinks the existing chain nodes, so elements are never
// copied, freed or lost while the table is resized.
//
// Destroy is the only operation that invokes the free callback: Remove hands
// the element back to the caller, and a rejected duplicate Insert leaves the
// element owned by the caller.
package hashset
