// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Pixel buffers are 64-byte aligned so that band-level kernels can use
// vector loads on them. Sizes are validated before allocating so that a
// corrupt block geometry surfaces as an error instead of a runtime panic.
package mem
