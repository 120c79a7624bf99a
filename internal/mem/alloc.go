// Package mem provides memory allocation utilities.
package mem

import (
	"errors"
	"unsafe"
)

// Alignment is the byte alignment of pixel buffers (one cache line, AVX-512 friendly).
const Alignment = 64

// MaxAlloc is the largest single buffer AllocAligned will attempt.
const MaxAlloc int64 = 1 << 40

// ErrInvalidSize is returned for sizes that cannot be allocated.
var ErrInvalidSize = errors.New("mem: invalid allocation size")

// AllocAligned allocates a zeroed byte slice of the given size with 64-byte alignment.
// The returned slice is guaranteed to start at a memory address divisible by 64.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size int) ([]byte, error) {
	if size <= 0 || int64(size) > MaxAlloc {
		return nil, ErrInvalidSize
	}

	// Allocate size + alignment to ensure we can find an aligned offset
	buf := make([]byte, size+Alignment)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)], nil
}

// BlockBytes returns width*height*pixelSize, or ErrInvalidSize when the
// product is not positive or does not fit a single allocation.
func BlockBytes(width, height, pixelSize int) (int, error) {
	if width <= 0 || height <= 0 || pixelSize <= 0 {
		return 0, ErrInvalidSize
	}
	w, h, p := int64(width), int64(height), int64(pixelSize)
	if w > MaxAlloc/h {
		return 0, ErrInvalidSize
	}
	wh := w * h
	if wh > MaxAlloc/p {
		return 0, ErrInvalidSize
	}
	return int(wh * p), nil
}
