// Package hash provides the hashing primitives used by the cache and the
// tile stores.
//
// # CRC32-Castagnoli (CRC32C)
//
// Tile frames written by tilestore carry a CRC32C of the uncompressed pixel
// data. Go's crc32 package uses SSE4.2 / ARM CRC instructions when present.
//
//	checksum := hash.CRC32C(data)
//
// # Integer mixing
//
// Mix64 is used by the sparse block index to hash packed (x, y) keys. Block
// coordinates are small, dense integers; without mixing they would cluster
// in a few buckets of a prime-sized table.
package hash
