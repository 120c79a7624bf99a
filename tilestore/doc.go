// Package tilestore provides backing stores for cached raster blocks.
//
// A Store persists encoded tiles addressed by Key. Band adapts a Store to
// blockcache.BandIO so that a band cache can read missing blocks from it and
// write dirty blocks back to it. Tiles are framed with a small header that
// records the codec, the raw size and a CRC32C checksum of the raw bytes.
//
// Implementations:
//   - MemoryStore: in-process map, for tests and scratch bands.
//   - FileStore: one file per tile under a directory.
//   - sqlite.Store: a tiles table in an SQLite database.
//   - minio.Store: MinIO and other S3 compatible object stores.
//   - s3.Store: Amazon S3.
//
// CachingStore wraps a slow Store with an in-memory frame cache, which helps
// when blocks are evicted and read again soon after.
package tilestore
