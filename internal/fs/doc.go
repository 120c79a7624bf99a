// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// The file tile store writes every tile through a FileSystem, which lets
// tests fail individual tile writes and observe how the block cache keeps
// the affected blocks dirty.
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("band1/3", fs.Fault{FailOnRename: true})
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem operations are non-interruptible at the syscall level.
package fs
