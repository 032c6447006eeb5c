// Package blobstore provides the storage abstraction behind out-of-core
// (stored) collections.
//
// A stored collection is a manifest blob plus a vector blob. Matching
// against it reads bounded byte ranges of the vector blob, so any Store that
// supports ranged reads can back a collection far larger than memory.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible systems
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
