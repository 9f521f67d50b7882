// Package blobstore provides the storage abstraction for persisted index files.
//
// Each collection persists one blob named "<storage>/<index>". Writers replace
// a blob atomically through Put; readers never observe a partial write.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, temp-file-then-rename writes, mmap reads
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 single-object PUT through the transfer manager
//   - minio.Store: MinIO and other S3-compatible servers
//
// LocalStore never creates directories: the "<storage>" directory is
// provisioned outside this package and a missing one fails Put.
package blobstore
