// Package minio stores index snapshots on MinIO and other S3-compatible
// servers through minio-go, without the AWS SDK.
//
//	store, err := minio.Dial("localhost:9000", "minioadmin", "minioadmin", false, "cbir", "indexes/")
//
// Put is one PutObject of known length, which the server applies atomically.
// Open reads the whole object.
package minio
