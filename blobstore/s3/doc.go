// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("cbir/"),
//	    s3.WithRegion("eu-west-1"),
//	)
//
// Index files are replaced with a single PutObject carrying a CRC32C
// checksum, which S3 applies atomically. Files larger than the configured
// part size go through the transfer manager's multipart upload, which is
// also only visible once completed.
package s3
