package minio

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cytomine/cbir/blobstore"
)

var _ blobstore.BlobStore = (*Store)(nil)

// Store keeps index snapshots as objects in a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	keys   blobstore.Keyspace
}

// NewStore wraps client. rootPrefix is prepended to every object key.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, keys: blobstore.Keyspace(rootPrefix)}
}

// Dial connects with static V4 credentials.
func Dial(endpoint, accessKey, secretKey string, secure bool, bucket, rootPrefix string) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	return NewStore(client, bucket, rootPrefix), nil
}

func missing(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open downloads the object into memory.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.keys.Key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(name, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key before the body is read.
	info, err := obj.Stat()
	if err != nil {
		return nil, s.wrap(name, err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, info.Size))
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, s.wrap(name, err)
	}
	return blobstore.BytesBlob(buf.Bytes()), nil
}

func (s *Store) wrap(name string, err error) error {
	if missing(err) {
		return fmt.Errorf("minio: %s: %w", name, blobstore.ErrNotFound)
	}
	return fmt.Errorf("minio: %s: %w", name, err)
}

// Put uploads data in a single request of known length.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.keys.Key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return s.wrap(name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.keys.Key(name), minio.RemoveObjectOptions{})
	if err != nil && !missing(err) {
		return s.wrap(name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.keys.Key(prefix),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %q: %w", prefix, obj.Err)
		}
		if name := s.keys.Name(obj.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
