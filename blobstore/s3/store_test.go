package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/blobstore"
)

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/images/index"
		})).Return(nil, &types.NoSuchKey{}).Once()

		_, err := store.Open(context.Background(), "images/index")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Key == "prefix/slides/index" && input.Range == nil
		})).Return(&s3.GetObjectOutput{
			Body:          io.NopCloser(strings.NewReader("snapshot")),
			ContentLength: aws.Int64(8),
		}, nil).Once()

		blob, err := store.Open(context.Background(), "slides/index")
		require.NoError(t, err)
		assert.Equal(t, int64(8), blob.Size())

		buf := make([]byte, 4)
		n, err := blob.ReadAt(context.Background(), buf, 4)
		require.NoError(t, err)
		assert.Equal(t, "shot", string(buf[:n]))
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "test-bucket" &&
			*input.Key == "prefix/images/index" &&
			aws.ToInt64(input.ContentLength) == 7 &&
			input.ChecksumCRC32C != nil
	})).Run(func(args mock.Arguments) {
		body, err := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		require.NoError(t, err)
		assert.Equal(t, "content", string(body))
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "images/index", []byte("content")))
	mockClient.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
}

func TestStore_List_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil && *input.Prefix == "prefix"
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("prefix/slides/index")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
	}, nil).Once()

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []types.Object{{Key: aws.String("prefix/images/index")}},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"images/index", "slides/index"}, keys)
	mockClient.AssertExpectations(t)
}

func TestGet(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "b", "")

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Key == "images/index"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("hello")),
	}, nil).Once()

	data, err := blobstore.Get(context.Background(), store, "images/index")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestComputeCRC32C(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, "4waSgw==", computeCRC32C([]byte("123456789")))
}
