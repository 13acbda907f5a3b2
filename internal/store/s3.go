package store

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Blobs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ BlobStore = (*S3Blobs)(nil)

// S3Blobs is a BlobStore that writes directly with the AWS S3 client.
type S3Blobs struct {
	client S3API
}

// NewS3Blobs wraps an S3 client.
func NewS3Blobs(client S3API) *S3Blobs {
	return &S3Blobs{client: client}
}

// Put uploads data with a SHA-256 checksum computed by the SDK.
func (s *S3Blobs) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	return Wrap("put", bucket+"/"+key, err)
}
