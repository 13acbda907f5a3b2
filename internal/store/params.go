package store

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ParamStore is a flat string key/value store.
type ParamStore interface {
	// Get returns the value of key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Put sets key to value, overwriting any previous value.
	Put(ctx context.Context, key, value string) error
}

// BucketParams keeps parameters as small objects in a gocloud bucket.
// Useful where SSM is not available, e.g. file:// for local runs.
type BucketParams struct {
	bucket *blob.Bucket
	prefix string
}

// NewBucketParams stores parameters in bucket under prefix.
func NewBucketParams(bucket *blob.Bucket, prefix string) *BucketParams {
	return &BucketParams{bucket: bucket, prefix: prefix}
}

// Get reads the parameter object.
func (p *BucketParams) Get(ctx context.Context, key string) (string, error) {
	data, err := p.bucket.ReadAll(ctx, p.path(key))
	if err != nil {
		if isNotExist(err) {
			return "", fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return "", Wrap("get", key, err)
	}
	return string(data), nil
}

// Put writes the parameter object. Blob writes replace the object atomically.
func (p *BucketParams) Put(ctx context.Context, key, value string) error {
	err := p.bucket.WriteAll(ctx, p.path(key), []byte(value), &blob.WriterOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	return Wrap("put", key, err)
}

// path maps a parameter name like "/csca/sha256" onto an object key.
func (p *BucketParams) path(key string) string {
	return p.prefix + strings.TrimPrefix(key, "/")
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
