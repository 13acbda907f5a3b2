package store

import (
	"context"
	"errors"
	"sync"

	"gocloud.dev/blob"
)

// BlobStore writes whole objects.
type BlobStore interface {
	// Put stores data at bucket/key, replacing any existing object.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

var _ BlobStore = (*Buckets)(nil)

// Buckets is a BlobStore over gocloud bucket URLs (s3://, gs://, file://, mem://).
// Buckets are opened on first use and kept until Close.
type Buckets struct {
	mu      sync.Mutex
	buckets map[string]*blob.Bucket
	open    func(ctx context.Context, url string) (*blob.Bucket, error)
}

// NewBuckets returns an empty bucket set.
func NewBuckets() *Buckets {
	return &Buckets{
		buckets: make(map[string]*blob.Bucket),
		open:    blob.OpenBucket,
	}
}

// Register makes bkt available under name without opening a URL.
func (b *Buckets) Register(name string, bkt *blob.Bucket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[name] = bkt
}

// Bucket returns the bucket for url, opening it if needed.
func (b *Buckets) Bucket(ctx context.Context, url string) (*blob.Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bkt, ok := b.buckets[url]; ok {
		return bkt, nil
	}
	bkt, err := b.open(ctx, url)
	if err != nil {
		return nil, Wrap("open", url, err)
	}
	b.buckets[url] = bkt
	return bkt, nil
}

// Put writes data in a single request.
func (b *Buckets) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	bkt, err := b.Bucket(ctx, bucket)
	if err != nil {
		return err
	}

	err = bkt.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
	return Wrap("put", bucket+"/"+key, err)
}

// Close closes every bucket.
func (b *Buckets) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, bkt := range b.buckets {
		if err := bkt.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.buckets, name)
	}
	return errors.Join(errs...)
}
