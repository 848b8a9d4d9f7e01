package media

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// BlobBucket stores objects through a Go CDK bucket (file:// or mem:// URLs).
type BlobBucket struct {
	b *blob.Bucket
}

// OpenBlobBucket opens a bucket URL such as "file:///var/lib/notesy/media?create_dir=true" or "mem://".
func OpenBlobBucket(ctx context.Context, urlstr string) (*BlobBucket, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", urlstr, err)
	}
	return &BlobBucket{b: b}, nil
}

func NewBlobBucket(b *blob.Bucket) *BlobBucket {
	return &BlobBucket{b: b}
}

func (bb *BlobBucket) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	w, err := bb.b.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Delete treats a missing object as already deleted.
func (bb *BlobBucket) Delete(ctx context.Context, key string) error {
	err := bb.b.Delete(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Bucket exposes the underlying bucket so the HTTP layer can serve objects.
func (bb *BlobBucket) Bucket() *blob.Bucket {
	return bb.b
}

func (bb *BlobBucket) Close() error {
	return bb.b.Close()
}
