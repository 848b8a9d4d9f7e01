// Package media stores note images. A Store normalizes each local file (imaging.Normalize),
// writes it to a Bucket under <folder>/<uuid> and hands back its public URL; the last path
// segment of that URL is the reference later used to delete the object.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"notesy/internal/imaging"
	"notesy/internal/metrics"
)

// Options are applied server-side to every upload.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int    // 0 = automatic
	Format    string // "auto", "jpeg" or "png"
}

// WebOptions caps images at 1200×1200 with automatic quality and format.
func WebOptions() Options {
	return Options{MaxWidth: 1200, MaxHeight: 1200, Format: imaging.FormatAuto}
}

// Service is the media store as the note service sees it.
type Service interface {
	Upload(ctx context.Context, localPath string, opts Options) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Bucket is the raw object storage behind a Store.
type Bucket interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
}

var (
	ErrInvalidImage     = errors.New("media: invalid image")
	ErrInvalidReference = errors.New("media: invalid reference")
)

type Store struct {
	bucket    Bucket
	publicURL string
	folder    string
}

func NewStore(bucket Bucket, publicURL, folder string) *Store {
	return &Store{
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		folder:    strings.Trim(folder, "/"),
	}
}

func (s *Store) Upload(ctx context.Context, localPath string, opts Options) (_ string, err error) {
	start := time.Now()
	defer func() { metrics.RecordMediaOperation("upload", err, time.Since(start)) }()

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path.Base(localPath), err)
	}
	enc, err := imaging.Normalize(data, imaging.Options(opts))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	key := s.key(uuid.NewString())
	if err := s.bucket.Put(ctx, key, enc.ContentType, bytes.NewReader(enc.Data)); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	metrics.MediaBytesUploaded.Add(float64(len(enc.Data)))
	return s.publicURL + "/" + key, nil
}

func (s *Store) Delete(ctx context.Context, ref string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordMediaOperation("delete", err, time.Since(start)) }()

	if ref == "" || strings.ContainsAny(ref, "/\\") || ref == ".." {
		return fmt.Errorf("%w %q", ErrInvalidReference, ref)
	}
	if err := s.bucket.Delete(ctx, s.key(ref)); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

func (s *Store) key(ref string) string {
	if s.folder == "" {
		return ref
	}
	return s.folder + "/" + ref
}

// ReferenceFromURL derives the media reference from an image URL: the final path segment with
// everything from its first '.' removed. It returns "" when the URL has no usable segment.
func ReferenceFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	seg := path.Base(p)
	if seg == "." || seg == "/" {
		return ""
	}
	ref, _, _ := strings.Cut(seg, ".")
	return ref
}
