package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func TestReferenceFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://host/a.jpg", "a"},
		{"https://cdn.example.com/v123/notesy-screenshots/abc123.jpg", "abc123"},
		{"http://localhost:8080/media/notesy-screenshots/0f5e2c1a-9b7d-4e1f-8a3c-2d6b5e4f7a90", "0f5e2c1a-9b7d-4e1f-8a3c-2d6b5e4f7a90"},
		{"https://host/x/photo.min.png?w=200", "photo"},
		{"no-scheme/ref.webp", "ref"},
		{"", ""},
		{"https://host/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferenceFromURL(tt.in))
		})
	}
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return p
}

func TestStoreUploadAndDelete(t *testing.T) {
	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	defer b.Close()

	s := NewStore(NewBlobBucket(b), "https://media.example.com/", "/notesy-screenshots/")
	p := writePNG(t, t.TempDir(), "shot.png", 1600, 800)

	u, err := s.Upload(ctx, p, WebOptions())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://media.example.com/notesy-screenshots/"), u)

	ref := ReferenceFromURL(u)
	require.NotEmpty(t, ref)

	attrs, err := b.Attributes(ctx, "notesy-screenshots/"+ref)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", attrs.ContentType)

	data, err := b.ReadAll(ctx, "notesy-screenshots/"+ref)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 600, cfg.Height)

	require.NoError(t, s.Delete(ctx, ref))
	ok, err := b.Exists(ctx, "notesy-screenshots/"+ref)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting again is not an error
	require.NoError(t, s.Delete(ctx, ref))
}

func TestStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	defer b.Close()
	s := NewStore(NewBlobBucket(b), "https://media.example.com", "f")

	p := filepath.Join(t.TempDir(), "junk.jpg")
	require.NoError(t, os.WriteFile(p, []byte("not an image"), 0o600))
	_, err := s.Upload(ctx, p, WebOptions())
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = s.Upload(ctx, filepath.Join(t.TempDir(), "missing.png"), WebOptions())
	require.Error(t, err)

	require.Error(t, s.Delete(ctx, ""))
	require.Error(t, s.Delete(ctx, "../etc"))
}

// fakeService records calls; paths/refs listed in fail return an error.
type fakeService struct {
	mu      sync.Mutex
	fail    map[string]bool
	uploads []string
	deletes []string
}

func (f *fakeService) Upload(ctx context.Context, localPath string, _ Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(localPath)
	if f.fail[name] {
		return "", errors.New("upstream down")
	}
	f.uploads = append(f.uploads, name)
	return "https://media.example.com/f/" + strings.TrimSuffix(name, filepath.Ext(name)), nil
}

func (f *fakeService) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	if f.fail[ref] {
		return errors.New("upstream down")
	}
	return nil
}

func TestUploadAllKeepsOrder(t *testing.T) {
	svc := &fakeService{}
	urls, orphans, err := UploadAll(context.Background(), svc, []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"}, WebOptions())
	require.NoError(t, err)
	assert.Empty(t, orphans)
	assert.Equal(t, []string{
		"https://media.example.com/f/a",
		"https://media.example.com/f/b",
		"https://media.example.com/f/c",
	}, urls)
}

func TestUploadAllRollsBackOnFailure(t *testing.T) {
	svc := &fakeService{fail: map[string]bool{"b.png": true}}
	urls, orphans, err := UploadAll(context.Background(), svc, []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"}, WebOptions())
	require.Error(t, err)
	assert.Nil(t, urls)
	assert.Empty(t, orphans)

	// whatever made it up must have been deleted again
	assert.ElementsMatch(t, refsOf(svc.uploads), svc.deletes)
}

func TestUploadAllReportsRollbackOrphans(t *testing.T) {
	// a and c upload, b fails, and deleting a fails during rollback
	svc := &fakeService{fail: map[string]bool{"b.png": true, "a": true}}
	_, orphans, err := UploadAll(context.Background(), svc, []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"}, WebOptions())
	require.Error(t, err)

	assert.ElementsMatch(t, []string{"a", "c"}, refsOf(svc.uploads))
	require.Len(t, orphans, 1)
	assert.Equal(t, "a", orphans[0].Ref)
	assert.Equal(t, "https://media.example.com/f/a", orphans[0].URL)
}

func refsOf(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimSuffix(n, filepath.Ext(n)))
	}
	return out
}

func TestUploadAllEmpty(t *testing.T) {
	urls, _, err := UploadAll(context.Background(), &fakeService{}, nil, WebOptions())
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDeleteAllSwallowsFailures(t *testing.T) {
	svc := &fakeService{fail: map[string]bool{"a": true, "b": true, "c": true}}
	failures := DeleteAll(context.Background(), svc, []string{
		"https://host/a.jpg", "https://host/b.jpg", "https://host/c.jpg",
	})
	assert.Len(t, svc.deletes, 3)
	require.Len(t, failures, 3)
	for _, f := range failures {
		assert.Error(t, f.Err)
		assert.Contains(t, f.URL, f.Ref)
	}
}

func TestDeleteAllSkipsUnusableURLs(t *testing.T) {
	svc := &fakeService{}
	failures := DeleteAll(context.Background(), svc, []string{"", "https://host/x.png"})
	assert.Empty(t, failures)
	assert.Equal(t, []string{"x"}, svc.deletes)
}

type countingService struct {
	calls atomic.Int32
	err   error
}

func (c *countingService) Upload(context.Context, string, Options) (string, error) {
	c.calls.Add(1)
	return "", c.err
}

func (c *countingService) Delete(context.Context, string) error {
	c.calls.Add(1)
	return c.err
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &countingService{err: errors.New("boom")}
	b := NewBreaker(next, BreakerSettings{Name: "media-test", FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		require.Error(t, b.Delete(context.Background(), "ref"))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Delete(context.Background(), "ref")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 3, next.calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	defer b.Close()
	br := NewBreaker(NewStore(NewBlobBucket(b), "https://media.example.com", "f"),
		BreakerSettings{Name: "media-client-errors", FailureThreshold: 2})

	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, fmt.Sprintf("junk-%d.png", i))
		require.NoError(t, os.WriteFile(p, []byte("not an image"), 0o600))
		paths = append(paths, p)
	}
	_, _, err := UploadAll(ctx, br, paths, WebOptions())
	require.ErrorIs(t, err, ErrInvalidImage)
	require.ErrorIs(t, br.Delete(ctx, "../x"), ErrInvalidReference)
	assert.Equal(t, gobreaker.StateClosed, br.State())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	next := &countingService{err: context.Canceled}
	cb := NewBreaker(next, BreakerSettings{Name: "media-cancelled", FailureThreshold: 1})
	require.ErrorIs(t, cb.Delete(cancelled, "ref"), context.Canceled)
	require.ErrorIs(t, cb.Delete(cancelled, "ref"), context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	u, err := br.Upload(ctx, writePNG(t, dir, "ok.png", 10, 10), WebOptions())
	require.NoError(t, err)
	require.NoError(t, br.Delete(ctx, ReferenceFromURL(u)))
}

func TestBreakerPassesThrough(t *testing.T) {
	svc := &fakeService{}
	b := NewBreaker(svc, BreakerSettings{Name: "media-pass"})
	u, err := b.Upload(context.Background(), "/tmp/z.png", WebOptions())
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/f/z", u)
	require.NoError(t, b.Delete(context.Background(), "z"))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
