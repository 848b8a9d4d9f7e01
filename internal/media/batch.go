package media

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"notesy/internal/logging"
)

// UploadAll uploads every path concurrently and returns the URLs in path order. The first
// failure cancels the remaining uploads; objects that did make it are deleted again before
// returning. Deletes that fail during that rollback are returned as orphans for the caller
// to retry.
func UploadAll(ctx context.Context, svc Service, paths []string, opts Options) (urls []string, orphans []Failure, err error) {
	urls = make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			u, err := svc.Upload(gctx, p, opts)
			if err != nil {
				return fmt.Errorf("upload %s: %w", filepath.Base(p), err)
			}
			urls[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var done []string
		for _, u := range urls {
			if u != "" {
				done = append(done, u)
			}
		}
		if len(done) > 0 {
			orphans = DeleteAll(context.WithoutCancel(ctx), svc, done)
		}
		return nil, orphans, err
	}
	return urls, nil, nil
}

// Failure is one image DeleteAll could not remove.
type Failure struct {
	URL string
	Ref string
	Err error
}

// DeleteAll issues one delete per URL concurrently and waits for all of them. Failures are
// logged and returned, never raised.
func DeleteAll(ctx context.Context, svc Service, urls []string) []Failure {
	var (
		mu       sync.Mutex
		failures []Failure
		wg       sync.WaitGroup
	)

	for _, u := range urls {
		u := u
		ref := ReferenceFromURL(u)
		if ref == "" {
			logging.Ctx(ctx).Warn().Str("url", u).Msg("skipping image without media reference")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Delete(ctx, ref); err != nil {
				logging.Ctx(ctx).Error().Err(err).Str("ref", ref).Msg("media delete failed")
				mu.Lock()
				failures = append(failures, Failure{URL: u, Ref: ref, Err: err})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failures
}
