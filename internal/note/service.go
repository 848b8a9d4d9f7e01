// Package note owns notes: validation, persistence and the image lifecycle around them.
//
// Create and Update upload every new image before touching the store, so a note never holds
// a URL that did not finish uploading. Delete removes the record first and cleans its images
// up afterwards on a best-effort basis.
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notesy/internal/logging"
	"notesy/internal/media"
	"notesy/internal/metrics"
)

var (
	ErrNotFound     = errors.New("note not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpload       = errors.New("error uploading images")

	ErrMissingFields   = fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrInvalidInput)
)

// CleanupQueue takes image deletions that failed so they can be retried later.
type CleanupQueue interface {
	EnqueueMediaDelete(ctx context.Context, owner uint64, ref string) error
}

type Service struct {
	Store   Store
	Media   media.Service
	Cleanup CleanupQueue // optional

	// MediaTimeout bounds one batch of uploads; zero means no bound.
	MediaTimeout time.Duration
	Options      media.Options
}

// Input carries the editable fields of a note.
type Input struct {
	Title    string
	Content  string
	Category string
	Tags     []string
}

func (in Input) normalize() (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" || in.Content == "" {
		return in, ErrMissingFields
	}
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	if !validCategory(in.Category) {
		return in, fmt.Errorf("%w %q", ErrInvalidCategory, in.Category)
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	return in, nil
}

func (s *Service) Get(ctx context.Context, owner, id uint64) (*Note, error) {
	return s.Store.Get(ctx, owner, id)
}

func (s *Service) List(ctx context.Context, owner uint64, f Filter) ([]Note, error) {
	return s.Store.List(ctx, owner, f)
}

// Create uploads files (local paths) and stores a new note whose screenshots are the
// resulting URLs in file order.
func (s *Service) Create(ctx context.Context, owner uint64, in Input, files []string) (*Note, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	urls, err := s.uploadAll(ctx, owner, files)
	if err != nil {
		return nil, err
	}

	n := &Note{
		OwnerID:     owner,
		Title:       in.Title,
		Content:     in.Content,
		Category:    in.Category,
		Tags:        orEmpty(in.Tags),
		Screenshots: orEmpty(urls),
	}
	if err := s.Store.Create(ctx, n); err != nil {
		s.discard(ctx, owner, urls)
		return nil, fmt.Errorf("create note: %w", err)
	}

	logging.Ctx(ctx).Info().Uint64("note_id", n.ID).Int("images", len(urls)).Msg("note created")
	return n, nil
}

// Update replaces the fields of an owned note. keep lists the current image URLs to retain
// (others are dropped and cleaned up); files are uploaded and appended after them.
func (s *Service) Update(ctx context.Context, owner, id uint64, in Input, keep, files []string) (*Note, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	cur, err := s.current(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	kept := retain(keep, cur.Screenshots)

	urls, err := s.uploadAll(ctx, owner, files)
	if err != nil {
		return nil, err
	}

	shots := make([]string, 0, len(kept)+len(urls))
	shots = append(shots, kept...)
	shots = append(shots, urls...)

	n := &Note{
		ID:          cur.ID,
		OwnerID:     owner,
		Title:       in.Title,
		Content:     in.Content,
		Category:    in.Category,
		Tags:        orEmpty(in.Tags),
		Screenshots: orEmpty(shots),
		CreatedAt:   cur.CreatedAt,
	}
	if err := s.Store.Replace(ctx, n); err != nil {
		s.discard(ctx, owner, urls)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update note %d: %w", id, err)
	}

	if gone := dropped(cur.Screenshots, shots); len(gone) > 0 {
		s.discard(ctx, owner, gone)
	}

	logging.Ctx(ctx).Info().Uint64("note_id", id).Int("kept", len(kept)).Int("added", len(urls)).Msg("note updated")
	return n, nil
}

// Delete removes an owned note. Its images are deleted afterwards; failures there are logged
// and queued for retry but never reported to the caller.
func (s *Service) Delete(ctx context.Context, owner, id uint64) error {
	n, err := s.Store.Delete(ctx, owner, id)
	if err != nil {
		return err
	}
	s.discard(ctx, owner, n.Screenshots)
	logging.Ctx(ctx).Info().Uint64("note_id", id).Int("images", len(n.Screenshots)).Msg("note deleted")
	return nil
}

// current loads the note an update starts from, bypassing any read cache.
func (s *Service) current(ctx context.Context, owner, id uint64) (*Note, error) {
	if fr, ok := s.Store.(FreshReader); ok {
		return fr.GetFresh(ctx, owner, id)
	}
	return s.Store.Get(ctx, owner, id)
}

func (s *Service) uploadAll(ctx context.Context, owner uint64, files []string) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if s.MediaTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.MediaTimeout)
		defer cancel()
	}
	urls, orphans, err := media.UploadAll(ctx, s.Media, files, s.options())
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int("files", len(files)).Int("orphans", len(orphans)).Msg("image upload failed")
		s.requeue(ctx, owner, orphans)
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return urls, nil
}

// discard deletes images the caller no longer references. It outlives request cancellation.
func (s *Service) discard(ctx context.Context, owner uint64, urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.requeue(ctx, owner, media.DeleteAll(ctx, s.Media, urls))
}

// requeue hands images that could not be deleted to the cleanup queue.
func (s *Service) requeue(ctx context.Context, owner uint64, failures []media.Failure) {
	if s.Cleanup == nil || len(failures) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, f := range failures {
		if err := s.Cleanup.EnqueueMediaDelete(ctx, owner, f.Ref); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("ref", f.Ref).Msg("failed to enqueue media cleanup")
			continue
		}
		metrics.CleanupJobsEnqueued.Inc()
	}
}

func (s *Service) options() media.Options {
	if s.Options == (media.Options{}) {
		return media.WebOptions()
	}
	return s.Options
}
