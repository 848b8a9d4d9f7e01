// Package jobs is a postgres-backed job queue. Workers claim due jobs with
// FOR UPDATE SKIP LOCKED, so several API instances can share one queue.
package jobs

import (
	"context"
	"math"
	"time"

	"github.com/goccy/go-json"

	"notesy/internal/logging"
	"notesy/internal/media"
)

// Queue is the part of Repo the worker drives.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

type Worker struct {
	ID       string
	Queue    Queue
	Media    media.Service
	Interval time.Duration // poll interval, 800ms when zero
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logging.WithComponent("jobs")
	log.Info().Str("worker", w.ID).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("worker", w.ID).Msg("worker stopped")
			return
		case <-ticker.C:
			job, err := w.Queue.Claim(ctx, w.ID)
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("worker", w.ID).Msg("worker claim error")
				}
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeMediaDelete:
		w.handleMediaDelete(ctx, job)
	default:
		_ = w.Queue.MarkFailed(ctx, job.ID, "unknown job type")
	}
}

func (w *Worker) handleMediaDelete(ctx context.Context, job *Job) {
	var p mediaDeletePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.Ref == "" {
		_ = w.Queue.MarkFailed(ctx, job.ID, "bad payload")
		return
	}

	if err := w.Media.Delete(ctx, p.Ref); err != nil {
		log := logging.WithComponent("jobs")
		log.Warn().Err(err).
			Uint64("job_id", job.ID).Str("ref", p.Ref).Int("attempt", job.Attempts+1).
			Msg("media delete retry failed")
		w.retry(ctx, job, err.Error())
		return
	}
	_ = w.Queue.MarkDone(ctx, job.ID)
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		log := logging.WithComponent("jobs")
		log.Error().Uint64("job_id", job.ID).Str("error", errMsg).Msg("job gave up")
		_ = w.Queue.MarkFailed(ctx, job.ID, errMsg)
		return
	}

	_ = w.Queue.RetryLater(ctx, job.ID, attempts, time.Now().Add(Backoff(attempts)), errMsg)
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
