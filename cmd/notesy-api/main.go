package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "go.uber.org/automaxprocs"
	"gocloud.dev/blob"

	"notesy/internal/auth"
	"notesy/internal/config"
	"notesy/internal/db"
	httpx "notesy/internal/http"
	"notesy/internal/jobs"
	"notesy/internal/logging"
	"notesy/internal/media"
	"notesy/internal/note"
)

func main() {
	cfg, err := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect database")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logging.Fatal().Err(err).Msg("migrate database")
	}

	bucket, served, closeBucket, err := openBucket(ctx, cfg.Media)
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Media.Driver).Msg("open media bucket")
	}
	defer closeBucket()

	mediaSvc := media.NewBreaker(
		media.NewStore(bucket, cfg.Media.PublicURL, cfg.Media.Folder),
		media.BreakerSettings{Name: "media"},
	)

	var store note.Store = &note.GormStore{DB: gdb}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logging.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		store = note.NewCachedStore(store, rdb, cfg.CacheTTL)
		logging.Info().Str("addr", opts.Addr).Msg("note cache enabled")
	}

	queue := &jobs.Repo{DB: gdb}
	notes := &note.Service{
		Store:        store,
		Media:        mediaSvc,
		Cleanup:      queue,
		MediaTimeout: cfg.Media.Timeout,
	}

	worker := &jobs.Worker{ID: "worker-1", Queue: queue, Media: mediaSvc}
	go worker.Run(ctx)

	deps := httpx.Deps{
		JWT:   auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		Users: &auth.GormUsers{DB: gdb},
		Notes: notes,
	}
	if cfg.Media.Serve {
		deps.Media = served
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("http server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}

// openBucket returns the object store behind media.Store and, for the blob driver, the
// bucket to serve under /media.
func openBucket(ctx context.Context, cfg config.MediaConfig) (media.Bucket, *blob.Bucket, func(), error) {
	switch cfg.Driver {
	case "s3":
		b, err := media.NewS3Bucket(ctx, media.S3Configuration{
			AccessID:      cfg.S3AccessKeyID,
			AccessKey:     cfg.S3SecretAccessKey,
			AWSBucketName: cfg.S3Bucket,
			AWSRegion:     cfg.S3Region,
		})
		return b, nil, func() {}, err
	default:
		b, err := media.OpenBlobBucket(ctx, cfg.BlobURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return b, b.Bucket(), func() { _ = b.Close() }, nil
	}
}
