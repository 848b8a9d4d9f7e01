package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	Env                  string
	LogLevel             string
	LogFormat            string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret     string
	JWTTTL        time.Duration
	AuthRateLimit int // requests per minute per IP on /auth

	RedisURL string
	CacheTTL time.Duration

	Upload UploadConfig
	Media  MediaConfig
}

type UploadConfig struct {
	Dir         string
	MaxFiles    int
	MaxFileSize int64
}

type MediaConfig struct {
	Driver    string // blob or s3
	BlobURL   string
	PublicURL string
	Folder    string
	Serve     bool
	Timeout   time.Duration

	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Development reports whether error details may be exposed to clients.
func (c Config) Development() bool {
	return c.Env == "development"
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v := getenv(key, "")
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		Env:                  getenv("APP_ENV", "production"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
		DatabaseURL:          must("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		JWTSecret:            must("JWT_SECRET"),
		JWTTTL:               getduration("JWT_TTL", 24*time.Hour),
		AuthRateLimit:        getint("AUTH_RATE_LIMIT", 20),
		RedisURL:             getenv("REDIS_URL", ""),
		CacheTTL:             getduration("CACHE_TTL", 10*time.Minute),
		Upload: UploadConfig{
			Dir:         getenv("UPLOAD_DIR", os.TempDir()),
			MaxFiles:    getint("UPLOAD_MAX_FILES", 5),
			MaxFileSize: int64(getint("UPLOAD_MAX_FILE_SIZE", 10<<20)),
		},
		Media: MediaConfig{
			Driver:            getenv("MEDIA_DRIVER", "blob"),
			BlobURL:           getenv("MEDIA_BLOB_URL", "file:///var/lib/notesy/media"),
			PublicURL:         strings.TrimRight(getenv("MEDIA_PUBLIC_URL", "http://localhost:8080/media"), "/"),
			Folder:            getenv("MEDIA_FOLDER", "notesy-screenshots"),
			Serve:             getenv("MEDIA_SERVE", "true") == "true",
			Timeout:           getduration("MEDIA_TIMEOUT", 60*time.Second),
			S3Bucket:          getenv("S3_BUCKET", ""),
			S3Region:          getenv("S3_REGION", "eu-central-1"),
			S3AccessKeyID:     getenv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getenv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing env: %s", strings.Join(missing, ", "))
	}
	if cfg.Media.Driver == "s3" && cfg.Media.S3Bucket == "" {
		return cfg, fmt.Errorf("missing env: S3_BUCKET (required by MEDIA_DRIVER=s3)")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return def
	}
	return d
}
