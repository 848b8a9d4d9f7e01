package http

import (
	"net/http"

	"notesy/internal/auth"
	"notesy/internal/config"
	"notesy/internal/http/handler"
	mw "notesy/internal/http/middleware"
	"notesy/internal/upload"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gocloud.dev/blob"
)

type Deps struct {
	JWT   *auth.JWT
	Users auth.Users
	Notes handler.NoteService
	// Media, when set, is served under /media.
	Media *blob.Bucket
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Observe)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	errs := handler.Errors{Dev: cfg.Development()}

	ah := &handler.AuthHandler{Users: d.Users, JWT: d.JWT, Errors: errs}
	r.Route("/auth", func(r chi.Router) {
		r.Use(mw.RateLimitByIP(cfg.AuthRateLimit))
		r.Post("/register", ah.Register)
		r.Post("/login", ah.Login)
		r.With(auth.RequireAuth(d.JWT)).Get("/me", ah.Me)
	})

	noteH := &handler.NoteHandler{
		Svc: d.Notes,
		Limits: upload.Limits{
			MaxFiles:    cfg.Upload.MaxFiles,
			MaxFileSize: cfg.Upload.MaxFileSize,
			Dir:         cfg.Upload.Dir,
		},
		Errors: errs,
	}

	r.Route("/notes", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Get("/", noteH.List)
		r.Post("/", noteH.Create)
		r.Get("/{id}", noteH.Get)
		r.Put("/{id}", noteH.Update)
		r.Delete("/{id}", noteH.Delete)
	})

	if d.Media != nil {
		mh := &handler.MediaHandler{Bucket: d.Media}
		r.Get("/media/*", mh.Serve)
		r.Head("/media/*", mh.Serve)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Route not found"}`))
	})

	return r
}
