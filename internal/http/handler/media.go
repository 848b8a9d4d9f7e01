package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"notesy/internal/logging"
)

// MediaHandler serves stored images when the blob driver points at local storage.
type MediaHandler struct {
	Bucket *blob.Bucket
}

func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" || strings.Contains(key, "..") {
		http.NotFound(w, r)
		return
	}

	rd, err := h.Bucket.NewReader(r.Context(), key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			http.NotFound(w, r)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("key", key).Msg("media read failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	defer rd.Close()

	w.Header().Set("Content-Type", rd.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(rd.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rd); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("media write interrupted")
	}
}
