package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"notesy/internal/auth"
	"notesy/internal/logging"
	"notesy/internal/note"
	"notesy/internal/upload"
)

// NoteService is what the note routes need from note.Service.
type NoteService interface {
	Get(ctx context.Context, owner, id uint64) (*note.Note, error)
	List(ctx context.Context, owner uint64, f note.Filter) ([]note.Note, error)
	Create(ctx context.Context, owner uint64, in note.Input, files []string) (*note.Note, error)
	Update(ctx context.Context, owner, id uint64, in note.Input, keep, files []string) (*note.Note, error)
	Delete(ctx context.Context, owner, id uint64) error
}

type NoteHandler struct {
	Svc    NoteService
	Limits upload.Limits
	Errors
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	f := note.Filter{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if tags := q.Get("tags"); tags != "" {
		f.Tags = note.ParseTags(tags)
	}

	notes, err := h.Svc.List(r.Context(), uid, f)
	if err != nil {
		h.write(w, r, http.StatusInternalServerError, "Server error", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}

	n, err := h.Svc.Get(r.Context(), uid, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	batch, ok := h.receive(w, r)
	if !ok {
		return
	}
	defer h.cleanup(r, batch)

	n, err := h.Svc.Create(r.Context(), uid, input(batch), batch.Paths())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}

	batch, ok := h.receive(w, r)
	if !ok {
		return
	}
	defer h.cleanup(r, batch)

	keep := note.ParseKeepList(r.Context(), batch.Value("keepExistingImages"))
	n, err := h.Svc.Update(r.Context(), uid, id, input(batch), keep, batch.Paths())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), uid, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
}

func input(b *upload.Batch) note.Input {
	return note.Input{
		Title:    b.Value("title"),
		Content:  b.Value("content"),
		Category: b.Value("category"),
		Tags:     note.ParseTags(b.Value("tags")),
	}
}

// noteID parses {id}. Ids that cannot exist are reported as not found, like foreign ones.
func (h *NoteHandler) noteID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		h.write(w, r, http.StatusNotFound, "Note not found", nil)
		return 0, false
	}
	return id, true
}

func (h *NoteHandler) receive(w http.ResponseWriter, r *http.Request) (*upload.Batch, bool) {
	lim := h.Limits
	if lim.MaxFiles == 0 {
		lim = upload.DefaultLimits()
	}
	// files plus generous room for fields and multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, int64(lim.MaxFiles+1)*lim.MaxFileSize+(2<<20))

	batch, err := upload.Receive(r, lim)
	if err == nil {
		return batch, true
	}

	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrTooManyFiles):
		h.write(w, r, http.StatusBadRequest, fmt.Sprintf("Too many files. Maximum is %d files.", lim.MaxFiles), nil)
	case errors.Is(err, upload.ErrFileTooLarge), errors.As(err, &tooBig):
		h.write(w, r, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB per file.", lim.MaxFileSize>>20), nil)
	case errors.Is(err, upload.ErrNotImage):
		h.write(w, r, http.StatusBadRequest, "Only image files are allowed!", nil)
	case errors.Is(err, upload.ErrMalformed):
		h.write(w, r, http.StatusBadRequest, "Invalid form data", err)
	default:
		h.write(w, r, http.StatusInternalServerError, "Server error", err)
	}
	return nil, false
}

func (h *NoteHandler) cleanup(r *http.Request, b *upload.Batch) {
	if err := b.Cleanup(); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to remove upload directory")
	}
}

func (h *NoteHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, note.ErrNotFound):
		h.write(w, r, http.StatusNotFound, "Note not found", nil)
	case errors.Is(err, note.ErrMissingFields):
		h.write(w, r, http.StatusBadRequest, "Title and content are required", nil)
	case errors.Is(err, note.ErrInvalidCategory):
		h.write(w, r, http.StatusBadRequest, "Invalid category", err)
	case errors.Is(err, note.ErrUpload):
		h.write(w, r, http.StatusInternalServerError, "Error uploading images", err)
	default:
		h.write(w, r, http.StatusInternalServerError, "Server error", err)
	}
}
