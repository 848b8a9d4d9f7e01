// Package editor holds a note being written on the client: its form fields, the images it
// already has (kept) and the images picked since (pending), in that order.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"notesy/internal/imaging"
	"notesy/internal/note"
)

var (
	ErrCompressing     = errors.New("images are still being compressed")
	ErrUnsupportedType = errors.New("invalid format, allowed: JPEG, PNG, WebP, GIF")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Pending is a picked image that has not been uploaded yet.
type Pending struct {
	File  imaging.File
	State imaging.State
}

type Draft struct {
	NoteID   uint64 // zero while creating
	Title    string
	Content  string
	Category string
	Tags     string // comma separated, as typed

	comp *imaging.Compressor

	mu          sync.Mutex
	kept        []string
	pending     []Pending
	compressing int
}

func NewDraft(c *imaging.Compressor) *Draft {
	if c == nil {
		c = imaging.NewCompressor()
	}
	return &Draft{Category: note.DefaultCategory, comp: c}
}

// EditDraft starts from an existing note; its screenshots become the kept list.
func EditDraft(c *imaging.Compressor, n *note.Note) *Draft {
	d := NewDraft(c)
	d.NoteID = n.ID
	d.Title = n.Title
	d.Content = n.Content
	if n.Category != "" {
		d.Category = n.Category
	}
	d.Tags = strings.Join(n.Tags, ", ")
	d.kept = append([]string{}, n.Screenshots...)
	return d
}

func (d *Draft) Editing() bool { return d.NoteID != 0 }

// AddFiles validates and compresses files, appending the accepted ones after the current
// pending uploads. One error is returned per rejected file; the others still go through.
func (d *Draft) AddFiles(ctx context.Context, files []imaging.File) []error {
	var (
		errs  []error
		valid []imaging.File
	)
	for _, f := range files {
		if !allowedTypes[strings.ToLower(f.Type)] {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, ErrUnsupportedType))
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return errs
	}

	d.mu.Lock()
	d.compressing++
	d.mu.Unlock()

	out, states := d.comp.CompressAll(ctx, valid)

	d.mu.Lock()
	for i := range out {
		d.pending = append(d.pending, Pending{File: out[i], State: states[i]})
	}
	d.compressing--
	d.mu.Unlock()

	if len(out) < len(valid) {
		errs = append(errs, ctx.Err())
	}
	return errs
}

// Busy reports whether a compression run is in flight.
func (d *Draft) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.compressing > 0
}

func (d *Draft) Kept() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.kept...)
}

func (d *Draft) Pending() []Pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Pending{}, d.pending...)
}

// RemoveExisting drops the i-th kept image. Out of range is a no-op.
func (d *Draft) RemoveExisting(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.kept) {
		return
	}
	d.kept = append(d.kept[:i], d.kept[i+1:]...)
}

// RemoveNew drops the i-th pending upload. Out of range is a no-op.
func (d *Draft) RemoveNew(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.pending) {
		return
	}
	d.pending = append(d.pending[:i], d.pending[i+1:]...)
}

// Submission is a ready-to-send multipart form.
type Submission struct {
	NoteID      uint64 // zero for a new note
	Body        []byte
	ContentType string
}

// BuildSubmission encodes the draft. keepExistingImages is only sent when editing.
func (d *Draft) BuildSubmission() (*Submission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compressing > 0 {
		return nil, ErrCompressing
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", d.Title},
		{"content", d.Content},
		{"category", d.Category},
		{"tags", d.Tags},
	}
	if d.Editing() {
		keep, err := json.Marshal(append([]string{}, d.kept...))
		if err != nil {
			return nil, err
		}
		fields = append(fields, [2]string{"keepExistingImages", string(keep)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	for _, p := range d.pending {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="screenshots"; filename="%s"`, escapeQuotes(p.File.Name)))
		h.Set("Content-Type", p.File.Type)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.File.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return &Submission{NoteID: d.NoteID, Body: buf.Bytes(), ContentType: mw.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
